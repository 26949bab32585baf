package gdrive

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// SchoolYearStart returns September 1st of the school year covering the
// given date. Dates before September belong to the previous year's start.
func SchoolYearStart(at time.Time) time.Time {
	year := at.Year()
	if at.Month() < time.September {
		year--
	}
	return time.Date(year, time.September, 1, 0, 0, 0, 0, at.Location())
}

// SchoolWeekNumber counts school weeks from the Monday of the week the
// school year starts in. The starting week is week 1.
func SchoolWeekNumber(target, yearStart time.Time) int {
	startMonday := mondayOf(yearStart)
	targetMonday := mondayOf(target)
	return int(targetMonday.Sub(startMonday).Hours()/(24*7)) + 1
}

func mondayOf(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// Report files and folders are named inconsistently: "14", "Week 14",
// "Týden 14", "week_14", "Week 16 (15.12-19.12).docx" and so on.

func weekFilePatterns(week int) []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(fmt.Sprintf(`(?i)^(?:week|týden|tyden|w)[\s_-]*%d\b`, week)),
		regexp.MustCompile(fmt.Sprintf(`(?i)^%d\s+(?:week|týden|tyden)\b`, week)),
	}
}

func weekFolderPatterns(week int) []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(fmt.Sprintf(`(?i)^%d$`, week)),
		regexp.MustCompile(fmt.Sprintf(`(?i)(?:week|týden|tyden|w)\s*%d$`, week)),
		regexp.MustCompile(fmt.Sprintf(`(?i)^%d\s*(?:week|týden|tyden)$`, week)),
		regexp.MustCompile(fmt.Sprintf(`(?i)(?:week|týden|tyden|w)[_-]?%d$`, week)),
	}
}

func matchesWeekFile(name string, week int) bool {
	name = strings.TrimSpace(name)
	for _, re := range weekFilePatterns(week) {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

var firstNumberRe = regexp.MustCompile(`(\d+)`)

// weekNumberFromFilename extracts the week number from names like
// "Week 14.docx". The number must sit in a recognized week pattern.
func weekNumberFromFilename(name string) (int, bool) {
	m := firstNumberRe.FindString(name)
	if m == "" {
		return 0, false
	}
	week, err := strconv.Atoi(m)
	if err != nil || !matchesWeekFile(name, week) {
		return 0, false
	}
	return week, true
}

func matchesWeekFolder(name string, week int) bool {
	name = strings.TrimSpace(name)
	for _, re := range weekFolderPatterns(week) {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}
