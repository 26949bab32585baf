// Package prompt resolves {category:param} variable references in custom
// AI prompts against a student's cached data.
package prompt

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/oto-macenauer/school-summary/internal/domain/komens"
	"github.com/oto-macenauer/school-summary/internal/domain/marks"
	"github.com/oto-macenauer/school-summary/internal/domain/prepare"
	"github.com/oto-macenauer/school-summary/internal/domain/summary"
)

// Category is one of the supported variable families. The set is closed.
type Category string

const (
	CategoryTimetable   Category = "timetable"
	CategoryMarks       Category = "marks"
	CategoryKomens      Category = "komens"
	CategoryGDrive      Category = "gdrive"
	CategorySummary     Category = "summary"
	CategoryPrepare     Category = "prepare"
	CategoryStudentInfo Category = "student_info"
)

// UnknownCategoryError reports a variable whose category is not one of the
// supported families.
type UnknownCategoryError struct {
	Category string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("prompt: unknown variable category %q", e.Category)
}

// Source provides the per-student data the resolvers read. All methods
// work on cached snapshots and never block on the network.
type Source interface {
	WeekTimetableText() string
	DayTimetableText(day time.Time) string
	MarksData() *marks.Data
	KomensData() *komens.Data
	RecentMessagesText(daysBack, limit int) string
	LatestReportText() string
	WeekReportText(week int) string
	CurrentSchoolWeek() int
	StoredReportWeeks() []int
	SummaryText(week summary.WeekType) (string, bool)
	PrepareText(period prepare.Period) (string, bool)
	StudentInfo() string
}

var varPattern = regexp.MustCompile(`\{([^{}]+)\}`)

// Resolve replaces all {variable} references in the prompt. Variables with
// an unknown category stay in place verbatim; a resolver failure leaves a
// Czech placeholder. Returns the resolved prompt and the list of variable
// expressions that were substituted.
func Resolve(text string, src Source) (string, []string) {
	var resolved []string

	result := varPattern.ReplaceAllStringFunc(text, func(match string) string {
		expr := strings.TrimSpace(match[1 : len(match)-1])
		value, err := ResolveVariable(expr, src)
		if err != nil {
			var unknown *UnknownCategoryError
			if errors.As(err, &unknown) {
				return match
			}
			return fmt.Sprintf("[Chyba při načítání %s]", expr)
		}
		resolved = append(resolved, expr)
		return value
	})
	return result, resolved
}

// ResolveVariable resolves a single expression like "marks:cj" or
// "komens:last:10".
func ResolveVariable(expr string, src Source) (string, error) {
	parts := strings.Split(expr, ":")
	category := strings.ToLower(strings.TrimSpace(parts[0]))
	params := make([]string, 0, len(parts)-1)
	for _, p := range parts[1:] {
		params = append(params, strings.TrimSpace(p))
	}

	switch Category(category) {
	case CategoryTimetable:
		return resolveTimetable(params, src), nil
	case CategoryMarks:
		return resolveMarks(params, src), nil
	case CategoryKomens:
		return resolveKomens(params, src), nil
	case CategoryGDrive:
		return resolveGDrive(params, src), nil
	case CategorySummary:
		return resolveSummary(params, src), nil
	case CategoryPrepare:
		return resolvePrepare(params, src), nil
	case CategoryStudentInfo:
		return resolveStudentInfo(src), nil
	default:
		return "", &UnknownCategoryError{Category: category}
	}
}

func resolveTimetable(params []string, src Source) string {
	if len(params) == 0 {
		return src.WeekTimetableText()
	}
	switch strings.ToLower(params[0]) {
	case "today":
		return src.DayTimetableText(time.Now())
	case "tomorrow":
		return src.DayTimetableText(time.Now().AddDate(0, 0, 1))
	}
	return src.WeekTimetableText()
}

func resolveMarks(params []string, src Source) string {
	data := src.MarksData()
	if data == nil {
		return "Žádné známky nejsou k dispozici."
	}
	if len(params) == 0 {
		return formatAllMarks(data)
	}

	if strings.EqualFold(params[0], "new") {
		return formatNewMarks(data)
	}

	name := params[0]
	for _, subject := range data.Subjects {
		if strings.EqualFold(subject.SubjectName, name) || strings.EqualFold(subject.SubjectAbbrev, name) {
			return formatSubjectMarks(subject)
		}
	}
	return fmt.Sprintf("Předmět '%s' nenalezen.", name)
}

func sortedByDateDesc(in []marks.Mark) []marks.Mark {
	out := make([]marks.Mark, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		switch {
		case out[i].Date == nil:
			return false
		case out[j].Date == nil:
			return true
		default:
			return out[i].Date.After(*out[j].Date)
		}
	})
	return out
}

func formatAllMarks(data *marks.Data) string {
	var lines []string
	for _, subject := range data.Subjects {
		avg := ""
		if subject.AverageText != "" {
			avg = fmt.Sprintf(" (průměr: %s)", subject.AverageText)
		}
		recent := sortedByDateDesc(subject.Marks)
		if len(recent) > 10 {
			recent = recent[:10]
		}
		var parts []string
		for _, m := range recent {
			parts = append(parts, fmt.Sprintf("%s (%s)", m.Text, m.Caption))
		}
		text := strings.Join(parts, ", ")
		if text == "" {
			text = "žádné známky"
		}
		lines = append(lines, fmt.Sprintf("- %s%s: %s", subject.SubjectName, avg, text))
	}
	if len(lines) == 0 {
		return "Žádné známky."
	}
	return strings.Join(lines, "\n")
}

func formatNewMarks(data *marks.Data) string {
	var lines []string
	for _, subject := range data.Subjects {
		var parts []string
		for _, m := range subject.Marks {
			if m.New {
				parts = append(parts, fmt.Sprintf("%s (%s)", m.Text, m.Caption))
			}
		}
		if len(parts) > 0 {
			lines = append(lines, fmt.Sprintf("- %s: %s", subject.SubjectName, strings.Join(parts, ", ")))
		}
	}
	if len(lines) == 0 {
		return "Žádné nové známky."
	}
	return strings.Join(lines, "\n")
}

func formatSubjectMarks(subject marks.SubjectMarks) string {
	avg := ""
	if subject.AverageText != "" {
		avg = fmt.Sprintf("Průměr: %s\n", subject.AverageText)
	}
	var lines []string
	for _, m := range sortedByDateDesc(subject.Marks) {
		date := "?"
		if m.Date != nil {
			date = m.Date.Format("02.01.2006")
		}
		lines = append(lines, fmt.Sprintf("- [%s] %s - %s (váha: %d)", date, m.Text, m.Caption, m.Weight))
	}
	text := strings.Join(lines, "\n")
	if text == "" {
		text = "Žádné známky."
	}
	return fmt.Sprintf("%s\n%s%s", subject.SubjectName, avg, text)
}

func resolveKomens(params []string, src Source) string {
	if len(params) == 0 {
		return src.RecentMessagesText(30, 20)
	}

	switch strings.ToLower(params[0]) {
	case "unread":
		return formatUnread(src.KomensData())
	case "last":
		count := 20
		if len(params) >= 2 {
			if n, err := strconv.Atoi(params[1]); err == nil {
				count = n
			}
		}
		return src.RecentMessagesText(365, count)
	}
	return src.RecentMessagesText(30, 20)
}

func formatUnread(data *komens.Data) string {
	if data == nil {
		return "Žádné zprávy."
	}
	var lines []string
	for _, msg := range data.Received {
		if msg.Read {
			continue
		}
		date := "?"
		if msg.SentDate != nil {
			date = msg.SentDate.Format("02.01.2006 15:04")
		}
		sender := "?"
		if msg.Sender != nil {
			sender = msg.Sender.Name
		}
		body := msg.PlainText()
		if len(body) > 500 {
			body = body[:500]
		}
		lines = append(lines, fmt.Sprintf("- [%s] %s (od: %s):\n  %s", date, msg.Title, sender, body))
		if len(lines) == 20 {
			break
		}
	}
	if len(lines) == 0 {
		return "Žádné nepřečtené zprávy."
	}
	return strings.Join(lines, "\n")
}

var weekParamRe = regexp.MustCompile(`^w(\d+)$`)

func resolveGDrive(params []string, src Source) string {
	latest := func() string {
		if text := src.LatestReportText(); text != "" {
			return text
		}
		return "Žádný GDrive report."
	}
	if len(params) == 0 {
		return latest()
	}

	param := strings.ToLower(params[0])
	switch param {
	case "latest":
		return latest()
	case "current":
		week := src.CurrentSchoolWeek()
		if text := src.WeekReportText(week); text != "" {
			return text
		}
		return fmt.Sprintf("Report pro týden %d není k dispozici.", week)
	}

	if m := weekParamRe.FindStringSubmatch(param); m != nil {
		week, _ := strconv.Atoi(m[1])
		if text := src.WeekReportText(week); text != "" {
			return text
		}
		return fmt.Sprintf("Report pro týden %d není k dispozici.", week)
	}
	return "Neznámý parametr pro gdrive."
}

func resolveSummary(params []string, src Source) string {
	param := "current"
	if len(params) > 0 {
		param = strings.ToLower(params[0])
	}
	week := summary.WeekType(param)
	switch week {
	case summary.WeekLast, summary.WeekCurrent, summary.WeekNext:
		if text, ok := src.SummaryText(week); ok {
			return text
		}
	}
	return fmt.Sprintf("Shrnutí (%s) není k dispozici.", param)
}

func resolvePrepare(params []string, src Source) string {
	param := "tomorrow"
	if len(params) > 0 {
		param = strings.ToLower(params[0])
	}
	period := prepare.Period(param)
	switch period {
	case prepare.Today, prepare.Tomorrow:
		if text, ok := src.PrepareText(period); ok {
			return text
		}
	}
	return fmt.Sprintf("Příprava (%s) není k dispozici.", param)
}

func resolveStudentInfo(src Source) string {
	if info := src.StudentInfo(); info != "" {
		return info
	}
	return "Žádné doplňující informace o studentovi."
}

// Variable describes one resolvable expression for the web UI.
type Variable struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

// AvailableVariables lists everything the given source can resolve,
// including per-subject mark filters and stored week reports.
func AvailableVariables(src Source) []Variable {
	variables := []Variable{
		{Name: "timetable", Category: "timetable", Description: "Celý týdenní rozvrh"},
		{Name: "timetable:today", Category: "timetable", Description: "Dnešní rozvrh"},
		{Name: "timetable:tomorrow", Category: "timetable", Description: "Zítřejší rozvrh"},
		{Name: "marks", Category: "marks", Description: "Všechny známky s průměry"},
		{Name: "marks:new", Category: "marks", Description: "Pouze nové známky"},
		{Name: "komens", Category: "komens", Description: "Posledních 20 zpráv"},
		{Name: "komens:unread", Category: "komens", Description: "Nepřečtené zprávy"},
		{Name: "komens:last:10", Category: "komens", Description: "Posledních 10 zpráv"},
		{Name: "komens:last:30", Category: "komens", Description: "Posledních 30 zpráv"},
		{Name: "gdrive:current", Category: "gdrive", Description: "Report aktuálního týdne"},
		{Name: "gdrive:latest", Category: "gdrive", Description: "Nejnovější report"},
		{Name: "summary:current", Category: "summary", Description: "Shrnutí aktuálního týdne"},
		{Name: "summary:last", Category: "summary", Description: "Shrnutí minulého týdne"},
		{Name: "summary:next", Category: "summary", Description: "Shrnutí příštího týdne"},
		{Name: "prepare:today", Category: "prepare", Description: "Příprava na dnešek"},
		{Name: "prepare:tomorrow", Category: "prepare", Description: "Příprava na zítřek"},
		{Name: "student_info", Category: "student_info", Description: "Informace o studentovi (třída, třídní učitel apod.)"},
	}

	if data := src.MarksData(); data != nil {
		for _, subject := range data.Subjects {
			variables = append(variables, Variable{
				Name:        "marks:" + strings.ToLower(subject.SubjectAbbrev),
				Category:    "marks",
				Description: fmt.Sprintf("Známky z předmětu %s", subject.SubjectName),
			})
		}
	}

	weeks := src.StoredReportWeeks()
	if len(weeks) > 10 {
		weeks = weeks[:10]
	}
	for _, week := range weeks {
		variables = append(variables, Variable{
			Name:        fmt.Sprintf("gdrive:w%d", week),
			Category:    "gdrive",
			Description: fmt.Sprintf("Report týdne %d", week),
		})
	}
	return variables
}
