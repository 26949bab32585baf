// Package prepare builds "what to pack" prompts for today and tomorrow.
package prepare

import (
	"fmt"
	"strings"
	"time"

	"github.com/oto-macenauer/school-summary/internal/domain/summary"
	"github.com/oto-macenauer/school-summary/internal/domain/timetable"
)

// Period selects which day a preparation covers.
type Period string

const (
	Today    Period = "today"
	Tomorrow Period = "tomorrow"
)

var czechDayNamesLower = []string{"pondělí", "úterý", "středa", "čtvrtek", "pátek", "sobota", "neděle"}

// Data is one generated preparation.
type Data struct {
	StudentName     string    `json:"student_name"`
	TargetDate      time.Time `json:"target_date"`
	PreparationText string    `json:"preparation_text"`
	LessonsCount    int       `json:"lessons_count"`
	MessagesCount   int       `json:"messages_count"`
	Period          Period    `json:"period"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// NextSchoolDay finds the next day with lessons after today, falling back to
// tomorrow when the timetable gives no answer.
func NextSchoolDay(week *timetable.Week, now time.Time) time.Time {
	tomorrow := now.AddDate(0, 0, 1)
	if week == nil {
		return tomorrow
	}
	if day, ok := week.DayFor(tomorrow); ok && day.SchoolDay() {
		return tomorrow
	}
	for _, day := range week.Days {
		if day.Date.After(now) && day.SchoolDay() {
			return day.Date
		}
	}
	return tomorrow
}

// Module builds preparation prompts for one student.
type Module struct {
	archive summary.MessageArchive
	student string
}

func NewModule(archive summary.MessageArchive, student string) *Module {
	return &Module{archive: archive, student: student}
}

// RelevantMessages returns archived messages from the last two weeks, newest
// first.
func (m *Module) RelevantMessages(daysBack int) []summary.MessageSummary {
	if m.archive == nil {
		return nil
	}
	if daysBack <= 0 {
		daysBack = 14
	}
	msgs, err := m.archive.RecentMessages(m.student, daysBack)
	if err != nil {
		return nil
	}
	return msgs
}

// FormatLessons renders one day's lessons for a prompt and returns the
// lesson count.
func FormatLessons(week *timetable.Week, target time.Time) (string, int) {
	if week == nil {
		return "Rozvrh není k dispozici.", 0
	}
	day, ok := week.DayFor(target)
	if !ok {
		return fmt.Sprintf("Rozvrh pro %s není k dispozici.", target.Format("02.01.2006")), 0
	}
	if !day.SchoolDay() {
		if day.Description != "" {
			return "Volno: " + day.Description, 0
		}
		return "Volno (víkend nebo svátek)", 0
	}
	if len(day.Lessons) == 0 {
		return "Žádné hodiny v rozvrhu.", 0
	}

	var lines []string
	for _, lesson := range day.Lessons {
		line := fmt.Sprintf("- %s-%s: %s (%s)",
			lesson.BeginTime, lesson.EndTime, lesson.SubjectName, lesson.SubjectAbbrev)
		if lesson.RoomAbbrev != "" {
			line += " v " + lesson.RoomAbbrev
		}
		if lesson.TeacherName != "" {
			line += " (" + lesson.TeacherName + ")"
		}
		if lesson.Theme != "" {
			line += " - téma: " + lesson.Theme
		}
		if lesson.Changed && lesson.ChangeDescription != "" {
			line += " [ZMĚNA: " + lesson.ChangeDescription + "]"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n"), len(day.Lessons)
}

// FormatMessages renders at most 15 messages for a preparation prompt.
func FormatMessages(messages []summary.MessageSummary) string {
	if len(messages) == 0 {
		return "Žádné zprávy k dispozici."
	}
	if len(messages) > 15 {
		messages = messages[:15]
	}
	var lines []string
	for _, msg := range messages {
		date := "?"
		if msg.Date != nil {
			date = msg.Date.Format("02.01.2006")
		}
		preview := msg.Preview
		if len(preview) > 800 {
			preview = preview[:800]
		}
		lines = append(lines, fmt.Sprintf("- [%s] %s (od: %s):\n  %s", date, msg.Title, msg.Sender, preview))
	}
	return strings.Join(lines, "\n")
}

// BuildPrompt substitutes {placeholders} in the template.
func BuildPrompt(template string, messages []summary.MessageSummary, week *timetable.Week, target time.Time) string {
	lessons, _ := FormatLessons(week, target)
	replacer := strings.NewReplacer(
		"{target_date}", target.Format("02.01.2006"),
		"{day_name}", czechDayNamesLower[(int(target.Weekday())+6)%7],
		"{lessons}", lessons,
		"{messages}", FormatMessages(messages),
	)
	return replacer.Replace(template)
}

// SystemInstruction is the fixed system prompt for preparations.
func SystemInstruction() string {
	return "Jsi pomocník pro rodiče a žáky, který připravuje přehled toho, co je třeba " +
		"nachystat do školy. Piš stručně, jasně a věcně v češtině. " +
		"Zaměř se na praktické informace: co zabalit, co se naučit, jaké úkoly odevzdat."
}
