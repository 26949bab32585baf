// Package summary aggregates school data into AI prompts and holds the
// generated weekly summaries.
package summary

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/oto-macenauer/school-summary/internal/domain/marks"
	"github.com/oto-macenauer/school-summary/internal/domain/timetable"
)

// WeekType selects which week a summary covers.
type WeekType string

const (
	WeekLast    WeekType = "last"
	WeekCurrent WeekType = "current"
	WeekNext    WeekType = "next"
)

var weekTypeLabels = map[WeekType]string{
	WeekLast:    "minulý týden",
	WeekCurrent: "tento týden",
	WeekNext:    "příští týden",
}

var czechDayNames = []string{"Pondělí", "Úterý", "Středa", "Čtvrtek", "Pátek", "Sobota", "Neděle"}

// WeekRange returns the Monday and Sunday of the week the given type refers
// to, relative to now.
func WeekRange(now time.Time, wt WeekType) (time.Time, time.Time) {
	monday := now.AddDate(0, 0, -((int(now.Weekday()) + 6) % 7))
	monday = time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, monday.Location())
	switch wt {
	case WeekLast:
		monday = monday.AddDate(0, 0, -7)
	case WeekNext:
		monday = monday.AddDate(0, 0, 7)
	}
	return monday, monday.AddDate(0, 0, 6)
}

// MessageSummary is a trimmed archived message used in prompts.
type MessageSummary struct {
	Title   string
	Sender  string
	Date    *time.Time
	Preview string
}

// MarkSummary is a trimmed mark used in prompts.
type MarkSummary struct {
	Subject string
	Mark    string
	Caption string
	Date    *time.Time
	New     bool
}

// Data is one generated summary.
type Data struct {
	StudentName   string    `json:"student_name"`
	WeekType      WeekType  `json:"week_type"`
	WeekStart     time.Time `json:"week_start"`
	WeekEnd       time.Time `json:"week_end"`
	SummaryText   string    `json:"summary_text"`
	MessagesCount int       `json:"messages_count"`
	MarksCount    int       `json:"marks_count"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// MessageArchive reads archived komens messages for a student.
type MessageArchive interface {
	MessagesBetween(student string, from, to time.Time) ([]MessageSummary, error)
	RecentMessages(student string, daysBack int) ([]MessageSummary, error)
}

// Module builds summary prompts for one student.
type Module struct {
	archive MessageArchive
	student string
}

func NewModule(archive MessageArchive, student string) *Module {
	return &Module{archive: archive, student: student}
}

// WeekMessages returns archived messages sent within the given range, newest
// first.
func (m *Module) WeekMessages(from, to time.Time) []MessageSummary {
	if m.archive == nil {
		return nil
	}
	msgs, err := m.archive.MessagesBetween(m.student, from, to)
	if err != nil {
		return nil
	}
	return msgs
}

// RecentMessages returns archived messages from the last daysBack days.
func (m *Module) RecentMessages(daysBack int) []MessageSummary {
	if m.archive == nil {
		return nil
	}
	msgs, err := m.archive.RecentMessages(m.student, daysBack)
	if err != nil {
		return nil
	}
	return msgs
}

// ExtractMarks picks marks dated within the given range, newest first.
// Undated marks are always included.
func ExtractMarks(data *marks.Data, from, to time.Time) []MarkSummary {
	if data == nil {
		return nil
	}
	var out []MarkSummary
	for _, subject := range data.Subjects {
		for _, mark := range subject.Marks {
			if mark.Date != nil && (mark.Date.Before(from) || mark.Date.After(to.AddDate(0, 0, 1))) {
				continue
			}
			out = append(out, MarkSummary{
				Subject: subject.SubjectName,
				Mark:    mark.Text,
				Caption: mark.Caption,
				Date:    mark.Date,
				New:     mark.New,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := time.Time{}, time.Time{}
		if out[i].Date != nil {
			ti = *out[i].Date
		}
		if out[j].Date != nil {
			tj = *out[j].Date
		}
		return ti.After(tj)
	})
	return out
}

// FormatTimetable renders a week timetable as prompt-friendly Czech text.
func FormatTimetable(week *timetable.Week) string {
	if week == nil {
		return "Rozvrh není k dispozici."
	}
	var lines []string
	for _, day := range week.Days {
		name := czechDayNames[(int(day.Date.Weekday())+6)%7]
		if !day.SchoolDay() {
			desc := day.Description
			if desc == "" {
				desc = "Volno"
			}
			lines = append(lines, fmt.Sprintf("- %s: %s", name, desc))
			continue
		}
		var abbrevs []string
		for _, l := range day.Lessons {
			abbrevs = append(abbrevs, l.SubjectAbbrev)
		}
		subjects := strings.Join(abbrevs, ", ")
		if subjects == "" {
			subjects = "Žádné hodiny"
		}
		lines = append(lines, fmt.Sprintf("- %s (%s): %s", name, day.Date.Format("02.01."), subjects))
	}
	return strings.Join(lines, "\n")
}

// FormatMessages renders at most 20 messages for a prompt.
func FormatMessages(messages []MessageSummary) string {
	if len(messages) == 0 {
		return "Žádné zprávy k dispozici."
	}
	if len(messages) > 20 {
		messages = messages[:20]
	}
	var lines []string
	for _, msg := range messages {
		date := "?"
		if msg.Date != nil {
			date = msg.Date.Format("02.01.2006 15:04")
		}
		preview := msg.Preview
		if len(preview) > 500 {
			preview = preview[:500]
		}
		lines = append(lines, fmt.Sprintf("- [%s] %s (od: %s):\n  %s", date, msg.Title, msg.Sender, preview))
	}
	return strings.Join(lines, "\n")
}

// FormatMarks renders marks for a prompt.
func FormatMarks(markList []MarkSummary) string {
	if len(markList) == 0 {
		return "Žádné známky v tomto období."
	}
	var lines []string
	for _, mk := range markList {
		date := "?"
		if mk.Date != nil {
			date = mk.Date.Format("02.01.2006")
		}
		lines = append(lines, fmt.Sprintf("- [%s] %s: %s - %s", date, mk.Subject, mk.Mark, mk.Caption))
	}
	return strings.Join(lines, "\n")
}

// PromptInput carries everything a summary prompt template can reference.
type PromptInput struct {
	Messages     []MessageSummary
	Timetable    *timetable.Week
	Marks        []MarkSummary
	WeekStart    time.Time
	WeekEnd      time.Time
	WeekType     WeekType
	GDriveReport string
	StudentInfo  string
}

// BuildPrompt substitutes {placeholders} in the template. Unknown
// placeholders are left untouched.
func BuildPrompt(template string, in PromptInput) string {
	gdrive := in.GDriveReport
	if gdrive == "" {
		gdrive = "Žádný report k dispozici."
	}
	studentInfo := ""
	if in.StudentInfo != "" {
		studentInfo = "\nInformace o studentovi:\n" + in.StudentInfo + "\n"
	}
	label, ok := weekTypeLabels[in.WeekType]
	if !ok {
		label = weekTypeLabels[WeekCurrent]
	}

	replacer := strings.NewReplacer(
		"{week_type}", label,
		"{date_from}", in.WeekStart.Format("02.01.2006"),
		"{date_to}", in.WeekEnd.Format("02.01.2006"),
		"{messages}", FormatMessages(in.Messages),
		"{timetable}", FormatTimetable(in.Timetable),
		"{marks}", FormatMarks(in.Marks),
		"{gdrive_report}", gdrive,
		"{student_info}", studentInfo,
	)
	return replacer.Replace(template)
}

// SystemInstruction is the fixed system prompt for weekly summaries.
func SystemInstruction() string {
	return "Jsi asistent pro rodiče, který shrnuje školní aktivity jejich dětí. " +
		"Piš stručně, jasně a věcně v češtině. " +
		"Zaměř se na důležité informace, které rodiče potřebují vědět."
}
