package prompt_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oto-macenauer/school-summary/internal/domain/komens"
	"github.com/oto-macenauer/school-summary/internal/domain/marks"
	"github.com/oto-macenauer/school-summary/internal/domain/prepare"
	"github.com/oto-macenauer/school-summary/internal/domain/prompt"
	"github.com/oto-macenauer/school-summary/internal/domain/summary"
)

type fakeSource struct {
	marksData   *marks.Data
	komensData  *komens.Data
	summaries   map[summary.WeekType]string
	prepares    map[prepare.Period]string
	reports     map[int]string
	latest      string
	currentWeek int
	info        string
}

func (f *fakeSource) WeekTimetableText() string              { return "celý rozvrh" }
func (f *fakeSource) DayTimetableText(day time.Time) string  { return "rozvrh " + day.Format("2.1.") }
func (f *fakeSource) MarksData() *marks.Data                 { return f.marksData }
func (f *fakeSource) KomensData() *komens.Data               { return f.komensData }
func (f *fakeSource) RecentMessagesText(_, limit int) string { return "zprávy" }
func (f *fakeSource) LatestReportText() string               { return f.latest }
func (f *fakeSource) WeekReportText(week int) string         { return f.reports[week] }
func (f *fakeSource) CurrentSchoolWeek() int                 { return f.currentWeek }

func (f *fakeSource) StoredReportWeeks() []int {
	weeks := make([]int, 0, len(f.reports))
	for w := range f.reports {
		weeks = append(weeks, w)
	}
	return weeks
}

func (f *fakeSource) SummaryText(week summary.WeekType) (string, bool) {
	text, ok := f.summaries[week]
	return text, ok
}

func (f *fakeSource) PrepareText(period prepare.Period) (string, bool) {
	text, ok := f.prepares[period]
	return text, ok
}

func (f *fakeSource) StudentInfo() string { return f.info }

func markAt(t time.Time, text, caption string, weight int) marks.Mark {
	return marks.Mark{Date: &t, Text: text, Caption: caption, Weight: weight}
}

func testMarks() *marks.Data {
	older := time.Date(2025, 9, 10, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2025, 9, 20, 0, 0, 0, 0, time.UTC)
	return &marks.Data{Subjects: []marks.SubjectMarks{
		{
			SubjectName:   "Český jazyk",
			SubjectAbbrev: "CJ",
			AverageText:   "1,50",
			Marks: []marks.Mark{
				markAt(older, "1", "Diktát", 1),
				{Date: &newer, Text: "2", Caption: "Sloh", Weight: 2, New: true},
			},
		},
		{
			SubjectName:   "Matematika",
			SubjectAbbrev: "M",
		},
	}}
}

func TestResolveTimetableVariants(t *testing.T) {
	src := &fakeSource{}

	text, err := prompt.ResolveVariable("timetable", src)
	require.NoError(t, err)
	assert.Equal(t, "celý rozvrh", text)

	text, err = prompt.ResolveVariable("timetable:today", src)
	require.NoError(t, err)
	assert.Contains(t, text, "rozvrh")
}

func TestResolveMarks(t *testing.T) {
	src := &fakeSource{marksData: testMarks()}

	all, err := prompt.ResolveVariable("marks", src)
	require.NoError(t, err)
	assert.Contains(t, all, "Český jazyk (průměr: 1,50)")
	assert.Contains(t, all, "Matematika: žádné známky")

	// Newest mark comes first.
	assert.Less(t, strings.Index(all, "2 (Sloh)"), strings.Index(all, "1 (Diktát)"))

	newOnly, err := prompt.ResolveVariable("marks:new", src)
	require.NoError(t, err)
	assert.Contains(t, newOnly, "2 (Sloh)")
	assert.NotContains(t, newOnly, "Diktát")

	subject, err := prompt.ResolveVariable("marks:cj", src)
	require.NoError(t, err)
	assert.Contains(t, subject, "Český jazyk")
	assert.Contains(t, subject, "váha: 2")

	missing, err := prompt.ResolveVariable("marks:fy", src)
	require.NoError(t, err)
	assert.Equal(t, "Předmět 'fy' nenalezen.", missing)
}

func TestResolveMarksWithoutData(t *testing.T) {
	text, err := prompt.ResolveVariable("marks", &fakeSource{})
	require.NoError(t, err)
	assert.Equal(t, "Žádné známky nejsou k dispozici.", text)
}

func TestResolveKomensUnread(t *testing.T) {
	when := time.Date(2025, 9, 15, 8, 0, 0, 0, time.UTC)
	src := &fakeSource{komensData: &komens.Data{
		Received: []komens.Message{
			{ID: "1", Title: "Přečtená", Read: true, SentDate: &when},
			{
				ID:       "2",
				Title:    "Nepřečtená",
				Text:     "Obsah zprávy",
				SentDate: &when,
				Sender:   &komens.Sender{Name: "Učitelka"},
			},
		},
	}}

	text, err := prompt.ResolveVariable("komens:unread", src)
	require.NoError(t, err)
	assert.Contains(t, text, "Nepřečtená")
	assert.Contains(t, text, "Učitelka")
	assert.NotContains(t, text, "Přečtená (")
}

func TestResolveGDrive(t *testing.T) {
	src := &fakeSource{
		latest:      "poslední report",
		currentWeek: 16,
		reports:     map[int]string{16: "report 16", 10: "report 10"},
	}

	text, err := prompt.ResolveVariable("gdrive:latest", src)
	require.NoError(t, err)
	assert.Equal(t, "poslední report", text)

	text, err = prompt.ResolveVariable("gdrive:current", src)
	require.NoError(t, err)
	assert.Equal(t, "report 16", text)

	text, err = prompt.ResolveVariable("gdrive:w10", src)
	require.NoError(t, err)
	assert.Equal(t, "report 10", text)

	text, err = prompt.ResolveVariable("gdrive:w99", src)
	require.NoError(t, err)
	assert.Equal(t, "Report pro týden 99 není k dispozici.", text)

	text, err = prompt.ResolveVariable("gdrive:nonsense", src)
	require.NoError(t, err)
	assert.Equal(t, "Neznámý parametr pro gdrive.", text)
}

func TestResolveSummaryAndPrepare(t *testing.T) {
	src := &fakeSource{
		summaries: map[summary.WeekType]string{summary.WeekCurrent: "shrnutí týdne"},
		prepares:  map[prepare.Period]string{prepare.Tomorrow: "příprava na zítra"},
	}

	text, err := prompt.ResolveVariable("summary", src)
	require.NoError(t, err)
	assert.Equal(t, "shrnutí týdne", text)

	text, err = prompt.ResolveVariable("summary:next", src)
	require.NoError(t, err)
	assert.Equal(t, "Shrnutí (next) není k dispozici.", text)

	text, err = prompt.ResolveVariable("prepare", src)
	require.NoError(t, err)
	assert.Equal(t, "příprava na zítra", text)
}

func TestResolveUnknownCategory(t *testing.T) {
	_, err := prompt.ResolveVariable("weather:today", &fakeSource{})
	var unknown *prompt.UnknownCategoryError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "weather", unknown.Category)
}

func TestResolveLeavesUnknownVariablesInPlace(t *testing.T) {
	src := &fakeSource{info: "třída 4.B"}

	text, resolved := prompt.Resolve("Info: {student_info}, počasí: {weather:today}", src)
	assert.Equal(t, "Info: třída 4.B, počasí: {weather:today}", text)
	assert.Equal(t, []string{"student_info"}, resolved)
}

func TestAvailableVariablesIncludesSubjectsAndWeeks(t *testing.T) {
	src := &fakeSource{
		marksData: testMarks(),
		reports:   map[int]string{16: "report"},
	}

	variables := prompt.AvailableVariables(src)

	names := make(map[string]bool)
	for _, v := range variables {
		names[v.Name] = true
	}
	assert.True(t, names["marks:cj"])
	assert.True(t, names["marks:m"])
	assert.True(t, names["gdrive:w16"])
	assert.True(t, names["timetable:tomorrow"])
}
