package prepare

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oto-macenauer/school-summary/internal/domain/summary"
	"github.com/oto-macenauer/school-summary/internal/domain/timetable"
)

func schoolWeek() *timetable.Week {
	return &timetable.Week{Days: []timetable.Day{
		{
			Date: time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC),
			Type: timetable.WorkDay,
			Lessons: []timetable.Lesson{
				{
					SubjectName:   "Matematika",
					SubjectAbbrev: "M",
					BeginTime:     "8:00",
					EndTime:       "8:45",
					RoomAbbrev:    "U5",
					TeacherName:   "Jan Novák",
					Theme:         "Zlomky",
				},
			},
		},
		{
			Date: time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC),
			Type: timetable.Holiday, Description: "Ředitelské volno",
		},
		{
			Date: time.Date(2026, time.March, 4, 0, 0, 0, 0, time.UTC),
			Type: timetable.WorkDay,
			Lessons: []timetable.Lesson{
				{SubjectName: "Český jazyk", SubjectAbbrev: "ČJ", BeginTime: "8:00", EndTime: "8:45"},
			},
		},
	}}
}

func TestNextSchoolDay(t *testing.T) {
	week := schoolWeek()

	// Sunday: Monday is a school day.
	sunday := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 2, NextSchoolDay(week, sunday).Day())

	// Monday: Tuesday is a holiday, so skip to Wednesday.
	monday := time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 4, NextSchoolDay(week, monday).Day())

	// No timetable: plain tomorrow.
	assert.Equal(t, 2, NextSchoolDay(nil, sunday).Day())
}

func TestFormatLessons(t *testing.T) {
	week := schoolWeek()

	text, count := FormatLessons(week, time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 1, count)
	assert.Contains(t, text, "- 8:00-8:45: Matematika (M) v U5 (Jan Novák) - téma: Zlomky")

	text, count = FormatLessons(week, time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC))
	assert.Zero(t, count)
	assert.Equal(t, "Volno: Ředitelské volno", text)

	text, count = FormatLessons(week, time.Date(2026, time.March, 9, 0, 0, 0, 0, time.UTC))
	assert.Zero(t, count)
	assert.Contains(t, text, "09.03.2026")

	text, count = FormatLessons(nil, time.Now())
	assert.Zero(t, count)
	assert.Equal(t, "Rozvrh není k dispozici.", text)
}

func TestFormatLessonsMarksChanges(t *testing.T) {
	week := &timetable.Week{Days: []timetable.Day{{
		Date: time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC),
		Type: timetable.WorkDay,
		Lessons: []timetable.Lesson{{
			SubjectName: "Fyzika", BeginTime: "9:00", EndTime: "9:45",
			Changed: true, ChangeDescription: "Odpadá",
		}},
	}}}

	text, _ := FormatLessons(week, time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC))
	assert.Contains(t, text, "[ZMĚNA: Odpadá]")
}

func TestBuildPrompt(t *testing.T) {
	target := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	out := BuildPrompt("Příprava na {day_name} {target_date}:\n{lessons}\n{messages}",
		nil, schoolWeek(), target)

	assert.Contains(t, out, "pondělí 02.03.2026")
	assert.Contains(t, out, "Matematika (M)")
	assert.Contains(t, out, "Žádné zprávy k dispozici.")
}

type fakeArchive struct {
	gotDaysBack int
	messages    []summary.MessageSummary
}

func (f *fakeArchive) MessagesBetween(string, time.Time, time.Time) ([]summary.MessageSummary, error) {
	return nil, nil
}

func (f *fakeArchive) RecentMessages(student string, daysBack int) ([]summary.MessageSummary, error) {
	f.gotDaysBack = daysBack
	return f.messages, nil
}

func TestRelevantMessagesDefaultsToTwoWeeks(t *testing.T) {
	archive := &fakeArchive{messages: []summary.MessageSummary{{Title: "A"}}}
	m := NewModule(archive, "Anna")

	msgs := m.RelevantMessages(0)
	require.Len(t, msgs, 1)
	assert.Equal(t, 14, archive.gotDaysBack)

	m.RelevantMessages(7)
	assert.Equal(t, 7, archive.gotDaysBack)

	assert.Nil(t, NewModule(nil, "Anna").RelevantMessages(0))
}
