package timetable

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oto-macenauer/school-summary/internal/core/bakalari"
)

const weekFixture = `{
	"Days": [
		{
			"Date": "2026-03-03T00:00:00+01:00",
			"DayType": "WorkDay",
			"Atoms": [
				{"SubjectId": "MA", "TeacherId": "T1", "RoomId": "R1", "HourId": 2, "Theme": "Zlomky"},
				{"SubjectId": "CJ", "TeacherId": "T2", "RoomId": "R1", "HourId": 1,
				 "Change": {"Description": "Suplování"}},
				{"SubjectId": "", "HourId": 3}
			]
		},
		{
			"Date": "2026-03-02T00:00:00+01:00",
			"DayType": "Holiday",
			"DayDescription": "Jarní prázdniny",
			"Atoms": []
		}
	],
	"Subjects": [
		{"Id": "MA", "Name": "Matematika", "Abbrev": "M"},
		{"Id": "CJ", "Name": "Český jazyk", "Abbrev": "ČJ"}
	],
	"Teachers": [
		{"Id": "T1", "Name": "Jan Novák"},
		{"Id": "T2", "Name": "Eva Malá"}
	],
	"Rooms": [{"Id": "R1", "Abbrev": "U5"}],
	"Hours": [
		{"Id": 1, "BeginTime": "8:00", "EndTime": "8:45"},
		{"Id": 2, "BeginTime": "8:55", "EndTime": "9:40"}
	]
}`

func parseFixture(t *testing.T) *Week {
	t.Helper()
	m := NewModule(nil, slog.New(slog.DiscardHandler))
	week, err := m.parse(json.RawMessage(weekFixture))
	require.NoError(t, err)
	return week
}

func TestParseResolvesReferences(t *testing.T) {
	week := parseFixture(t)
	require.Len(t, week.Days, 2)

	// Days come back sorted by date, so the holiday is first.
	holiday := week.Days[0]
	assert.Equal(t, Holiday, holiday.Type)
	assert.Equal(t, "Jarní prázdniny", holiday.Description)
	assert.False(t, holiday.SchoolDay())

	school := week.Days[1]
	require.Len(t, school.Lessons, 2, "the atom without a subject is dropped")
	assert.True(t, school.SchoolDay())

	first := school.Lessons[0]
	assert.Equal(t, "Český jazyk", first.SubjectName)
	assert.Equal(t, "8:00", first.BeginTime)
	assert.True(t, first.Changed)
	assert.Equal(t, "Suplování", first.ChangeDescription)

	second := school.Lessons[1]
	assert.Equal(t, "Matematika", second.SubjectName)
	assert.Equal(t, "Jan Novák", second.TeacherName)
	assert.Equal(t, "U5", second.RoomAbbrev)
	assert.Equal(t, "Zlomky", second.Theme)
}

func TestWeekHelpers(t *testing.T) {
	week := parseFixture(t)

	assert.Equal(t, []string{"Matematika", "Český jazyk"}, week.AllSubjects())
	assert.Len(t, week.SchoolDays(), 1)

	mapping := week.SubjectNameMapping()
	assert.Equal(t, "Matematika", mapping["M"])
	assert.Equal(t, "Český jazyk", mapping["ČJ"])

	day, ok := week.DayFor(time.Date(2026, time.March, 3, 15, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, []string{"Český jazyk", "Matematika"}, day.SubjectNames())

	_, ok = week.DayFor(time.Date(2026, time.March, 9, 0, 0, 0, 0, time.UTC))
	assert.False(t, ok)
}

func TestDayTypeFromString(t *testing.T) {
	assert.Equal(t, WorkDay, dayTypeFromString("WorkDay"))
	assert.Equal(t, Weekend, dayTypeFromString("Weekend"))
	assert.Equal(t, Undefined, dayTypeFromString("SomethingNew"))
}

func TestActualSendsDateQuery(t *testing.T) {
	var gotDate string
	mux := http.NewServeMux()
	mux.HandleFunc(bakalari.LoginEndpoint, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "a", "refresh_token": "r", "expires_in": 3599,
		})
	})
	mux.HandleFunc(bakalari.EndpointTimetableActual, func(w http.ResponseWriter, r *http.Request) {
		gotDate = r.URL.Query().Get("date")
		w.Write([]byte(weekFixture))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := bakalari.NewClient(srv.URL, "user", "pass", bakalari.Options{
		Logger: slog.New(slog.DiscardHandler),
	})
	require.NoError(t, client.Login(context.Background()))

	m := NewModule(client, slog.New(slog.DiscardHandler))
	week, err := m.Actual(context.Background(), time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "2026-03-03", gotDate)
	assert.Len(t, week.Days, 2)
}
