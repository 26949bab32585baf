// Package timetable fetches and parses weekly timetables from the school API.
package timetable

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/oto-macenauer/school-summary/internal/core/bakalari"
)

// DayType classifies a timetable day.
type DayType string

const (
	WorkDay     DayType = "WorkDay"
	Holiday     DayType = "Holiday"
	Celebration DayType = "Celebration"
	DirectorDay DayType = "DirectorDay"
	Weekend     DayType = "Weekend"
	Undefined   DayType = "Undefined"
)

func dayTypeFromString(s string) DayType {
	switch DayType(s) {
	case WorkDay, Holiday, Celebration, DirectorDay, Weekend:
		return DayType(s)
	default:
		return Undefined
	}
}

// Lesson is a single lesson slot with resolved subject, teacher and room.
type Lesson struct {
	SubjectID         string `json:"-"`
	SubjectName       string `json:"name"`
	SubjectAbbrev     string `json:"abbrev"`
	TeacherName       string `json:"teacher,omitempty"`
	RoomAbbrev        string `json:"room,omitempty"`
	BeginTime         string `json:"begin_time"`
	EndTime           string `json:"end_time"`
	Theme             string `json:"theme,omitempty"`
	GroupAbbrev       string `json:"group,omitempty"`
	Changed           bool   `json:"is_changed"`
	ChangeDescription string `json:"change_description,omitempty"`
}

// Day is one day of the week with its lessons in chronological order.
type Day struct {
	Date        time.Time `json:"date"`
	Type        DayType   `json:"day_type"`
	Description string    `json:"description,omitempty"`
	Lessons     []Lesson  `json:"lessons"`
}

// SchoolDay reports whether lessons actually happen on this day.
func (d Day) SchoolDay() bool { return d.Type == WorkDay }

// SubjectNames lists the day's subjects in lesson order.
func (d Day) SubjectNames() []string {
	names := make([]string, len(d.Lessons))
	for i, l := range d.Lessons {
		names[i] = l.SubjectName
	}
	return names
}

// Week is a full week's timetable, days sorted by date.
type Week struct {
	Days []Day `json:"days"`
}

// SchoolDays returns only days with lessons.
func (w Week) SchoolDays() []Day {
	var out []Day
	for _, d := range w.Days {
		if d.SchoolDay() {
			out = append(out, d)
		}
	}
	return out
}

// AllSubjects returns the sorted set of subject names across the week.
func (w Week) AllSubjects() []string {
	set := map[string]struct{}{}
	for _, d := range w.Days {
		for _, l := range d.Lessons {
			set[l.SubjectName] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// DayFor returns the day matching the given date, if present.
func (w Week) DayFor(date time.Time) (Day, bool) {
	y, m, d := date.Date()
	for _, day := range w.Days {
		dy, dm, dd := day.Date.Date()
		if dy == y && dm == m && dd == d {
			return day, true
		}
	}
	return Day{}, false
}

// SubjectNameMapping maps abbreviations to full subject names.
func (w Week) SubjectNameMapping() map[string]string {
	mapping := map[string]string{}
	for _, d := range w.Days {
		for _, l := range d.Lessons {
			if l.SubjectAbbrev != "" && l.SubjectName != "" {
				mapping[l.SubjectAbbrev] = l.SubjectName
			}
		}
	}
	return mapping
}

// Module fetches timetables for one student.
type Module struct {
	client *bakalari.Client
	logger *slog.Logger
}

func NewModule(client *bakalari.Client, logger *slog.Logger) *Module {
	return &Module{client: client, logger: logger}
}

// Actual fetches the timetable for the week containing date. A zero date
// means today.
func (m *Module) Actual(ctx context.Context, date time.Time) (*Week, error) {
	if date.IsZero() {
		date = time.Now()
	}
	query := url.Values{"date": {date.Format("2006-01-02")}}
	raw, err := m.client.Get(ctx, bakalari.EndpointTimetableActual, query)
	if err != nil {
		return nil, err
	}
	return m.parse(raw)
}

// Permanent fetches the base timetable without substitutions.
func (m *Module) Permanent(ctx context.Context) (*Week, error) {
	raw, err := m.client.Get(ctx, bakalari.EndpointTimetablePermanent, nil)
	if err != nil {
		return nil, err
	}
	return m.parse(raw)
}

type apiRef struct {
	ID     string `json:"Id"`
	Name   string `json:"Name"`
	Abbrev string `json:"Abbrev"`
}

type apiHour struct {
	ID        int    `json:"Id"`
	BeginTime string `json:"BeginTime"`
	EndTime   string `json:"EndTime"`
}

type apiChange struct {
	Description string `json:"Description"`
}

type apiAtom struct {
	SubjectID   string     `json:"SubjectId"`
	TeacherID   string     `json:"TeacherId"`
	RoomID      string     `json:"RoomId"`
	HourID      int        `json:"HourId"`
	Theme       string     `json:"Theme"`
	GroupAbbrev string     `json:"GroupAbvrev"`
	Change      *apiChange `json:"Change"`
}

type apiDay struct {
	Date           string    `json:"Date"`
	DayType        string    `json:"DayType"`
	DayDescription string    `json:"DayDescription"`
	Atoms          []apiAtom `json:"Atoms"`
}

type apiTimetable struct {
	Days     []apiDay  `json:"Days"`
	Subjects []apiRef  `json:"Subjects"`
	Teachers []apiRef  `json:"Teachers"`
	Rooms    []apiRef  `json:"Rooms"`
	Hours    []apiHour `json:"Hours"`
}

func (m *Module) parse(raw json.RawMessage) (*Week, error) {
	var resp apiTimetable
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}

	subjects := refIndex(resp.Subjects)
	teachers := refIndex(resp.Teachers)
	rooms := refIndex(resp.Rooms)
	hours := map[int]apiHour{}
	for _, h := range resp.Hours {
		hours[h.ID] = h
	}

	week := &Week{}
	for _, dd := range resp.Days {
		dayDate, err := parseAPIDate(dd.Date)
		if err != nil {
			m.logger.Warn("invalid timetable date", slog.String("date", dd.Date))
			continue
		}

		day := Day{
			Date:        dayDate,
			Type:        dayTypeFromString(dd.DayType),
			Description: dd.DayDescription,
		}
		for _, atom := range dd.Atoms {
			if atom.SubjectID == "" {
				continue
			}
			subject := subjects[atom.SubjectID]
			hour := hours[atom.HourID]
			lesson := Lesson{
				SubjectID:     atom.SubjectID,
				SubjectName:   subject.Name,
				SubjectAbbrev: subject.Abbrev,
				TeacherName:   teachers[atom.TeacherID].Name,
				RoomAbbrev:    rooms[atom.RoomID].Abbrev,
				BeginTime:     hour.BeginTime,
				EndTime:       hour.EndTime,
				Theme:         atom.Theme,
				GroupAbbrev:   atom.GroupAbbrev,
			}
			if atom.Change != nil {
				lesson.Changed = true
				lesson.ChangeDescription = atom.Change.Description
			}
			day.Lessons = append(day.Lessons, lesson)
		}
		sort.SliceStable(day.Lessons, func(i, j int) bool {
			return day.Lessons[i].BeginTime < day.Lessons[j].BeginTime
		})
		week.Days = append(week.Days, day)
	}

	sort.SliceStable(week.Days, func(i, j int) bool {
		return week.Days[i].Date.Before(week.Days[j].Date)
	})
	return week, nil
}

func refIndex(refs []apiRef) map[string]apiRef {
	idx := make(map[string]apiRef, len(refs))
	for _, r := range refs {
		idx[r.ID] = r
	}
	return idx
}

func parseAPIDate(s string) (time.Time, error) {
	s = strings.TrimSuffix(s, "Z")
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Parse(time.RFC3339, s)
}
