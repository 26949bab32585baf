package students

import (
	"context"
	"sync"
	"time"

	"github.com/oto-macenauer/school-summary/internal/core/bakalari"
	"github.com/oto-macenauer/school-summary/internal/core/gdrive"
	"github.com/oto-macenauer/school-summary/internal/domain/komens"
	"github.com/oto-macenauer/school-summary/internal/domain/marks"
	"github.com/oto-macenauer/school-summary/internal/domain/prepare"
	"github.com/oto-macenauer/school-summary/internal/domain/summary"
	"github.com/oto-macenauer/school-summary/internal/domain/timetable"
	"github.com/oto-macenauer/school-summary/internal/platform/storage"
)

// Context holds everything belonging to one student: the authenticated
// API client, the domain modules bound to it, and the cached snapshots
// the scheduler keeps fresh. Snapshot access is guarded by a mutex; the
// modules themselves are safe for concurrent use.
type Context struct {
	Name string
	Info string

	Client    *bakalari.Client
	Timetable *timetable.Module
	Marks     *marks.Module
	Komens    *komens.Module
	Summary   *summary.Module
	Prepare   *prepare.Module

	reports    *storage.ReportRepository
	schoolYear string

	mu               sync.RWMutex
	week             *timetable.Week
	marksData        *marks.Data
	komensData       *komens.Data
	summaries        map[summary.WeekType]*summary.Data
	prepares         map[prepare.Period]*prepare.Data
	timetableUpdated time.Time
	marksUpdated     time.Time
	komensUpdated    time.Time
	summaryUpdated   time.Time
	prepareUpdated   time.Time
}

func (c *Context) SetTimetable(week *timetable.Week) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.week = week
	c.timetableUpdated = time.Now()
}

func (c *Context) TimetableData() (*timetable.Week, time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.week, c.timetableUpdated
}

func (c *Context) SetMarks(data *marks.Data) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.marksData = data
	c.marksUpdated = time.Now()
}

func (c *Context) MarksSnapshot() (*marks.Data, time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.marksData, c.marksUpdated
}

func (c *Context) SetKomens(data *komens.Data) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.komensData = data
	c.komensUpdated = time.Now()
}

func (c *Context) KomensSnapshot() (*komens.Data, time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.komensData, c.komensUpdated
}

func (c *Context) SetSummary(data *summary.Data) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summaries[data.WeekType] = data
	c.summaryUpdated = time.Now()
}

func (c *Context) SummaryFor(week summary.WeekType) (*summary.Data, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.summaries[week]
	return data, ok
}

func (c *Context) Summaries() (map[summary.WeekType]*summary.Data, time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[summary.WeekType]*summary.Data, len(c.summaries))
	for k, v := range c.summaries {
		out[k] = v
	}
	return out, c.summaryUpdated
}

func (c *Context) SetPrepare(data *prepare.Data) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prepares[data.Period] = data
	c.prepareUpdated = time.Now()
}

func (c *Context) PrepareFor(period prepare.Period) (*prepare.Data, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.prepares[period]
	return data, ok
}

func (c *Context) Prepares() (map[prepare.Period]*prepare.Data, time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[prepare.Period]*prepare.Data, len(c.prepares))
	for k, v := range c.prepares {
		out[k] = v
	}
	return out, c.prepareUpdated
}

// SnapshotTimes reports when each snapshot was last refreshed, in one
// consistent read. Zero times mean the first fetch has not happened yet.
func (c *Context) SnapshotTimes() (tt, mk, km, sm, pp time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.timetableUpdated, c.marksUpdated, c.komensUpdated, c.summaryUpdated, c.prepareUpdated
}

// HasTimetable and HasMarks report whether the first fetch of the
// respective job has completed. The summary and prepare jobs gate on
// these.
func (c *Context) HasTimetable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.week != nil
}

func (c *Context) HasMarks() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.marksData != nil
}

// The methods below implement prompt.Source.

func (c *Context) WeekTimetableText() string {
	week, _ := c.TimetableData()
	return summary.FormatTimetable(week)
}

func (c *Context) DayTimetableText(day time.Time) string {
	week, _ := c.TimetableData()
	text, _ := prepare.FormatLessons(week, day)
	return text
}

func (c *Context) MarksData() *marks.Data {
	data, _ := c.MarksSnapshot()
	return data
}

func (c *Context) KomensData() *komens.Data {
	data, _ := c.KomensSnapshot()
	return data
}

func (c *Context) RecentMessagesText(daysBack, limit int) string {
	messages := c.Summary.RecentMessages(daysBack)
	if len(messages) > limit {
		messages = messages[:limit]
	}
	return summary.FormatMessages(messages)
}

func (c *Context) LatestReportText() string {
	if c.reports == nil {
		return ""
	}
	text, err := c.reports.LatestReportContent(context.Background())
	if err != nil {
		return ""
	}
	return text
}

func (c *Context) WeekReportText(week int) string {
	if c.reports == nil {
		return ""
	}
	text, err := c.reports.ReportContent(context.Background(), week, c.schoolYear)
	if err != nil {
		return ""
	}
	return text
}

func (c *Context) CurrentSchoolWeek() int {
	now := time.Now()
	return gdrive.SchoolWeekNumber(now, gdrive.SchoolYearStart(now))
}

func (c *Context) StoredReportWeeks() []int {
	if c.reports == nil {
		return nil
	}
	rows, err := c.reports.AllReports(context.Background())
	if err != nil {
		return nil
	}
	weeks := make([]int, 0, len(rows))
	for _, row := range rows {
		weeks = append(weeks, row.WeekNumber)
	}
	return weeks
}

func (c *Context) SummaryText(week summary.WeekType) (string, bool) {
	data, ok := c.SummaryFor(week)
	if !ok {
		return "", false
	}
	return data.SummaryText, true
}

func (c *Context) PrepareText(period prepare.Period) (string, bool) {
	data, ok := c.PrepareFor(period)
	if !ok {
		return "", false
	}
	return data.PreparationText, true
}

func (c *Context) StudentInfo() string { return c.Info }
