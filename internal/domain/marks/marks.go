// Package marks fetches and parses grades from the school API.
package marks

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/oto-macenauer/school-summary/internal/core/bakalari"
)

// Mark is a single grade.
type Mark struct {
	ID         string     `json:"id"`
	Date       *time.Time `json:"date,omitempty"`
	EditDate   *time.Time `json:"-"`
	Caption    string     `json:"caption"`
	Text       string     `json:"mark_text"`
	Weight     int        `json:"weight"`
	SubjectID  string     `json:"-"`
	TeacherID  string     `json:"-"`
	TypeCode   string     `json:"-"`
	TypeNote   string     `json:"type_note,omitempty"`
	New        bool       `json:"is_new"`
	Points     bool       `json:"is_points"`
	PointsText string     `json:"points_text,omitempty"`
	MaxPoints  int        `json:"max_points,omitempty"`
}

// NumericValue converts Czech grade notation to a number. A trailing minus
// adds 0.5, a trailing plus subtracts 0.25, so "1-" is 1.5 and "2+" is 1.75.
// Returns false for non-numeric marks.
func (m Mark) NumericValue() (float64, bool) {
	text := strings.TrimSpace(m.Text)
	if text == "" {
		return 0, false
	}
	if v, err := strconv.ParseFloat(text, 64); err == nil {
		return v, true
	}

	base, err := strconv.ParseFloat(strings.TrimRight(text, "+-"), 64)
	if err != nil {
		return 0, false
	}
	switch {
	case strings.HasSuffix(text, "-"):
		return base + 0.5, true
	case strings.HasSuffix(text, "+"):
		return base - 0.25, true
	default:
		return base, true
	}
}

// SubjectMarks groups a subject's marks.
type SubjectMarks struct {
	SubjectID     string `json:"-"`
	SubjectName   string `json:"name"`
	SubjectAbbrev string `json:"abbrev"`
	AverageText   string `json:"average_text"`
	Marks         []Mark `json:"marks"`
}

// Average parses the server-provided average text.
func (s SubjectMarks) Average() (float64, bool) {
	clean := strings.ReplaceAll(strings.TrimSpace(s.AverageText), ",", ".")
	if clean == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// CalculatedAverage computes the weighted average of numeric marks.
func (s SubjectMarks) CalculatedAverage() (float64, bool) {
	totalWeight := 0
	weightedSum := 0.0
	for _, m := range s.Marks {
		if v, ok := m.NumericValue(); ok {
			weightedSum += v * float64(m.Weight)
			totalWeight += m.Weight
		}
	}
	if totalWeight == 0 {
		return 0, false
	}
	return round2(weightedSum / float64(totalWeight)), true
}

// NewMarksCount counts unread marks.
func (s SubjectMarks) NewMarksCount() int {
	n := 0
	for _, m := range s.Marks {
		if m.New {
			n++
		}
	}
	return n
}

// FinalMark is a semester certificate mark.
type FinalMark struct {
	SubjectID     string `json:"-"`
	SubjectName   string `json:"name"`
	SubjectAbbrev string `json:"abbrev"`
	Text          string `json:"mark_text"`
	Semester      string `json:"semester"`
	Final         bool   `json:"is_final"`
}

// Data contains all marks for one student.
type Data struct {
	Subjects   []SubjectMarks `json:"subjects"`
	FinalMarks []FinalMark    `json:"final_marks,omitempty"`
}

// TotalNewMarks counts unread marks across all subjects.
func (d *Data) TotalNewMarks() int {
	n := 0
	for _, s := range d.Subjects {
		n += s.NewMarksCount()
	}
	return n
}

// OverallAverage averages the server-provided subject averages.
func (d *Data) OverallAverage() (float64, bool) {
	sum := 0.0
	n := 0
	for _, s := range d.Subjects {
		if v, ok := s.Average(); ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return round2(sum / float64(n)), true
}

// SubjectByName finds a subject case-insensitively.
func (d *Data) SubjectByName(name string) (SubjectMarks, bool) {
	for _, s := range d.Subjects {
		if strings.EqualFold(s.SubjectName, name) {
			return s, true
		}
	}
	return SubjectMarks{}, false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Module fetches marks for one student.
type Module struct {
	client *bakalari.Client
	logger *slog.Logger
}

func NewModule(client *bakalari.Client, logger *slog.Logger) *Module {
	return &Module{client: client, logger: logger}
}

// Fetch returns current marks grouped by subject.
func (m *Module) Fetch(ctx context.Context) (*Data, error) {
	raw, err := m.client.Get(ctx, bakalari.EndpointMarks, nil)
	if err != nil {
		return nil, err
	}
	return parseMarks(raw)
}

// FetchFull returns current marks plus final certificate marks. A failure on
// final marks is logged and tolerated.
func (m *Module) FetchFull(ctx context.Context) (*Data, error) {
	data, err := m.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	finals, err := m.FetchFinal(ctx)
	if err != nil {
		m.logger.Warn("fetching final marks failed", slog.String("error", err.Error()))
		return data, nil
	}
	data.FinalMarks = finals
	return data, nil
}

// FetchFinal returns final certificate marks.
func (m *Module) FetchFinal(ctx context.Context) ([]FinalMark, error) {
	raw, err := m.client.Get(ctx, bakalari.EndpointMarksFinal, nil)
	if err != nil {
		return nil, err
	}
	return parseFinalMarks(raw)
}

// NewCount returns the number of unread marks according to the server.
func (m *Module) NewCount(ctx context.Context) (int, error) {
	raw, err := m.client.Get(ctx, bakalari.EndpointMarksCountNew, nil)
	if err != nil {
		return 0, err
	}
	var resp struct {
		Count int `json:"Count"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

type apiMark struct {
	ID         string `json:"Id"`
	MarkDate   string `json:"MarkDate"`
	EditDate   string `json:"EditDate"`
	Caption    string `json:"Caption"`
	MarkText   string `json:"MarkText"`
	Weight     int    `json:"Weight"`
	SubjectID  string `json:"SubjectId"`
	TeacherID  string `json:"TeacherId"`
	Type       string `json:"Type"`
	TypeNote   string `json:"TypeNote"`
	IsNew      bool   `json:"IsNew"`
	IsPoints   bool   `json:"IsPoints"`
	PointsText string `json:"PointsText"`
	MaxPoints  int    `json:"MaxPoints"`
}

type apiSubjectMarks struct {
	Subject struct {
		ID     string `json:"Id"`
		Name   string `json:"Name"`
		Abbrev string `json:"Abbrev"`
	} `json:"Subject"`
	AverageText string    `json:"AverageText"`
	Marks       []apiMark `json:"Marks"`
}

func parseMarks(raw json.RawMessage) (*Data, error) {
	var resp struct {
		Subjects []apiSubjectMarks `json:"Subjects"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}

	data := &Data{}
	for _, sd := range resp.Subjects {
		subject := SubjectMarks{
			SubjectID:     sd.Subject.ID,
			SubjectName:   sd.Subject.Name,
			SubjectAbbrev: sd.Subject.Abbrev,
			AverageText:   sd.AverageText,
		}
		for _, md := range sd.Marks {
			mark := Mark{
				ID:         md.ID,
				Caption:    md.Caption,
				Text:       md.MarkText,
				Weight:     md.Weight,
				SubjectID:  md.SubjectID,
				TeacherID:  md.TeacherID,
				TypeCode:   md.Type,
				TypeNote:   md.TypeNote,
				New:        md.IsNew,
				Points:     md.IsPoints,
				PointsText: md.PointsText,
				MaxPoints:  md.MaxPoints,
			}
			if mark.Weight == 0 {
				mark.Weight = 1
			}
			if t, ok := parseAPITime(md.MarkDate); ok {
				mark.Date = &t
			}
			if t, ok := parseAPITime(md.EditDate); ok {
				mark.EditDate = &t
			}
			subject.Marks = append(subject.Marks, mark)
		}
		data.Subjects = append(data.Subjects, subject)
	}

	sort.SliceStable(data.Subjects, func(i, j int) bool {
		return data.Subjects[i].SubjectName < data.Subjects[j].SubjectName
	})
	return data, nil
}

func parseFinalMarks(raw json.RawMessage) ([]FinalMark, error) {
	var resp struct {
		Subjects []struct {
			ID     string `json:"Id"`
			Name   string `json:"Name"`
			Abbrev string `json:"Abbrev"`
		} `json:"Subjects"`
		Certificates []struct {
			Marks []struct {
				SubjectID string `json:"SubjectId"`
				MarkText  string `json:"MarkText"`
				Semester  string `json:"Semester"`
				IsFinal   bool   `json:"IsFinal"`
			} `json:"Marks"`
		} `json:"Certificates"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}

	subjects := map[string]struct{ Name, Abbrev string }{}
	for _, s := range resp.Subjects {
		subjects[s.ID] = struct{ Name, Abbrev string }{s.Name, s.Abbrev}
	}

	var finals []FinalMark
	for _, cert := range resp.Certificates {
		for _, md := range cert.Marks {
			subject := subjects[md.SubjectID]
			finals = append(finals, FinalMark{
				SubjectID:     md.SubjectID,
				SubjectName:   subject.Name,
				SubjectAbbrev: subject.Abbrev,
				Text:          md.MarkText,
				Semester:      md.Semester,
				Final:         md.IsFinal,
			})
		}
	}
	return finals, nil
}

func parseAPITime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	s = strings.TrimSuffix(s, "Z")
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
