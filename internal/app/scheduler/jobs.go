package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/oto-macenauer/school-summary/internal/app/students"
	"github.com/oto-macenauer/school-summary/internal/core/ai"
	"github.com/oto-macenauer/school-summary/internal/core/bakalari"
	"github.com/oto-macenauer/school-summary/internal/core/gdrive"
	"github.com/oto-macenauer/school-summary/internal/domain/mail"
	"github.com/oto-macenauer/school-summary/internal/domain/prepare"
	"github.com/oto-macenauer/school-summary/internal/domain/summary"
	"github.com/oto-macenauer/school-summary/internal/platform/logging"
)

func (s *Scheduler) refreshTimetable(ctx context.Context, sc *students.Context) error {
	week, err := sc.Timetable.Actual(ctx, time.Now())
	if err != nil {
		return err
	}
	sc.SetTimetable(week)
	s.logger.Debug("refreshed timetable",
		logging.Category(logging.CategoryScheduler),
		slog.String("student", sc.Name))
	return nil
}

func (s *Scheduler) refreshMarks(ctx context.Context, sc *students.Context) error {
	data, err := sc.Marks.FetchFull(ctx)
	if err != nil {
		return err
	}
	sc.SetMarks(data)
	s.logger.Debug("refreshed marks",
		logging.Category(logging.CategoryScheduler),
		slog.String("student", sc.Name))
	return nil
}

// refreshKomens fetches messages and archives the new ones. Some school
// accounts have komens disabled and answer 403; that is not an error.
func (s *Scheduler) refreshKomens(ctx context.Context, sc *students.Context) error {
	data, err := sc.Komens.FetchAll(ctx)
	if err != nil {
		var apiErr *bakalari.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusForbidden {
			s.logger.Debug("komens not available",
				logging.Category(logging.CategoryScheduler),
				slog.String("student", sc.Name))
			return nil
		}
		return err
	}
	sc.SetKomens(data)

	if _, err := s.manager.KomensRepo().ArchiveMessages(ctx, sc.Name, data.All()); err != nil {
		return err
	}
	s.logger.Debug("refreshed komens",
		logging.Category(logging.CategoryScheduler),
		slog.String("student", sc.Name))
	return nil
}

// weekReportContent serves the report for the week containing weekStart,
// preferring storage and falling back to a live Drive fetch.
func (s *Scheduler) weekReportContent(ctx context.Context, weekStart time.Time) string {
	drive := s.manager.Drive()
	if drive == nil {
		return ""
	}

	yearStart := gdrive.SchoolYearStart(weekStart)
	week := gdrive.SchoolWeekNumber(weekStart, yearStart)
	schoolYear := students.SchoolYearLabel(weekStart)

	stored, err := s.manager.ReportRepo().ReportContent(ctx, week, schoolYear)
	if err == nil && stored != "" {
		return stored
	}

	report, err := drive.WeekReport(ctx, week)
	if err != nil || report == nil {
		if err != nil {
			s.logger.Warn("failed to get weekly report",
				logging.Category(logging.CategoryDrive),
				slog.Int("week", week),
				slog.Any("error", err))
		}
		return ""
	}
	if err := s.manager.ReportRepo().SaveReport(ctx, *report, schoolYear); err != nil {
		s.logger.Warn("failed to store weekly report",
			logging.Category(logging.CategoryStorage),
			slog.Int("week", week),
			slog.Any("error", err))
	}
	return report.Content
}

// refreshSummary generates the last, current and next week summaries. The
// first run waits until timetable and marks data exist.
func (s *Scheduler) refreshSummary(ctx context.Context, sc *students.Context) error {
	if !sc.HasTimetable() || !sc.HasMarks() {
		s.logger.Info("summary waiting for timetable and marks",
			logging.Category(logging.CategoryScheduler),
			slog.String("student", sc.Name))
		if !s.waitForData(ctx, sc, true) {
			s.logger.Warn("summary timed out waiting for data",
				logging.Category(logging.CategoryScheduler),
				slog.String("student", sc.Name))
		}
	}

	week, _ := sc.TimetableData()
	marksData, _ := sc.MarksSnapshot()
	now := time.Now()

	for _, weekType := range []summary.WeekType{summary.WeekLast, summary.WeekCurrent, summary.WeekNext} {
		from, to := summary.WeekRange(now, weekType)
		messages := sc.Summary.WeekMessages(from, to)
		markList := summary.ExtractMarks(marksData, from, to)
		report := s.weekReportContent(ctx, from)

		promptText := summary.BuildPrompt(s.cfg.Prompts.Summary, summary.PromptInput{
			Messages:     messages,
			Timetable:    week,
			Marks:        markList,
			WeekStart:    from,
			WeekEnd:      to,
			WeekType:     weekType,
			GDriveReport: report,
			StudentInfo:  sc.Info,
		})

		text, err := s.manager.Generator().Generate(ctx, ai.Request{
			Prompt:            promptText,
			SystemInstruction: summary.SystemInstruction(),
		})
		if err != nil {
			return err
		}

		sc.SetSummary(&summary.Data{
			StudentName:   sc.Name,
			WeekType:      weekType,
			WeekStart:     from,
			WeekEnd:       to,
			SummaryText:   text,
			MessagesCount: len(messages),
			MarksCount:    len(markList),
			GeneratedAt:   time.Now(),
		})
	}

	s.logger.Info("refreshed summaries",
		logging.Category(logging.CategoryScheduler),
		slog.String("student", sc.Name))
	return nil
}

// refreshPrepare generates preparation texts for today and tomorrow. The
// first run waits until a timetable exists.
func (s *Scheduler) refreshPrepare(ctx context.Context, sc *students.Context) error {
	if !sc.HasTimetable() {
		s.logger.Info("prepare waiting for timetable",
			logging.Category(logging.CategoryScheduler),
			slog.String("student", sc.Name))
		if !s.waitForData(ctx, sc, false) {
			s.logger.Warn("prepare timed out waiting for data",
				logging.Category(logging.CategoryScheduler),
				slog.String("student", sc.Name))
		}
	}

	week, _ := sc.TimetableData()
	now := time.Now()

	targets := []struct {
		period prepare.Period
		date   time.Time
	}{
		{prepare.Today, now},
		{prepare.Tomorrow, now.AddDate(0, 0, 1)},
	}

	for _, target := range targets {
		messages := sc.Prepare.RelevantMessages(0)
		promptText := prepare.BuildPrompt(s.cfg.Prompts.Prepare, messages, week, target.date)

		text, err := s.manager.Generator().Generate(ctx, ai.Request{
			Prompt:            promptText,
			SystemInstruction: prepare.SystemInstruction(),
		})
		if err != nil {
			return err
		}

		_, lessonsCount := prepare.FormatLessons(week, target.date)
		sc.SetPrepare(&prepare.Data{
			StudentName:     sc.Name,
			TargetDate:      target.date,
			PreparationText: text,
			LessonsCount:    lessonsCount,
			MessagesCount:   len(messages),
			Period:          target.period,
			GeneratedAt:     time.Now(),
		})
	}

	s.logger.Info("refreshed preparation",
		logging.Category(logging.CategoryScheduler),
		slog.String("student", sc.Name))
	return nil
}

// refreshGDrive bulk-syncs every matching week report into storage.
func (s *Scheduler) refreshGDrive(ctx context.Context, sc *students.Context) error {
	drive := s.manager.Drive()
	if drive == nil {
		return nil
	}

	weeks, err := drive.AvailableWeeks(ctx)
	if err != nil {
		return err
	}

	synced := 0
	for _, week := range weeks {
		stored, err := s.manager.ReportRepo().ReportContent(ctx, week, s.manager.SchoolYear())
		if err != nil {
			return err
		}
		if stored != "" {
			continue
		}

		report, err := drive.WeekReport(ctx, week)
		if err != nil || report == nil {
			if err != nil {
				s.logger.Warn("failed to sync weekly report",
					logging.Category(logging.CategoryDrive),
					slog.Int("week", week),
					slog.Any("error", err))
			}
			continue
		}
		if err := s.manager.ReportRepo().SaveReport(ctx, *report, s.manager.SchoolYear()); err != nil {
			return err
		}
		synced++
	}

	if synced > 0 {
		s.logger.Info("synced new weekly reports",
			logging.Category(logging.CategoryDrive),
			slog.Int("count", synced))
	}
	return nil
}

func (s *Scheduler) refreshMail(ctx context.Context, _ *students.Context) error {
	drive := s.manager.Drive()
	if drive == nil {
		return nil
	}
	_, err := mail.Sync(ctx, drive, s.manager.MailRepo(), s.logger)
	return err
}

func (s *Scheduler) refreshCanteen(ctx context.Context, _ *students.Context) error {
	module := s.manager.Canteen()
	if module == nil {
		return nil
	}
	menu, err := module.FetchMenu(ctx)
	if err != nil {
		return err
	}
	s.manager.SetCanteenMenu(menu)
	s.logger.Debug("refreshed canteen menu",
		logging.Category(logging.CategoryScheduler))
	return nil
}
