package storage

import (
	"context"

	"gorm.io/gorm"

	"github.com/oto-macenauer/school-summary/internal/core/gdrive"
	"github.com/oto-macenauer/school-summary/internal/platform/errors"
)

// ReportRepository stores weekly school reports fetched from Google Drive.
type ReportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// SaveReport inserts or refreshes the report for its week.
func (r *ReportRepository) SaveReport(ctx context.Context, report gdrive.WeeklyReport, schoolYear string) error {
	row := WeekReport{
		WeekNumber: report.WeekNumber,
		SchoolYear: schoolYear,
		SourceFile: report.FileName,
		Content:    report.Content,
		FetchedAt:  report.FetchedAt,
	}

	var existing WeekReport
	err := r.db.WithContext(ctx).
		Where("week_number = ? AND school_year = ?", report.WeekNumber, schoolYear).
		First(&existing).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
			return errors.Wrap(errors.KindStorage, "report.save", "save report", err)
		}
	case err != nil:
		return errors.Wrap(errors.KindStorage, "report.save", "find report", err)
	default:
		row.ID = existing.ID
		if err := r.db.WithContext(ctx).Save(&row).Error; err != nil {
			return errors.Wrap(errors.KindStorage, "report.save", "update report", err)
		}
	}
	return nil
}

// ReportContent returns the stored text for a week, or "" when absent.
func (r *ReportRepository) ReportContent(ctx context.Context, week int, schoolYear string) (string, error) {
	var row WeekReport
	err := r.db.WithContext(ctx).
		Where("week_number = ? AND school_year = ?", week, schoolYear).
		First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(errors.KindStorage, "report.get", "find report", err)
	}
	return row.Content, nil
}

// LatestReportContent returns the most recent report's text, or "" when
// nothing is stored yet.
func (r *ReportRepository) LatestReportContent(ctx context.Context) (string, error) {
	var row WeekReport
	err := r.db.WithContext(ctx).
		Order("school_year DESC, week_number DESC").
		First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(errors.KindStorage, "report.latest", "find report", err)
	}
	return row.Content, nil
}

// AllReports lists stored reports newest first.
func (r *ReportRepository) AllReports(ctx context.Context) ([]WeekReport, error) {
	var rows []WeekReport
	err := r.db.WithContext(ctx).
		Order("school_year DESC, week_number DESC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "report.all", "list reports", err)
	}
	return rows, nil
}
