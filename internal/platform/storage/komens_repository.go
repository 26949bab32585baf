package storage

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/oto-macenauer/school-summary/internal/domain/komens"
	"github.com/oto-macenauer/school-summary/internal/domain/summary"
	"github.com/oto-macenauer/school-summary/internal/platform/errors"
)

// KomensRepository archives komens messages per student and serves them
// back for prompt building. Implements summary.MessageArchive.
type KomensRepository struct {
	db *gorm.DB
}

func NewKomensRepository(db *gorm.DB) *KomensRepository {
	return &KomensRepository{db: db}
}

// ArchiveMessages inserts messages that are not stored yet and returns the
// number of new rows.
func (r *KomensRepository) ArchiveMessages(ctx context.Context, student string, messages []komens.Message) (int, error) {
	saved := 0
	for _, msg := range messages {
		var count int64
		err := r.db.WithContext(ctx).Model(&KomensMessage{}).
			Where("student = ? AND message_id = ?", student, msg.ID).
			Count(&count).Error
		if err != nil {
			return saved, errors.Wrap(errors.KindStorage, "komens.archive", "check existing message", err)
		}
		if count > 0 {
			continue
		}

		sender := ""
		if msg.Sender != nil {
			sender = msg.Sender.Name
		}
		var attachments datatypes.JSON
		if len(msg.Attachments) > 0 {
			if raw, err := json.Marshal(msg.Attachments); err == nil {
				attachments = datatypes.JSON(raw)
			}
		}
		row := KomensMessage{
			Student:     student,
			MessageID:   msg.ID,
			Title:       msg.Title,
			Sender:      sender,
			SentDate:    msg.SentDate,
			Type:        msg.Type,
			Read:        msg.Read,
			Confirmed:   msg.Confirmed,
			BodyText:    msg.PlainText(),
			Content:     msg.Markdown(),
			Attachments: attachments,
			SavedAt:     time.Now(),
		}
		if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
			return saved, errors.Wrap(errors.KindStorage, "komens.archive", "save message", err)
		}
		saved++
	}
	return saved, nil
}

// MessagesBetween returns messages for a student sent within [from, to],
// newest first.
func (r *KomensRepository) MessagesBetween(student string, from, to time.Time) ([]summary.MessageSummary, error) {
	var rows []KomensMessage
	err := r.db.
		Where("student = ? AND sent_date >= ? AND sent_date <= ?", student, from, to).
		Order("sent_date DESC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "komens.between", "query messages", err)
	}
	return toSummaries(rows), nil
}

// RecentMessages returns messages from the last daysBack days, newest first.
func (r *KomensRepository) RecentMessages(student string, daysBack int) ([]summary.MessageSummary, error) {
	since := time.Now().AddDate(0, 0, -daysBack)
	var rows []KomensMessage
	err := r.db.
		Where("student = ? AND sent_date >= ?", student, since).
		Order("sent_date DESC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "komens.recent", "query messages", err)
	}
	return toSummaries(rows), nil
}

// MessageCount returns the number of archived messages for a student.
func (r *KomensRepository) MessageCount(ctx context.Context, student string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&KomensMessage{}).
		Where("student = ?", student).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(errors.KindStorage, "komens.count", "count messages", err)
	}
	return count, nil
}

func toSummaries(rows []KomensMessage) []summary.MessageSummary {
	out := make([]summary.MessageSummary, len(rows))
	for i, row := range rows {
		out[i] = summary.MessageSummary{
			Title:   row.Title,
			Sender:  row.Sender,
			Date:    row.SentDate,
			Preview: row.BodyText,
		}
	}
	return out
}
