package storage

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/oto-macenauer/school-summary/internal/domain/mail"
	"github.com/oto-macenauer/school-summary/internal/platform/errors"
)

// MailRepository persists synced family mail. Implements mail.Store.
type MailRepository struct {
	db *gorm.DB
}

func NewMailRepository(db *gorm.DB) *MailRepository {
	return &MailRepository{db: db}
}

func (r *MailRepository) MessageExists(ctx context.Context, fileID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&MailRecord{}).
		Where("file_id = ?", fileID).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(errors.KindStorage, "mail.exists", "check message", err)
	}
	return count > 0, nil
}

func (r *MailRepository) SaveMessage(ctx context.Context, msg mail.Message) error {
	row := MailRecord{
		FileID:   msg.FileID,
		Subject:  msg.Subject,
		Sender:   msg.Sender,
		Date:     msg.Date,
		Body:     msg.Body,
		SyncedAt: time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return errors.Wrap(errors.KindStorage, "mail.save", "save message", err)
	}
	return nil
}

// AllMessages loads every stored mail message, newest first.
func (r *MailRepository) AllMessages(ctx context.Context) (mail.Data, error) {
	var rows []MailRecord
	err := r.db.WithContext(ctx).Order("date DESC").Find(&rows).Error
	if err != nil {
		return mail.Data{}, errors.Wrap(errors.KindStorage, "mail.all", "list messages", err)
	}

	data := mail.Data{Messages: make([]mail.Message, len(rows))}
	for i, row := range rows {
		data.Messages[i] = mail.Message{
			FileID:  row.FileID,
			Subject: row.Subject,
			Sender:  row.Sender,
			Date:    row.Date,
			Body:    row.Body,
		}
	}
	return data, nil
}
