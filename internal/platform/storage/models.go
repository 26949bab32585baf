package storage

import (
	"time"

	"gorm.io/datatypes"
)

// KomensMessage is an archived komens message. Messages are immutable once
// fetched, so rows are only ever inserted.
type KomensMessage struct {
	ID        uint       `gorm:"primaryKey"`
	Student   string     `gorm:"type:varchar(100);uniqueIndex:idx_student_message;not null" json:"student"`
	MessageID string     `gorm:"type:varchar(100);uniqueIndex:idx_student_message;not null" json:"message_id"`
	Title     string     `gorm:"not null"                                                   json:"title"`
	Sender    string     `                                                                  json:"sender"`
	SentDate  *time.Time `gorm:"index"                                                      json:"sent_date,omitempty"`
	Type      string     `gorm:"type:varchar(50)"                                           json:"type"`
	Read      bool       `                                                                  json:"read"`
	Confirmed bool       `                                                                  json:"confirmed"`
	BodyText  string     `                                                                  json:"body_text"`
	Content   string     `                                                                  json:"content"`
	// Attachment metadata as delivered by the API, kept verbatim.
	Attachments datatypes.JSON `json:"attachments,omitempty"`
	SavedAt     time.Time      `json:"saved_at"`
}

// WeekReport is a stored weekly school report pulled from Google Drive.
type WeekReport struct {
	ID         uint      `gorm:"primaryKey"`
	WeekNumber int       `gorm:"uniqueIndex:idx_week_year;not null"                   json:"week_number"`
	SchoolYear string    `gorm:"type:varchar(20);uniqueIndex:idx_week_year;not null"  json:"school_year"`
	SourceFile string    `                                                            json:"source_file"`
	Content    string    `                                                            json:"content"`
	FetchedAt  time.Time `                                                            json:"fetched_at"`
}

// MailRecord is a synced family email keyed by its Drive file id.
type MailRecord struct {
	ID       uint       `gorm:"primaryKey"`
	FileID   string     `gorm:"type:varchar(100);uniqueIndex;not null" json:"file_id"`
	Subject  string     `                                              json:"subject"`
	Sender   string     `                                              json:"sender"`
	Date     *time.Time `gorm:"index"                                  json:"date,omitempty"`
	Body     string     `                                              json:"body"`
	SyncedAt time.Time  `                                              json:"synced_at"`
}
