// Package mail handles family email messages exported to Google Drive as
// markdown files and synced into local storage.
package mail

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/oto-macenauer/school-summary/internal/core/gdrive"
	"github.com/oto-macenauer/school-summary/internal/platform/logging"
)

// Message is one email parsed from a markdown file with YAML frontmatter.
type Message struct {
	FileID  string     `json:"id"`
	Subject string     `json:"subject"`
	Sender  string     `json:"sender"`
	Date    *time.Time `json:"date"`
	Body    string     `json:"body"`
}

// ParseMarkdown extracts a Message from frontmatter-prefixed markdown:
//
//	---
//	subject: Email Subject
//	from: sender@example.com
//	date: 2025-01-15T10:30:00
//	---
//
//	Email body text here...
func ParseMarkdown(fileID, content string) Message {
	msg := Message{FileID: fileID, Body: content}

	parts := strings.SplitN(content, "---", 3)
	if len(parts) >= 3 {
		msg.Body = strings.TrimSpace(parts[2])
		for _, line := range strings.Split(strings.TrimSpace(parts[1]), "\n") {
			key, value, found := strings.Cut(line, ":")
			if !found {
				continue
			}
			key = strings.ToLower(strings.TrimSpace(key))
			value = strings.Trim(strings.TrimSpace(value), `"'`)
			switch key {
			case "subject":
				msg.Subject = value
			case "from":
				msg.Sender = value
			case "date":
				if t, err := parseMailDate(value); err == nil {
					msg.Date = &t
				}
			}
		}
	}

	if msg.Subject == "" {
		msg.Subject = "(No subject)"
	}
	if msg.Sender == "" {
		msg.Sender = "(Unknown sender)"
	}
	return msg
}

func parseMailDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04:05", value)
}

// Data holds all stored messages, newest first.
type Data struct {
	Messages []Message `json:"messages"`
}

func (d Data) TotalCount() int { return len(d.Messages) }

// Sorted returns the messages newest first. Messages without a date sort
// last.
func (d Data) Sorted() []Message {
	out := make([]Message, len(d.Messages))
	copy(out, d.Messages)
	sort.SliceStable(out, func(i, j int) bool {
		switch {
		case out[i].Date == nil:
			return false
		case out[j].Date == nil:
			return true
		default:
			return out[i].Date.After(*out[j].Date)
		}
	})
	return out
}

// Store persists parsed messages keyed by their Drive file id.
type Store interface {
	MessageExists(ctx context.Context, fileID string) (bool, error)
	SaveMessage(ctx context.Context, msg Message) error
	AllMessages(ctx context.Context) (Data, error)
}

// DriveSource lists and downloads the markdown mail files.
type DriveSource interface {
	MailFiles(ctx context.Context) ([]gdrive.File, error)
	FileContent(ctx context.Context, file gdrive.File) (string, error)
}

// Sync pulls new mail files from Drive into the store and returns the
// number of newly saved messages. Individual file failures are logged and
// skipped.
func Sync(ctx context.Context, source DriveSource, store Store, logger *slog.Logger) (int, error) {
	files, err := source.MailFiles(ctx)
	if err != nil {
		return 0, err
	}

	synced := 0
	for _, file := range files {
		exists, err := store.MessageExists(ctx, file.ID)
		if err != nil {
			return synced, err
		}
		if exists {
			continue
		}

		content, err := source.FileContent(ctx, file)
		if err != nil {
			logger.Warn("failed to sync mail file",
				logging.Category(logging.CategoryDrive),
				slog.String("file", file.Name),
				slog.Any("error", err))
			continue
		}
		msg := ParseMarkdown(file.ID, content)
		if err := store.SaveMessage(ctx, msg); err != nil {
			logger.Warn("failed to save mail message",
				logging.Category(logging.CategoryStorage),
				slog.String("file", file.Name),
				slog.Any("error", err))
			continue
		}
		synced++
	}

	if synced > 0 {
		logger.Info("synced new mail messages",
			logging.Category(logging.CategoryDrive),
			slog.Int("count", synced))
	}
	return synced, nil
}
