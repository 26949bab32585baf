package mail_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oto-macenauer/school-summary/internal/core/gdrive"
	"github.com/oto-macenauer/school-summary/internal/domain/mail"
)

func TestParseMarkdown(t *testing.T) {
	content := `---
subject: "Třídní schůzky"
from: ucitelka@skola.cz
date: 2025-01-15T10:30:00
---

Vážení rodiče, zveme vás na třídní schůzky.`

	msg := mail.ParseMarkdown("file-1", content)
	assert.Equal(t, "file-1", msg.FileID)
	assert.Equal(t, "Třídní schůzky", msg.Subject)
	assert.Equal(t, "ucitelka@skola.cz", msg.Sender)
	require.NotNil(t, msg.Date)
	assert.Equal(t, 15, msg.Date.Day())
	assert.Equal(t, "Vážení rodiče, zveme vás na třídní schůzky.", msg.Body)
}

func TestParseMarkdownWithoutFrontmatter(t *testing.T) {
	msg := mail.ParseMarkdown("file-2", "just a plain body")
	assert.Equal(t, "(No subject)", msg.Subject)
	assert.Equal(t, "(Unknown sender)", msg.Sender)
	assert.Nil(t, msg.Date)
	assert.Equal(t, "just a plain body", msg.Body)
}

func TestDataSorted(t *testing.T) {
	older := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	data := mail.Data{Messages: []mail.Message{
		{FileID: "a", Date: &older},
		{FileID: "b"},
		{FileID: "c", Date: &newer},
	}}

	sorted := data.Sorted()
	assert.Equal(t, "c", sorted[0].FileID)
	assert.Equal(t, "a", sorted[1].FileID)
	assert.Equal(t, "b", sorted[2].FileID)
}

type memStore struct {
	saved map[string]mail.Message
}

func newMemStore() *memStore { return &memStore{saved: make(map[string]mail.Message)} }

func (s *memStore) MessageExists(_ context.Context, fileID string) (bool, error) {
	_, ok := s.saved[fileID]
	return ok, nil
}

func (s *memStore) SaveMessage(_ context.Context, msg mail.Message) error {
	s.saved[msg.FileID] = msg
	return nil
}

func (s *memStore) AllMessages(_ context.Context) (mail.Data, error) {
	var data mail.Data
	for _, msg := range s.saved {
		data.Messages = append(data.Messages, msg)
	}
	return data, nil
}

type fakeSource struct {
	files    []gdrive.File
	contents map[string]string
}

func (f *fakeSource) MailFiles(context.Context) ([]gdrive.File, error) { return f.files, nil }

func (f *fakeSource) FileContent(_ context.Context, file gdrive.File) (string, error) {
	return f.contents[file.ID], nil
}

func TestSyncSkipsExistingMessages(t *testing.T) {
	source := &fakeSource{
		files: []gdrive.File{
			{ID: "m-1", Name: "mail-001.md"},
			{ID: "m-2", Name: "mail-002.md"},
		},
		contents: map[string]string{
			"m-1": "---\nsubject: First\n---\nbody one",
			"m-2": "---\nsubject: Second\n---\nbody two",
		},
	}
	store := newMemStore()
	logger := slog.New(slog.DiscardHandler)

	synced, err := mail.Sync(context.Background(), source, store, logger)
	require.NoError(t, err)
	assert.Equal(t, 2, synced)

	synced, err = mail.Sync(context.Background(), source, store, logger)
	require.NoError(t, err)
	assert.Equal(t, 0, synced)
	assert.Len(t, store.saved, 2)
}
