package komens

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oto-macenauer/school-summary/internal/core/bakalari"
)

func TestPlainTextStripsHTML(t *testing.T) {
	m := Message{Text: "<p>Mil&iacute; rodiče,</p> <p>třídní   schůzky <br/>budou v úterý.</p>"}
	assert.Equal(t, "Milí rodiče, třídní schůzky budou v úterý.", m.PlainText())
}

func TestCleanTextKeepsParagraphs(t *testing.T) {
	m := Message{Text: "<p>První odstavec.</p><p>Druhý<br/>řádek.</p>"}
	assert.Equal(t, "První odstavec.\n\nDruhý\nřádek.", m.CleanText())
}

func TestMarkdownRendering(t *testing.T) {
	sent := time.Date(2026, time.March, 2, 8, 30, 0, 0, time.UTC)
	m := Message{
		ID:       "42",
		Title:    "Třídní schůzky",
		Text:     "<p>V úterý v 17:00.</p>",
		SentDate: &sent,
		Sender:   &Sender{Name: "Jana Dvořáková"},
		Read:     true,
		Type:     "OBECNA",
		Attachments: []Attachment{
			{Name: "pozvanka.pdf", Size: 1024},
		},
	}

	md := m.Markdown()
	assert.Contains(t, md, "# Třídní schůzky")
	assert.Contains(t, md, "**From:** Jana Dvořáková")
	assert.Contains(t, md, "**Date:** 2026-03-02 08:30")
	assert.Contains(t, md, "**Read:** Yes")
	assert.Contains(t, md, "- pozvanka.pdf (1024 bytes)")
	assert.Contains(t, md, "V úterý v 17:00.")
}

func TestMarkdownWithoutSender(t *testing.T) {
	md := Message{Title: "Bez odesílatele"}.Markdown()
	assert.Contains(t, md, "**From:** Unknown")
	assert.Contains(t, md, "**Date:** Unknown")
}

func TestDataCounts(t *testing.T) {
	d := &Data{
		Received: []Message{
			{ID: "1", Read: false},
			{ID: "2", Read: true, CanConfirm: true, Confirmed: false},
		},
		Noticeboard: []Message{{ID: "3", Read: false}},
		Sent:        []Message{{ID: "4"}},
	}

	assert.Len(t, d.All(), 4)
	assert.Equal(t, 2, d.UnreadCount())
	assert.Equal(t, 1, d.UnconfirmedCount())

	msg, ok := d.Find("3")
	require.True(t, ok)
	assert.Equal(t, "3", msg.ID)

	_, ok = d.Find("99")
	assert.False(t, ok)
}

func testModule(t *testing.T, mux *http.ServeMux) *Module {
	t.Helper()
	mux.HandleFunc(bakalari.LoginEndpoint, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "a", "refresh_token": "r", "expires_in": 3599,
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := bakalari.NewClient(srv.URL, "user", "pass", bakalari.Options{
		Logger: slog.New(slog.DiscardHandler),
	})
	require.NoError(t, client.Login(context.Background()))
	return NewModule(client, slog.New(slog.DiscardHandler))
}

func mailboxResponse(messages ...map[string]any) []byte {
	out, _ := json.Marshal(map[string]any{"Messages": messages})
	return out
}

func TestReceivedSortsNewestFirst(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(bakalari.EndpointKomensReceived, func(w http.ResponseWriter, r *http.Request) {
		w.Write(mailboxResponse(
			map[string]any{"Id": "old", "Title": "Starší", "SentDate": "2026-02-01T10:00:00+01:00"},
			map[string]any{"Id": "new", "Title": "Novější", "SentDate": "2026-03-01T10:00:00+01:00",
				"Sender": map[string]any{"Id": "s1", "Type": "teacher", "Name": "Jana"}},
			map[string]any{"Id": "undated", "Title": "Bez data"},
		))
	})

	m := testModule(t, mux)
	messages, err := m.Received(context.Background())
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "new", messages[0].ID)
	assert.Equal(t, "old", messages[1].ID)
	assert.Equal(t, "undated", messages[2].ID)
	require.NotNil(t, messages[0].Sender)
	assert.Equal(t, "Jana", messages[0].Sender.Name)
}

func TestFetchAllToleratesMissingMailboxes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(bakalari.EndpointKomensReceived, func(w http.ResponseWriter, r *http.Request) {
		w.Write(mailboxResponse(map[string]any{"Id": "1", "Title": "Ahoj"}))
	})
	mux.HandleFunc(bakalari.EndpointKomensNoticeboard, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	mux.HandleFunc(bakalari.EndpointKomensSent, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	m := testModule(t, mux)
	data, err := m.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, data.Received, 1)
	assert.Empty(t, data.Noticeboard)
	assert.Empty(t, data.Sent)
}

func TestUnreadCountHandlesBothShapes(t *testing.T) {
	payload := []byte("3")
	mux := http.NewServeMux()
	mux.HandleFunc(bakalari.EndpointKomensUnread, func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	})

	m := testModule(t, mux)
	n, err := m.UnreadCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	payload = []byte(`{"Count": 7}`)
	n, err = m.UnreadCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}
