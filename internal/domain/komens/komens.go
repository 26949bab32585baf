// Package komens fetches school messages (komens) from the school API.
package komens

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/oto-macenauer/school-summary/internal/core/bakalari"
)

// LifetimeType classifies how the school expects a message to be handled.
type LifetimeType string

const (
	ToRead    LifetimeType = "ToRead"
	ToConfirm LifetimeType = "ToConfirm"
	Unlimited LifetimeType = "Unlimited"
	Undefined LifetimeType = "Undefined"
)

func lifetimeFromString(s string) LifetimeType {
	switch LifetimeType(s) {
	case ToRead, ToConfirm, Unlimited:
		return LifetimeType(s)
	default:
		return Undefined
	}
}

// Attachment describes a file attached to a message.
type Attachment struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

// Sender is the author of a message.
type Sender struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Name string `json:"name"`
}

// Message is one komens message.
type Message struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Text        string       `json:"text"`
	SentDate    *time.Time   `json:"date,omitempty"`
	Sender      *Sender      `json:"sender,omitempty"`
	Read        bool         `json:"is_read"`
	Confirmed   bool         `json:"is_confirmed"`
	Lifetime    LifetimeType `json:"-"`
	Type        string       `json:"message_type"`
	CanConfirm  bool         `json:"-"`
	CanAnswer   bool         `json:"-"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

var (
	tagRe      = regexp.MustCompile(`<[^>]+>`)
	brRe       = regexp.MustCompile(`(?i)<br\s*/?>`)
	pOpenRe    = regexp.MustCompile(`(?i)<p[^>]*>`)
	pCloseRe   = regexp.MustCompile(`(?i)</p>`)
	spaceRe    = regexp.MustCompile(`\s+`)
	newlinesRe = regexp.MustCompile(`\n{3,}`)
)

// PlainText returns the message body with HTML stripped and whitespace
// collapsed to single spaces.
func (m Message) PlainText() string {
	text := html.UnescapeString(m.Text)
	text = tagRe.ReplaceAllString(text, "")
	return strings.TrimSpace(spaceRe.ReplaceAllString(text, " "))
}

// CleanText returns the message body with paragraph structure preserved as
// newlines.
func (m Message) CleanText() string {
	text := html.UnescapeString(m.Text)
	text = brRe.ReplaceAllString(text, "\n")
	text = pOpenRe.ReplaceAllString(text, "\n\n")
	text = pCloseRe.ReplaceAllString(text, "")
	text = tagRe.ReplaceAllString(text, "")
	text = newlinesRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// Markdown renders the message as a standalone markdown document, the form
// in which messages are archived.
func (m Message) Markdown() string {
	senderName := "Unknown"
	if m.Sender != nil {
		senderName = m.Sender.Name
	}
	sentDate := "Unknown"
	if m.SentDate != nil {
		sentDate = m.SentDate.Format("2006-01-02 15:04")
	}
	read := "No"
	if m.Read {
		read = "Yes"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", m.Title)
	fmt.Fprintf(&b, "**From:** %s\n", senderName)
	fmt.Fprintf(&b, "**Date:** %s\n", sentDate)
	fmt.Fprintf(&b, "**Type:** %s\n", m.Type)
	fmt.Fprintf(&b, "**Read:** %s\n", read)
	if m.Confirmed {
		b.WriteString("**Confirmed:** Yes\n")
	}
	if len(m.Attachments) > 0 {
		b.WriteString("\n**Attachments:**\n")
		for _, att := range m.Attachments {
			fmt.Fprintf(&b, "- %s (%d bytes)\n", att.Name, att.Size)
		}
	}
	b.WriteString("\n---\n\n")
	b.WriteString(m.CleanText())
	return b.String()
}

// Data is all messages for one student grouped by mailbox.
type Data struct {
	Received    []Message `json:"received"`
	Noticeboard []Message `json:"noticeboard"`
	Sent        []Message `json:"sent"`
}

// All returns every message across mailboxes.
func (d *Data) All() []Message {
	out := make([]Message, 0, len(d.Received)+len(d.Noticeboard)+len(d.Sent))
	out = append(out, d.Received...)
	out = append(out, d.Noticeboard...)
	out = append(out, d.Sent...)
	return out
}

// UnreadCount counts unread incoming messages.
func (d *Data) UnreadCount() int {
	n := 0
	for _, m := range d.Received {
		if !m.Read {
			n++
		}
	}
	for _, m := range d.Noticeboard {
		if !m.Read {
			n++
		}
	}
	return n
}

// UnconfirmedCount counts messages still awaiting confirmation.
func (d *Data) UnconfirmedCount() int {
	n := 0
	for _, m := range append(append([]Message{}, d.Received...), d.Noticeboard...) {
		if m.CanConfirm && !m.Confirmed {
			n++
		}
	}
	return n
}

// Find looks a message up by ID across mailboxes.
func (d *Data) Find(id string) (Message, bool) {
	for _, m := range d.All() {
		if m.ID == id {
			return m, true
		}
	}
	return Message{}, false
}

// Module fetches komens messages for one student.
type Module struct {
	client *bakalari.Client
	logger *slog.Logger
}

func NewModule(client *bakalari.Client, logger *slog.Logger) *Module {
	return &Module{client: client, logger: logger}
}

// Received fetches the inbox. The endpoint wants a POST with no body.
func (m *Module) Received(ctx context.Context) ([]Message, error) {
	return m.fetchMailbox(ctx, bakalari.EndpointKomensReceived)
}

// Noticeboard fetches noticeboard messages.
func (m *Module) Noticeboard(ctx context.Context) ([]Message, error) {
	return m.fetchMailbox(ctx, bakalari.EndpointKomensNoticeboard)
}

// Sent fetches sent messages.
func (m *Module) Sent(ctx context.Context) ([]Message, error) {
	return m.fetchMailbox(ctx, bakalari.EndpointKomensSent)
}

// UnreadCount asks the server for the unread message count.
func (m *Module) UnreadCount(ctx context.Context) (int, error) {
	raw, err := m.client.Get(ctx, bakalari.EndpointKomensUnread, nil)
	if err != nil {
		return 0, err
	}
	// The endpoint answers either a bare integer or {"Count": n}.
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var resp struct {
		Count int `json:"Count"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// FetchAll collects every mailbox. Noticeboard and sent boxes are optional;
// schools without them answer with errors that are logged and skipped.
func (m *Module) FetchAll(ctx context.Context) (*Data, error) {
	received, err := m.Received(ctx)
	if err != nil {
		return nil, err
	}

	noticeboard, err := m.Noticeboard(ctx)
	if err != nil {
		m.logger.Debug("noticeboard not available", slog.String("error", err.Error()))
	}
	sent, err := m.Sent(ctx)
	if err != nil {
		m.logger.Debug("sent messages not available", slog.String("error", err.Error()))
	}

	return &Data{Received: received, Noticeboard: noticeboard, Sent: sent}, nil
}

type apiMessage struct {
	ID       string `json:"Id"`
	Title    string `json:"Title"`
	Text     string `json:"Text"`
	SentDate string `json:"SentDate"`
	Sender   *struct {
		ID   string `json:"Id"`
		Type string `json:"Type"`
		Name string `json:"Name"`
	} `json:"Sender"`
	Read        bool   `json:"Read"`
	Confirmed   bool   `json:"Confirmed"`
	LifeTime    string `json:"LifeTime"`
	Type        string `json:"Type"`
	CanConfirm  bool   `json:"CanConfirm"`
	CanAnswer   bool   `json:"CanAnswer"`
	Attachments []struct {
		ID   string `json:"Id"`
		Name string `json:"Name"`
		Size int64  `json:"Size"`
		Type string `json:"Type"`
	} `json:"Attachments"`
}

func (m *Module) fetchMailbox(ctx context.Context, endpoint string) ([]Message, error) {
	raw, err := m.client.Post(ctx, endpoint, nil, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Messages []apiMessage `json:"Messages"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}

	messages := make([]Message, 0, len(resp.Messages))
	for _, md := range resp.Messages {
		msg := Message{
			ID:         md.ID,
			Title:      md.Title,
			Text:       md.Text,
			Read:       md.Read,
			Confirmed:  md.Confirmed,
			Lifetime:   lifetimeFromString(md.LifeTime),
			Type:       md.Type,
			CanConfirm: md.CanConfirm,
			CanAnswer:  md.CanAnswer,
		}
		if t, ok := parseAPITime(md.SentDate); ok {
			msg.SentDate = &t
		}
		if md.Sender != nil {
			msg.Sender = &Sender{ID: md.Sender.ID, Type: md.Sender.Type, Name: md.Sender.Name}
		}
		for _, att := range md.Attachments {
			msg.Attachments = append(msg.Attachments, Attachment{
				ID: att.ID, Name: att.Name, Size: att.Size, MimeType: att.Type,
			})
		}
		messages = append(messages, msg)
	}

	// Newest first.
	sort.SliceStable(messages, func(i, j int) bool {
		ti, tj := time.Time{}, time.Time{}
		if messages[i].SentDate != nil {
			ti = *messages[i].SentDate
		}
		if messages[j].SentDate != nil {
			tj = *messages[j].SentDate
		}
		return ti.After(tj)
	})
	return messages, nil
}

func parseAPITime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04:05-07:00"} {
		if t, err := time.Parse(layout, strings.TrimSuffix(s, "Z")); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
