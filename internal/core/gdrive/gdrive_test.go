package gdrive

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oto-macenauer/school-summary/internal/platform/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestSchoolYearStart(t *testing.T) {
	prague := time.FixedZone("CET", 3600)

	start := SchoolYearStart(time.Date(2025, time.October, 15, 0, 0, 0, 0, prague))
	assert.Equal(t, 2025, start.Year())
	assert.Equal(t, time.September, start.Month())

	start = SchoolYearStart(time.Date(2026, time.March, 3, 0, 0, 0, 0, prague))
	assert.Equal(t, 2025, start.Year())
}

func TestSchoolWeekNumber(t *testing.T) {
	yearStart := time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 1, SchoolWeekNumber(yearStart, yearStart))
	// September 1st 2025 is a Monday, so the following Sunday is still week 1.
	assert.Equal(t, 1, SchoolWeekNumber(time.Date(2025, time.September, 7, 0, 0, 0, 0, time.UTC), yearStart))
	assert.Equal(t, 2, SchoolWeekNumber(time.Date(2025, time.September, 8, 0, 0, 0, 0, time.UTC), yearStart))
	assert.Equal(t, 5, SchoolWeekNumber(time.Date(2025, time.September, 29, 0, 0, 0, 0, time.UTC), yearStart))
}

func TestMatchesWeekFile(t *testing.T) {
	cases := []struct {
		name  string
		week  int
		match bool
	}{
		{"Week 14.docx", 14, true},
		{"week_14.docx", 14, true},
		{"Týden 14", 14, true},
		{"Week 16 (15.12-19.12).docx", 16, true},
		{"14 týden", 14, true},
		{"Week 140", 14, false},
		{"Notes.docx", 14, false},
		{"Week 1", 14, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.match, matchesWeekFile(tc.name, tc.week), tc.name)
	}
}

func TestWeekNumberFromFilename(t *testing.T) {
	week, ok := weekNumberFromFilename("Week 16 (15.12-19.12).docx")
	require.True(t, ok)
	assert.Equal(t, 16, week)

	_, ok = weekNumberFromFilename("Notes 2025.docx")
	assert.False(t, ok)

	_, ok = weekNumberFromFilename("Poznámky.docx")
	assert.False(t, ok)
}

func TestMatchesWeekFolder(t *testing.T) {
	assert.True(t, matchesWeekFolder("14", 14))
	assert.True(t, matchesWeekFolder("Week 14", 14))
	assert.True(t, matchesWeekFolder("tyden_14", 14))
	assert.False(t, matchesWeekFolder("14b", 14))
	assert.False(t, matchesWeekFolder("140", 14))
}

func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtractDocxText(t *testing.T) {
	docx := buildDocx(t, `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second </w:t></w:r><w:r><w:t>paragraph</w:t></w:r></w:p>
  </w:body>
</w:document>`)

	text, err := extractDocxText(docx)
	require.NoError(t, err)
	assert.Contains(t, text, "First paragraph")
	assert.Contains(t, text, "Second paragraph")
}

func TestExtractDocxTextRejectsGarbage(t *testing.T) {
	_, err := extractDocxText([]byte("not a zip archive"))
	assert.Error(t, err)
}

func writeServiceAccount(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	pemKey := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	account := map[string]string{
		"client_email": "reports@test-project.iam.gserviceaccount.com",
		"private_key":  string(pemKey),
	}
	raw, err := json.Marshal(account)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "service-account.json")
	require.NoError(t, os.WriteFile(path, raw, 0o600))
	return path
}

// driveFixture serves the token endpoint and a minimal files API from one
// test server.
func driveFixture(t *testing.T, folders []FolderInfo, filesByFolder map[string][]File, contents map[string]string) *Client {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "urn:ietf:params:oauth:grant-type:jwt-bearer", r.Form.Get("grant_type"))
		assert.NotEmpty(t, r.Form.Get("assertion"))
		json.NewEncoder(w).Encode(map[string]any{"access_token": "drive-token", "expires_in": 3600})
	})
	mux.HandleFunc("/files", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer drive-token", r.Header.Get("Authorization"))
		q := r.URL.Query().Get("q")
		if bytes.Contains([]byte(q), []byte("mimeType = 'application/vnd.google-apps.folder'")) {
			json.NewEncoder(w).Encode(map[string]any{"files": folders})
			return
		}
		for folderID, files := range filesByFolder {
			if bytes.Contains([]byte(q), []byte("'"+folderID+"' in parents")) {
				json.NewEncoder(w).Encode(map[string]any{"files": files})
				return
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"files": []File{}})
	})
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		fileID := r.URL.Path[len("/files/"):]
		if content, ok := contents[fileID]; ok {
			w.Write([]byte(content))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := NewClient(config.GDriveConfig{
		Enabled:            true,
		ServiceAccountFile: writeServiceAccount(t),
		FolderID:           "reports-root",
		MailFolderID:       "mail-root",
	}, discardLogger())
	client.filesURL = srv.URL + "/files"
	client.tokens.tokenURL = srv.URL + "/token"
	return client
}

func TestWeekReportFromSubfolder(t *testing.T) {
	client := driveFixture(t,
		[]FolderInfo{{ID: "december", Name: "December"}},
		map[string][]File{
			"december": {{ID: "doc-1", Name: "Week 16 (15.12-19.12).txt", MimeType: "text/plain"}},
		},
		map[string]string{"doc-1": "Probrali jsme zlomky."},
	)

	report, err := client.WeekReport(context.Background(), 16)
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, 16, report.WeekNumber)
	assert.Equal(t, "Week 16 (15.12-19.12).txt", report.FileName)
	assert.Equal(t, "Probrali jsme zlomky.", report.Content)
}

func TestWeekReportMissing(t *testing.T) {
	client := driveFixture(t,
		[]FolderInfo{{ID: "december", Name: "December"}},
		map[string][]File{"december": {}},
		nil,
	)

	report, err := client.WeekReport(context.Background(), 30)
	require.NoError(t, err)
	assert.Nil(t, report)
}

func TestWeekReportCached(t *testing.T) {
	client := driveFixture(t,
		[]FolderInfo{{ID: "december", Name: "December"}},
		map[string][]File{
			"december": {{ID: "doc-1", Name: "Week 16.txt", MimeType: "text/plain"}},
		},
		map[string]string{"doc-1": "obsah"},
	)

	first, err := client.WeekReport(context.Background(), 16)
	require.NoError(t, err)
	require.NotNil(t, first)

	// Second call is served from cache even if the remote file vanishes.
	client.filesURL = "http://127.0.0.1:1/files"
	second, err := client.WeekReport(context.Background(), 16)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, first.Content, second.Content)
}

func TestAvailableWeeks(t *testing.T) {
	client := driveFixture(t,
		[]FolderInfo{{ID: "december", Name: "December"}, {ID: "january", Name: "January"}},
		map[string][]File{
			"december": {
				{ID: "d-1", Name: "Week 15.docx", MimeType: mimeDocx},
				{ID: "d-2", Name: "Notes.txt", MimeType: "text/plain"},
			},
			"january": {
				{ID: "j-1", Name: "Week 17 (05.01-09.01).txt", MimeType: "text/plain"},
				{ID: "j-2", Name: "photo.jpg", MimeType: "image/jpeg"},
			},
		},
		nil,
	)

	weeks, err := client.AvailableWeeks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{15, 17}, weeks)
}

func TestMailFilesFiltersMarkdown(t *testing.T) {
	client := driveFixture(t,
		nil,
		map[string][]File{
			"mail-root": {
				{ID: "m-1", Name: "mail-001.md", MimeType: "application/octet-stream"},
				{ID: "m-2", Name: "photo.jpg", MimeType: "image/jpeg"},
				{ID: "m-3", Name: "mail-002", MimeType: "text/plain"},
			},
		},
		nil,
	)

	files, err := client.MailFiles(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "m-1", files[0].ID)
	assert.Equal(t, "m-3", files[1].ID)
}
