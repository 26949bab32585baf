// Package gdrive reads weekly school reports and synced mail files from a
// Google Drive folder using a service account.
package gdrive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oto-macenauer/school-summary/internal/platform/config"
	"github.com/oto-macenauer/school-summary/internal/platform/errors"
	"github.com/oto-macenauer/school-summary/internal/platform/logging"
)

const (
	filesEndpoint = "https://www.googleapis.com/drive/v3/files"

	mimeFolder    = "application/vnd.google-apps.folder"
	mimeGoogleDoc = "application/vnd.google-apps.document"
	mimeDocx      = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimePlainText = "text/plain"

	// maxDocumentSize guards against pulling arbitrarily large files into
	// an AI prompt.
	maxDocumentSize = 100 * 1024

	reportCacheTTL = time.Hour
)

// FolderInfo identifies a Drive folder.
type FolderInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// File identifies a Drive file with enough metadata to fetch its content.
type File struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
}

// WeeklyReport is the extracted text of one week's report document.
type WeeklyReport struct {
	WeekNumber int       `json:"week_number"`
	Content    string    `json:"content"`
	FileName   string    `json:"file_name"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// Client accesses the configured reports folder. Safe for concurrent use.
type Client struct {
	reportsFolderID string
	mailFolderID    string
	tokens          *tokenSource
	http            *http.Client
	logger          *slog.Logger
	yearStart       time.Time
	now             func() time.Time
	filesURL        string

	mu    sync.Mutex
	cache map[int]WeeklyReport
}

// NewClient builds a Client from the gdrive config section. A nil logger
// panics early rather than at first use.
func NewClient(cfg config.GDriveConfig, logger *slog.Logger) *Client {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	now := time.Now
	return &Client{
		reportsFolderID: cfg.FolderID,
		mailFolderID:    cfg.MailFolderID,
		tokens:          newTokenSource(cfg.ServiceAccountFile, httpClient),
		http:            httpClient,
		logger:          logger,
		yearStart:       SchoolYearStart(now()),
		now:             now,
		filesURL:        filesEndpoint,
		cache:           make(map[int]WeeklyReport),
	}
}

func (c *Client) apiGet(ctx context.Context, rawURL string, params url.Values) ([]byte, int, error) {
	token, err := c.tokens.accessToken(ctx)
	if err != nil {
		return nil, 0, err
	}

	if len(params) > 0 {
		rawURL += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, errors.Wrap(errors.KindDrive, "request", "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, errors.Wrap(errors.KindDrive, "request", "drive request", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize+1))
	if err != nil {
		return nil, resp.StatusCode, errors.Wrap(errors.KindDrive, "request", "read response", err)
	}
	if len(raw) > maxDocumentSize {
		return nil, resp.StatusCode, errors.New(errors.KindDrive, "request",
			fmt.Sprintf("response exceeds %d bytes", maxDocumentSize))
	}
	return raw, resp.StatusCode, nil
}

// ListFolders returns the subfolders of the given folder, or of the
// configured reports folder when parentID is empty.
func (c *Client) ListFolders(ctx context.Context, parentID string) ([]FolderInfo, error) {
	if parentID == "" {
		parentID = c.reportsFolderID
	}
	params := url.Values{}
	params.Set("q", fmt.Sprintf("'%s' in parents and mimeType = '%s' and trashed = false", parentID, mimeFolder))
	params.Set("fields", "files(id, name)")
	params.Set("pageSize", "100")

	raw, status, err := c.apiGet(ctx, c.filesURL, params)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, errors.New(errors.KindDrive, "list_folders", "folder not found: "+parentID)
	}
	if status != http.StatusOK {
		return nil, errors.New(errors.KindDrive, "list_folders",
			fmt.Sprintf("listing failed with status %d: %s", status, truncate(string(raw), 300)))
	}

	var parsed struct {
		Files []FolderInfo `json:"files"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, errors.Wrap(errors.KindDrive, "list_folders", "decode response", err)
	}
	return parsed.Files, nil
}

func (c *Client) listFiles(ctx context.Context, folderID string, pageSize int, orderBy string) ([]File, error) {
	params := url.Values{}
	params.Set("q", fmt.Sprintf("'%s' in parents and trashed = false", folderID))
	params.Set("fields", "files(id, name, mimeType)")
	params.Set("pageSize", fmt.Sprintf("%d", pageSize))
	if orderBy != "" {
		params.Set("orderBy", orderBy)
	}

	raw, status, err := c.apiGet(ctx, c.filesURL, params)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, errors.New(errors.KindDrive, "list_files",
			fmt.Sprintf("listing failed with status %d: %s", status, truncate(string(raw), 300)))
	}

	var parsed struct {
		Files []File `json:"files"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, errors.Wrap(errors.KindDrive, "list_files", "decode response", err)
	}
	return parsed.Files, nil
}

// FileContent downloads a file and returns its text. Google Docs are
// exported as plain text, DOCX archives are unpacked locally.
func (c *Client) FileContent(ctx context.Context, file File) (string, error) {
	var rawURL string
	params := url.Values{}
	if file.MimeType == mimeGoogleDoc {
		rawURL = fmt.Sprintf("%s/%s/export", c.filesURL, file.ID)
		params.Set("mimeType", mimePlainText)
	} else {
		rawURL = fmt.Sprintf("%s/%s", c.filesURL, file.ID)
		params.Set("alt", "media")
	}

	raw, status, err := c.apiGet(ctx, rawURL, params)
	if err != nil {
		return "", err
	}
	if status == http.StatusNotFound {
		return "", errors.New(errors.KindDrive, "file_content", "file not found: "+file.ID)
	}
	if status != http.StatusOK {
		return "", errors.New(errors.KindDrive, "file_content",
			fmt.Sprintf("download failed with status %d: %s", status, truncate(string(raw), 300)))
	}

	if file.MimeType == mimeDocx {
		return extractDocxText(raw)
	}
	return string(raw), nil
}

func isReportMime(mime string) bool {
	return mime == mimeGoogleDoc || mime == mimeDocx || mime == mimePlainText
}

// findWeekFile searches the month subfolders for a file named after the
// week, then falls back to a folder named after the week itself.
func (c *Client) findWeekFile(ctx context.Context, week int) (*File, error) {
	subfolders, err := c.ListFolders(ctx, "")
	if err != nil {
		return nil, err
	}
	for _, folder := range subfolders {
		files, err := c.listFiles(ctx, folder.ID, 50, "")
		if err != nil {
			c.logger.Debug("skipping unreadable report subfolder",
				logging.Category(logging.CategoryDrive),
				slog.String("folder", folder.Name),
				slog.Any("error", err))
			continue
		}
		for _, file := range files {
			if matchesWeekFile(file.Name, week) && isReportMime(file.MimeType) {
				return &file, nil
			}
		}
	}

	for _, folder := range subfolders {
		if !matchesWeekFolder(folder.Name, week) {
			continue
		}
		files, err := c.listFiles(ctx, folder.ID, 20, "")
		if err != nil {
			continue
		}
		for _, file := range files {
			if isReportMime(file.MimeType) {
				return &file, nil
			}
		}
	}
	return nil, nil
}

// AvailableWeeks scans the month subfolders and returns the week numbers
// for which a report file exists, ascending.
func (c *Client) AvailableWeeks(ctx context.Context) ([]int, error) {
	subfolders, err := c.ListFolders(ctx, "")
	if err != nil {
		return nil, err
	}

	seen := make(map[int]bool)
	for _, folder := range subfolders {
		files, err := c.listFiles(ctx, folder.ID, 50, "")
		if err != nil {
			continue
		}
		for _, file := range files {
			if !isReportMime(file.MimeType) {
				continue
			}
			if week, ok := weekNumberFromFilename(file.Name); ok {
				seen[week] = true
			}
		}
	}

	weeks := make([]int, 0, len(seen))
	for week := range seen {
		weeks = append(weeks, week)
	}
	sort.Ints(weeks)
	return weeks, nil
}

// WeekReport fetches the report for a school week. Week 0 means the week
// containing the current date. Returns nil when no report exists.
func (c *Client) WeekReport(ctx context.Context, week int) (*WeeklyReport, error) {
	if week <= 0 {
		week = SchoolWeekNumber(c.now(), c.yearStart)
	}

	c.mu.Lock()
	if cached, ok := c.cache[week]; ok && c.now().Sub(cached.FetchedAt) < reportCacheTTL {
		c.mu.Unlock()
		return &cached, nil
	}
	c.mu.Unlock()

	file, err := c.findWeekFile(ctx, week)
	if err != nil {
		return nil, err
	}
	if file == nil {
		c.logger.Info("no report found for school week",
			logging.Category(logging.CategoryDrive),
			slog.Int("week", week))
		return nil, nil
	}

	content, err := c.FileContent(ctx, *file)
	if err != nil {
		return nil, err
	}

	report := WeeklyReport{
		WeekNumber: week,
		Content:    content,
		FileName:   file.Name,
		FetchedAt:  c.now(),
	}
	c.mu.Lock()
	c.cache[week] = report
	c.mu.Unlock()

	c.logger.Info("fetched weekly report",
		logging.Category(logging.CategoryDrive),
		slog.Int("week", week),
		slog.String("file", file.Name))
	return &report, nil
}

// MailFiles lists the markdown mail files in the configured mail folder,
// newest first.
func (c *Client) MailFiles(ctx context.Context) ([]File, error) {
	if c.mailFolderID == "" {
		return nil, errors.New(errors.KindDrive, "mail_files", "mail folder not configured")
	}
	files, err := c.listFiles(ctx, c.mailFolderID, 200, "createdTime desc")
	if err != nil {
		return nil, err
	}
	var mail []File
	for _, file := range files {
		if strings.HasSuffix(file.Name, ".md") || file.MimeType == mimePlainText {
			mail = append(mail, file)
		}
	}
	return mail, nil
}

// ClearCache drops all cached weekly reports.
func (c *Client) ClearCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[int]WeeklyReport)
}

// CheckConnection verifies both the token exchange and folder access.
func (c *Client) CheckConnection(ctx context.Context) bool {
	if _, err := c.tokens.accessToken(ctx); err != nil {
		c.logger.Error("drive connection check failed",
			logging.Category(logging.CategoryDrive), slog.Any("error", err))
		return false
	}
	if _, err := c.ListFolders(ctx, ""); err != nil {
		c.logger.Error("drive connection check failed",
			logging.Category(logging.CategoryDrive), slog.Any("error", err))
		return false
	}
	return true
}
