package bakalari

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Token holds one student's OAuth tokens.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	UserID       string
	APIVersion   string
}

// Expired reports whether the access token is expired or within the expiry
// buffer of being so.
func (t Token) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt.Add(-TokenExpiryBuffer))
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	UserID       string `json:"bak:UserId"`
	APIVersion   string `json:"bak:ApiVersion"`
}

type authErrorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// Auth manages the token lifecycle for a single student account. All state
// transitions happen under one mutex, so concurrent callers never trigger
// duplicate logins or refreshes.
type Auth struct {
	baseURL  string
	username string
	password string
	client   *http.Client
	logger   *slog.Logger
	now      func() time.Time

	mu    sync.Mutex
	token *Token
}

// NewAuth creates an Auth for one account. The http.Client is shared with
// the API client; pass nil to use a default with a 30s timeout.
func NewAuth(baseURL, username, password string, client *http.Client, logger *slog.Logger) *Auth {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Auth{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		client:   client,
		logger:   logger,
		now:      time.Now,
	}
}

// Authenticated reports whether a token is currently held.
func (a *Auth) Authenticated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.token != nil
}

// TokenSnapshot returns a copy of the current token, if any.
func (a *Auth) TokenSnapshot() (Token, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.token == nil {
		return Token{}, false
	}
	return *a.token, true
}

// Login performs the password grant and stores the resulting token.
func (a *Auth) Login(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loginLocked(ctx)
}

func (a *Auth) loginLocked(ctx context.Context) error {
	a.logger.Debug("attempting login", slog.String("user", a.username))
	form := url.Values{
		"client_id":  {ClientID},
		"grant_type": {GrantPassword},
		"username":   {a.username},
		"password":   {a.password},
	}
	tok, err := a.authRequest(ctx, form)
	if err != nil {
		return err
	}
	a.token = tok
	a.logger.Info("logged in",
		slog.String("user", a.username),
		slog.String("api_version", tok.APIVersion))
	return nil
}

// Refresh exchanges the refresh token for a new token pair. When the refresh
// token itself is rejected, the stored token is cleared and ErrRefreshExpired
// is returned so the caller can fall back to a full login.
func (a *Auth) Refresh(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refreshLocked(ctx)
}

func (a *Auth) refreshLocked(ctx context.Context) error {
	if a.token == nil {
		return ErrNotAuthenticated
	}
	a.logger.Debug("refreshing access token", slog.String("user", a.username))
	form := url.Values{
		"client_id":     {ClientID},
		"grant_type":    {GrantRefresh},
		"refresh_token": {a.token.RefreshToken},
	}
	tok, err := a.authRequest(ctx, form)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			a.token = nil
			return ErrRefreshExpired
		}
		return err
	}
	a.token = tok
	return nil
}

// ValidToken returns an access token that is not within the expiry buffer,
// refreshing inline when needed. The caller must have logged in first.
func (a *Auth) ValidToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.token == nil {
		return "", ErrNotAuthenticated
	}
	if a.token.Expired(a.now()) {
		a.logger.Debug("access token expired, refreshing", slog.String("user", a.username))
		if err := a.refreshLocked(ctx); err != nil {
			return "", err
		}
	}
	return a.token.AccessToken, nil
}

func (a *Auth) authRequest(ctx context.Context, form url.Values) (*Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.baseURL+LoginEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		var authErr authErrorResponse
		_ = json.Unmarshal(body, &authErr)
		a.logger.Error("authentication failed",
			slog.String("user", a.username),
			slog.String("error", authErr.Error),
			slog.String("description", authErr.Description))
		if authErr.Error == "invalid_grant" {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %s: %s", ErrAuthenticationFailed, authErr.Error, authErr.Description)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("%w: decode token response: %v", ErrAuthenticationFailed, err)
	}
	if tr.ExpiresIn == 0 {
		tr.ExpiresIn = 3599
	}
	return &Token{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    a.now().Add(time.Duration(tr.ExpiresIn) * time.Second),
		UserID:       tr.UserID,
		APIVersion:   tr.APIVersion,
	}, nil
}
