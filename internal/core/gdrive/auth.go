package gdrive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/oto-macenauer/school-summary/internal/platform/errors"
)

const (
	tokenEndpoint = "https://oauth2.googleapis.com/token"
	driveScope    = "https://www.googleapis.com/auth/drive.readonly"
	grantJWT      = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	// tokenExpiryBuffer forces a refresh shortly before the real expiry.
	tokenExpiryBuffer = 5 * time.Minute
)

type serviceAccount struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
}

// tokenSource exchanges a service-account JWT for Drive access tokens and
// caches the result until shortly before expiry.
type tokenSource struct {
	credentialsFile string
	tokenURL        string
	http            *http.Client
	now             func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

func newTokenSource(credentialsFile string, client *http.Client) *tokenSource {
	return &tokenSource{
		credentialsFile: credentialsFile,
		tokenURL:        tokenEndpoint,
		http:            client,
		now:             time.Now,
	}
}

func (s *tokenSource) accessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.now().Before(s.expires.Add(-tokenExpiryBuffer)) {
		return s.token, nil
	}

	account, err := s.loadCredentials()
	if err != nil {
		return "", err
	}
	assertion, err := s.signAssertion(account)
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("grant_type", grantJWT)
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", errors.Wrap(errors.KindDrive, "token", "build token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", errors.Wrap(errors.KindDrive, "token", "token exchange", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(errors.KindDrive, "token", "read token response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.New(errors.KindDrive, "token",
			fmt.Sprintf("token exchange failed with status %d: %s", resp.StatusCode, truncate(string(raw), 300)))
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", errors.Wrap(errors.KindDrive, "token", "decode token response", err)
	}
	if parsed.AccessToken == "" {
		return "", errors.New(errors.KindDrive, "token", "token response missing access_token")
	}
	if parsed.ExpiresIn <= 0 {
		parsed.ExpiresIn = 3600
	}

	s.token = parsed.AccessToken
	s.expires = s.now().Add(time.Duration(parsed.ExpiresIn) * time.Second)
	return s.token, nil
}

func (s *tokenSource) loadCredentials() (*serviceAccount, error) {
	raw, err := os.ReadFile(s.credentialsFile)
	if err != nil {
		return nil, errors.Wrap(errors.KindDrive, "token", "read service account file", err)
	}
	var account serviceAccount
	if err := json.Unmarshal(raw, &account); err != nil {
		return nil, errors.Wrap(errors.KindDrive, "token", "parse service account file", err)
	}
	if account.ClientEmail == "" || account.PrivateKey == "" {
		return nil, errors.New(errors.KindDrive, "token", "service account file missing client_email or private_key")
	}
	return &account, nil
}

func (s *tokenSource) signAssertion(account *serviceAccount) (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(account.PrivateKey))
	if err != nil {
		return "", errors.Wrap(errors.KindDrive, "token", "parse private key", err)
	}

	now := s.now()
	claims := jwt.MapClaims{
		"iss":   account.ClientEmail,
		"scope": driveScope,
		"aud":   s.tokenURL,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return "", errors.Wrap(errors.KindDrive, "token", "sign assertion", err)
	}
	return assertion, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
