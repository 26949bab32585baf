package bakalari

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type fakeAuthServer struct {
	*httptest.Server

	logins    int
	refreshes int
	// rejectRefresh makes the refresh grant answer invalid_grant.
	rejectRefresh bool
	// rejectLogin makes the password grant answer invalid_grant.
	rejectLogin bool
	expiresIn   int
}

func newFakeAuthServer(t *testing.T) *fakeAuthServer {
	t.Helper()
	fs := &fakeAuthServer{expiresIn: 3599}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "ANDR", r.PostFormValue("client_id"))

		grant := r.PostFormValue("grant_type")
		reject := func() {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{
				"error":             "invalid_grant",
				"error_description": "rejected",
			})
		}
		switch grant {
		case "password":
			fs.logins++
			if fs.rejectLogin {
				reject()
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"access_token":   "access-1",
				"refresh_token":  "refresh-1",
				"expires_in":     fs.expiresIn,
				"bak:UserId":     "user-1",
				"bak:ApiVersion": "3.32",
			})
		case "refresh_token":
			fs.refreshes++
			if fs.rejectRefresh {
				reject()
				return
			}
			assert.Equal(t, "refresh-1", r.PostFormValue("refresh_token"))
			json.NewEncoder(w).Encode(map[string]any{
				"access_token":  "access-2",
				"refresh_token": "refresh-2",
				"expires_in":    fs.expiresIn,
			})
		default:
			t.Errorf("unexpected grant type %q", grant)
		}
	})
	fs.Server = httptest.NewServer(mux)
	t.Cleanup(fs.Close)
	return fs
}

func TestAuthLogin(t *testing.T) {
	srv := newFakeAuthServer(t)
	auth := NewAuth(srv.URL, "user", "pass", srv.Client(), discardLogger())

	assert.False(t, auth.Authenticated())
	require.NoError(t, auth.Login(context.Background()))
	assert.True(t, auth.Authenticated())

	tok, ok := auth.TokenSnapshot()
	require.True(t, ok)
	assert.Equal(t, "access-1", tok.AccessToken)
	assert.Equal(t, "user-1", tok.UserID)
	assert.Equal(t, "3.32", tok.APIVersion)
}

func TestAuthLoginInvalidCredentials(t *testing.T) {
	srv := newFakeAuthServer(t)
	srv.rejectLogin = true
	auth := NewAuth(srv.URL, "user", "wrong", srv.Client(), discardLogger())

	err := auth.Login(context.Background())
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.False(t, auth.Authenticated())
}

func TestValidTokenRequiresLogin(t *testing.T) {
	srv := newFakeAuthServer(t)
	auth := NewAuth(srv.URL, "user", "pass", srv.Client(), discardLogger())

	_, err := auth.ValidToken(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestValidTokenRefreshesNearExpiry(t *testing.T) {
	srv := newFakeAuthServer(t)
	auth := NewAuth(srv.URL, "user", "pass", srv.Client(), discardLogger())
	require.NoError(t, auth.Login(context.Background()))

	// Fresh token is returned as is.
	tok, err := auth.ValidToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-1", tok)
	assert.Equal(t, 0, srv.refreshes)

	// Step time to within the expiry buffer of the deadline.
	base := time.Now()
	auth.now = func() time.Time { return base.Add(time.Duration(srv.expiresIn)*time.Second - time.Minute) }

	tok, err = auth.ValidToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-2", tok)
	assert.Equal(t, 1, srv.refreshes)
}

func TestValidTokenConcurrentRefreshesOnce(t *testing.T) {
	srv := newFakeAuthServer(t)
	auth := NewAuth(srv.URL, "user", "pass", srv.Client(), discardLogger())
	require.NoError(t, auth.Login(context.Background()))

	// Push the clock into the expiry buffer so every caller sees a stale
	// token at the same moment.
	base := time.Now()
	auth.now = func() time.Time { return base.Add(time.Duration(srv.expiresIn)*time.Second - time.Minute) }

	const callers = 10
	tokens := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = auth.ValidToken(context.Background())
		}(i)
	}
	wg.Wait()

	// One network refresh; everyone gets the refreshed token.
	assert.Equal(t, 1, srv.refreshes)
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "access-2", tokens[i])
	}
}

func TestRefreshExpiredClearsToken(t *testing.T) {
	srv := newFakeAuthServer(t)
	auth := NewAuth(srv.URL, "user", "pass", srv.Client(), discardLogger())
	require.NoError(t, auth.Login(context.Background()))

	srv.rejectRefresh = true
	err := auth.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrRefreshExpired)
	assert.False(t, auth.Authenticated())

	_, err = auth.ValidToken(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestTokenExpired(t *testing.T) {
	now := time.Now()
	tok := Token{ExpiresAt: now.Add(time.Hour)}

	assert.False(t, tok.Expired(now))
	assert.True(t, tok.Expired(now.Add(56*time.Minute)))
	assert.True(t, tok.Expired(now.Add(2*time.Hour)))
}
