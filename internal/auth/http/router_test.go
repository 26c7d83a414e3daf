package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/accounts/internal/auth/blob"
	"github.com/aussiebroadwan/accounts/internal/auth/notify"
	"github.com/aussiebroadwan/accounts/internal/auth/service"
	"github.com/aussiebroadwan/accounts/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/accounts/pkg/authsdk"
	"github.com/aussiebroadwan/accounts/pkg/cryptox"
	"github.com/aussiebroadwan/accounts/pkg/httpx"
	"github.com/aussiebroadwan/accounts/pkg/jwtx"
)

type captureNotifier struct {
	mu   sync.Mutex
	otps []notify.OTPMessage
}

func (n *captureNotifier) SendOTP(_ context.Context, msg notify.OTPMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.otps = append(n.otps, msg)
	return nil
}

func (n *captureNotifier) SendPasswordReset(context.Context, notify.ResetMessage) error { return nil }

func (n *captureNotifier) last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.otps[len(n.otps)-1].Code
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

type testEnv struct {
	router   *Router
	accounts *service.AccountService
	notifier *captureNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	key, err := cryptox.GenerateSigningKey(jwtx.AlgorithmEdDSA, 0)
	require.NoError(t, err)
	keys, err := jwtx.NewKeyManager(jwtx.KeyManagerOptions{Key: key, Issuer: "accounts-test"})
	require.NoError(t, err)

	blobs, err := blob.NewFSStore(t.TempDir())
	require.NoError(t, err)

	tokens := &service.Tokens{Keys: keys, Issuer: "accounts-test"}
	notifier := &captureNotifier{}
	accounts := &service.AccountService{
		Store: st,
		Hasher: &cryptox.Argon2Hasher{
			Params: cryptox.Argon2Params{Memory: 64, Iterations: 1, Parallelism: 1, KeyLength: 32, SaltLength: 16},
		},
		Tokens:                   tokens,
		OTP:                      service.NewOTPGenerator(0, 0),
		Notifier:                 notifier,
		Blobs:                    blobs,
		ExposeSecrets:            true,
		ResetBaseURL:             "http://localhost:3000/users/reset",
		RequireOTPForDirectReset: true,
	}

	r := NewRouter(keys, "test", st, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.Accounts = accounts
	r.Gate = &service.SessionGate{Store: st, Tokens: tokens}
	r.Blobs = blobs
	r.CORS = httpx.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}, AllowCredentials: true}
	r.ApplyRoutes()

	return &testEnv{router: r, accounts: accounts, notifier: notifier}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, mutate ...func(*http.Request)) (*httptest.ResponseRecorder, authsdk.Response) {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	for _, m := range mutate {
		m(req)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var resp authsdk.Response
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func bearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

// registerVerified registers an account over HTTP and verifies it.
func (e *testEnv) registerVerified(t *testing.T, email, password string) string {
	t.Helper()
	rec, resp := e.do(t, http.MethodPost, "/users/register", authsdk.RegisterRequest{
		Name: "Ann", Email: email, Password: password, ConfirmPassword: password,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, _ = e.do(t, http.MethodPost, "/users/verify-otp", authsdk.VerifyOTPRequest{Email: email, OTP: resp.OTP})
	require.Equal(t, http.StatusOK, rec.Code)
	return resp.User.ID
}

func TestRegisterVerifyLogin(t *testing.T) {
	e := newTestEnv(t)

	rec, resp := e.do(t, http.MethodPost, "/users/register", authsdk.RegisterRequest{
		Name: "Ann", Email: "ann@x.com", Password: "Pw123!", ConfirmPassword: "Pw123!",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, authsdk.StatusSuccess, resp.Status)
	require.False(t, resp.User.IsVerified)
	require.Len(t, resp.OTP, 6)
	require.NotContains(t, rec.Body.String(), "argon2")
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec, resp = e.do(t, http.MethodPost, "/users/login", authsdk.LoginRequest{Email: "ann@x.com", Password: "Pw123!"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, authsdk.CodeEmailNotVerified, resp.Code)

	rec, _ = e.do(t, http.MethodPost, "/users/verify-otp", authsdk.VerifyOTPRequest{Email: "ann@x.com", OTP: e.notifier.last()})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp = e.do(t, http.MethodPost, "/users/login", authsdk.LoginRequest{Email: "ann@x.com", Password: "Pw123!"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, resp.Token)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, CookieName, cookies[0].Name)
	require.Equal(t, resp.Token, cookies[0].Value)
	require.True(t, cookies[0].HttpOnly)
	require.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
	require.InDelta(t, 24*3600, cookies[0].MaxAge, 5)
}

func TestErrorStatusMapping(t *testing.T) {
	e := newTestEnv(t)
	e.registerVerified(t, "ann@x.com", "pw")

	tests := []struct {
		name   string
		path   string
		body   any
		status int
		code   string
	}{
		{"validation", "/users/register", authsdk.RegisterRequest{Name: "B", Email: "b@x.com", Password: "a", ConfirmPassword: "b"}, http.StatusBadRequest, authsdk.CodeValidationFailed},
		{"duplicate", "/users/register", authsdk.RegisterRequest{Name: "A", Email: "ANN@x.com", Password: "a", ConfirmPassword: "a"}, http.StatusBadRequest, authsdk.CodeEmailTaken},
		{"already verified", "/users/resend-otp", authsdk.EmailRequest{Email: "ann@x.com"}, http.StatusBadRequest, authsdk.CodeAlreadyVerified},
		{"unknown email", "/users/resend-otp", authsdk.EmailRequest{Email: "ghost@x.com"}, http.StatusNotFound, authsdk.CodeNotFound},
		{"bad password", "/users/login", authsdk.LoginRequest{Email: "ann@x.com", Password: "nope"}, http.StatusBadRequest, authsdk.CodeInvalidCredentials},
		{"bad otp", "/users/reset-password-direct", authsdk.DirectResetRequest{Email: "ann@x.com", OTP: "x", Password: "n", ConfirmPassword: "n"}, http.StatusBadRequest, authsdk.CodeOTPInvalidOrExpired},
		{"bad reset token", "/users/password-reset/someone/abc", authsdk.PasswordRequest{Password: "n", ConfirmPassword: "n"}, http.StatusBadRequest, authsdk.CodeTokenInvalid},
		{"change by email", "/users/change-password-email", authsdk.ChangePasswordByEmailRequest{Email: "ann@x.com", OldPassword: "wrong", NewPassword: "n"}, http.StatusBadRequest, authsdk.CodeInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := e.do(t, http.MethodPost, tt.path, tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			require.Equal(t, authsdk.StatusError, resp.Status)
			require.Equal(t, tt.code, resp.Code)
		})
	}

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/users/login", strings.NewReader("{"))
		rec := httptest.NewRecorder()
		e.router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSessionGatedRoutes(t *testing.T) {
	e := newTestEnv(t)
	e.registerVerified(t, "ann@x.com", "old")

	rec, _ := e.do(t, http.MethodGet, "/users/logged-user", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = e.do(t, http.MethodGet, "/users/logged-user", nil, bearer("garbage"))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	_, login := e.do(t, http.MethodPost, "/users/login", authsdk.LoginRequest{Email: "ann@x.com", Password: "old"})

	// Cookie fallback
	rec, resp := e.do(t, http.MethodGet, "/users/logged-user", nil, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: CookieName, Value: login.Token})
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ann@x.com", resp.User.Email)

	rec, resp = e.do(t, http.MethodPost, "/users/change-password",
		authsdk.PasswordRequest{Password: "new", ConfirmPassword: "new"}, bearer(login.Token))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, resp.OTP, 6)

	rec, _ = e.do(t, http.MethodPost, "/users/verify-change-password-otp",
		authsdk.OTPRequest{OTP: resp.OTP}, bearer(login.Token))
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = e.do(t, http.MethodPost, "/users/login", authsdk.LoginRequest{Email: "ann@x.com", Password: "new"})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestLogoutClearsCookie(t *testing.T) {
	e := newTestEnv(t)

	rec, resp := e.do(t, http.MethodPost, "/users/logout", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, authsdk.StatusSuccess, resp.Status)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, CookieName, cookies[0].Name)
	require.Empty(t, cookies[0].Value)
	require.Negative(t, cookies[0].MaxAge)
}

func TestPasswordResetWithToken(t *testing.T) {
	e := newTestEnv(t)
	id := e.registerVerified(t, "ann@x.com", "old")

	rec, resp := e.do(t, http.MethodPost, "/users/send-reset-password-email", authsdk.EmailRequest{Email: "ann@x.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, resp.Link, "/"+id+"/")

	rec, _ = e.do(t, http.MethodPost, "/users/password-reset/"+id+"/"+resp.Token,
		authsdk.PasswordRequest{Password: "new", ConfirmPassword: "new"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = e.do(t, http.MethodPost, "/users/login", authsdk.LoginRequest{Email: "ann@x.com", Password: "new"})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterMultipartAndFiles(t *testing.T) {
	e := newTestEnv(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("name", "Ann"))
	require.NoError(t, mw.WriteField("email", "ann@x.com"))
	require.NoError(t, mw.WriteField("password", "pw"))
	require.NoError(t, mw.WriteField("confirm_password", "pw"))
	part, err := mw.CreateFormFile("profileImage", "me.png")
	require.NoError(t, err)
	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)
	_, err = part.Write(png)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/users/register", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp authsdk.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.User.ProfileImage)

	req = httptest.NewRequest(http.MethodGet, "/files/"+*resp.User.ProfileImage, nil)
	rec = httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	require.Equal(t, png, rec.Body.Bytes())

	req = httptest.NewRequest(http.MethodGet, "/files/profile/../../etc/passwd", nil)
	rec = httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	require.NotEqual(t, http.StatusOK, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	e := newTestEnv(t)

	rec, _ := e.do(t, http.MethodGet, "/livez", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = e.do(t, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	ReadyzHandler(e.router.startTime, "test", failingPinger{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var health authsdk.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	require.Equal(t, "degraded", health.Status)
	require.Contains(t, health.Checks.Database, "connection refused")
	require.Contains(t, health.Checks.Signer, "error")
}

func TestCORSPreflight(t *testing.T) {
	e := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/users/login", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}
