package authsdk

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoginAndSession(t *testing.T) {
	t.Parallel()

	exp := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/login":
			var req LoginRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Equal(t, "ann@x.com", req.Email)
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(Response{
				Status:    StatusSuccess,
				Token:     "tok",
				ExpiresAt: &exp,
				User:      &User{ID: "u1", Email: "ann@x.com", IsVerified: true},
			})
		case "/users/logged-user":
			if r.Header.Get("Authorization") != "Bearer tok" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = io.WriteString(w, `{"status":"error","code":"unauthenticated","message":"nope"}`)
				return
			}
			_ = json.NewEncoder(w).Encode(Response{Status: StatusSuccess, User: &User{ID: "u1", Name: "Ann"}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := NewSDKClient(srv.URL + "/")
	session, err := client.Login(t.Context(), "ann@x.com", "pw")
	require.NoError(t, err)
	require.Equal(t, "tok", session.Token())
	require.Equal(t, exp, session.ExpiresAt())
	require.Equal(t, "u1", session.User().ID)

	user, err := session.CurrentUser(t.Context())
	require.NoError(t, err)
	require.Equal(t, "Ann", user.Name)

	_, err = client.NewSessionFromToken("bad").CurrentUser(t.Context())
	require.True(t, IsCode(err, CodeUnauthenticated))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestErrorEnvelopeParsing(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/verify-otp":
			NewAPIError(http.StatusBadRequest, CodeOTPInvalidOrExpired, "Invalid or expired OTP").WriteError(w)
		default:
			w.WriteHeader(http.StatusBadGateway)
			_, _ = io.WriteString(w, "upstream gone")
		}
	}))
	defer srv.Close()

	client := NewSDKClient(srv.URL)

	_, err := client.VerifyOTP(t.Context(), "ann@x.com", "000000")
	require.True(t, IsCode(err, CodeOTPInvalidOrExpired))
	require.Contains(t, err.Error(), "Invalid or expired OTP")

	_, err = client.ResendOTP(t.Context(), "ann@x.com")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, CodeInternal, apiErr.Code)
	require.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
}

func TestRegisterWithImage_SendsMultipart(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "Ann", r.FormValue("name"))
		require.Equal(t, "pw", r.FormValue("confirm_password"))

		f, hdr, err := r.FormFile("profileImage")
		require.NoError(t, err)
		defer f.Close()
		require.Equal(t, "me.png", hdr.Filename)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(Response{Status: StatusSuccess, User: &User{ID: "u1"}})
	}))
	defer srv.Close()

	resp, err := NewSDKClient(srv.URL).RegisterWithImage(t.Context(), RegisterRequest{
		Name: "Ann", Email: "ann@x.com", Password: "pw", ConfirmPassword: "pw",
	}, "me.png", strings.NewReader("\x89PNG\r\n\x1a\n"))
	require.NoError(t, err)
	require.Equal(t, "u1", resp.User.ID)
}

func TestResetPassword_EscapesPath(t *testing.T) {
	t.Parallel()

	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		_ = json.NewEncoder(w).Encode(Response{Status: StatusSuccess})
	}))
	defer srv.Close()

	_, err := NewSDKClient(srv.URL).ResetPassword(t.Context(), "u1", "a.b.c", "pw", "pw")
	require.NoError(t, err)
	require.Equal(t, "/users/password-reset/u1/a.b.c", gotPath)
}
