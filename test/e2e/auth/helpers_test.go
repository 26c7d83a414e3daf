//go:build e2e

package auth_test

import (
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aussiebroadwan/accounts/internal/auth/app"
	"github.com/aussiebroadwan/accounts/pkg/authsdk"
)

/*
 * End-to-end tests run the whole service in-process against a real
 * PostgreSQL container and drive it through the public SDK.
 */

const testPassword = "secret12"

var (
	baseURL  string
	emailSeq atomic.Int64
)

// TestMain starts PostgreSQL and the service once for all tests.
func TestMain(m *testing.M) {
	os.Exit(run(m))
}

func run(m *testing.M) int {
	ctx := context.Background()

	fmt.Fprintf(os.Stdout, "Starting PostgreSQL container...")
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("accounts_e2e"),
		tcpostgres.WithUsername("accounts"),
		tcpostgres.WithPassword("accounts"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "\nFailed to start PostgreSQL: %v\n", err)
		return 1
	}
	defer func() { _ = container.Terminate(ctx) }()
	fmt.Fprintf(os.Stdout, " done\n")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		fmt.Fprintf(os.Stderr, "connection string: %v\n", err)
		return 1
	}

	dir, err := os.MkdirTemp("", "accounts-e2e")
	if err != nil {
		fmt.Fprintf(os.Stderr, "temp dir: %v\n", err)
		return 1
	}
	defer func() { _ = os.RemoveAll(dir) }()

	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}
	cfg.Env = "test"
	cfg.LogLevel = "error"
	cfg.Issuer = "accounts-e2e"
	cfg.DatabaseDriver = "postgres"
	cfg.DatabaseURL = dsn
	cfg.SigningKeyFile = filepath.Join(dir, "signing.pem")
	cfg.PepperFile = filepath.Join(dir, "pepper")
	cfg.BlobDir = filepath.Join(dir, "uploads")

	if err := app.WriteSigningKey(cfg.SigningKeyFile, cfg.Algorithm, 0, false); err != nil {
		fmt.Fprintf(os.Stderr, "signing key: %v\n", err)
		return 1
	}

	application, err := app.New(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "start service: %v\n", err)
		return 1
	}

	srv := httptest.NewServer(application.Handler())
	defer srv.Close()
	baseURL = srv.URL

	return m.Run()
}

func newClient() *authsdk.SDKClient {
	return authsdk.NewSDKClient(baseURL)
}

// uniqueEmail keeps tests independent of each other on the shared database.
func uniqueEmail(t *testing.T) string {
	t.Helper()
	name := strings.ToLower(strings.ReplaceAll(t.Name(), "/", "-"))
	return fmt.Sprintf("%s-%d@example.com", name, emailSeq.Add(1))
}

// registerVerified registers an account, verifies it and returns its email
// and id.
func registerVerified(t *testing.T, client *authsdk.SDKClient) (string, string) {
	t.Helper()
	ctx := t.Context()
	email := uniqueEmail(t)

	reg, err := client.Register(ctx, authsdk.RegisterRequest{
		Name: "E2E User", Email: email, Password: testPassword, ConfirmPassword: testPassword,
	})
	require.NoError(t, err)
	require.NotNil(t, reg.User)
	require.NotEmpty(t, reg.OTP)

	_, err = client.VerifyOTP(ctx, email, reg.OTP)
	require.NoError(t, err)

	return email, reg.User.ID
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, authsdk.IsCode(err, code), "want %s, got %v", code, err)
}
