package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/accounts/internal/auth/domain"
	"github.com/aussiebroadwan/accounts/internal/auth/notify"
	"github.com/aussiebroadwan/accounts/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/accounts/pkg/cryptox"
	"github.com/aussiebroadwan/accounts/pkg/jwtx"
)

const testIssuer = "accounts-test"

var testEpoch = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

// fakeClock is a settable clock shared by the service and the verifier.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// recordingNotifier keeps every message it is handed.
type recordingNotifier struct {
	mu     sync.Mutex
	otps   []notify.OTPMessage
	resets []notify.ResetMessage
	err    error
}

func (n *recordingNotifier) SendOTP(_ context.Context, msg notify.OTPMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.otps = append(n.otps, msg)
	return n.err
}

func (n *recordingNotifier) SendPasswordReset(_ context.Context, msg notify.ResetMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resets = append(n.resets, msg)
	return n.err
}

func (n *recordingNotifier) lastOTP(t *testing.T) notify.OTPMessage {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.otps)
	return n.otps[len(n.otps)-1]
}

type fixture struct {
	svc      *AccountService
	gate     *SessionGate
	store    *sqlite.Store
	clock    *fakeClock
	notifier *recordingNotifier
}

func testHasher() *cryptox.Argon2Hasher {
	return &cryptox.Argon2Hasher{
		Params: cryptox.Argon2Params{Memory: 64, Iterations: 1, Parallelism: 1, KeyLength: 32, SaltLength: 16},
		Pepper: "test-pepper",
	}
}

func newKeyManager(t *testing.T, now func() time.Time) *jwtx.KeyManager {
	t.Helper()
	key, err := cryptox.GenerateSigningKey(jwtx.AlgorithmEdDSA, 0)
	require.NoError(t, err)
	km, err := jwtx.NewKeyManager(jwtx.KeyManagerOptions{Key: key, Issuer: testIssuer, Now: now})
	require.NoError(t, err)
	return km
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })

	clock := &fakeClock{now: testEpoch}
	tokens := &Tokens{
		Keys:   newKeyManager(t, clock.Now),
		Issuer: testIssuer,
		Now:    clock.Now,
	}
	notifier := &recordingNotifier{}

	svc := &AccountService{
		Store:                    s,
		Hasher:                   testHasher(),
		Tokens:                   tokens,
		OTP:                      NewOTPGenerator(0, 0),
		Notifier:                 notifier,
		Now:                      clock.Now,
		ExposeSecrets:            true,
		ResetBaseURL:             "http://127.0.0.1:3000/users/reset",
		RequireOTPForDirectReset: true,
	}

	return &fixture{
		svc:      svc,
		gate:     &SessionGate{Store: s, Tokens: tokens},
		store:    s,
		clock:    clock,
		notifier: notifier,
	}
}

// sequentialCodes makes OTP generation deterministic.
func sequentialCodes() func() (string, error) {
	var n atomic.Int32
	return func() (string, error) {
		return fmt.Sprintf("%06d", n.Add(1)), nil
	}
}

func (f *fixture) register(t *testing.T, name, email, password string) RegisterResult {
	t.Helper()
	res, err := f.svc.Register(context.Background(), RegisterInput{
		Name: name, Email: email, Password: password, ConfirmPassword: password,
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) registerVerified(t *testing.T, name, email, password string) domain.UserSummary {
	t.Helper()
	res := f.register(t, name, email, password)
	summary, err := f.svc.VerifyEmail(context.Background(), email, res.OTP)
	require.NoError(t, err)
	return summary
}

func (f *fixture) user(t *testing.T, email string) domain.User {
	t.Helper()
	u, err := f.store.Users().GetUserByEmail(context.Background(), email)
	require.NoError(t, err)
	return u
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
