// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/taibuivan/warden/internal/notify"
	"github.com/taibuivan/warden/internal/platform/metrics"
	"github.com/taibuivan/warden/internal/platform/sec"
	"github.com/taibuivan/warden/internal/rbac"
	"github.com/taibuivan/warden/internal/rbac/rbactest"
	"github.com/taibuivan/warden/internal/token"
	"github.com/taibuivan/warden/internal/token/tokentest"
	"github.com/taibuivan/warden/internal/users/auth"
	"github.com/taibuivan/warden/internal/users/auth/authtest"
)

// sentMessage is one call to the recording notifier.
type sentMessage struct {
	To   string
	Kind notify.Kind
	Data map[string]string
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []sentMessage
}

func (notifier *recordingNotifier) Notify(_ context.Context, to string, kind notify.Kind, data map[string]string) {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	notifier.messages = append(notifier.messages, sentMessage{To: to, Kind: kind, Data: data})
}

// last returns the most recent message of kind, or nil.
func (notifier *recordingNotifier) last(kind notify.Kind) *sentMessage {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	for i := len(notifier.messages) - 1; i >= 0; i-- {
		if notifier.messages[i].Kind == kind {
			message := notifier.messages[i]
			return &message
		}
	}
	return nil
}

func (notifier *recordingNotifier) count(kind notify.Kind) int {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	n := 0
	for _, message := range notifier.messages {
		if message.Kind == kind {
			n++
		}
	}
	return n
}

type fixture struct {
	service  *auth.Service
	roles    *rbac.Service
	users    *authtest.Users
	links    *authtest.Links
	tokens   *token.Manager
	signer   *sec.TokenService
	notifier *recordingNotifier
	now      *time.Time
}

// advance moves the shared clock forward.
func (fx *fixture) advance(d time.Duration) {
	*fx.now = fx.now.Add(d)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	observer := metrics.New()

	users := authtest.NewUsers()
	links := authtest.NewLinks()

	roles := rbac.NewService(rbactest.NewRoles(), users, logger)
	_, err := roles.Bootstrap(ctx)
	require.NoError(t, err)

	signer, err := sec.NewTokenService(sec.TokenConfig{
		AccessSecret:  "access-secret-access-secret-access-secret",
		RefreshSecret: "refresh-secret-refresh-secret-refresh-secret",
		Issuer:        "warden-test",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
	})
	require.NoError(t, err)
	signer.WithClock(clock)

	tokens := token.NewManager(tokentest.NewRecords(), signer, token.Options{}, observer, logger).WithClock(clock)

	hasher, err := sec.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	service := auth.NewService(auth.Dependencies{
		Users:    users,
		Links:    links,
		Roles:    roles,
		Tokens:   tokens,
		Hasher:   hasher,
		Notifier: notifier,
		Metrics:  observer,
		Logger:   logger,
	}, auth.Options{
		Lockout:         auth.LockoutPolicy{Threshold: 5, Duration: 2 * time.Hour},
		VerificationTTL: 24 * time.Hour,
		ResetTTL:        time.Hour,
	}).WithClock(clock)

	return &fixture{
		service:  service,
		roles:    roles,
		users:    users,
		links:    links,
		tokens:   tokens,
		signer:   signer,
		notifier: notifier,
		now:      &now,
	}
}

var clientMeta = token.Metadata{IPAddress: "203.0.113.9", UserAgent: "warden-test/1.0"}

const strongPassword = "Str0ng!Passw0rd"

// register signs up a local account and fails the test on error.
func (fx *fixture) register(t *testing.T, email string) *auth.AuthResult {
	t.Helper()
	result, err := fx.service.Register(context.Background(), auth.RegisterInput{
		FirstName: "Alice",
		LastName:  "Liddell",
		Email:     email,
		Password:  strongPassword,
	}, clientMeta)
	require.NoError(t, err)
	return result
}
