package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"repairchat/internal/domain"
	"repairchat/internal/domain/models"
	rlModels "repairchat/internal/domain/models/ratelimit"
	"repairchat/internal/domain/repositories"
	"repairchat/internal/repository/memory"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newMemoryLimiter() (*Limiter, *memory.Store) {
	store := memory.NewStore(testLogger)
	l := NewLimiter(memory.NewCounterRepository(store), memory.NewTransactionManager(store), testLogger)
	return l.(*Limiter), store
}

func TestDecide(t *testing.T) {
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	policy := rlModels.Policy{Limit: 3, Window: time.Hour}

	tests := []struct {
		name          string
		count         int
		started       time.Time
		now           time.Time
		wantAllowed   bool
		wantCount     int
		wantStarted   time.Time
		wantRemaining int
		wantChanged   bool
	}{
		{"fresh counter", 0, base, base, true, 1, base, 2, true},
		{"below limit refreshes start", 1, base, base.Add(10 * time.Minute), true, 2, base.Add(10 * time.Minute), 1, true},
		{"last slot", 2, base, base.Add(time.Minute), true, 3, base.Add(time.Minute), 0, true},
		{"at limit rejects", 3, base, base.Add(59 * time.Minute), false, 3, base, 0, false},
		{"window elapsed exactly resets", 3, base, base.Add(time.Hour), true, 1, base.Add(time.Hour), 2, true},
		{"window long elapsed resets", 3, base, base.Add(48 * time.Hour), true, 1, base.Add(48 * time.Hour), 2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &rlModels.GuestUsageCounter{RequestCount: tt.count, WindowStartedAt: tt.started}
			d, changed := decide(c, tt.now, policy)

			assert.Equal(t, tt.wantAllowed, d.Allowed)
			assert.Equal(t, tt.wantChanged, changed)
			assert.Equal(t, tt.wantCount, c.RequestCount)
			assert.True(t, tt.wantStarted.Equal(c.WindowStartedAt), "window start %s, want %s", c.WindowStartedAt, tt.wantStarted)
			assert.Equal(t, tt.wantRemaining, d.Remaining)
			assert.Equal(t, policy.Limit, d.Limit)
		})
	}
}

func TestCheck_SequentialScenario(t *testing.T) {
	l, _ := newMemoryLimiter()
	ctx := context.Background()
	guest := models.GuestActor("203.0.113.7")
	key := rlModels.Key{ClientIdentity: guest.ClientIdentity, Endpoint: "chat.message"}
	policy := rlModels.Policy{Limit: 2, Window: time.Hour}
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	steps := []struct {
		at      time.Duration
		allowed bool
	}{
		{0, true},
		{time.Minute, true},
		{2 * time.Minute, false},
		{61 * time.Minute, true},
	}
	for _, step := range steps {
		d, err := l.Check(ctx, guest, key, t0.Add(step.at), policy)
		require.NoError(t, err)
		assert.Equal(t, step.allowed, d.Allowed, "request at +%s", step.at)
	}

	// the request at +61m reset the counter to 1
	d, err := l.Check(ctx, guest, key, t0.Add(62*time.Minute), policy)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	d, err = l.Check(ctx, guest, key, t0.Add(63*time.Minute), policy)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 59*time.Minute, d.RetryAfter(t0.Add(63*time.Minute)))
}

func TestCheck_LimitPlusOneRejected(t *testing.T) {
	l, _ := newMemoryLimiter()
	guest := models.GuestActor("198.51.100.1")
	key := rlModels.Key{ClientIdentity: guest.ClientIdentity, Endpoint: "chat.topic"}
	policy := rlModels.Policy{Limit: 5, Window: time.Hour}
	now := time.Now()

	for i := 0; i < policy.Limit; i++ {
		d, err := l.Check(context.Background(), guest, key, now.Add(time.Duration(i)*time.Second), policy)
		require.NoError(t, err)
		require.True(t, d.Allowed, "request %d", i+1)
	}
	d, err := l.Check(context.Background(), guest, key, now.Add(10*time.Second), policy)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestCheck_ConcurrentGuestsNeverOverAdmit(t *testing.T) {
	l, _ := newMemoryLimiter()
	guest := models.GuestActor("192.0.2.10")
	key := rlModels.Key{ClientIdentity: guest.ClientIdentity, Endpoint: "chat.message"}
	policy := rlModels.Policy{Limit: 5, Window: time.Hour}
	now := time.Now()

	var admitted, rejected int32
	var g errgroup.Group
	for i := 0; i < 2*policy.Limit; i++ {
		g.Go(func() error {
			d, err := l.Check(context.Background(), guest, key, now, policy)
			if err != nil {
				return err
			}
			if d.Allowed {
				atomic.AddInt32(&admitted, 1)
			} else {
				atomic.AddInt32(&rejected, 1)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(policy.Limit), admitted)
	assert.Equal(t, int32(policy.Limit), rejected)
}

func TestCheck_KeysAreIndependent(t *testing.T) {
	l, _ := newMemoryLimiter()
	policy := rlModels.Policy{Limit: 1, Window: time.Hour}
	now := time.Now()
	guest := models.GuestActor("192.0.2.20")

	for _, endpoint := range []string{"chat.message", "chat.topic"} {
		d, err := l.Check(context.Background(), guest, rlModels.Key{ClientIdentity: guest.ClientIdentity, Endpoint: endpoint}, now, policy)
		require.NoError(t, err)
		assert.True(t, d.Allowed, endpoint)
	}

	other := models.GuestActor("192.0.2.21")
	d, err := l.Check(context.Background(), other, rlModels.Key{ClientIdentity: other.ClientIdentity, Endpoint: "chat.message"}, now, policy)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

type failingTxManager struct{ calls int32 }

func (f *failingTxManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	atomic.AddInt32(&f.calls, 1)
	return errors.New("connection refused")
}

func TestCheck_AuthenticatedBypassesStorage(t *testing.T) {
	tx := &failingTxManager{}
	l := NewLimiter(nil, tx, testLogger)
	user := models.UserActor("user-1", "192.0.2.30")
	policy := rlModels.Policy{Limit: 1, Window: time.Hour}

	for i := 0; i < 10; i++ {
		d, err := l.Check(context.Background(), user, rlModels.Key{ClientIdentity: user.ClientIdentity, Endpoint: "chat.message"}, time.Now(), policy)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
	assert.Zero(t, atomic.LoadInt32(&tx.calls))
}

func TestCheck_StorageFailureIsHard(t *testing.T) {
	l := NewLimiter(nil, &failingTxManager{}, testLogger)
	guest := models.GuestActor("192.0.2.40")

	d, err := l.Check(context.Background(), guest, rlModels.Key{ClientIdentity: guest.ClientIdentity, Endpoint: "chat.message"}, time.Now(), rlModels.Policy{Limit: 5, Window: time.Hour})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)

	var storageErr *domain.StorageUnavailableError
	require.True(t, errors.As(err, &storageErr))
	assert.Equal(t, 500, storageErr.StatusCode())
	assert.False(t, d.Allowed)
}

func TestSweeper_KeepsCountersInsideTTL(t *testing.T) {
	l, store := newMemoryLimiter()
	counters := memory.NewCounterRepository(store)
	guest := models.GuestActor("192.0.2.50")
	policy := rlModels.Policy{Limit: 2, Window: time.Hour}
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	for _, ip := range []string{"192.0.2.50", "192.0.2.51"} {
		_, err := l.Check(context.Background(), models.GuestActor(ip), rlModels.Key{ClientIdentity: ip, Endpoint: "chat.message"}, t0, policy)
		require.NoError(t, err)
	}
	// keep one of them active
	_, err := l.Check(context.Background(), guest, rlModels.Key{ClientIdentity: guest.ClientIdentity, Endpoint: "chat.message"}, t0.Add(90*time.Minute), policy)
	require.NoError(t, err)

	s := NewSweeper(counters, time.Hour, testLogger)
	deleted, err := s.Sweep(context.Background(), t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}
