package memory

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"repairchat/internal/domain"
	"repairchat/internal/domain/models"
	"repairchat/internal/domain/models/llm"
	"repairchat/internal/domain/models/ratelimit"
)

type fixture struct {
	store    *Store
	tx       *TransactionManager
	chats    *ChatRepository
	turns    *TurnRepository
	topics   *TopicRepository
	counters *CounterRepository
}

func newFixture() *fixture {
	s := NewStore(nil)
	return &fixture{
		store:    s,
		tx:       NewTransactionManager(s).(*TransactionManager),
		chats:    NewChatRepository(s).(*ChatRepository),
		turns:    NewTurnRepository(s).(*TurnRepository),
		topics:   NewTopicRepository(s).(*TopicRepository),
		counters: NewCounterRepository(s).(*CounterRepository),
	}
}

func TestExecTx_CommitMakesWritesVisible(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	var chatID string
	err := f.tx.ExecTx(ctx, func(ctx context.Context) error {
		chat := &llm.Chat{UserID: "u1", Title: "Dryer squeaks"}
		if err := f.chats.CreateChat(ctx, chat); err != nil {
			return err
		}
		chatID = chat.ID

		// not yet visible outside the transaction
		_, err := f.chats.GetChatByIDOnly(context.Background(), chat.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		for _, speaker := range []llm.Speaker{llm.SpeakerUser, llm.SpeakerAssistant} {
			if err := f.turns.CreateTurn(ctx, &llm.Turn{ChatID: chat.ID, AuthorID: "u1", Speaker: speaker, Body: string(speaker)}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	chat, err := f.chats.GetChat(ctx, chatID, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Dryer squeaks", chat.Title)

	turns, err := f.turns.ListTurns(ctx, chatID)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, llm.SpeakerUser, turns[0].Speaker)
	assert.Equal(t, llm.SpeakerAssistant, turns[1].Speaker)
}

func TestExecTx_ErrorDiscardsWrites(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	boom := errors.New("boom")

	err := f.tx.ExecTx(ctx, func(ctx context.Context) error {
		if err := f.chats.CreateChat(ctx, &llm.Chat{UserID: "u1", Title: "t"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	chats, err := f.chats.ListChatsByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, chats)
}

func TestChatRepository_Scoping(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	chat := &llm.Chat{UserID: "owner", Title: "Fridge"}
	require.NoError(t, f.chats.CreateChat(ctx, chat))
	require.NoError(t, f.turns.CreateTurn(ctx, &llm.Turn{ChatID: chat.ID, AuthorID: "owner", Speaker: llm.SpeakerUser, Body: "hi"}))

	_, err := f.chats.GetChat(ctx, chat.ID, "intruder")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.chats.DeleteChat(ctx, chat.ID, "intruder")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	deleted, err := f.chats.DeleteChat(ctx, chat.ID, "owner")
	require.NoError(t, err)
	assert.Equal(t, chat.ID, deleted.ID)

	turns, err := f.turns.ListTurns(ctx, chat.ID)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestChatRepository_UnknownOriginTopic(t *testing.T) {
	f := newFixture()
	missing := "nope"
	err := f.chats.CreateChat(context.Background(), &llm.Chat{UserID: "u1", Title: "t", OriginTopicID: &missing})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTurnRepository_UnknownChat(t *testing.T) {
	f := newFixture()
	err := f.turns.CreateTurn(context.Background(), &llm.Turn{ChatID: "missing", Speaker: llm.SpeakerUser, Body: "x"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTopicRepository_Upsert(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.topics.UpsertTopic(ctx, &models.Topic{ID: "washer", Title: "Washer", Description: "Drum will not spin"}))
	require.NoError(t, f.topics.UpsertTopic(ctx, &models.Topic{ID: "washer", Title: "Washer leaks", Description: "Water under the door"}))

	topic, err := f.topics.GetTopic(ctx, "washer")
	require.NoError(t, err)
	assert.Equal(t, "Washer leaks", topic.Title)

	_, err = f.topics.GetTopic(ctx, "oven")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCounterRepository_RequiresTransaction(t *testing.T) {
	f := newFixture()
	_, err := f.counters.LockCounter(context.Background(), ratelimit.Key{ClientIdentity: "1.2.3.4", Endpoint: "chat.message"}, time.Now())
	assert.ErrorIs(t, err, ErrNoTransaction)
}

func TestCounterRepository_LockSerializesSameKey(t *testing.T) {
	f := newFixture()
	key := ratelimit.Key{ClientIdentity: "1.2.3.4", Endpoint: "chat.message"}
	now := time.Now()

	var inside, maxInside int32
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 10; i++ {
		g.Go(func() error {
			return f.tx.ExecTx(ctx, func(ctx context.Context) error {
				c, err := f.counters.LockCounter(ctx, key, now)
				if err != nil {
					return err
				}
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				c.RequestCount++
				atomic.AddInt32(&inside, -1)
				return f.counters.SaveCounter(ctx, c)
			})
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), maxInside)

	err := f.tx.ExecTx(context.Background(), func(ctx context.Context) error {
		c, err := f.counters.LockCounter(ctx, key, now)
		require.NoError(t, err)
		assert.Equal(t, 10, c.RequestCount)
		return nil
	})
	require.NoError(t, err)
}

func TestCounterRepository_DifferentKeysDoNotBlock(t *testing.T) {
	f := newFixture()
	now := time.Now()
	held := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_ = f.tx.ExecTx(context.Background(), func(ctx context.Context) error {
			_, err := f.counters.LockCounter(ctx, ratelimit.Key{ClientIdentity: "a", Endpoint: "chat.message"}, now)
			close(held)
			<-release
			return err
		})
	}()
	<-held
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := f.tx.ExecTx(ctx, func(ctx context.Context) error {
		_, err := f.counters.LockCounter(ctx, ratelimit.Key{ClientIdentity: "b", Endpoint: "chat.message"}, now)
		return err
	})
	require.NoError(t, err)
}

func TestCounterRepository_DeleteCountersBefore(t *testing.T) {
	f := newFixture()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	for i, ip := range []string{"old", "fresh"} {
		key := ratelimit.Key{ClientIdentity: ip, Endpoint: "chat.message"}
		started := base.Add(time.Duration(i) * 3 * time.Hour)
		require.NoError(t, f.tx.ExecTx(context.Background(), func(ctx context.Context) error {
			c, err := f.counters.LockCounter(ctx, key, started)
			if err != nil {
				return err
			}
			c.RequestCount = 1
			return f.counters.SaveCounter(ctx, c)
		}))
	}

	deleted, err := f.counters.DeleteCountersBefore(context.Background(), base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	assert.Len(t, f.store.counters, 1)
	_, ok := f.store.counters[ratelimit.Key{ClientIdentity: "fresh", Endpoint: "chat.message"}]
	assert.True(t, ok)
}

func TestCounterRepository_LocksAreForgottenWhenReleased(t *testing.T) {
	f := newFixture()
	now := time.Now()

	var g errgroup.Group
	for i := 0; i < 50; i++ {
		key := ratelimit.Key{ClientIdentity: fmt.Sprintf("203.0.113.%d", i%5), Endpoint: "chat.message"}
		g.Go(func() error {
			return f.tx.ExecTx(context.Background(), func(ctx context.Context) error {
				_, err := f.counters.LockCounter(ctx, key, now)
				return err
			})
		})
	}
	require.NoError(t, g.Wait())
	assert.Zero(t, f.store.lockedKeys())

	deleted, err := f.counters.DeleteCountersBefore(context.Background(), now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(5), deleted)
	assert.Zero(t, f.store.lockedKeys())
}

func TestCounterRepository_CancelledWaiterReleasesLock(t *testing.T) {
	f := newFixture()
	key := ratelimit.Key{ClientIdentity: "198.51.100.9", Endpoint: "chat.topic"}
	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error)

	go func() {
		done <- f.tx.ExecTx(context.Background(), func(ctx context.Context) error {
			_, err := f.counters.LockCounter(ctx, key, time.Now())
			close(held)
			<-release
			return err
		})
	}()
	<-held

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := f.tx.ExecTx(ctx, func(ctx context.Context) error {
		_, err := f.counters.LockCounter(ctx, key, time.Now())
		return err
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, <-done)
	assert.Zero(t, f.store.lockedKeys())
}

func TestTurnRepository_ChatDeletedBeforeCommit(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	chat := &llm.Chat{UserID: "user-1", Title: "Ice maker jammed"}
	require.NoError(t, f.chats.CreateChat(ctx, chat))

	err := f.tx.ExecTx(ctx, func(txCtx context.Context) error {
		if err := f.turns.CreateTurn(txCtx, &llm.Turn{ChatID: chat.ID, AuthorID: "user-1", Speaker: llm.SpeakerUser, Body: "hello"}); err != nil {
			return err
		}
		// deleted by a concurrent request, outside this transaction
		_, err := f.chats.DeleteChat(ctx, chat.ID, "user-1")
		return err
	})
	require.ErrorIs(t, err, domain.ErrNotFound)

	turns, err := f.turns.ListTurns(ctx, chat.ID)
	require.NoError(t, err)
	assert.Empty(t, turns)
}
