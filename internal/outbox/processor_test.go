package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaidashi/delivery-orders/internal/config"
	"github.com/vaidashi/delivery-orders/internal/models"
	"github.com/vaidashi/delivery-orders/pkg/circuitbreaker"
	apperrors "github.com/vaidashi/delivery-orders/pkg/errors"
	"github.com/vaidashi/delivery-orders/pkg/logger"
	"github.com/vaidashi/delivery-orders/pkg/metrics"
)

type fakeStore struct {
	mu       sync.Mutex
	messages map[int64]*models.OutboxMessage
	claimErr error
	listErr  error
	stolen   map[int64]bool
	now      func() time.Time

	// failures returned by the next MarkForRetry calls
	retryErrs []error
}

func newFakeStore(msgs ...*models.OutboxMessage) *fakeStore {
	s := &fakeStore{
		messages: make(map[int64]*models.OutboxMessage),
		stolen:   make(map[int64]bool),
		now:      time.Now,
	}
	for _, m := range msgs {
		m.Status = models.OutboxStatusPending
		s.messages[m.ID] = m
	}
	return s
}

func (s *fakeStore) GetPendingMessages(ctx context.Context, limit int) ([]*models.OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listErr != nil {
		return nil, s.listErr
	}

	var out []*models.OutboxMessage
	for id := int64(1); id <= int64(len(s.messages)) && len(out) < limit; id++ {
		if m, ok := s.messages[id]; ok && m.Status == models.OutboxStatusPending {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *fakeStore) MarkAsProcessing(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.claimErr != nil {
		return false, s.claimErr
	}
	if s.stolen[id] {
		return false, nil
	}
	m := s.messages[id]
	if m.Status != models.OutboxStatusPending {
		return false, nil
	}
	started := s.now()
	m.Status = models.OutboxStatusProcessing
	m.ProcessingAttempts++
	m.ProcessingStartedAt = &started
	return true, nil
}

func (s *fakeStore) MarkAsCompleted(ctx context.Context, id int64) error {
	return s.set(ctx, id, models.OutboxStatusCompleted, "")
}

func (s *fakeStore) MarkForRetry(ctx context.Context, id int64, errorMessage string) error {
	s.mu.Lock()
	if len(s.retryErrs) > 0 {
		err := s.retryErrs[0]
		s.retryErrs = s.retryErrs[1:]
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	return s.set(ctx, id, models.OutboxStatusPending, errorMessage)
}

func (s *fakeStore) MarkAsFailed(ctx context.Context, id int64, errorMessage string) error {
	return s.set(ctx, id, models.OutboxStatusFailed, errorMessage)
}

func (s *fakeStore) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, m := range s.messages {
		if m.Status == models.OutboxStatusProcessing && m.ProcessingStartedAt.Before(cutoff) {
			m.Status = models.OutboxStatusPending
			m.ProcessingStartedAt = nil
			n++
		}
	}
	return n, nil
}

// set behaves like a database call: it fails once ctx is done
func (s *fakeStore) set(ctx context.Context, id int64, status models.OutboxStatus, lastError string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.messages[id]
	m.Status = status
	m.ProcessingStartedAt = nil
	if lastError != "" {
		m.LastError = &lastError
	}
	return nil
}

func (s *fakeStore) get(id int64) models.OutboxMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.messages[id]
}

type handlerFunc func(ctx context.Context, message *models.OutboxMessage) error

func (f handlerFunc) HandleMessage(ctx context.Context, message *models.OutboxMessage) error {
	return f(ctx, message)
}

func message(id int64, eventType string) *models.OutboxMessage {
	return &models.OutboxMessage{
		ID:            id,
		AggregateType: "order",
		AggregateID:   "10",
		EventType:     eventType,
		Payload:       []byte(`{}`),
	}
}

func newProcessor(store Store, maxRetries int, m *metrics.OutboxMetrics) *Processor {
	return NewProcessor(store, config.OutboxConfig{
		PollingInterval: 10 * time.Millisecond,
		BatchSize:       10,
		MaxRetries:      maxRetries,
	}, logger.NewNop(), m)
}

func TestProcessBatchCompletesHandledMessages(t *testing.T) {
	store := newFakeStore(message(1, models.EventOrderCreated), message(2, models.EventOrderDeleted))
	p := newProcessor(store, 3, nil)

	var seen []int64
	h := handlerFunc(func(ctx context.Context, m *models.OutboxMessage) error {
		seen = append(seen, m.ID)
		return nil
	})
	p.RegisterHandler(models.EventOrderCreated, h)
	p.RegisterHandler(models.EventOrderDeleted, h)

	require.NoError(t, p.ProcessBatch(context.Background()))

	assert.Equal(t, []int64{1, 2}, seen)
	assert.Equal(t, models.OutboxStatusCompleted, store.get(1).Status)
	assert.Equal(t, models.OutboxStatusCompleted, store.get(2).Status)
}

func TestProcessBatchUsesFallbackHandler(t *testing.T) {
	store := newFakeStore(message(1, models.EventOrderMaterialized))
	p := newProcessor(store, 3, nil)

	var called bool
	p.SetFallbackHandler(handlerFunc(func(ctx context.Context, m *models.OutboxMessage) error {
		called = true
		return nil
	}))

	require.NoError(t, p.ProcessBatch(context.Background()))
	assert.True(t, called)
	assert.Equal(t, models.OutboxStatusCompleted, store.get(1).Status)
}

func TestProcessBatchFailsMessagesWithoutHandler(t *testing.T) {
	store := newFakeStore(message(1, "unknown_event"))
	p := newProcessor(store, 3, nil)

	require.NoError(t, p.ProcessBatch(context.Background()))

	got := store.get(1)
	assert.Equal(t, models.OutboxStatusFailed, got.Status)
	require.NotNil(t, got.LastError)
	assert.Contains(t, *got.LastError, "unknown_event")
}

func TestProcessBatchRetriesTemporaryFailures(t *testing.T) {
	store := newFakeStore(message(1, models.EventOrderCreated))
	reg := prometheus.NewRegistry()
	p := newProcessor(store, 3, metrics.NewOutboxMetrics(reg))

	p.RegisterHandler(models.EventOrderCreated, handlerFunc(func(ctx context.Context, m *models.OutboxMessage) error {
		return apperrors.NewTemporaryError(errors.New("broker down"))
	}))

	ctx := context.Background()

	require.NoError(t, p.ProcessBatch(ctx))
	got := store.get(1)
	assert.Equal(t, models.OutboxStatusPending, got.Status)
	assert.Equal(t, 1, got.ProcessingAttempts)
	require.NotNil(t, got.LastError)
	assert.Equal(t, "broker down", *got.LastError)

	require.NoError(t, p.ProcessBatch(ctx))
	assert.Equal(t, models.OutboxStatusPending, store.get(1).Status)

	require.NoError(t, p.ProcessBatch(ctx))
	got = store.get(1)
	assert.Equal(t, models.OutboxStatusFailed, got.Status)
	assert.Equal(t, 3, got.ProcessingAttempts)

	// nothing left to pick up
	require.NoError(t, p.ProcessBatch(ctx))
	assert.Equal(t, 3, store.get(1).ProcessingAttempts)
}

func TestProcessBatchPausesWhileBrokerIsDown(t *testing.T) {
	store := newFakeStore(
		message(1, models.EventOrderCreated),
		message(2, models.EventOrderCreated),
		message(3, models.EventOrderCreated),
	)
	p := NewProcessor(store, config.OutboxConfig{
		PollingInterval:     10 * time.Millisecond,
		BatchSize:           10,
		MaxRetries:          10,
		BreakerThreshold:    2,
		BreakerResetTimeout: time.Hour,
	}, logger.NewNop(), nil)

	var calls int
	p.RegisterHandler(models.EventOrderCreated, handlerFunc(func(ctx context.Context, m *models.OutboxMessage) error {
		calls++
		return apperrors.NewTemporaryError(errors.New("broker down"))
	}))

	ctx := context.Background()
	require.NoError(t, p.ProcessBatch(ctx))

	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, store.get(3).ProcessingAttempts)

	require.NoError(t, p.ProcessBatch(ctx))
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, store.get(1).ProcessingAttempts)
}

func TestProcessBatchFailsPermanentErrorsImmediately(t *testing.T) {
	store := newFakeStore(message(1, models.EventOrderCreated))
	p := newProcessor(store, 5, nil)

	p.RegisterHandler(models.EventOrderCreated, handlerFunc(func(ctx context.Context, m *models.OutboxMessage) error {
		return errors.New("malformed payload")
	}))

	require.NoError(t, p.ProcessBatch(context.Background()))

	got := store.get(1)
	assert.Equal(t, models.OutboxStatusFailed, got.Status)
	assert.Equal(t, 1, got.ProcessingAttempts)
}

func TestProcessBatchSkipsMessagesClaimedElsewhere(t *testing.T) {
	store := newFakeStore(message(1, models.EventOrderCreated))
	store.stolen[1] = true
	p := newProcessor(store, 3, nil)

	var called bool
	p.RegisterHandler(models.EventOrderCreated, handlerFunc(func(ctx context.Context, m *models.OutboxMessage) error {
		called = true
		return nil
	}))

	require.NoError(t, p.ProcessBatch(context.Background()))
	assert.False(t, called)
	assert.Equal(t, models.OutboxStatusPending, store.get(1).Status)
}

func TestProcessBatchListError(t *testing.T) {
	store := newFakeStore()
	store.listErr = errors.New("connection refused")
	p := newProcessor(store, 3, nil)

	err := p.ProcessBatch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestProcessorStartStop(t *testing.T) {
	store := newFakeStore(message(1, models.EventOrderCreated))
	p := newProcessor(store, 3, nil)

	done := make(chan struct{})
	var once sync.Once
	p.RegisterHandler(models.EventOrderCreated, handlerFunc(func(ctx context.Context, m *models.OutboxMessage) error {
		once.Do(func() { close(done) })
		return nil
	}))

	p.Start(context.Background())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("message was not processed")
	}

	p.Stop()
	assert.Eventually(t, func() bool {
		return store.get(1).Status == models.OutboxStatusCompleted
	}, time.Second, 10*time.Millisecond)
}

func TestProcessBatchReclaimsMessageWhoseRetryWriteFailed(t *testing.T) {
	store := newFakeStore(message(1, models.EventOrderCreated))
	store.retryErrs = []error{errors.New("connection reset by peer")}

	clock := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }

	p := NewProcessor(store, config.OutboxConfig{
		PollingInterval:   10 * time.Millisecond,
		BatchSize:         10,
		MaxRetries:        5,
		ProcessingTimeout: time.Minute,
	}, logger.NewNop(), nil)
	p.now = func() time.Time { return clock }

	var calls int
	p.RegisterHandler(models.EventOrderCreated, handlerFunc(func(ctx context.Context, m *models.OutboxMessage) error {
		calls++
		if calls == 1 {
			return apperrors.NewTemporaryError(errors.New("broker down"))
		}
		return nil
	}))

	ctx := context.Background()

	require.NoError(t, p.ProcessBatch(ctx))
	assert.Equal(t, models.OutboxStatusProcessing, store.get(1).Status)

	// still within the claim timeout
	clock = clock.Add(30 * time.Second)
	require.NoError(t, p.ProcessBatch(ctx))
	assert.Equal(t, 1, calls)

	clock = clock.Add(time.Minute)
	require.NoError(t, p.ProcessBatch(ctx))

	got := store.get(1)
	assert.Equal(t, 2, calls)
	assert.Equal(t, models.OutboxStatusCompleted, got.Status)
	assert.Equal(t, 2, got.ProcessingAttempts)
	assert.Nil(t, got.ProcessingStartedAt)
}

func TestProcessBatchSettlesClaimWhenCancelledMidDelivery(t *testing.T) {
	store := newFakeStore(message(1, models.EventOrderCreated), message(2, models.EventOrderCreated))
	p := newProcessor(store, 1, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int
	p.RegisterHandler(models.EventOrderCreated, handlerFunc(func(ctx context.Context, m *models.OutboxMessage) error {
		calls++
		cancel()
		return apperrors.NewTemporaryError(ctx.Err())
	}))

	assert.ErrorIs(t, p.ProcessBatch(ctx), context.Canceled)
	assert.Equal(t, 1, calls)

	got := store.get(1)
	assert.Equal(t, models.OutboxStatusPending, got.Status)
	assert.Equal(t, 1, got.ProcessingAttempts)
	assert.Nil(t, got.ProcessingStartedAt)
	assert.Equal(t, circuitbreaker.StateClosed, p.breaker.State())

	// the next batch after restart picks it up again
	p.RegisterHandler(models.EventOrderCreated, handlerFunc(func(ctx context.Context, m *models.OutboxMessage) error {
		return nil
	}))
	require.NoError(t, p.ProcessBatch(context.Background()))
	assert.Equal(t, models.OutboxStatusCompleted, store.get(1).Status)
	assert.Equal(t, models.OutboxStatusCompleted, store.get(2).Status)
}

func TestProcessBatchReclaimError(t *testing.T) {
	store := &reclaimFailingStore{fakeStore: newFakeStore(message(1, models.EventOrderCreated))}
	p := newProcessor(store, 3, nil)

	err := p.ProcessBatch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reclaim")
	assert.Equal(t, 0, store.get(1).ProcessingAttempts)
}

type reclaimFailingStore struct {
	*fakeStore
}

func (s *reclaimFailingStore) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, errors.New("connection refused")
}
