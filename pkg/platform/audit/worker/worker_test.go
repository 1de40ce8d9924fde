package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripsecretary/internal/platform/kafka/producer"
	"tripsecretary/pkg/platform/audit/outbox"
	"tripsecretary/pkg/platform/audit/outbox/store/memory"
)

type capturingPublisher struct {
	mu       sync.Mutex
	messages []*producer.Message
	fail     bool
}

func (p *capturingPublisher) Produce(_ context.Context, msg *producer.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker unavailable")
	}
	p.messages = append(p.messages, msg)
	return nil
}

func (p *capturingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}

func appendEntry(t *testing.T, store *memory.Store, eventType string) *outbox.Entry {
	t.Helper()
	entry := outbox.NewEntry("user", "u-1", eventType, []byte(`{"Action":"`+eventType+`"}`))
	require.NoError(t, store.Append(context.Background(), entry))
	return entry
}

func TestWorkerPublishesAndMarksProcessed(t *testing.T) {
	store := memory.New()
	pub := &capturingPublisher{}
	appendEntry(t, store, "card_submitted")
	appendEntry(t, store, "form_saved")

	w := New(store, pub, WithPollInterval(5*time.Millisecond), WithTopic("audit.test"))
	w.Start()

	require.Eventually(t, func() bool {
		pending, err := store.CountPending(context.Background())
		return err == nil && pending == 0
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, w.Stop(context.Background()))

	assert.Equal(t, 2, pub.count())
	assert.Equal(t, "audit.test", pub.messages[0].Topic)
	assert.Equal(t, "card_submitted", pub.messages[0].Headers["event_type"])
}

func TestWorkerRetriesFailedPublishes(t *testing.T) {
	store := memory.New()
	pub := &capturingPublisher{fail: true}
	appendEntry(t, store, "user_data_deleted")

	w := New(store, pub, WithPollInterval(5*time.Millisecond))
	w.Start()

	// Entry stays pending while the broker is down.
	time.Sleep(50 * time.Millisecond)
	pending, err := store.CountPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)

	pub.mu.Lock()
	pub.fail = false
	pub.mu.Unlock()

	require.Eventually(t, func() bool {
		pending, err := store.CountPending(context.Background())
		return err == nil && pending == 0
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, w.Stop(context.Background()))
	assert.Equal(t, 1, pub.count())
}
