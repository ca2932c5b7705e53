package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/interfaces"
)

func TestSubscribeAndPublishSync(t *testing.T) {
	service := NewService(arbor.NewLogger())

	var mu sync.Mutex
	var received []interfaces.Event
	_, err := service.Subscribe(interfaces.EventEntrySaved, func(ctx context.Context, event interfaces.Event) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, event)
		return nil
	})
	require.NoError(t, err)

	err = service.PublishSync(context.Background(), interfaces.Event{
		Type:    interfaces.EventEntrySaved,
		Payload: "entry_1",
	})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, "entry_1", received[0].Payload)
}

func TestSubscribe_RejectsNilHandler(t *testing.T) {
	service := NewService(arbor.NewLogger())
	_, err := service.Subscribe(interfaces.EventEntrySaved, nil)
	assert.Error(t, err)
}

func TestDisposerRemovesOnlyItsHandler(t *testing.T) {
	service := NewService(arbor.NewLogger())

	var first, second atomic.Int32
	disposeFirst, err := service.Subscribe(interfaces.EventStatusChanged, func(ctx context.Context, event interfaces.Event) error {
		first.Add(1)
		return nil
	})
	require.NoError(t, err)
	_, err = service.Subscribe(interfaces.EventStatusChanged, func(ctx context.Context, event interfaces.Event) error {
		second.Add(1)
		return nil
	})
	require.NoError(t, err)

	disposeFirst()
	disposeFirst() // second call is harmless

	err = service.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventStatusChanged})
	require.NoError(t, err)

	assert.Equal(t, int32(0), first.Load())
	assert.Equal(t, int32(1), second.Load())
}

func TestPublish_Asynchronous(t *testing.T) {
	service := NewService(arbor.NewLogger())

	var count atomic.Int32
	_, err := service.Subscribe(interfaces.EventImageUsed, func(ctx context.Context, event interfaces.Event) error {
		count.Add(1)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, service.Publish(context.Background(), interfaces.Event{Type: interfaces.EventImageUsed}))

	assert.Eventually(t, func() bool {
		return count.Load() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestPublishSync_SurfacesHandlerError(t *testing.T) {
	service := NewService(arbor.NewLogger())

	_, err := service.Subscribe(interfaces.EventEntryConflict, func(ctx context.Context, event interfaces.Event) error {
		return fmt.Errorf("handler exploded")
	})
	require.NoError(t, err)

	err = service.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventEntryConflict})
	assert.Error(t, err)
}

func TestPublish_NoSubscribersIsNoOp(t *testing.T) {
	service := NewService(arbor.NewLogger())
	assert.NoError(t, service.Publish(context.Background(), interfaces.Event{Type: interfaces.EventPublishComplete}))
	assert.NoError(t, service.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventPublishComplete}))
}

func TestClose_StopsNewSubscriptions(t *testing.T) {
	service := NewService(arbor.NewLogger())
	require.NoError(t, service.Close())

	_, err := service.Subscribe(interfaces.EventEntrySaved, func(ctx context.Context, event interfaces.Event) error {
		return nil
	})
	assert.Error(t, err)
}
