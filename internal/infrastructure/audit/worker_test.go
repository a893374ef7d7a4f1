package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domoutbox "github.com/mossleaf/bookmart/internal/domain/outbox"
	domsettle "github.com/mossleaf/bookmart/internal/domain/settlement"
)

type recordingSubscriber struct {
	handlers map[string]domoutbox.Handler
}

func (s *recordingSubscriber) Subscribe(name string, h domoutbox.Handler) {
	s.handlers[name] = h
}

func TestWorker_SubscribesToSettlementEvents(t *testing.T) {
	sub := &recordingSubscriber{handlers: make(map[string]domoutbox.Handler)}
	New(sub, nil).Start()

	for _, name := range []string{
		"settlement.completed",
		"settlement.rejected",
		"settlement.inconsistency",
	} {
		assert.Contains(t, sub.handlers, name)
	}
}

func TestWorker_HandlersTolerateForeignEvents(t *testing.T) {
	sub := &recordingSubscriber{handlers: make(map[string]domoutbox.Handler)}
	New(sub, nil).Start()

	// An event with a matching name but unexpected payload type must be
	// ignored, not crash the fanout.
	for _, h := range sub.handlers {
		assert.NoError(t, h(context.Background(), domsettle.RejectedEvent{}))
		assert.NoError(t, h(context.Background(), domsettle.CompletedEvent{}))
	}
}

func TestWorker_HandlesRealEvents(t *testing.T) {
	sub := &recordingSubscriber{handlers: make(map[string]domoutbox.Handler)}
	New(sub, nil).Start()

	completed := domsettle.NewCompletedEvent(&domsettle.Receipt{
		SettlementID: "stl-1",
		AccountID:    "acct-1",
		OrderTotal:   12000,
	})
	require.NoError(t, sub.handlers[completed.EventName()](context.Background(), completed))

	rejected := domsettle.NewRejectedEvent("stl-2", "acct-1", "INSUFFICIENT_STOCK")
	require.NoError(t, sub.handlers[rejected.EventName()](context.Background(), rejected))

	inconsistent := domsettle.NewInconsistencyEvent("stl-3", "acct-1", "release item X: write rejected")
	require.NoError(t, sub.handlers[inconsistent.EventName()](context.Background(), inconsistent))
}
