package services

import (
	"context"

	"github.com/openmesh-labs/identityhub/internal/pkg/logger"
	"github.com/openmesh-labs/identityhub/internal/realtime"
	"github.com/openmesh-labs/identityhub/internal/realtime/bus"
)

// Notifier pushes merge lifecycle events onto the realtime channel.
// Publishing is best-effort; a dead broker never fails a merge.
type Notifier interface {
	Notify(ctx context.Context, msg realtime.Message)
}

type notifier struct {
	bus bus.Bus
	log *logger.Logger
}

func NewNotifier(b bus.Bus, baseLog *logger.Logger) Notifier {
	return &notifier{bus: b, log: baseLog.With("service", "Notifier")}
}

func (n *notifier) Notify(ctx context.Context, msg realtime.Message) {
	if n.bus == nil {
		return
	}
	if err := n.bus.Publish(ctx, msg); err != nil {
		n.log.Warn("realtime publish failed", "event", msg.Event, "primary_id", msg.PrimaryID, "error", err)
	}
}
