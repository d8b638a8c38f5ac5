package notify

import (
	"context"
	"strings"
	"sync"

	"github.com/NasaVasa/itemwatcher/internal/domain"
)

// Fanout delivers each alert to every channel in parallel. The alert counts as
// delivered when at least one channel delivered it.
type Fanout struct {
	channels []domain.AlertDispatcher
}

func NewFanout(channels ...domain.AlertDispatcher) *Fanout {
	return &Fanout{channels: channels}
}

func (f *Fanout) Add(channel domain.AlertDispatcher) {
	f.channels = append(f.channels, channel)
}

func (f *Fanout) Len() int {
	return len(f.channels)
}

func (f *Fanout) Dispatch(ctx context.Context, event domain.AlertEvent) domain.DeliveryOutcome {
	if len(f.channels) == 0 {
		return domain.DeliveryOutcome{Channel: "none", Kind: event.Kind, Reason: "no alert channels configured"}
	}

	outcomes := make([]domain.DeliveryOutcome, len(f.channels))
	var wg sync.WaitGroup
	for i, channel := range f.channels {
		wg.Add(1)
		go func(i int, channel domain.AlertDispatcher) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					outcomes[i] = domain.DeliveryOutcome{Channel: "unknown", Reason: "channel panicked"}
				}
			}()
			outcomes[i] = channel.Dispatch(ctx, event)
		}(i, channel)
	}
	wg.Wait()

	merged := domain.DeliveryOutcome{Kind: event.Kind}
	var names, reasons []string
	for _, o := range outcomes {
		names = append(names, o.Channel)
		if o.Delivered {
			merged.Delivered = true
		} else if o.Reason != "" {
			reasons = append(reasons, o.Channel+": "+o.Reason)
		}
	}
	merged.Channel = strings.Join(names, ",")
	merged.Reason = strings.Join(reasons, "; ")
	return merged
}
