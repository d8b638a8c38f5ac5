package notify

import (
	"context"

	"github.com/NasaVasa/itemwatcher/internal/domain"
	"go.uber.org/zap"
)

// LogNotifier writes alerts to the log. It is the channel of last resort when
// nothing else is configured.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Dispatch(_ context.Context, event domain.AlertEvent) domain.DeliveryOutcome {
	n.logger.Info(
		"alert",
		zap.String("event_id", event.ID),
		zap.Uint("product_id", event.ProductID),
		zap.String("transition", string(event.Kind)),
		zap.String("title", event.Title),
		zap.Int64p("old_price", event.OldPrice),
		zap.Int64p("new_price", event.NewPrice),
		zap.String("currency", event.Currency),
		zap.String("url", event.URL),
	)
	return domain.DeliveryOutcome{Channel: "log", Kind: event.Kind, Delivered: true}
}
