package realtime

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/radiusdt/vector-analytics/internal/models"
)

// Envelope kinds on the shared broadcast channel.
const (
	kindIngestion = "ingestion"
	kindAlert     = "alert"
)

// envelope is the wire format on the cross-instance channel. Origin lets an
// instance skip its own messages; EventID exists for log correlation.
type envelope struct {
	EventID string `json:"event_id"`
	Origin  string `json:"origin"`
	Kind    string `json:"kind"`

	Ingestion *models.IngestionEvent `json:"ingestion,omitempty"`
	Alert     *models.Alert          `json:"alert,omitempty"`
}

func (h *Hub) publish(ctx context.Context, env envelope) error {
	if h.broker == nil {
		return nil
	}

	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if err := h.broker.Publish(ctx, h.cfg.Channel, data); err != nil {
		return err
	}

	if h.metrics != nil {
		h.metrics.RecordBroadcastOut()
	}
	return nil
}

// Run consumes the shared broadcast channel until the context is cancelled,
// reacting to events published by other instances. Local delivery already
// happened at publish time, so own-origin messages are skipped.
func (h *Hub) Run(ctx context.Context) error {
	if h.broker == nil {
		<-ctx.Done()
		return nil
	}

	sub, err := h.broker.Subscribe(ctx, h.cfg.Channel)
	if err != nil {
		return err
	}
	defer sub.Close()

	h.logger.Info("broadcast listener started",
		zap.String("channel", h.cfg.Channel),
		zap.String("instance_id", h.instanceID),
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-sub.Messages():
			if !ok {
				return nil
			}
			h.handleBroadcast(data)
		}
	}
}

func (h *Hub) handleBroadcast(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		h.logger.Warn("malformed broadcast message", zap.Error(err))
		return
	}
	if env.Origin == h.instanceID {
		return
	}

	if h.metrics != nil {
		h.metrics.RecordBroadcastIn()
	}

	switch env.Kind {
	case kindIngestion:
		if env.Ingestion == nil {
			return
		}
		h.markMatching(env.Ingestion.TenantID, env.Ingestion.CampaignIDs)
	case kindAlert:
		if env.Alert == nil {
			return
		}
		h.pushAlert(*env.Alert)
	default:
		h.logger.Warn("unknown broadcast kind", zap.String("kind", env.Kind))
	}
}
