package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domrepo "FactorLens/internal/domain/repository"
	pkgkafka "FactorLens/pkg/kafka"
	applogger "FactorLens/pkg/logger"
)

// RefreshCommand is the payload of a refresh message: {"window":252}.
type RefreshCommand struct {
	Window int    `json:"window"`
	Reason string `json:"reason,omitempty"`
}

// RefreshHandler consumes refresh commands from Kafka.
type RefreshHandler struct {
	topic   string
	svc     *RiskService
	metrics domrepo.Metrics
	l       *applogger.Logger
}

func NewRefreshHandler(topic string, svc *RiskService, metrics domrepo.Metrics, l *applogger.Logger) *RefreshHandler {
	if l == nil {
		l = applogger.Nop()
	}
	return &RefreshHandler{topic: topic, svc: svc, metrics: metrics, l: l}
}

func (h *RefreshHandler) Topic() string { return h.topic }

// Handle runs one refresh. An empty payload refreshes with the default window.
// A refresh already in progress is not an error: the running one covers the request.
func (h *RefreshHandler) Handle(ctx context.Context, b []byte) error {
	var cmd RefreshCommand
	if len(b) > 0 {
		if err := json.Unmarshal(b, &cmd); err != nil {
			h.metrics.RecordError("consumer_unmarshal")
			return fmt.Errorf("decode refresh command: %w", err)
		}
	}
	if cmd.Window < 0 {
		h.metrics.RecordError("consumer_invalid")
		return fmt.Errorf("refresh command: negative window %d", cmd.Window)
	}

	start := time.Now()
	res, err := h.svc.Refresh(ctx, cmd.Window)
	h.metrics.RecordLatency("consumer_refresh", time.Since(start).Seconds())
	if errors.Is(err, ErrRefreshInProgress) {
		h.l.Info("refresh command skipped, refresh in progress",
			applogger.String("trace_id", pkgkafka.TraceIDFromContext(ctx)))
		return nil
	}
	if err != nil {
		h.metrics.RecordError("consumer_refresh")
		return err
	}
	h.l.Info("refresh command done",
		applogger.String("run_id", res.ID),
		applogger.Int64("version", res.Version),
		applogger.String("reason", cmd.Reason),
		applogger.String("trace_id", pkgkafka.TraceIDFromContext(ctx)))
	return nil
}

var _ pkgkafka.MessageHandler = (*RefreshHandler)(nil)
