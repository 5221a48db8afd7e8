package dispatch

import (
	"context"

	"blueride-notifier/internal/types"
)

// Handler processes one raw queue message end to end: decode, dispatch,
// acknowledge. It owns the decision of which terminal operation the
// delivery gets and records the outcome in the metrics.
type Handler struct {
	router  *Router
	acks    *AckController
	metrics *Metrics
	logger  types.Logger
}

// NewHandler wires a Handler from its collaborators.
func NewHandler(router *Router, acks *AckController, metrics *Metrics, logger types.Logger) *Handler {
	return &Handler{
		router:  router,
		acks:    acks,
		metrics: metrics,
		logger:  logger,
	}
}

// Handle consumes one delivery. It always resolves the delivery to exactly
// one terminal state and returns it.
func (h *Handler) Handle(ctx context.Context, body []byte, d Delivery) AckState {
	env, err := types.DecodeEnvelope(body)
	if err != nil {
		h.logger.Warn("discarding undecodable message", "error", err)
		h.metrics.DecodeFailures.Add(1)
		state := h.acks.Resolve(d, err)
		h.metrics.Record(state)
		return state
	}

	logger := h.logger
	if env.TraceID != nil {
		logger = logger.With("trace_id", *env.TraceID)
	}

	logger.Info("processing notification",
		"purpose", env.Payload.PurposeType(),
		"recipient", RedactEmail(env.TargetUser.Email),
	)

	// Push delivery is not implemented; requests for it are recorded so
	// the gap stays visible in the counters.
	if env.WantsChannel(types.ChannelAPN) {
		logger.Info("push channel requested but not supported, email only")
		h.metrics.PushSkipped.Add(1)
	}

	err = h.router.Dispatch(ctx, env)
	if err != nil {
		logger.Error("notification dispatch failed",
			"purpose", env.Payload.PurposeType(),
			"error_code", string(types.CodeOf(err)),
			"error", err,
		)
	}

	state := h.acks.Resolve(d, err)
	h.metrics.Record(state)
	return state
}
