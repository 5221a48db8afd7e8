package dispatch

import (
	"time"

	"blueride-notifier/internal/types"
)

// AckState is the terminal outcome recorded for a delivery.
type AckState string

const (
	// StateAccepted means the notification was handled and acked.
	StateAccepted AckState = "accepted"
	// StateRejected means the message was dropped permanently.
	StateRejected AckState = "rejected"
	// StateRequeued means the message went back to the queue for retry.
	StateRequeued AckState = "requeued"
)

// Delivery is the subset of broker delivery operations the resolver needs.
// Exactly one of Ack or Reject is invoked per delivery.
type Delivery interface {
	Ack() error
	Reject(requeue bool) error
}

// AckController turns a handling result into a broker acknowledgement.
//
// Success acks. Malformed payloads and composition failures are permanent
// and reject without requeue; redelivering them could never succeed.
// Transport failures are transient: the controller waits a cooldown, then
// rejects with requeue so the message is retried once the downstream
// recovers. The cooldown throttles the retry loop against a dead SMTP host.
type AckController struct {
	requeueDelay time.Duration
	sleep        func(time.Duration)
	logger       types.Logger
}

// NewAckController creates a controller with the given requeue cooldown.
func NewAckController(requeueDelay time.Duration, logger types.Logger) *AckController {
	return &AckController{
		requeueDelay: requeueDelay,
		sleep:        time.Sleep,
		logger:       logger,
	}
}

// Resolve performs the terminal operation for the delivery based on err
// and returns the state it settled on. Broker errors during ack/reject are
// logged, not propagated; the delivery is already consumed at that point.
func (a *AckController) Resolve(d Delivery, err error) AckState {
	if err == nil {
		if ackErr := d.Ack(); ackErr != nil {
			a.logger.Error("failed to ack delivery", "error", ackErr)
		}
		return StateAccepted
	}

	switch types.CodeOf(err) {
	case types.ErrCodeTransportUnavailable:
		a.logger.Warn("transport unavailable, requeueing after cooldown",
			"delay", a.requeueDelay.String(),
			"error", err,
		)
		a.sleep(a.requeueDelay)
		if rejErr := d.Reject(true); rejErr != nil {
			a.logger.Error("failed to requeue delivery", "error", rejErr)
		}
		return StateRequeued
	default:
		if rejErr := d.Reject(false); rejErr != nil {
			a.logger.Error("failed to reject delivery", "error", rejErr)
		}
		return StateRejected
	}
}
