package dispatch

import (
	"context"
	"fmt"

	"blueride-notifier/internal/mailer"
	"blueride-notifier/internal/types"
)

// Router maps a decoded envelope to the right email composition and hands
// the result to the transport. Composition errors pass through with their
// own classification; transport errors are wrapped as
// ErrCodeTransportUnavailable so the caller schedules a requeue.
type Router struct {
	composer  *Composer
	transport mailer.Transport
	logger    types.Logger
}

// NewRouter creates a Router wired to the given composer and transport.
func NewRouter(composer *Composer, transport mailer.Transport, logger types.Logger) *Router {
	return &Router{
		composer:  composer,
		transport: transport,
		logger:    logger,
	}
}

// Dispatch composes and sends the email for the envelope's purpose.
func (r *Router) Dispatch(ctx context.Context, env *types.Envelope) error {
	var (
		msg mailer.Message
		err error
	)

	switch p := env.Payload.(type) {
	case types.MatchedPurpose:
		msg, err = r.composer.Matched(env.TargetUser, p.Data)
	case types.CanceledPurpose:
		msg, err = r.composer.Canceled(env.TargetUser, p.Data, p.Reason)
	case types.AuthTokenPurpose:
		msg, err = r.composer.AuthToken(env.TargetUser, p.Data)
	default:
		return types.NewAppError(types.ErrCodeMalformedPayload,
			fmt.Sprintf("unsupported notification purpose %T", env.Payload), nil)
	}
	if err != nil {
		return err
	}

	if err := r.transport.Send(ctx, msg); err != nil {
		return types.NewAppError(types.ErrCodeTransportUnavailable,
			"email transport send failed", err)
	}

	r.logger.Info("email dispatched",
		"purpose", env.Payload.PurposeType(),
		"recipient", RedactEmail(env.TargetUser.Email),
	)
	return nil
}
