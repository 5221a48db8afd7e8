package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	mail "github.com/wneessen/go-mail"

	"blueride-notifier/internal/types"
)

// SMTPTransport delivers email through an SMTP relay using go-mail. A
// single client is shared by all concurrent dispatch units; go-mail dials
// per send, so no connection state is held between calls.
//
// All sends pass through a circuit breaker. When the relay fails
// repeatedly the breaker opens and sends fail fast with ErrOpenState,
// which callers classify the same as any other transport failure.
type SMTPTransport struct {
	client  *mail.Client
	breaker *gobreaker.CircuitBreaker[any]
	logger  types.Logger
}

// SMTPConfig holds connection parameters for the SMTP relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// NewSMTPTransport creates the shared SMTP transport. Returns an error if
// the client cannot be constructed; no connection is attempted here.
func NewSMTPTransport(cfg SMTPConfig, logger types.Logger) (*SMTPTransport, error) {
	client, err := mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	)
	if err != nil {
		return nil, fmt.Errorf("smtp transport: failed to create mail client: %w", err)
	}

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "smtp",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &SMTPTransport{
		client:  client,
		breaker: cb,
		logger:  logger,
	}, nil
}

// Send transmits one message through the relay.
func (t *SMTPTransport) Send(ctx context.Context, msg Message) error {
	m := mail.NewMsg()
	if err := m.FromFormat(msg.FromName, msg.FromAddress); err != nil {
		return fmt.Errorf("smtp transport: invalid from address: %w", err)
	}
	if err := m.AddToFormat(msg.ToName, msg.ToAddress); err != nil {
		return fmt.Errorf("smtp transport: invalid to address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)

	_, err := t.breaker.Execute(func() (any, error) {
		return nil, t.client.DialAndSendWithContext(ctx, m)
	})
	if err != nil {
		return fmt.Errorf("smtp transport: send failed: %w", err)
	}

	return nil
}

// Compile-time assertion that SMTPTransport implements Transport.
var _ Transport = (*SMTPTransport)(nil)
