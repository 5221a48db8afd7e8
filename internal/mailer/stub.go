package mailer

import (
	"context"

	"blueride-notifier/internal/types"
)

// StubTransport implements Transport by logging sends and returning
// success. Used when no SMTP relay is configured (local/test mode) so the
// worker can boot and drain its queue without real credentials.
type StubTransport struct {
	logger types.Logger
}

// NewStubTransport creates a new StubTransport.
func NewStubTransport(logger types.Logger) *StubTransport {
	return &StubTransport{logger: logger}
}

// Send logs the message instead of transmitting it.
func (s *StubTransport) Send(_ context.Context, msg Message) error {
	s.logger.Info("stub: email send suppressed",
		"to", msg.ToAddress,
		"subject", msg.Subject,
	)
	return nil
}

// Compile-time assertion that StubTransport implements Transport.
var _ Transport = (*StubTransport)(nil)
