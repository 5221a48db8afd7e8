// Package mailer provides the outbound mail transport. The transport is a
// process-wide shared resource: it is constructed once at startup and
// injected into every dispatch unit, which only ever calls Send. It is
// safe for concurrent use.
package mailer

import "context"

// Message is a fully built email ready for transmission. Addresses have
// already been validated by the composer; the transport does not inspect
// the content.
type Message struct {
	FromName    string
	FromAddress string
	ToName      string
	ToAddress   string
	Subject     string
	Body        string // plain text
}

// Transport abstracts the external mail service. Implementations report
// any failure (network, auth, quota) as an error; classification into a
// dispatch error code happens in the router.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}
