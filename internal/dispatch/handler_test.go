package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blueride-notifier/internal/types"
)

func newTestHandler(t *testing.T, transport *recordingTransport, slept *[]time.Duration) *Handler {
	t.Helper()
	return NewHandler(
		newTestRouter(t, transport),
		newTestAckController(slept),
		NewMetrics(),
		nopLogger{},
	)
}

func encodeEnvelope(t *testing.T, env types.Envelope) []byte {
	t.Helper()
	data, err := json.Marshal(env)
	require.NoError(t, err)
	return data
}

func TestHandler_Handle_Success(t *testing.T) {
	transport := &recordingTransport{}
	h := newTestHandler(t, transport, nil)

	body := encodeEnvelope(t, types.Envelope{
		TargetUser: types.User{Name: "Alice", Email: "alice@duke.edu", PhoneNumber: "919-555-0101"},
		Channels:   []types.ChannelType{types.ChannelEmail},
		Payload:    types.MatchedPurpose{Data: testGroup()},
	})
	d := &fakeDelivery{}

	state := h.Handle(context.Background(), body, d)

	assert.Equal(t, StateAccepted, state)
	assert.True(t, d.acked)
	assert.Equal(t, 1, d.terminalOps())
	require.Len(t, transport.sent, 1)
	assert.Equal(t, int64(1), h.metrics.Accepted.Load())
}

func TestHandler_Handle_UndecodableBody(t *testing.T) {
	transport := &recordingTransport{}
	h := newTestHandler(t, transport, nil)
	d := &fakeDelivery{}

	state := h.Handle(context.Background(), []byte(`{not json`), d)

	assert.Equal(t, StateRejected, state)
	assert.True(t, d.rejected)
	assert.False(t, d.requeue, "malformed messages must not be redelivered")
	assert.Equal(t, 1, d.terminalOps())
	assert.Empty(t, transport.sent)
	assert.Equal(t, int64(1), h.metrics.DecodeFailures.Load())
	assert.Equal(t, int64(1), h.metrics.Rejected.Load())
}

func TestHandler_Handle_TransportDown(t *testing.T) {
	transport := &recordingTransport{sendErr: errors.New("connection refused")}
	var slept []time.Duration
	h := newTestHandler(t, transport, &slept)

	body := encodeEnvelope(t, types.Envelope{
		TargetUser: types.User{Name: "Alice", Email: "alice@duke.edu", PhoneNumber: "919-555-0101"},
		Channels:   []types.ChannelType{types.ChannelEmail},
		Payload:    types.CanceledPurpose{Data: testGroup(), Reason: "schedule conflict"},
	})
	d := &fakeDelivery{}

	state := h.Handle(context.Background(), body, d)

	assert.Equal(t, StateRequeued, state)
	assert.True(t, d.rejected)
	assert.True(t, d.requeue)
	assert.Equal(t, 1, d.terminalOps())
	assert.Equal(t, []time.Duration{10 * time.Second}, slept, "cooldown precedes requeue")
	assert.Equal(t, int64(1), h.metrics.Requeued.Load())
}

func TestHandler_Handle_BadRecipientAddress(t *testing.T) {
	transport := &recordingTransport{}
	h := newTestHandler(t, transport, nil)

	// The address decodes (non-empty) but does not parse as a mail
	// address, so composition fails permanently.
	body := encodeEnvelope(t, types.Envelope{
		TargetUser: types.User{Name: "X", Email: "not-an-address", PhoneNumber: "1"},
		Channels:   []types.ChannelType{types.ChannelEmail},
		Payload:    types.MatchedPurpose{Data: testGroup()},
	})
	d := &fakeDelivery{}

	state := h.Handle(context.Background(), body, d)

	assert.Equal(t, StateRejected, state)
	assert.False(t, d.requeue)
	assert.Empty(t, transport.sent)
	assert.Equal(t, int64(1), h.metrics.Rejected.Load())
}

func TestHandler_Handle_PushChannelCounted(t *testing.T) {
	transport := &recordingTransport{}
	h := newTestHandler(t, transport, nil)

	body := encodeEnvelope(t, types.Envelope{
		TargetUser: types.User{Name: "Alice", Email: "alice@duke.edu", PhoneNumber: "919-555-0101", APNToken: "tok"},
		Channels:   []types.ChannelType{types.ChannelEmail, types.ChannelAPN},
		Payload:    types.MatchedPurpose{Data: testGroup()},
	})
	d := &fakeDelivery{}

	state := h.Handle(context.Background(), body, d)

	// Email still goes out; the push request is only counted.
	assert.Equal(t, StateAccepted, state)
	require.Len(t, transport.sent, 1)
	assert.Equal(t, int64(1), h.metrics.PushSkipped.Load())
}

func TestMetrics_Snapshot(t *testing.T) {
	m := NewMetrics()
	m.Record(StateAccepted)
	m.Record(StateAccepted)
	m.Record(StateRejected)
	m.Record(StateRequeued)
	m.DecodeFailures.Add(1)

	s := m.Snapshot()
	assert.Equal(t, int64(2), s.Accepted)
	assert.Equal(t, int64(1), s.Rejected)
	assert.Equal(t, int64(1), s.Requeued)
	assert.Equal(t, int64(1), s.DecodeFailures)
	assert.Equal(t, int64(0), s.PushSkipped)
	assert.NotEmpty(t, s.StartedAt)
}
