package types

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEnvelope_Matched(t *testing.T) {
	body := []byte(`{
		"target_user": {
			"name": "Alice",
			"email": "alice@duke.edu",
			"phone_number": "919-555-0101",
			"apn_token": null
		},
		"channels": ["Email"],
		"payload": {
			"type": "Matched",
			"data": {
				"match_id": "match-42",
				"group": [
					{"name": "Alice", "email": "alice@duke.edu", "phone_number": "919-555-0101", "apn_token": null},
					{"name": "Bob", "email": "bob@duke.edu", "phone_number": "919-555-0102", "apn_token": null}
				],
				"datetime_start": "2025-01-01T15:00:00Z",
				"datetime_end": "2025-01-01T16:00:00Z"
			}
		},
		"trace_id": "req-123"
	}`)

	env, err := DecodeEnvelope(body)
	require.NoError(t, err)

	assert.Equal(t, "Alice", env.TargetUser.Name)
	assert.Equal(t, "alice@duke.edu", env.TargetUser.Email)
	assert.True(t, env.WantsChannel(ChannelEmail))
	assert.False(t, env.WantsChannel(ChannelAPN))
	require.NotNil(t, env.TraceID)
	assert.Equal(t, "req-123", *env.TraceID)

	matched, ok := env.Payload.(MatchedPurpose)
	require.True(t, ok, "payload should decode as MatchedPurpose, got %T", env.Payload)
	assert.Equal(t, "match-42", matched.Data.MatchID)
	require.Len(t, matched.Data.Group, 2)
	assert.Equal(t, "Bob", matched.Data.Group[1].Name)
	assert.Equal(t, time.Date(2025, 1, 1, 15, 0, 0, 0, time.UTC), matched.Data.DatetimeStart.UTC())
}

func TestDecodeEnvelope_Canceled(t *testing.T) {
	body := []byte(`{
		"target_user": {"name": "Bob", "email": "bob@duke.edu", "phone_number": "919-555-0102", "apn_token": null},
		"channels": ["Email", "APN"],
		"payload": {
			"type": "Canceled",
			"data": {
				"match_id": "match-7",
				"group": [{"name": "Bob", "email": "bob@duke.edu", "phone_number": "919-555-0102", "apn_token": null}],
				"datetime_start": "2025-02-10T12:00:00Z",
				"datetime_end": "2025-02-10T13:00:00Z"
			},
			"reason": "A rider left the group"
		}
	}`)

	env, err := DecodeEnvelope(body)
	require.NoError(t, err)

	canceled, ok := env.Payload.(CanceledPurpose)
	require.True(t, ok)
	assert.Equal(t, "A rider left the group", canceled.Reason)
	assert.True(t, env.WantsChannel(ChannelAPN))
	assert.Nil(t, env.TraceID)
}

func TestDecodeEnvelope_AuthToken(t *testing.T) {
	body := []byte(`{
		"target_user": {"name": "Carol", "email": "carol@duke.edu", "phone_number": "919-555-0103", "apn_token": "tok"},
		"channels": ["Email"],
		"payload": {
			"type": "AuthToken",
			"data": {"token": "482913", "eov": "2025-01-01T00:00:00Z"}
		}
	}`)

	env, err := DecodeEnvelope(body)
	require.NoError(t, err)

	auth, ok := env.Payload.(AuthTokenPurpose)
	require.True(t, ok)
	assert.Equal(t, "482913", auth.Data.Token)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), auth.Data.ValidUntil.UTC())
}

func TestDecodeEnvelope_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "truncated json",
			body: `{not json`,
		},
		{
			name: "empty body",
			body: ``,
		},
		{
			name: "missing target_user",
			body: `{"channels":["Email"],"payload":{"type":"AuthToken","data":{"token":"1","eov":"2025-01-01T00:00:00Z"}}}`,
		},
		{
			name: "empty recipient email",
			body: `{"target_user":{"name":"X","email":"","phone_number":"1"},"channels":["Email"],"payload":{"type":"AuthToken","data":{"token":"1","eov":"2025-01-01T00:00:00Z"}}}`,
		},
		{
			name: "missing payload",
			body: `{"target_user":{"name":"X","email":"x@duke.edu","phone_number":"1"},"channels":["Email"]}`,
		},
		{
			name: "missing payload data",
			body: `{"target_user":{"name":"X","email":"x@duke.edu","phone_number":"1"},"channels":["Email"],"payload":{"type":"Matched"}}`,
		},
		{
			name: "unknown payload type",
			body: `{"target_user":{"name":"X","email":"x@duke.edu","phone_number":"1"},"channels":["Email"],"payload":{"type":"Promo","data":{}}}`,
		},
		{
			name: "matched with empty data object",
			body: `{"target_user":{"name":"X","email":"x@duke.edu","phone_number":"1"},"channels":["Email"],"payload":{"type":"Matched","data":{}}}`,
		},
		{
			name: "matched missing datetime_end",
			body: `{"target_user":{"name":"X","email":"x@duke.edu","phone_number":"1"},"channels":["Email"],"payload":{"type":"Matched","data":{"match_id":"m1","group":[],"datetime_start":"2025-01-01T00:00:00Z"}}}`,
		},
		{
			name: "auth token missing eov",
			body: `{"target_user":{"name":"X","email":"x@duke.edu","phone_number":"1"},"channels":["Email"],"payload":{"type":"AuthToken","data":{"token":"482913"}}}`,
		},
		{
			name: "unknown channel value",
			body: `{"target_user":{"name":"X","email":"x@duke.edu","phone_number":"1"},"channels":["SMS"],"payload":{"type":"AuthToken","data":{"token":"482913","eov":"2025-01-01T00:00:00Z"}}}`,
		},
		{
			name: "canceled without reason",
			body: `{"target_user":{"name":"X","email":"x@duke.edu","phone_number":"1"},"channels":["Email"],"payload":{"type":"Canceled","data":{"match_id":"m1","group":[],"datetime_start":"2025-01-01T00:00:00Z","datetime_end":"2025-01-01T01:00:00Z"}}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := DecodeEnvelope([]byte(tt.body))
			require.Error(t, err)
			assert.Nil(t, env)

			var appErr *AppError
			require.True(t, errors.As(err, &appErr), "decode errors must carry a code, got %T", err)
			assert.Equal(t, ErrCodeMalformedPayload, appErr.Code)
		})
	}
}

func TestEnvelope_RoundTrip(t *testing.T) {
	traceID := "trace-9"
	tests := []struct {
		name string
		env  Envelope
	}{
		{
			name: "matched with trace id",
			env: Envelope{
				TargetUser: User{Name: "Alice", Email: "alice@duke.edu", PhoneNumber: "919-555-0101"},
				Channels:   []ChannelType{ChannelEmail},
				Payload: MatchedPurpose{Data: GroupContext{
					MatchID: "m-3",
					Group: []User{
						{Name: "Alice", Email: "alice@duke.edu", PhoneNumber: "919-555-0101"},
					},
					DatetimeStart: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
					DatetimeEnd:   time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
				}},
				TraceID: &traceID,
			},
		},
		{
			name: "canceled without trace id",
			env: Envelope{
				TargetUser: User{Name: "Bob", Email: "bob@duke.edu", PhoneNumber: "919-555-0102"},
				Channels:   []ChannelType{ChannelEmail, ChannelAPN},
				Payload: CanceledPurpose{
					Data: GroupContext{
						MatchID:       "m-4",
						Group:         []User{{Name: "Bob", Email: "bob@duke.edu", PhoneNumber: "919-555-0102"}},
						DatetimeStart: time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC),
						DatetimeEnd:   time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC),
					},
					Reason: "schedule conflict",
				},
			},
		},
		{
			name: "auth token",
			env: Envelope{
				TargetUser: User{Name: "Carol", Email: "carol@duke.edu", PhoneNumber: "919-555-0103"},
				Channels:   []ChannelType{ChannelEmail},
				Payload: AuthTokenPurpose{Data: AuthToken{
					Token:      "482913",
					ValidUntil: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
				}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.env)
			require.NoError(t, err)

			got, err := DecodeEnvelope(data)
			require.NoError(t, err)
			assert.Equal(t, &tt.env, got)
		})
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{
			name: "direct app error",
			err:  NewAppError(ErrCodeTransportUnavailable, "smtp down", nil),
			want: ErrCodeTransportUnavailable,
		},
		{
			name: "wrapped app error",
			err:  errors.Join(errors.New("outer"), NewAppError(ErrCodeTemplateBuild, "bad address", nil)),
			want: ErrCodeTemplateBuild,
		},
		{
			name: "unclassified error",
			err:  errors.New("something else"),
			want: ErrCodeMalformedPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf() = %q, want %q", got, tt.want)
			}
		})
	}
}
