// Package types defines the domain model shared across the notification
// worker: the inbound envelope, its payload variants, and the error
// taxonomy that drives queue acknowledgment.
package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// User identifies a notification recipient. Immutable once decoded; owned
// by the Envelope that contains it.
type User struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	APNToken    string `json:"apn_token"`
}

// ChannelType declares a delivery channel requested for a notification.
type ChannelType string

const (
	// ChannelEmail requests delivery by email.
	ChannelEmail ChannelType = "Email"

	// ChannelAPN requests delivery by Apple push notification. Accepted
	// on the wire but not dispatched; see the handler.
	ChannelAPN ChannelType = "APN"
)

// GroupContext is the ride-matching group shared by Matched and Canceled
// notifications. Group order is preserved from the wire.
type GroupContext struct {
	MatchID       string    `json:"match_id"`
	Group         []User    `json:"group"`
	DatetimeStart time.Time `json:"datetime_start"`
	DatetimeEnd   time.Time `json:"datetime_end"`
}

// AuthToken carries a one-time login code and its expiry instant. The
// wire field "eov" (end of validity) is kept for compatibility with the
// producer.
type AuthToken struct {
	Token      string    `json:"token"`
	ValidUntil time.Time `json:"eov"`
}

// Wire discriminator values for the payload union.
const (
	PurposeMatched   = "Matched"
	PurposeCanceled  = "Canceled"
	PurposeAuthToken = "AuthToken"
)

// Purpose is the closed set of notification payload variants. The set is
// fixed and small, so dispatch is a type switch rather than an open
// registry.
type Purpose interface {
	// PurposeType returns the wire discriminator for the variant.
	PurposeType() string
}

// MatchedPurpose announces that a ride group has been formed or extended.
type MatchedPurpose struct {
	Data GroupContext
}

// PurposeType implements Purpose.
func (MatchedPurpose) PurposeType() string { return PurposeMatched }

// CanceledPurpose announces that a member left and the match changed.
type CanceledPurpose struct {
	Data   GroupContext
	Reason string
}

// PurposeType implements Purpose.
func (CanceledPurpose) PurposeType() string { return PurposeCanceled }

// AuthTokenPurpose delivers a one-time authentication code.
type AuthTokenPurpose struct {
	Data AuthToken
}

// PurposeType implements Purpose.
func (AuthTokenPurpose) PurposeType() string { return PurposeAuthToken }

// Envelope is the fully decoded unit of work: one inbound queue message.
// Created once per delivery by DecodeEnvelope, consumed exactly once by
// the router, and discarded after dispatch completes.
type Envelope struct {
	TargetUser User
	Channels   []ChannelType
	Payload    Purpose
	TraceID    *string
}

// WantsChannel reports whether the envelope requested the given channel.
func (e *Envelope) WantsChannel(ch ChannelType) bool {
	for _, c := range e.Channels {
		if c == ch {
			return true
		}
	}
	return false
}

// envelopeWire mirrors the JSON layout of the inbound message body.
// Pointer fields distinguish "absent" from "zero" so required-field checks
// can be strict.
type envelopeWire struct {
	TargetUser *User           `json:"target_user"`
	Channels   []ChannelType   `json:"channels"`
	Payload    json.RawMessage `json:"payload"`
	TraceID    *string         `json:"trace_id"`
}

// purposeWire is the internally tagged payload union on the wire. Reason
// is a sibling of data, carried only by the Canceled variant.
type purposeWire struct {
	Type   string          `json:"type"`
	Data   json.RawMessage `json:"data"`
	Reason *string         `json:"reason,omitempty"`
}

// groupContextWire mirrors the Matched/Canceled data object. Every field
// is required on the wire.
type groupContextWire struct {
	MatchID       *string    `json:"match_id"`
	Group         *[]User    `json:"group"`
	DatetimeStart *time.Time `json:"datetime_start"`
	DatetimeEnd   *time.Time `json:"datetime_end"`
}

// authTokenWire mirrors the AuthToken data object. Every field is
// required on the wire.
type authTokenWire struct {
	Token      *string    `json:"token"`
	ValidUntil *time.Time `json:"eov"`
}

// decodeGroupContext strictly decodes Matched/Canceled variant data. A
// missing field fails the whole envelope; a group email for zero-value
// timestamps must never be composed.
func decodeGroupContext(variant string, data json.RawMessage) (GroupContext, error) {
	var wire groupContextWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return GroupContext{}, fmt.Errorf("envelope: invalid %s data: %w", variant, err)
	}
	if wire.MatchID == nil {
		return GroupContext{}, fmt.Errorf("envelope: %s data missing match_id", variant)
	}
	if wire.Group == nil {
		return GroupContext{}, fmt.Errorf("envelope: %s data missing group", variant)
	}
	if wire.DatetimeStart == nil {
		return GroupContext{}, fmt.Errorf("envelope: %s data missing datetime_start", variant)
	}
	if wire.DatetimeEnd == nil {
		return GroupContext{}, fmt.Errorf("envelope: %s data missing datetime_end", variant)
	}
	return GroupContext{
		MatchID:       *wire.MatchID,
		Group:         *wire.Group,
		DatetimeStart: *wire.DatetimeStart,
		DatetimeEnd:   *wire.DatetimeEnd,
	}, nil
}

// decodeAuthToken strictly decodes AuthToken variant data.
func decodeAuthToken(data json.RawMessage) (AuthToken, error) {
	var wire authTokenWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return AuthToken{}, fmt.Errorf("envelope: invalid AuthToken data: %w", err)
	}
	if wire.Token == nil {
		return AuthToken{}, fmt.Errorf("envelope: AuthToken data missing token")
	}
	if wire.ValidUntil == nil {
		return AuthToken{}, fmt.Errorf("envelope: AuthToken data missing eov")
	}
	return AuthToken{
		Token:      *wire.Token,
		ValidUntil: *wire.ValidUntil,
	}, nil
}

// UnmarshalJSON decodes the wire layout into the typed envelope. Decoding
// is all-or-nothing: a missing target_user or payload, an unknown
// discriminator or channel value, or a variant data object missing any of
// its fields fails the whole envelope.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var wire envelopeWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	if wire.TargetUser == nil {
		return fmt.Errorf("envelope: missing required field target_user")
	}
	if wire.TargetUser.Email == "" {
		return fmt.Errorf("envelope: target_user.email is empty")
	}
	if len(wire.Payload) == 0 {
		return fmt.Errorf("envelope: missing required field payload")
	}
	for _, ch := range wire.Channels {
		if ch != ChannelEmail && ch != ChannelAPN {
			return fmt.Errorf("envelope: unknown channel %q", ch)
		}
	}

	var pw purposeWire
	if err := json.Unmarshal(wire.Payload, &pw); err != nil {
		return fmt.Errorf("envelope: invalid payload: %w", err)
	}
	if len(pw.Data) == 0 {
		return fmt.Errorf("envelope: payload missing data for type %q", pw.Type)
	}

	var payload Purpose
	switch pw.Type {
	case PurposeMatched:
		gc, err := decodeGroupContext(pw.Type, pw.Data)
		if err != nil {
			return err
		}
		payload = MatchedPurpose{Data: gc}

	case PurposeCanceled:
		gc, err := decodeGroupContext(pw.Type, pw.Data)
		if err != nil {
			return err
		}
		if pw.Reason == nil {
			return fmt.Errorf("envelope: Canceled payload missing reason")
		}
		payload = CanceledPurpose{Data: gc, Reason: *pw.Reason}

	case PurposeAuthToken:
		at, err := decodeAuthToken(pw.Data)
		if err != nil {
			return err
		}
		payload = AuthTokenPurpose{Data: at}

	default:
		return fmt.Errorf("envelope: unknown payload type %q", pw.Type)
	}

	e.TargetUser = *wire.TargetUser
	e.Channels = wire.Channels
	e.Payload = payload
	e.TraceID = wire.TraceID
	return nil
}

// MarshalJSON encodes the envelope back into the wire layout. Used by
// tests and by producers embedding this package; the worker itself only
// decodes.
func (e Envelope) MarshalJSON() ([]byte, error) {
	pw := purposeWire{Type: e.Payload.PurposeType()}

	var variantData any
	switch p := e.Payload.(type) {
	case MatchedPurpose:
		variantData = p.Data
	case CanceledPurpose:
		variantData = p.Data
		pw.Reason = &p.Reason
	case AuthTokenPurpose:
		variantData = p.Data
	default:
		return nil, fmt.Errorf("envelope: unsupported payload type %T", e.Payload)
	}

	data, err := json.Marshal(variantData)
	if err != nil {
		return nil, err
	}
	pw.Data = data

	payload, err := json.Marshal(pw)
	if err != nil {
		return nil, err
	}

	return json.Marshal(envelopeWire{
		TargetUser: &e.TargetUser,
		Channels:   e.Channels,
		Payload:    payload,
		TraceID:    e.TraceID,
	})
}

// DecodeEnvelope parses a raw message body into an Envelope. Every
// failure is classified as ErrCodeMalformedPayload: the body will never
// parse, so the caller rejects the delivery without redelivery.
func DecodeEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, NewAppError(ErrCodeMalformedPayload, "failed to decode notification body", err)
	}
	return &env, nil
}
