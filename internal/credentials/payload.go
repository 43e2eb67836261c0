// Package credentials renders tickets and certificates for approved registrations.
// Nothing is stored: every call regenerates the document from current state.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
)

const (
	// TypeEventTicket is the only payload type the verifier accepts.
	TypeEventTicket = "event_ticket"
	// TimestampLayout is ISO-8601 with millisecond precision.
	TimestampLayout = "2006-01-02T15:04:05.000Z07:00"
	// QRRecovery is the error-correction level of ticket codes (about 25% redundancy).
	QRRecovery = qrcode.High
	// DefaultQRSize is the rendered QR image edge in pixels.
	DefaultQRSize = 512
)

// ErrInvalidPayload is returned for scanned content that is not a ticket payload.
var ErrInvalidPayload = errors.New("invalid credential payload")

// Payload is the JSON embedded in a ticket QR code. Only RegistrationID is trusted
// when verifying; Timestamp changes on every issuance.
type Payload struct {
	RegistrationID string `json:"registrationId"`
	Timestamp      string `json:"timestamp"`
	Type           string `json:"type"`
}

// BuildPayload serializes a ticket payload in compact JSON.
func BuildPayload(registrationID uuid.UUID, issuedAt time.Time) ([]byte, error) {
	return json.Marshal(Payload{
		RegistrationID: registrationID.String(),
		Timestamp:      issuedAt.UTC().Format(TimestampLayout),
		Type:           TypeEventTicket,
	})
}

// ParsePayload decodes scanned content. It checks the shape, not the registration.
func ParsePayload(raw []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if p.Type != TypeEventTicket {
		return Payload{}, fmt.Errorf("%w: type %q", ErrInvalidPayload, p.Type)
	}
	if p.RegistrationID == "" {
		return Payload{}, fmt.Errorf("%w: missing registrationId", ErrInvalidPayload)
	}
	return p, nil
}

// EncodeQR renders payload as a PNG QR code at QRRecovery.
func EncodeQR(payload []byte, size int) ([]byte, error) {
	q, err := newQR(payload)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = DefaultQRSize
	}
	png, err := q.PNG(size)
	if err != nil {
		return nil, fmt.Errorf("render qr: %w", err)
	}
	return png, nil
}

func newQR(payload []byte) (*qrcode.QRCode, error) {
	q, err := qrcode.New(string(payload), QRRecovery)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return q, nil
}
