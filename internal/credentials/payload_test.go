package credentials

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPayloadWireFormat(t *testing.T) {
	id := uuid.MustParse("3f2a9c1e-7b4d-4e0a-9c3b-1d2e3f4a5b6c")
	at := time.Date(2026, 2, 14, 15, 4, 5, 123_000_000, time.FixedZone("IST", 19800))

	raw, err := BuildPayload(id, at)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"registrationId":"3f2a9c1e-7b4d-4e0a-9c3b-1d2e3f4a5b6c","timestamp":"2026-02-14T09:34:05.123Z","type":"event_ticket"}`,
		string(raw))
	assert.False(t, bytes.ContainsAny(raw, " \n"), "payload is compact")
}

func TestParsePayload(t *testing.T) {
	id := uuid.New()
	raw, err := BuildPayload(id, time.Now())
	require.NoError(t, err)

	p, err := ParsePayload(raw)
	require.NoError(t, err)
	assert.Equal(t, id.String(), p.RegistrationID)
	assert.Equal(t, TypeEventTicket, p.Type)
}

func TestParsePayloadRejects(t *testing.T) {
	for name, raw := range map[string]string{
		"not json":     "TICKET-3F2A9C1E",
		"wrong type":   `{"registrationId":"x","timestamp":"2026-01-01T00:00:00.000Z","type":"certificate"}`,
		"missing id":   `{"timestamp":"2026-01-01T00:00:00.000Z","type":"event_ticket"}`,
		"empty object": `{}`,
	} {
		_, err := ParsePayload([]byte(raw))
		assert.ErrorIs(t, err, ErrInvalidPayload, name)
	}
}

func TestPayloadStableAcrossIssuance(t *testing.T) {
	id := uuid.New()
	a, err := BuildPayload(id, time.Now())
	require.NoError(t, err)
	b, err := BuildPayload(id, time.Now().Add(time.Hour))
	require.NoError(t, err)

	pa, _ := ParsePayload(a)
	pb, _ := ParsePayload(b)
	assert.Equal(t, pa.RegistrationID, pb.RegistrationID)
	assert.Equal(t, pa.Type, pb.Type)
	assert.NotEqual(t, pa.Timestamp, pb.Timestamp)
}

func TestEncodeQR(t *testing.T) {
	raw, err := BuildPayload(uuid.New(), time.Now())
	require.NoError(t, err)

	q, err := newQR(raw)
	require.NoError(t, err)
	assert.Equal(t, QRRecovery, q.Level)
	assert.Equal(t, string(raw), q.Content)

	png, err := EncodeQR(raw, 256)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG\r\n\x1a\n")))
}
