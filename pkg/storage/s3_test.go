package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAuditKey(t *testing.T) {
	at := time.Date(2026, 3, 7, 23, 30, 0, 0, time.FixedZone("IST", 5*3600+1800))
	assert.Equal(t, "audit/2026/03/07/1772906400000000000.jsonl", AuditKey(at))
}
