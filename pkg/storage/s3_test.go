package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestArchiveKey(t *testing.T) {
	day := time.Date(2026, 3, 9, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, "audit/2026/03/09.jsonl", ArchiveKey(day))

	lagos := time.FixedZone("WAT", 3600)
	assert.Equal(t, "audit/2026/03/09.jsonl", ArchiveKey(time.Date(2026, 3, 10, 0, 30, 0, 0, lagos)), "keys use the UTC day")
}
