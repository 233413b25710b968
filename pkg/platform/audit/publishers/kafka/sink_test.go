package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "crboard/pkg/platform/audit"
)

func TestRecord(t *testing.T) {
	event := audit.Event{
		Action:    audit.EventCRUpdated,
		Timestamp: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
		Subject:   "CR-1",
		System:    "SC2",
		Fields:    []string{"status"},
	}

	rec, err := Record("crboard.changes", event)
	require.NoError(t, err)
	assert.Equal(t, "crboard.changes", rec.Topic)
	assert.Equal(t, []byte("CR-1"), rec.Key)
	require.Len(t, rec.Headers, 1)
	assert.Equal(t, "cr_updated", string(rec.Headers[0].Value))

	var decoded audit.Event
	require.NoError(t, json.Unmarshal(rec.Value, &decoded))
	assert.Equal(t, event, decoded)
}
