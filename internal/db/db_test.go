package db

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/webfont-splitter/internal/store"
)

var _ store.Mirror = (*DB)(nil)

func TestStatusFor(t *testing.T) {
	assert.Equal(t, RunStatusCompleted, StatusFor(nil, 0))
	assert.Equal(t, "completed_with_errors", StatusFor(nil, 2))
	assert.Equal(t, RunStatusFailed, StatusFor(errors.New("boom"), 0))
}

func TestRunType(t *testing.T) {
	run := Run{
		Mode:   "static",
		Fonts:  []string{"Go-Regular.ttf"},
		Status: RunStatusRunning,
	}

	data, err := json.Marshal(run)
	assert.NoError(t, err)
	assert.Contains(t, string(data), `"fonts":["Go-Regular.ttf"]`)
	assert.NotContains(t, string(data), "completed_at")
	assert.NotContains(t, string(data), "summary")
	assert.Nil(t, run.CompletedAt)
}

func TestSchemaSQL(t *testing.T) {
	assert.Contains(t, schemaSQL, "CREATE TABLE IF NOT EXISTS splitter_runs")
	assert.Contains(t, schemaSQL, "CREATE TABLE IF NOT EXISTS store_entries")
	assert.Equal(t, 3, strings.Count(schemaSQL, "IF NOT EXISTS"))
}
