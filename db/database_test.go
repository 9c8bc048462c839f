package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// The schema travels inside the binary, so startup must not depend on the
// process working directory.
func TestSchemaIsEmbedded(t *testing.T) {
	assert.NotEmpty(t, schemaSQL)
	for _, table := range []string{"users", "time_entries", "roster_entries"} {
		assert.Contains(t, schemaSQL, "CREATE TABLE IF NOT EXISTS "+table)
	}
	assert.Contains(t, schemaSQL, "idx_time_entries_one_active")
}
