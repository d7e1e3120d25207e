package migration

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestList(t *testing.T) {
	names, err := List()
	require.NoError(t, err)
	assert.Equal(t, []string{"000001_create_exchange_rates"}, names)
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	names, err := List()
	require.NoError(t, err)

	for _, name := range names {
		up, err := fs.ReadFile(files, sourceDir+"/"+name+".up.sql")
		require.NoError(t, err)
		down, err := fs.ReadFile(files, sourceDir+"/"+name+".down.sql")
		require.NoError(t, err, "missing down migration for %s", name)
		assert.NotEmpty(t, strings.TrimSpace(string(up)))
		assert.NotEmpty(t, strings.TrimSpace(string(down)))
	}
}

func TestExchangeRatesSchema(t *testing.T) {
	up, err := fs.ReadFile(files, "sql/000001_create_exchange_rates.up.sql")
	require.NoError(t, err)
	sql := string(up)
	assert.Contains(t, sql, "CREATE TABLE IF NOT EXISTS exchange_rates")
	assert.Contains(t, sql, "(base, currency, effective_date)")
	assert.Contains(t, sql, "CHECK (rate > 0)")
}
