package db

import (
	"testing"

	"github.com/stretchr/testify/require"

	"report-scheduler/pkg/common"
)

// setupDB installs a fresh in-memory SQLite database for the test.
func setupDB(t *testing.T) {
	t.Helper()

	database, err := Open("sqlite3", "file:"+common.GetUUID()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	require.NoError(t, Init(database))
}
