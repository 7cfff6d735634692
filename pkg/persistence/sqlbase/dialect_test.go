package sqlbase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialect_Rebind(t *testing.T) {
	query := "SELECT * FROM runs WHERE id = ? AND status = ?"

	assert.Equal(t, "SELECT * FROM runs WHERE id = $1 AND status = $2", Postgres.Rebind(query))
	assert.Equal(t, query, SQLite.Rebind(query))
}

func TestDialect_TimeArg(t *testing.T) {
	at := time.Date(2025, 3, 1, 9, 30, 0, 1500, time.FixedZone("BRT", -3*3600))

	assert.Equal(t, at.UTC(), Postgres.timeArg(at))
	assert.Equal(t, "2025-03-01T12:30:00.000001500Z", SQLite.timeArg(at))
	assert.Nil(t, SQLite.nullTimeArg(nil))
}

func TestNullTime_Scan(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)

	var n nullTime

	require.NoError(t, n.Scan(SQLite.timeArg(at)))
	assert.True(t, at.Equal(n.Time))
	require.NotNil(t, n.ptr())

	require.NoError(t, n.Scan([]byte("2025-03-01T12:30:00Z")))
	assert.True(t, at.Equal(n.Time))

	require.NoError(t, n.Scan(at))
	assert.True(t, n.Valid)

	require.NoError(t, n.Scan(nil))
	assert.Nil(t, n.ptr())

	assert.Error(t, n.Scan(42))
	assert.Error(t, n.Scan("yesterday"))
}
