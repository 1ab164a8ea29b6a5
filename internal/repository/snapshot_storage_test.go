package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"GapSight/internal/domain/models"
	"GapSight/internal/services/timeseries"
)

func TestHistoryQuery(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 30)

	q, args := historyQuery("snaps", nil, from, to)
	assert.NotContains(t, q, "IN (")
	assert.Len(t, args, 2)

	q, args = historyQuery("snaps", []string{"A", "B"}, from, to)
	assert.Contains(t, q, "account IN (?, ?)")
	assert.Contains(t, q, "FROM snaps")
	assert.Equal(t, []interface{}{from, to, "A", "B"}, args)
}

func TestGroupSeries(t *testing.T) {
	recs := []historyRow{
		{account: "A", date: "2024-01-01", followers: 100},
		{account: "A", date: "2024-01-02", followers: 110},
		{account: "C", date: "2024-01-01", followers: 7},
	}
	got := groupSeries(recs, []string{"B", "A", "B"})
	assert.Equal(t, []timeseries.Series{
		{Name: "B", Data: []timeseries.Sample{}},
		{Name: "A", Data: []timeseries.Sample{{Date: "2024-01-01", Followers: 100}, {Date: "2024-01-02", Followers: 110}}},
		{Name: "C", Data: []timeseries.Sample{{Date: "2024-01-01", Followers: 7}}},
	}, got)
}

func TestSnapshotValues(t *testing.T) {
	obs := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	values, args, err := snapshotValues([]*models.FollowerSnapshot{
		nil,
		{Account: "A", Date: "2024-01-02", Followers: 5, ObservedAt: obs},
		{Account: "", Date: "2024-01-02"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"(?, ?, ?, ?)"}, values)
	require.Len(t, args, 4)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), args[1])
	assert.Equal(t, obs, args[3])

	_, _, err = snapshotValues([]*models.FollowerSnapshot{{Account: "A", Date: "02/01/2024"}})
	assert.Error(t, err)
}

func TestSnapshotSchemaUsesTable(t *testing.T) {
	stmts := SnapshotSchema("x_snaps")
	require.Len(t, stmts, 1)
	assert.Contains(t, stmts[0], "CREATE TABLE IF NOT EXISTS x_snaps")
}
