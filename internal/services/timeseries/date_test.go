package timeseries

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("1970-01-02")
	require.NoError(t, err)
	assert.Equal(t, Date(1), d)

	d, err = ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", d.String())
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), d.Time())

	_, err = ParseDate("2023-02-29")
	assert.Error(t, err)
	_, err = ParseDate("2024-1-01")
	assert.Error(t, err)
}

func TestDateOfTruncatesToUTCDay(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*60*60)
	ts := time.Date(2024, 1, 2, 3, 0, 0, 0, loc)
	assert.Equal(t, "2024-01-01", DateOf(ts).String())
	assert.Equal(t, "1969-12-31", DateOf(time.Unix(-1, 0)).String())
}

func TestSplitTrend(t *testing.T) {
	rows := SplitTrend([]TrendPoint{
		{Date: "2024-01-01", Followers: 10, Type: TrendActual},
		{Date: "2024-01-08", Followers: 12, Type: TrendPredicted},
		{Date: "2024-01-15", Followers: 14, Type: "other"},
	})
	require.Len(t, rows, 3)
	require.NotNil(t, rows[0].Actual)
	assert.Equal(t, int64(10), *rows[0].Actual)
	assert.Nil(t, rows[0].Predicted)
	require.NotNil(t, rows[1].Predicted)
	assert.Equal(t, int64(12), *rows[1].Predicted)
	assert.Nil(t, rows[1].Actual)
	assert.Nil(t, rows[2].Actual)
	assert.Nil(t, rows[2].Predicted)

	assert.Empty(t, SplitTrend(nil))
	assert.Equal(t, TrendActual, ActualTrend([]Sample{{"2024-01-01", 1}})[0].Type)
}
