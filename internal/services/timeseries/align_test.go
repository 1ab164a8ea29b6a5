package timeseries

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlignTwoCompetitors(t *testing.T) {
	a, err := Align([]Series{
		{Name: "A", Data: []Sample{{"2024-01-01", 100}, {"2024-01-08", 120}}},
		{Name: "B", Data: []Sample{{"2024-01-08", 80}}},
	})
	require.NoError(t, err)

	rows := a.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, AlignedRow{Date: "2024-01-01", Values: map[string]int64{"A": 100}}, rows[0])
	assert.Equal(t, AlignedRow{Date: "2024-01-08", Values: map[string]int64{"A": 120, "B": 80}}, rows[1])

	_, ok := rows[0].Value("B")
	assert.False(t, ok, "B has no sample on 2024-01-01")
}

func TestAlignEmptyInput(t *testing.T) {
	for _, in := range [][]Series{nil, {}} {
		a, err := Align(in)
		require.NoError(t, err)
		assert.Equal(t, 0, a.Len())
		assert.Empty(t, a.Rows())
		assert.Empty(t, a.Names())

		out, err := json.Marshal(a)
		require.NoError(t, err)
		assert.JSONEq(t, `[]`, string(out))
	}
}

func TestAlignSortsByCalendarDate(t *testing.T) {
	a, err := Align([]Series{
		{Name: "A", Data: []Sample{{"2024-03-01", 3}, {"2023-12-31", 1}, {"2024-02-29", 2}}},
		{Name: "B", Data: []Sample{{"2024-01-15", 9}, {"2023-12-31", 7}}},
	})
	require.NoError(t, err)

	var got []string
	for row := range a.All() {
		got = append(got, row.Date)
	}
	assert.Equal(t, []string{"2023-12-31", "2024-01-15", "2024-02-29", "2024-03-01"}, got)
}

func TestAlignEmptySeriesKeepsLegend(t *testing.T) {
	a, err := Align([]Series{
		{Name: "A", Data: []Sample{{"2024-01-01", 1}}},
		{Name: "ghost"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "ghost"}, a.Names())
	require.Equal(t, 1, a.Len())
	_, ok := a.Rows()[0].Value("ghost")
	assert.False(t, ok)
	assert.Equal(t, map[string]int64{"A": 1}, a.Latest())
}

func TestAlignDuplicatePolicies(t *testing.T) {
	in := []Series{{Name: "A", Data: []Sample{{"2024-01-01", 10}, {"2024-01-01", 20}}}}

	tests := []struct {
		name   string
		opts   []Option
		want   int64
		reject bool
	}{
		{name: "default is first wins", want: 10},
		{name: "last", opts: []Option{WithDuplicatePolicy(LastWins)}, want: 20},
		{name: "first", opts: []Option{WithDuplicatePolicy(FirstWins)}, want: 10},
		{name: "reject", opts: []Option{WithDuplicatePolicy(Reject)}, reject: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Align(in, tt.opts...)
			if tt.reject {
				var dup *DuplicateError
				require.ErrorAs(t, err, &dup)
				assert.Equal(t, "A", dup.Series)
				assert.Equal(t, "2024-01-01", dup.Date)
				assert.True(t, IsValidation(err))
				return
			}
			require.NoError(t, err)
			require.Equal(t, 1, a.Len())
			assert.Equal(t, tt.want, a.Rows()[0].Values["A"])
		})
	}
}

func TestAlignSameNameMerges(t *testing.T) {
	a, err := Align([]Series{
		{Name: "A", Data: []Sample{{"2024-01-01", 1}}},
		{Name: "A", Data: []Sample{{"2024-01-02", 2}, {"2024-01-01", 5}}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, a.Names())
	rows := a.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, int64(5), rows[0].Values["A"])
	assert.Equal(t, int64(2), rows[1].Values["A"])
}

func TestAlignFirstWinsPerSeries(t *testing.T) {
	in := []Series{
		{Name: "A", Data: []Sample{{"2024-01-01", 100}, {"2024-01-01", 110}}},
		{Name: "A", Data: []Sample{{"2024-01-02", 7}, {"2024-01-02", 8}}},
		{Name: "A", Data: []Sample{{"2024-01-01", 130}, {"2024-01-01", 140}}},
	}
	a, err := Align(in)
	require.NoError(t, err)
	rows := a.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, int64(130), rows[0].Values["A"], "later series replaces, first sample inside it wins")
	assert.Equal(t, int64(7), rows[1].Values["A"])

	single, err := Align(in[:1])
	require.NoError(t, err)
	assert.Equal(t, int64(100), single.Rows()[0].Values["A"])
}

func TestAlignRejectsMalformedDates(t *testing.T) {
	for _, bad := range []string{"2024-1-5", "2024/01/05", "", "2024-02-30", "yesterday"} {
		t.Run(fmt.Sprintf("%q", bad), func(t *testing.T) {
			_, err := Align([]Series{
				{Name: "ok", Data: []Sample{{"2024-01-01", 1}}},
				{Name: "acct", Data: []Sample{{"2024-01-01", 1}, {bad, 2}}},
			})
			var de *DateError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, "acct", de.Series)
			assert.Equal(t, 1, de.Index)
			assert.Equal(t, bad, de.Value)
			assert.Contains(t, err.Error(), "acct")
			assert.True(t, IsValidation(err))
		})
	}
}

func TestAlignRejectsBadSeries(t *testing.T) {
	_, err := Align([]Series{{Name: "", Data: []Sample{{"2024-01-01", 1}}}})
	assert.ErrorIs(t, err, ErrEmptySeriesName)

	_, err = Align([]Series{{Name: "date"}})
	assert.ErrorIs(t, err, ErrReservedSeriesName)

	_, err = Align([]Series{{Name: "A", Data: []Sample{{"2024-01-01", -1}}}})
	assert.ErrorIs(t, err, ErrNegativeCount)

	assert.False(t, IsValidation(errors.New("boom")))
}

func TestAlignDoesNotMutateInput(t *testing.T) {
	in := []Series{
		{Name: "B", Data: []Sample{{"2024-01-08", 80}, {"2024-01-01", 70}}},
		{Name: "A", Data: []Sample{{"2024-01-01", 100}}},
	}
	before := fmt.Sprintf("%v", in)
	_, err := Align(in)
	require.NoError(t, err)
	assert.Equal(t, before, fmt.Sprintf("%v", in))
}

func TestAlignRowCountMatchesDistinctDates(t *testing.T) {
	var in []Series
	distinct := map[string]struct{}{}
	for s := 0; s < 5; s++ {
		var data []Sample
		for d := s; d < 28; d += s + 1 {
			date := fmt.Sprintf("2024-02-%02d", d+1)
			data = append(data, Sample{Date: date, Followers: int64(s*100 + d)})
			distinct[date] = struct{}{}
		}
		in = append(in, Series{Name: fmt.Sprintf("s%d", s), Data: data})
	}

	a, err := Align(in)
	require.NoError(t, err)
	assert.Equal(t, len(distinct), a.Len())

	for _, s := range in {
		values, ok := a.Column(s.Name)
		dates := a.Dates()
		for _, sample := range s.Data {
			d, err := ParseDate(sample.Date)
			require.NoError(t, err)
			i := indexOf(dates, d)
			require.GreaterOrEqual(t, i, 0)
			assert.True(t, ok[i])
			assert.Equal(t, sample.Followers, values[i])
		}
	}

	dates := a.Dates()
	for i := 1; i < len(dates); i++ {
		assert.Less(t, dates[i-1], dates[i])
	}
}

func TestAlignConcurrentUse(t *testing.T) {
	in := []Series{
		{Name: "A", Data: []Sample{{"2024-01-01", 100}, {"2024-01-08", 120}}},
		{Name: "B", Data: []Sample{{"2024-01-08", 80}}},
	}
	a, err := Align(in)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, err := Align(in)
			assert.NoError(t, err)
			assert.Equal(t, a.Rows(), b.Rows())
		}()
	}
	wg.Wait()
}

func TestAllStopsEarly(t *testing.T) {
	a, err := Align([]Series{{Name: "A", Data: []Sample{{"2024-01-01", 1}, {"2024-01-02", 2}, {"2024-01-03", 3}}}})
	require.NoError(t, err)

	n := 0
	for range a.All() {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestAlignedRowJSON(t *testing.T) {
	row := AlignedRow{Date: "2024-01-08", Values: map[string]int64{"A": 120, "B": 80}}
	out, err := json.Marshal(row)
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2024-01-08","A":120,"B":80}`, string(out))

	var back AlignedRow
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, row, back)

	assert.Error(t, json.Unmarshal([]byte(`{"A":1}`), &back))
	assert.Error(t, json.Unmarshal([]byte(`{"date":"2024-01-01","A":"x"}`), &back))
}

func TestLatest(t *testing.T) {
	a, err := Align([]Series{
		{Name: "A", Data: []Sample{{"2024-01-08", 120}, {"2024-01-01", 100}}},
		{Name: "B", Data: []Sample{{"2024-01-01", 80}}},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"A": 120, "B": 80}, a.Latest())
}

func TestParseDuplicatePolicy(t *testing.T) {
	for in, want := range map[string]DuplicatePolicy{"": FirstWins, "LAST": LastWins, "FIRST": FirstWins, " reject ": Reject} {
		got, err := ParseDuplicatePolicy(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseDuplicatePolicy("newest")
	assert.Error(t, err)
	assert.Equal(t, "first", FirstWins.String())
}

func indexOf(dates []Date, d Date) int {
	for i, x := range dates {
		if x == d {
			return i
		}
	}
	return -1
}
