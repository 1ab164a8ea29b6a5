package util

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseTime(t *testing.T) {
	want := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)

	got, dateOnly, ok := ParseTime("2024-10-10T10:10:10Z")
	assert.True(t, ok)
	assert.False(t, dateOnly)
	assert.Equal(t, want, got)

	// Ten digits, same length as a date.
	unix := strconv.FormatInt(want.Unix(), 10)
	assert.Len(t, unix, len(time.DateOnly))
	got, dateOnly, ok = ParseTime(unix)
	assert.True(t, ok)
	assert.False(t, dateOnly)
	assert.Equal(t, want, got)

	got, dateOnly, ok = ParseTime("2024-10-10")
	assert.True(t, ok)
	assert.True(t, dateOnly)
	assert.Equal(t, time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC), got)

	_, _, ok = ParseTime("10/10/2024")
	assert.False(t, ok)
	_, _, ok = ParseTime("  ")
	assert.False(t, ok)
}

func TestEndOfDay(t *testing.T) {
	got := EndOfDay(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 2024, got.Year())
	assert.Equal(t, 23, got.Hour())
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), got.Add(time.Nanosecond))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SplitList(" a, b,,a "))
	assert.Nil(t, SplitList(""))
}
