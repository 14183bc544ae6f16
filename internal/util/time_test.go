package util_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sleroy/komea-salesforce-connector/internal/util"
)

func TestParseTimeFlexible(t *testing.T) {
	want := time.Date(2026, 10, 19, 2, 0, 0, 0, time.UTC)
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2026-10-19T02:00:00Z", want},
		{"2026-10-19T04:00:00+02:00", want},
		{"2026-10-19T02:00:00.000Z", want},
		{"1792375200000", want},
		{"2026-10-19", time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := util.ParseTimeFlexible(tt.in)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}

	_, err := util.ParseTimeFlexible("yesterday")
	assert.Error(t, err)
}

func TestMeasureTime(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("CET", 3600))
	got, err := util.MeasureTime("", func() time.Time { return fixed })
	require.NoError(t, err)
	assert.True(t, fixed.Equal(got))
	assert.Equal(t, time.UTC, got.Location())

	_, err = util.MeasureTime("bad", time.Now)
	assert.Error(t, err)
}
