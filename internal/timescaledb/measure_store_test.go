package timescaledb_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"

	"github.com/sleroy/komea-salesforce-connector/config"
	"github.com/sleroy/komea-salesforce-connector/internal/model"
	"github.com/sleroy/komea-salesforce-connector/internal/timescaledb"
)

func TestCopyRows(t *testing.T) {
	day1 := time.Date(2026, 10, 18, 2, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)
	points := []model.TimeSeriesPoint{
		{
			MetricKey: "sonar-ncloc",
			Tags:      map[string]string{"entity": "org:a", "source": "sonar"},
			Measures:  []model.MeasureValue{{Date: day1, Value: 10}, {Date: day2, Value: 12}},
		},
		{MetricKey: "sonar-coverage", Measures: []model.MeasureValue{{Date: day2, Value: 81.5}}},
	}

	rows := timescaledb.CopyRows(points)
	require.Len(t, rows, 3)
	for _, row := range rows {
		assert.Len(t, row, len(timescaledb.Columns))
	}
	assert.Equal(t, day2, rows[1][0])
	assert.Equal(t, "org:a", rows[1][2])
	assert.Equal(t, 12.0, rows[1][3])
	assert.JSONEq(t, `{"entity":"org:a","source":"sonar"}`, string(rows[1][4].([]byte)))

	assert.Equal(t, "", rows[2][2])
	assert.Nil(t, rows[2][4])
}

func TestNewMeasureStore_Disabled(t *testing.T) {
	store, err := timescaledb.NewMeasureStore(fxtest.NewLifecycle(t), &config.Config{})
	require.NoError(t, err)
	assert.Nil(t, store)
	assert.Empty(t, timescaledb.CopyRows(nil))
}
