package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseLastModifiedKnownLayout(t *testing.T) {
	tm, err := parseLastModified("2024-03-05T12:30:00.123456")
	require.NoError(t, err)
	require.Equal(t, 2024, tm.Year())
	require.Equal(t, time.Month(3), tm.Month())
}

func TestParseLastModifiedRejectsGarbage(t *testing.T) {
	_, err := parseLastModified("not-a-timestamp")
	require.Error(t, err)
}

func TestDateKey(t *testing.T) {
	require.Equal(t, "2024-03-05", dateKey("2024-03-05T12:30:00.123456"))
	require.Equal(t, "abc", dateKey("abc"))
}

func TestMissingByDayMatchesTotal(t *testing.T) {
	sr := NewStatsReporter(zap.NewNop(), nil, 0)
	t.Cleanup(sr.Stop)

	sr.IncMissing("2024-03-05T12:30:00.123456")
	sr.IncMissing("2024-03-06T12:30:00.123456")
	sr.IncMissing("2024-03-06T09:00:00.000000")

	require.EqualValues(t, 3, sr.MissingTotal())
	require.EqualValues(t, 3, sr.MissingByDayTotal())
}

func TestSnapshotDoesNotPanicWithNoData(t *testing.T) {
	sr := NewStatsReporter(zap.NewNop(), nil, 0)
	t.Cleanup(sr.Stop)
	require.NotPanics(t, func() { sr.Snapshot("test") })
}
