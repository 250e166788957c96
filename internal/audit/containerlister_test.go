package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestContainerListerSpawnsOneTaskPerEntry(t *testing.T) {
	ring := &fakeRing{primaries: []Node{{IP: "10.0.0.1", Device: "sda"}}}
	client := newFakeClient()
	client.containerEntries["a/c"] = []ListingEntry{
		{Name: "o1", LastModified: "2024-01-01T00:00:00.000000"},
		{Name: "o2", LastModified: "2024-01-01T00:00:00.000000"},
	}
	logger := zap.NewNop()
	stats := NewStatsReporter(logger, nil, 0)
	t.Cleanup(stats.Stop)

	var mu sync.Mutex
	var spawned []string
	cl := NewContainerLister(ring, client, stats, logger, 0, false, func(task ProbeTask) {
		mu.Lock()
		spawned = append(spawned, task.Object)
		mu.Unlock()
	})

	cl.List(context.Background(), "a", "c")

	require.ElementsMatch(t, []string{"o1", "o2"}, spawned)
	require.EqualValues(t, 1, stats.containersChecked)
}

func TestContainerListerMinAgeSkipsYoungEntries(t *testing.T) {
	ring := &fakeRing{primaries: []Node{{IP: "10.0.0.1", Device: "sda"}}}
	client := newFakeClient()
	now := time.Now()
	client.containerEntries["a/c"] = []ListingEntry{
		{Name: "old", LastModified: now.Add(-48 * time.Hour).UTC().Format("2006-01-02T15:04:05.000000")},
		{Name: "young", LastModified: now.Add(-1 * time.Minute).UTC().Format("2006-01-02T15:04:05.000000")},
	}
	logger := zap.NewNop()
	stats := NewStatsReporter(logger, nil, 0)
	t.Cleanup(stats.Stop)

	var spawned []string
	cl := NewContainerLister(ring, client, stats, logger, time.Hour, false, func(task ProbeTask) {
		spawned = append(spawned, task.Object)
	})

	cl.List(context.Background(), "a", "c")

	require.Equal(t, []string{"old"}, spawned)
}

func TestContainerListerFailsWhenEveryReplicaFails(t *testing.T) {
	bad := Node{IP: "10.0.0.1", Device: "sda"}
	good := Node{IP: "10.0.0.2", Device: "sda"}
	ring := &fakeRing{primaries: []Node{bad, good}}
	client := newFakeClient()
	client.containerErr = errTestHead
	logger := zap.NewNop()
	stats := NewStatsReporter(logger, nil, 0)
	t.Cleanup(stats.Stop)

	cl := NewContainerLister(ring, client, stats, logger, 0, false, func(task ProbeTask) {})
	cl.List(context.Background(), "a", "c")

	// every replica errors in this scenario: the container is reported
	// failed rather than checked.
	require.EqualValues(t, 1, stats.containersFailed)
}
