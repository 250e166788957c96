package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAccountListerSpawnsContainersAndWaits(t *testing.T) {
	ring := &fakeRing{primaries: []Node{{IP: "10.0.0.1", Device: "sda"}}}
	client := newFakeClient()
	client.accountContainers["a"] = []string{"c1", "c2"}
	client.accountObjCount = 42
	logger := zap.NewNop()
	stats := NewStatsReporter(logger, nil, 0)
	t.Cleanup(stats.Stop)

	var spawned []string
	var waited bool
	al := NewAccountLister(ring, client, stats, logger, func(account, container string) {
		spawned = append(spawned, container)
	}, func() { waited = true })

	al.List(context.Background(), "a")

	require.ElementsMatch(t, []string{"c1", "c2"}, spawned)
	require.True(t, waited)
	require.EqualValues(t, 1, stats.accountsChecked)
	require.EqualValues(t, 42, stats.accountObjsEstimate)
}

func TestAccountListerFailsWhenEveryReplicaFails(t *testing.T) {
	ring := &fakeRing{primaries: []Node{{IP: "10.0.0.1", Device: "sda"}}}
	client := newFakeClient()
	client.accountErr = errTestHead
	logger := zap.NewNop()
	stats := NewStatsReporter(logger, nil, 0)
	t.Cleanup(stats.Stop)

	al := NewAccountLister(ring, client, stats, logger, func(account, container string) {}, func() {})
	al.List(context.Background(), "a")

	require.EqualValues(t, 1, stats.accountsFailed)
}
