package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestProber(t *testing.T, ring *fakeRing, client *fakeClient, checkAll, doDelete, verbose bool) (*ObjectProber, *RescueDispatcher, *StatsReporter) {
	t.Helper()
	logger := zap.NewNop()
	stats := NewStatsReporter(logger, nil, 0)
	t.Cleanup(stats.Stop)
	rescue := NewRescueDispatcher(&fakeRunner{}, logger, false, "rescueparts", "object-replicator", 0)
	p := NewObjectProber(ring, client, rescue, stats, nil, logger, checkAll, doDelete, verbose)
	return p, rescue, stats
}

func TestProbePresentOnPrimary(t *testing.T) {
	primaries := []Node{{IP: "10.0.0.1", Device: "sda"}, {IP: "10.0.0.2", Device: "sda"}, {IP: "10.0.0.3", Device: "sda"}}
	ring := &fakeRing{primaries: primaries}
	client := newFakeClient()
	client.heads[primaries[0].String()] = headResult{ok: true}

	p, _, stats := newTestProber(t, ring, client, false, false, false)
	outcome := p.Probe(context.Background(), ProbeTask{Account: "a", Container: "c", Object: "o"})

	require.Equal(t, Present, outcome)
	require.EqualValues(t, 1, stats.ObjectsChecked())
}

func TestProbeMissingWhenStillListedAndNoExceptions(t *testing.T) {
	primaries := []Node{{IP: "10.0.0.1", Device: "sda"}, {IP: "10.0.0.2", Device: "sda"}}
	ring := &fakeRing{primaries: primaries}
	client := newFakeClient()
	// every HEAD 404s (zero-value headResult), listing still names the object.
	client.containerEntries["a/c"] = []ListingEntry{{Name: "o", LastModified: "2024-01-02T00:00:00.000000"}}

	p, _, stats := newTestProber(t, ring, client, false, false, false)
	outcome := p.Probe(context.Background(), ProbeTask{Account: "a", Container: "c", Object: "o"})

	require.Equal(t, Missing, outcome)
	require.EqualValues(t, 1, stats.MissingTotal())
}

func TestProbeGoneWhenNotListed(t *testing.T) {
	primaries := []Node{{IP: "10.0.0.1", Device: "sda"}}
	ring := &fakeRing{primaries: primaries}
	client := newFakeClient() // no container entries: object isn't listed either.

	p, _, stats := newTestProber(t, ring, client, false, false, false)
	outcome := p.Probe(context.Background(), ProbeTask{Account: "a", Container: "c", Object: "o"})

	require.Equal(t, Gone, outcome)
	require.EqualValues(t, 0, stats.MissingTotal())
}

func TestProbePotentiallyMissingOnUncertainError(t *testing.T) {
	primaries := []Node{{IP: "10.0.0.1", Device: "sda"}}
	ring := &fakeRing{primaries: primaries}
	client := newFakeClient()
	client.heads[primaries[0].String()] = headResult{ok: false, status: 500, err: errTestHead}
	client.containerEntries["a/c"] = []ListingEntry{{Name: "o", LastModified: "2024-01-02T00:00:00.000000"}}

	p, _, stats := newTestProber(t, ring, client, false, false, false)
	outcome := p.Probe(context.Background(), ProbeTask{Account: "a", Container: "c", Object: "o"})

	require.Equal(t, PotentiallyMissing, outcome)
	require.EqualValues(t, 1, stats.PotentiallyMissingTotal())
}

func TestProbeHandoffHitTriggersRescue(t *testing.T) {
	primaries := []Node{{IP: "10.0.0.1", Device: "sda"}, {IP: "10.0.0.2", Device: "sda"}}
	handoffs := []Node{{IP: "10.0.0.9", Device: "sdz"}}
	ring := &fakeRing{primaries: primaries, handoffs: handoffs, partition: 7}
	client := newFakeClient()
	client.heads[handoffs[0].String()] = headResult{ok: true}

	p, rescue, _ := newTestProber(t, ring, client, false, false, false)
	outcome := p.Probe(context.Background(), ProbeTask{Account: "a", Container: "c", Object: "o"})

	require.Equal(t, Present, outcome)
	require.Equal(t, 1, rescue.PartsToRescueCount())
}

func TestProbeMissingWithDeleteRemovesContainerRow(t *testing.T) {
	primaries := []Node{{IP: "10.0.0.1", Device: "sda"}}
	ring := &fakeRing{primaries: primaries}
	client := newFakeClient()
	client.containerEntries["a/c"] = []ListingEntry{{Name: "o", LastModified: "2024-01-02T00:00:00.000000"}}

	p, _, _ := newTestProber(t, ring, client, false, true, false)
	outcome := p.Probe(context.Background(), ProbeTask{Account: "a", Container: "c", Object: "o"})

	require.Equal(t, Missing, outcome)
	require.Len(t, client.deletedRows, 1)
	require.Equal(t, "a/c/o", client.deletedRows[0])
}

var errTestHead = &testHeadError{}

type testHeadError struct{}

func (*testHeadError) Error() string { return "simulated transport error" }
