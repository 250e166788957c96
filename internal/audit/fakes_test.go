package audit

import (
	"context"
	"sync"
)

// fakeHandoffIter and fakeRing/fakeClient below are hand-written test
// doubles in the style of tools/dispersion_test.go's FakeRing --
// no mocking framework, just enough behavior to drive the code under
// test.

type fakeHandoffIter struct {
	nodes []Node
	i     int
}

func (h *fakeHandoffIter) Next() (Node, bool) {
	if h.i >= len(h.nodes) {
		return Node{}, false
	}
	n := h.nodes[h.i]
	h.i++
	return n, true
}

type fakeRing struct {
	mu         sync.Mutex
	primaries  []Node
	handoffs   []Node
	partition  uint64
	locateErr  error
	allDevices []Node
	replicas   uint64
}

func (r *fakeRing) LocateAccount(account string) (uint64, []Node, error) {
	return r.partition, r.primaries, r.locateErr
}

func (r *fakeRing) LocateContainer(account, container string) (uint64, []Node, error) {
	return r.partition, r.primaries, r.locateErr
}

func (r *fakeRing) LocateObject(account, container, object string) (uint64, []Node, HandoffIter, error) {
	return r.partition, r.primaries, &fakeHandoffIter{nodes: r.handoffs}, r.locateErr
}

func (r *fakeRing) AllDevices() []Node { return r.allDevices }

func (r *fakeRing) ReplicaCount() uint64 {
	if r.replicas > 0 {
		return r.replicas
	}
	return uint64(len(r.primaries))
}

// headResult describes how a fakeClient should answer one HeadObject
// call: ok/status/err, keyed by node IP so a test can script per-node
// behavior.
type headResult struct {
	ok     bool
	status int
	err    error
}

type fakeClient struct {
	mu sync.Mutex

	heads map[string]headResult // keyed by node.String()

	containerEntries map[string][]ListingEntry // keyed by account/container
	containerErr     error

	accountContainers map[string][]string
	accountObjCount   int64
	accountErr        error

	deletedRows []string
	deleteErr   error

	headCalls int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		heads:             make(map[string]headResult),
		containerEntries:  make(map[string][]ListingEntry),
		accountContainers: make(map[string][]string),
		accountObjCount:   -1,
	}
}

func (c *fakeClient) HeadObject(ctx context.Context, node Node, part uint64, account, container, object string, forceAcquire bool) (bool, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headCalls++
	r, ok := c.heads[node.String()]
	if !ok {
		return false, 404, nil
	}
	return r.ok, r.status, r.err
}

func (c *fakeClient) ListContainer(ctx context.Context, node Node, part uint64, account, container, marker, prefix string, limit int) ([]ListingEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.containerErr != nil {
		return nil, c.containerErr
	}
	key := account + "/" + container
	entries := c.containerEntries[key]
	if marker != "" {
		// already paged to completion in these tests: a non-empty marker
		// means "return nothing more".
		return nil, nil
	}
	var out []ListingEntry
	for _, e := range entries {
		if prefix != "" && e.Name != prefix {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (c *fakeClient) ListAccount(ctx context.Context, node Node, part uint64, account, marker string) ([]string, int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accountErr != nil {
		return nil, -1, c.accountErr
	}
	if marker != "" {
		return nil, c.accountObjCount, nil
	}
	return c.accountContainers[account], c.accountObjCount, nil
}

func (c *fakeClient) DeleteContainerRow(ctx context.Context, node Node, part uint64, account, container, object, timestamp string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deleteErr != nil {
		return c.deleteErr
	}
	c.deletedRows = append(c.deletedRows, account+"/"+container+"/"+object)
	return nil
}

type fakeRunner struct {
	mu      sync.Mutex
	started []string
}

type fakeWaiter struct{ err error }

func (w *fakeWaiter) Wait() error { return w.err }

func (r *fakeRunner) Start(name string, args ...string) (Waiter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, name)
	return &fakeWaiter{}, nil
}
