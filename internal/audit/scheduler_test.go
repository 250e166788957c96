package audit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSchedulerRunsTasksOnBothPools(t *testing.T) {
	s := NewScheduler(100)
	var containerRuns, objectRuns int64
	var wg sync.WaitGroup
	n := 50
	wg.Add(n * 2)
	for i := 0; i < n; i++ {
		s.containerPool.spawn(func() {
			atomic.AddInt64(&containerRuns, 1)
			wg.Done()
		})
		s.objectPool.spawn(func() {
			atomic.AddInt64(&objectRuns, 1)
			wg.Done()
		})
	}
	wg.Wait()
	require.EqualValues(t, n, containerRuns)
	require.EqualValues(t, n, objectRuns)
}

func TestSchedulerWaitAllBlocksUntilObjectTasksSpawnedByContainersFinish(t *testing.T) {
	s := NewScheduler(8)
	var objectDone int32
	s.containerPool.spawn(func() {
		time.Sleep(10 * time.Millisecond)
		s.objectPool.spawn(func() {
			time.Sleep(10 * time.Millisecond)
			atomic.StoreInt32(&objectDone, 1)
		})
	})
	s.WaitAll()
	require.EqualValues(t, 1, atomic.LoadInt32(&objectDone))
}

func TestPoolMinimumOneWorker(t *testing.T) {
	p := newPool(0)
	done := make(chan struct{})
	p.spawn(func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
}
