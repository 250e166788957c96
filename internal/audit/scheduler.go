//  Copyright (c) 2015 Rackspace
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
//  implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

package audit

import (
	"context"
	"sync"
)

// pool is a FIFO-dispatched, bounded-concurrency task pool. Work items
// are closures; spawn never blocks the caller waiting for a worker slot
// to open up -- items queue on a channel buffered to 4096 entries (spawn
// blocks only while that buffer is full) and workers pull from it, which is what gives §4.6 its "tasks are FIFO" and "does not
// migrate work between pools" properties while still letting a
// container-pool worker that's waiting on network I/O yield to others.
type pool struct {
	tasks chan func()
	wg    sync.WaitGroup
}

func newPool(capacity int) *pool {
	if capacity < 1 {
		capacity = 1
	}
	p := &pool{tasks: make(chan func(), 4096)}
	for i := 0; i < capacity; i++ {
		go p.worker()
	}
	return p
}

func (p *pool) worker() {
	for task := range p.tasks {
		task()
		p.wg.Done()
	}
}

// spawn enqueues f without blocking on a worker being free; it may
// block briefly if the internal queue is momentarily full.
func (p *pool) spawn(f func()) {
	p.wg.Add(1)
	p.tasks <- f
}

// waitAll blocks until every spawned task (that has been spawned so
// far) has completed.
func (p *pool) waitAll() {
	p.wg.Wait()
}

// Scheduler owns the two bounded worker pools of §4.6: containers and
// objects. Capacity is derived from a single configured concurrency C:
// containers get max(1, C/4), objects get max(1, 3C/4).
type Scheduler struct {
	containerPool *pool
	objectPool    *pool

	containerLister *ContainerLister
	objectProber    *ObjectProber
}

// NewScheduler builds both pools at the capacities implied by
// concurrency. The spawn closures the Container/Account Listers use are
// built by the caller (NewAuditor) on top of SpawnObject/SpawnContainer.
func NewScheduler(concurrency int) *Scheduler {
	containerCap := concurrency / 4
	if containerCap < 1 {
		containerCap = 1
	}
	objectCap := (3 * concurrency) / 4
	if objectCap < 1 {
		objectCap = 1
	}
	return &Scheduler{
		containerPool: newPool(containerCap),
		objectPool:    newPool(objectCap),
	}
}

// Wire connects the scheduler to the components it dispatches work to.
// Done as a second step (rather than in the constructor) because the
// Container Lister's spawn closure refers back into the scheduler's own
// SpawnObject, so the lister is built after the scheduler.
func (s *Scheduler) Wire(containerLister *ContainerLister, objectProber *ObjectProber) {
	s.containerLister = containerLister
	s.objectProber = objectProber
}

// SpawnContainer enqueues a container-audit task on the container pool.
func (s *Scheduler) SpawnContainer(ctx context.Context, account, container string) {
	s.containerPool.spawn(func() {
		s.containerLister.List(ctx, account, container)
	})
}

// SpawnObject enqueues an object-audit task on the object pool.
func (s *Scheduler) SpawnObject(ctx context.Context, task ProbeTask) {
	s.objectPool.spawn(func() {
		s.objectProber.Probe(ctx, task)
	})
}

// WaitAll blocks until every container task and every object task
// (including ones spawned by those container tasks) has completed.
// Containers are drained first since a still-running container task
// can itself still spawn more object tasks.
func (s *Scheduler) WaitAll() {
	s.containerPool.waitAll()
	s.objectPool.waitAll()
}
