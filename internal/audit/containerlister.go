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
	"time"

	"go.uber.org/zap"
)

const containerListPageSize = 10000

// ContainerLister pages a single container across its ring replicas
// and spawns an object-audit task on the Object Pool for every entry
// that survives the min-age filter (§4.4).
type ContainerLister struct {
	ring     RingAdapter
	client   DirectClient
	stats    *StatsReporter
	logger   *zap.Logger
	minAge   time.Duration
	thorough bool

	// spawnObject enqueues a probe task on the Object Pool; NewAuditor
	// wires it to Scheduler.SpawnObject so the lister never needs to know
	// about pool internals.
	spawnObject func(ProbeTask)
}

// NewContainerLister wires a lister; spawnObject is normally
// Scheduler.SpawnObject.
func NewContainerLister(ring RingAdapter, client DirectClient, stats *StatsReporter, logger *zap.Logger, minAge time.Duration, thorough bool, spawnObject func(ProbeTask)) *ContainerLister {
	return &ContainerLister{ring: ring, client: client, stats: stats, logger: logger, minAge: minAge, thorough: thorough, spawnObject: spawnObject}
}

// List walks account/container, emitting one ProbeTask per listing
// entry that passes the age filter.
func (cl *ContainerLister) List(ctx context.Context, account, container string) {
	part, replicas, err := cl.ring.LocateContainer(account, container)
	if err != nil {
		cl.logger.Error("locating container", zap.String("account", account), zap.String("container", container), zap.Error(err))
		cl.stats.IncContainersFailed()
		return
	}
	listTime := time.Now()
	anyReplicaSucceeded := false
	for _, node := range replicas {
		ok := cl.scanReplica(ctx, node, part, account, container, listTime)
		if ok {
			anyReplicaSucceeded = true
			if !cl.thorough {
				break
			}
		}
	}
	if !anyReplicaSucceeded {
		cl.stats.IncContainersFailed()
		cl.logger.Error("all container replicas failed", zap.String("account", account), zap.String("container", container))
		return
	}
	cl.stats.IncContainersChecked()
}

// scanReplica pages one replica from marker="" to the end, returning
// true only if it reached an empty page without error. Any listing
// error, even partway through, returns false, so the caller moves on to
// the next replica (§4.4), which starts again from marker="".
func (cl *ContainerLister) scanReplica(ctx context.Context, node Node, part uint64, account, container string, listTime time.Time) bool {
	marker := ""
	for {
		entries, err := cl.client.ListContainer(ctx, node, part, account, container, marker, "", containerListPageSize)
		if err != nil {
			cl.logger.Error("listing container replica", zap.String("node", node.String()), zap.Error(err))
			return false
		}
		if len(entries) == 0 {
			return true
		}
		for _, e := range entries {
			marker = e.Name
			if cl.minAge > 0 && tooYoung(e.LastModified, cl.minAge, listTime) {
				continue
			}
			cl.spawnObject(ProbeTask{Account: account, Container: container, Object: e.Name, LastModified: e.LastModified, ListTime: listTime})
		}
	}
}

// tooYoung reports whether now-lastModified < minAge, i.e. the entry
// should be skipped. On an unparseable timestamp we do not skip -- we'd
// rather probe an entry than silently drop it.
func tooYoung(lastModified string, minAge time.Duration, now time.Time) bool {
	t, err := parseLastModified(lastModified)
	if err != nil {
		return false
	}
	return now.Sub(t) < minAge
}
