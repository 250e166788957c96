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

	"go.uber.org/zap"
)

// AccountLister pages an account across its ring replicas, spawning a
// container-audit task on the Container Pool for every container it
// names, then quiesces and reports before returning (§4.5).
type AccountLister struct {
	ring   RingAdapter
	client DirectClient
	stats  *StatsReporter
	logger *zap.Logger

	spawnContainer func(account, container string)
	waitAll        func()
}

// NewAccountLister wires a lister; spawnContainer is normally
// Scheduler.SpawnContainer and waitAll is Scheduler.WaitAll.
func NewAccountLister(ring RingAdapter, client DirectClient, stats *StatsReporter, logger *zap.Logger, spawnContainer func(account, container string), waitAll func()) *AccountLister {
	return &AccountLister{ring: ring, client: client, stats: stats, logger: logger, spawnContainer: spawnContainer, waitAll: waitAll}
}

// List walks one account to completion, then blocks (via waitAll) until
// every container/object task it spawned -- and anything they in turn
// spawned -- has finished, then emits a stats snapshot.
func (al *AccountLister) List(ctx context.Context, account string) {
	part, replicas, err := al.ring.LocateAccount(account)
	if err != nil {
		al.logger.Error("locating account", zap.String("account", account), zap.Error(err))
		al.stats.IncAccountsFailed()
		return
	}
	al.stats.ResetAccountProgress(account)

	succeeded := false
	for _, node := range replicas {
		if al.scanReplica(ctx, node, part, account) {
			succeeded = true
			break
		}
	}
	if !succeeded {
		al.stats.IncAccountsFailed()
		al.logger.Error("all account replicas failed", zap.String("account", account))
		return
	}
	al.waitAll()
	al.stats.IncAccountsChecked()
	al.stats.Snapshot("account complete: " + account)
}

func (al *AccountLister) scanReplica(ctx context.Context, node Node, part uint64, account string) bool {
	marker := ""
	first := true
	for {
		containers, objectCount, err := al.client.ListAccount(ctx, node, part, account, marker)
		if err != nil {
			al.logger.Error("listing account replica", zap.String("node", node.String()), zap.Error(err))
			return false
		}
		if first {
			if objectCount >= 0 {
				al.stats.SetAccountObjectEstimate(objectCount)
			}
			first = false
		}
		if len(containers) == 0 {
			return true
		}
		for _, c := range containers {
			marker = c
			al.spawnContainer(account, c)
		}
	}
}
