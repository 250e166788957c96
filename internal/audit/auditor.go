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
	"fmt"
	"time"

	"github.com/uber-go/tally"
	"go.uber.org/zap"
)

// Auditor owns every per-run collaborator: nothing in this package lives
// at file scope, so two Auditors in one process (as tests routinely
// build) never share a counter, a rescue dedup set, or an error file
// handle (Design Notes).
type Auditor struct {
	ring      RingAdapter
	client    DirectClient
	rescue    *RescueDispatcher
	stats     *StatsReporter
	errFile   *ErrorFile
	scheduler *Scheduler
	container *ContainerLister
	account   *AccountLister
	object    *ObjectProber
	logger    *zap.Logger
}

// NewAuditor wires every collaborator for one run according to cfg. The
// caller owns closing the returned Auditor's error file via Close.
func NewAuditor(cfg Config, logger *zap.Logger, scope tally.Scope) (*Auditor, error) {
	ring, err := LoadRingAdapter(cfg.RingDir)
	if err != nil {
		return nil, fmt.Errorf("loading rings: %w", err)
	}

	raw, connectTimeout, responseTimeout, err := BuildRawHTTPClient(cfg.Tuning.ConnectTimeout, cfg.Tuning.ResponseTimeout, cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("building http client: %w", err)
	}
	traced, _, err := WrapTracing(logger, cfg.Tuning, raw)
	if err != nil {
		return nil, fmt.Errorf("setting up tracing: %w", err)
	}
	directClient := NewHTTPDirectClientFrom(traced, connectTimeout, responseTimeout)

	var errFile *ErrorFile
	if cfg.ErrorFile != "" {
		errFile, err = NewErrorFile(cfg.ErrorFile)
		if err != nil {
			return nil, fmt.Errorf("opening error file: %w", err)
		}
	}

	rescueBin := cfg.Tuning.RescueBin
	replicatorBin := cfg.Tuning.ReplicatorBin
	rescue := NewRescueDispatcher(nil, logger, cfg.SSHRescue, rescueBin, replicatorBin, cfg.Tuning.RescueCap)

	stats := NewStatsReporter(logger, scope, cfg.Tuning.StatsInterval)

	scheduler := NewScheduler(cfg.Concurrency)
	object := NewObjectProber(ring, directClient, rescue, stats, errFile, logger, cfg.CheckAll, cfg.Delete, cfg.Verbose)
	container := NewContainerLister(ring, directClient, stats, logger, cfg.MinAge, cfg.Thorough, func(t ProbeTask) {
		scheduler.SpawnObject(context.Background(), t)
	})
	account := NewAccountLister(ring, directClient, stats, logger, func(acct, cont string) {
		scheduler.SpawnContainer(context.Background(), acct, cont)
	}, scheduler.WaitAll)
	scheduler.Wire(container, object)

	return &Auditor{
		ring: ring, client: directClient, rescue: rescue, stats: stats, errFile: errFile,
		scheduler: scheduler, container: container, account: account, object: object, logger: logger,
	}, nil
}

// Run dispatches every target according to how many path segments it
// has (§6): account-only targets walk the whole account, account+
// container targets walk one container, and full account+container+
// object targets probe exactly that object -- bypassing the min-age
// filter entirely, since an explicit target is never skipped for being
// too young (§4.4 Non-goals / §6).
func (a *Auditor) Run(ctx context.Context, targets []Path) {
	for _, t := range targets {
		switch {
		case t.Object != "":
			a.scheduler.SpawnObject(ctx, ProbeTask{Account: t.Account, Container: t.Container, Object: t.Object, ListTime: time.Now()})
		case t.Container != "":
			a.scheduler.SpawnContainer(ctx, t.Account, t.Container)
		default:
			a.account.List(ctx, t.Account)
		}
	}
	a.scheduler.WaitAll()
	a.rescue.WaitForRescues()
	a.stats.Snapshot("run complete")
}

// Close flushes and releases resources held for the run's lifetime:
// the error file and the periodic stats goroutine.
func (a *Auditor) Close() error {
	a.stats.Stop()
	if a.errFile != nil {
		return a.errFile.Close()
	}
	return nil
}

// Stats exposes the reporter, mainly so tests and cmd/hbaudit can print
// a final snapshot or inspect counters directly.
func (a *Auditor) Stats() *StatsReporter { return a.stats }

// RescueDispatcher exposes the dispatcher, for tests asserting on
// PartsToRescueCount.
func (a *Auditor) RescueDispatcher() *RescueDispatcher { return a.rescue }
