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
	"fmt"
	"os/exec"
	"sync"

	"go.uber.org/zap"
)

// maxRescueParts caps |parts_to_rescue| per §3/§8 invariant 6.
const maxRescueParts = 50

// CommandRunner launches and waits for the external rescue helper. The
// subprocess launcher itself is an out-of-scope collaborator (§1); this
// is the seam the core calls through, so tests can swap in a fake that
// never actually forks.
type CommandRunner interface {
	Start(name string, args ...string) (Waiter, error)
}

// Waiter is the handle to a started subprocess.
type Waiter interface {
	Wait() error
}

type execRunner struct{}

func (execRunner) Start(name string, args ...string) (Waiter, error) {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd, nil
}

// RescueDispatcher de-duplicates partitions needing replica rescue,
// caps concurrent/total rescues, and spawns+reaps the external
// replicator subprocess (§4.7).
type RescueDispatcher struct {
	mu              sync.Mutex
	partsToRescue   map[uint64]bool
	devicesRescuing map[string]int

	runner        CommandRunner
	logger        *zap.Logger
	sshMode       bool
	rescueBin     string
	replicatorBin string
	maxParts      int

	wg        sync.WaitGroup
	waitersMu sync.Mutex
	waiters   []Waiter
}

// NewRescueDispatcher builds a dispatcher. rescueBin is the local-mode
// helper ("rescueparts <part>"); replicatorBin is the SSH-mode helper
// ("object-replicator -partitions <p> -devices <d> -once") per §6. A
// maxParts <= 0 falls back to the default cap of maxRescueParts.
func NewRescueDispatcher(runner CommandRunner, logger *zap.Logger, sshMode bool, rescueBin, replicatorBin string, maxParts int) *RescueDispatcher {
	if runner == nil {
		runner = execRunner{}
	}
	if maxParts <= 0 {
		maxParts = maxRescueParts
	}
	return &RescueDispatcher{
		partsToRescue:   make(map[uint64]bool),
		devicesRescuing: make(map[string]int),
		runner:          runner,
		logger:          logger,
		sshMode:         sshMode,
		rescueBin:       rescueBin,
		replicatorBin:   replicatorBin,
		maxParts:        maxParts,
	}
}

// RequestRescue is called by the Object Prober when a handoff hit is
// observed (§4.3 step 2). It de-duplicates by partition, enforces the
// caps of §3, and never returns an error -- a refused or failed rescue
// is a warning, never an aborted run.
func (rd *RescueDispatcher) RequestRescue(partition uint64, handoffNode Node) {
	rd.mu.Lock()
	if rd.partsToRescue[partition] {
		rd.mu.Unlock()
		return
	}
	if len(rd.partsToRescue) >= rd.maxParts {
		rd.mu.Unlock()
		rd.logger.Warn("rescue cap reached, dropping request", zap.Uint64("partition", partition), zap.Int("cap", rd.maxParts))
		return
	}
	deviceKey := handoffNode.IP + "/" + handoffNode.Device
	if rd.sshMode && rd.devicesRescuing[deviceKey] > 0 {
		rd.mu.Unlock()
		rd.logger.Warn("device already has a rescue in flight this run, dropping request", zap.String("device", deviceKey), zap.Uint64("partition", partition))
		return
	}
	rd.partsToRescue[partition] = true
	if rd.sshMode {
		rd.devicesRescuing[deviceKey]++
	}
	rd.mu.Unlock()

	var name string
	var args []string
	if rd.sshMode {
		name = "ssh"
		args = []string{handoffNode.IP, rd.replicatorBin, "-partitions", fmt.Sprintf("%d", partition), "-devices", handoffNode.Device, "-once"}
	} else {
		name = rd.rescueBin
		args = []string{fmt.Sprintf("%d", partition)}
	}
	waiter, err := rd.runner.Start(name, args...)
	if err != nil {
		rd.logger.Error("rescue spawn failed", zap.Uint64("partition", partition), zap.Error(err))
		return
	}
	rd.wg.Add(1)
	rd.waitersMu.Lock()
	rd.waiters = append(rd.waiters, waiter)
	rd.waitersMu.Unlock()
	go func() {
		defer rd.wg.Done()
		if err := waiter.Wait(); err != nil {
			rd.logger.Error("rescue subprocess exited with error", zap.Uint64("partition", partition), zap.Error(err))
		}
	}()
}

// PartsToRescueCount returns the current size of the dedup set, used by
// the stats snapshot and by tests asserting invariant 6.
func (rd *RescueDispatcher) PartsToRescueCount() int {
	rd.mu.Lock()
	defer rd.mu.Unlock()
	return len(rd.partsToRescue)
}

// WaitForRescues blocks until every rescue subprocess spawned so far has
// exited (§3 lifecycle: "Rescue subprocesses ... are awaited at
// shutdown"). Per the Design Notes this is unconditional: no timeout, a
// hung subprocess hangs the shutdown, and that's the original,
// deliberately preserved behavior.
func (rd *RescueDispatcher) WaitForRescues() {
	rd.wg.Wait()
}
