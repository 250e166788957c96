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

// ProbeTask is one object-audit unit of work, as emitted by the
// Container Lister or the Input Driver for an explicit object target.
type ProbeTask struct {
	Account      string
	Container    string
	Object       string
	LastModified string // "" if unknown (explicit object target)
	ListTime     time.Time
}

// ObjectProber runs the multi-replica probe for one object and, on a
// confirmed miss, the confirm-and-delete sequence (§4.3). One
// ObjectProber is shared by every object-pool worker; it holds no
// per-object state between calls.
type ObjectProber struct {
	ring    RingAdapter
	client  DirectClient
	rescue  *RescueDispatcher
	stats   *StatsReporter
	errFile *ErrorFile
	logger  *zap.Logger

	checkAll bool
	delete   bool
	verbose  bool
}

// NewObjectProber wires the prober's collaborators together.
func NewObjectProber(ring RingAdapter, client DirectClient, rescue *RescueDispatcher, stats *StatsReporter, errFile *ErrorFile, logger *zap.Logger, checkAll, doDelete, verbose bool) *ObjectProber {
	return &ObjectProber{
		ring: ring, client: client, rescue: rescue, stats: stats, errFile: errFile, logger: logger,
		checkAll: checkAll, delete: doDelete, verbose: verbose,
	}
}

// Probe runs the full algorithm of §4.3 for one task. It never returns
// an error: every failure mode is a logged, counted outcome, never an
// aborted run (§7).
func (p *ObjectProber) Probe(ctx context.Context, task ProbeTask) ProbeOutcome {
	probeStart := time.Now()
	part, primaries, handoffIter, err := p.ring.LocateObject(task.Account, task.Container, task.Object)
	if err != nil {
		p.logger.Error("locating object", zap.String("path", (Path{task.Account, task.Container, task.Object}).String()), zap.Error(err))
		return Gone
	}
	r := len(primaries)
	window := 2 * r
	if p.checkAll {
		window = -1 // unbounded: every device in the ring
	}

	windowNodes := append([]Node{}, primaries...)
	for window < 0 || len(windowNodes) < window {
		n, ok := handoffIter.Next()
		if !ok {
			break
		}
		windowNodes = append(windowNodes, n)
	}

	foundReplicas := 0
	exceptionCount := 0
	for i, node := range windowNodes {
		ok, status, herr := p.client.HeadObject(ctx, node, part, task.Account, task.Container, task.Object, true)
		if ok {
			foundReplicas++
			if i >= r {
				// present only on a handoff: the data is
				// underreplicated, trigger rescue. No "found" log for
				// handoff hits -- preserved ambiguity, see Design Notes.
				p.rescue.RequestRescue(part, node)
			} else if p.verbose {
				p.logger.Info("found object", zap.String("path", (Path{task.Account, task.Container, task.Object}).String()), zap.String("node", node.String()))
			}
			break
		}
		if herr == nil {
			// 404 or 507: one negative reply, keep going.
			continue
		}
		_ = status
		if p.checkAll || i < 2*r {
			exceptionCount++
		}
		// errors beyond the 2R window are ignored entirely (§4.2/§4.3),
		// unless checkAll widened the window to every device, in which
		// case every error counts.
	}

	p.stats.IncObjectsChecked()
	p.stats.IncAccountObjectsChecked()
	p.stats.ObserveProbeLatency(time.Since(probeStart))

	if foundReplicas > 0 {
		return Present
	}

	stillListed, authoritativeLastModified := p.confirmStillListed(ctx, task)
	outcome := p.decide(exceptionCount, stillListed)

	switch outcome {
	case Missing:
		lastModified := task.LastModified
		if lastModified == "" {
			lastModified = authoritativeLastModified
		}
		p.reportMissing(ctx, task, lastModified, probeStart)
	case PotentiallyMissing:
		p.stats.IncPotentiallyMissing(task.LastModified)
		p.logger.Info("potentially missing object",
			zap.String("path", (Path{task.Account, task.Container, task.Object}).String()),
			zap.Int("exceptions", exceptionCount))
	}
	return outcome
}

func (p *ObjectProber) decide(exceptionCount int, stillListed bool) ProbeOutcome {
	switch {
	case exceptionCount == 0 && stillListed:
		return Missing
	case exceptionCount > 0 && stillListed:
		return PotentiallyMissing
	default:
		return Gone
	}
}

// confirmStillListed re-reads the container listing on every replica,
// filtering to the object's own name, after all HEADs have completed.
// If every replica fails, we refuse to conclude the object still
// exists (§4.3 tie-breaks).
func (p *ObjectProber) confirmStillListed(ctx context.Context, task ProbeTask) (bool, string) {
	part, replicas, err := p.ring.LocateContainer(task.Account, task.Container)
	if err != nil {
		return false, ""
	}
	for _, node := range replicas {
		entries, err := p.client.ListContainer(ctx, node, part, task.Account, task.Container, "", task.Object, 1)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.Name == task.Object {
				return true, e.LastModified
			}
		}
	}
	return false, ""
}

func (p *ObjectProber) reportMissing(ctx context.Context, task ProbeTask, lastModified string, probeStart time.Time) {
	path := Path{task.Account, task.Container, task.Object}
	pathStr := path.String()
	lm := lastModified
	if lm == "" {
		lm = "not-in-listing"
	}
	p.logger.Info("Missing object",
		zap.String("path", pathStr),
		zap.String("last-mod", lm),
		zap.Time("list-time", task.ListTime),
		zap.Time("probe-time", probeStart))
	p.stats.IncMissing(lastModified)
	if p.errFile != nil {
		if err := p.errFile.Record(path); err != nil {
			p.logger.Error("writing error file", zap.Error(err))
		}
	}
	if !p.delete {
		return
	}
	part, replicas, err := p.ring.LocateContainer(task.Account, task.Container)
	if err != nil {
		p.logger.Error("locating container for delete", zap.Error(err))
		return
	}
	timestamp := deleteTimestamp()
	anySuccess := false
	allSuccess := true
	for _, node := range replicas {
		if derr := p.client.DeleteContainerRow(ctx, node, part, task.Account, task.Container, task.Object, timestamp); derr != nil {
			p.logger.Error("delete container row", zap.String("node", node.String()), zap.Error(derr))
			allSuccess = false
		} else {
			anySuccess = true
		}
	}
	// idempotent; cluster-internal container-sync replicates the row
	// removal to any replica we couldn't reach.
	if allSuccess && anySuccess {
		p.stats.IncObjectsDeleted()
	}
}
