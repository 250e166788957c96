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
	"sync"
	"sync/atomic"
	"time"

	"github.com/codahale/hdrhistogram"
	"github.com/uber-go/tally"
	"go.uber.org/zap"
)

// StatsInterval is the default periodic snapshot cadence (§4.8).
const StatsInterval = 300 * time.Second

// lastModifiedLayouts are the timestamp formats a container listing's
// last_modified field has been observed in, tried in order.
var lastModifiedLayouts = []string{
	"2006-01-02T15:04:05.000000",
	time.RFC3339Nano,
	time.RFC3339,
}

// parseLastModified parses a container-listing last_modified value.
func parseLastModified(lastModified string) (time.Time, error) {
	var lastErr error
	for _, layout := range lastModifiedLayouts {
		if t, err := time.Parse(layout, lastModified); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, lastErr
}

// dateKey is the first 10 characters of an ISO-8601 last_modified
// value, used to key the by-day histograms (§4.8).
func dateKey(lastModified string) string {
	if len(lastModified) < 10 {
		return lastModified
	}
	return lastModified[:10]
}

// StatsReporter owns every counter, histogram, and the periodic
// snapshot goroutine. It is a field on the Auditor, not package-scope
// state (Design Notes), so two Auditor values in the same test process
// never share counters.
type StatsReporter struct {
	accountsChecked        int64
	accountsFailed         int64
	containersChecked      int64
	containersFailed       int64
	objectsChecked         int64
	missingObjects         int64
	objectsDeleted         int64
	potentiallyMissing     int64
	accountObjectsChecked  int64
	accountObjsEstimate    int64

	mu                  sync.Mutex
	missingByDay         map[string]int64
	potentiallyMissingByDay map[string]int64
	latestMissingDate    string

	probeLatency *hdrhistogram.Histogram

	logger *zap.Logger
	scope  tally.Scope

	startTime time.Time

	metricAccountsChecked    tally.Counter
	metricObjectsChecked     tally.Counter
	metricMissing            tally.Counter
	metricDeleted            tally.Counter
	metricPotentiallyMissing tally.Counter

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewStatsReporter builds a reporter and, if interval > 0, starts the
// periodic snapshot goroutine (stopped by Stop).
func NewStatsReporter(logger *zap.Logger, scope tally.Scope, interval time.Duration) *StatsReporter {
	if scope == nil {
		scope = tally.NoopScope
	}
	sr := &StatsReporter{
		missingByDay:            make(map[string]int64),
		potentiallyMissingByDay: make(map[string]int64),
		probeLatency:            hdrhistogram.New(1, int64(time.Minute/time.Microsecond), 3),
		logger:                  logger,
		scope:                   scope,
		startTime:               time.Now(),
		stopCh:                  make(chan struct{}),

		metricAccountsChecked:    scope.Counter("accounts_checked"),
		metricObjectsChecked:     scope.Counter("objects_checked"),
		metricMissing:            scope.Counter("missing_objects"),
		metricDeleted:            scope.Counter("objects_deleted"),
		metricPotentiallyMissing: scope.Counter("potentially_missing"),
	}
	if interval > 0 {
		sr.wg.Add(1)
		go sr.periodicLoop(interval)
	}
	return sr
}

func (sr *StatsReporter) periodicLoop(interval time.Duration) {
	defer sr.wg.Done()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			sr.Snapshot("periodic")
		case <-sr.stopCh:
			return
		}
	}
}

// Stop halts the periodic snapshot goroutine. Safe to call more than
// once.
func (sr *StatsReporter) Stop() {
	sr.stopOnce.Do(func() { close(sr.stopCh) })
	sr.wg.Wait()
}

func (sr *StatsReporter) IncAccountsChecked() {
	atomic.AddInt64(&sr.accountsChecked, 1)
	sr.metricAccountsChecked.Inc(1)
}

func (sr *StatsReporter) IncAccountsFailed() { atomic.AddInt64(&sr.accountsFailed, 1) }

func (sr *StatsReporter) IncContainersChecked() { atomic.AddInt64(&sr.containersChecked, 1) }

func (sr *StatsReporter) IncContainersFailed() { atomic.AddInt64(&sr.containersFailed, 1) }

func (sr *StatsReporter) IncObjectsChecked() {
	atomic.AddInt64(&sr.objectsChecked, 1)
	sr.metricObjectsChecked.Inc(1)
}

func (sr *StatsReporter) IncAccountObjectsChecked() { atomic.AddInt64(&sr.accountObjectsChecked, 1) }

func (sr *StatsReporter) SetAccountObjectEstimate(n int64) { atomic.StoreInt64(&sr.accountObjsEstimate, n) }

func (sr *StatsReporter) ResetAccountProgress(account string) {
	atomic.StoreInt64(&sr.accountObjectsChecked, 0)
	atomic.StoreInt64(&sr.accountObjsEstimate, 0)
}

func (sr *StatsReporter) IncObjectsDeleted() {
	atomic.AddInt64(&sr.objectsDeleted, 1)
	sr.metricDeleted.Inc(1)
}

// IncMissing records a Missing outcome, bucketing it by the date prefix
// of lastModified (or "" if unknown, per §8's "not-in-listing" case --
// still counted, just not attributable to a day).
func (sr *StatsReporter) IncMissing(lastModified string) {
	atomic.AddInt64(&sr.missingObjects, 1)
	sr.metricMissing.Inc(1)
	key := dateKey(lastModified)
	sr.mu.Lock()
	sr.missingByDay[key]++
	if key > sr.latestMissingDate {
		sr.latestMissingDate = key
	}
	sr.mu.Unlock()
}

func (sr *StatsReporter) IncPotentiallyMissing(lastModified string) {
	atomic.AddInt64(&sr.potentiallyMissing, 1)
	sr.metricPotentiallyMissing.Inc(1)
	key := dateKey(lastModified)
	sr.mu.Lock()
	sr.potentiallyMissingByDay[key]++
	sr.mu.Unlock()
}

func (sr *StatsReporter) ObserveProbeLatency(d time.Duration) {
	sr.mu.Lock()
	sr.probeLatency.RecordValue(int64(d / time.Microsecond))
	sr.mu.Unlock()
}

// MissingTotal returns missing_objects, for testable property §8.8
// (missing_objects == sum of missing_by_day).
func (sr *StatsReporter) MissingTotal() int64 { return atomic.LoadInt64(&sr.missingObjects) }

// MissingByDayTotal sums missing_by_day, for the same property.
func (sr *StatsReporter) MissingByDayTotal() int64 {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	var total int64
	for _, v := range sr.missingByDay {
		total += v
	}
	return total
}

func (sr *StatsReporter) ObjectsDeleted() int64   { return atomic.LoadInt64(&sr.objectsDeleted) }
func (sr *StatsReporter) ObjectsChecked() int64   { return atomic.LoadInt64(&sr.objectsChecked) }
func (sr *StatsReporter) PotentiallyMissingTotal() int64 {
	return atomic.LoadInt64(&sr.potentiallyMissing)
}

// field is the fixed-width "right-aligned label in a 30-character
// field, then ': ', then value" layout of §6.
func field(label string, value interface{}) string {
	return fmt.Sprintf("%30s: %v\n", label, value)
}

// Snapshot renders and logs the current stats, as required at least
// every StatsInterval, on every account completion, and on process
// exit (§4.8).
func (sr *StatsReporter) Snapshot(reason string) string {
	elapsed := time.Since(sr.startTime).Seconds()
	checked := sr.ObjectsChecked()
	throughput := 0.0
	if elapsed > 0 {
		throughput = float64(checked) / elapsed
	}
	accountChecked := atomic.LoadInt64(&sr.accountObjectsChecked)
	estimate := atomic.LoadInt64(&sr.accountObjsEstimate)
	remaining := estimate - accountChecked
	if remaining < 0 {
		remaining = 0
	}
	var eta time.Duration
	if throughput > 0 {
		eta = time.Duration(float64(remaining)/throughput) * time.Second
	}

	sr.mu.Lock()
	latestMissing := sr.latestMissingDate
	meanLatencyUs := sr.probeLatency.Mean()
	sr.mu.Unlock()

	var b string
	b += "\n"
	b += field("Accounts Checked", atomic.LoadInt64(&sr.accountsChecked))
	b += field("Accounts Failed", atomic.LoadInt64(&sr.accountsFailed))
	b += field("Containers Checked", atomic.LoadInt64(&sr.containersChecked))
	b += field("Containers Failed", atomic.LoadInt64(&sr.containersFailed))
	b += field("Objects Checked", checked)
	b += field("Missing Objects", atomic.LoadInt64(&sr.missingObjects))
	b += field("Objects Deleted", sr.ObjectsDeleted())
	b += field("Potentially Missing", sr.PotentiallyMissingTotal())
	b += field("Account Objects Checked", accountChecked)
	b += field("Account Objects Estimate", estimate)
	b += field("Objects/sec", fmt.Sprintf("%.2f", throughput))
	b += field("ETA", eta.String())
	b += field("Latest Missing Date", latestMissing)
	b += field("Mean Probe Latency (us)", fmt.Sprintf("%.0f", meanLatencyUs))

	sr.logger.Info("stats snapshot", zap.String("reason", reason), zap.String("report", b))
	return b
}
