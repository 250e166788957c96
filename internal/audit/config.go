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
	"time"

	"github.com/troubling/hummingbird/common/conf"
)

// Config holds every tunable of one audit run. The flag-derived fields
// (everything except the Tuning block) come straight from §6's flag
// surface; the Tuning block may additionally be overridden by an
// optional INI file, the way hummingbird's daemons layer a config file
// under command-line flags.
type Config struct {
	RingDir      string
	Concurrency  int
	ErrorFile    string
	Delete       bool
	CheckAll     bool
	Thorough     bool
	MinAge       time.Duration
	Verbose      bool
	SSHRescue    bool
	CertFile     string
	KeyFile      string

	Tuning TuningConfig
}

// TuningConfig is the operator-facing knobs that live in an optional
// INI file rather than on the command line, mirroring the [section]
// style of hummingbird's common/conf -- stats_interval and the rescue
// binaries are things an operator tunes per-cluster, not per-invocation.
type TuningConfig struct {
	StatsInterval   time.Duration
	RescueCap       int
	ConnectTimeout  time.Duration
	ResponseTimeout time.Duration
	RescueBin       string
	ReplicatorBin   string

	TracingEnabled bool
	TracingSection conf.Section
}

// DefaultTuning mirrors the defaults baked into the teacher's own tools
// (tools/main.go, bench/dbench.go): generous timeouts, a 300s stats
// cadence, and hummingbird's own binary names for the rescue helpers.
func DefaultTuning() TuningConfig {
	return TuningConfig{
		StatsInterval:   StatsInterval,
		RescueCap:       maxRescueParts,
		ConnectTimeout:  connectTimeoutDefault,
		ResponseTimeout: responseTimeoutDefault,
		RescueBin:       "rescueparts",
		ReplicatorBin:   "object-replicator",
	}
}

// LoadTuning reads an optional INI file via hummingbird's common/conf,
// the same package tools/main.go uses for its own config files. A
// missing path is not an error: the caller gets DefaultTuning().
func LoadTuning(path string) (TuningConfig, error) {
	t := DefaultTuning()
	if path == "" {
		return t, nil
	}
	c, err := conf.LoadConfig(path)
	if err != nil {
		return t, err
	}
	if v := c.GetInt("hbaudit", "stats_interval", 0); v > 0 {
		t.StatsInterval = time.Duration(v) * time.Second
	}
	if v := c.GetInt("hbaudit", "rescue_cap", 0); v > 0 {
		t.RescueCap = int(v)
	}
	if v := c.GetInt("hbaudit", "connect_timeout", 0); v > 0 {
		t.ConnectTimeout = time.Duration(v) * time.Second
	}
	if v := c.GetInt("hbaudit", "response_timeout", 0); v > 0 {
		t.ResponseTimeout = time.Duration(v) * time.Second
	}
	if v := c.GetDefault("hbaudit", "rescue_bin", ""); v != "" {
		t.RescueBin = v
	}
	if v := c.GetDefault("hbaudit", "replicator_bin", ""); v != "" {
		t.ReplicatorBin = v
	}
	if c.HasSection("tracing") {
		t.TracingEnabled = true
		t.TracingSection = c.GetSection("tracing")
	}
	return t, nil
}
