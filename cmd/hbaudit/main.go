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

// Command hbaudit walks a Swift-style cluster's accounts, containers,
// and objects, probing each object's replicas directly against storage
// nodes and reporting (or deleting) any that the ring says should exist
// but don't.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/RocFang/hbaudit/internal/audit"
	"github.com/uber-go/tally"
	promreporter "github.com/uber-go/tally/prometheus"
	"go.uber.org/zap"
)

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: hbaudit [options] [account[/container[/object]] ...]")
	fmt.Fprintln(os.Stderr, "Targets may also be supplied one per line on stdin, or via -i.")
	flag.PrintDefaults()
}

func main() {
	var (
		ringDir     = flag.String("r", "/etc/hummingbird", "ring directory")
		concurrency = flag.Int("c", 50, "total probe concurrency")
		errorFile   = flag.String("e", "", "path to append urlencoded missing-object paths to")
		doDelete    = flag.Bool("d", false, "delete confirmed-missing container listing rows")
		checkAll    = flag.Bool("p", false, "probe every device in the ring, not just a 2x primary-count window")
		thorough    = flag.Bool("t", false, "scan every container replica instead of stopping at the first success")
		minAgeSecs  = flag.Int("m", 0, "ignore listing entries younger than this many seconds")
		verbose     = flag.Bool("v", false, "also log objects found on a primary node, not just missing ones")
		sshRescue   = flag.Bool("f", false, "use SSH-mode rescue")
		inputFile   = flag.String("i", "", "read targets from this file, in addition to argv targets; stdin is then not read")
		configFile  = flag.String("C", "", "optional INI file for tuning knobs ([hbaudit], [tracing])")
		certFile    = flag.String("cert", "", "TLS client certificate")
		keyFile     = flag.String("key", "", "TLS client key")
	)
	flag.Usage = usage
	flag.Parse()

	targets, err := collectTargets(flag.Args(), *inputFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error reading targets:", err)
		os.Exit(2)
	}
	if len(targets) == 0 {
		usage()
		os.Exit(2)
	}

	tuning, err := audit.LoadTuning(*configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error parsing config file:", err)
		os.Exit(2)
	}

	cfg := audit.Config{
		RingDir:     *ringDir,
		Concurrency: *concurrency,
		ErrorFile:   *errorFile,
		Delete:      *doDelete,
		CheckAll:    *checkAll,
		Thorough:    *thorough,
		MinAge:      time.Duration(*minAgeSecs) * time.Second,
		Verbose:     *verbose,
		SSHRescue:   *sshRescue,
		CertFile:    *certFile,
		KeyFile:     *keyFile,
		Tuning:      tuning,
	}

	logger, err := newLogger(*verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error building logger:", err)
		os.Exit(2)
	}
	defer logger.Sync()

	scope, closer := newMetricsScope()
	defer closer.Close()

	a, err := audit.NewAuditor(cfg, logger, scope)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error starting up:", err)
		os.Exit(2)
	}
	defer a.Close()

	a.Run(context.Background(), targets)
}

func collectTargets(args []string, inputFile string) ([]audit.Path, error) {
	var targets []audit.Path
	for _, a := range args {
		p, err := audit.ParseTarget(a)
		if err != nil {
			return nil, err
		}
		targets = append(targets, p)
	}
	if inputFile != "" {
		f, err := os.Open(inputFile)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		fromFile, err := audit.ReadTargets(f)
		if err != nil {
			return nil, err
		}
		targets = append(targets, fromFile...)
		return targets, nil
	}
	if len(targets) == 0 {
		stat, _ := os.Stdin.Stat()
		if stat != nil && (stat.Mode()&os.ModeCharDevice) == 0 {
			fromStdin, err := audit.ReadTargets(os.Stdin)
			if err != nil {
				return nil, err
			}
			targets = append(targets, fromStdin...)
		}
	}
	return targets, nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

func newMetricsScope() (tally.Scope, io.Closer) {
	scope, closer := tally.NewRootScope(tally.ScopeOptions{
		Prefix:         "hbaudit",
		Tags:           map[string]string{},
		CachedReporter: promreporter.NewReporter(promreporter.Options{}),
		Separator:      promreporter.DefaultSeparator,
	}, time.Second)
	return scope, closer
}
