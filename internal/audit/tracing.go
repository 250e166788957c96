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
	"io"

	"github.com/troubling/hummingbird/client"
	"github.com/troubling/hummingbird/common"
	"github.com/troubling/hummingbird/common/tracing"
	"go.uber.org/zap"
)

type noopCloser struct{}

func (noopCloser) Close() error { return nil }

// WrapTracing wraps an already-built common.HTTPClient with jaeger/
// opentracing spans, the same way bench/dbench.go and tools/main.go wrap
// their own request clients when a [tracing] section is present. With
// tracing disabled it returns base unchanged.
func WrapTracing(logger *zap.Logger, tuning TuningConfig, base common.HTTPClient) (common.HTTPClient, io.Closer, error) {
	if !tuning.TracingEnabled {
		return base, noopCloser{}, nil
	}
	tracer, closer, err := tracing.Init("hbaudit-client", logger, tuning.TracingSection)
	if err != nil {
		return nil, nil, err
	}
	traced, err := client.NewTracingClient(tracer, base, true)
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, nil, err
	}
	if closer == nil {
		closer = noopCloser{}
	}
	return traced, closer, nil
}
