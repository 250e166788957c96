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
	"bufio"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// ParseTarget splits one urlencoded a[/c[/o]] line into a Path. At least
// an account segment is required.
func ParseTarget(line string) (Path, error) {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "/")
	if line == "" {
		return Path{}, fmt.Errorf("empty target")
	}
	segments := strings.SplitN(line, "/", 3)
	for i, s := range segments {
		decoded, err := url.QueryUnescape(s)
		if err != nil {
			return Path{}, fmt.Errorf("decoding target %q: %w", line, err)
		}
		segments[i] = decoded
	}
	p := Path{Account: segments[0]}
	if len(segments) > 1 {
		p.Container = segments[1]
	}
	if len(segments) > 2 {
		p.Object = segments[2]
	}
	return p, nil
}

// ReadTargets parses one target per non-blank line from r (the -i file,
// or stdin).
func ReadTargets(r io.Reader) ([]Path, error) {
	var targets []Path
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		p, err := ParseTarget(line)
		if err != nil {
			return nil, err
		}
		targets = append(targets, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return targets, nil
}
