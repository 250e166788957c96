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
	"os"
	"sync"
)

// ErrorFile appends one urlencoded a/c/o path per line for every Missing
// outcome, per §6. Writes are serialized and flushed per record so a
// `tail -f` against the file during a long run sees entries as they
// happen, and a killed process loses at most nothing already flushed.
type ErrorFile struct {
	mu sync.Mutex
	f  *os.File
	w  *bufio.Writer
}

// NewErrorFile opens path for appending, creating it if necessary.
func NewErrorFile(path string) (*ErrorFile, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &ErrorFile{f: f, w: bufio.NewWriter(f)}, nil
}

// Record appends the urlencoded path for one missing object. Each
// segment is escaped individually so the line round-trips through
// ParseTarget (which splits on "/" first and unescapes per segment);
// escaping the joined string whole would turn the separating slashes
// into %2F.
func (ef *ErrorFile) Record(path Path) error {
	ef.mu.Lock()
	defer ef.mu.Unlock()
	if _, err := ef.w.WriteString(path.URLEncoded() + "\n"); err != nil {
		return err
	}
	return ef.w.Flush()
}

// Close flushes and closes the underlying file.
func (ef *ErrorFile) Close() error {
	ef.mu.Lock()
	defer ef.mu.Unlock()
	if err := ef.w.Flush(); err != nil {
		ef.f.Close()
		return err
	}
	return ef.f.Close()
}
