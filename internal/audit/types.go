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

// Package audit is the core of hbaudit: the concurrent account ->
// container -> object traversal, the per-object multi-replica probe
// protocol, the confirm-before-delete reconciliation, and the
// handoff-rescue trigger. The ring topology and the direct storage-node
// HTTP protocol are consumed as interfaces (RingAdapter, DirectClient);
// this package never talks to a ring file or a socket except through
// those seams.
package audit

import (
	"fmt"
	"net/url"
)

// Path is an account/container/object target. Container and Object may
// be empty for an account-level or container-level audit.
type Path struct {
	Account   string
	Container string
	Object    string
}

func (p Path) String() string {
	switch {
	case p.Object != "":
		return fmt.Sprintf("/%s/%s/%s", p.Account, p.Container, p.Object)
	case p.Container != "":
		return fmt.Sprintf("/%s/%s", p.Account, p.Container)
	default:
		return fmt.Sprintf("/%s", p.Account)
	}
}

// URLEncoded renders p the same 1-3 segment way as String, but with
// each segment individually percent-escaped, so the result splits and
// unescapes back to p via ParseTarget.
func (p Path) URLEncoded() string {
	switch {
	case p.Object != "":
		return fmt.Sprintf("/%s/%s/%s", url.QueryEscape(p.Account), url.QueryEscape(p.Container), url.QueryEscape(p.Object))
	case p.Container != "":
		return fmt.Sprintf("/%s/%s", url.QueryEscape(p.Account), url.QueryEscape(p.Container))
	default:
		return fmt.Sprintf("/%s", url.QueryEscape(p.Account))
	}
}

// ListingEntry is one row of a container listing page.
type ListingEntry struct {
	Name         string
	LastModified string
}

// ProbeOutcome is the terminal classification of one object probe (§3).
type ProbeOutcome int

const (
	// Present means a HEAD succeeded on some primary or handoff node.
	Present ProbeOutcome = iota
	// Missing means no replica answered, no uncertain errors were seen,
	// and the container listing still names the object.
	Missing
	// PotentiallyMissing means no replica answered but at least one
	// uncertain (non-404/507) error was seen; never mutates state.
	PotentiallyMissing
	// Gone means no replica answered and the container no longer lists
	// the object: it was cleanly removed by someone else. No action.
	Gone
)

func (o ProbeOutcome) String() string {
	switch o {
	case Present:
		return "present"
	case Missing:
		return "missing"
	case PotentiallyMissing:
		return "potentially-missing"
	case Gone:
		return "gone"
	default:
		return "unknown"
	}
}
