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
	"path/filepath"

	"github.com/troubling/hummingbird/common/conf"
	"github.com/troubling/hummingbird/common/ring"
)

// Node is a storage endpoint the Direct Client Adapter can be pointed
// at. It is opaque to the rest of the core beyond those fields.
type Node struct {
	Scheme string
	IP     string
	Port   int
	Device string
	ID     int
}

func (n Node) String() string {
	return fmt.Sprintf("%s:%d/%s", n.IP, n.Port, n.Device)
}

// HandoffIter lazily walks the handoff nodes for a partition, beyond
// the primaries. It may be unbounded in principle; callers stop pulling
// once they have what they need.
type HandoffIter interface {
	Next() (Node, bool)
}

// RingAdapter resolves account/container/object paths to a partition
// and its primary nodes, and hands out a lazy handoff iterator for
// objects. It is read-only and safe to call from many goroutines at
// once (§4.1).
type RingAdapter interface {
	LocateAccount(account string) (partition uint64, primaries []Node, err error)
	LocateContainer(account, container string) (partition uint64, primaries []Node, err error)
	LocateObject(account, container, object string) (partition uint64, primaries []Node, handoffs HandoffIter, err error)
	AllDevices() []Node
	ReplicaCount() uint64
}

type moreNodesIter struct {
	more ring.MoreNodes
}

func (m *moreNodesIter) Next() (Node, bool) {
	if m.more == nil {
		return Node{}, false
	}
	dev := m.more.Next()
	if dev == nil {
		return Node{}, false
	}
	return nodeFromDevice(dev), true
}

func nodeFromDevice(dev *ring.Device) Node {
	return Node{Scheme: dev.Scheme, IP: dev.Ip, Port: dev.Port, Device: dev.Device, ID: dev.Id}
}

func nodesFromDevices(devs []*ring.Device) []Node {
	nodes := make([]Node, len(devs))
	for i, dev := range devs {
		nodes[i] = nodeFromDevice(dev)
	}
	return nodes
}

// hbRingAdapter wraps the three hummingbird rings (account, container,
// object) for one storage policy. It holds no mutable state after
// construction and may be shared across every worker goroutine.
type hbRingAdapter struct {
	accountRing   ring.Ring
	containerRing ring.Ring
	objectRing    ring.Ring
}

// LoadRingAdapter loads the account, container, and object rings out of
// ringDir the way hummingbird's CLI tools do (tools/main.go's getRing):
// <ringDir>/account.ring.gz, container.ring.gz, object.ring.gz.
func LoadRingAdapter(ringDir string) (RingAdapter, error) {
	prefix, suffix, err := conf.GetHashPrefixAndSuffix()
	if err != nil {
		return nil, fmt.Errorf("hash prefix/suffix: %w", err)
	}
	accountRing, err := ring.LoadRing(filepath.Join(ringDir, "account.ring.gz"), prefix, suffix)
	if err != nil {
		return nil, fmt.Errorf("loading account ring: %w", err)
	}
	containerRing, err := ring.LoadRing(filepath.Join(ringDir, "container.ring.gz"), prefix, suffix)
	if err != nil {
		return nil, fmt.Errorf("loading container ring: %w", err)
	}
	objectRing, err := ring.LoadRing(filepath.Join(ringDir, "object.ring.gz"), prefix, suffix)
	if err != nil {
		return nil, fmt.Errorf("loading object ring: %w", err)
	}
	return &hbRingAdapter{accountRing: accountRing, containerRing: containerRing, objectRing: objectRing}, nil
}

func (r *hbRingAdapter) LocateAccount(account string) (uint64, []Node, error) {
	part := r.accountRing.GetPartition(account, "", "")
	return part, nodesFromDevices(r.accountRing.GetNodes(part)), nil
}

func (r *hbRingAdapter) LocateContainer(account, container string) (uint64, []Node, error) {
	part := r.containerRing.GetPartition(account, container, "")
	return part, nodesFromDevices(r.containerRing.GetNodes(part)), nil
}

func (r *hbRingAdapter) LocateObject(account, container, object string) (uint64, []Node, HandoffIter, error) {
	part := r.objectRing.GetPartition(account, container, object)
	primaries := nodesFromDevices(r.objectRing.GetNodes(part))
	return part, primaries, &moreNodesIter{more: r.objectRing.GetMoreNodes(part)}, nil
}

func (r *hbRingAdapter) AllDevices() []Node {
	return nodesFromDevices(r.objectRing.AllDevices())
}

func (r *hbRingAdapter) ReplicaCount() uint64 {
	return r.objectRing.ReplicaCount()
}
