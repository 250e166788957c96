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
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/troubling/hummingbird/common"
	"golang.org/x/net/http2"
)

const (
	connectTimeoutDefault  = 10 * time.Second
	responseTimeoutDefault = 30 * time.Second
)

// ForceAcquireHeader asks the storage node to serve a request even when
// the device is quarantined (§4.2).
const ForceAcquireHeader = "X-Force-Acquire"

// DeleteContainerRow treats a 2xx, 404 or 409 reply as success, since the
// row removal is idempotent; any other status is returned as an error.

// DirectClient issues requests against one specific storage node,
// bypassing any ring-aware proxy routing. §4.2.
type DirectClient interface {
	// HeadObject returns (true, status, nil) on any 2xx. On 404 or 507 it
	// returns (false, status, nil) -- the caller treats that as one
	// negative reply. Any other outcome (including a transport error)
	// returns (false, status, err) with err non-nil so the caller can
	// tell a definite 5xx from a transport failure; both count as
	// "uncertain" per §4.2/§4.3.
	HeadObject(ctx context.Context, node Node, part uint64, account, container, object string, forceAcquire bool) (ok bool, status int, err error)

	// ListContainer pages a container listing on one replica.
	ListContainer(ctx context.Context, node Node, part uint64, account, container, marker, prefix string, limit int) (entries []ListingEntry, err error)

	// ListAccount pages an account listing on one replica, returning the
	// container names and, on the first page, the X-Account-Object-Count
	// header value (objectCount is -1 if absent/unparseable).
	ListAccount(ctx context.Context, node Node, part uint64, account, marker string) (containers []string, objectCount int64, err error)

	// DeleteContainerRow removes one object row from a container index
	// replica. timestamp must be greater than any known entry for the
	// object; the caller supplies it (§4.2).
	DeleteContainerRow(ctx context.Context, node Node, part uint64, account, container, object, timestamp string) error
}

type httpDirectClient struct {
	client           common.HTTPClient
	connectTimeout   time.Duration
	responseTimeout  time.Duration
}

// NewHTTPDirectClient builds the production DirectClient: a plain HTTP/2
// capable client talking straight to storage nodes, the way
// objectserver/repobj.go's Replicate/isStable build their own requests
// rather than going through the proxy-routing client.
func NewHTTPDirectClient(connectTimeout, responseTimeout time.Duration, certFile, keyFile string) (DirectClient, error) {
	raw, connectTimeout, responseTimeout, err := buildRawHTTPClient(connectTimeout, responseTimeout, certFile, keyFile)
	if err != nil {
		return nil, err
	}
	return NewHTTPDirectClientFrom(raw, connectTimeout, responseTimeout), nil
}

// BuildRawHTTPClient builds the plain (untraced) common.HTTPClient the
// direct client is normally backed by. Exposed so a caller can wrap it
// in tracing (WrapTracing) before handing it to NewHTTPDirectClientFrom.
func BuildRawHTTPClient(connectTimeout, responseTimeout time.Duration, certFile, keyFile string) (common.HTTPClient, time.Duration, time.Duration, error) {
	return buildRawHTTPClient(connectTimeout, responseTimeout, certFile, keyFile)
}

func buildRawHTTPClient(connectTimeout, responseTimeout time.Duration, certFile, keyFile string) (common.HTTPClient, time.Duration, time.Duration, error) {
	if connectTimeout <= 0 {
		connectTimeout = connectTimeoutDefault
	}
	if responseTimeout <= 0 {
		responseTimeout = responseTimeoutDefault
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 100,
		Dial: (&net.Dialer{
			Timeout: connectTimeout,
		}).Dial,
	}
	if certFile != "" && keyFile != "" {
		tlsConf, err := common.NewClientTLSConfig(certFile, keyFile)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("TLS config: %w", err)
		}
		transport.TLSClientConfig = tlsConf
		if err := http2.ConfigureTransport(transport); err != nil {
			return nil, 0, 0, fmt.Errorf("http2: %w", err)
		}
	}
	return &http.Client{Transport: transport, Timeout: responseTimeout}, connectTimeout, responseTimeout, nil
}

// NewHTTPDirectClientFrom wraps an already-built common.HTTPClient (for
// instance one returned by WrapTracing) as a DirectClient.
func NewHTTPDirectClientFrom(c common.HTTPClient, connectTimeout, responseTimeout time.Duration) DirectClient {
	return &httpDirectClient{client: c, connectTimeout: connectTimeout, responseTimeout: responseTimeout}
}

func directURL(node Node, part uint64, account, container, object string) string {
	target := account
	if container != "" {
		target += "/" + container
	}
	if object != "" {
		target += "/" + object
	}
	return fmt.Sprintf("%s://%s:%d/%s/%d/%s", node.Scheme, node.IP, node.Port, node.Device, part, common.Urlencode(target))
}

func (c *httpDirectClient) HeadObject(ctx context.Context, node Node, part uint64, account, container, object string, forceAcquire bool) (bool, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, directURL(node, part, account, container, object), nil)
	if err != nil {
		return false, 0, err
	}
	if forceAcquire {
		req.Header.Set(ForceAcquireHeader, "true")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false, 0, err
	}
	defer drain(resp)
	if resp.StatusCode/100 == 2 {
		return true, resp.StatusCode, nil
	}
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == 507 {
		return false, resp.StatusCode, nil
	}
	return false, resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode)
}

func (c *httpDirectClient) ListContainer(ctx context.Context, node Node, part uint64, account, container, marker, prefix string, limit int) ([]ListingEntry, error) {
	u := directURL(node, part, account, container, "")
	q := url.Values{}
	if marker != "" {
		q.Set("marker", marker)
	}
	if prefix != "" {
		q.Set("prefix", prefix)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	q.Set("format", "json")
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer drain(resp)
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("list container: status %d", resp.StatusCode)
	}
	var raw []struct {
		Name         string `json:"name"`
		LastModified string `json:"last_modified"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding container listing: %w", err)
	}
	entries := make([]ListingEntry, len(raw))
	for i, r := range raw {
		entries[i] = ListingEntry{Name: r.Name, LastModified: r.LastModified}
	}
	return entries, nil
}

func (c *httpDirectClient) ListAccount(ctx context.Context, node Node, part uint64, account, marker string) ([]string, int64, error) {
	u := directURL(node, part, account, "", "")
	q := url.Values{"format": {"json"}}
	if marker != "" {
		q.Set("marker", marker)
	}
	u += "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, -1, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, -1, err
	}
	defer drain(resp)
	objectCount := int64(-1)
	if v := resp.Header.Get("X-Account-Object-Count"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			objectCount = n
		}
	}
	if resp.StatusCode == http.StatusNoContent {
		return nil, objectCount, nil
	}
	if resp.StatusCode/100 != 2 {
		return nil, objectCount, fmt.Errorf("list account: status %d", resp.StatusCode)
	}
	var raw []struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, objectCount, fmt.Errorf("decoding account listing: %w", err)
	}
	names := make([]string, len(raw))
	for i, r := range raw {
		names[i] = r.Name
	}
	return names, objectCount, nil
}

func (c *httpDirectClient) DeleteContainerRow(ctx context.Context, node Node, part uint64, account, container, object, timestamp string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, directURL(node, part, account, container, object), nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Timestamp", timestamp)
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer drain(resp)
	if resp.StatusCode/100 != 2 && resp.StatusCode != http.StatusNotFound && resp.StatusCode != http.StatusConflict {
		return fmt.Errorf("delete container row: status %d", resp.StatusCode)
	}
	return nil
}

// deleteTimestamp returns the current wall clock serialized in the
// cluster's internal timestamp format, suitable for X-Timestamp on a
// delete. Per the Design Notes, this is deliberately the audit-time
// clock, not the listing entry's own timestamp -- the original
// behavior this spec preserves, warts and all.
func deleteTimestamp() string {
	return common.CanonicalTimestampFromTime(time.Now())
}

func drain(resp *http.Response) {
	if resp == nil {
		return
	}
	io.Copy(ioutil.Discard, resp.Body)
	resp.Body.Close()
}
