// Package telemetry is the core's view of the cluster's metrics: an opaque
// Prometheus base URL, stored and exposed but never scraped by the core
// itself (§6). Reporting and CLI layers may query through it.
package telemetry

import (
	"fmt"
	"time"

	promclient "github.com/jihwankim/nomos-harness/pkg/monitoring/prometheus"
)

// Sink is the telemetry handle carried on RunContext. A Sink with an empty
// URL is valid: workloads/expectations never require metrics to function,
// they are purely observational.
type Sink struct {
	url    string
	client *promclient.Client
}

// New builds a Sink for the given Prometheus base URL. An empty url produces
// a Sink with no query client, matching "empty if none" in §4.8 step 3.
func New(url string, timeout time.Duration) (*Sink, error) {
	if url == "" {
		return &Sink{}, nil
	}
	client, err := promclient.New(promclient.Config{URL: url, Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	return &Sink{url: url, client: client}, nil
}

// URL returns the configured Prometheus base URL, or "" if none.
func (s *Sink) URL() string { return s.url }

// Client returns the underlying query client, or nil if no URL was
// configured. Intended for the reporting/CLI layer, not for workloads or
// expectations.
func (s *Sink) Client() *promclient.Client { return s.client }
