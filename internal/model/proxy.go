package model

import (
	"time"

	"github.com/August26/proxyscan/internal/iprange"
)

// ProxyStatus is the classification reported by the lookup service.
type ProxyStatus string

const (
	StatusActive   ProxyStatus = "ACTIVE"
	StatusInactive ProxyStatus = "INACTIVE"
	StatusUnknown  ProxyStatus = "UNKNOWN"
)

// ParseProxyStatus maps the service's free-form status onto the three known
// values. Anything unrecognised is UNKNOWN.
func ParseProxyStatus(s string) ProxyStatus {
	switch ProxyStatus(s) {
	case StatusActive:
		return StatusActive
	case StatusInactive, "DEAD":
		return StatusInactive
	default:
		return StatusUnknown
	}
}

// ProbeResult is the outcome of probing a single address.
type ProbeResult struct {
	Address     iprange.Address `json:"-"`
	IP          string          `json:"ip"`
	Status      ProxyStatus     `json:"status"`
	ISP         string          `json:"isp,omitempty"`
	CountryCode string          `json:"country_code,omitempty"`
	Delay       string          `json:"delay,omitempty"` // as reported, e.g. "120 ms"
	Latency     time.Duration   `json:"latency_ns,omitempty"`
	Hosting     bool            `json:"hosting,omitempty"` // isp looks like a datacenter
	Error       string          `json:"error,omitempty"`   // set when the probe failed
}

// Active reports whether the address behaves as an active proxy.
func (r ProbeResult) Active() bool {
	return r.Status == StatusActive
}

// Failed reports whether the probe itself failed, as opposed to returning a
// non-active classification.
func (r ProbeResult) Failed() bool {
	return r.Error != ""
}

// ScanStats aggregates summary analytics for an entire run.
type ScanStats struct {
	Probed            int     `json:"probed"`
	UniqueAddresses   uint64  `json:"unique_addresses"` // distinct addresses covered by the batch
	Active            int     `json:"active"`
	Inactive          int     `json:"inactive"`
	Failed            int     `json:"failed"`
	AvgLatencyMs      float64 `json:"avg_latency_ms"`
	ActiveRatePct     float64 `json:"active_rate_pct"`
	TotalProcessingMs int64   `json:"total_processing_time_ms"`
}
