// Copyright 2025 Certen Protocol
//
// HealthStatus aggregates per-chain component liveness for the /health
// endpoint, grounded on the teacher's HealthStatus struct in main.go:
// one mutex-guarded struct with per-component Set* methods and an
// overall status derived from them.

package relayer

import (
	"encoding/json"
	"sync"
	"time"
)

// ComponentStatus is one chain's view of its monitor/getter/submitter.
type ComponentStatus struct {
	Monitor   string `json:"monitor"`   // "connected", "disconnected"
	Getter    string `json:"getter"`    // "active", "stalled"
	Submitter string `json:"submitter"` // "active", "stalled"
}

// HealthStatus tracks every configured chain's component status plus
// the overall process status derived from them.
type HealthStatus struct {
	mu            sync.RWMutex
	status        string // "ok", "degraded", "error"
	chains        map[string]*ComponentStatus
	startTime     time.Time
	stallRecovery int
}

func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		status:    "starting",
		chains:    make(map[string]*ComponentStatus),
		startTime: time.Now(),
	}
}

func (h *HealthStatus) chain(chainID string) *ComponentStatus {
	c, ok := h.chains[chainID]
	if !ok {
		c = &ComponentStatus{Monitor: "unknown", Getter: "unknown", Submitter: "unknown"}
		h.chains[chainID] = c
	}
	return c
}

func (h *HealthStatus) SetMonitor(chainID, status string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.chain(chainID).Monitor = status
	h.updateOverallStatus()
}

func (h *HealthStatus) SetGetter(chainID, status string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.chain(chainID).Getter = status
	h.updateOverallStatus()
}

func (h *HealthStatus) SetSubmitter(chainID, status string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.chain(chainID).Submitter = status
	h.updateOverallStatus()
}

// RecordStallRecovery increments the stall-recovery episode counter
// reported as stall_recovery_episodes in the /health JSON (spec §11).
func (h *HealthStatus) RecordStallRecovery() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stallRecovery++
}

func (h *HealthStatus) StallRecoveryCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.stallRecovery
}

// updateOverallStatus must be called with mu held.
func (h *HealthStatus) updateOverallStatus() {
	degraded, disconnected := false, false
	for _, c := range h.chains {
		if c.Monitor == "disconnected" {
			disconnected = true
		}
		if c.Getter == "stalled" || c.Submitter == "stalled" {
			degraded = true
		}
	}
	switch {
	case disconnected:
		h.status = "error"
	case degraded:
		h.status = "degraded"
	default:
		h.status = "ok"
	}
}

type healthJSON struct {
	Status        string                      `json:"status"`
	UptimeSeconds int64                       `json:"uptime_seconds"`
	StallRecovery int                         `json:"stall_recovery_episodes"`
	Chains        map[string]*ComponentStatus `json:"chains"`
}

func (h *HealthStatus) ToJSON() []byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	data, _ := json.Marshal(healthJSON{
		Status:        h.status,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		StallRecovery: h.stallRecovery,
		Chains:        h.chains,
	})
	return data
}

func (h *HealthStatus) Status() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}
