package api

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// HealthStatus represents the overall health of the server.
type HealthStatus struct {
	Status  string                    `json:"status"` // "healthy", "degraded"
	Version string                    `json:"version"`
	Uptime  string                    `json:"uptime"`
	Checks  map[string]ComponentCheck `json:"checks"`
}

// ComponentCheck represents the health of a single component.
type ComponentCheck struct {
	Status  string `json:"status"` // "up", "down", "degraded", "not_configured"
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// PingFunc reports whether a dependency is reachable.
type PingFunc func(ctx context.Context) error

// HealthChecker pings the optional dependencies: the suppression database
// and the download store. Neither is required to filter uploaded files, so
// a failing check degrades the status instead of failing it.
type HealthChecker struct {
	checks    map[string]PingFunc
	startTime time.Time
}

const healthVersion = "1.0.0"

// NewHealthChecker creates a checker. A nil PingFunc reports "not_configured".
func NewHealthChecker(checks map[string]PingFunc) *HealthChecker {
	return &HealthChecker{checks: checks, startTime: time.Now()}
}

// HandleHealth returns the status of every component.
//
//	GET /health
func (hc *HealthChecker) HandleHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]ComponentCheck, len(hc.checks))
	overall := "healthy"
	for name, ping := range hc.checks {
		c := runCheck(r.Context(), ping)
		if c.Status == "down" || c.Status == "degraded" {
			overall = "degraded"
		}
		checks[name] = c
	}

	respondJSON(w, http.StatusOK, HealthStatus{
		Status:  overall,
		Version: healthVersion,
		Uptime:  formatUptime(time.Since(hc.startTime)),
		Checks:  checks,
	})
}

func runCheck(ctx context.Context, ping PingFunc) ComponentCheck {
	if ping == nil {
		return ComponentCheck{Status: "not_configured"}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	start := time.Now()
	err := ping(pingCtx)
	latency := time.Since(start)

	if err != nil {
		return ComponentCheck{
			Status:  "down",
			Latency: latency.String(),
			Message: fmt.Sprintf("ping failed: %v", err),
		}
	}
	if latency > time.Second {
		return ComponentCheck{
			Status:  "degraded",
			Latency: latency.String(),
			Message: fmt.Sprintf("slow response (%s)", latency),
		}
	}
	return ComponentCheck{Status: "up", Latency: latency.String(), Message: "connected"}
}

func formatUptime(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
