package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stwalsh4118/taxappeal/internal/middleware"
)

const (
	// APIVersion is the current version of the API
	APIVersion = "0.3.0"
	// HealthCheckTimeout is the timeout for database health checks
	HealthCheckTimeout = 2 * time.Second
)

// Pinger is the readiness dependency; *database.Database satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// poolStatter is implemented by stores backed by a pgx pool.
type poolStatter interface {
	Stats() *pgxpool.Stat
}

// HealthHandler handles health check and readiness endpoints.
type HealthHandler struct {
	startTime time.Time
	db        Pinger
	env       string
	calendar  bool
}

// NewHealthHandler creates a new HealthHandler instance. calendarLoaded
// reports whether deadline countdowns are available to analyses.
func NewHealthHandler(db Pinger, env string, calendarLoaded bool) *HealthHandler {
	return &HealthHandler{
		startTime: time.Now(),
		db:        db,
		env:       env,
		calendar:  calendarLoaded,
	}
}

// HealthResponse represents the basic health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// PoolStatus is a snapshot of the connection pool.
type PoolStatus struct {
	Total    int32 `json:"total"`
	Idle     int32 `json:"idle"`
	Acquired int32 `json:"acquired"`
	Max      int32 `json:"max"`
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Pool     *PoolStatus `json:"pool,omitempty"`
	Status   string      `json:"status"`
	Database string      `json:"database"`
}

// InfoResponse represents the API information response.
type InfoResponse struct {
	Version          string `json:"version"`
	Environment      string `json:"environment"`
	Uptime           string `json:"uptime"`
	DeadlineCalendar bool   `json:"deadlineCalendar"`
}

// Health handles GET /health. It checks nothing and always returns 200.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy"})
}

// Ready handles GET /health/ready: 200 when the appeal store answers a
// ping, 503 otherwise.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), HealthCheckTimeout)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		if log := middleware.GetLogger(c); log != nil {
			log.Error("Database health check failed", err, map[string]interface{}{
				"timeout": HealthCheckTimeout.String(),
			})
		}
		c.JSON(http.StatusServiceUnavailable, ReadyResponse{Status: "not_ready", Database: "disconnected"})
		return
	}

	c.JSON(http.StatusOK, ReadyResponse{Status: "ready", Database: "connected", Pool: h.poolStatus()})
}

func (h *HealthHandler) poolStatus() *PoolStatus {
	ps, ok := h.db.(poolStatter)
	if !ok {
		return nil
	}
	st := ps.Stats()
	if st == nil {
		return nil
	}
	return &PoolStatus{
		Total:    st.TotalConns(),
		Idle:     st.IdleConns(),
		Acquired: st.AcquiredConns(),
		Max:      st.MaxConns(),
	}
}

// Info handles GET /api/v1/info.
func (h *HealthHandler) Info(c *gin.Context) {
	c.JSON(http.StatusOK, InfoResponse{
		Version:          APIVersion,
		Environment:      h.env,
		Uptime:           formatUptime(time.Since(h.startTime)),
		DeadlineCalendar: h.calendar,
	})
}

// formatUptime renders d as "[Nd ]Nh Nm Ns".
func formatUptime(d time.Duration) string {
	total := int(d.Seconds())
	days, rem := total/86400, total%86400
	hms := fmt.Sprintf("%dh %dm %ds", rem/3600, rem%3600/60, rem%60)
	if days > 0 {
		return fmt.Sprintf("%dd %s", days, hms)
	}
	return hms
}
