package handlers

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/ontoreason"
)

// Build information - can be set at build time using ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

const serviceName = "ontoreason"

// HealthHandler handles health check requests
type HealthHandler struct {
	admin   ontoreason.GraphAdmin
	started time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(admin ontoreason.GraphAdmin) *HealthHandler {
	return &HealthHandler{admin: admin, started: time.Now()}
}

// HealthCheck handles GET /health - basic liveness check
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   Version,
	})
}

// ReadinessCheck handles GET /ready. The service is ready once the graph
// has been built at least once.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	response := gin.H{
		"status":    "ready",
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if h.admin == nil {
		response["status"] = "not_ready"
		response["checks"] = gin.H{"graph": gin.H{"status": "unhealthy", "error": "client not initialized"}}
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	stats := h.admin.Stats()
	graph := gin.H{
		"status":  "healthy",
		"nodes":   stats.Graph.Nodes,
		"edges":   stats.Graph.Edges,
		"built":   stats.Built,
		"stale":   stats.Stale,
		"version": stats.Graph.Version,
	}
	response["checks"] = gin.H{
		"graph": graph,
		"system": gin.H{
			"status": "healthy",
			"uptime": time.Since(h.started).Round(time.Second).String(),
		},
	}

	if !stats.Built {
		graph["status"] = "unhealthy"
		graph["error"] = "graph not built"
		response["status"] = "not_ready"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}
	c.JSON(http.StatusOK, response)
}

// LivenessCheck handles GET /live - Kubernetes liveness probe endpoint
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// DetailedHealthCheck handles GET /health/detailed
func (h *HealthHandler) DetailedHealthCheck(c *gin.Context) {
	response := gin.H{
		"status":  "healthy",
		"service": serviceName,
		"version": Version,
		"build_info": gin.H{
			"git_commit": GitCommit,
			"build_time": BuildTime,
		},
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"environment": gin.H{"go_version": GoVersion},
	}

	checks := gin.H{}
	if h.admin != nil {
		stats := h.admin.Stats()
		checks["graph"] = gin.H{
			"status":      "healthy",
			"nodes":       stats.Graph.Nodes,
			"edges":       stats.Graph.Edges,
			"communities": stats.Graph.Communities,
			"clusters":    stats.Clusters,
			"levels":      stats.Levels,
			"facts":       stats.Facts,
			"cases":       stats.Cases,
			"stale":       stats.Stale,
		}
	} else {
		checks["graph"] = gin.H{"status": "unhealthy", "error": "client not initialized"}
		response["status"] = "unhealthy"
	}

	m := getSystemMetrics()
	checks["system"] = gin.H{
		"status":       "healthy",
		"memory_usage": m.MemoryUsage,
		"goroutines":   m.Goroutines,
		"gc_cycles":    m.GCCycles,
		"heap_objects": m.HeapObjects,
	}
	response["checks"] = checks

	if response["status"] != "healthy" {
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}
	c.JSON(http.StatusOK, response)
}

// SystemMetrics holds system runtime metrics
type SystemMetrics struct {
	MemoryUsage string `json:"memory_usage"`
	Goroutines  int    `json:"goroutines"`
	GCCycles    uint32 `json:"gc_cycles"`
	HeapObjects uint64 `json:"heap_objects"`
}

func getSystemMetrics() SystemMetrics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return SystemMetrics{
		MemoryUsage: fmt.Sprintf("%.2f MB", float64(m.Alloc)/(1024*1024)),
		Goroutines:  runtime.NumGoroutine(),
		GCCycles:    m.NumGC,
		HeapObjects: m.HeapObjects,
	}
}
