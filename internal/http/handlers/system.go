package handlers

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/reelsmith/reelsmith/internal/database"
)

// SystemHandler handles the health check and system status endpoints.
type SystemHandler struct {
	version   string
	startTime time.Time
	db        *database.DB
}

// NewSystemHandler creates a new system handler.
func NewSystemHandler(version string) *SystemHandler {
	return &SystemHandler{
		version:   version,
		startTime: time.Now(),
	}
}

// WithDB sets the database connection for health checks.
func (h *SystemHandler) WithDB(db *database.DB) *SystemHandler {
	h.db = db
	return h
}

// Register registers the system routes with the API.
func (h *SystemHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      "GET",
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns service liveness and database reachability",
		Tags:        []string{"System"},
	}, h.GetHealth)

	huma.Register(api, huma.Operation{
		OperationID: "getSystemStatus",
		Method:      "GET",
		Path:        "/api/system",
		Summary:     "System status",
		Description: "Returns host load, memory, and database pool metrics",
		Tags:        []string{"System"},
	}, h.GetSystemStatus)
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status        string            `json:"status"`
	Timestamp     string            `json:"timestamp"`
	Version       string            `json:"version"`
	Uptime        string            `json:"uptime"`
	UptimeSeconds float64           `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
}

// HealthOutput wraps a HealthResponse.
type HealthOutput struct {
	Body HealthResponse
}

// GetHealth returns the health status of the service.
func (h *SystemHandler) GetHealth(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	now := time.Now()
	uptime := now.Sub(h.startTime)

	dbStatus := "unknown"
	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			dbStatus = "error"
		} else {
			dbStatus = "ok"
		}
	}

	status := "healthy"
	if dbStatus == "error" {
		status = "degraded"
	}

	return &HealthOutput{
		Body: HealthResponse{
			Status:        status,
			Timestamp:     now.UTC().Format(time.RFC3339),
			Version:       h.version,
			Uptime:        uptime.Round(time.Second).String(),
			UptimeSeconds: uptime.Seconds(),
			Checks: map[string]string{
				"database": dbStatus,
			},
		},
	}, nil
}

// CPUInfo reports host load averages.
type CPUInfo struct {
	Cores              int     `json:"cores"`
	Load1Min           float64 `json:"load_1min"`
	Load5Min           float64 `json:"load_5min"`
	Load15Min          float64 `json:"load_15min"`
	LoadPercentage1Min float64 `json:"load_percentage_1min"`
}

// MemoryInfo reports host and process memory usage.
type MemoryInfo struct {
	TotalMemoryMB      float64 `json:"total_memory_mb"`
	UsedMemoryMB       float64 `json:"used_memory_mb"`
	AvailableMemoryMB  float64 `json:"available_memory_mb"`
	SwapTotalMB        float64 `json:"swap_total_mb"`
	SwapUsedMB         float64 `json:"swap_used_mb"`
	ProcessMB          float64 `json:"process_mb"`
	PercentageOfSystem float64 `json:"percentage_of_system"`
}

// DatabaseStatus reports the connection pool and response time.
type DatabaseStatus struct {
	Status                 string  `json:"status"`
	Driver                 string  `json:"driver,omitempty"`
	ConnectionPoolSize     int     `json:"connection_pool_size"`
	ActiveConnections      int     `json:"active_connections"`
	IdleConnections        int     `json:"idle_connections"`
	PoolUtilizationPercent float64 `json:"pool_utilization_percent"`
	ResponseTimeMS         float64 `json:"response_time_ms"`
}

// SystemStatusResponse is the system status payload.
type SystemStatusResponse struct {
	Version  string         `json:"version"`
	Uptime   string         `json:"uptime"`
	CPU      CPUInfo        `json:"cpu"`
	Memory   MemoryInfo     `json:"memory"`
	Database DatabaseStatus `json:"database"`
}

// SystemStatusOutput wraps a SystemStatusResponse.
type SystemStatusOutput struct {
	Body SystemStatusResponse
}

// GetSystemStatus returns host load, memory, and database pool metrics.
func (h *SystemHandler) GetSystemStatus(ctx context.Context, _ *struct{}) (*SystemStatusOutput, error) {
	uptime := time.Since(h.startTime)

	return &SystemStatusOutput{
		Body: SystemStatusResponse{
			Version:  h.version,
			Uptime:   uptime.Round(time.Second).String(),
			CPU:      h.cpuInfo(),
			Memory:   h.memoryInfo(),
			Database: h.databaseStatus(ctx),
		},
	}, nil
}

func (h *SystemHandler) cpuInfo() CPUInfo {
	info := CPUInfo{Cores: runtime.NumCPU()}

	loadAvg, err := load.Avg()
	if err == nil && loadAvg != nil {
		info.Load1Min = loadAvg.Load1
		info.Load5Min = loadAvg.Load5
		info.Load15Min = loadAvg.Load15
		if info.Cores > 0 {
			info.LoadPercentage1Min = (loadAvg.Load1 / float64(info.Cores)) * 100
		}
	}

	return info
}

func (h *SystemHandler) memoryInfo() MemoryInfo {
	info := MemoryInfo{}

	vmStat, err := mem.VirtualMemory()
	if err == nil && vmStat != nil {
		info.TotalMemoryMB = float64(vmStat.Total) / 1024 / 1024
		info.UsedMemoryMB = float64(vmStat.Used) / 1024 / 1024
		info.AvailableMemoryMB = float64(vmStat.Available) / 1024 / 1024
	}

	swapStat, err := mem.SwapMemory()
	if err == nil && swapStat != nil {
		info.SwapTotalMB = float64(swapStat.Total) / 1024 / 1024
		info.SwapUsedMB = float64(swapStat.Used) / 1024 / 1024
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if memInfo, err := proc.MemoryInfo(); err == nil && memInfo != nil {
			info.ProcessMB = float64(memInfo.RSS) / 1024 / 1024
			if info.TotalMemoryMB > 0 {
				info.PercentageOfSystem = (info.ProcessMB / info.TotalMemoryMB) * 100
			}
		}
	}

	return info
}

func (h *SystemHandler) databaseStatus(ctx context.Context) DatabaseStatus {
	status := DatabaseStatus{Status: "unknown"}
	if h.db == nil {
		return status
	}
	status.Driver = h.db.Driver()

	sqlDB, err := h.db.DB.DB()
	if err != nil {
		status.Status = "error"
		return status
	}

	stats := sqlDB.Stats()
	status.ConnectionPoolSize = stats.MaxOpenConnections
	status.ActiveConnections = stats.InUse
	status.IdleConnections = stats.Idle
	if stats.MaxOpenConnections > 0 {
		status.PoolUtilizationPercent = float64(stats.InUse) / float64(stats.MaxOpenConnections) * 100
	}

	start := time.Now()
	if err := sqlDB.PingContext(ctx); err != nil {
		status.Status = "error"
	} else {
		status.Status = "ok"
	}
	status.ResponseTimeMS = float64(time.Since(start).Microseconds()) / 1000

	return status
}
