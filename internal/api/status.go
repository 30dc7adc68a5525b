package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/onap/policy-clamp-acm/internal/store"
)

// SystemStatus represents the complete runtime status response.
type SystemStatus struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	WebSocket     WSMetrics        `json:"websocket"`
	MQTT          *MQTTMetrics     `json:"mqtt,omitempty"`
	Database      *DatabaseMetrics `json:"database,omitempty"`
	Participants  map[string]int   `json:"participants"`
	Compositions  CompositionStats `json:"compositions"`
	Definitions   map[string]int   `json:"definitions"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// CompositionStats counts compositions by deploy state.
type CompositionStats struct {
	Total         int            `json:"total"`
	InTransition  int            `json:"in_transition"`
	ByDeployState map[string]int `json:"by_deploy_state"`
}

// handleStatus returns runtime, connectivity and inventory statistics.
// Prometheus collectors are served separately on the metrics path.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	status := SystemStatus{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.Hub().ClientCount(),
		},
		Participants: make(map[string]int),
		Compositions: CompositionStats{ByDeployState: make(map[string]int)},
		Definitions:  make(map[string]int),
	}

	if s.mqtt != nil {
		status.MQTT = &MQTTMetrics{Connected: s.mqtt.IsConnected()}
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		status.Database = &DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	participants, err := s.participants.List(ctx)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	for _, p := range participants {
		status.Participants[string(p.Health)]++
	}

	instances, err := s.provider.GetCompositionInstances(ctx, store.CompositionFilter{})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	status.Compositions.Total = len(instances)
	for i := range instances {
		status.Compositions.ByDeployState[string(instances[i].DeployState)]++
		if instances[i].InTransition() {
			status.Compositions.InTransition++
		}
	}

	defs, err := s.commissioning.List(ctx, store.DefinitionFilter{})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	for _, d := range defs {
		status.Definitions[string(d.State)]++
	}

	writeJSON(w, http.StatusOK, status)
}
