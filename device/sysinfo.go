package device

import (
	"encoding/json"
	"runtime"
	"time"
)

// Stats is a snapshot of process and host resources.
type Stats struct {
	HeapFree      uint64 `json:"heap_free"`
	HeapAlloc     uint64 `json:"heap_alloc"`
	HeapSys       uint64 `json:"heap_sys"`
	NumGoroutine  int    `json:"goroutines"`
	NumCPU        int    `json:"cpu_count"`
	Platform      string `json:"platform"`
	RuntimeVer    string `json:"sdk_version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

var bootTime = time.Now()

// ReadStats samples the runtime.
func ReadStats() Stats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return Stats{
		HeapFree:      ms.HeapIdle - ms.HeapReleased,
		HeapAlloc:     ms.HeapAlloc,
		HeapSys:       ms.HeapSys,
		NumGoroutine:  runtime.NumGoroutine(),
		NumCPU:        runtime.NumCPU(),
		Platform:      runtime.GOOS + "/" + runtime.GOARCH,
		RuntimeVer:    runtime.Version(),
		UptimeSeconds: int64(time.Since(bootTime).Seconds()),
	}
}

// StatsJSON returns ReadStats encoded as a JSON object.
func StatsJSON() string {
	b, _ := json.Marshal(ReadStats())
	return string(b)
}
