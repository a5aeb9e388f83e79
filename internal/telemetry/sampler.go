package telemetry

import (
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Reading is one host-resource sample.
type Reading struct {
	SystemCPUPercent  float64
	ProcessCPUPercent float64
	RAMUsedBytes      uint64
	RAMTotalBytes     uint64
	RAMPercent        float64
	CPUTempCelsius    *float64
}

// Sampler reads host CPU, RAM, and (when available) CPU temperature.
// Temperature reads are expensive on some platforms, so they are
// cached for tempCacheTTL, mirroring the original CpuTempReader.
type Sampler struct {
	proc *process.Process

	tempCacheTTL time.Duration
	tempMu       sync.Mutex
	tempReadAt   time.Time
	tempCached   *float64
}

// NewSampler creates a sampler bound to the current OS process.
func NewSampler() *Sampler {
	s := &Sampler{tempCacheTTL: 5 * time.Second}
	if proc, err := process.NewProcess(int32(currentPID())); err == nil {
		s.proc = proc
		// Prime the process CPU-percent counter so the first real
		// reading isn't an artifact of process start time.
		_, _ = s.proc.Percent(0)
	}
	_, _ = cpu.Percent(0, false)
	return s
}

// Read takes one sample. Any individual metric that fails to read
// (sandboxed containers often restrict /proc or sensors) is left at
// its zero value rather than aborting the whole reading.
func (s *Sampler) Read() Reading {
	var r Reading

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		r.SystemCPUPercent = percents[0]
	}

	if s.proc != nil {
		if p, err := s.proc.Percent(0); err == nil {
			r.ProcessCPUPercent = p
		}
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		r.RAMUsedBytes = vm.Used
		r.RAMTotalBytes = vm.Total
		r.RAMPercent = vm.UsedPercent
	}

	r.CPUTempCelsius = s.readTemp()
	return r
}

func (s *Sampler) readTemp() *float64 {
	s.tempMu.Lock()
	defer s.tempMu.Unlock()

	if time.Since(s.tempReadAt) < s.tempCacheTTL {
		return s.tempCached
	}
	s.tempReadAt = time.Now()

	temps, err := host.SensorsTemperatures()
	if err != nil || len(temps) == 0 {
		s.tempCached = nil
		return nil
	}

	var sum float64
	var n int
	for _, t := range temps {
		if t.Temperature > 0 {
			sum += t.Temperature
			n++
		}
	}
	if n == 0 {
		s.tempCached = nil
		return nil
	}
	avg := sum / float64(n)
	s.tempCached = &avg
	return s.tempCached
}
