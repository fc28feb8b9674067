// Package profiling provides pprof helpers behind the CLI's hidden
// profiling flags.
package profiling

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
)

// Profiler manages performance profiling for one command run.
type Profiler struct {
	cpuFile *os.File
}

// NewProfiler creates a new Profiler instance.
func NewProfiler() *Profiler {
	return &Profiler{}
}

// StartCPU starts CPU profiling to the specified file.
// Returns a cleanup function that must be called to stop profiling and
// flush data.
func (p *Profiler) StartCPU(path string) (cleanup func(), err error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create CPU profile file: %w", err)
	}

	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to start CPU profile: %w", err)
	}

	p.cpuFile = f

	return func() {
		pprof.StopCPUProfile()
		_ = p.cpuFile.Close()
		p.cpuFile = nil
	}, nil
}

// WriteHeap writes a point-in-time heap profile to the specified file.
func (p *Profiler) WriteHeap(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create heap profile file: %w", err)
	}
	defer func() { _ = f.Close() }()

	// Collect garbage first so the profile reflects live objects.
	runtime.GC()

	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("failed to write heap profile: %w", err)
	}

	return nil
}

// WriteGoroutine writes stack traces of all current goroutines to the
// specified file. Useful when an ingestion run appears stuck.
func (p *Profiler) WriteGoroutine(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create goroutine profile file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := pprof.Lookup("goroutine").WriteTo(f, 1); err != nil {
		return fmt.Errorf("failed to write goroutine profile: %w", err)
	}

	return nil
}
