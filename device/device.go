// Package device selects the compute backend that the regression code runs
// its matrix products on and provides the sync and timing primitives the
// benchmark driver needs.
package device

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/klauspost/cpuid/v2"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"
)

var ErrNoDevice = errors.New("device: no such device")

// Backend performs the heavy matrix products. Elementwise work stays on the
// host and does not go through the backend.
type Backend interface {
	Name() string

	// Mul computes dst = a * b. dst may be empty, in which case it is sized
	// to fit; otherwise its shape must match.
	Mul(dst *mat.Dense, a, b mat.Matrix)

	// Synchronize blocks until all queued work is complete.
	Synchronize()
}

type Config struct {
	Index int // Position in Devices()
}

type Info struct {
	Index   int
	Backend string
	Detail  string
}

func (i Info) String() string {
	return fmt.Sprintf("[%d] %s: %s", i.Index, i.Backend, i.Detail)
}

// Context is the explicit replacement for a process-wide "current device".
type Context struct {
	info    Info
	backend Backend
}

// -------- DEVICE TABLE -------- //
var backends = []func() Backend{
	func() Backend { return blasBackend{} },
	func() Backend { return newTiledBackend(runtime.GOMAXPROCS(0)) },
}

func Devices() []Info {
	cpu := cpuSummary()
	out := make([]Info, len(backends))
	for i, mk := range backends {
		out[i] = Info{Index: i, Backend: mk().Name(), Detail: cpu}
	}
	return out
}

func Select(cfg Config) (*Context, error) {
	if cfg.Index < 0 || cfg.Index >= len(backends) {
		return nil, fmt.Errorf("%w: index %d (have %d)", ErrNoDevice, cfg.Index, len(backends))
	}
	b := backends[cfg.Index]()
	ctx := &Context{
		info:    Info{Index: cfg.Index, Backend: b.Name(), Detail: cpuSummary()},
		backend: b,
	}
	log.Debug().Int("device", cfg.Index).Str("backend", b.Name()).Msg("device selected")
	return ctx, nil
}

// ------- CONTEXT METHODS ------ //
func (c *Context) Backend() Backend { return c.backend }

func (c *Context) Info() Info { return c.info }

func (c *Context) Sync() { c.backend.Synchronize() }

// Time runs fn and returns the wall-clock time including the final sync.
func (c *Context) Time(fn func()) time.Duration {
	start := time.Now()
	fn()
	c.Sync()
	return time.Since(start)
}

func cpuSummary() string {
	var feats []string
	for _, f := range []struct {
		id   cpuid.FeatureID
		name string
	}{
		{cpuid.AVX2, "avx2"},
		{cpuid.FMA3, "fma"},
		{cpuid.AVX512F, "avx512f"},
		{cpuid.ASIMD, "neon"},
	} {
		if cpuid.CPU.Supports(f.id) {
			feats = append(feats, f.name)
		}
	}
	brand := cpuid.CPU.BrandName
	if brand == "" {
		brand = runtime.GOARCH
	}
	simd := "none"
	if len(feats) > 0 {
		simd = strings.Join(feats, ",")
	}
	return fmt.Sprintf("%s (%d cores, %d threads, simd=%s)",
		brand, cpuid.CPU.PhysicalCores, runtime.GOMAXPROCS(0), simd)
}
