package vm

import (
	"io"
	"os"
)

// Config controls the resource limits and collector pacing of a VM.
type Config struct {
	// MaxFrames bounds call depth; deeper calls fail with "Stack overflow."
	MaxFrames int
	// StackSize bounds the value stack, in slots.
	StackSize int

	// GCInitialThreshold is the heap size in bytes that triggers the first
	// collection, and the floor for later thresholds.
	GCInitialThreshold int
	// GCGrowthFactor sets the next threshold as a multiple of the heap
	// size surviving a collection.
	GCGrowthFactor float64
	// GCStress collects at every instruction boundary.
	GCStress bool

	// CancelCheckInterval is how many instructions run between checks of
	// the context passed to Run or Call.
	CancelCheckInterval int

	// Stdout receives output from print.
	Stdout io.Writer
}

// DefaultConfig returns the default VM configuration.
func DefaultConfig() Config {
	return Config{
		MaxFrames:           256,
		StackSize:           65536,
		GCInitialThreshold:  1 << 20,
		GCGrowthFactor:      2.0,
		CancelCheckInterval: 1000,
		Stdout:              os.Stdout,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxFrames <= 0 {
		c.MaxFrames = d.MaxFrames
	}
	if c.StackSize <= 0 {
		c.StackSize = d.StackSize
	}
	if c.GCInitialThreshold <= 0 {
		c.GCInitialThreshold = d.GCInitialThreshold
	}
	if c.GCGrowthFactor <= 1 {
		c.GCGrowthFactor = d.GCGrowthFactor
	}
	if c.CancelCheckInterval <= 0 {
		c.CancelCheckInterval = d.CancelCheckInterval
	}
	if c.Stdout == nil {
		c.Stdout = d.Stdout
	}
	return c
}
