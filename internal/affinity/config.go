// Package affinity resolves per-(phase, stage) CPU affinity policy
// from configuration and applies it to a running worker's OS thread.
package affinity

import (
	"log/slog"
	"strings"

	"themis/internal/abort"
	"themis/internal/logging"
)

// PolicyType selects how a worker's index maps onto the configured
// core mask.
type PolicyType int

const (
	// Fixed pins worker i to mask_bits[i mod |mask_bits|].
	Fixed PolicyType = iota
	// Free permits worker i to run on any core whose bit is set.
	Free
)

// StageConfig is one (phase, stage) entry: a CORES_PER_NODE-length
// mask over {'0','1'} and the policy it is interpreted under.
type StageConfig struct {
	Mask   string
	Policy PolicyType
	set    bool
}

// PhaseConfig holds per-stage overrides plus a phase-level DEFAULT
// used when a stage has no entry of its own.
type PhaseConfig struct {
	Stages  map[string]StageConfig
	Default *StageConfig
}

// Config is the full (phase, stage) affinity table.
type Config struct {
	logger       *slog.Logger
	CoresPerNode int
	Phases       map[string]PhaseConfig
}

// New returns an empty Config for a node with the given core count.
func New(logger *slog.Logger, coresPerNode int) *Config {
	return &Config{logger: logging.Default(logger).With("component", "affinity"), CoresPerNode: coresPerNode, Phases: make(map[string]PhaseConfig)}
}

// SetStage registers the mask/policy for a (phase, stage) pair. Both
// mask and policy must be supplied together.
func (c *Config) SetStage(phase, stage, mask string, policy PolicyType) {
	c.validateMask(mask)
	pc := c.Phases[phase]
	if pc.Stages == nil {
		pc.Stages = make(map[string]StageConfig)
	}
	pc.Stages[stage] = StageConfig{Mask: mask, Policy: policy, set: true}
	c.Phases[phase] = pc
}

// SetPhaseDefault registers the DEFAULT fallback for every stage in
// phase that has no entry of its own.
func (c *Config) SetPhaseDefault(phase, mask string, policy PolicyType) {
	c.validateMask(mask)
	pc := c.Phases[phase]
	sc := StageConfig{Mask: mask, Policy: policy, set: true}
	pc.Default = &sc
	c.Phases[phase] = pc
}

func (c *Config) validateMask(mask string) {
	if len(mask) != c.CoresPerNode {
		abort.Fatalf(c.logger, "affinity: mask length %d does not match CORES_PER_NODE=%d", len(mask), c.CoresPerNode)
	}
	if strings.Trim(mask, "01") != "" {
		abort.Fatalf(c.logger, "affinity: mask %q contains characters other than '0'/'1'", mask)
	}
}

// Resolve finds the StageConfig governing (phase, stage): a direct
// stage entry, else the phase's DEFAULT, else "any core" (ok=false,
// meaning no affinity should be applied at all).
func (c *Config) Resolve(phase, stage string) (StageConfig, bool) {
	pc, ok := c.Phases[phase]
	if !ok {
		return StageConfig{}, false
	}
	if sc, ok := pc.Stages[stage]; ok {
		return sc, true
	}
	if pc.Default != nil {
		return *pc.Default, true
	}
	return StageConfig{}, false
}

func maskBits(mask string) []int {
	var bits []int
	for i, ch := range mask {
		if ch == '1' {
			bits = append(bits, i)
		}
	}
	return bits
}

// AssignWorker resolves the cores worker index i on (phase, stage) may
// run on. A nil result (Resolve found neither a stage entry nor a phase
// DEFAULT) means "any core": no affinity call should be made at all.
func (c *Config) AssignWorker(phase, stage string, workerIndex int) []int {
	sc, ok := c.Resolve(phase, stage)
	if !ok {
		return nil
	}
	bits := maskBits(sc.Mask)
	if len(bits) == 0 {
		abort.Fatalf(c.logger, "affinity: mask for phase %q stage %q has no set bits", phase, stage)
	}
	switch sc.Policy {
	case Fixed:
		return []int{bits[workerIndex%len(bits)]}
	case Free:
		return bits
	default:
		abort.Fatalf(c.logger, "affinity: unknown policy %d for phase %q stage %q", sc.Policy, phase, stage)
		return nil
	}
}

// Apply assigns the calling OS thread's affinity according to
// AssignWorker's result. Callers running worker goroutines must have
// already locked themselves to an OS thread with runtime.LockOSThread.
func (c *Config) Apply(phase, stage string, workerIndex int) error {
	cores := c.AssignWorker(phase, stage, workerIndex)
	if cores == nil {
		return nil
	}
	return setAffinity(cores)
}
