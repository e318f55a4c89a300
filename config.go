package rtkernel

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"
	"github.com/comalice/rtkernel/internal/primitives"
	"golang.org/x/crypto/blake2b"
	"gopkg.in/yaml.v3"
)

// SchemaConstraint is the range of config schema versions this package reads.
const SchemaConstraint = "^1.0"

// Config holds the capacities a Scheduler is built with. All storage is sized
// from it once, in NewScheduler.
type Config struct {
	Version string `json:"version" yaml:"version"`
	// Priorities is the number of task slots, slot 0 being idle.
	Priorities int `json:"priorities" yaml:"priorities"`
	// QueueCapacity is the default per-actor queue capacity, a power of two.
	QueueCapacity int `json:"queueCapacity" yaml:"queueCapacity"`
	// MaxNesting bounds the depth of state hierarchies beneath Top.
	MaxNesting int `json:"maxNesting" yaml:"maxNesting"`
	// MaxSignals sizes the static event table used by SendSignal.
	MaxSignals int `json:"maxSignals" yaml:"maxSignals"`
	// PoolSize is the number of dynamic events; zero disables the pool.
	PoolSize int `json:"poolSize" yaml:"poolSize"`
}

// DefaultConfig returns a configuration suitable for tests and small demos.
func DefaultConfig() Config {
	return Config{
		Version:       "1.0.0",
		Priorities:    64,
		QueueCapacity: 16,
		MaxNesting:    8,
		MaxSignals:    64,
		PoolSize:      32,
	}
}

// Validate checks every field against its bound. Errors wrap ErrConfig.
func (c Config) Validate() error {
	constraint, err := semver.NewConstraint(SchemaConstraint)
	if err != nil {
		return fmt.Errorf("%w: schema constraint: %v", ErrConfig, err)
	}
	v, err := semver.NewVersion(c.Version)
	if err != nil {
		return fmt.Errorf("%w: version %q: %v", ErrConfig, c.Version, err)
	}
	if !constraint.Check(v) {
		return fmt.Errorf("%w: version %s does not satisfy %s", ErrConfig, v, SchemaConstraint)
	}
	if c.Priorities < 2 || c.Priorities > primitives.MaxPriorities {
		return fmt.Errorf("%w: priorities %d outside [2,%d]", ErrConfig, c.Priorities, primitives.MaxPriorities)
	}
	if c.QueueCapacity < 2 || c.QueueCapacity&(c.QueueCapacity-1) != 0 {
		return fmt.Errorf("%w: queue capacity %d is not a power of two >= 2", ErrConfig, c.QueueCapacity)
	}
	if c.MaxNesting < 1 {
		return fmt.Errorf("%w: max nesting %d must be positive", ErrConfig, c.MaxNesting)
	}
	if c.MaxSignals <= int(SigUser) || c.MaxSignals > 1<<16 {
		return fmt.Errorf("%w: max signals %d outside (%d,%d]", ErrConfig, c.MaxSignals, SigUser, 1<<16)
	}
	if c.PoolSize < 0 {
		return fmt.Errorf("%w: pool size %d is negative", ErrConfig, c.PoolSize)
	}
	return nil
}

// LoadConfig reads a YAML configuration. Fields missing from the file keep
// their DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig is LoadConfig for an in-memory document.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Fingerprint is a stable digest of the configuration, recorded in snapshots
// so a restored snapshot can be matched against the scheduler it came from.
func (c Config) Fingerprint() string {
	data, err := yaml.Marshal(c)
	if err != nil {
		panic(err)
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
