package types

import "errors"

// Default invocation parameters.
const (
	// DefaultPenalty is the conflict penalty λ. Any value above 1 makes a
	// single contradiction outweigh a corroboration; 2 keeps two clean
	// matches ahead of one contradicted match.
	DefaultPenalty = 2.0
	DefaultWorkers = 1
)

// Config validation errors.
var (
	ErrPenaltyTooLow  = errors.New("conflict penalty must be greater than 1")
	ErrWorkersInvalid = errors.New("worker count must be positive")
)

// Config holds the invocation parameters for an imputation run. The
// zero value is not valid; use DefaultConfig.
type Config struct {
	// Penalty is the weight λ applied to observed contradictions when
	// scoring a lineage against a node's effective mutation state.
	Penalty float64 `json:"penalty" yaml:"penalty"`
	// InternalOnly restricts imputation to non-sample nodes.
	InternalOnly bool `json:"internal_only" yaml:"internal_only"`
	// Workers is the number of genomic windows processed in parallel.
	Workers int `json:"workers" yaml:"workers"`
	// Verbose enables progress diagnostics on stderr.
	Verbose bool `json:"verbose" yaml:"verbose"`
}

// DefaultConfig returns the standard run configuration.
func DefaultConfig() Config {
	return Config{
		Penalty: DefaultPenalty,
		Workers: DefaultWorkers,
	}
}

// Validate checks that the Config is well-formed. It returns a sentinel
// error from this package on failure.
func (c Config) Validate() error {
	if c.Penalty <= 1 {
		return ErrPenaltyTooLow
	}
	if c.Workers < 1 {
		return ErrWorkersInvalid
	}
	return nil
}
