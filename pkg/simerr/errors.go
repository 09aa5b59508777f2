// Package simerr defines the error taxonomy shared across the simulation
// kernel. Configuration errors (bad names, bad paths, bad policies) are kept
// distinct from convergence failures so callers can tell a model-definition
// bug apart from a scenario that failed to settle.
package simerr

import (
	"fmt"
	"strings"
)

// ConfigError reports a model or sample configuration problem. These are
// always fatal at the point of the bad call and are never skipped silently.
type ConfigError struct {
	Construct string // kind of construct the error refers to ("block", "flow", "mode", ...)
	Name      string // name of the offending construct
	Detail    string
}

func (e *ConfigError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("config: %s: %s", e.Construct, e.Detail)
	}
	return fmt.Sprintf("config: %s %q: %s", e.Construct, e.Name, e.Detail)
}

// Config builds a ConfigError with a formatted detail message.
func Config(construct, name, format string, args ...any) *ConfigError {
	return &ConfigError{
		Construct: construct,
		Name:      name,
		Detail:    fmt.Sprintf(format, args...),
	}
}

// ConvergenceError reports that the static fixed-point loop exceeded its pass
// ceiling during one time step. It carries the still-active block set and the
// faults in play so the offending cycle can be diagnosed.
type ConvergenceError struct {
	Time   float64
	Passes int
	Active []string
	Faults map[string][]string
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("static propagation did not converge at t=%g after %d passes; active blocks: %s",
		e.Time, e.Passes, strings.Join(e.Active, ", "))
}
