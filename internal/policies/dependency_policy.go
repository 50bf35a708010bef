package policies

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"pipeline-bundles/internal/types"
)

// DependencyFailurePolicy decides what a failed dependency fetch does to the
// rest of a caching run. Abort stops at the first failure; aggregate keeps
// going and reports every failure at the end.
type DependencyFailurePolicy struct {
	Mode     types.DependencyFailureMode
	failures []error
}

func NewDependencyFailurePolicy(mode string) (*DependencyFailurePolicy, error) {
	switch types.DependencyFailureMode(strings.ToLower(strings.TrimSpace(mode))) {
	case "", types.DependencyFailureAbort:
		return &DependencyFailurePolicy{Mode: types.DependencyFailureAbort}, nil
	case types.DependencyFailureAggregate:
		return &DependencyFailurePolicy{Mode: types.DependencyFailureAggregate}, nil
	default:
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unknown dependency failure mode: %s", mode))
	}
}

// Handle records err for ref. A non-nil return means the caller must stop.
func (p *DependencyFailurePolicy) Handle(ref types.EnvironmentReference, err error) error {
	if err == nil {
		return nil
	}
	wrapped := fmt.Errorf("%s dependency %q in environment %s: %w", ref.Role, ref.Name, ref.Environment, err)
	if p.Mode == types.DependencyFailureAbort {
		return wrapped
	}
	log.Warn().
		Err(err).
		Str("environment", ref.Environment).
		Str("role", string(ref.Role)).
		Str("name", ref.Name).
		Msg("dependency failed; continuing")
	p.failures = append(p.failures, wrapped)
	return nil
}

// Failures is the number of failures held back in aggregate mode.
func (p *DependencyFailurePolicy) Failures() int {
	return len(p.failures)
}

// Err joins every aggregated failure, or returns nil.
func (p *DependencyFailurePolicy) Err() error {
	return errors.Join(p.failures...)
}
