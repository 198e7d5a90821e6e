package ontology

import (
	"errors"
	"fmt"
)

// ErrOntologyLoad is the sentinel matched by every ontology load failure.
var ErrOntologyLoad = errors.New("ontology load failed")

// LoadError reports an unreadable or malformed ontology source.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("ontology load failed: %v", e.Err)
	}
	return fmt.Sprintf("ontology load failed for %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Is implements errors.Is support so errors.Is(err, ErrOntologyLoad) and
// errors.Is(err, &LoadError{}) both match.
func (e *LoadError) Is(target error) bool {
	if target == ErrOntologyLoad {
		return true
	}
	_, ok := target.(*LoadError)
	return ok
}

func newLoadError(source string, format string, args ...any) *LoadError {
	return &LoadError{Source: source, Err: fmt.Errorf(format, args...)}
}
