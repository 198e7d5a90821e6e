package nlp

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyResponse is returned when a completion carries no choices.
	ErrEmptyResponse = errors.New("the LLM returned an empty response")

	ErrUnsupportedProvider = errors.New("unsupported nlp provider")
)

// RateLimitError is returned when the provider answers 429. Err holds the
// provider error, if any.
type RateLimitError struct {
	Model string
	Err   error
}

func (e *RateLimitError) Error() string {
	msg := "rate limit exceeded"
	if e.Model != "" {
		msg = fmt.Sprintf("rate limit exceeded for model %s", e.Model)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// Is matches any *RateLimitError.
func (e *RateLimitError) Is(target error) bool {
	_, ok := target.(*RateLimitError)
	return ok
}
