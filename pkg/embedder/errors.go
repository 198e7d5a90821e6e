package embedder

import (
	"errors"
	"fmt"
)

// ErrUnknownSymbol is returned when a symbol or query has no vector.
var ErrUnknownSymbol = errors.New("unknown symbol")

// UnknownSymbolError names the symbol that could not be embedded.
type UnknownSymbolError struct {
	Symbol string
}

func (e *UnknownSymbolError) Error() string {
	return fmt.Sprintf("unknown symbol: %q", e.Symbol)
}

// Is makes errors.Is(err, ErrUnknownSymbol) match.
func (e *UnknownSymbolError) Is(target error) bool {
	return target == ErrUnknownSymbol
}

// IsUnknownSymbol reports whether err was caused by an unknown symbol.
func IsUnknownSymbol(err error) bool {
	return errors.Is(err, ErrUnknownSymbol)
}
