package realm

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedAuthParameter = errors.New("unsupported auth parameter")
	ErrUnknownScheme            = errors.New("unknown auth scheme")
)

// UnsupportedAuthParameterError is returned when a challenge names a digest
// algorithm or qop the engine cannot compute.
type UnsupportedAuthParameterError struct {
	Param string
	Value string
}

func (e *UnsupportedAuthParameterError) Error() string {
	return fmt.Sprintf("%v: digest %s %q", ErrUnsupportedAuthParameter, e.Param, e.Value)
}

func (e *UnsupportedAuthParameterError) Unwrap() error {
	return ErrUnsupportedAuthParameter
}
