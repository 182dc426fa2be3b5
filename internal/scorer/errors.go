package scorer

import "github.com/rotisserie/eris"

// ErrInvalidInput marks caller mistakes (empty batch, missing required
// fields, unknown option values). Callers map it to a client error.
var ErrInvalidInput = eris.New("invalid input")

func invalidInput(format string, args ...any) error {
	return eris.Wrapf(ErrInvalidInput, format, args...)
}

// IsInvalidInput reports whether err (or any error in its chain) is an
// input validation error.
func IsInvalidInput(err error) bool {
	return err != nil && eris.Is(err, ErrInvalidInput)
}
