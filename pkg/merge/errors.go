package merge

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedDocument is matched by every error reporting an input that
	// is not valid YAML.
	ErrMalformedDocument = errors.New("malformed document")
	// ErrInvalidOverride is returned for overrides that cannot be parsed or
	// applied.
	ErrInvalidOverride = errors.New("invalid override")
)

// DocumentError identifies the input document that could not be parsed.
type DocumentError struct {
	// Index is the position of the document in the input sequence.
	Index int
	// Name is where the document was read from, if known.
	Name string
	Err  error
}

func (e *DocumentError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("cannot parse document %d (%s): %v", e.Index, e.Name, e.Err)
	}
	return fmt.Sprintf("cannot parse document %d: %v", e.Index, e.Err)
}

func (e *DocumentError) Unwrap() error { return e.Err }

func (e *DocumentError) Is(target error) bool { return target == ErrMalformedDocument }
