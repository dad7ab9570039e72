package imaging

import (
	"errors"
	"fmt"
)

// Reasons reported by DecodeError for the common pre-decode rejections.
const (
	ReasonUnsupported = "unsupported extension"
	ReasonEmpty       = "empty file"
	ReasonDirectory   = "is a directory"
)

// ErrDecode matches every *DecodeError.
var ErrDecode = errors.New("imaging: decode failed")

// DecodeError reports a file that could not be turned into an Image. It is
// recoverable: callers skip the file and go on.
type DecodeError struct {
	Path   string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("imaging: %s: %s", e.Path, e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }
