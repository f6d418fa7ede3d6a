package audit

import "errors"

// ErrClosed is returned when an operation is attempted on a closed store or
// recorder.
var ErrClosed = errors.New("audit store is closed")
