package appendlog

import "errors"

// ErrNullKey is returned when a nil key is passed to an operation that
// requires one. It is the only fatal domain error AppendLog raises.
var ErrNullKey = errors.New("appendlog: null key")
