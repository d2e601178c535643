package pool

import "errors"

// ErrPoolClosed is returned by Borrow once the pool has been closed.
var ErrPoolClosed = errors.New("pool: closed")
