package cache

import "errors"

// ErrNullArg is returned when a nil key or value is passed to Put, or a
// nil key to Get.
var ErrNullArg = errors.New("cache: null key or value")
