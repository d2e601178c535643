package appendlog

import "github.com/tempolabs/corelib/internal/nilcheck"

// isNilKey reports whether k carries a nil reference.
func isNilKey[K any](k K) bool {
	return nilcheck.IsNil(k)
}
