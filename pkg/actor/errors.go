package actor

import "errors"

// ErrDuplicateActor is returned by Register when id is already taken.
var ErrDuplicateActor = errors.New("actor: duplicate actor id")
