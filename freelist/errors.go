package freelist

import "errors"

// ErrInUse is returned by Close while blocks are still allocated.
var ErrInUse = errors.New("freelist: blocks still allocated")
