package resolve

import "errors"

// ErrDiffUnavailable is returned when any diff of a push could not be
// fetched. The whole push is then treated as unprocessed.
var ErrDiffUnavailable = errors.New("diff unavailable")
