package extension

import "errors"

// ErrUnknownHook is returned by Build for a name that is not a built-in hook.
var ErrUnknownHook = errors.New("unknown hook")
