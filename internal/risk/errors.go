package risk

import "errors"

// ErrDisarmed is returned by Check when the kill switch is not armed.
var ErrDisarmed = errors.New("system disarmed")
