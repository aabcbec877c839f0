package protocol

import "errors"

// ErrInvalidConfig is returned by factories handed a configuration of the wrong kind.
var ErrInvalidConfig = errors.New("invalid action configuration")
