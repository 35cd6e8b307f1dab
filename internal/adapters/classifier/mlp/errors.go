package mlp

import "errors"

// ErrInvalidWeights reports a weights file that does not describe a usable
// network.
var ErrInvalidWeights = errors.New("invalid mlp weights")
