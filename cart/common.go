package cart

import (
	"errors"
)

var ErrInvalidItem = errors.New("invalid cart item")
var ErrInvalidCondition = errors.New("invalid cart condition")
var ErrUnknownModel = errors.New("unknown associated model")
var ErrMissingSessionKey = errors.New("session key is required")
var ErrNilStorage = errors.New("nil storage supplied")
var ErrNilDispatcher = errors.New("nil dispatcher supplied")
var ErrNilValidator = errors.New("nil item validator supplied")
var ErrLoadingSnapshotFailed = errors.New("loading snapshot failed")
var ErrSavingSnapshotFailed = errors.New("saving snapshot failed")

// Attributes is an open mapping of display metadata carried by items and
// conditions. It has no effect on any computation.
type Attributes map[string]string
