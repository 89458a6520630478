package storage

import "errors"

var ErrNilConstructor = errors.New("nil constructor")
