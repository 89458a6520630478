package crdt

import "errors"

var ErrUnknownType = errors.New("unknown crdt type")
var ErrInvalidMutator = errors.New("mutator is not callable")
var ErrUnknownMutator = errors.New("unknown mutator")
var ErrInvalidMessage = errors.New("invalid message for crdt type")
var ErrInvalidArguments = errors.New("invalid mutator arguments")
