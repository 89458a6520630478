package transport

import "errors"

var ErrReceiverExists = errors.New("receiver already registered")
var ErrUnknownNode = errors.New("unknown node")
