package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateOrder = errors.New("duplicate pending order")
	ErrPositionOpen   = errors.New("position already open")
	ErrNoPosition     = errors.New("no open position")
	ErrInvalidOrder   = errors.New("invalid order parameters")
	ErrWSDisconnect   = errors.New("websocket disconnected")
	ErrContextDone    = errors.New("context cancelled")
)
