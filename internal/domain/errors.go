package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrRateLimited    = errors.New("rate limited")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidOrder   = errors.New("invalid order parameters")
	ErrOrderRejected  = errors.New("order rejected")
	ErrNotConnected   = errors.New("websocket not connected")
	ErrConnectTimeout = errors.New("websocket connect timeout")
	ErrWSDisconnect   = errors.New("websocket disconnected")
	ErrDecodeFrame    = errors.New("malformed frame")
)
