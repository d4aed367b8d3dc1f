package offline

import "errors"

var (
	ErrInvalidMutation = errors.New("invalid pending mutation")
	ErrQueueFull       = errors.New("pending queue is full")
	ErrUnauthenticated = errors.New("sync unauthenticated")
	ErrForbidden       = errors.New("sync forbidden")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrOffline         = errors.New("gateway is offline")
)
