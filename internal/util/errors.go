package util

import "errors"

var (
	ErrUnauthorized          = errors.New("unauthorized")
	ErrPermissionDenied      = errors.New("permission denied")
	ErrProgressNotFound      = errors.New("progress not found")
	ErrInvalidModuleID       = errors.New("invalid module id")
	ErrModuleContentNotFound = errors.New("module content not found")
	ErrInvalidModuleContent  = errors.New("module content is not valid JSON")
	ErrObjectNotFound        = errors.New("object not found")
)
