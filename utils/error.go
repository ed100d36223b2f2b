package utils

import "errors"

var (
	ErrorRecordNotFound = errors.New("record not found")
	ErrInvalidInput     = errors.New("invalid input")
)
