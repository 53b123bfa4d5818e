package log

import "errors"

var (
	errEmptyLoggerName            = errors.New("cannot have empty logger name")
	errSubLoggerAlreadyRegistered = errors.New("sub logger already registered")
)
