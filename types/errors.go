package types

import (
	"errors"
	"fmt"
)

var (
	ErrConfigNotFound       = errors.New("config not found")
	ErrConfigInvalidPath    = errors.New("config invalid path")
	ErrConfigParseFailed    = errors.New("config parse failed")
	ErrConfigIsNil          = errors.New("config is nil")
	ErrConfigValidateFailed = errors.New("config validate failed")
)

var (
	ErrCacheKeyEmpty       = errors.New("cache key empty")
	ErrTransactionFinished = errors.New("transaction already finished")
	ErrPersistTypeUnknown  = errors.New("persist type unknown")
	ErrPersistDisabled     = errors.New("persistence is disabled")
	ErrPersistFailed       = errors.New("persist operation failed")
)

var (
	ErrClientRequestFailed   = errors.New("client request failed")
	ErrClientResponseInvalid = errors.New("client response invalid")
	ErrCircuitBreakerOpen    = errors.New("circuit breaker open")
)

var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrSessionExpired    = errors.New("session expired")
	ErrNoRefreshToken    = errors.New("no refresh token")
	ErrTokenInvalid      = errors.New("token invalid")
	ErrSessionUnreadable = errors.New("session file unreadable")
)

var (
	ErrPostNotFound = errors.New("post not found")
	ErrFileIsEmpty  = errors.New("file is empty")
)

var (
	ErrMetricsIsDisabled  = errors.New("metrics manager is disabled")
	ErrMetricsTypeUnknown = errors.New("metrics type unknown")
)

var (
	ErrLogFileIsEmpty      = errors.New("log file is empty")
	ErrLogFileWrongFormat  = errors.New("log file wrong format")
	ErrLoggerTypeUnknown   = errors.New("logger type unknown")
	ErrLoggerConfigInvalid = errors.New("logger config invalid")
)

var (
	ErrServiceIsRunning    = errors.New("service is running")
	ErrServiceIsNotRunning = errors.New("service is not running")
	ErrAlreadyRunning      = errors.New("already running")
	ErrNotRunning          = errors.New("not running")
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNotSupported     = errors.New("not supported")
)

func Errorf(baseErr error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", baseErr, fmt.Sprintf(format, args...))
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
