package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Error taxonomy for the evaluation pipeline. Transport and rate-limit
// errors are retried by the inference client; remote rejections are not.
// Normalization errors fail a single sample; setup errors fail the run.
var (
	ErrTransport       = errors.New("transport error")
	ErrRemoteRejection = errors.New("remote rejection")
	ErrRateLimit       = errors.New("rate limited")
	ErrNormalization   = errors.New("normalization failed")
	ErrSetup           = errors.New("setup error")
	ErrInvalidInput    = errors.New("invalid input")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsTransient reports whether err should be retried by the inference client.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransport) || errors.Is(err, ErrRateLimit)
}

// IsSetup reports whether err is fatal for the whole run.
func IsSetup(err error) bool {
	return errors.Is(err, ErrSetup)
}
