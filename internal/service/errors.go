package service

import (
	"errors"
	"fmt"

	"github.com/blockpress/internal/content"
)

var (
	ErrPostNotFound    = errors.New("post not found")
	ErrVersionNotFound = errors.New("post version not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrImageNotFound   = errors.New("image not found")
	ErrUnauthorized    = errors.New("authentication required")
	ErrForbidden       = errors.New("admin privileges required")
)

// StorageError wraps a persistence failure with the operation that produced it.
// Its message is for logs only and must not be shown to callers.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// storageErr wraps err unless it is nil or already a sentinel or typed service error.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if isDomainError(err) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func isDomainError(err error) bool {
	var se *StorageError
	if errors.As(err, &se) {
		return true
	}
	var ve *content.ValidationError
	if errors.As(err, &ve) {
		return true
	}
	for _, sentinel := range []error{
		ErrPostNotFound, ErrVersionNotFound, ErrUserNotFound, ErrImageNotFound,
		ErrUnauthorized, ErrForbidden, ErrInvalidImage, ErrImageTooLarge,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
