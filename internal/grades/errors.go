package grades

import (
	"github.com/go-faster/errors"
)

var (
	ErrNotFound  = errors.New("username does not exist")
	ErrInvalidID = errors.New("id is not a decimal integer")
)

// ValidationError reports input the store refuses before touching the
// database.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// StorageError reports a failed database operation. The transaction it ran
// in has been rolled back.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is caused by rejected input.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsStorage reports whether err is caused by the database.
func IsStorage(err error) bool {
	var s *StorageError
	return errors.As(err, &s)
}
