package grievance

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrMediaStore        = errors.New("media store failed")
	ErrClassification    = errors.New("classification failed")
	ErrPersistence       = errors.New("persistence failed")
	ErrNotFound          = errors.New("grievance not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

const (
	KindValidation        = "validation"
	KindMediaStore        = "media_store"
	KindClassification    = "classification"
	KindPersistence       = "persistence"
	KindNotFound          = "not_found"
	KindInvalidTransition = "invalid_transition"
	KindInternal          = "internal"
)

// FieldError lists missing or malformed fields.
type FieldError struct {
	Fields []string
}

func (e *FieldError) Error() string {
	return "missing or invalid fields: " + strings.Join(e.Fields, ", ")
}

func ValidationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func MediaStoreError(err error) error {
	return tag(ErrMediaStore, err)
}

func ClassificationError(err error) error {
	return tag(ErrClassification, err)
}

// PersistenceError tags err unless it already carries a not-found or transition error.
func PersistenceError(err error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidTransition) {
		return err
	}
	return tag(ErrPersistence, err)
}

func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidTransition):
		return KindInvalidTransition
	case errors.Is(err, ErrMediaStore):
		return KindMediaStore
	case errors.Is(err, ErrClassification):
		return KindClassification
	case errors.Is(err, ErrPersistence):
		return KindPersistence
	default:
		return KindInternal
	}
}

func tag(kind error, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}
