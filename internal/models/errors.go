package models

import (
	"errors"
	"fmt"
)

// ErrValidation represents a validation error with field and message.
type ErrValidation struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ErrValidation) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// Common validation errors for models.
var (
	// ErrNameRequired indicates a required name field is empty.
	ErrNameRequired = errors.New("name is required")

	// ErrFilePathRequired indicates a required file path field is empty.
	ErrFilePathRequired = errors.New("file_path is required")

	// ErrProfileIDRequired indicates a required profile reference is zero.
	ErrProfileIDRequired = errors.New("profile_id is required")

	// ErrRootPathRequired indicates a required scan root path is empty.
	ErrRootPathRequired = errors.New("path is required")

	// ErrInvalidVideoCodec indicates an unsupported target video codec.
	ErrInvalidVideoCodec = errors.New("invalid target video codec: must be one of av1, h265, h264, vp9")

	// ErrInvalidContainer indicates an unsupported output container.
	ErrInvalidContainer = errors.New("invalid container: must be one of mkv, mp4, webm")

	// ErrInvalidAudioStrategy indicates an unrecognised audio strategy.
	ErrInvalidAudioStrategy = errors.New("invalid audio strategy")

	// ErrInvalidSubtitleStrategy indicates an unrecognised subtitle strategy.
	ErrInvalidSubtitleStrategy = errors.New("invalid subtitle strategy")

	// ErrInvalidQuality indicates a quality value outside the 0-51 CRF/CQ range.
	ErrInvalidQuality = errors.New("quality must be between 0 and 51")

	// ErrInvalidStatus indicates a queue item status outside the closed enumeration.
	ErrInvalidStatus = errors.New("invalid queue item status")

	// ErrInvalidTimeOfDay indicates a schedule start/end time is not HH:MM.
	ErrInvalidTimeOfDay = errors.New("time must be in HH:MM form")

	// ErrInvalidDaysOfWeek indicates a schedule days-of-week value outside 0..6.
	ErrInvalidDaysOfWeek = errors.New("days_of_week values must be between 0 (Sunday) and 6 (Saturday)")

	// ErrBaseURLRequired indicates a required external connection base URL is empty.
	ErrBaseURLRequired = errors.New("base_url is required")

	// ErrInvalidConnectionKind indicates an unrecognised external connection kind.
	ErrInvalidConnectionKind = errors.New("invalid connection kind")

	// ErrConstraintViolation wraps a unique/default invariant breach surfaced by the store.
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrStorage wraps a transport-level failure from the persistence layer.
	ErrStorage = errors.New("storage error")

	// ErrProfileInUse indicates a profile delete was refused because a scan
	// root, a folder watch, or a non-terminal queue item still references it.
	ErrProfileInUse = errors.New("profile is referenced by a scan root, folder watch, or non-terminal queue item")

	// ErrAlreadyFinalised indicates a finalise was attempted on a queue item
	// that is already in a terminal state.
	ErrAlreadyFinalised = errors.New("queue item is already finalised")
)

// StorageError wraps a lower-level transport error (driver I/O, network
// partition against a remote DB) surfaced by the persistence layer.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// ConstraintViolation reports a breach of a model-level invariant such as
// "at most one default profile" or a unique-per-non-terminal-status path.
type ConstraintViolation struct {
	Constraint string
	Detail     string
}

func (e *ConstraintViolation) Error() string {
	return fmt.Sprintf("constraint violation (%s): %s", e.Constraint, e.Detail)
}

func (e *ConstraintViolation) Is(target error) bool {
	return target == ErrConstraintViolation
}
