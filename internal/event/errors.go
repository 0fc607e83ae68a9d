package event

import "errors"

var (
	ErrInvalidEventType = errors.New("invalid event type")

	ErrMissingSessionID = errors.New("session id is required")

	ErrMissingPostID = errors.New("post id is required for post and comment events")

	ErrInvalidUserID = errors.New("invalid user id")

	ErrEmptyBatch = errors.New("event batch is empty")

	ErrMissingToken = errors.New("idempotency token is required")

	// ErrDuplicateRequest means the token was already claimed within the
	// retention window: the batch was applied by an earlier call and the
	// caller must not retry.
	ErrDuplicateRequest = errors.New("duplicate request")

	// ErrStorageFailure means the transaction aborted with nothing
	// committed; retrying with the same token is safe.
	ErrStorageFailure = errors.New("storage failure")
)

// IsValidation reports whether err was raised before any storage access.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidEventType) ||
		errors.Is(err, ErrMissingSessionID) ||
		errors.Is(err, ErrMissingPostID) ||
		errors.Is(err, ErrInvalidUserID) ||
		errors.Is(err, ErrEmptyBatch) ||
		errors.Is(err, ErrMissingToken)
}
