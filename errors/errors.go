package errors

import "fmt"

var (
	// ErrNotFound covers missing participants and sessions. Callers are
	// expected to translate it into a no-op or a "none" result, never a crash.
	ErrNotFound = fmt.Errorf("not found")

	// ErrNameTaken is returned when a display name is already registered.
	ErrNameTaken = fmt.Errorf("display name already taken")

	// ErrInvalidDisplayName is returned when a display name fails validation.
	ErrInvalidDisplayName = fmt.Errorf("invalid display name")

	// ErrIneligibleRequester means the requester stopped being eligible
	// (claimed by a concurrent match or departed). The whole matching
	// attempt must be aborted.
	ErrIneligibleRequester = fmt.Errorf("requester is no longer waiting")

	// ErrIneligiblePartner means the selected candidate stopped being
	// eligible. The matcher should retry with a different candidate.
	ErrIneligiblePartner = fmt.Errorf("partner is no longer waiting")

	// ErrContentRejected is reported to the sender when moderation refuses
	// a message. Rejected content is never stored.
	ErrContentRejected = fmt.Errorf("content rejected by moderation")

	// ErrNotInSession is returned when a sender posts to a session they are
	// not a member of.
	ErrNotInSession = fmt.Errorf("participant is not a member of the session")

	ErrEmptyWords = fmt.Errorf("no words have been found")
)
