package guestbook

import "errors"

var (
	// ErrProviderUnavailable means no wallet provider is configured or reachable.
	ErrProviderUnavailable = errors.New("wallet provider unavailable")

	// ErrWrongNetwork is advisory: the provider is on another chain.
	ErrWrongNetwork = errors.New("wrong network")

	// ErrEmptySubmission rejects an empty or whitespace-only draft.
	ErrEmptySubmission = errors.New("message cannot be empty")

	// ErrTransactionFailure covers rejection, revert, cancellation and wait timeout.
	ErrTransactionFailure = errors.New("transaction failed")

	// ErrFetchFailure means the message list could not be read.
	ErrFetchFailure = errors.New("fetch messages failed")

	// ErrSubmitting is returned while another submission is outstanding.
	ErrSubmitting = errors.New("submission already in progress")

	// ErrAlreadySubscribed is returned when an event subscription is active.
	ErrAlreadySubscribed = errors.New("already subscribed to new messages")
)
