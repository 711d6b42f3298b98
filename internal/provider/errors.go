package provider

import "errors"

var (
	// ErrFetchFailed is returned when a provider request fails at the transport
	// level or keeps answering with a non-2xx status after retries.
	ErrFetchFailed = errors.New("provider fetch failed")

	// ErrUnexpectedPayload is returned when a provider answers 2xx with a body
	// whose shape does not match the endpoint contract.
	ErrUnexpectedPayload = errors.New("unexpected provider payload")
)
