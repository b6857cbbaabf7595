package agent

import "errors"

var (
	// ErrInvalidArgument indicates a caller error, e.g. an empty message.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrGeneration indicates the model failed to produce a reply after
	// retries. The conversation state is unchanged when this returns.
	ErrGeneration = errors.New("generation failed")
)
