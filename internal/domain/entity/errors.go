package entity

import "errors"

var (
	// User errors
	ErrInvalidUsername = errors.New("invalid username")

	// Connection / conversation errors
	ErrInvalidConnectionID  = errors.New("invalid connection id")
	ErrInvalidConversationID = errors.New("invalid conversation id")

	// Pipeline errors
	ErrInvalidPipelineID = errors.New("invalid pipeline id")

	// Execution errors
	ErrInvalidExecutionID    = errors.New("invalid execution id")
	ErrInvalidStatusTransition = errors.New("invalid execution status transition")
)
