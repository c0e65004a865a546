// Package repository declares the durable-store contract the rest of the
// domain depends on; infrastructure/persistence supplies the concrete
// implementations (spec §4.4, §6.2).
package repository

import (
	"context"

	"github.com/ngoclaw/alger/internal/domain/entity"
)

// ExecutionOutput carries the terminal output written alongside a status
// transition to finished or failed.
type ExecutionOutput struct {
	File    string
	Content string
}

// PersistenceGateway is the synchronous durable store for every entity in
// §3. Implementations must be safe for concurrent use by multiple
// connection loops (spec §4.4).
type PersistenceGateway interface {
	// EnsureUser returns the user row for username, creating it from
	// defaults if absent.
	EnsureUser(ctx context.Context, username string, defaults entity.User) (*entity.User, error)
	GetUser(ctx context.Context, userID string) (*entity.User, error)
	RecordLoginAttempt(ctx context.Context, username string, success bool) error
	RecordUserAction(ctx context.Context, userID, action string, details map[string]any) error

	OpenConnection(ctx context.Context, conn entity.Connection) (*entity.Connection, error)
	CloseConnection(ctx context.Context, connectionID string) error

	OpenConversation(ctx context.Context, conv entity.Conversation) (*entity.Conversation, error)
	CloseConversation(ctx context.Context, conversationID string) error

	LogMessage(ctx context.Context, msg entity.ConversationMessage) error
	LogError(ctx context.Context, entry entity.ErrorLog) error

	ListPipelines(ctx context.Context) ([]entity.Pipeline, error)
	GetPipeline(ctx context.Context, pipelineID string) (*entity.Pipeline, error)
	UpsertPipeline(ctx context.Context, pipeline entity.Pipeline) (*entity.Pipeline, error)

	CreateExecution(ctx context.Context, execution entity.Execution) (*entity.Execution, error)
	GetExecution(ctx context.Context, executionID string) (*entity.Execution, error)
	UpdateExecutionStatus(ctx context.Context, executionID string, status entity.ExecutionStatus, output *ExecutionOutput) error
	AddExecutionEvent(ctx context.Context, event entity.ExecutionEvent) error
	CountActiveExecutions(ctx context.Context) (int, error)

	// Reset drops all rows. Supplements spec.md for test isolation; not
	// part of the wire protocol.
	Reset(ctx context.Context) error
}
