package websocket

import (
	"go.uber.org/zap"

	"github.com/ngoclaw/alger/internal/domain/dag"
	"github.com/ngoclaw/alger/internal/domain/repository"
)

// Deps bundles the collaborators every handler and connection needs.
// Built once in the application layer and shared across connections.
type Deps struct {
	Gateway  repository.PersistenceGateway
	Engine   *dag.Engine
	Registry *dag.Registry
	State    *ServerState
	Logger   *zap.Logger
	Username string
	Password string
}
