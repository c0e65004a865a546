package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ngoclaw/alger/internal/domain/entity"
	"github.com/ngoclaw/alger/internal/domain/repository"
	domainErrors "github.com/ngoclaw/alger/pkg/errors"
)

// MemoryGateway 是 PersistenceGateway 的纯内存实现，供测试与一次性演练使用；
// 与 GormGateway 一样以单一互斥锁串行化写入。
type MemoryGateway struct {
	mu sync.Mutex

	usersByID       map[string]*entity.User
	usersByUsername map[string]*entity.User
	connections     map[string]*entity.Connection
	conversations   map[string]*entity.Conversation
	messages        []entity.ConversationMessage
	errorLogs       []entity.ErrorLog
	pipelines       map[string]*entity.Pipeline
	executions      map[string]*entity.Execution
	executionEvents []entity.ExecutionEvent
	userActions     []entity.UserAction
}

// NewMemoryGateway 创建空的内存持久化网关
func NewMemoryGateway() repository.PersistenceGateway {
	return &MemoryGateway{
		usersByID:       map[string]*entity.User{},
		usersByUsername: map[string]*entity.User{},
		connections:     map[string]*entity.Connection{},
		conversations:   map[string]*entity.Conversation{},
		pipelines:       map[string]*entity.Pipeline{},
		executions:      map[string]*entity.Execution{},
	}
}

func (m *MemoryGateway) EnsureUser(_ context.Context, username string, defaults entity.User) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.usersByUsername[username]; ok {
		clone := *u
		return &clone, nil
	}
	id := defaults.ID
	if id == "" {
		id = uuid.NewString()
	}
	u, err := entity.NewUser(id, username, defaults)
	if err != nil {
		return nil, err
	}
	m.usersByID[u.ID] = u
	m.usersByUsername[username] = u
	clone := *u
	return &clone, nil
}

func (m *MemoryGateway) GetUser(_ context.Context, userID string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.usersByID[userID]
	if !ok {
		return nil, domainErrors.NewNotFoundError("user not found")
	}
	clone := *u
	return &clone, nil
}

func (m *MemoryGateway) RecordLoginAttempt(_ context.Context, username string, success bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userActions = append(m.userActions, entity.UserAction{
		UserID:    username,
		Action:    "login",
		Details:   map[string]any{"success": success},
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (m *MemoryGateway) RecordUserAction(_ context.Context, userID, action string, details map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userActions = append(m.userActions, entity.UserAction{
		UserID:    userID,
		Action:    action,
		Details:   details,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (m *MemoryGateway) OpenConnection(_ context.Context, conn entity.Connection) (*entity.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conn.Status = entity.ConnectionOpen
	clone := conn
	m.connections[conn.ID] = &clone
	result := clone
	return &result, nil
}

func (m *MemoryGateway) CloseConnection(_ context.Context, connectionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conn, ok := m.connections[connectionID]
	if !ok {
		return domainErrors.NewNotFoundError("connection not found")
	}
	now := time.Now().UTC()
	conn.Status = entity.ConnectionClosed
	conn.DisconnectedAt = &now
	return nil
}

func (m *MemoryGateway) OpenConversation(_ context.Context, conv entity.Conversation) (*entity.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := conv
	m.conversations[conv.ID] = &clone
	result := clone
	return &result, nil
}

func (m *MemoryGateway) CloseConversation(_ context.Context, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.conversations[conversationID]
	if !ok {
		return domainErrors.NewNotFoundError("conversation not found")
	}
	now := time.Now().UTC()
	conv.EndedAt = &now
	return nil
}

func (m *MemoryGateway) LogMessage(_ context.Context, msg entity.ConversationMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *MemoryGateway) LogError(_ context.Context, entry entity.ErrorLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorLogs = append(m.errorLogs, entry)
	return nil
}

func (m *MemoryGateway) ListPipelines(_ context.Context) ([]entity.Pipeline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.pipelines))
	for id := range m.pipelines {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]entity.Pipeline, 0, len(ids))
	for _, id := range ids {
		out = append(out, *m.pipelines[id])
	}
	return out, nil
}

func (m *MemoryGateway) GetPipeline(_ context.Context, pipelineID string) (*entity.Pipeline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pipelines[pipelineID]
	if !ok {
		return nil, domainErrors.NewNotFoundError("pipeline not found")
	}
	clone := *p
	return &clone, nil
}

func (m *MemoryGateway) UpsertPipeline(_ context.Context, pipeline entity.Pipeline) (*entity.Pipeline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	if existing, ok := m.pipelines[pipeline.ID]; ok {
		pipeline.CreatedAt = existing.CreatedAt
	} else {
		pipeline.CreatedAt = now
	}
	pipeline.UpdatedAt = now
	clone := pipeline
	m.pipelines[pipeline.ID] = &clone
	result := clone
	return &result, nil
}

func (m *MemoryGateway) CreateExecution(_ context.Context, execution entity.Execution) (*entity.Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := execution
	m.executions[execution.ID] = &clone
	result := clone
	return &result, nil
}

func (m *MemoryGateway) GetExecution(_ context.Context, executionID string) (*entity.Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.executions[executionID]
	if !ok {
		return nil, domainErrors.NewNotFoundError("execution not found")
	}
	clone := *e
	return &clone, nil
}

func (m *MemoryGateway) UpdateExecutionStatus(_ context.Context, executionID string, status entity.ExecutionStatus, output *repository.ExecutionOutput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.executions[executionID]
	if !ok {
		return domainErrors.NewNotFoundError("execution not found")
	}
	if err := e.SetStatus(status, time.Now().UTC()); err != nil {
		return err
	}
	if output != nil {
		e.OutputFile = output.File
		e.OutputContent = output.Content
	}
	return nil
}

func (m *MemoryGateway) AddExecutionEvent(_ context.Context, event entity.ExecutionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executionEvents = append(m.executionEvents, event)
	return nil
}

func (m *MemoryGateway) CountActiveExecutions(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, e := range m.executions {
		if e.Status == entity.StatusQueued || e.Status == entity.StatusRunning {
			count++
		}
	}
	return count, nil
}

func (m *MemoryGateway) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usersByID = map[string]*entity.User{}
	m.usersByUsername = map[string]*entity.User{}
	m.connections = map[string]*entity.Connection{}
	m.conversations = map[string]*entity.Conversation{}
	m.messages = nil
	m.errorLogs = nil
	m.pipelines = map[string]*entity.Pipeline{}
	m.executions = map[string]*entity.Execution{}
	m.executionEvents = nil
	m.userActions = nil
	return nil
}
