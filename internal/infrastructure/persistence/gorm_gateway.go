package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ngoclaw/alger/internal/domain/entity"
	"github.com/ngoclaw/alger/internal/domain/repository"
	"github.com/ngoclaw/alger/internal/infrastructure/persistence/models"
	domainErrors "github.com/ngoclaw/alger/pkg/errors"
)

// GormGateway 是 PersistenceGateway 的 GORM 实现：单一序列化写锁 + 按行读取
// (spec §4.4 — "a serializing mutex around writes and row-based reads")。
type GormGateway struct {
	db *gorm.DB
	mu sync.Mutex
}

// NewGormGateway 创建 GORM 持久化网关
func NewGormGateway(db *gorm.DB) repository.PersistenceGateway {
	return &GormGateway{db: db}
}

func (g *GormGateway) EnsureUser(ctx context.Context, username string, defaults entity.User) (*entity.User, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var model models.UserModel
	err := g.db.WithContext(ctx).First(&model, "username = ?", username).Error
	if err == nil {
		return userFromModel(&model), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainErrors.NewInternalErrorWithCause("failed to look up user", err)
	}

	id := defaults.ID
	if id == "" {
		id = uuid.NewString()
	}
	rolesJSON, _ := json.Marshal(defaults.Roles)
	metaJSON, _ := json.Marshal(defaults.Metadata)
	model = models.UserModel{
		ID:          id,
		Username:    username,
		DisplayName: defaults.DisplayName,
		Email:       defaults.Email,
		Roles:       string(rolesJSON),
		Metadata:    string(metaJSON),
	}
	if err := g.db.WithContext(ctx).Create(&model).Error; err != nil {
		return nil, domainErrors.NewInternalErrorWithCause("failed to create user", err)
	}
	return userFromModel(&model), nil
}

func (g *GormGateway) GetUser(ctx context.Context, userID string) (*entity.User, error) {
	var model models.UserModel
	if err := g.db.WithContext(ctx).First(&model, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.NewNotFoundError("user not found")
		}
		return nil, domainErrors.NewInternalErrorWithCause("failed to find user", err)
	}
	return userFromModel(&model), nil
}

func (g *GormGateway) RecordLoginAttempt(ctx context.Context, username string, success bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	details, _ := json.Marshal(map[string]any{"username": username, "success": success})
	action := models.UserActionModel{
		UserID:    username,
		Action:    "login",
		Details:   string(details),
		CreatedAt: time.Now().UTC(),
	}
	if err := g.db.WithContext(ctx).Create(&action).Error; err != nil {
		return domainErrors.NewInternalErrorWithCause("failed to record login attempt", err)
	}
	return nil
}

func (g *GormGateway) RecordUserAction(ctx context.Context, userID, action string, details map[string]any) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	detailsJSON, _ := json.Marshal(details)
	model := models.UserActionModel{
		UserID:    userID,
		Action:    action,
		Details:   string(detailsJSON),
		CreatedAt: time.Now().UTC(),
	}
	if err := g.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domainErrors.NewInternalErrorWithCause("failed to record user action", err)
	}
	return nil
}

func (g *GormGateway) OpenConnection(ctx context.Context, conn entity.Connection) (*entity.Connection, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	model := models.ConnectionModel{
		ID:          conn.ID,
		UserID:      conn.UserID,
		ClientIP:    conn.ClientIP,
		ClientPort:  conn.ClientPort,
		UserAgent:   conn.UserAgent,
		Origin:      conn.Origin,
		Path:        conn.Path,
		Status:      string(entity.ConnectionOpen),
		ConnectedAt: conn.ConnectedAt,
	}
	if err := g.db.WithContext(ctx).Create(&model).Error; err != nil {
		return nil, domainErrors.NewInternalErrorWithCause("failed to open connection", err)
	}
	return connectionFromModel(&model), nil
}

func (g *GormGateway) CloseConnection(ctx context.Context, connectionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := time.Now().UTC()
	result := g.db.WithContext(ctx).Model(&models.ConnectionModel{}).
		Where("id = ?", connectionID).
		Updates(map[string]any{"status": string(entity.ConnectionClosed), "disconnected_at": now})
	if result.Error != nil {
		return domainErrors.NewInternalErrorWithCause("failed to close connection", result.Error)
	}
	return nil
}

func (g *GormGateway) OpenConversation(ctx context.Context, conv entity.Conversation) (*entity.Conversation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	model := models.ConversationModel{
		ID:           conv.ID,
		UserID:       conv.UserID,
		ConnectionID: conv.ConnectionID,
		StartedAt:    conv.StartedAt,
	}
	if err := g.db.WithContext(ctx).Create(&model).Error; err != nil {
		return nil, domainErrors.NewInternalErrorWithCause("failed to open conversation", err)
	}
	return conversationFromModel(&model), nil
}

func (g *GormGateway) CloseConversation(ctx context.Context, conversationID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := time.Now().UTC()
	result := g.db.WithContext(ctx).Model(&models.ConversationModel{}).
		Where("id = ?", conversationID).
		Updates(map[string]any{"ended_at": now})
	if result.Error != nil {
		return domainErrors.NewInternalErrorWithCause("failed to close conversation", result.Error)
	}
	return nil
}

func (g *GormGateway) LogMessage(ctx context.Context, msg entity.ConversationMessage) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	payload, _ := json.Marshal(msg.Payload)
	model := models.ConversationMessageModel{
		ConversationID: msg.ConversationID,
		Direction:      string(msg.Direction),
		MessageID:      msg.MessageID,
		RequestID:      msg.RequestID,
		TypeCode:       msg.TypeCode,
		StatusCode:     msg.StatusCode,
		Payload:        string(payload),
		Error:          msg.Error,
		RecordedAt:     msg.RecordedAt,
	}
	if err := g.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domainErrors.NewInternalErrorWithCause("failed to log message", err)
	}
	return nil
}

func (g *GormGateway) LogError(ctx context.Context, entry entity.ErrorLog) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	payload, _ := json.Marshal(entry.Payload)
	model := models.ErrorLogModel{
		ConversationID: entry.ConversationID,
		ExecutionID:    entry.ExecutionID,
		MessageID:      entry.MessageID,
		TypeCode:       entry.TypeCode,
		Severity:       entry.Severity,
		Message:        entry.Message,
		Payload:        string(payload),
		CreatedAt:      entry.CreatedAt,
	}
	if err := g.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domainErrors.NewInternalErrorWithCause("failed to log error", err)
	}
	return nil
}

func (g *GormGateway) ListPipelines(ctx context.Context) ([]entity.Pipeline, error) {
	var rows []models.PipelineModel
	if err := g.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, domainErrors.NewInternalErrorWithCause("failed to list pipelines", err)
	}
	pipelines := make([]entity.Pipeline, 0, len(rows))
	for _, row := range rows {
		pipelines = append(pipelines, *pipelineFromModel(&row))
	}
	return pipelines, nil
}

func (g *GormGateway) GetPipeline(ctx context.Context, pipelineID string) (*entity.Pipeline, error) {
	var model models.PipelineModel
	if err := g.db.WithContext(ctx).First(&model, "id = ?", pipelineID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.NewNotFoundError("pipeline not found")
		}
		return nil, domainErrors.NewInternalErrorWithCause("failed to find pipeline", err)
	}
	return pipelineFromModel(&model), nil
}

func (g *GormGateway) UpsertPipeline(ctx context.Context, pipeline entity.Pipeline) (*entity.Pipeline, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	graphJSON, _ := json.Marshal(pipeline.FullGraph)
	metaJSON, _ := json.Marshal(pipeline.Metadata)
	now := time.Now().UTC()
	model := models.PipelineModel{
		ID:          pipeline.ID,
		Name:        pipeline.Name,
		FullGraph:   string(graphJSON),
		Description: pipeline.Description,
		Metadata:    string(metaJSON),
		UpdatedAt:   now,
	}
	if err := g.db.WithContext(ctx).Where("id = ?", pipeline.ID).Assign(model).FirstOrCreate(&model).Error; err != nil {
		return nil, domainErrors.NewInternalErrorWithCause("failed to upsert pipeline", err)
	}
	return pipelineFromModel(&model), nil
}

func (g *GormGateway) CreateExecution(ctx context.Context, execution entity.Execution) (*entity.Execution, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	graphJSON, _ := json.Marshal(execution.Graph)
	paramsJSON, _ := json.Marshal(execution.Params)
	model := models.ExecutionModel{
		ID:          execution.ID,
		PipelineID:  execution.PipelineID,
		Source:      string(execution.Source),
		Graph:       string(graphJSON),
		Params:      string(paramsJSON),
		Status:      string(execution.Status),
		RequestedBy: execution.RequestedBy,
		StartedAt:   execution.StartedAt,
	}
	if err := g.db.WithContext(ctx).Create(&model).Error; err != nil {
		return nil, domainErrors.NewInternalErrorWithCause("failed to create execution", err)
	}
	return executionFromModel(&model), nil
}

func (g *GormGateway) GetExecution(ctx context.Context, executionID string) (*entity.Execution, error) {
	var model models.ExecutionModel
	if err := g.db.WithContext(ctx).First(&model, "id = ?", executionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.NewNotFoundError("execution not found")
		}
		return nil, domainErrors.NewInternalErrorWithCause("failed to find execution", err)
	}
	return executionFromModel(&model), nil
}

func (g *GormGateway) UpdateExecutionStatus(ctx context.Context, executionID string, status entity.ExecutionStatus, output *repository.ExecutionOutput) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	var model models.ExecutionModel
	if err := g.db.WithContext(ctx).First(&model, "id = ?", executionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domainErrors.NewNotFoundError("execution not found")
		}
		return domainErrors.NewInternalErrorWithCause("failed to find execution", err)
	}

	execution := executionFromModel(&model)
	if err := execution.SetStatus(status, time.Now().UTC()); err != nil {
		return err
	}

	updates := map[string]any{"status": string(execution.Status)}
	if execution.CompletedAt != nil {
		updates["completed_at"] = *execution.CompletedAt
	}
	if output != nil {
		updates["output_file"] = output.File
		updates["output_content"] = output.Content
	}
	if err := g.db.WithContext(ctx).Model(&models.ExecutionModel{}).Where("id = ?", executionID).Updates(updates).Error; err != nil {
		return domainErrors.NewInternalErrorWithCause("failed to update execution status", err)
	}
	return nil
}

func (g *GormGateway) AddExecutionEvent(ctx context.Context, event entity.ExecutionEvent) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	payload, _ := json.Marshal(event.Payload)
	model := models.ExecutionEventModel{
		ExecutionID: event.ExecutionID,
		EventType:   event.EventType,
		Description: event.Description,
		Payload:     string(payload),
		CreatedAt:   event.CreatedAt,
	}
	if err := g.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domainErrors.NewInternalErrorWithCause("failed to add execution event", err)
	}
	return nil
}

func (g *GormGateway) CountActiveExecutions(ctx context.Context) (int, error) {
	var count int64
	err := g.db.WithContext(ctx).Model(&models.ExecutionModel{}).
		Where("status IN ?", []string{string(entity.StatusQueued), string(entity.StatusRunning)}).
		Count(&count).Error
	if err != nil {
		return 0, domainErrors.NewInternalErrorWithCause("failed to count active executions", err)
	}
	return int(count), nil
}

func (g *GormGateway) Reset(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	tables := []any{
		&models.UserActionModel{}, &models.ErrorLogModel{}, &models.ExecutionEventModel{},
		&models.ExecutionModel{}, &models.PipelineModel{}, &models.ConversationMessageModel{},
		&models.ConversationModel{}, &models.ConnectionModel{}, &models.UserModel{},
	}
	for _, t := range tables {
		if err := g.db.WithContext(ctx).Where("1 = 1").Delete(t).Error; err != nil {
			return domainErrors.NewInternalErrorWithCause("failed to reset store", err)
		}
	}
	return nil
}

// 转换方法

func userFromModel(m *models.UserModel) *entity.User {
	var roles []string
	_ = json.Unmarshal([]byte(m.Roles), &roles)
	var meta map[string]string
	_ = json.Unmarshal([]byte(m.Metadata), &meta)
	return &entity.User{
		ID:          m.ID,
		Username:    m.Username,
		DisplayName: m.DisplayName,
		Email:       m.Email,
		Roles:       roles,
		Metadata:    meta,
		LastLogin:   m.LastLogin,
	}
}

func connectionFromModel(m *models.ConnectionModel) *entity.Connection {
	return &entity.Connection{
		ID:             m.ID,
		UserID:         m.UserID,
		ClientIP:       m.ClientIP,
		ClientPort:     m.ClientPort,
		UserAgent:      m.UserAgent,
		Origin:         m.Origin,
		Path:           m.Path,
		Status:         entity.ConnectionStatus(m.Status),
		ConnectedAt:    m.ConnectedAt,
		DisconnectedAt: m.DisconnectedAt,
	}
}

func conversationFromModel(m *models.ConversationModel) *entity.Conversation {
	return &entity.Conversation{
		ID:           m.ID,
		UserID:       m.UserID,
		ConnectionID: m.ConnectionID,
		StartedAt:    m.StartedAt,
		EndedAt:      m.EndedAt,
	}
}

func pipelineFromModel(m *models.PipelineModel) *entity.Pipeline {
	var graph map[string]any
	_ = json.Unmarshal([]byte(m.FullGraph), &graph)
	var meta map[string]string
	_ = json.Unmarshal([]byte(m.Metadata), &meta)
	return &entity.Pipeline{
		ID:          m.ID,
		Name:        m.Name,
		FullGraph:   graph,
		Description: m.Description,
		Metadata:    meta,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func executionFromModel(m *models.ExecutionModel) *entity.Execution {
	var graph map[string]any
	_ = json.Unmarshal([]byte(m.Graph), &graph)
	var params map[string]any
	_ = json.Unmarshal([]byte(m.Params), &params)
	return &entity.Execution{
		ID:            m.ID,
		PipelineID:    m.PipelineID,
		Source:        entity.ExecutionSource(m.Source),
		Graph:         graph,
		Params:        params,
		Status:        entity.ExecutionStatus(m.Status),
		RequestedBy:   m.RequestedBy,
		OutputFile:    m.OutputFile,
		OutputContent: m.OutputContent,
		StartedAt:     m.StartedAt,
		CompletedAt:   m.CompletedAt,
	}
}
