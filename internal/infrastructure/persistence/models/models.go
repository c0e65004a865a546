// Package models holds the GORM row types for every durable entity.
package models

import (
	"time"

	"gorm.io/gorm"
)

// UserModel 用户表
type UserModel struct {
	ID          string `gorm:"primaryKey;size:64"`
	Username    string `gorm:"uniqueIndex;size:64;not null"`
	DisplayName string `gorm:"size:128"`
	Email       string `gorm:"size:128"`
	Roles       string `gorm:"type:text"` // JSON 编码的角色列表
	Metadata    string `gorm:"type:text"` // JSON 编码的元数据
	LastLogin   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   gorm.DeletedAt `gorm:"index"`
}

func (UserModel) TableName() string { return "users" }

// ConnectionModel 连接表，一条记录对应一次 websocket 会话
type ConnectionModel struct {
	ID             string `gorm:"primaryKey;size:64"`
	UserID         string `gorm:"index;size:64;not null"`
	ClientIP       string `gorm:"size:64"`
	ClientPort     int
	UserAgent      string `gorm:"size:255"`
	Origin         string `gorm:"size:255"`
	Path           string `gorm:"size:255"`
	Status         string `gorm:"size:16;not null"`
	ConnectedAt    time.Time
	DisconnectedAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (ConnectionModel) TableName() string { return "connections" }

// ConversationModel 会话表，每个连接恰好拥有一条记录
type ConversationModel struct {
	ID           string `gorm:"primaryKey;size:64"`
	UserID       string `gorm:"index;size:64;not null"`
	ConnectionID string `gorm:"uniqueIndex;size:64;not null"`
	StartedAt    time.Time
	EndedAt      *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (ConversationModel) TableName() string { return "conversations" }

// ConversationMessageModel 会话中每一帧（入/出）的追加日志
type ConversationMessageModel struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	ConversationID string `gorm:"index;size:64;not null"`
	Direction      string `gorm:"size:16;not null"`
	MessageID      int    `gorm:"not null"`
	RequestID      int
	TypeCode       int
	StatusCode     int
	Payload        string `gorm:"type:text"`
	Error          string `gorm:"type:text"`
	RecordedAt     time.Time
	CreatedAt      time.Time
}

func (ConversationMessageModel) TableName() string { return "conversation_messages" }

// PipelineModel 管道定义表，full_graph 原样保存编辑器 JSON
type PipelineModel struct {
	ID          string `gorm:"primaryKey;size:64"`
	Name        string `gorm:"size:128;not null"`
	FullGraph   string `gorm:"type:text"`
	Description string `gorm:"type:text"`
	Metadata    string `gorm:"type:text"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (PipelineModel) TableName() string { return "pipelines" }

// ExecutionModel 执行记录表
type ExecutionModel struct {
	ID            string `gorm:"primaryKey;size:64"`
	PipelineID    string `gorm:"index;size:64"`
	Source        string `gorm:"size:16;not null"`
	Graph         string `gorm:"type:text"`
	Params        string `gorm:"type:text"`
	Status        string `gorm:"index;size:16;not null"`
	RequestedBy   string `gorm:"size:64"`
	OutputFile    string `gorm:"size:255"`
	OutputContent string `gorm:"type:text"`
	StartedAt     time.Time
	CompletedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (ExecutionModel) TableName() string { return "executions" }

// ExecutionEventModel 执行事件追加日志（如终态 summary 事件）
type ExecutionEventModel struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	ExecutionID string `gorm:"index;size:64;not null"`
	EventType   string `gorm:"size:32;not null"`
	Description string `gorm:"type:text"`
	Payload     string `gorm:"type:text"`
	CreatedAt   time.Time
}

func (ExecutionEventModel) TableName() string { return "execution_events" }

// ErrorLogModel 结构化错误日志
type ErrorLogModel struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	ConversationID string `gorm:"index;size:64"`
	ExecutionID    string `gorm:"index;size:64"`
	MessageID      int
	TypeCode       int
	Severity       string `gorm:"size:16;not null"`
	Message        string `gorm:"type:text;not null"`
	Payload        string `gorm:"type:text"`
	CreatedAt      time.Time
}

func (ErrorLogModel) TableName() string { return "error_logs" }

// UserActionModel 用户操作审计日志
type UserActionModel struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	UserID    string `gorm:"index;size:64;not null"`
	Action    string `gorm:"size:64;not null"`
	Details   string `gorm:"type:text"`
	CreatedAt time.Time
}

func (UserActionModel) TableName() string { return "user_actions" }
