package persistence

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ngoclaw/alger/internal/domain/entity"
	"github.com/ngoclaw/alger/internal/domain/repository"
	"github.com/ngoclaw/alger/internal/infrastructure/config"
	"github.com/ngoclaw/alger/internal/infrastructure/persistence/models"
)

// NewDBConnection 创建数据库连接
func NewDBConnection(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Type {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	// 配置GORM
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 自动迁移模式
	if err := autoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// autoMigrate 自动迁移数据库结构
func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.UserModel{},
		&models.ConnectionModel{},
		&models.ConversationModel{},
		&models.ConversationMessageModel{},
		&models.PipelineModel{},
		&models.ExecutionModel{},
		&models.ExecutionEventModel{},
		&models.ErrorLogModel{},
		&models.UserActionModel{},
	)
}

// DefaultAdminRoles is the role set a freshly seeded admin account gets
// (spec §4.4). Roles are stored and returned with the user data; no
// handler checks them.
var DefaultAdminRoles = []string{"admin", "operator"}

// DemoPipelineID is the fixed id the seeded reference pipeline is stored
// under, matching the id spec §8 scenario 4 executes against.
const DemoPipelineID = "demo"

// SeedDefaults creates the default admin user and the "demo" reference
// pipeline if they don't already exist, mirroring database.py's
// _seed_defaults(). It runs against the PersistenceGateway interface, not
// a concrete backend, so both the GORM and in-memory gateways seed the
// same way on first start. The admin's credential check happens at
// handshake against config, not here — a User row carries no password.
func SeedDefaults(ctx context.Context, gw repository.PersistenceGateway, adminUsername string) error {
	if _, err := gw.EnsureUser(ctx, adminUsername, entity.User{
		DisplayName: "Administrator",
		Roles:       DefaultAdminRoles,
	}); err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}

	if _, err := gw.GetPipeline(ctx, DemoPipelineID); err == nil {
		return nil
	}

	demo := entity.Pipeline{
		ID:          DemoPipelineID,
		Name:        "Demo dataset -> filter -> descriptor",
		Description: "Reference pipeline seeded on first start: a linear dataset -> filter -> descriptor chain over a synthetic dataset.",
		FullGraph: map[string]any{
			"nodes": []any{
				map[string]any{
					"id":   "source",
					"kind": "dataset",
					"params": map[string]any{
						"shape": []any{3, 32, 32},
						"seed":  7,
					},
				},
				map[string]any{
					"id":   "smoothed",
					"kind": "filter",
					"params": map[string]any{
						"kernelSize": 3,
					},
				},
				map[string]any{
					"id":     "descriptor",
					"kind":   "structural-descriptor",
					"params": map[string]any{},
				},
			},
			"edges": []any{
				map[string]any{"source": "source", "target": "smoothed"},
				map[string]any{"source": "smoothed", "target": "descriptor"},
			},
		},
	}
	if _, err := gw.UpsertPipeline(ctx, demo); err != nil {
		return fmt.Errorf("failed to seed demo pipeline: %w", err)
	}
	return nil
}
