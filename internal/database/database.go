package database

import (
	"context"
	"fmt"
	"time"

	"github.com/qmsops/capa-gin/internal/config"
	"github.com/qmsops/capa-gin/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// BuildDSN 构建 PostgreSQL DSN
func BuildDSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
}

// Connect 连接数据库并配置连接池
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(BuildDSN(cfg)), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	maxIdle := cfg.MaxIdleConns
	if maxIdle == 0 {
		maxIdle = 10
	}
	maxOpen := cfg.MaxOpenConns
	if maxOpen == 0 {
		maxOpen = 100
	}
	maxLifetime := cfg.ConnMaxLifetime
	if maxLifetime == 0 {
		maxLifetime = 3600
	}
	maxIdleTime := cfg.ConnMaxIdleTime
	if maxIdleTime == 0 {
		maxIdleTime = 600
	}

	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetConnMaxLifetime(time.Duration(maxLifetime) * time.Second)
	sqlDB.SetConnMaxIdleTime(time.Duration(maxIdleTime) * time.Second)

	return db, nil
}

// ConnectWithRetry 带指数退避重试的数据库连接
func ConnectWithRetry(cfg config.DatabaseConfig, maxRetries int, retryInterval time.Duration) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	for i := 0; i < maxRetries; i++ {
		db, err = Connect(cfg)
		if err == nil {
			return db, nil
		}
		if i < maxRetries-1 {
			time.Sleep(retryInterval)
			retryInterval *= 2
		}
	}

	return nil, fmt.Errorf("failed to connect database after %d retries: %w", maxRetries, err)
}

// Migrate 执行数据库迁移
func Migrate(db *gorm.DB) error {
	dialector := db.Dialector.Name()

	// SQLite 不支持 jsonb,需要手动建表(jsonb 字段用 TEXT 替代)
	if dialector == "sqlite" || dialector == "sqlite3" {
		if err := createSQLiteTables(db); err != nil {
			return fmt.Errorf("failed to create SQLite tables: %w", err)
		}
	} else {
		if err := db.AutoMigrate(
			&model.WorkflowDefinitionModel{},
			&model.WorkflowInstanceModel{},
			&model.StepAssignmentModel{},
			&model.WorkflowTimelineModel{},
			&model.WorkflowDelegationModel{},
			&model.RolePermissionModel{},
			&model.UserModel{},
		); err != nil {
			return fmt.Errorf("failed to auto migrate: %w", err)
		}
	}

	if err := CreateIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// createSQLiteTables 为 SQLite 手动创建表
func createSQLiteTables(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS workflow_definitions (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			entity_type VARCHAR(32) NOT NULL,
			is_active BOOLEAN NOT NULL,
			data TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			created_by VARCHAR(64)
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create workflow_definitions table: %w", err)
	}

	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS workflow_instances (
			id VARCHAR(64) PRIMARY KEY,
			workflow_definition_id VARCHAR(64) NOT NULL,
			entity_type VARCHAR(32) NOT NULL,
			entity_id VARCHAR(64) NOT NULL,
			current_step_id VARCHAR(64) NOT NULL,
			status VARCHAR(16) NOT NULL,
			entity_metadata TEXT,
			started_at DATETIME NOT NULL,
			completed_at DATETIME,
			created_by VARCHAR(64)
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create workflow_instances table: %w", err)
	}

	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS step_assignments (
			id VARCHAR(64) PRIMARY KEY,
			workflow_instance_id VARCHAR(64) NOT NULL,
			step_id VARCHAR(64) NOT NULL,
			assignment_type VARCHAR(16) NOT NULL,
			assigned_role VARCHAR(64),
			assigned_user_id VARCHAR(64),
			status VARCHAR(32) NOT NULL,
			deadline DATETIME,
			action VARCHAR(32),
			comment TEXT,
			completed_by VARCHAR(64),
			completed_at DATETIME,
			created_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create step_assignments table: %w", err)
	}

	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS workflow_timeline (
			id VARCHAR(64) PRIMARY KEY,
			workflow_instance_id VARCHAR(64) NOT NULL,
			step_id VARCHAR(64) NOT NULL,
			action VARCHAR(32) NOT NULL,
			performed_by VARCHAR(64) NOT NULL,
			comment TEXT,
			created_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create workflow_timeline table: %w", err)
	}

	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS workflow_delegations (
			id VARCHAR(64) PRIMARY KEY,
			from_user_id VARCHAR(64) NOT NULL,
			to_user_id VARCHAR(64) NOT NULL,
			role VARCHAR(64) NOT NULL,
			entity_type VARCHAR(32),
			start_date DATETIME NOT NULL,
			end_date DATETIME NOT NULL,
			reason TEXT,
			is_active BOOLEAN NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create workflow_delegations table: %w", err)
	}

	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS role_permissions (
			id VARCHAR(64) PRIMARY KEY,
			role VARCHAR(64) NOT NULL,
			resource VARCHAR(64) NOT NULL,
			action VARCHAR(64) NOT NULL,
			constraints TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create role_permissions table: %w", err)
	}

	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(64) PRIMARY KEY,
			username VARCHAR(255) NOT NULL,
			email VARCHAR(255),
			department_id VARCHAR(64),
			roles TEXT,
			is_active BOOLEAN NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}

	return nil
}

// CreateIndexes 创建数据库索引
func CreateIndexes(db *gorm.DB) error {
	dialector := db.Dialector.Name()

	// workflow_definitions 表索引
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_definitions_entity_type ON workflow_definitions(entity_type, is_active)").Error; err != nil {
		return fmt.Errorf("failed to create idx_definitions_entity_type: %w", err)
	}

	// workflow_instances 表索引
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_instances_entity ON workflow_instances(entity_type, entity_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_instances_entity: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_instances_status ON workflow_instances(status)").Error; err != nil {
		return fmt.Errorf("failed to create idx_instances_status: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_instances_definition ON workflow_instances(workflow_definition_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_instances_definition: %w", err)
	}

	// step_assignments 表索引
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_assignments_instance ON step_assignments(workflow_instance_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_assignments_instance: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_assignments_user_status ON step_assignments(assigned_user_id, status)").Error; err != nil {
		return fmt.Errorf("failed to create idx_assignments_user_status: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_assignments_role_status ON step_assignments(assigned_role, status)").Error; err != nil {
		return fmt.Errorf("failed to create idx_assignments_role_status: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_assignments_deadline ON step_assignments(deadline) ").Error; err != nil {
		return fmt.Errorf("failed to create idx_assignments_deadline: %w", err)
	}
	// 部分唯一索引,在数据库层兜底每个实例同一时刻至多一个待处理指派
	if err := db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_assignments_one_pending ON step_assignments(workflow_instance_id) WHERE status = 'pending'").Error; err != nil {
		return fmt.Errorf("failed to create idx_assignments_one_pending: %w", err)
	}

	// workflow_timeline 表索引
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_timeline_instance ON workflow_timeline(workflow_instance_id, created_at)").Error; err != nil {
		return fmt.Errorf("failed to create idx_timeline_instance: %w", err)
	}

	// workflow_delegations 表索引
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_delegations_from_user ON workflow_delegations(from_user_id, role, is_active)").Error; err != nil {
		return fmt.Errorf("failed to create idx_delegations_from_user: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_delegations_window ON workflow_delegations(start_date, end_date)").Error; err != nil {
		return fmt.Errorf("failed to create idx_delegations_window: %w", err)
	}

	// role_permissions 表索引
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_role_permissions_lookup ON role_permissions(role, resource, action)").Error; err != nil {
		return fmt.Errorf("failed to create idx_role_permissions_lookup: %w", err)
	}

	// users 表索引
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_users_active ON users(is_active)").Error; err != nil {
		return fmt.Errorf("failed to create idx_users_active: %w", err)
	}

	// PostgreSQL 特定的 GIN 索引
	if dialector == "postgres" {
		if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_definitions_data_gin ON workflow_definitions USING GIN (data)").Error; err != nil {
			return fmt.Errorf("failed to create idx_definitions_data_gin: %w", err)
		}
		if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_instances_metadata_gin ON workflow_instances USING GIN (entity_metadata)").Error; err != nil {
			return fmt.Errorf("failed to create idx_instances_metadata_gin: %w", err)
		}
	}

	return nil
}

// CheckHealth 检查数据库连接健康状态
func CheckHealth(db *gorm.DB) bool {
	if db == nil {
		return false
	}

	sqlDB, err := db.DB()
	if err != nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return sqlDB.PingContext(ctx) == nil
}

// Reconnect 关闭旧连接并重新连接
func Reconnect(cfg config.DatabaseConfig, oldDB *gorm.DB) (*gorm.DB, error) {
	if oldDB != nil {
		if sqlDB, err := oldDB.DB(); err == nil {
			sqlDB.Close()
		}
	}
	return Connect(cfg)
}
