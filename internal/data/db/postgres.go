package db

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	types "github.com/openmesh-labs/identityhub/internal/domain"
	"github.com/openmesh-labs/identityhub/internal/pkg/logger"
	"github.com/openmesh-labs/identityhub/internal/utils"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(logg *logger.Logger) (*PostgresService, error) {
	serviceLog := logg.With("service", "PostgresService")

	postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", logg)
	postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", logg)
	postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", logg)
	postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", logg)
	postgresName := utils.GetEnv("POSTGRES_NAME", "identityhub", logg)

	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		postgresUser,
		postgresPassword,
		postgresHost,
		postgresPort,
		postgresName,
	)

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		return nil, fmt.Errorf("failed to enable uuid-ossp extension: %w", err)
	}

	return &PostgresService{db: db, log: serviceLog}, nil
}

func (s *PostgresService) DB() *gorm.DB { return s.db }

func (s *PostgresService) AutoMigrateAll() error {
	if err := s.db.AutoMigrate(
		&types.Entity{},
		&types.Identity{},
		&types.Affiliation{},
		&types.Activity{},
		&types.SegmentMembership{},
		&types.MergeAction{},
		&types.NoMergeRecord{},
		&types.AuditLog{},
	); err != nil {
		return err
	}
	return EnsureIndexes(s.db)
}

// EnsureIndexes creates the constraints AutoMigrate cannot express.
//
// The partial unique index on merge_action is the concurrency guard for
// the whole engine: it serializes operations on an unordered entity pair
// across service instances, so a lost insertion race surfaces as a
// unique-constraint violation instead of a second IN_PROGRESS row.
func EnsureIndexes(db *gorm.DB) error {
	stmts := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS uix_merge_action_pair_in_progress
			ON merge_action (least(primary_id, secondary_id), greatest(primary_id, secondary_id))
			WHERE state = 'IN_PROGRESS'`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uix_identity_verified_tuple
			ON entity_identity (tenant_id, platform, type, value)
			WHERE verified`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uix_no_merge_pair
			ON entity_no_merge (least(entity_id, no_merge_id), greatest(entity_id, no_merge_id))`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("ensure indexes: %w", err)
		}
	}
	return nil
}
