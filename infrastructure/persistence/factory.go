// Package persistence selects and opens the configured storage backend.
package persistence

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"

	"graphstore/application/ports"
	"graphstore/infrastructure/config"
	"graphstore/infrastructure/persistence/badger"
	"graphstore/infrastructure/persistence/dynamodb"
	"graphstore/infrastructure/persistence/memory"
	"graphstore/infrastructure/persistence/sqlite"
)

// AWSConfigLoader resolves AWS credentials on demand, so local backends
// never touch the AWS credential chain.
type AWSConfigLoader func(ctx context.Context) (aws.Config, error)

// Open builds the backend named by cfg.StorageBackend. The caller owns the
// returned store and must Close it.
func Open(ctx context.Context, cfg *config.Config, loadAWS AWSConfigLoader, logger *zap.Logger) (ports.Store, error) {
	logger = logger.With(zap.String("backend", cfg.StorageBackend))

	switch cfg.StorageBackend {
	case config.BackendMemory:
		return memory.NewStore(logger), nil

	case config.BackendBadger:
		bcfg := badger.DefaultConfig(cfg.BadgerPath)
		if cfg.BadgerInMemory {
			bcfg = badger.InMemoryConfig()
		}
		bcfg.Logger = logger
		store, err := badger.Open(bcfg)
		if err != nil {
			return nil, err
		}
		return store, nil

	case config.BackendSQLite:
		if cfg.SQLitePath != sqlite.MemoryPath {
			if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite directory: %w", err)
			}
		}
		store, err := sqlite.Open(ctx, sqlite.Config{Path: cfg.SQLitePath, Logger: logger})
		if err != nil {
			return nil, err
		}
		return store, nil

	case config.BackendDynamoDB:
		if loadAWS == nil {
			return nil, fmt.Errorf("dynamodb backend requires AWS configuration")
		}
		awsCfg, err := loadAWS(ctx)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		client := awsdynamodb.NewFromConfig(awsCfg, func(o *awsdynamodb.Options) {
			if cfg.DynamoDBEndpoint != "" {
				o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
			}
		})
		return dynamodb.New(client, cfg.DynamoDBTable, dynamodb.DefaultBreakerConfig(), logger), nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
