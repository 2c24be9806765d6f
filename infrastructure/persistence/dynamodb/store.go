package dynamodb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"

	"graphstore/application/ports"
)

// BackendName identifies this backend in stats.
const BackendName = "dynamodb"

// Store serves both repositories from one table.
type Store struct {
	table *table
	nodes *NodeRepository
	edges *EdgeRepository
}

// New builds a store over an existing table. The table must define the
// PK/SK primary key plus the GSI1 and GSI2 indexes.
func New(api API, tableName string, breaker BreakerConfig, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := newTable(api, tableName, breaker, logger)
	logger.Info("dynamodb store ready", zap.String("table", tableName))
	return &Store{
		table: t,
		nodes: &NodeRepository{table: t},
		edges: &EdgeRepository{table: t},
	}
}

func (s *Store) Nodes() ports.NodeRepository { return s.nodes }
func (s *Store) Edges() ports.EdgeRepository { return s.edges }
func (s *Store) Name() string                { return BackendName }

// Ping describes the table through the breaker.
func (s *Store) Ping(ctx context.Context) error {
	_, err := call(s.table, "dynamodb.ping", func() (*dynamodb.DescribeTableOutput, error) {
		return s.table.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{
			TableName: aws.String(s.table.name),
		})
	})
	return err
}

// Close is a no-op; the SDK client holds no resources that need release.
func (s *Store) Close() error { return nil }
