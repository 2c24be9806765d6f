package persistence

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"graphstore/infrastructure/config"
)

func TestOpenLocalBackends(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config, string)
		want   string
	}{
		{"memory", func(c *config.Config, _ string) { c.StorageBackend = config.BackendMemory }, "memory"},
		{"badger in memory", func(c *config.Config, _ string) {
			c.StorageBackend = config.BackendBadger
			c.BadgerInMemory = true
		}, "badger"},
		{"sqlite file", func(c *config.Config, dir string) {
			c.StorageBackend = config.BackendSQLite
			c.SQLitePath = filepath.Join(dir, "nested", "graph.db")
		}, "sqlite"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Defaults()
			tt.mutate(cfg, t.TempDir())

			store, err := Open(context.Background(), cfg, nil, zaptest.NewLogger(t))
			require.NoError(t, err)
			defer store.Close()

			assert.Equal(t, tt.want, store.Name())
			assert.NoError(t, store.Ping(context.Background()))
		})
	}
}

func TestOpenDynamoDBPropagatesAWSFailure(t *testing.T) {
	cfg := config.Defaults()
	cfg.StorageBackend = config.BackendDynamoDB

	_, err := Open(context.Background(), cfg, func(context.Context) (aws.Config, error) {
		return aws.Config{}, errors.New("no credentials")
	}, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no credentials")
}

func TestOpenUnknownBackend(t *testing.T) {
	cfg := config.Defaults()
	cfg.StorageBackend = "cassandra"

	_, err := Open(context.Background(), cfg, nil, zaptest.NewLogger(t))
	assert.Error(t, err)
}
