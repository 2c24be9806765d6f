// Package dynamodb is the cloud backend: one table holding nodes, edges
// and an edge sequence counter.
//
//	node     PK=NODE#<id>    SK=METADATA              GSI2PK=TYPE#<typeId>
//	edge     PK=NODE#<from>  SK=EDGE#<len(to)>#<to>#<role>  GSI1PK=IN#<to>
//	counter  PK=COUNTER#EDGE SK=METADATA
//
// Writes are atomic per item and per transaction. Scans page through the
// table and are not snapshot-isolated across pages.
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	pkgerrors "graphstore/pkg/errors"
)

// API is the subset of the DynamoDB client the repositories use.
type API interface {
	dynamodb.QueryAPIClient
	dynamodb.ScanAPIClient
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// BreakerConfig tunes the circuit breaker around table calls.
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig trips at 80% failures over at least 5 calls.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// table wraps the client with the table name and a circuit breaker.
type table struct {
	api     API
	name    string
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

func newTable(api API, name string, cfg BreakerConfig, logger *zap.Logger) *table {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "dynamodb:" + name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		// Domain outcomes (missing items, failed conditions) are not outages.
		IsSuccessful: func(err error) bool {
			return err == nil || pkgerrors.GetAppError(err) != nil || errors.Is(err, context.Canceled)
		},
	})
	return &table{api: api, name: name, breaker: breaker, logger: logger}
}

// call runs fn through the breaker and maps breaker and SDK failures to
// AppErrors. AppErrors returned by fn pass through unchanged.
func call[T any](t *table, op string, fn func() (T, error)) (T, error) {
	out, err := t.breaker.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		var zero T
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return zero, pkgerrors.NewUnavailableError("dynamodb").
				WithCode(pkgerrors.CodeCircuitOpen).
				WithCause(err)
		case pkgerrors.GetAppError(err) != nil:
			return zero, err
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return zero, pkgerrors.NewTimeoutError(op).WithCause(err)
		default:
			t.logger.Error("dynamodb call failed", zap.String("operation", op), zap.Error(err))
			return zero, pkgerrors.NewDatabaseError(op, err)
		}
	}
	typed, ok := out.(T)
	if !ok && out != nil {
		var zero T
		return zero, pkgerrors.NewInternalError(fmt.Sprintf("unexpected result type %T", out))
	}
	return typed, nil
}
