package observability

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"
)

const putMetricTimeout = 2 * time.Second

// MetricsAPI is the part of the CloudWatch client used here.
type MetricsAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchMetrics handles application metrics for Lambda deployments,
// where there is no scrape endpoint.
type CloudWatchMetrics struct {
	namespace string
	client    MetricsAPI
	logger    *zap.Logger
}

// NewCloudWatchMetrics creates a new metrics instance
func NewCloudWatchMetrics(namespace string, client MetricsAPI, logger *zap.Logger) *CloudWatchMetrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CloudWatchMetrics{
		namespace: namespace,
		client:    client,
		logger:    logger,
	}
}

// RecordOperation sends OperationLatency and OperationCount for op.
func (m *CloudWatchMetrics) RecordOperation(op string, duration time.Duration, err error) {
	now := aws.Time(time.Now())
	dimensions := []types.Dimension{
		{Name: aws.String("Operation"), Value: aws.String(op)},
		{Name: aws.String("Status"), Value: aws.String(statusLabel(err))},
	}
	m.put([]types.MetricDatum{
		{
			MetricName: aws.String("OperationLatency"),
			Dimensions: dimensions,
			Value:      aws.Float64(float64(duration.Milliseconds())),
			Unit:       types.StandardUnitMilliseconds,
			Timestamp:  now,
		},
		{
			MetricName: aws.String("OperationCount"),
			Dimensions: dimensions,
			Value:      aws.Float64(1),
			Unit:       types.StandardUnitCount,
			Timestamp:  now,
		},
	})
}

func (m *CloudWatchMetrics) IncNodesUpserted() { m.count("NodesUpserted") }
func (m *CloudWatchMetrics) IncEdgesUpserted() { m.count("EdgesUpserted") }

func (m *CloudWatchMetrics) count(name string) {
	m.put([]types.MetricDatum{{
		MetricName: aws.String(name),
		Value:      aws.Float64(1),
		Unit:       types.StandardUnitCount,
		Timestamp:  aws.Time(time.Now()),
	}})
}

// put never fails the caller; delivery errors are only logged.
func (m *CloudWatchMetrics) put(data []types.MetricDatum) {
	if m.client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), putMetricTimeout)
	defer cancel()

	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	})
	if err != nil {
		m.logger.Warn("failed to send metrics", zap.Error(err))
	}
}
