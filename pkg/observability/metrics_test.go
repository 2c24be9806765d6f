package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestCollectorRecordsOperations(t *testing.T) {
	c := NewCollector("graphstore")

	c.RecordOperation("get_node", 5*time.Millisecond, nil)
	c.RecordOperation("get_node", 5*time.Millisecond, errors.New("boom"))
	c.IncNodesUpserted()
	c.IncEdgesUpserted()
	c.IncEdgesUpserted()

	assert.Equal(t, 1.0, testutil.ToFloat64(c.StoreOperations.WithLabelValues("get_node", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.StoreOperations.WithLabelValues("get_node", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.NodesUpserted))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.EdgesUpserted))
}

func TestCollectorsAreIndependent(t *testing.T) {
	a := NewCollector("graphstore")
	b := NewCollector("graphstore")

	a.IncNodesUpserted()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.NodesUpserted))
}

func TestCollectorHandler(t *testing.T) {
	c := NewCollector("graphstore")
	c.ObserveHTTP(http.MethodGet, "/api/v2/nodes", http.StatusOK, time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `graphstore_http_requests_total{method="GET",route="/api/v2/nodes",status="200"} 1`)
}

type recordingCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
	err    error
}

func (r *recordingCloudWatch) PutMetricData(_ context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	r.inputs = append(r.inputs, in)
	return &cloudwatch.PutMetricDataOutput{}, r.err
}

func TestCloudWatchMetrics(t *testing.T) {
	client := &recordingCloudWatch{}
	m := NewCloudWatchMetrics("GraphStore/test", client, zaptest.NewLogger(t))

	m.RecordOperation("query_nodes", 12*time.Millisecond, nil)
	require.Len(t, client.inputs, 1)
	in := client.inputs[0]
	assert.Equal(t, "GraphStore/test", aws.ToString(in.Namespace))
	require.Len(t, in.MetricData, 2)
	assert.Equal(t, "OperationLatency", aws.ToString(in.MetricData[0].MetricName))
	assert.Equal(t, 12.0, aws.ToFloat64(in.MetricData[0].Value))
	assert.Equal(t, "OperationCount", aws.ToString(in.MetricData[1].MetricName))

	client.err = errors.New("throttled")
	assert.NotPanics(t, func() { m.IncNodesUpserted() })
	assert.Len(t, client.inputs, 2)
}

func TestTracerDisabledRunsFunction(t *testing.T) {
	var tracer *Tracer
	called := false
	err := tracer.TraceFunction(context.Background(), "op", func(context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)

	enabled := NewTracer("graphstore", true)
	want := errors.New("fail")
	assert.Equal(t, want, enabled.TraceFunction(context.Background(), "op", func(context.Context) error { return want }))
}
