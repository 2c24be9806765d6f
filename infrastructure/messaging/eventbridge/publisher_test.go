package eventbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"graphstore/domain/core/entities"
	"graphstore/domain/events"
)

type stubEventBridge struct {
	calls  []*eventbridge.PutEventsInput
	output func(*eventbridge.PutEventsInput) (*eventbridge.PutEventsOutput, error)
}

func (s *stubEventBridge) PutEvents(_ context.Context, in *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	s.calls = append(s.calls, in)
	if s.output != nil {
		return s.output(in)
	}
	return &eventbridge.PutEventsOutput{}, nil
}

func nodeEvents(n int) []events.DomainEvent {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]events.DomainEvent, n)
	for i := range out {
		out[i] = events.NewNodeUpserted(&entities.Node{ID: fmt.Sprintf("n%d", i), TypeID: "t", Version: 1}, ts)
	}
	return out
}

func TestPublishBatchChunksByTen(t *testing.T) {
	client := &stubEventBridge{}
	p := NewPublisher(client, "bus", zaptest.NewLogger(t))

	require.NoError(t, p.PublishBatch(context.Background(), nodeEvents(23)))

	require.Len(t, client.calls, 3)
	assert.Len(t, client.calls[0].Entries, 10)
	assert.Len(t, client.calls[1].Entries, 10)
	assert.Len(t, client.calls[2].Entries, 3)

	entry := client.calls[0].Entries[0]
	assert.Equal(t, "bus", aws.ToString(entry.EventBusName))
	assert.Equal(t, Source, aws.ToString(entry.Source))
	assert.Equal(t, events.EventTypeNodeUpserted, aws.ToString(entry.DetailType))

	var detail map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(entry.Detail)), &detail))
	assert.Equal(t, "n0", detail["node_id"])
}

func TestPublishReportsFailedEntries(t *testing.T) {
	client := &stubEventBridge{
		output: func(in *eventbridge.PutEventsInput) (*eventbridge.PutEventsOutput, error) {
			return &eventbridge.PutEventsOutput{
				FailedEntryCount: 1,
				Entries: []types.PutEventsResultEntry{
					{ErrorCode: aws.String("InternalFailure"), ErrorMessage: aws.String("try again")},
				},
			}, nil
		},
	}
	p := NewPublisher(client, "bus", zaptest.NewLogger(t))

	err := p.Publish(context.Background(), nodeEvents(1)[0])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 events failed")
}

func TestPublishWrapsClientError(t *testing.T) {
	client := &stubEventBridge{
		output: func(*eventbridge.PutEventsInput) (*eventbridge.PutEventsOutput, error) {
			return nil, errors.New("network down")
		},
	}
	p := NewPublisher(client, "bus", zaptest.NewLogger(t))

	err := p.Publish(context.Background(), nodeEvents(1)[0])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network down")
}

func TestPublishBatchEmpty(t *testing.T) {
	client := &stubEventBridge{}
	require.NoError(t, NewPublisher(client, "bus", nil).PublishBatch(context.Background(), nil))
	assert.Empty(t, client.calls)
}
