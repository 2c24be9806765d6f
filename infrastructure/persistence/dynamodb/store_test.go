package dynamodb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"graphstore/domain/core/entities"
	"graphstore/domain/core/specifications"
	"graphstore/domain/core/valueobjects"
	pkgerrors "graphstore/pkg/errors"
)

// stubAPI answers each call with the matching func field.
type stubAPI struct {
	getItem    func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error)
	updateItem func(*dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error)
	transact   func(*dynamodb.TransactWriteItemsInput) (*dynamodb.TransactWriteItemsOutput, error)
	query      func(*dynamodb.QueryInput) (*dynamodb.QueryOutput, error)
	scan       func(*dynamodb.ScanInput) (*dynamodb.ScanOutput, error)
	describe   func(*dynamodb.DescribeTableInput) (*dynamodb.DescribeTableOutput, error)
}

func (s *stubAPI) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return s.getItem(in)
}

func (s *stubAPI) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	return s.updateItem(in)
}

func (s *stubAPI) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	return s.transact(in)
}

func (s *stubAPI) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	return s.query(in)
}

func (s *stubAPI) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	return s.scan(in)
}

func (s *stubAPI) DescribeTable(_ context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return s.describe(in)
}

func newTestStore(t *testing.T, api *stubAPI) *Store {
	return New(api, "graph", DefaultBreakerConfig(), zaptest.NewLogger(t))
}

func keyString(t *testing.T, key map[string]types.AttributeValue, name string) string {
	t.Helper()
	v, ok := key[name].(*types.AttributeValueMemberS)
	require.True(t, ok, "attribute %s is not a string", name)
	return v.Value
}

func edgeAttributes(t *testing.T, from, to, role string, seq int64) map[string]types.AttributeValue {
	t.Helper()
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Format(timeLayout)
	av, err := attributevalue.MarshalMap(edgeItem{
		PK:         nodePK(from),
		SK:         edgeSK(to, role),
		GSI1PK:     incomingPK(to),
		GSI1SK:     incomingSK(from, role),
		EntityType: entityEdge,
		FromID:     from,
		ToID:       to,
		Role:       role,
		Weight:     1,
		Seq:        seq,
		CreatedAt:  ts,
		UpdatedAt:  ts,
	})
	require.NoError(t, err)
	return av
}

func TestSortKeysAreUnambiguous(t *testing.T) {
	assert.NotEqual(t, edgeSK("a#b", "c"), edgeSK("a", "b#c"))
	assert.NotEqual(t, incomingSK("x#1", "r"), incomingSK("x", "1#r"))
	assert.Contains(t, edgeSK("abc", "rel"), pairSKPrefix("abc"))
	assert.NotContains(t, edgeSK("abcd", "rel"), pairSKPrefix("abc"))
}

func TestNodeItemRoundTrip(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 123, time.UTC)
	node := &entities.Node{
		ID:        "n1",
		TypeID:    "codex.concept",
		State:     "ice",
		Locale:    "en",
		Title:     "<b>Title</b>",
		Meta:      valueobjects.Meta{"k": []byte(`{"a":1}`)},
		Content:   &valueobjects.Content{MediaType: "text/plain", Inline: []byte(`"hi"`)},
		Version:   2,
		CreatedAt: now,
		UpdatedAt: now,
	}

	item, err := nodeToItem(node)
	require.NoError(t, err)
	assert.Equal(t, "NODE#n1", item.PK)
	assert.Equal(t, "TYPE#codex.concept", item.GSI2PK)
	assert.Contains(t, item.Meta, `{"a":1}`)

	av, err := attributevalue.MarshalMap(item)
	require.NoError(t, err)
	got, err := unmarshalNode(av)
	require.NoError(t, err)
	assert.Equal(t, node.Title, got.Title)
	assert.Equal(t, node.Version, got.Version)
	assert.JSONEq(t, `{"a":1}`, string(got.Meta["k"]))
	assert.Equal(t, "text/plain", got.Content.MediaType)
	assert.True(t, now.Equal(got.CreatedAt))
}

func TestNodePutUsesAtomicUpdate(t *testing.T) {
	api := &stubAPI{
		updateItem: func(in *dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
			assert.Equal(t, "NODE#n1", keyString(t, in.Key, "PK"))
			assert.Equal(t, skMetadata, keyString(t, in.Key, "SK"))
			assert.Contains(t, aws.ToString(in.UpdateExpression), "ADD")
			assert.Equal(t, types.ReturnValueAllNew, in.ReturnValues)

			item := nodeItem{
				PK: nodePK("n1"), SK: skMetadata, EntityType: entityNode,
				NodeID: "n1", TypeID: "t", State: "ice", Locale: "en", Title: "one",
				Version:   1,
				CreatedAt: "2024-01-01T00:00:00Z",
				UpdatedAt: "2024-01-01T00:00:00Z",
			}
			av, err := attributevalue.MarshalMap(item)
			require.NoError(t, err)
			return &dynamodb.UpdateItemOutput{Attributes: av}, nil
		},
	}
	store := newTestStore(t, api)

	got, err := store.Nodes().Put(context.Background(), &entities.Node{ID: "n1", TypeID: "t", State: "ice", Locale: "en", Title: "one"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, "one", got.Title)
}

func TestNodeGetMissing(t *testing.T) {
	api := &stubAPI{
		getItem: func(in *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
			assert.True(t, aws.ToBool(in.ConsistentRead))
			return &dynamodb.GetItemOutput{}, nil
		},
	}
	store := newTestStore(t, api)

	_, err := store.Nodes().Get(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, pkgerrors.ErrNodeNotFound))
}

func TestEdgePutDanglingReference(t *testing.T) {
	tests := []struct {
		name     string
		from, to string
		reasons  []string
		missing  []interface{}
	}{
		{"missing source", "A", "B", []string{"ConditionalCheckFailed", "None", "None"}, []interface{}{"A"}},
		{"missing target", "A", "B", []string{"None", "ConditionalCheckFailed", "None"}, []interface{}{"B"}},
		{"both missing", "A", "B", []string{"ConditionalCheckFailed", "ConditionalCheckFailed", "None"}, []interface{}{"A", "B"}},
		{"missing self-loop", "A", "A", []string{"ConditionalCheckFailed", "None"}, []interface{}{"A"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &stubAPI{
				getItem: func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
					return &dynamodb.GetItemOutput{}, nil
				},
				updateItem: func(in *dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
					assert.Equal(t, "COUNTER#EDGE", keyString(t, in.Key, "PK"))
					return &dynamodb.UpdateItemOutput{Attributes: map[string]types.AttributeValue{
						"Value": &types.AttributeValueMemberN{Value: "7"},
					}}, nil
				},
				transact: func(in *dynamodb.TransactWriteItemsInput) (*dynamodb.TransactWriteItemsOutput, error) {
					assert.Len(t, in.TransactItems, len(tt.reasons))
					reasons := make([]types.CancellationReason, len(tt.reasons))
					for i, code := range tt.reasons {
						reasons[i] = types.CancellationReason{Code: aws.String(code)}
					}
					return nil, &types.TransactionCanceledException{CancellationReasons: reasons}
				},
			}
			store := newTestStore(t, api)

			_, err := store.Edges().Put(context.Background(), &entities.Edge{FromID: tt.from, ToID: tt.to, Role: "rel"})
			require.Error(t, err)
			appErr := pkgerrors.GetAppError(err)
			require.NotNil(t, appErr)
			assert.Equal(t, pkgerrors.ErrorTypeDanglingReference, appErr.Type)
			assert.Equal(t, tt.missing, appErr.Details["missing"])
		})
	}
}

func TestEdgePutRetriesTransactionConflict(t *testing.T) {
	attempts := 0
	api := &stubAPI{
		getItem: func(in *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
			if attempts == 0 {
				return &dynamodb.GetItemOutput{}, nil
			}
			return &dynamodb.GetItemOutput{Item: edgeAttributes(t, "A", "B", "rel", 3)}, nil
		},
		updateItem: func(*dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
			return &dynamodb.UpdateItemOutput{Attributes: map[string]types.AttributeValue{
				"Value": &types.AttributeValueMemberN{Value: "3"},
			}}, nil
		},
		transact: func(*dynamodb.TransactWriteItemsInput) (*dynamodb.TransactWriteItemsOutput, error) {
			attempts++
			if attempts < 3 {
				return nil, &types.TransactionCanceledException{CancellationReasons: []types.CancellationReason{
					{Code: aws.String("None")},
					{Code: aws.String("None")},
					{Code: aws.String("TransactionConflict")},
				}}
			}
			return &dynamodb.TransactWriteItemsOutput{}, nil
		},
	}
	store := newTestStore(t, api)

	got, err := store.Edges().Put(context.Background(), &entities.Edge{FromID: "A", ToID: "B", Role: "rel", Weight: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, int64(3), got.Sequence)
}

func TestEdgeGetPicksFirstSequence(t *testing.T) {
	api := &stubAPI{
		query: func(in *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
			assert.True(t, aws.ToBool(in.ConsistentRead))
			return &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{
				edgeAttributes(t, "A", "B", "zeta", 9),
				edgeAttributes(t, "A", "B", "alpha", 4),
				edgeAttributes(t, "A", "B", "mid", 6),
			}}, nil
		},
	}
	store := newTestStore(t, api)

	got, err := store.Edges().Get(context.Background(), "A", "B")
	require.NoError(t, err)
	assert.Equal(t, "alpha", got.Role)
}

func TestEdgeScanBothSkipsSelfLoopOnIncoming(t *testing.T) {
	api := &stubAPI{
		query: func(in *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
			if aws.ToString(in.IndexName) == indexIncoming {
				return &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{
					edgeAttributes(t, "A", "A", "self", 1),
					edgeAttributes(t, "C", "A", "in", 3),
				}}, nil
			}
			return &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{
				edgeAttributes(t, "A", "A", "self", 1),
				edgeAttributes(t, "A", "B", "out", 2),
			}}, nil
		},
	}
	store := newTestStore(t, api)

	var roles []string
	for e, err := range store.Edges().ScanByNode(context.Background(), "A", entities.DirectionBoth) {
		require.NoError(t, err)
		roles = append(roles, e.Role)
	}
	assert.ElementsMatch(t, []string{"self", "out", "in"}, roles)

	n, err := store.Edges().Count(context.Background(), specifications.EdgeSpec{NodeID: "A", Role: "in"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestBreakerOpensOnRepeatedFailures(t *testing.T) {
	calls := 0
	api := &stubAPI{
		getItem: func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
			calls++
			return nil, errors.New("throttled")
		},
	}
	store := newTestStore(t, api)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.Nodes().Get(ctx, "n")
		require.Error(t, err)
		assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeDatabase))
	}

	_, err := store.Nodes().Get(ctx, "n")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsUnavailable(err))
	assert.Equal(t, 5, calls)
}

func TestPing(t *testing.T) {
	api := &stubAPI{
		describe: func(in *dynamodb.DescribeTableInput) (*dynamodb.DescribeTableOutput, error) {
			assert.Equal(t, "graph", aws.ToString(in.TableName))
			return &dynamodb.DescribeTableOutput{}, nil
		},
	}
	require.NoError(t, newTestStore(t, api).Ping(context.Background()))
}
