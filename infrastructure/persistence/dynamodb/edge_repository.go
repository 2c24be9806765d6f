package dynamodb

import (
	"context"
	"errors"
	"iter"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"graphstore/domain/core/entities"
	"graphstore/domain/core/specifications"
	"graphstore/domain/core/validators"
	pkgerrors "graphstore/pkg/errors"
	"graphstore/pkg/utils"
)

const (
	maxTransactRetries = 5

	codeTransactConflict = "TRANSACTION_CONFLICT"
)

type EdgeRepository struct {
	table *table
}

// Put writes the edge in one transaction with a condition check on each
// endpoint node, so a committed edge never references a missing node.
func (r *EdgeRepository) Put(ctx context.Context, edge *entities.Edge) (*entities.Edge, error) {
	if err := validators.ValidateEdgeRecord(edge); err != nil {
		return nil, err
	}
	record, err := edge.Normalized()
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}
	key := record.Key()

	seq, err := r.sequenceFor(ctx, key)
	if err != nil {
		return nil, err
	}

	input, err := r.transaction(record, seq)
	if err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		_, err = call(r.table, "dynamodb.put_edge", func() (*dynamodb.TransactWriteItemsOutput, error) {
			out, err := r.table.api.TransactWriteItems(ctx, input)
			if err != nil {
				return nil, cancellationError(err, endpoints(record))
			}
			return out, nil
		})
		if err == nil {
			break
		}
		var appErr *pkgerrors.AppError
		if !errors.As(err, &appErr) || appErr.Code != codeTransactConflict || attempt >= maxTransactRetries {
			return nil, err
		}
		r.table.logger.Debug("edge transaction conflict, retrying",
			zap.String("fromID", key.FromID),
			zap.String("toID", key.ToID),
			zap.Int("attempt", attempt))
	}

	stored, err := r.GetByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	r.table.logger.Debug("edge stored",
		zap.String("fromID", key.FromID),
		zap.String("toID", key.ToID),
		zap.String("role", key.Role))
	return stored, nil
}

// sequenceFor returns the stored sequence of an existing edge, or
// allocates the next value of the table counter.
func (r *EdgeRepository) sequenceFor(ctx context.Context, key entities.EdgeKey) (int64, error) {
	existing, err := r.GetByKey(ctx, key)
	switch {
	case err == nil:
		return existing.Sequence, nil
	case !pkgerrors.IsNotFound(err):
		return 0, err
	}

	update := expression.Add(expression.Name("Value"), expression.Value(1))
	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return 0, pkgerrors.NewInternalError("build sequence update").WithCause(err)
	}
	out, err := call(r.table, "dynamodb.next_sequence", func() (*dynamodb.UpdateItemOutput, error) {
		return r.table.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 aws.String(r.table.name),
			Key:                       counterKey,
			UpdateExpression:          expr.Update(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ReturnValues:              types.ReturnValueUpdatedNew,
		})
	})
	if err != nil {
		return 0, err
	}
	var counter struct {
		Value int64 `dynamodbav:"Value"`
	}
	if err := attributevalue.UnmarshalMap(out.Attributes, &counter); err != nil {
		return 0, pkgerrors.NewDatabaseError("dynamodb.next_sequence", err)
	}
	return counter.Value, nil
}

func (r *EdgeRepository) transaction(e *entities.Edge, seq int64) (*dynamodb.TransactWriteItemsInput, error) {
	meta, err := encodeRaw(e.Meta, e.Meta == nil)
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}
	now := utils.Now().Format(timeLayout)

	update := expression.
		Set(expression.Name("GSI1PK"), expression.Value(incomingPK(e.ToID))).
		Set(expression.Name("GSI1SK"), expression.Value(incomingSK(e.FromID, e.Role))).
		Set(expression.Name("EntityType"), expression.Value(entityEdge)).
		Set(expression.Name("FromID"), expression.Value(e.FromID)).
		Set(expression.Name("ToID"), expression.Value(e.ToID)).
		Set(expression.Name("Role"), expression.Value(e.Role)).
		Set(expression.Name("Weight"), expression.Value(e.Weight)).
		Set(expression.Name("UpdatedAt"), expression.Value(now)).
		Set(expression.Name("CreatedAt"),
			expression.IfNotExists(expression.Name("CreatedAt"), expression.Value(now))).
		Set(expression.Name("Seq"),
			expression.IfNotExists(expression.Name("Seq"), expression.Value(seq)))
	update = setOrRemove(update, "Meta", meta)

	updateExpr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return nil, pkgerrors.NewInternalError("build edge update").WithCause(err)
	}
	checkExpr, err := expression.NewBuilder().
		WithCondition(expression.AttributeExists(expression.Name("PK"))).
		Build()
	if err != nil {
		return nil, pkgerrors.NewInternalError("build endpoint condition").WithCause(err)
	}

	var items []types.TransactWriteItem
	for _, id := range endpoints(e) {
		items = append(items, types.TransactWriteItem{
			ConditionCheck: &types.ConditionCheck{
				TableName:                aws.String(r.table.name),
				Key:                      itemKey(nodePK(id), skMetadata),
				ConditionExpression:      checkExpr.Condition(),
				ExpressionAttributeNames: checkExpr.Names(),
			},
		})
	}
	items = append(items, types.TransactWriteItem{
		Update: &types.Update{
			TableName:                 aws.String(r.table.name),
			Key:                       itemKey(nodePK(e.FromID), edgeSK(e.ToID, e.Role)),
			UpdateExpression:          updateExpr.Update(),
			ExpressionAttributeNames:  updateExpr.Names(),
			ExpressionAttributeValues: updateExpr.Values(),
		},
	})
	return &dynamodb.TransactWriteItemsInput{TransactItems: items}, nil
}

// cancellationError maps a cancelled transaction to domain errors. The
// first len(ids) reasons belong to the endpoint condition checks.
func cancellationError(err error, ids []string) error {
	var canceled *types.TransactionCanceledException
	if !errors.As(err, &canceled) {
		return err
	}
	var missing []string
	conflict := false
	for i, reason := range canceled.CancellationReasons {
		code := aws.ToString(reason.Code)
		switch {
		case code == "ConditionalCheckFailed" && i < len(ids):
			missing = append(missing, ids[i])
		case code == "TransactionConflict":
			conflict = true
		}
	}
	if len(missing) > 0 {
		return pkgerrors.NewDanglingReferenceError(missing...)
	}
	if conflict {
		return pkgerrors.NewConflictError("edge write conflicted with a concurrent transaction").
			WithCode(codeTransactConflict).
			WithCause(err)
	}
	return err
}

func (r *EdgeRepository) Get(ctx context.Context, fromID, toID string) (*entities.Edge, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(nodePK(fromID))).
		And(expression.Key("SK").BeginsWith(pairSKPrefix(toID)))

	var first *entities.Edge
	err := r.query(ctx, "dynamodb.get_edge", keyCond, "", func(e *entities.Edge) {
		if e.ToID == toID && (first == nil || e.Sequence < first.Sequence) {
			first = e
		}
	})
	if err != nil {
		return nil, err
	}
	if first == nil {
		return nil, pkgerrors.EdgeNotFound(fromID, toID, "")
	}
	return first, nil
}

func (r *EdgeRepository) GetByKey(ctx context.Context, key entities.EdgeKey) (*entities.Edge, error) {
	out, err := call(r.table, "dynamodb.get_edge", func() (*dynamodb.GetItemOutput, error) {
		return r.table.api.GetItem(ctx, &dynamodb.GetItemInput{
			TableName:      aws.String(r.table.name),
			Key:            itemKey(nodePK(key.FromID), edgeSK(key.ToID, key.Role)),
			ConsistentRead: aws.Bool(true),
		})
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, pkgerrors.EdgeNotFound(key.FromID, key.ToID, key.Role)
	}
	e, err := unmarshalEdge(out.Item)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("dynamodb.get_edge", err)
	}
	return e, nil
}

func (r *EdgeRepository) ScanByNode(ctx context.Context, nodeID string, dir entities.Direction) iter.Seq2[*entities.Edge, error] {
	spec := specifications.EdgeSpec{}
	switch dir {
	case entities.DirectionOutgoing:
		spec.FromID = nodeID
	case entities.DirectionIncoming:
		spec.ToID = nodeID
	default:
		spec.NodeID = nodeID
	}
	return r.Scan(ctx, spec)
}

func (r *EdgeRepository) Scan(ctx context.Context, spec specifications.EdgeSpec) iter.Seq2[*entities.Edge, error] {
	return func(yield func(*entities.Edge, error) bool) {
		edges, err := r.collect(ctx, spec)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, e := range edges {
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (r *EdgeRepository) Count(ctx context.Context, spec specifications.EdgeSpec) (int, error) {
	edges, err := r.collect(ctx, spec)
	if err != nil {
		return 0, err
	}
	return len(edges), nil
}

// collect routes the spec to the narrowest access path: the owner
// partition for outgoing edges, GSI1 for incoming ones.
func (r *EdgeRepository) collect(ctx context.Context, spec specifications.EdgeSpec) ([]*entities.Edge, error) {
	var edges []*entities.Edge
	keep := func(e *entities.Edge) {
		if spec.IsSatisfiedBy(e) {
			edges = append(edges, e)
		}
	}

	outgoing := func(id string) error {
		keyCond := expression.Key("PK").Equal(expression.Value(nodePK(id))).
			And(expression.Key("SK").BeginsWith(edgeSKPrefix))
		return r.query(ctx, "dynamodb.scan_edges", keyCond, "", keep)
	}
	incoming := func(id string, skipSelf bool) error {
		keyCond := expression.Key("GSI1PK").Equal(expression.Value(incomingPK(id)))
		return r.query(ctx, "dynamodb.scan_edges", keyCond, indexIncoming, func(e *entities.Edge) {
			// self-loops were already visited through outgoing
			if skipSelf && e.FromID == id {
				return
			}
			keep(e)
		})
	}

	var err error
	switch {
	case spec.FromID != "":
		err = outgoing(spec.FromID)
	case spec.ToID != "":
		err = incoming(spec.ToID, false)
	case spec.NodeID != "":
		if err = outgoing(spec.NodeID); err == nil {
			err = incoming(spec.NodeID, true)
		}
	default:
		err = scanEntities(ctx, r.table, "dynamodb.scan_edges", entityEdge, nil, func(av map[string]types.AttributeValue) error {
			e, err := unmarshalEdge(av)
			if err != nil {
				return err
			}
			keep(e)
			return nil
		})
	}
	return edges, err
}

func (r *EdgeRepository) query(ctx context.Context, op string, keyCond expression.KeyConditionBuilder, index string, fn func(*entities.Edge)) error {
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return pkgerrors.NewInternalError("build edge query").WithCause(err)
	}
	input := &dynamodb.QueryInput{
		TableName:                 aws.String(r.table.name),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}
	if index != "" {
		input.IndexName = aws.String(index)
	} else {
		input.ConsistentRead = aws.Bool(true)
	}
	return queryPages(ctx, r.table, op, input, func(av map[string]types.AttributeValue) error {
		e, err := unmarshalEdge(av)
		if err != nil {
			return err
		}
		fn(e)
		return nil
	})
}

func endpoints(e *entities.Edge) []string {
	if e.FromID == e.ToID {
		return []string{e.FromID}
	}
	return []string{e.FromID, e.ToID}
}
