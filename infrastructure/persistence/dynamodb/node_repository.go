package dynamodb

import (
	"context"
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

type NodeRepository struct {
	table *table
}

// Put is a single UpdateItem: CreatedAt is kept with if_not_exists and
// Version is incremented atomically, so concurrent upserts serialize on
// the item.
func (r *NodeRepository) Put(ctx context.Context, node *entities.Node) (*entities.Node, error) {
	if err := validators.ValidateNodeRecord(node); err != nil {
		return nil, err
	}
	record, err := node.Normalized()
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}
	now := utils.Now()
	record.CreatedAt, record.UpdatedAt = now, now
	item, err := nodeToItem(record)
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}

	update := expression.
		Set(expression.Name("GSI2PK"), expression.Value(item.GSI2PK)).
		Set(expression.Name("GSI2SK"), expression.Value(item.GSI2SK)).
		Set(expression.Name("EntityType"), expression.Value(item.EntityType)).
		Set(expression.Name("NodeID"), expression.Value(item.NodeID)).
		Set(expression.Name("TypeID"), expression.Value(item.TypeID)).
		Set(expression.Name("State"), expression.Value(item.State)).
		Set(expression.Name("Locale"), expression.Value(item.Locale)).
		Set(expression.Name("Title"), expression.Value(item.Title)).
		Set(expression.Name("Description"), expression.Value(item.Description)).
		Set(expression.Name("UpdatedAt"), expression.Value(item.UpdatedAt)).
		Set(expression.Name("CreatedAt"),
			expression.IfNotExists(expression.Name("CreatedAt"), expression.Value(item.CreatedAt))).
		Add(expression.Name("Version"), expression.Value(1))
	update = setOrRemove(update, "Content", item.Content)
	update = setOrRemove(update, "Meta", item.Meta)

	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return nil, pkgerrors.NewInternalError("build node update").WithCause(err)
	}

	out, err := call(r.table, "dynamodb.put_node", func() (*dynamodb.UpdateItemOutput, error) {
		return r.table.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 aws.String(r.table.name),
			Key:                       itemKey(item.PK, item.SK),
			UpdateExpression:          expr.Update(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ReturnValues:              types.ReturnValueAllNew,
		})
	})
	if err != nil {
		return nil, err
	}
	stored, err := unmarshalNode(out.Attributes)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("dynamodb.put_node", err)
	}
	r.table.logger.Debug("node stored",
		zap.String("nodeID", stored.ID),
		zap.Int64("version", stored.Version))
	return stored, nil
}

func setOrRemove(update expression.UpdateBuilder, name, value string) expression.UpdateBuilder {
	if value == "" {
		return update.Remove(expression.Name(name))
	}
	return update.Set(expression.Name(name), expression.Value(value))
}

func (r *NodeRepository) Get(ctx context.Context, id string) (*entities.Node, error) {
	out, err := call(r.table, "dynamodb.get_node", func() (*dynamodb.GetItemOutput, error) {
		return r.table.api.GetItem(ctx, &dynamodb.GetItemInput{
			TableName:      aws.String(r.table.name),
			Key:            itemKey(nodePK(id), skMetadata),
			ConsistentRead: aws.Bool(true),
		})
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, pkgerrors.NodeNotFound(id)
	}
	node, err := unmarshalNode(out.Item)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("dynamodb.get_node", err)
	}
	return node, nil
}

func (r *NodeRepository) Exists(ctx context.Context, id string) (bool, error) {
	out, err := call(r.table, "dynamodb.exists_node", func() (*dynamodb.GetItemOutput, error) {
		return r.table.api.GetItem(ctx, &dynamodb.GetItemInput{
			TableName:            aws.String(r.table.name),
			Key:                  itemKey(nodePK(id), skMetadata),
			ConsistentRead:       aws.Bool(true),
			ProjectionExpression: aws.String("PK"),
		})
	})
	if err != nil {
		return false, err
	}
	return out.Item != nil, nil
}

// Scan queries the type index when the spec names a type, and scans the
// table otherwise. The rest of the spec is applied in process.
func (r *NodeRepository) Scan(ctx context.Context, spec specifications.NodeSpec) iter.Seq2[*entities.Node, error] {
	return func(yield func(*entities.Node, error) bool) {
		nodes, err := r.collect(ctx, spec)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, n := range nodes {
			if !yield(n, nil) {
				return
			}
		}
	}
}

func (r *NodeRepository) collect(ctx context.Context, spec specifications.NodeSpec) ([]*entities.Node, error) {
	var nodes []*entities.Node
	visit := func(av map[string]types.AttributeValue) error {
		n, err := unmarshalNode(av)
		if err != nil {
			return err
		}
		if spec.IsSatisfiedBy(n) {
			nodes = append(nodes, n)
		}
		return nil
	}

	if spec.TypeID != "" {
		keyCond := expression.Key("GSI2PK").Equal(expression.Value(typePK(spec.TypeID)))
		expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
		if err != nil {
			return nil, pkgerrors.NewInternalError("build node query").WithCause(err)
		}
		err = queryPages(ctx, r.table, "dynamodb.scan_nodes", &dynamodb.QueryInput{
			TableName:                 aws.String(r.table.name),
			IndexName:                 aws.String(indexType),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		}, visit)
		return nodes, err
	}

	err := scanEntities(ctx, r.table, "dynamodb.scan_nodes", entityNode, nil, visit)
	return nodes, err
}

func (r *NodeRepository) Count(ctx context.Context, spec specifications.NodeSpec) (int, error) {
	nodes, err := r.collect(ctx, spec)
	if err != nil {
		return 0, err
	}
	return len(nodes), nil
}

func (r *NodeRepository) DistinctTypes(ctx context.Context) (int, error) {
	seen := make(map[string]struct{})
	proj := expression.NamesList(expression.Name("TypeID"))
	err := scanEntities(ctx, r.table, "dynamodb.distinct_types", entityNode, &proj, func(av map[string]types.AttributeValue) error {
		var item struct {
			TypeID string `dynamodbav:"TypeID"`
		}
		if err := attributevalue.UnmarshalMap(av, &item); err != nil {
			return err
		}
		seen[item.TypeID] = struct{}{}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(seen), nil
}

// queryPages runs a Query to completion, one breaker call per page.
func queryPages(ctx context.Context, t *table, op string, input *dynamodb.QueryInput, visit func(map[string]types.AttributeValue) error) error {
	paginator := dynamodb.NewQueryPaginator(t.api, input)
	for paginator.HasMorePages() {
		page, err := call(t, op, func() (*dynamodb.QueryOutput, error) {
			return paginator.NextPage(ctx)
		})
		if err != nil {
			return err
		}
		for _, av := range page.Items {
			if err := visit(av); err != nil {
				return pkgerrors.NewDatabaseError(op, err)
			}
		}
	}
	return nil
}

// scanEntities scans every item of one entity type.
func scanEntities(ctx context.Context, t *table, op, entityType string, proj *expression.ProjectionBuilder, visit func(map[string]types.AttributeValue) error) error {
	builder := expression.NewBuilder().
		WithFilter(expression.Name("EntityType").Equal(expression.Value(entityType)))
	if proj != nil {
		builder = builder.WithProjection(*proj)
	}
	expr, err := builder.Build()
	if err != nil {
		return pkgerrors.NewInternalError("build scan").WithCause(err)
	}

	paginator := dynamodb.NewScanPaginator(t.api, &dynamodb.ScanInput{
		TableName:                 aws.String(t.name),
		FilterExpression:          expr.Filter(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ConsistentRead:            aws.Bool(true),
	})
	for paginator.HasMorePages() {
		page, err := call(t, op, func() (*dynamodb.ScanOutput, error) {
			return paginator.NextPage(ctx)
		})
		if err != nil {
			return err
		}
		for _, av := range page.Items {
			if err := visit(av); err != nil {
				return pkgerrors.NewDatabaseError(op, err)
			}
		}
	}
	return nil
}
