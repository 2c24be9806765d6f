package dynamodb

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"graphstore/domain/core/entities"
	"graphstore/domain/core/valueobjects"
)

const (
	entityNode = "NODE"
	entityEdge = "EDGE"

	skMetadata = "METADATA"

	indexIncoming = "GSI1"
	indexType     = "GSI2"
)

const timeLayout = time.RFC3339Nano

func nodePK(id string) string     { return "NODE#" + id }
func typePK(typeID string) string { return "TYPE#" + typeID }
func incomingPK(to string) string { return "IN#" + to }

// Length prefixes keep composite sort keys unambiguous whatever the ids contain.
func edgeSK(to, role string) string       { return fmt.Sprintf("EDGE#%d#%s#%s", len(to), to, role) }
func pairSKPrefix(to string) string       { return fmt.Sprintf("EDGE#%d#%s#", len(to), to) }
func incomingSK(from, role string) string { return fmt.Sprintf("EDGE#%d#%s#%s", len(from), from, role) }

const edgeSKPrefix = "EDGE#"

var counterKey = map[string]types.AttributeValue{
	"PK": &types.AttributeValueMemberS{Value: "COUNTER#EDGE"},
	"SK": &types.AttributeValueMemberS{Value: skMetadata},
}

func itemKey(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

// nodeItem is the stored form of a node.
type nodeItem struct {
	PK          string `dynamodbav:"PK"`
	SK          string `dynamodbav:"SK"`
	GSI2PK      string `dynamodbav:"GSI2PK"`
	GSI2SK      string `dynamodbav:"GSI2SK"`
	EntityType  string `dynamodbav:"EntityType"`
	NodeID      string `dynamodbav:"NodeID"`
	TypeID      string `dynamodbav:"TypeID"`
	State       string `dynamodbav:"State"`
	Locale      string `dynamodbav:"Locale"`
	Title       string `dynamodbav:"Title"`
	Description string `dynamodbav:"Description"`
	Content     string `dynamodbav:"Content,omitempty"`
	Meta        string `dynamodbav:"Meta,omitempty"`
	Version     int64  `dynamodbav:"Version"`
	CreatedAt   string `dynamodbav:"CreatedAt"`
	UpdatedAt   string `dynamodbav:"UpdatedAt"`
}

// edgeItem is the stored form of an edge.
type edgeItem struct {
	PK         string  `dynamodbav:"PK"`
	SK         string  `dynamodbav:"SK"`
	GSI1PK     string  `dynamodbav:"GSI1PK"`
	GSI1SK     string  `dynamodbav:"GSI1SK"`
	EntityType string  `dynamodbav:"EntityType"`
	FromID     string  `dynamodbav:"FromID"`
	ToID       string  `dynamodbav:"ToID"`
	Role       string  `dynamodbav:"Role"`
	Weight     float64 `dynamodbav:"Weight"`
	Meta       string  `dynamodbav:"Meta,omitempty"`
	Seq        int64   `dynamodbav:"Seq"`
	CreatedAt  string  `dynamodbav:"CreatedAt"`
	UpdatedAt  string  `dynamodbav:"UpdatedAt"`
}

// encodeRaw stores JSON bags as strings; DynamoDB maps would lose number
// formatting and key order.
func encodeRaw(v interface{}, isNil bool) (string, error) {
	if isNil {
		return "", nil
	}
	var sb strings.Builder
	enc := json.NewEncoder(&sb)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func nodeToItem(n *entities.Node) (nodeItem, error) {
	content, err := encodeRaw(n.Content, n.Content == nil)
	if err != nil {
		return nodeItem{}, err
	}
	meta, err := encodeRaw(n.Meta, n.Meta == nil)
	if err != nil {
		return nodeItem{}, err
	}
	return nodeItem{
		PK:          nodePK(n.ID),
		SK:          skMetadata,
		GSI2PK:      typePK(n.TypeID),
		GSI2SK:      nodePK(n.ID),
		EntityType:  entityNode,
		NodeID:      n.ID,
		TypeID:      n.TypeID,
		State:       n.State,
		Locale:      n.Locale,
		Title:       n.Title,
		Description: n.Description,
		Content:     content,
		Meta:        meta,
		Version:     n.Version,
		CreatedAt:   n.CreatedAt.UTC().Format(timeLayout),
		UpdatedAt:   n.UpdatedAt.UTC().Format(timeLayout),
	}, nil
}

func itemToNode(item nodeItem) (*entities.Node, error) {
	n := &entities.Node{
		ID:          item.NodeID,
		TypeID:      item.TypeID,
		State:       item.State,
		Locale:      item.Locale,
		Title:       item.Title,
		Description: item.Description,
		Version:     item.Version,
	}
	if item.Content != "" {
		n.Content = &valueobjects.Content{}
		if err := json.Unmarshal([]byte(item.Content), n.Content); err != nil {
			return nil, fmt.Errorf("decode content of %s: %w", item.NodeID, err)
		}
	}
	if item.Meta != "" {
		if err := json.Unmarshal([]byte(item.Meta), &n.Meta); err != nil {
			return nil, fmt.Errorf("decode meta of %s: %w", item.NodeID, err)
		}
	}
	var err error
	if n.CreatedAt, err = time.Parse(timeLayout, item.CreatedAt); err != nil {
		return nil, err
	}
	if n.UpdatedAt, err = time.Parse(timeLayout, item.UpdatedAt); err != nil {
		return nil, err
	}
	return n, nil
}

func itemToEdge(item edgeItem) (*entities.Edge, error) {
	e := &entities.Edge{
		FromID:   item.FromID,
		ToID:     item.ToID,
		Role:     item.Role,
		Weight:   item.Weight,
		Sequence: item.Seq,
	}
	if item.Meta != "" {
		if err := json.Unmarshal([]byte(item.Meta), &e.Meta); err != nil {
			return nil, fmt.Errorf("decode meta of edge %s->%s: %w", item.FromID, item.ToID, err)
		}
	}
	var err error
	if e.CreatedAt, err = time.Parse(timeLayout, item.CreatedAt); err != nil {
		return nil, err
	}
	if e.UpdatedAt, err = time.Parse(timeLayout, item.UpdatedAt); err != nil {
		return nil, err
	}
	return e, nil
}

func unmarshalNode(av map[string]types.AttributeValue) (*entities.Node, error) {
	var item nodeItem
	if err := attributevalue.UnmarshalMap(av, &item); err != nil {
		return nil, err
	}
	return itemToNode(item)
}

func unmarshalEdge(av map[string]types.AttributeValue) (*entities.Edge, error) {
	var item edgeItem
	if err := attributevalue.UnmarshalMap(av, &item); err != nil {
		return nil, err
	}
	return itemToEdge(item)
}
