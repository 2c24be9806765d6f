package validators

import (
	"fmt"
	"math"
	"unicode/utf8"

	"graphstore/domain/config"
	"graphstore/domain/core/entities"
	"graphstore/domain/core/valueobjects"
	"graphstore/pkg/errors"
)

// GraphValidator checks records before they reach a repository.
type GraphValidator struct {
	cfg *config.DomainConfig
}

func NewGraphValidator(cfg *config.DomainConfig) *GraphValidator {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &GraphValidator{cfg: cfg}
}

// ValidateNode requires an id and a type id. State is free-form.
func (v *GraphValidator) ValidateNode(node *entities.Node) error {
	if node == nil {
		return errors.NewValidationError("node is required")
	}
	validationErrors := errors.NewValidationErrors()

	if msg := valueobjects.CheckIdentifier(node.ID, v.cfg.MaxIDLength); msg != "" {
		validationErrors.Add("id", "id "+msg)
	}
	if msg := valueobjects.CheckIdentifier(node.TypeID, v.cfg.MaxTypeIDLength); msg != "" {
		validationErrors.Add("typeId", "typeId "+msg)
	}
	if v.cfg.MaxTitleLength > 0 && utf8.RuneCountInString(node.Title) > v.cfg.MaxTitleLength {
		validationErrors.Add("title", fmt.Sprintf("title exceeds maximum length of %d characters", v.cfg.MaxTitleLength))
	}
	if v.cfg.MaxMetaKeys > 0 && len(node.Meta) > v.cfg.MaxMetaKeys {
		validationErrors.Add("meta", fmt.Sprintf("meta has more than %d keys", v.cfg.MaxMetaKeys))
	}

	return validationErrors.AsAppError()
}

// ValidateEdge requires both endpoints and a role. Endpoint existence is
// checked by the repository at commit.
func (v *GraphValidator) ValidateEdge(edge *entities.Edge) error {
	if edge == nil {
		return errors.NewValidationError("edge is required")
	}
	validationErrors := errors.NewValidationErrors()

	if msg := valueobjects.CheckIdentifier(edge.FromID, v.cfg.MaxIDLength); msg != "" {
		validationErrors.Add("fromId", "fromId "+msg)
	}
	if msg := valueobjects.CheckIdentifier(edge.ToID, v.cfg.MaxIDLength); msg != "" {
		validationErrors.Add("toId", "toId "+msg)
	}
	if msg := valueobjects.CheckIdentifier(edge.Role, v.cfg.MaxRoleLength); msg != "" {
		validationErrors.Add("role", "role "+msg)
	}
	if !v.cfg.AllowSelfConnections && edge.FromID != "" && edge.FromID == edge.ToID {
		validationErrors.Add("toId", "self connections are not allowed")
	}
	if math.IsNaN(edge.Weight) || math.IsInf(edge.Weight, 0) {
		validationErrors.Add("weight", "weight must be a finite number")
	}
	if v.cfg.MaxMetaKeys > 0 && len(edge.Meta) > v.cfg.MaxMetaKeys {
		validationErrors.Add("meta", fmt.Sprintf("meta has more than %d keys", v.cfg.MaxMetaKeys))
	}

	return validationErrors.AsAppError()
}

// recordValidator enforces only the structural rules every backend needs.
var recordValidator = NewGraphValidator(&config.DomainConfig{AllowSelfConnections: true})

// ValidateNodeRecord is the check repositories run on every node Put.
func ValidateNodeRecord(node *entities.Node) error {
	return recordValidator.ValidateNode(node)
}

// ValidateEdgeRecord is the check repositories run on every edge Put.
func ValidateEdgeRecord(edge *entities.Edge) error {
	return recordValidator.ValidateEdge(edge)
}
