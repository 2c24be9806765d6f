package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"iter"
	"strings"

	"go.uber.org/zap"

	"graphstore/domain/core/entities"
	"graphstore/domain/core/specifications"
	"graphstore/domain/core/validators"
	pkgerrors "graphstore/pkg/errors"
	"graphstore/pkg/utils"
)

const nodeColumns = `id, type_id, state, locale, title, description, content, meta, version, created_at, updated_at`

type NodeRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func (r *NodeRepository) Put(ctx context.Context, node *entities.Node) (*entities.Node, error) {
	if err := validators.ValidateNodeRecord(node); err != nil {
		return nil, err
	}
	record, err := node.Normalized()
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}
	content, err := encodeJSON(record.Content, record.Content == nil)
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}
	meta, err := encodeJSON(record.Meta, record.Meta == nil)
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}

	err = withTx(ctx, r.db, func(tx *sql.Tx) error {
		var prev *entities.Node
		row := tx.QueryRowContext(ctx, `SELECT version, created_at FROM nodes WHERE id = ?`, record.ID)
		var version int64
		var createdAt string
		switch err := row.Scan(&version, &createdAt); {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return err
		default:
			created, err := parseTime(createdAt)
			if err != nil {
				return err
			}
			prev = &entities.Node{Version: version, CreatedAt: created}
		}
		record.Stamp(prev, utils.Now())

		_, err := tx.ExecContext(ctx, `
			INSERT INTO nodes (`+nodeColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				type_id = excluded.type_id,
				state = excluded.state,
				locale = excluded.locale,
				title = excluded.title,
				description = excluded.description,
				content = excluded.content,
				meta = excluded.meta,
				version = excluded.version,
				updated_at = excluded.updated_at`,
			record.ID, record.TypeID, record.State, record.Locale, record.Title, record.Description,
			content, meta, record.Version, formatTime(record.CreatedAt), formatTime(record.UpdatedAt))
		return err
	})
	if err != nil {
		r.logger.Error("failed to store node", zap.String("nodeID", record.ID), zap.Error(err))
		return nil, dbError("sqlite.put_node", err)
	}
	return record, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNode(row rowScanner) (*entities.Node, error) {
	var n entities.Node
	var content, meta sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&n.ID, &n.TypeID, &n.State, &n.Locale, &n.Title, &n.Description,
		&content, &meta, &n.Version, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if content.Valid {
		if err := decodeJSON(content, &n.Content); err != nil {
			return nil, err
		}
	}
	if err := decodeJSON(meta, &n.Meta); err != nil {
		return nil, err
	}
	var err error
	if n.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if n.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *NodeRepository) Get(ctx context.Context, id string) (*entities.Node, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE id = ?`, id)
	node, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.NodeNotFound(id)
	}
	if err != nil {
		return nil, dbError("sqlite.get_node", err)
	}
	return node, nil
}

func (r *NodeRepository) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM nodes WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, dbError("sqlite.exists_node", err)
	}
	return true, nil
}

// nodeWhere renders the exact-match filters. The search term is applied
// in Go so case folding matches the other backends.
func nodeWhere(spec specifications.NodeSpec) (string, []interface{}) {
	var clauses []string
	var args []interface{}
	if spec.TypeID != "" {
		clauses = append(clauses, "type_id = ?")
		args = append(args, spec.TypeID)
	}
	if spec.State != "" {
		clauses = append(clauses, "state = ?")
		args = append(args, spec.State)
	}
	if spec.Locale != "" {
		clauses = append(clauses, "locale = ?")
		args = append(args, spec.Locale)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// Scan runs one SELECT and materializes the rows before yielding.
func (r *NodeRepository) Scan(ctx context.Context, spec specifications.NodeSpec) iter.Seq2[*entities.Node, error] {
	return func(yield func(*entities.Node, error) bool) {
		nodes, err := r.query(ctx, spec)
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

func (r *NodeRepository) query(ctx context.Context, spec specifications.NodeSpec) ([]*entities.Node, error) {
	where, args := nodeWhere(spec)
	rows, err := r.db.QueryContext(ctx, `SELECT `+nodeColumns+` FROM nodes`+where, args...)
	if err != nil {
		return nil, dbError("sqlite.scan_nodes", err)
	}
	defer rows.Close()

	var nodes []*entities.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, dbError("sqlite.scan_nodes", err)
		}
		if spec.IsSatisfiedBy(n) {
			nodes = append(nodes, n)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("sqlite.scan_nodes", err)
	}
	return nodes, nil
}

func (r *NodeRepository) Count(ctx context.Context, spec specifications.NodeSpec) (int, error) {
	if spec.Term() != "" {
		nodes, err := r.query(ctx, spec)
		if err != nil {
			return 0, err
		}
		return len(nodes), nil
	}
	where, args := nodeWhere(spec)
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes`+where, args...).Scan(&n); err != nil {
		return 0, dbError("sqlite.count_nodes", err)
	}
	return n, nil
}

func (r *NodeRepository) DistinctTypes(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT type_id) FROM nodes`).Scan(&n); err != nil {
		return 0, dbError("sqlite.distinct_types", err)
	}
	return n, nil
}
