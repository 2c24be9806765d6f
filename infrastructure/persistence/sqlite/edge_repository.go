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

const edgeColumns = `seq, from_id, to_id, role, weight, meta, created_at, updated_at`

type EdgeRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// Put checks the endpoints and upserts inside one immediate transaction.
// The foreign keys on edges back the check up.
func (r *EdgeRepository) Put(ctx context.Context, edge *entities.Edge) (*entities.Edge, error) {
	if err := validators.ValidateEdgeRecord(edge); err != nil {
		return nil, err
	}
	record, err := edge.Normalized()
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}
	meta, err := encodeJSON(record.Meta, record.Meta == nil)
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}

	var stored *entities.Edge
	err = withTx(ctx, r.db, func(tx *sql.Tx) error {
		missing, err := missingNodes(ctx, tx, record.FromID, record.ToID)
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			return pkgerrors.NewDanglingReferenceError(missing...)
		}

		now := formatTime(utils.Now())
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO edges (from_id, to_id, role, weight, meta, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (from_id, to_id, role) DO UPDATE SET
				weight = excluded.weight,
				meta = excluded.meta,
				updated_at = excluded.updated_at`,
			record.FromID, record.ToID, record.Role, record.Weight, meta, now, now); err != nil {
			if isForeignKeyViolation(err) {
				return pkgerrors.NewDanglingReferenceError(record.FromID, record.ToID)
			}
			return err
		}

		row := tx.QueryRowContext(ctx, `SELECT `+edgeColumns+` FROM edges
			WHERE from_id = ? AND to_id = ? AND role = ?`, record.FromID, record.ToID, record.Role)
		stored, err = scanEdge(row)
		return err
	})
	if err != nil {
		if !pkgerrors.IsDanglingReference(err) {
			r.logger.Error("failed to store edge",
				zap.String("fromID", record.FromID),
				zap.String("toID", record.ToID),
				zap.String("role", record.Role),
				zap.Error(err))
		}
		return nil, dbError("sqlite.put_edge", err)
	}
	return stored, nil
}

func missingNodes(ctx context.Context, tx *sql.Tx, fromID, toID string) ([]string, error) {
	ids := []string{fromID}
	if toID != fromID {
		ids = append(ids, toID)
	}
	rows, err := tx.QueryContext(ctx, `SELECT id FROM nodes WHERE id IN (?`+strings.Repeat(", ?", len(ids)-1)+`)`,
		toArgs(ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := make(map[string]bool, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var missing []string
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func toArgs(values []string) []interface{} {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

func scanEdge(row rowScanner) (*entities.Edge, error) {
	var e entities.Edge
	var meta sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&e.Sequence, &e.FromID, &e.ToID, &e.Role, &e.Weight, &meta, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := decodeJSON(meta, &e.Meta); err != nil {
		return nil, err
	}
	var err error
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *EdgeRepository) Get(ctx context.Context, fromID, toID string) (*entities.Edge, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+edgeColumns+` FROM edges
		WHERE from_id = ? AND to_id = ? ORDER BY seq LIMIT 1`, fromID, toID)
	e, err := scanEdge(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.EdgeNotFound(fromID, toID, "")
	}
	if err != nil {
		return nil, dbError("sqlite.get_edge", err)
	}
	return e, nil
}

func (r *EdgeRepository) GetByKey(ctx context.Context, key entities.EdgeKey) (*entities.Edge, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+edgeColumns+` FROM edges
		WHERE from_id = ? AND to_id = ? AND role = ?`, key.FromID, key.ToID, key.Role)
	e, err := scanEdge(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.EdgeNotFound(key.FromID, key.ToID, key.Role)
	}
	if err != nil {
		return nil, dbError("sqlite.get_edge", err)
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

func edgeWhere(spec specifications.EdgeSpec) (string, []interface{}) {
	var clauses []string
	var args []interface{}
	if spec.Role != "" {
		clauses = append(clauses, "role = ?")
		args = append(args, spec.Role)
	}
	if spec.FromID != "" {
		clauses = append(clauses, "from_id = ?")
		args = append(args, spec.FromID)
	}
	if spec.ToID != "" {
		clauses = append(clauses, "to_id = ?")
		args = append(args, spec.ToID)
	}
	if spec.NodeID != "" {
		clauses = append(clauses, "(from_id = ? OR to_id = ?)")
		args = append(args, spec.NodeID, spec.NodeID)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (r *EdgeRepository) Scan(ctx context.Context, spec specifications.EdgeSpec) iter.Seq2[*entities.Edge, error] {
	return func(yield func(*entities.Edge, error) bool) {
		edges, err := r.query(ctx, spec)
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

func (r *EdgeRepository) query(ctx context.Context, spec specifications.EdgeSpec) ([]*entities.Edge, error) {
	where, args := edgeWhere(spec)
	rows, err := r.db.QueryContext(ctx, `SELECT `+edgeColumns+` FROM edges`+where, args...)
	if err != nil {
		return nil, dbError("sqlite.scan_edges", err)
	}
	defer rows.Close()

	var edges []*entities.Edge
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, dbError("sqlite.scan_edges", err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("sqlite.scan_edges", err)
	}
	return edges, nil
}

func (r *EdgeRepository) Count(ctx context.Context, spec specifications.EdgeSpec) (int, error) {
	where, args := edgeWhere(spec)
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM edges`+where, args...).Scan(&n); err != nil {
		return 0, dbError("sqlite.count_edges", err)
	}
	return n, nil
}
