package badger

import (
	"bytes"
	"encoding/json"

	"graphstore/domain/core/entities"
)

// edgeRecord is the stored form of an edge; Sequence is not part of the
// public JSON shape so it is carried separately.
type edgeRecord struct {
	entities.Edge
	Seq int64 `json:"seq"`
}

// marshal encodes without HTML escaping so meta values are stored byte for byte.
func marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func encodeNode(n *entities.Node) ([]byte, error) {
	return marshal(n)
}

func decodeNode(b []byte) (*entities.Node, error) {
	var n entities.Node
	if err := json.Unmarshal(b, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func encodeEdge(e *entities.Edge) ([]byte, error) {
	return marshal(edgeRecord{Edge: *e, Seq: e.Sequence})
}

func decodeEdge(b []byte) (*entities.Edge, error) {
	var rec edgeRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, err
	}
	e := rec.Edge
	e.Sequence = rec.Seq
	return &e, nil
}
