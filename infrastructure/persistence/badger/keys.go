package badger

import (
	"bytes"
	"encoding/binary"

	"graphstore/domain/core/entities"
)

const sep = "\x00"

var (
	prefixNode     = []byte("n/")
	prefixType     = []byte("t/")
	prefixState    = []byte("s/")
	prefixLocale   = []byte("l/")
	prefixEdge     = []byte("e/")
	prefixIncoming = []byte("i/")
	keyEdgeSeq     = []byte("m/edge-seq")
)

func join(prefix []byte, parts ...string) []byte {
	var b bytes.Buffer
	b.Write(prefix)
	for i, p := range parts {
		if i > 0 {
			b.WriteString(sep)
		}
		b.WriteString(p)
	}
	return b.Bytes()
}

func nodeKey(id string) []byte { return join(prefixNode, id) }

// indexKey builds an index entry; indexPrefix the scan prefix for value.
func indexKey(prefix []byte, value, id string) []byte { return join(prefix, value, id) }
func indexPrefix(prefix []byte, value string) []byte  { return join(prefix, value, "") }

func edgeKey(k entities.EdgeKey) []byte {
	return join(prefixEdge, k.FromID, k.ToID, k.Role)
}

func incomingKey(k entities.EdgeKey) []byte {
	return join(prefixIncoming, k.ToID, k.FromID, k.Role)
}

// outgoingPrefix covers every edge leaving from.
func outgoingPrefix(from string) []byte { return join(prefixEdge, from, "") }

// pairPrefix covers every role between from and to.
func pairPrefix(from, to string) []byte { return join(prefixEdge, from, to, "") }

func incomingPrefix(to string) []byte { return join(prefixIncoming, to, "") }

// lastPart returns the component after the final separator.
func lastPart(key, prefix []byte) string {
	rest := key[len(prefix):]
	if i := bytes.LastIndex(rest, []byte(sep)); i >= 0 {
		return string(rest[i+1:])
	}
	return string(rest)
}

// incomingToEdgeKey decodes an i/ key back into the edge identity.
func incomingToEdgeKey(key []byte) (entities.EdgeKey, bool) {
	parts := bytes.Split(key[len(prefixIncoming):], []byte(sep))
	if len(parts) != 3 {
		return entities.EdgeKey{}, false
	}
	return entities.EdgeKey{ToID: string(parts[0]), FromID: string(parts[1]), Role: string(parts[2])}, true
}

// firstPart returns the component right after prefix.
func firstPart(key, prefix []byte) string {
	rest := key[len(prefix):]
	if i := bytes.Index(rest, []byte(sep)); i >= 0 {
		return string(rest[:i])
	}
	return string(rest)
}

func encodeSeq(n int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(n))
	return b
}

func decodeSeq(b []byte) int64 {
	if len(b) != 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}
