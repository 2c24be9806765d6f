package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"graphstore/application/services"
	"graphstore/infrastructure/persistence/memory"
	pkgerrors "graphstore/pkg/errors"
)

func newService(t *testing.T) *services.GraphService {
	t.Helper()
	logger := zaptest.NewLogger(t)
	return services.NewGraphService(memory.NewStore(logger), nil, nil, nil, nil, logger)
}

func execute(t *testing.T, svc *services.GraphService, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(svc)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

const fixture = `{"edge":{"fromId":"a","toId":"b","role":"rel","weight":2}}
{"node":{"id":"a","typeId":"codex.concept","title":"Alpha"}}

{"node":{"id":"b","typeId":"codex.concept","title":"Beta","meta":{"tags":["x"]}}}
`

func TestRootCommand(t *testing.T) {
	root := newRootCmd(newService(t))
	assert.Equal(t, "storectl", root.Use)

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{
		"stats", "get-node", "get-edge", "query-nodes", "query-edges",
		"node-edges", "put-node", "put-edge", "import", "export",
	}, names)
}

func TestImportWritesNodesBeforeEdges(t *testing.T) {
	svc := newService(t)

	out, err := execute(t, svc, fixture, "import", "-")
	require.NoError(t, err)
	assert.Equal(t, "imported 2 nodes, 1 edges\n", out)

	edge, err := svc.GetEdge(context.Background(), "a", "b", "rel")
	require.NoError(t, err)
	assert.Equal(t, 2.0, edge.Weight)
}

func TestImportRejectsBadRecords(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "malformed json", input: `{"node":`, want: "line 1"},
		{name: "empty record", input: "\n{}", want: "line 2: record must hold exactly one"},
		{name: "dangling edge", input: `{"edge":{"fromId":"a","toId":"zz","role":"rel"}}`, want: "line 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, newService(t), tt.input, "import", "-")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestExportRoundTripsThroughImport(t *testing.T) {
	src := newService(t)
	_, err := execute(t, src, fixture, "import", "-")
	require.NoError(t, err)

	exported, err := execute(t, src, "", "export")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(exported), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], `{"node":{"id":"a"`))
	assert.True(t, strings.HasPrefix(lines[2], `{"edge":`))
	assert.Contains(t, lines[1], `"meta":{"tags":["x"]}`)

	dst := newService(t)
	_, err = execute(t, dst, exported, "import", "-")
	require.NoError(t, err)

	stats, err := dst.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.NodeCount)
	assert.Equal(t, 1, stats.EdgeCount)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestExportToFile(t *testing.T) {
	src := newService(t)
	_, err := execute(t, src, fixture, "import", "-")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "graph.jsonl")
	_, err = execute(t, src, "", "export", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 3)

	dst := newService(t)
	_, err = execute(t, dst, "", "import", path)
	require.NoError(t, err)
	stats, err := dst.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.NodeCount)
	assert.Equal(t, 1, stats.EdgeCount)
}

func TestExportReportsWriteErrors(t *testing.T) {
	svc := newService(t)
	_, err := execute(t, svc, fixture, "import", "-")
	require.NoError(t, err)

	err = exportRecords(context.Background(), svc, failingWriter{})
	assert.EqualError(t, err, "disk full")

	_, err = execute(t, svc, "", "export", filepath.Join(t.TempDir(), "missing", "graph.jsonl"))
	assert.Error(t, err)
}

func TestQueryCommandsUseStrictPaging(t *testing.T) {
	svc := newService(t)
	_, err := execute(t, svc, fixture, "import", "-")
	require.NoError(t, err)

	out, err := execute(t, svc, "", "query-nodes", "--type", "codex.concept", "--take", "1", "--skip", "1")
	require.NoError(t, err)
	var page struct {
		Nodes      []map[string]interface{} `json:"nodes"`
		TotalCount int                      `json:"totalCount"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	assert.Equal(t, 2, page.TotalCount)
	require.Len(t, page.Nodes, 1)
	assert.Equal(t, "b", page.Nodes[0]["id"])

	_, err = execute(t, svc, "", "query-edges", "--take", "many")
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestPutAndGet(t *testing.T) {
	svc := newService(t)

	_, err := execute(t, svc, `{"id":"n1","typeId":"codex.concept","title":"One"}`, "put-node")
	require.NoError(t, err)
	_, err = execute(t, svc, `{"fromId":"n1","toId":"n1","role":"self","weight":1}`, "put-edge")
	require.NoError(t, err)

	out, err := execute(t, svc, "", "get-node", "n1")
	require.NoError(t, err)
	assert.Contains(t, out, `"title": "One"`)

	out, err = execute(t, svc, "", "get-edge", "n1", "n1")
	require.NoError(t, err)
	assert.Contains(t, out, `"role": "self"`)

	out, err = execute(t, svc, "", "node-edges", "n1")
	require.NoError(t, err)
	var edges services.NodeEdges
	require.NoError(t, json.Unmarshal([]byte(out), &edges))
	assert.Len(t, edges.Outgoing, 1)
	assert.Len(t, edges.Incoming, 1)

	_, err = execute(t, svc, "", "get-node", "missing")
	assert.True(t, pkgerrors.IsNotFound(err))

	_, err = execute(t, svc, `{"typeId":"x","bogus":1}`, "put-node")
	assert.Error(t, err)
}
