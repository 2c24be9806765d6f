package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"graphstore/application/commands"
	"graphstore/application/queries"
	"graphstore/application/services"
	"graphstore/domain/core/entities"
	"graphstore/domain/core/specifications"
	"graphstore/pkg/common"
)

// maxLineBytes bounds one JSON Lines record on import.
const maxLineBytes = 4 << 20

// record is one line of an import or export stream. Exactly one field is set.
type record struct {
	Node *entities.Node `json:"node,omitempty"`
	Edge *entities.Edge `json:"edge,omitempty"`
}

type pageFlags struct {
	skip string
	take string
}

func (f *pageFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.skip, "skip", "", "number of items to skip")
	cmd.Flags().StringVar(&f.take, "take", "", "maximum number of items to return")
}

func (f *pageFlags) raw() common.RawPage {
	return common.RawPage{Skip: f.skip, Take: f.take}
}

func newRootCmd(svc *services.GraphService) *cobra.Command {
	root := &cobra.Command{
		Use:           "storectl",
		Short:         "Inspect and load the graph store",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(
		newStatsCmd(svc),
		newGetNodeCmd(svc),
		newGetEdgeCmd(svc),
		newQueryNodesCmd(svc),
		newQueryEdgesCmd(svc),
		newNodeEdgesCmd(svc),
		newPutNodeCmd(svc),
		newPutEdgeCmd(svc),
		newImportCmd(svc),
		newExportCmd(svc),
	)
	return root
}

func newStatsCmd(svc *services.GraphService) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print node, edge and type counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := svc.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}
}

func newGetNodeCmd(svc *services.GraphService) *cobra.Command {
	return &cobra.Command{
		Use:   "get-node <id>",
		Short: "Print one node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			node, err := svc.GetNode(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), node)
		},
	}
}

func newGetEdgeCmd(svc *services.GraphService) *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "get-edge <from> <to>",
		Short: "Print one edge; without --role the first stored edge of the pair",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			edge, err := svc.GetEdge(cmd.Context(), args[0], args[1], role)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), edge)
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "edge role")
	return cmd
}

func newQueryNodesCmd(svc *services.GraphService) *cobra.Command {
	var (
		spec  specifications.NodeSpec
		pages pageFlags
	)
	cmd := &cobra.Command{
		Use:   "query-nodes",
		Short: "List nodes ordered by id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := svc.StrictPolicy().Resolve(pages.raw())
			if err != nil {
				return err
			}
			result, err := svc.QueryNodes(cmd.Context(), queries.NodeQuery{Spec: spec, Page: page})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&spec.TypeID, "type", "", "type id")
	cmd.Flags().StringVar(&spec.State, "state", "", "state")
	cmd.Flags().StringVar(&spec.Locale, "locale", "", "locale")
	cmd.Flags().StringVar(&spec.SearchTerm, "search", "", "case-insensitive title or description substring")
	pages.register(cmd)
	return cmd
}

func newQueryEdgesCmd(svc *services.GraphService) *cobra.Command {
	var (
		spec  specifications.EdgeSpec
		pages pageFlags
	)
	cmd := &cobra.Command{
		Use:   "query-edges",
		Short: "List edges ordered by (from, to, role)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := svc.StrictPolicy().Resolve(pages.raw())
			if err != nil {
				return err
			}
			result, err := svc.QueryEdges(cmd.Context(), queries.EdgeQuery{Spec: spec, Page: page})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&spec.Role, "role", "", "edge role")
	cmd.Flags().StringVar(&spec.NodeID, "node", "", "either endpoint")
	cmd.Flags().StringVar(&spec.FromID, "from", "", "source node id")
	cmd.Flags().StringVar(&spec.ToID, "to", "", "target node id")
	pages.register(cmd)
	return cmd
}

func newNodeEdgesCmd(svc *services.GraphService) *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "node-edges <id>",
		Short: "Print the outgoing and incoming edges of a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			edges, err := svc.GetNodeEdges(cmd.Context(), args[0], role)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), edges)
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "only edges of this role")
	return cmd
}

func newPutNodeCmd(svc *services.GraphService) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "put-node",
		Short: "Create or replace a node from a JSON document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var in commands.UpsertNodeCommand
			if err := decodeDocument(cmd, file, &in); err != nil {
				return err
			}
			if err := in.Validate(); err != nil {
				return err
			}
			node, err := svc.CreateOrUpdateNode(cmd.Context(), in.Node())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), node)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "JSON file, - for stdin")
	return cmd
}

func newPutEdgeCmd(svc *services.GraphService) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "put-edge",
		Short: "Create or replace an edge from a JSON document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var in commands.UpsertEdgeCommand
			if err := decodeDocument(cmd, file, &in); err != nil {
				return err
			}
			if err := in.Validate(); err != nil {
				return err
			}
			edge, err := svc.CreateOrUpdateEdge(cmd.Context(), in.Edge())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), edge)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "JSON file, - for stdin")
	return cmd
}

func newImportCmd(svc *services.GraphService) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|->",
		Short: "Load JSON Lines of {\"node\":...} and {\"edge\":...} records",
		Long: "Load JSON Lines of {\"node\":...} and {\"edge\":...} records. All nodes are " +
			"written before any edge, each group in file order.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, closeFn, err := openInput(cmd, args[0])
			if err != nil {
				return err
			}
			defer closeFn()

			nodes, edges, err := readRecords(r)
			if err != nil {
				return err
			}
			for _, n := range nodes {
				if _, err := svc.CreateOrUpdateNode(cmd.Context(), n.node); err != nil {
					return fmt.Errorf("line %d: %w", n.line, err)
				}
			}
			for _, e := range edges {
				if _, err := svc.CreateOrUpdateEdge(cmd.Context(), e.edge); err != nil {
					return fmt.Errorf("line %d: %w", e.line, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d nodes, %d edges\n", len(nodes), len(edges))
			return nil
		},
	}
}

func newExportCmd(svc *services.GraphService) *cobra.Command {
	return &cobra.Command{
		Use:   "export [file|-]",
		Short: "Write every node, then every edge, as JSON Lines",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 || args[0] == "-" {
				return exportRecords(cmd.Context(), svc, cmd.OutOrStdout())
			}
			f, err := os.Create(args[0])
			if err != nil {
				return err
			}
			err = exportRecords(cmd.Context(), svc, f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			return err
		},
	}
}

// exportRecords writes every node, then every edge, to out as JSON Lines.
func exportRecords(ctx context.Context, svc *services.GraphService, out io.Writer) error {
	w := bufio.NewWriter(out)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	take := svc.StrictPolicy().MaxTake

	for skip := 0; ; skip += take {
		page, err := svc.QueryNodes(ctx, queries.NodeQuery{Page: common.Page{Skip: skip, Take: take}})
		if err != nil {
			return err
		}
		for _, n := range page.Items {
			if err := enc.Encode(record{Node: n}); err != nil {
				return err
			}
		}
		if skip+take >= page.TotalCount {
			break
		}
	}
	for skip := 0; ; skip += take {
		page, err := svc.QueryEdges(ctx, queries.EdgeQuery{Page: common.Page{Skip: skip, Take: take}})
		if err != nil {
			return err
		}
		for _, e := range page.Items {
			if err := enc.Encode(record{Edge: e}); err != nil {
				return err
			}
		}
		if skip+take >= page.TotalCount {
			break
		}
	}
	return w.Flush()
}

type lineNode struct {
	line int
	node *entities.Node
}

type lineEdge struct {
	line int
	edge *entities.Edge
}

func readRecords(r io.Reader) ([]lineNode, []lineEdge, error) {
	var (
		nodes []lineNode
		edges []lineEdge
	)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var rec record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", line, err)
		}
		switch {
		case rec.Node != nil && rec.Edge == nil:
			nodes = append(nodes, lineNode{line: line, node: rec.Node})
		case rec.Edge != nil && rec.Node == nil:
			edges = append(edges, lineEdge{line: line, edge: rec.Edge})
		default:
			return nil, nil, fmt.Errorf("line %d: record must hold exactly one of node or edge", line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	return nodes, edges, nil
}

func openInput(cmd *cobra.Command, name string) (io.Reader, func(), error) {
	if name == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

func decodeDocument(cmd *cobra.Command, name string, v interface{}) error {
	r, closeFn, err := openInput(cmd, name)
	if err != nil {
		return err
	}
	defer closeFn()

	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
