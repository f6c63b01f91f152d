// Package main provides the nornql CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/orneryd/nornql/pkg/catalog"
	"github.com/orneryd/nornql/pkg/compile"
	"github.com/orneryd/nornql/pkg/diag"
	"github.com/orneryd/nornql/pkg/rel"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "nornql",
		Short: "nornql - graph pattern query compiler",
		Long: `nornql compiles declarative graph pattern queries (clause chains of
MATCH, CREATE, RETURN, WITH, SET, REMOVE, DELETE) into a relational query
representation: scans, join predicates, projections, and deferred write
plans. Queries are described in YAML fixture files; see the query key
reference in the repository docs.`,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("nornql v%s (%s)\n", version, commit)
		},
	})

	explainCmd := &cobra.Command{
		Use:   "explain [query.yaml]",
		Short: "Compile a query and print its relational plan",
		Args:  cobra.ExactArgs(1),
		RunE:  runExplain,
	}
	explainCmd.Flags().String("data-dir", getEnvStr("NORNQL_DATA_DIR", ""), "Persist the label catalog in this directory (default: in-memory)")
	explainCmd.Flags().String("graph", getEnvStr("NORNQL_GRAPH", ""), "Graph name, overriding the fixture")
	rootCmd.AddCommand(explainCmd)

	checkCmd := &cobra.Command{
		Use:   "check [query.yaml]",
		Short: "Compile a query and report diagnostics without printing the plan",
		Args:  cobra.ExactArgs(1),
		RunE:  runCheck,
	}
	checkCmd.Flags().String("data-dir", getEnvStr("NORNQL_DATA_DIR", ""), "Persist the label catalog in this directory (default: in-memory)")
	checkCmd.Flags().String("graph", getEnvStr("NORNQL_GRAPH", ""), "Graph name, overriding the fixture")
	rootCmd.AddCommand(checkCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runExplain(cmd *cobra.Command, args []string) error {
	q, err := compileFixture(cmd, args[0])
	if err != nil {
		return diagError(err)
	}
	fmt.Print(rel.Explain(q))
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	if _, err := compileFixture(cmd, args[0]); err != nil {
		return diagError(err)
	}
	fmt.Println("ok")
	return nil
}

func compileFixture(cmd *cobra.Command, path string) (*rel.Query, error) {
	f, err := loadFixture(path)
	if err != nil {
		return nil, err
	}

	graph := f.Graph
	if override, _ := cmd.Flags().GetString("graph"); override != "" {
		graph = override
	}
	if graph == "" {
		graph = "default"
	}

	cat, closeCat, err := openCatalog(cmd, graph)
	if err != nil {
		return nil, err
	}
	defer closeCat()

	if err := seedLabels(cat, f.Labels); err != nil {
		return nil, err
	}

	chain, err := buildChain(f.Query)
	if err != nil {
		return nil, err
	}
	return compile.New(cat).Compile(chain)
}

func openCatalog(cmd *cobra.Command, graph string) (catalog.Catalog, func(), error) {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	if dataDir == "" {
		return catalog.NewMemory(graph), func() {}, nil
	}
	bc, err := catalog.OpenBadger(catalog.BadgerCatalogOptions{
		DataDir: dataDir,
		Graph:   graph,
	})
	if err != nil {
		return nil, nil, err
	}
	return bc, func() { _ = bc.Close() }, nil
}

func seedLabels(cat catalog.Catalog, labels []fixtureLabel) error {
	for _, l := range labels {
		if cat.LabelExists(l.Name) {
			continue
		}
		var kind catalog.Kind
		switch l.Kind {
		case "", "vertex":
			kind = catalog.KindVertex
		case "edge":
			kind = catalog.KindEdge
		default:
			return fmt.Errorf("label %s: unknown kind %q", l.Name, l.Kind)
		}
		if _, err := cat.CreateLabel(l.Name, kind, l.Parent); err != nil {
			return fmt.Errorf("failed to seed label %s: %w", l.Name, err)
		}
	}
	return nil
}

// diagError renders structured diagnostics with their code so scripted
// callers can match on it.
func diagError(err error) error {
	if code := diag.CodeOf(err); code != "" {
		return fmt.Errorf("[%s] %w", code, err)
	}
	return err
}

func getEnvStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
