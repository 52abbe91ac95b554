package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"pyscope/internal/core/app"
	"pyscope/internal/core/ports"
	"pyscope/internal/engine/query"
)

type outputOptions struct {
	queries []string
	json    bool
}

func (o *outputOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&o.queries, "query", "q", nil,
		"Queries to run: classes, classes_with_parents, functions, functions_under_classes, comments (default all)")
	cmd.Flags().BoolVar(&o.json, "json", false, "Print results as JSON")
}

func newAnalyzeCmd(root *rootOptions) *cobra.Command {
	var (
		out    outputOptions
		engine string
	)
	cmd := &cobra.Command{
		Use:   "analyze <path>",
		Short: "Analyze a local source file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			queries, err := ports.ParseQueries(out.queries)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			if engine == "" {
				engine = cfg.Analysis.Engine
			}
			eng, err := app.NewEngine(engine, app.EngineOptions(cfg))
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			report, err := eng.Analyze(filepath.Base(args[0]), data)
			if err != nil {
				return err
			}
			res, err := report.Result(queries)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), res, queries, out.json)
		},
	}
	out.bind(cmd)
	cmd.Flags().StringVar(&engine, "engine", "", "Engine: native or treesitter (default from config)")
	return cmd
}

func printResult(w io.Writer, res ports.AnalysisResult, queries []ports.Query, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	for i, q := range queries {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s:\n", q)
		switch q {
		case ports.QueryClasses:
			writeList(w, *res.Classes)
		case ports.QueryClassesWithParents:
			writeInheritance(w, *res.ClassesWithParents)
		case ports.QueryFunctions:
			writeList(w, *res.Functions)
		case ports.QueryFunctionsUnderClasses:
			writeBuckets(w, res.Grouped)
		case ports.QueryComments:
			fmt.Fprintln(w, app.RenderComments(*res.Comments))
		}
	}
	return nil
}

func writeList(w io.Writer, items []string) {
	if len(items) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	for _, item := range items {
		fmt.Fprintf(w, "  %s\n", item)
	}
}

func writeInheritance(w io.Writer, classes []query.ClassInfo) {
	if len(classes) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	for _, c := range classes {
		parents := "-"
		if len(c.ParentClasses) > 0 {
			parents = strings.Join(c.ParentClasses, ", ")
		}
		fmt.Fprintf(w, "  %s: %s\n", c.ClassName, parents)
	}
}

func writeBuckets(w io.Writer, buckets []query.Bucket) {
	for _, b := range buckets {
		fmt.Fprintf(w, "  %s: %s\n", b.Scope, strings.Join(b.Functions, ", "))
	}
}
