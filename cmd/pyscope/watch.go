package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"pyscope/internal/core/app"
	"pyscope/internal/core/watcher"
	"pyscope/internal/engine/analyzer"
)

func newWatchCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [dir...]",
		Short: "Re-analyze source files as they change",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{"."}
			}
			a, err := openApp(root)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			defer startObservability(ctx, a)()

			eng, err := app.NewEngine(a.Config.Analysis.Engine, app.EngineOptions(a.Config))
			if err != nil {
				return err
			}
			summarize := summarizer(cmd.OutOrStdout(), eng)

			w, err := watcher.New(watcher.Options{
				Debounce:     a.Config.Watch.Debounce,
				ExcludeDirs:  a.Config.Exclude.Dirs,
				ExcludeFiles: a.Config.Exclude.Files,
				Extensions:   a.Config.Analysis.Extensions,
			}, summarize)
			if err != nil {
				return err
			}
			defer w.Close()

			if err := w.Watch(ctx, args); err != nil {
				return err
			}
			slog.Info("watching", "roots", args, "engine", eng.Name())
			<-ctx.Done()
			return nil
		},
	}
}

// summarizer returns a watcher callback that prints one line per path.
func summarizer(w io.Writer, eng analyzer.Engine) func([]string) {
	var mu sync.Mutex
	return func(paths []string) {
		mu.Lock()
		defer mu.Unlock()
		for _, path := range paths {
			fmt.Fprintln(w, summarizeFile(eng, path))
		}
	}
}

func summarizeFile(eng analyzer.Engine, path string) string {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return fmt.Sprintf("%s: removed", path)
	}
	if err != nil {
		return fmt.Sprintf("%s: error: %v", path, err)
	}
	report, err := eng.Analyze(filepath.Base(path), data)
	if err != nil {
		return fmt.Sprintf("%s: error: %v", path, err)
	}
	classes, err := report.Classes()
	if err != nil {
		return fmt.Sprintf("%s: error: %v", path, err)
	}
	funcs, err := report.Functions()
	if err != nil {
		return fmt.Sprintf("%s: error: %v", path, err)
	}
	return fmt.Sprintf("%s: %d classes, %d functions, %d comments, %d anomalies",
		path, len(classes), len(funcs), len(report.Comments), len(report.Anomalies))
}

