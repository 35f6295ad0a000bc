package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/conneroisu/assetc/internal/backend"
	"github.com/conneroisu/assetc/internal/dispatch"
	"github.com/conneroisu/assetc/internal/pipeline"
)

var buildCmd = &cobra.Command{
	Use:     "build <request-path>...",
	Aliases: []string{"b"},
	Short:   "Compile the artifacts for request paths",
	Long: `Run the enabled backends for each request path, exactly as the server
would for a request, without starting a server.

Examples:
  assetc build /app.js /site.css
  assetc build /app.min.js --backend coffee --backend uglify
  assetc build /app.js --set bare=false`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBuild,
}

var (
	buildSet      = newOptionsValue()
	buildBackends []string
	buildMethod   string
	buildVerbose  bool
)

func init() {
	rootCmd.AddCommand(buildCmd)

	fs := buildCmd.Flags()
	fs.Var(buildSet, "set", "Per-call backend option (repeatable)")
	fs.StringSliceVar(&buildBackends, "backend", nil, "Backends to run instead of the enabled list")
	fs.StringVar(&buildMethod, "method", "GET", "Request method")
	fs.BoolVarP(&buildVerbose, "verbose", "v", false, "Also report backends that did not match")
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	summaries := buildPaths(cmd.Context(), a.dispatcher, args, buildSet.Options(), buildBackends)
	failed := writeBuildReport(cmd.OutOrStdout(), summaries, buildVerbose)
	if failed > 0 {
		return fmt.Errorf("%d backend run(s) failed", failed)
	}
	return nil
}

func buildPaths(ctx context.Context, d *dispatch.Dispatcher, paths []string, opts backend.Options, backends []string) []dispatch.Summary {
	if ctx == nil {
		ctx = context.Background()
	}
	out := make([]dispatch.Summary, 0, len(paths))
	for _, p := range paths {
		out = append(out, d.Handle(ctx, dispatch.Call{
			Method:   buildMethod,
			URL:      p,
			Options:  opts,
			Backends: backends,
		}))
	}
	return out
}

// writeBuildReport prints one row per outcome and returns the number of
// failures.
func writeBuildReport(out io.Writer, summaries []dispatch.Summary, verbose bool) int {
	title := cases.Title(language.English)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	failed := 0
	for _, s := range summaries {
		if s.Passthrough {
			fmt.Fprintf(w, "Passthrough\t-\t%s\t\n", s.Request.Path)
			continue
		}
		reported := 0
		for _, o := range s.Outcomes {
			if o.Failed() {
				failed++
			}
			if !verbose && (o.Status == pipeline.StatusNoMatch || o.Status == pipeline.StatusNotFound) {
				continue
			}
			reported++
			detail := ""
			switch {
			case o.Failed():
				detail = o.Err.Error()
			case o.Artifact != nil:
				detail = o.Artifact.Dest
			}
			status := title.String(strings.ReplaceAll(string(o.Status), "_", " "))
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", status, o.Backend, s.Request.Path, detail)
		}
		if reported == 0 {
			fmt.Fprintf(w, "Unmatched\t-\t%s\t\n", s.Request.Path)
		}
	}
	return failed
}
