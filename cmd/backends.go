package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/assetc/internal/backend"
	"github.com/conneroisu/assetc/internal/config"
)

var backendsCmd = &cobra.Command{
	Use:     "backends",
	Aliases: []string{"ls"},
	Short:   "List the registered backends",
	Long: `List every registered backend with its match rule and source extension.
Backends named in the enabled list of the configuration are marked.

Examples:
  assetc backends
  assetc backends -o json
  assetc backends -o yaml`,
	RunE: runBackends,
}

var backendsFormat string

func init() {
	rootCmd.AddCommand(backendsCmd)
	addOutputFlag(backendsCmd.Flags(), &backendsFormat)
}

type backendRow struct {
	backend.Info `yaml:",inline"`
	Enabled      bool `json:"enabled" yaml:"enabled"`
}

func runBackends(cmd *cobra.Command, _ []string) error {
	if err := validateFormat(backendsFormat, outputFormats); err != nil {
		return err
	}

	// listing works without a usable configuration
	var enabled []string
	if cfg, err := config.Load(); err == nil {
		enabled = cfg.Enabled
	}
	logger, err := newLogger(&config.Config{LogLevel: "silent"}, nil)
	if err != nil {
		return err
	}
	reg, err := newRegistry(logger)
	if err != nil {
		return err
	}
	return writeBackends(cmd.OutOrStdout(), backendsFormat, reg, enabled)
}

func writeBackends(out io.Writer, format string, reg *backend.Registry, enabled []string) error {
	on := make(map[string]bool, len(enabled))
	for _, id := range enabled {
		on[id] = true
	}
	infos := reg.Describe()
	rows := make([]backendRow, 0, len(infos))
	for _, info := range infos {
		rows = append(rows, backendRow{Info: info, Enabled: on[info.ID]})
	}

	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(rows)
	default:
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		defer w.Flush()
		fmt.Fprintln(w, "ID\tNAME\tMATCH\tSOURCE\tWRAPS\tENABLED")
		fmt.Fprintln(w, strings.Join([]string{"--", "----", "-----", "------", "-----", "-------"}, "\t"))
		for _, r := range rows {
			wraps := r.Wraps
			if wraps == "" {
				wraps = "-"
			}
			mark := ""
			if r.Enabled {
				mark = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.Name, r.Match, r.SourceExt, wraps, mark)
		}
		return nil
	}
}
