// Package cli implements the decima command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/meigma/decima/internal/config"
)

const (
	groupBrowse  = "browse"
	groupExport  = "export"
	groupTooling = "tooling"
)

var (
	// Colors for help output sections
	groupTitleColor   = color.New(color.FgCyan, color.Bold)
	sectionTitleColor = color.New(color.FgBlue, color.Bold)
)

// globals holds the persistent flags shared by every command.
type globals struct {
	dataDir string
	verbose bool
}

// logger returns a text logger on w at warn level, or debug with --verbose.
func (g *globals) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if g.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// config loads the persisted configuration and the path it lives at.
func (g *globals) config() (*config.Config, *config.Paths, error) {
	paths, err := config.DefaultPaths()
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return nil, nil, err
	}
	return cfg, paths, nil
}

// NewRootCmd builds the decima command tree.
func NewRootCmd(version string) *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:     "decima",
		Version: version,
		Short:   "Browse and extract hash-addressed game archives",
		Long: `decima browses a directory of hash-addressed archive containers.

Files are resolved across every loaded container with later containers
overriding earlier ones. Names come from the prefetch index when present.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	root.SetVersionTemplate("{{.Version}}\n")
	root.SetHelpFunc(helpFunc)

	root.PersistentFlags().StringVar(&g.dataDir, "data-dir", "", "directory of containers (default: configured data directory)")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "enable debug logging")

	root.AddGroup(
		&cobra.Group{ID: groupBrowse, Title: "Browse:"},
		&cobra.Group{ID: groupExport, Title: "Export:"},
		&cobra.Group{ID: groupTooling, Title: "Tooling:"},
	)

	for _, cmd := range []*cobra.Command{
		newArchivesCmd(g),
		newEntriesCmd(g),
		newTreeCmd(g),
		newFindCmd(g),
		newInfoCmd(g),
		newInspectCmd(g),
	} {
		cmd.GroupID = groupBrowse
		root.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{newExportCmd(g), newPackCmd(g)} {
		cmd.GroupID = groupExport
		root.AddCommand(cmd)
	}
	configCmd := newConfigCmd(g)
	configCmd.GroupID = groupTooling
	root.AddCommand(configCmd)
	root.SetHelpCommandGroupID(groupTooling)

	return root
}

// helpFunc renders help with colored group titles.
func helpFunc(cmd *cobra.Command, _ []string) {
	var help strings.Builder

	if cmd.Long != "" {
		help.WriteString(cmd.Long)
		help.WriteString("\n\n")
	} else if cmd.Short != "" {
		help.WriteString(cmd.Short)
		help.WriteString("\n\n")
	}

	help.WriteString(sectionTitleColor.Sprint("Usage:"))
	help.WriteString("\n")
	fmt.Fprintf(&help, "  %s\n\n", cmd.UseLine())

	for _, group := range cmd.Groups() {
		help.WriteString(groupTitleColor.Sprint(group.Title))
		help.WriteString("\n")
		for _, c := range cmd.Commands() {
			if c.GroupID == group.ID && c.IsAvailableCommand() {
				fmt.Fprintf(&help, "  %-11s %s\n", c.Name(), c.Short)
			}
		}
		help.WriteString("\n")
	}

	if len(cmd.Groups()) == 0 && cmd.HasAvailableSubCommands() {
		help.WriteString(sectionTitleColor.Sprint("Commands:"))
		help.WriteString("\n")
		for _, c := range cmd.Commands() {
			if c.IsAvailableCommand() {
				fmt.Fprintf(&help, "  %-11s %s\n", c.Name(), c.Short)
			}
		}
		help.WriteString("\n")
	}

	if cmd.HasAvailableLocalFlags() || cmd.HasAvailableInheritedFlags() {
		help.WriteString(sectionTitleColor.Sprint("Flags:"))
		help.WriteString("\n")
		help.WriteString(cmd.LocalFlags().FlagUsages())
		help.WriteString(cmd.InheritedFlags().FlagUsages())
		help.WriteString("\n")
	}

	if cmd.HasAvailableSubCommands() {
		fmt.Fprintf(&help, "Use \"%s [command] --help\" for more information about a command.\n", cmd.CommandPath())
	}

	fmt.Fprint(cmd.OutOrStdout(), help.String())
}
