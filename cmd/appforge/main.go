// Command appforge runs the application generator service and inspects
// the projects it has stored.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/appforge/internal/config"
)

const name = "appforge"

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

type cli struct {
	configFile string
	settings   *config.Settings
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:               name,
		Short:             "Generate and edit application configurations",
		Version:           version,
		SilenceUsage:      true,
		PersistentPreRunE: c.loadSettings,
	}
	root.PersistentFlags().StringVar(&c.configFile, "config", "",
		"path to a YAML or JSON config file")

	root.AddCommand(
		c.serveCmd(),
		c.projectCmd(),
		c.historyCmd(),
		c.runsCmd(),
		c.artifactsCmd(),
	)
	return root
}

func (c *cli) loadSettings(_ *cobra.Command, _ []string) error {
	s, err := config.Read(c.configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	c.settings = s
	return nil
}
