// Command chronojs runs a JavaScript program under the time-travel recorder
// and lets you step through the captured snapshots.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/willibrandon/ChronoJS/pkg/config"
	"github.com/willibrandon/ChronoJS/pkg/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()
	var configFile string

	root := &cobra.Command{
		Use:   "chronojs",
		Short: "Time-travel debugger for JavaScript",
		Long: `ChronoJS records snapshots of a JavaScript program's state as it runs
and lets you move backward and forward through them, inspect captured
variables and restore them into a live runtime.

Configuration is read from chronojs.yaml in the working directory or
~/.chronojs/, then from CHRONOJS_* environment variables, then flags.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return readConfig(v, configFile)
		},
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (default chronojs.yaml in . or ~/.chronojs)")

	root.AddCommand(newRunCmd(v), newInspectCmd(v), newVersionCmd())
	return root
}

func readConfig(v *viper.Viper, file string) error {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", file, err)
		}
		return nil
	}
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".chronojs"))
	}
	return config.ReadFile(v, "chronojs", paths...)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.GetVersionInfo())
		},
	}
}
