package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/willibrandon/ChronoJS/pkg/config"
	"github.com/willibrandon/ChronoJS/pkg/debugger"
	"github.com/willibrandon/ChronoJS/pkg/guest/gojs"
	"github.com/willibrandon/ChronoJS/pkg/recorder"
	"github.com/willibrandon/ChronoJS/pkg/replay"
	"github.com/willibrandon/ChronoJS/pkg/restore"
	"github.com/willibrandon/ChronoJS/pkg/timeline"
)

func newInspectCmd(v *viper.Viper) *cobra.Command {
	var (
		compression string
		interactive bool
	)

	cmd := &cobra.Command{
		Use:   "inspect [flags] <archive>",
		Short: "Load a dumped or evicted timeline",
		Long: `Loads snapshots written by "run --dump" or the eviction archive and
prints a summary. With -i the debugger opens over them, restoring into a
fresh JavaScript runtime.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("compression") {
				compression = cfg.Archive.Compression
			}
			ct, err := recorder.ParseCompression(compression)
			if err != nil {
				return err
			}

			snaps, err := recorder.ReadArchiveFile(args[0], ct)
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			if len(snaps) == 0 {
				return fmt.Errorf("%s holds no snapshots", args[0])
			}

			logger := newLogger(cmd.ErrOrStderr(), cfg, false)
			tl, err := timeline.New(len(snaps), timeline.WithLogger(logger))
			if err != nil {
				return err
			}
			for _, s := range snaps {
				if _, err := tl.Append(s); err != nil {
					return fmt.Errorf("load snapshot %d: %w", s.ID, err)
				}
			}

			out := cmd.OutOrStdout()
			st := tl.Stats()
			fmt.Fprintf(out, "%s: %s snapshots (#%d to #%d), %s function calls, max depth %d\n",
				args[0], humanize.Comma(int64(st.TotalSnapshots)), snaps[0].ID, snaps[len(snaps)-1].ID,
				humanize.Comma(int64(st.FunctionCallCount)), st.MaxDepthReached)
			for _, s := range tl.Recent(5) {
				fmt.Fprintf(out, "  #%d %s %s (%d vars)\n", s.ID, s.Kind, s.Function, s.VariableCount)
			}

			if interactive {
				rt, err := gojs.New(gojs.WithStdout(out))
				if err != nil {
					return err
				}
				debugger.NewCLI(replay.NewNavigator(tl), cmd.InOrStdin(), out,
					debugger.WithRestore(restore.New(restore.WithLogger(logger)), rt.Scope(nil)),
				).Start()
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&compression, "compression", recorder.DefaultCompression.String(), "archive compression (zstd or none)")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "open the debugger over the loaded snapshots")
	return cmd
}
