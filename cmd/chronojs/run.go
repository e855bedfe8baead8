package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/willibrandon/ChronoJS/pkg/config"
	"github.com/willibrandon/ChronoJS/pkg/debugger"
	"github.com/willibrandon/ChronoJS/pkg/guest/gojs"
	"github.com/willibrandon/ChronoJS/pkg/instrumentation"
	"github.com/willibrandon/ChronoJS/pkg/metrics"
	"github.com/willibrandon/ChronoJS/pkg/recorder"
	"github.com/willibrandon/ChronoJS/pkg/replay"
	"github.com/willibrandon/ChronoJS/pkg/restore"
	"github.com/willibrandon/ChronoJS/pkg/timeline"
	"github.com/willibrandon/ChronoJS/pkg/value"
)

// topFunctions is how many functions the trace summary lists.
const topFunctions = 10

type runOptions struct {
	verbose     bool
	noCapture   bool
	interactive bool
	dump        string
}

func newRunCmd(v *viper.Viper) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run [flags] <file.js>",
		Short: "Run a script with snapshot capture",
		Long: `Runs a JavaScript file with the global "chrono" capture API installed.

Examples:
  chronojs run app.js                    # Record and print a trace summary
  chronojs run -i app.js                 # Open the debugger after the run
  chronojs run --max-snapshots 50 app.js # Keep only the last 50 snapshots
  chronojs run --dump run.zst app.js     # Save the timeline for inspect`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.noCapture {
				v.Set(config.KeyCaptureEnabled, false)
			}
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			return runScript(cmd, cfg, opts, args[0])
		},
	}

	flags := cmd.Flags()
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log every capture at debug level")
	flags.BoolVar(&opts.noCapture, "no-capture", false, "run without recording snapshots")
	flags.BoolVarP(&opts.interactive, "interactive", "i", false, "open the debugger when the script finishes")
	flags.StringVar(&opts.dump, "dump", "", "write the retained timeline to this archive file")
	flags.Int("max-snapshots", config.DefaultMaxSnapshots, "maximum snapshots kept in the timeline")
	flags.Int("max-depth", value.DefaultConfig().MaxDepth, "maximum nesting depth captured per value")
	v.BindPFlag(config.KeyMaxSnapshots, flags.Lookup("max-snapshots"))
	v.BindPFlag(config.KeyMaxDepth, flags.Lookup("max-depth"))

	return cmd
}

func newLogger(w io.Writer, cfg config.Config, verbose bool) *slog.Logger {
	level, _ := cfg.SlogLevel() // validated by config.Load
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func runScript(cmd *cobra.Command, cfg config.Config, opts runOptions, path string) error {
	logger := newLogger(cmd.ErrOrStderr(), cfg, opts.verbose)
	m := metrics.New()
	compression, _ := recorder.ParseCompression(cfg.Archive.Compression)

	tlOpts := []timeline.Option{timeline.WithLogger(logger), timeline.WithMetrics(m)}
	if cfg.Archive.Path != "" {
		aw, err := recorder.CreateArchive(cfg.Archive.Path, compression)
		if err != nil {
			return fmt.Errorf("open eviction archive: %w", err)
		}
		defer func() {
			if err := aw.Close(); err != nil {
				logger.Error("closing eviction archive", "path", cfg.Archive.Path, "error", err)
			}
		}()
		tlOpts = append(tlOpts, timeline.WithArchiver(aw))
	}
	tl, err := timeline.New(cfg.MaxSnapshots, tlOpts...)
	if err != nil {
		return err
	}

	redactor, err := recorder.NewRedactor(cfg.Redaction)
	if err != nil {
		return err
	}
	serializer := value.NewSerializer(cfg.Serialization)
	session := instrumentation.NewSession(tl, serializer,
		instrumentation.WithLogger(logger),
		instrumentation.WithMetrics(m),
		instrumentation.WithFilter(instrumentation.NewFilter(cfg.Capture)),
		instrumentation.WithRedactor(redactor),
	)

	rt, err := gojs.New(gojs.WithStdout(cmd.OutOrStdout()))
	if err != nil {
		return err
	}
	if err := rt.Install(session); err != nil {
		return fmt.Errorf("install capture API: %w", err)
	}

	logger.Debug("running script", "file", path, "session", session.ID(), "max_snapshots", cfg.MaxSnapshots)
	_, runErr := rt.RunFile(path)
	if runErr != nil {
		logger.Error("script failed", "file", path, "error", runErr)
	}

	printTrace(cmd.OutOrStdout(), session.Trace())

	if opts.dump != "" {
		n, err := dumpTimeline(tl, opts.dump, compression)
		if err != nil {
			return fmt.Errorf("dump timeline: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s snapshots to %s\n", humanize.Comma(int64(n)), opts.dump)
	}

	if opts.interactive {
		r := restore.New(restore.WithLogger(logger), restore.WithMetrics(m), restore.WithSerializer(serializer))
		debugger.NewCLI(replay.NewNavigator(tl), cmd.InOrStdin(), cmd.OutOrStdout(),
			debugger.WithRestore(r, rt.Scope(nil)),
			debugger.WithMetrics(m),
		).Start()
	}
	return runErr
}

func printTrace(w io.Writer, tr instrumentation.Trace) {
	st := tr.Timeline
	fmt.Fprintf(w, "\nExecution trace (session %s)\n", tr.SessionID)
	fmt.Fprintf(w, "  Total calls:     %s\n", humanize.Comma(int64(tr.TotalCalls)))
	fmt.Fprintf(w, "  Max call depth:  %d\n", tr.MaxCallDepth)
	fmt.Fprintf(w, "  Snapshots:       %s retained, %s recorded, %s evicted\n",
		humanize.Comma(int64(st.TotalSnapshots)), humanize.Comma(int64(st.Issued)), humanize.Comma(int64(st.Evicted)))
	if tr.Filtered > 0 {
		fmt.Fprintf(w, "  Filtered:        %s\n", humanize.Comma(int64(tr.Filtered)))
	}
	if tr.CaptureErrors > 0 {
		fmt.Fprintf(w, "  Capture errors:  %s\n", humanize.Comma(int64(tr.CaptureErrors)))
	}
	if len(tr.ActiveCalls) > 0 {
		fmt.Fprintf(w, "  Unfinished:      %v\n", tr.ActiveCalls)
	}
	if len(tr.Functions) == 0 {
		return
	}
	fmt.Fprintf(w, "  Functions:\n")
	for i, f := range tr.Functions {
		if i == topFunctions {
			fmt.Fprintf(w, "    ... %d more\n", len(tr.Functions)-topFunctions)
			break
		}
		fmt.Fprintf(w, "    %-24s %s calls\n", f.Function, humanize.Comma(int64(f.Calls)))
	}
}

// dumpTimeline writes every retained snapshot to path in archive format.
func dumpTimeline(tl *timeline.Timeline, path string, compression recorder.CompressionType) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	aw, err := recorder.NewArchiveWriter(f, compression)
	if err != nil {
		return 0, err
	}
	for s := range tl.Range(timeline.All()) {
		if err := aw.Archive(s); err != nil {
			aw.Close()
			return 0, err
		}
	}
	if err := aw.Close(); err != nil {
		return 0, err
	}
	return aw.Count(), f.Sync()
}
