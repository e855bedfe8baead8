// Package debugger implements the interactive time-travel console over a
// recorded timeline.
package debugger

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/willibrandon/ChronoJS/pkg/guest"
	"github.com/willibrandon/ChronoJS/pkg/metrics"
	"github.com/willibrandon/ChronoJS/pkg/recorder"
	"github.com/willibrandon/ChronoJS/pkg/replay"
	"github.com/willibrandon/ChronoJS/pkg/restore"
	"github.com/willibrandon/ChronoJS/pkg/timeline"
)

const prompt = "(chrono) "

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2CD7C7"))
	idStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#20B9B4"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#2C4A54"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#E74C3C"))
)

// CLI represents the command-line interface for the debugger
type CLI struct {
	nav       *replay.Navigator
	restorer  *restore.Restorer
	scope     guest.Scope
	metrics   *metrics.Collector
	bpManager *BreakpointManager

	in      io.Reader
	out     io.Writer
	color   bool
	running bool
}

// Option configures a CLI
type Option func(*CLI)

// WithRestore enables the restore command, rebuilding snapshots into scope.
func WithRestore(r *restore.Restorer, scope guest.Scope) Option {
	return func(c *CLI) {
		c.restorer = r
		c.scope = scope
	}
}

// WithMetrics enables the metrics command.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *CLI) {
		c.metrics = m
	}
}

// NewCLI creates a console reading commands from in and writing to out.
// Output is styled only when out is a terminal.
func NewCLI(nav *replay.Navigator, in io.Reader, out io.Writer, opts ...Option) *CLI {
	c := &CLI{
		nav:       nav,
		bpManager: NewBreakpointManager(),
		in:        in,
		out:       out,
	}
	if f, ok := out.(*os.File); ok {
		c.color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start runs the command loop until quit or end of input.
func (c *CLI) Start() {
	c.running = true
	scanner := bufio.NewScanner(c.in)

	tl := c.nav.Timeline()
	c.printf("%s\n", c.paint(titleStyle, "ChronoJS time-travel debugger"))
	c.printf("%s snapshots recorded. Type 'help' for commands.\n", humanize.Comma(int64(tl.Len())))

	for c.running {
		c.printf("%s", prompt)
		if !scanner.Scan() {
			c.printf("\n")
			break
		}
		c.handleCommand(strings.TrimSpace(scanner.Text()))
	}
	c.running = false
}

func (c *CLI) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

func (c *CLI) paint(st lipgloss.Style, s string) string {
	if !c.color {
		return s
	}
	return st.Render(s)
}

func (c *CLI) errorf(format string, args ...any) {
	c.printf("%s\n", c.paint(errStyle, fmt.Sprintf(format, args...)))
}

// printHelp displays available commands
func (c *CLI) printHelp() {
	c.printf("\nNavigation:\n")
	c.printf("  step (s) [n]          - Step forward n snapshots\n")
	c.printf("  back (b) [n]          - Step backward n snapshots\n")
	c.printf("  continue (c)          - Run forward to the next breakpoint\n")
	c.printf("  rcontinue (rc)        - Run backward to the previous breakpoint\n")
	c.printf("  jump (j) <id>         - Jump to a snapshot id\n")
	c.printf("  time (t) <when>       - Jump to the last snapshot at or before a time\n")
	c.printf("  find (f) <function>   - List snapshots of a function\n")
	c.printf("\nInspection:\n")
	c.printf("  info (i)              - Show the current snapshot\n")
	c.printf("  print (p) [var]       - Print captured variables\n")
	c.printf("  stack (bt)            - Show the call stack at the cursor\n")
	c.printf("  recent [n]            - List the last n snapshots\n")
	c.printf("  stats                 - Show timeline statistics\n")
	if c.restorer != nil {
		c.printf("  restore (r) [id]      - Restore a snapshot into the guest and verify it\n")
	}
	if c.metrics != nil {
		c.printf("  metrics               - Show collected metrics\n")
	}
	c.printf("\nBreakpoints:\n")
	c.printf("  breakpoint (bp) <loc> - Set a breakpoint (func:<name>, kind:<kind>, var:<name>)\n")
	c.printf("  bp list|remove|enable|disable [id]\n")
	c.printf("  list (l)              - List all breakpoints\n")
	c.printf("\nGeneral commands:\n")
	c.printf("  help (h)              - Show this help message\n")
	c.printf("  quit (q)              - Exit the debugger\n")
}

// handleCommand processes user input
func (c *CLI) handleCommand(input string) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return
	}

	cmd := parts[0]
	args := parts[1:]

	switch cmd {
	case "h", "help":
		c.printHelp()
	case "s", "step":
		c.handleStep(args, c.nav.StepForward)
	case "b", "back", "backstep":
		c.handleStep(args, c.nav.StepBackward)
	case "c", "continue":
		c.handleContinue(c.nav.ContinueForward)
	case "rc", "rcontinue":
		c.handleContinue(c.nav.ContinueBackward)
	case "j", "jump":
		c.handleJump(args)
	case "t", "time":
		c.handleTime(args)
	case "f", "find":
		c.handleFind(args)
	case "i", "info":
		c.handleInfo()
	case "p", "print":
		c.handlePrint(args)
	case "bt", "stack":
		c.handleStack()
	case "recent":
		c.handleRecent(args)
	case "stats":
		c.handleStats()
	case "r", "restore":
		c.handleRestore(args)
	case "metrics":
		c.handleMetrics()
	case "bp", "breakpoint":
		c.handleBreakpointCommand(args)
	case "l", "list":
		c.handleListBreakpoints()
	case "q", "quit", "exit":
		c.running = false
	default:
		c.printf("Unknown command: %s\n", cmd)
		c.printHelp()
	}
}

// formatSnapshot returns a one-line representation of a snapshot
func (c *CLI) formatSnapshot(s recorder.Snapshot) string {
	line := fmt.Sprintf("[%s] %s %s %s (depth %d, %d vars)",
		s.Timestamp.Format("15:04:05.000"),
		c.paint(idStyle, fmt.Sprintf("#%d", s.ID)),
		s.Kind,
		s.Function,
		s.Depth,
		len(s.Variables))
	if s.Kind == recorder.FunctionExit {
		line += " " + c.paint(mutedStyle, s.Duration.String())
	}
	return line
}

func count(args []string) (int, error) {
	if len(args) == 0 {
		return 1, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid count %q", args[0])
	}
	return n, nil
}

// handleStep moves n snapshots with move, stopping early at either end
func (c *CLI) handleStep(args []string, move func() (recorder.Snapshot, error)) {
	n, err := count(args)
	if err != nil {
		c.errorf("%v", err)
		return
	}

	var s recorder.Snapshot
	moved := 0
	for ; moved < n; moved++ {
		next, err := move()
		if err != nil {
			if moved == 0 {
				c.errorf("%v", err)
				return
			}
			c.printf("Stopped after %d steps: %v\n", moved, err)
			break
		}
		s = next
	}
	c.printf("%s\n", c.formatSnapshot(s))
}

// handleContinue runs to the next enabled breakpoint in one direction
func (c *CLI) handleContinue(run func(timeline.Predicate) (recorder.Snapshot, error)) {
	s, err := run(c.bpManager.Predicate())
	switch {
	case errors.Is(err, replay.ErrAtEnd), errors.Is(err, replay.ErrAtStart):
		cur, ok := c.nav.Current()
		if !ok {
			c.errorf("%v", err)
			return
		}
		c.printf("No breakpoint hit (%v)\n", err)
		c.printf("%s\n", c.formatSnapshot(cur))
		return
	case err != nil:
		c.errorf("%v", err)
		return
	}

	if bp, ok := c.bpManager.CheckBreakpoint(s); ok {
		c.printf("Breakpoint %d (%s) hit\n", bp.ID, bp.Location())
	}
	c.printf("%s\n", c.formatSnapshot(s))
}

func (c *CLI) handleJump(args []string) {
	if len(args) < 1 {
		c.printf("Usage: jump <id>\n")
		return
	}
	id, err := strconv.ParseUint(strings.TrimPrefix(args[0], "#"), 10, 64)
	if err != nil {
		c.errorf("Invalid snapshot id: %v", err)
		return
	}
	s, err := c.nav.JumpTo(recorder.ID(id))
	if err != nil {
		c.errorf("%v", err)
		return
	}
	c.printf("%s\n", c.formatSnapshot(s))
}

func (c *CLI) handleTime(args []string) {
	if len(args) < 1 {
		c.printf("Usage: time <RFC3339 timestamp | unix millis>\n")
		return
	}
	t, err := parseTime(args[0])
	if err != nil {
		c.errorf("Invalid time: %v", err)
		return
	}
	s, err := c.nav.JumpToTime(t)
	if err != nil {
		c.errorf("%v", err)
		return
	}
	c.printf("%s\n", c.formatSnapshot(s))
}

// parseTime accepts an RFC 3339 timestamp or Unix milliseconds, the unit
// guest dates use.
func parseTime(s string) (time.Time, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func (c *CLI) handleFind(args []string) {
	if len(args) < 1 {
		c.printf("Usage: find <function>\n")
		return
	}
	ids := c.nav.FindByFunction(args[0])
	if len(ids) == 0 {
		c.printf("No snapshots for %s\n", args[0])
		return
	}
	c.printf("%d snapshots for %s:\n", len(ids), args[0])
	for _, id := range ids {
		s, err := c.nav.Timeline().Get(id)
		if err != nil {
			continue
		}
		c.printf("  %s\n", c.formatSnapshot(s))
	}
}

// handleInfo shows the snapshot under the cursor
func (c *CLI) handleInfo() {
	s, ok := c.nav.Current()
	if !ok {
		c.printf("No current snapshot\n")
		return
	}
	c.printf("\nCurrent snapshot: %s\n", c.formatSnapshot(s))
	c.printf("  Position: %d of %d\n", c.nav.Position()+1, c.nav.Timeline().Len())
	if names := s.Names(); len(names) > 0 {
		c.printf("  Variables: %s\n", strings.Join(names, ", "))
	}
}

func (c *CLI) handlePrint(args []string) {
	s, ok := c.nav.Current()
	if !ok {
		c.printf("No current snapshot\n")
		return
	}

	vars := s.Variables
	if len(args) > 0 {
		v, ok := s.Lookup(args[0])
		if !ok {
			c.errorf("No variable %s in snapshot #%d", args[0], s.ID)
			return
		}
		vars = []recorder.Variable{{Name: args[0], Value: v}}
	}
	if len(vars) == 0 {
		c.printf("No variables captured\n")
		return
	}
	if err := writeVariables(c.out, vars); err != nil {
		c.errorf("Error printing variables: %v", err)
	}
}

func (c *CLI) handleStack() {
	if _, ok := c.nav.Current(); !ok {
		c.printf("No current snapshot\n")
		return
	}
	frames := c.nav.CallStack()
	if len(frames) == 0 {
		c.printf("No active calls\n")
		return
	}
	for i := len(frames) - 1; i >= 0; i-- {
		f := frames[i]
		c.printf("  %d  %s %s\n", len(frames)-1-i, f.Function, c.paint(mutedStyle, fmt.Sprintf("(entered at #%d)", f.Entry)))
	}
}

func (c *CLI) handleRecent(args []string) {
	n := 5
	if len(args) > 0 {
		var err error
		if n, err = count(args); err != nil {
			c.errorf("%v", err)
			return
		}
	}
	for _, s := range c.nav.Timeline().Recent(n) {
		c.printf("  %s %s %s (%d vars)\n", c.paint(idStyle, fmt.Sprintf("#%d", s.ID)), s.Kind, s.Function, s.VariableCount)
	}
}

func (c *CLI) handleStats() {
	st := c.nav.Timeline().Stats()
	c.printf("\nTimeline statistics:\n")
	c.printf("  Snapshots retained:  %s of %s\n", humanize.Comma(int64(st.TotalSnapshots)), humanize.Comma(int64(c.nav.Timeline().Capacity())))
	c.printf("  Snapshots recorded:  %s\n", humanize.Comma(int64(st.Issued)))
	c.printf("  Snapshots evicted:   %s\n", humanize.Comma(int64(st.Evicted)))
	c.printf("  Function calls:      %s\n", humanize.Comma(int64(st.FunctionCallCount)))
	c.printf("  Max call depth:      %d\n", st.MaxDepthReached)
	if st.CurrentCursorFunction != "" {
		c.printf("  Cursor function:     %s\n", st.CurrentCursorFunction)
	}
}

// handleRestore rebuilds the current (or given) snapshot into the guest and
// checks the result against the capture
func (c *CLI) handleRestore(args []string) {
	if c.restorer == nil {
		c.printf("Restore is not available in this session\n")
		return
	}

	var (
		s   recorder.Snapshot
		err error
	)
	if len(args) > 0 {
		id, perr := strconv.ParseUint(strings.TrimPrefix(args[0], "#"), 10, 64)
		if perr != nil {
			c.errorf("Invalid snapshot id: %v", perr)
			return
		}
		s, err = c.nav.Timeline().Get(recorder.ID(id))
	} else {
		var ok bool
		if s, ok = c.nav.Current(); !ok {
			err = errors.New("no current snapshot")
		}
	}
	if err != nil {
		c.errorf("%v", err)
		return
	}

	rep := c.restorer.Restore(context.Background(), s, c.scope)
	c.printf("Restored snapshot #%d: %d bound, %d sentinels, %d degraded\n",
		s.ID, len(rep.Bound), rep.Sentinels, len(rep.Degraded))
	for _, f := range rep.Degraded {
		c.printf("  degraded %s\n", f)
	}
	for _, f := range rep.Failures {
		c.errorf("  failed %s", f)
	}
	if len(rep.Skipped) > 0 {
		c.printf("  skipped %s\n", strings.Join(rep.Skipped, ", "))
	}
	if !rep.Complete() {
		return
	}

	if ok, err := c.restorer.VerifyConsistency(s, c.scope); !ok {
		c.errorf("Verification failed: %v", err)
		return
	}
	c.printf("Verified: guest state matches the snapshot\n")
}

func (c *CLI) handleMetrics() {
	if c.metrics == nil {
		c.printf("Metrics are not enabled\n")
		return
	}
	families, err := c.metrics.Gather()
	if err != nil {
		c.errorf("Error gathering metrics: %v", err)
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
			}
			sort.Strings(labels)
			name := mf.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}

			switch {
			case m.GetCounter() != nil:
				c.printf("  %s %s\n", name, humanize.Ftoa(m.GetCounter().GetValue()))
			case m.GetGauge() != nil:
				c.printf("  %s %s\n", name, humanize.Ftoa(m.GetGauge().GetValue()))
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				c.printf("  %s count=%d sum=%s\n", name, h.GetSampleCount(), humanize.Ftoa(h.GetSampleSum()))
			}
		}
	}
}

// handleBreakpointCommand handles all breakpoint-related commands
func (c *CLI) handleBreakpointCommand(args []string) {
	if len(args) == 0 {
		c.printf("Usage: breakpoint <location> or <command> [args]\n")
		c.printf("Commands: list, remove, enable, disable\n")
		return
	}

	command := args[0]
	if command == "list" {
		c.handleListBreakpoints()
		return
	}

	var action func(int) error
	switch command {
	case "remove":
		action = c.bpManager.RemoveBreakpoint
	case "enable":
		action = c.bpManager.EnableBreakpoint
	case "disable":
		action = c.bpManager.DisableBreakpoint
	default:
		// If not a command, treat as location
		bp, err := c.bpManager.AddBreakpoint(command)
		if err != nil {
			c.errorf("Error setting breakpoint: %v", err)
			return
		}
		c.printf("Breakpoint %d set at %s\n", bp.ID, bp.Location())
		return
	}

	if len(args) < 2 {
		c.printf("Usage: bp %s <id>\n", command)
		return
	}
	id, err := strconv.Atoi(args[1])
	if err != nil {
		c.errorf("Invalid breakpoint ID: %v", err)
		return
	}
	if err := action(id); err != nil {
		c.errorf("%v", err)
		return
	}
	c.printf("%s breakpoint %d\n", map[string]string{"remove": "Removed", "enable": "Enabled", "disable": "Disabled"}[command], id)
}

// handleListBreakpoints lists all breakpoints
func (c *CLI) handleListBreakpoints() {
	bps := c.bpManager.GetBreakpoints()
	if len(bps) == 0 {
		c.printf("No breakpoints set\n")
		return
	}
	c.printf("\nBreakpoints:\n")
	for _, bp := range bps {
		state := "enabled"
		if !bp.Enabled {
			state = "disabled"
		}
		c.printf("  %d: %s (%s)\n", bp.ID, bp.Location(), state)
	}
}

// GetBreakpoints returns all breakpoints
func (c *CLI) GetBreakpoints() []*Breakpoint {
	return c.bpManager.GetBreakpoints()
}
