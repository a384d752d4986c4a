package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/yusari/worktimer/internal/api"
	"github.com/yusari/worktimer/internal/appclient"
)

// Runner executes CLI subcommands against a running daemon and returns
// process exit codes.
type Runner struct {
	client *appclient.Client
	out    io.Writer
	errOut io.Writer
}

func NewRunner(socketPath string, out, errOut io.Writer) *Runner {
	return NewRunnerWithClient(appclient.New(socketPath), out, errOut)
}

func NewRunnerWithClient(client *appclient.Client, out, errOut io.Writer) *Runner {
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}
	return &Runner{client: client, out: out, errOut: errOut}
}

func (r *Runner) Run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		r.printUsage()
		return 2
	}
	switch args[0] {
	case "attach":
		return r.runAttach(ctx, args[1:])
	case "status":
		return r.runStatus(ctx, args[1:])
	case "watch":
		return r.runWatch(ctx, args[1:])
	case "pulse":
		return r.runPulse(ctx, args[1:])
	case "focus":
		return r.runFocus(ctx, args[1:])
	case "respond":
		return r.runRespond(ctx, args[1:])
	case "undo":
		return r.runUndo(ctx, args[1:])
	case "start", "stop", "reset":
		return r.runSimple(ctx, args[0], args[1:])
	case "stats":
		return r.runStats(ctx, args[1:])
	case "settings":
		return r.runSettings(ctx, args[1:])
	case "events":
		return r.runEvents(ctx, args[1:])
	case "health":
		return r.runHealth(ctx)
	default:
		_, _ = fmt.Fprintf(r.errOut, "unknown command: %s\n", args[0])
		r.printUsage()
		return 2
	}
}

func (r *Runner) printUsage() {
	_, _ = fmt.Fprintln(r.errOut, `usage: worktimer <command> [flags]

commands:
  attach  -doc <key>                      attach or restore a document session
  status  -doc <key> [-json]              show session state and pending request
  watch   -doc <key> [-interval 2s]       follow session state changes
  pulse   -doc <key>                      send an activity pulse
  focus   -doc <key> -has <true|false>    report a window focus change
  respond -doc <key> -thinking <bool> [-request <id>]
                                          answer a pending cognitive check
  undo    -doc <key>                      undo the last automatic decision
  start|stop|reset -doc <key>             control the timer
  stats   [-json]                         show profile statistics
  settings [-limit N] [-bias F] [-trust bool]
                                          show or change settings
  events  [-json]                         show recent automatic decisions
  health                                  check the daemon`)
}

func (r *Runner) fail(err error) int {
	_, _ = fmt.Fprintf(r.errOut, "error: %v\n", err)
	return 1
}

func (r *Runner) runAttach(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("attach", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	doc := fs.String("doc", "", "document key")
	if err := fs.Parse(args); err != nil || *doc == "" {
		_, _ = fmt.Fprintln(r.errOut, "usage: worktimer attach -doc <key>")
		return 2
	}
	envelope, err := r.client.Attach(ctx, *doc)
	if err != nil {
		return r.fail(err)
	}
	r.printSession(envelope.Session)
	return 0
}

func (r *Runner) runStatus(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	doc := fs.String("doc", "", "document key")
	jsonOut := fs.Bool("json", false, "output JSON")
	if err := fs.Parse(args); err != nil || *doc == "" {
		_, _ = fmt.Fprintln(r.errOut, "usage: worktimer status -doc <key> [-json]")
		return 2
	}
	envelope, err := r.client.GetSession(ctx, *doc)
	if err != nil {
		return r.fail(err)
	}
	if *jsonOut {
		return r.printJSON(envelope)
	}
	r.printSession(envelope.Session)
	return 0
}

// runWatch polls the session and reprints its line whenever something
// changed, until the context is cancelled.
func (r *Runner) runWatch(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	doc := fs.String("doc", "", "document key")
	interval := fs.Duration("interval", 2*time.Second, "poll interval")
	if err := fs.Parse(args); err != nil || *doc == "" || *interval <= 0 {
		_, _ = fmt.Fprintln(r.errOut, "usage: worktimer watch -doc <key> [-interval 2s]")
		return 2
	}
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	var last string
	for {
		envelope, err := r.client.GetSession(ctx, *doc)
		if err != nil {
			if ctx.Err() != nil {
				return 0
			}
			return r.fail(err)
		}
		if line := sessionLine(envelope.Session); line != last {
			r.printSession(envelope.Session)
			last = line
		}
		select {
		case <-ctx.Done():
			return 0
		case <-ticker.C:
		}
	}
}

func (r *Runner) runPulse(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("pulse", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	doc := fs.String("doc", "", "document key")
	if err := fs.Parse(args); err != nil || *doc == "" {
		_, _ = fmt.Fprintln(r.errOut, "usage: worktimer pulse -doc <key>")
		return 2
	}
	envelope, err := r.client.Activity(ctx, *doc)
	if err != nil {
		return r.fail(err)
	}
	r.printSession(envelope.Session)
	return 0
}

func (r *Runner) runFocus(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("focus", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	doc := fs.String("doc", "", "document key")
	has := fs.String("has", "", "true or false")
	if err := fs.Parse(args); err != nil || *doc == "" || *has == "" {
		_, _ = fmt.Fprintln(r.errOut, "usage: worktimer focus -doc <key> -has <true|false>")
		return 2
	}
	hasFocus, err := strconv.ParseBool(*has)
	if err != nil {
		_, _ = fmt.Fprintln(r.errOut, "usage: worktimer focus -doc <key> -has <true|false>")
		return 2
	}
	envelope, err := r.client.Focus(ctx, *doc, hasFocus)
	if err != nil {
		return r.fail(err)
	}
	r.printSession(envelope.Session)
	return 0
}

func (r *Runner) runRespond(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("respond", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	doc := fs.String("doc", "", "document key")
	thinking := fs.String("thinking", "", "true if the pause was cognitive work")
	requestID := fs.String("request", "", "decision request id")
	if err := fs.Parse(args); err != nil || *doc == "" || *thinking == "" {
		_, _ = fmt.Fprintln(r.errOut, "usage: worktimer respond -doc <key> -thinking <true|false> [-request <id>]")
		return 2
	}
	wasThinking, err := strconv.ParseBool(*thinking)
	if err != nil {
		_, _ = fmt.Fprintln(r.errOut, "usage: worktimer respond -doc <key> -thinking <true|false> [-request <id>]")
		return 2
	}
	envelope, err := r.client.Respond(ctx, *doc, *requestID, wasThinking)
	if err != nil {
		return r.fail(err)
	}
	r.printSession(envelope.Session)
	return 0
}

func (r *Runner) runUndo(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("undo", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	doc := fs.String("doc", "", "document key")
	if err := fs.Parse(args); err != nil || *doc == "" {
		_, _ = fmt.Fprintln(r.errOut, "usage: worktimer undo -doc <key>")
		return 2
	}
	resp, err := r.client.Undo(ctx, *doc)
	if err != nil {
		return r.fail(err)
	}
	if !resp.Undone {
		_, _ = fmt.Fprintln(r.out, "nothing to undo")
		return 0
	}
	verb := "discarded"
	if resp.Accepted {
		verb = "accepted"
	}
	_, _ = fmt.Fprintf(r.out, "undid auto-%s decision (%s)\n", verb, formatSeconds(resp.IdleSeconds))
	return 0
}

func (r *Runner) runSimple(ctx context.Context, command string, args []string) int {
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	doc := fs.String("doc", "", "document key")
	if err := fs.Parse(args); err != nil || *doc == "" {
		_, _ = fmt.Fprintf(r.errOut, "usage: worktimer %s -doc <key>\n", command)
		return 2
	}
	var envelope api.SessionEnvelope
	var err error
	switch command {
	case "start":
		envelope, err = r.client.Start(ctx, *doc)
	case "stop":
		envelope, err = r.client.Stop(ctx, *doc)
	case "reset":
		envelope, err = r.client.Reset(ctx, *doc)
	}
	if err != nil {
		return r.fail(err)
	}
	r.printSession(envelope.Session)
	return 0
}

func (r *Runner) runStats(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	jsonOut := fs.Bool("json", false, "output JSON")
	if err := fs.Parse(args); err != nil {
		_, _ = fmt.Fprintln(r.errOut, "usage: worktimer stats [-json]")
		return 2
	}
	resp, err := r.client.Stats(ctx)
	if err != nil {
		return r.fail(err)
	}
	if *jsonOut {
		return r.printJSON(resp)
	}
	_, _ = fmt.Fprintf(r.out, "samples: %d  validation rate: %.0f%%  longest streak: %d\n",
		resp.TotalSamples, resp.ValidationRate*100, resp.LongestStreak)
	_, _ = fmt.Fprintf(r.out, "trust: %.2f (%s)  notification mode: %v\n",
		resp.TrustLevel, resp.AccuracyLabel, resp.NotificationMode)
	for _, bucket := range resp.Buckets {
		_, _ = fmt.Fprintf(r.out, "  bucket %-10s rate %.0f%%  n=%d\n",
			bucket.Key, bucket.ValidationRate*100, bucket.SampleCount)
	}
	patterns := make([]string, 0, len(resp.Patterns))
	for pattern := range resp.Patterns {
		patterns = append(patterns, pattern)
	}
	sort.Strings(patterns)
	for _, pattern := range patterns {
		if resp.Patterns[pattern] > 0 {
			_, _ = fmt.Fprintf(r.out, "  pattern %-16s %d\n", pattern, resp.Patterns[pattern])
		}
	}
	return 0
}

func (r *Runner) runSettings(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("settings", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	limit := fs.Int("limit", 0, "idle limit in minutes (15-25)")
	bias := fs.Float64("bias", -2, "thinking bias (-1 to 1)")
	trust := fs.String("trust", "", "enable implicit trust (true|false)")
	if err := fs.Parse(args); err != nil {
		_, _ = fmt.Fprintln(r.errOut, "usage: worktimer settings [-limit N] [-bias F] [-trust bool]")
		return 2
	}

	patch := api.SettingsPatch{}
	changed := false
	if *limit != 0 {
		patch.TLimitMinutes = limit
		changed = true
	}
	if *bias >= -1 && *bias <= 1 {
		patch.UserBias = bias
		changed = true
	}
	if *trust != "" {
		enabled, err := strconv.ParseBool(*trust)
		if err != nil {
			_, _ = fmt.Fprintln(r.errOut, "usage: worktimer settings [-limit N] [-bias F] [-trust bool]")
			return 2
		}
		patch.ImplicitTrustEnabled = &enabled
		changed = true
	}

	var resp api.SettingsResponse
	var err error
	if changed {
		resp, err = r.client.PatchSettings(ctx, patch)
	} else {
		resp, err = r.client.GetSettings(ctx)
	}
	if err != nil {
		return r.fail(err)
	}
	_, _ = fmt.Fprintf(r.out, "t_limit: %d min  bias: %+.2f  implicit trust: %v\n",
		resp.TLimitMinutes, resp.UserBias, resp.ImplicitTrustEnabled)
	return 0
}

func (r *Runner) runEvents(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("events", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	jsonOut := fs.Bool("json", false, "output JSON")
	if err := fs.Parse(args); err != nil {
		_, _ = fmt.Fprintln(r.errOut, "usage: worktimer events [-json]")
		return 2
	}
	resp, err := r.client.Events(ctx)
	if err != nil {
		return r.fail(err)
	}
	if *jsonOut {
		return r.printJSON(resp)
	}
	if len(resp.Decisions) == 0 {
		_, _ = fmt.Fprintln(r.out, "no recent automatic decisions")
		return 0
	}
	for _, decision := range resp.Decisions {
		verb := "discarded"
		if decision.Accepted {
			verb = "accepted"
		}
		_, _ = fmt.Fprintf(r.out, "%s  %s  %s (%.0f%%)\n",
			decision.DecidedAt.Local().Format("15:04:05"),
			decision.DocumentKey,
			verb+" "+formatSeconds(decision.IdleSeconds),
			decision.Confidence*100)
	}
	return 0
}

func (r *Runner) runHealth(ctx context.Context) int {
	resp, err := r.client.Health(ctx)
	if err != nil {
		return r.fail(err)
	}
	_, _ = fmt.Fprintln(r.out, resp.Status)
	return 0
}

func sessionLine(sess api.SessionResponse) string {
	line := fmt.Sprintf("%s  state=%s  total=%s  idle=%s  limit=%dm",
		sess.DocumentKey, sess.State,
		formatSeconds(sess.TotalSeconds), formatSeconds(sess.IdleSeconds),
		sess.TLimitMinutes)
	if sess.Pending != nil {
		line += "  pending=" + sess.Pending.RequestID
	}
	return line
}

func (r *Runner) printSession(sess api.SessionResponse) {
	_, _ = fmt.Fprintf(r.out, "%s  state=%s  total=%s  idle=%s  limit=%dm\n",
		sess.DocumentKey, sess.State,
		formatSeconds(sess.TotalSeconds), formatSeconds(sess.IdleSeconds),
		sess.TLimitMinutes)
	if sess.Pending != nil {
		_, _ = fmt.Fprintf(r.out, "pending: was the %s pause cognitive work? (request %s, confidence %.0f%%)\n",
			formatSeconds(sess.Pending.IdleSeconds), sess.Pending.RequestID, sess.Pending.Confidence*100)
	}
}

func (r *Runner) printJSON(payload any) int {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return r.fail(err)
	}
	_, _ = fmt.Fprintln(r.out, string(data))
	return 0
}

func formatSeconds(seconds int) string {
	minutes := seconds / 60
	hours := minutes / 60
	minutes = minutes % 60
	if hours > 0 {
		return fmt.Sprintf("%dh%02dm", hours, minutes)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm%02ds", minutes, seconds%60)
	}
	return fmt.Sprintf("%ds", seconds)
}
