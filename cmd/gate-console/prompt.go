// ABOUTME: Line-oriented operator prompt and the terminal call presenter
// ABOUTME: Parses operator commands and maps workflow errors to operator messages

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/2389/gate-console/internal/apiclient"
	"github.com/2389/gate-console/internal/callerr"
	"github.com/2389/gate-console/internal/notify"
	"github.com/2389/gate-console/internal/resolve"
	"github.com/2389/gate-console/internal/session"
)

// errQuit ends serve cleanly when the operator types quit.
var errQuit = errors.New("operator quit")

// operator is the slice of the console the prompt drives.
type operator interface {
	Current() (session.Session, bool)
	EndCall(ctx context.Context) error
	LogIssue(ctx context.Context, form resolve.Form) (apiclient.IssueRef, error)
	ActuateGate(ctx context.Context, categoryID string) error
	ActuateSession(ctx context.Context, id, categoryID string) error
	Agent() (int, bool)
	SetAgent(ctx context.Context, id int) error
}

const promptHelp = `commands:
  status                              show the live call and agent
  log <category> <description> [plate=P] [tx=T] [action=A] [photo=URL]
                                      submit an issue, the call stays open
  open <category> [session]           ping and open the gate, closing the call;
                                      with a session id, only if that call is live
  end                                 close the call without resolving it
  agent [id]                          show or set the agent id
  quit                                stop the console
`

// runPrompt reads commands from in until ctx ends, in closes, or the
// operator quits.
func runPrompt(ctx context.Context, op operator, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Fprint(out, promptHelp)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := execLine(ctx, op, line, out); err != nil {
				return err
			}
		}
	}
}

// execLine runs one operator command. It returns errQuit on quit; every
// other failure is reported to out.
func execLine(ctx context.Context, op operator, line string, out io.Writer) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	var err error
	switch cmd, args := strings.ToLower(fields[0]), fields[1:]; cmd {
	case "quit", "exit":
		return errQuit
	case "help", "?":
		fmt.Fprint(out, promptHelp)
	case "status":
		printStatus(op, out)
	case "end":
		err = op.EndCall(ctx)
		if err == nil {
			fmt.Fprintln(out, "call closed")
		}
	case "open":
		switch len(args) {
		case 1:
			err = op.ActuateGate(ctx, args[0])
		case 2:
			err = op.ActuateSession(ctx, args[1], args[0])
		default:
			fmt.Fprintln(out, "usage: open <category> [session]")
			return nil
		}
		if err == nil {
			fmt.Fprintln(out, color.GreenString("gate opened"))
		}
	case "log":
		form, perr := parseLogArgs(args)
		if perr != nil {
			fmt.Fprintln(out, perr)
			return nil
		}
		var ref apiclient.IssueRef
		ref, err = op.LogIssue(ctx, form)
		if err == nil {
			fmt.Fprintf(out, "issue %s logged\n", ref.ID)
		}
	case "agent":
		err = agentCommand(ctx, op, args, out)
	default:
		fmt.Fprintf(out, "unknown command %q, type help\n", cmd)
	}

	if err != nil {
		fmt.Fprintln(out, color.RedString(describeError(err)))
	}
	return nil
}

func agentCommand(ctx context.Context, op operator, args []string, out io.Writer) error {
	if len(args) == 0 {
		if id, ok := op.Agent(); ok {
			fmt.Fprintf(out, "agent %d\n", id)
		} else {
			fmt.Fprintln(out, "no agent set")
		}
		return nil
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return callerr.Invalid("agent_id", fmt.Sprintf("%q is not a number", args[0]))
	}
	if err := op.SetAgent(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(out, "agent %d\n", id)
	return nil
}

// parseLogArgs reads "<category> <description...>" with optional key=value
// fields anywhere after the category.
func parseLogArgs(args []string) (resolve.Form, error) {
	if len(args) < 2 {
		return resolve.Form{}, errors.New("usage: log <category> <description> [plate=P] [tx=T] [action=A] [photo=URL]")
	}
	form := resolve.Form{CategoryID: args[0]}
	var desc []string
	for _, a := range args[1:] {
		key, value, ok := strings.Cut(a, "=")
		if ok {
			switch key {
			case "plate":
				form.Plate = value
				continue
			case "tx":
				form.TransactionNo = value
				continue
			case "action":
				form.Action = value
				continue
			case "photo":
				form.Photo = value
				continue
			}
		}
		desc = append(desc, a)
	}
	form.Description = strings.Join(desc, " ")
	return form, nil
}

func printStatus(op operator, out io.Writer) {
	if id, ok := op.Agent(); ok {
		fmt.Fprintf(out, "agent:   %d\n", id)
	} else {
		fmt.Fprintln(out, "agent:   not set")
	}
	s, ok := op.Current()
	if !ok {
		fmt.Fprintln(out, "call:    idle")
		return
	}
	fmt.Fprintf(out, "call:    %s at %s [%s] %s\n", s.ID, s.Event.Label(), s.Event.GateID, s.Status)
}

// describeError turns a workflow error into an operator message.
func describeError(err error) string {
	var (
		unreachable *callerr.HardwareUnreachableError
		failed      *callerr.ActuationFailedError
		submission  *callerr.SubmissionError
		invalid     *callerr.ValidationError
	)
	switch {
	case errors.Is(err, session.ErrNoActiveCall):
		return "no active call (it may have been replaced)"
	case errors.Is(err, session.ErrResolutionInFlight):
		return "the gate is already being opened"
	case errors.As(err, &invalid):
		return fmt.Sprintf("invalid %s: %s", invalid.Field, invalid.Reason)
	case errors.As(err, &unreachable):
		return fmt.Sprintf("gate %s did not answer; the call is still open", unreachable.GateID)
	case errors.As(err, &failed):
		return fmt.Sprintf("gate %s could not be opened; the call is still open", failed.GateID)
	case errors.As(err, &submission):
		return "issue not submitted: " + submission.Err.Error()
	default:
		return err.Error()
	}
}

// presenter renders call cards on the terminal.
type presenter struct {
	mu  sync.Mutex
	out io.Writer
}

var _ notify.Notifier = (*presenter)(nil)

func newPresenter(out io.Writer) *presenter {
	return &presenter{out: out}
}

func (p *presenter) Name() string { return "presenter" }

func (p *presenter) Notify(_ context.Context, evt notify.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if evt.Kind == notify.KindCleared {
		_, err := fmt.Fprintln(p.out, color.HiBlackString("── "+evt.Text()))
		return err
	}

	s := evt.Session
	e := s.Event
	var b strings.Builder
	b.WriteString(color.New(color.FgYellow, color.Bold).Sprintf("━━ CALL  %s", e.Label()))
	if e.Location.Name != "" {
		fmt.Fprintf(&b, " (%s)", e.Location.Name)
	}
	fmt.Fprintf(&b, "  [%s]\n", e.GateID)
	fmt.Fprintf(&b, "   session:   %s\n", s.ID)
	fmt.Fprintf(&b, "   photo in:  %s\n", e.PhotoInOrPlaceholder())
	fmt.Fprintf(&b, "   photo out: %s\n", e.PhotoOutOrPlaceholder())
	fmt.Fprintf(&b, "   capture:   %s\n", e.CaptureOrPlaceholder())
	_, err := fmt.Fprint(p.out, b.String())
	return err
}
