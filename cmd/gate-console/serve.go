// ABOUTME: The serve command: wires config, store, transport and notifiers into a live console
// ABOUTME: Runs the console and, on a terminal, the operator command prompt

package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/2389/gate-console/internal/apiclient"
	"github.com/2389/gate-console/internal/config"
	"github.com/2389/gate-console/internal/console"
	"github.com/2389/gate-console/internal/dedupe"
	"github.com/2389/gate-console/internal/gatectl"
	"github.com/2389/gate-console/internal/identity"
	"github.com/2389/gate-console/internal/notify"
	"github.com/2389/gate-console/internal/resolve"
	"github.com/2389/gate-console/internal/session"
	"github.com/2389/gate-console/internal/store"
	"github.com/2389/gate-console/internal/transport"
)

const (
	// tokenExpiryWarning is how close to expiry the API token may get before
	// startup warns about it.
	tokenExpiryWarning = 24 * time.Hour

	dedupeMaxEntries = 1024
)

var noPrompt bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Take gate help calls",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&noPrompt, "no-prompt", false, "do not read operator commands from stdin")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen)
	gray := color.New(color.FgHiBlack)

	cyan.Fprint(out, banner)
	gray.Fprintf(out, "                                          %s\n\n", version)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	green.Fprint(out, "    ▶ ")
	fmt.Fprintf(out, "Config loaded from %s\n", configPath)

	logger := setupLogger(cfg.Logging, os.Stderr)
	slog.SetDefault(logger)

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()
	green.Fprint(out, "    ▶ ")
	fmt.Fprintf(out, "Database at %s\n", cfg.Database.Path)

	warnTokenExpiry(cfg.API.Token, time.Now(), logger)

	var window *dedupe.Window
	if cfg.Console.DedupeWindow > 0 {
		window = dedupe.New(cfg.Console.DedupeWindow, dedupeMaxEntries)
		defer window.Close()
	}

	presenter := newPresenter(out)
	dispatch, err := buildDispatcher(cfg.Notify, st, presenter, out, logger)
	if err != nil {
		return err
	}
	defer dispatch.Close()

	coord := session.NewCoordinator(session.Options{
		Observers: []session.Observer{dispatch},
		Window:    window,
		Logger:    logger,
	})

	gates, closeGates, err := buildGateController(cfg.GateControl)
	if err != nil {
		return err
	}
	defer closeGates()

	ident := identity.New(cfg.Console.AllowedAgents, st, nil, logger)
	workflows := resolve.New(resolve.Config{
		Coordinator: coord,
		Issues:      apiclient.NewHTTPClient(cfg.API.BaseURL, cfg.API.Token, cfg.API.Timeout),
		Gates:       gates,
		Journal:     st,
		Timeout:     cfg.Console.ResolutionTimeout,
		Logger:      logger,
	})
	con := console.New(console.Deps{
		Coordinator: coord,
		Identity:    ident,
		Workflows:   workflows,
		Logger:      logger,
	})

	tr, err := buildTransport(cfg.Transport, con, logger)
	if err != nil {
		return err
	}
	ident.SetAnnouncer(tr)

	green.Fprint(out, "    ▶ ")
	fmt.Fprintf(out, "Listening for gates via %s at %s\n", cfg.Transport.Kind, cfg.Transport.URL)
	fmt.Fprintln(out)

	interactive := !noPrompt && term.IsTerminal(int(os.Stdin.Fd()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return con.Run(gctx, tr)
	})
	if interactive {
		g.Go(func() error {
			return runPrompt(gctx, con, os.Stdin, out)
		})
	}

	err = g.Wait()
	if errors.Is(err, errQuit) {
		err = nil
	}
	logger.Info("console stopped")
	return err
}

// buildDispatcher registers every enabled notifier. The presenter and the
// call log are always on.
func buildDispatcher(cfg config.NotifyConfig, st store.Store, presenter notify.Notifier, bellOut io.Writer, logger *slog.Logger) (*notify.Dispatcher, error) {
	d := notify.NewDispatcher(logger, cfg.QueueSize)

	notifiers := []notify.Notifier{presenter, notify.NewCallLog(st)}
	if !cfg.Bell.Muted {
		notifiers = append(notifiers, notify.NewBell(bellOut))
	}
	if cfg.Matrix.Enabled {
		m, err := notify.NewMatrix(cfg.Matrix.Homeserver, cfg.Matrix.UserID, cfg.Matrix.AccessToken, cfg.Matrix.RoomID)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("creating matrix notifier: %w", err)
		}
		notifiers = append(notifiers, m)
	}
	if cfg.Slack.Enabled {
		notifiers = append(notifiers, notify.NewSlack(cfg.Slack.WebhookURL, cfg.Slack.Channel))
	}

	for _, n := range notifiers {
		if err := d.Register(n); err != nil {
			d.Close()
			return nil, err
		}
	}
	return d, nil
}

// buildGateController returns the gate controller and a cleanup func.
func buildGateController(cfg config.GateControlConfig) (gatectl.Controller, func(), error) {
	httpCtl := gatectl.NewHTTPController(cfg.BaseURL, cfg.PingTimeout, cfg.OpenTimeout)
	if cfg.Health != config.HealthGRPC {
		return httpCtl, func() {}, nil
	}

	probe, err := gatectl.DialHealthProbe(cfg.GRPCAddr, cfg.PingTimeout)
	if err != nil {
		return nil, nil, err
	}
	return gatectl.WithProbe(probe, httpCtl), func() { _ = probe.Close() }, nil
}

func buildTransport(cfg config.TransportConfig, h transport.Handler, logger *slog.Logger) (transport.Transport, error) {
	switch cfg.Kind {
	case config.TransportNATS:
		return transport.NewNATS(transport.NATSConfig{
			URL:             cfg.URL,
			GateSubject:     cfg.GateSubject,
			RegisterSubject: cfg.RegisterSubject,
			ReconnectWait:   cfg.ReconnectWait,
		}, h, logger), nil
	case config.TransportWebSocket:
		return transport.NewWebSocket(transport.WebSocketConfig{
			URL:        cfg.URL,
			MinBackoff: cfg.ReconnectWait,
			MaxBackoff: cfg.MaxReconnectWait,
		}, h, logger), nil
	default:
		return nil, fmt.Errorf("unknown transport kind %q", cfg.Kind)
	}
}

// warnTokenExpiry logs when the API token is expired or about to be. Opaque
// tokens are not inspected.
func warnTokenExpiry(token string, now time.Time, logger *slog.Logger) {
	if token == "" {
		logger.Warn("no API token configured; issue submission will be unauthenticated")
		return
	}
	exp, ok, err := apiclient.TokenExpiry(token)
	if err != nil || !ok {
		return
	}
	switch {
	case !exp.After(now):
		logger.Warn("API token has expired", "expired_at", exp.Format(time.RFC3339))
	case exp.Sub(now) < tokenExpiryWarning:
		logger.Warn("API token expires soon", "expires_at", exp.Format(time.RFC3339))
	}
}
