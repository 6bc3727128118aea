// ABOUTME: One-shot commands: agent get/set, gate ping, categories, call history and issues
// ABOUTME: Each loads the config and talks to one collaborator directly

package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/gate-console/internal/apiclient"
	"github.com/2389/gate-console/internal/callerr"
	"github.com/2389/gate-console/internal/identity"
	"github.com/2389/gate-console/internal/store"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Show or change the stored agent id",
}

var agentGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the stored agent id",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := store.NewSQLiteStore(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer st.Close()

		ident := identity.New(cfg.Console.AllowedAgents, st, nil, nil)
		id, ok := ident.Restore(cmd.Context())
		if !ok {
			fmt.Fprintf(cmd.OutOrStdout(), "no agent set (allowed: %v)\n", ident.Allowed())
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

var agentSetCmd = &cobra.Command{
	Use:   "set <id>",
	Short: "Store the agent id used on the next serve",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("agent id %q is not a number", args[0])
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := store.NewSQLiteStore(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer st.Close()

		ident := identity.New(cfg.Console.AllowedAgents, st, nil, nil)
		if err := ident.Set(cmd.Context(), id); err != nil {
			if callerr.IsValidation(err) {
				return fmt.Errorf("%w (allowed: %v)", err, ident.Allowed())
			}
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "agent set to %d\n", id)
		return nil
	},
}

var pingCmd = &cobra.Command{
	Use:   "ping <gate-id>",
	Short: "Check whether a gate acknowledges",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		gates, closeGates, err := buildGateController(cfg.GateControl)
		if err != nil {
			return err
		}
		defer closeGates()

		start := time.Now()
		if err := gates.Ping(cmd.Context(), args[0]); err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %v\n", color.RedString("✗"), args[0], err)
			return fmt.Errorf("gate %s did not acknowledge", args[0])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s acknowledged in %s\n",
			color.GreenString("✓"), args[0], time.Since(start).Round(time.Millisecond))
		return nil
	},
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List issue categories from the backend",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client := apiclient.NewHTTPClient(cfg.API.BaseURL, cfg.API.Token, cfg.API.Timeout)
		cats, err := client.ListCategories(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing categories: %w", err)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME")
		for _, c := range cats {
			fmt.Fprintf(w, "%s\t%s\n", c.ID, c.Name)
		}
		return w.Flush()
	},
}

var callsLimit int

var callsCmd = &cobra.Command{
	Use:   "calls",
	Short: "Show recently closed calls",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := store.NewSQLiteStore(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer st.Close()

		calls, err := st.ListCalls(cmd.Context(), callsLimit)
		if err != nil {
			return err
		}
		if len(calls) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no calls recorded")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CLOSED\tGATE\tLOCATION\tREASON\tDURATION")
		for _, c := range calls {
			fmt.Fprintf(w, "%s\t%s [%s]\t%s\t%s\t%s\n",
				c.ClosedAt.Local().Format("2006-01-02 15:04:05"),
				c.Gate, c.GateID, c.Location, c.Reason,
				c.Duration().Round(time.Second))
		}
		return w.Flush()
	},
}

var issuesCmd = &cobra.Command{
	Use:   "issues <session-id>",
	Short: "Show issues logged during a call",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := store.NewSQLiteStore(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer st.Close()

		entries, err := st.ListIssues(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "no issues logged for %s\n", args[0])
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "LOGGED\tISSUE\tGATE\tCATEGORY\tPLATE\tDESCRIPTION")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				e.CreatedAt.Local().Format("15:04:05"),
				e.RemoteID, e.GateID, e.CategoryID, e.Plate, e.Description)
		}
		return w.Flush()
	},
}

func init() {
	agentCmd.AddCommand(agentGetCmd)
	agentCmd.AddCommand(agentSetCmd)
	callsCmd.Flags().IntVarP(&callsLimit, "limit", "n", 20, "number of calls to show")
}
