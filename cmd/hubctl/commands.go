package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/eomhub/internal/orchestrator"
	"github.com/kiranshivaraju/eomhub/pkg/models"
)

const defaultAddr = "http://127.0.0.1:8095"

type rootOptions struct {
	addr       string
	token      string
	jsonOutput bool
}

func (o *rootOptions) client() *apiClient {
	return newAPIClient(o.addr, o.token)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "hubctl",
		Short:         "Control a running EOM Hub orchestrator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	addr := os.Getenv("HUBCTL_ADDR")
	if addr == "" {
		addr = defaultAddr
	}
	cmd.PersistentFlags().StringVar(&opts.addr, "addr", addr, "hubd base URL")
	cmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("HUBCTL_TOKEN"), "Bearer token for hubd")
	cmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Output in JSON format")

	cmd.AddCommand(
		newStateCmd(opts),
		newRunCmd(opts),
		newCancelCmd(opts),
		newConfirmCmd(opts),
		newResetCmd(opts),
		newReconnectCmd(opts),
		newJobsCmd(opts),
	)
	return cmd
}

func newStateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show connection, focused job, queue and savings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var view orchestrator.View
			if err := opts.client().do(cmd.Context(), http.MethodGet, "/api/v1/state", nil, &view); err != nil {
				return err
			}
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), view)
			}
			printView(cmd.OutOrStdout(), view)
			return nil
		},
	}
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run <tool-id>",
		Short: "Dispatch a tool",
		Long: `Dispatch a tool to Revit. Dangerous tools wait for "hubctl confirm yes"
before anything is sent.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/tools/" + url.PathEscape(args[0]) + "/run"
			if err := opts.client().do(cmd.Context(), http.MethodPost, path, nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Dispatch of %s accepted\n", args[0])
			return nil
		},
	}
}

func newCancelCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Request cancellation of the focused job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var view orchestrator.View
			if err := opts.client().do(cmd.Context(), http.MethodPost, "/api/v1/jobs/current/cancel", nil, &view); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), orDefault(view.JobMessage, "Nothing to cancel"))
			return nil
		},
	}
}

func newConfirmCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "confirm <yes|no>",
		Short:     "Answer the pending confirmation",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"yes", "no"},
		RunE: func(cmd *cobra.Command, args []string) error {
			confirmed, err := parseAnswer(args[0])
			if err != nil {
				return err
			}
			body := map[string]bool{"confirmed": confirmed}
			if err := opts.client().do(cmd.Context(), http.MethodPost, "/api/v1/confirm", body, nil); err != nil {
				return err
			}
			if confirmed {
				fmt.Fprintln(cmd.OutOrStdout(), "Confirmed")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
			}
			return nil
		},
	}
}

func newResetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Reset the time-savings ledger (asks for confirmation)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.client().do(cmd.Context(), http.MethodPost, "/api/v1/savings/reset", nil, nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), `Reset requested, answer with "hubctl confirm yes"`)
			return nil
		},
	}
}

func newReconnectCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconnect",
		Short: "Retry the bridge and refresh the Revit status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var view orchestrator.View
			if err := opts.client().do(cmd.Context(), http.MethodPost, "/api/v1/reconnect", nil, &view); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), connectionLine(view))
			return nil
		},
	}
}

func newJobsCmd(opts *rootOptions) *cobra.Command {
	var (
		toolID string
		all    bool
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List recent jobs from the history store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := url.Values{}
			if toolID != "" {
				q.Set("tool_id", toolID)
			}
			if all {
				q.Set("session", "all")
			}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			path := "/api/v1/jobs"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}

			var jobs []models.JobRecord
			if err := opts.client().do(cmd.Context(), http.MethodGet, path, nil, &jobs); err != nil {
				return err
			}
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), jobs)
			}
			out := cmd.OutOrStdout()
			if len(jobs) == 0 {
				fmt.Fprintln(out, "No jobs")
				return nil
			}
			for _, j := range jobs {
				fmt.Fprintf(out, "%-24s %-20s %-10s %s\n", j.ID, orDefault(j.DisplayName, j.ToolID), j.Status,
					j.CreatedAt.Local().Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&toolID, "tool", "", "Only jobs of this tool")
	cmd.Flags().BoolVar(&all, "all", false, "Include jobs from other sessions")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of jobs")
	return cmd
}

func parseAnswer(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "y", "true":
		return true, nil
	case "no", "n", "false":
		return false, nil
	}
	return false, fmt.Errorf("answer must be yes or no, got %q", s)
}

func printView(w io.Writer, v orchestrator.View) {
	fmt.Fprintln(w, connectionLine(v))

	if v.LastTool != nil {
		name := orDefault(v.FriendlyJobName, v.LastTool.Name)
		fmt.Fprintf(w, "Job: %s [%s]\n", name, v.JobStatusLabel)
		if v.JobMessage != "" {
			fmt.Fprintf(w, "  %s\n", v.JobMessage)
		}
		if s := v.ResolvedStats; s != nil {
			fmt.Fprintf(w, "  processed %d, skipped %d, errors %d of %d\n", s.Processed, s.Skipped, s.Errors, s.Total)
		}
	} else {
		fmt.Fprintln(w, "Job: none")
	}
	if v.QueueLabel != nil {
		fmt.Fprintln(w, *v.QueueLabel)
	}

	if e := v.UxError; e != nil {
		fmt.Fprintf(w, "Error: %s\n  %s\n", e.Title, e.Message)
		if e.NextAction != "" {
			fmt.Fprintf(w, "  Next: %s\n", e.NextAction)
		}
	}
	if d := v.ConfirmDialog; d != nil {
		fmt.Fprintf(w, "Waiting for confirmation: %s\n  %s\n", d.Title, d.Message)
	}

	fmt.Fprintf(w, "Time saved: %.1f min\n", v.Savings.TotalSeconds/60)
}

func connectionLine(v orchestrator.View) string {
	if !v.Connected {
		return "Revit: not connected"
	}
	if v.Status.Document != "" {
		return "Revit: connected (" + v.Status.Document + ")"
	}
	return "Revit: connected"
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func orDefault(s, def string) string {
	if s != "" {
		return s
	}
	return def
}
