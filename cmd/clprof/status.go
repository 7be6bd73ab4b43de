package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/cwbudde/clprof/internal/store"
)

var serverURL string

var statusCmd = &cobra.Command{
	Use:   "status [session-id]",
	Short: "Query the server for sessions",
	Long: `Queries a running server. Without a session id, lists all sessions.
With one, prints the timing summary of that session.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.AddCommand(statusCmd)
}

var httpClient = &http.Client{Timeout: 30 * time.Second}

func runStatus(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return listSessions(os.Stdout, fmt.Sprintf("%s/api/v1/sessions", serverURL))
	}
	id := args[0]
	return printSessionSummary(os.Stdout, fmt.Sprintf("%s/api/v1/sessions/%s/summary", serverURL, id), id)
}

func fetch(url string) (*http.Response, error) {
	resp, err := httpClient.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	return resp, nil
}

func listSessions(w io.Writer, url string) error {
	resp, err := fetch(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", string(body))
	}

	var infos []store.ReportInfo
	if err := json.NewDecoder(resp.Body).Decode(&infos); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if len(infos) == 0 {
		fmt.Fprintln(w, "No sessions found")
		return nil
	}

	fmt.Fprintf(w, "Found %d session(s):\n\n", len(infos))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCREATED\tEVENTS\tTOTAL\tEFFECTIVE")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			info.ID,
			info.Name,
			humanize.Time(info.Created),
			info.NumEvents,
			time.Duration(info.Total),
			time.Duration(info.Effective),
		)
	}
	return tw.Flush()
}

func printSessionSummary(w io.Writer, url, id string) error {
	resp, err := fetch(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("session not found: %s", id)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", string(body))
	}

	_, err = io.Copy(w, resp.Body)
	return err
}
