// The bodymetrics CLI drives a running api/server instance: create sessions,
// edit the profile, upload media with progress polling, trigger analysis and
// render the measurement report.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var serverURL string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "bodymetrics: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bodymetrics",
		Short: "Client for the bodymetrics analysis service",
		Long: `bodymetrics talks to a running api or server instance: it creates sessions,
edits the personal profile, uploads media, triggers analysis and renders the
measurement report.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Base URL of the bodymetrics API")
	cmd.AddCommand(
		newCreateCmd(),
		newStatusCmd(),
		newProfileCmd(),
		newStepCmd(),
		newUploadCmd(),
		newAnalyzeCmd(),
		newReportCmd(),
		newRemoveCmd(),
	)
	return cmd
}

type mediaView struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	FormattedSize string `json:"formattedSize"`
	ContentType   string `json:"contentType"`
}

type sessionView struct {
	ID      string `json:"id"`
	Profile struct {
		Height string `json:"height"`
		Weight string `json:"weight"`
		Gender string `json:"gender"`
	} `json:"profile"`
	Media  *mediaView `json:"media,omitempty"`
	Intake struct {
		Status    string `json:"status"`
		Progress  int    `json:"progress"`
		Rejection string `json:"rejection,omitempty"`
	} `json:"intake"`
	Analysis struct {
		Status  string `json:"status"`
		Message string `json:"message,omitempty"`
	} `json:"analysis"`
	Report *reportView `json:"report,omitempty"`
	Prompt string      `json:"prompt,omitempty"`
}

type reportView struct {
	Gender       string `json:"gender"`
	Measurements []struct {
		Label string `json:"label"`
		Value string `json:"value"`
	} `json:"measurements"`
	BMI        string `json:"bmi"`
	Category   string `json:"bmiCategory"`
	StatusLine string `json:"statusLine"`
}

func newCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create a new session",
		RunE: func(cmd *cobra.Command, args []string) error {
			var view sessionView
			if err := doJSON(cmd.Context(), http.MethodPost, "/sessions", nil, &view); err != nil {
				return err
			}
			fmt.Println(view.ID)
			printSession(&view)
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <session-id>",
		Short: "Show the full session state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var view sessionView
			if err := doJSON(cmd.Context(), http.MethodGet, "/sessions/"+args[0], nil, &view); err != nil {
				return err
			}
			printSession(&view)
			return nil
		},
	}
}

func newProfileCmd() *cobra.Command {
	var height, weight, gender string
	cmd := &cobra.Command{
		Use:   "profile <session-id>",
		Short: "Set the personal profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var current sessionView
			if err := doJSON(cmd.Context(), http.MethodGet, "/sessions/"+args[0], nil, &current); err != nil {
				return err
			}
			body := map[string]string{
				"height": current.Profile.Height,
				"weight": current.Profile.Weight,
				"gender": current.Profile.Gender,
			}
			if height != "" {
				body["height"] = height
			}
			if weight != "" {
				body["weight"] = weight
			}
			if gender != "" {
				body["gender"] = gender
			}
			var view sessionView
			if err := doJSON(cmd.Context(), http.MethodPut, "/sessions/"+args[0]+"/profile", body, &view); err != nil {
				return err
			}
			printSession(&view)
			return nil
		},
	}
	cmd.Flags().StringVar(&height, "height", "", "Height in cm, e.g. 170.00")
	cmd.Flags().StringVar(&weight, "weight", "", "Weight in kg, e.g. 75.00")
	cmd.Flags().StringVar(&gender, "gender", "", "Gender: Male, Female or Other")
	return cmd
}

func newStepCmd() *cobra.Command {
	var delta float64
	cmd := &cobra.Command{
		Use:   "step <session-id> <height|weight>",
		Short: "Step a profile field up or down",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{"field": args[1], "delta": delta}
			var view sessionView
			if err := doJSON(cmd.Context(), http.MethodPatch, "/sessions/"+args[0]+"/profile/step", body, &view); err != nil {
				return err
			}
			printSession(&view)
			return nil
		},
	}
	cmd.Flags().Float64Var(&delta, "delta", 1, "Amount to add (negative to subtract)")
	return cmd
}

func newUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <session-id> <file>",
		Short: "Upload a media file and wait for it to become ready",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id := args[0]
			if err := uploadFile(ctx, id, args[1]); err != nil {
				return err
			}
			return pollSession(ctx, id, func(view *sessionView) (bool, error) {
				switch view.Intake.Status {
				case "ready":
					fmt.Printf("\rupload 100%%\nready: %s (%s)\n", view.Media.Name, view.Media.FormattedSize)
					return true, nil
				case "rejected":
					return true, errors.New(view.Intake.Rejection)
				default:
					fmt.Printf("\rupload %d%%", view.Intake.Progress)
					return false, nil
				}
			})
		},
	}
}

func newAnalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <session-id>",
		Short: "Run analysis on the ready file and print the report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id := args[0]
			if err := doJSON(ctx, http.MethodPost, "/sessions/"+id+"/analyze", nil, nil); err != nil {
				return err
			}
			fmt.Println("analyzing...")
			return pollSession(ctx, id, func(view *sessionView) (bool, error) {
				switch view.Analysis.Status {
				case "analyzed":
					printReport(view.Report)
					return true, nil
				case "failed":
					return true, errors.New(view.Analysis.Message)
				default:
					return false, nil
				}
			})
		},
	}
}

func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report <session-id>",
		Short: "Print the measurement report of an analyzed session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var report reportView
			if err := doJSON(cmd.Context(), http.MethodGet, "/sessions/"+args[0]+"/report", nil, &report); err != nil {
				return err
			}
			printReport(&report)
			return nil
		},
	}
}

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <session-id>",
		Short: "Remove the current media file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := doJSON(cmd.Context(), http.MethodDelete, "/sessions/"+args[0]+"/media", nil, nil); err != nil {
				return err
			}
			fmt.Println("removed")
			return nil
		},
	}
}

func uploadFile(ctx context.Context, sessionID, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		part, err := form.CreateFormFile("file", filepath.Base(path))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(form.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL+"/sessions/"+sessionID+"/media", pr)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	return nil
}

// pollSession fetches the session every 300ms until check reports done.
func pollSession(ctx context.Context, sessionID string, check func(*sessionView) (bool, error)) error {
	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()
	for {
		var view sessionView
		if err := doJSON(ctx, http.MethodGet, "/sessions/"+sessionID, nil, &view); err != nil {
			return err
		}
		done, err := check(&view)
		if done {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, serverURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != "" {
		return errors.New(payload.Error)
	}
	return fmt.Errorf("request failed with status %d", resp.StatusCode)
}

func printSession(view *sessionView) {
	fmt.Printf("profile: %s cm / %s kg / %s\n", view.Profile.Height, view.Profile.Weight, view.Profile.Gender)
	if view.Media != nil {
		fmt.Printf("file:    %s (%s, %s)\n", view.Media.Name, view.Media.FormattedSize, view.Media.ContentType)
	}
	fmt.Printf("intake:  %s", view.Intake.Status)
	if view.Intake.Status == "uploading" {
		fmt.Printf(" %d%%", view.Intake.Progress)
	}
	fmt.Println()
	if view.Intake.Rejection != "" {
		fmt.Printf("notice:  %s\n", view.Intake.Rejection)
	}
	fmt.Printf("analysis: %s", view.Analysis.Status)
	if view.Analysis.Message != "" {
		fmt.Printf(" (%s)", view.Analysis.Message)
	}
	fmt.Println()
	if view.Report != nil {
		printReport(view.Report)
	} else if view.Prompt != "" {
		fmt.Println(view.Prompt)
	}
}

func printReport(report *reportView) {
	if report == nil {
		return
	}
	fmt.Printf("gender: %s\n", report.Gender)
	for _, m := range report.Measurements {
		fmt.Printf("%-16s %s\n", m.Label, m.Value)
	}
	fmt.Println(report.StatusLine)
}
