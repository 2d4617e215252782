package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"aicoder/config/models"
	"aicoder/internal/utils"
)

var (
	customURL     string
	outputJSON    bool
	requestMethod string
	timeout       time.Duration
)

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().StringVarP(&customURL, "url", "u", "", "test a custom URL instead of a model endpoint")
	pingCmd.Flags().BoolVarP(&outputJSON, "json", "j", false, "JSON format output")
	pingCmd.Flags().StringVarP(&requestMethod, "method", "X", http.MethodHead, "request method")
	pingCmd.Flags().DurationVarP(&timeout, "timeout", "t", 10*time.Second, "request timeout")
}

var pingCmd = &cobra.Command{
	Use:   "ping [tool] [model]",
	Short: "Test the connectivity of a model endpoint",
	Long: `Test the connectivity of a model endpoint.

  aicoder ping                  current model of the active tool
  aicoder ping codex            current model of Codex
  aicoder ping claude Kimi      a specific model
  aicoder ping -u https://api.example.com

A non-2xx status still means the host answered: most APIs reject a bare
HEAD request on their base URL.`,
	Args: cobra.MaximumNArgs(2),
	RunE: runPing,
}

// pingResult is the outcome of one request, also the --json output
type pingResult struct {
	URL        string `json:"url"`
	Host       string `json:"host,omitempty"`
	Method     string `json:"requestMethod"`
	StatusCode int    `json:"statusCode,omitempty"`
	StatusText string `json:"statusText,omitempty"`
	DurationMs int64  `json:"durationMs"`
	TimeoutMs  int64  `json:"timeoutMs"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
}

func runPing(cmd *cobra.Command, args []string) error {
	baseURL, apiKey, label, err := pingTarget(cmd, args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !outputJSON {
		fmt.Fprintf(out, "Testing %s\n", label)
	}

	result := pingEndpoint(cmd.Context(), baseURL, apiKey, requestMethod, timeout)
	if outputJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	} else if result.Error == "" {
		fmt.Fprintln(out, successStyle.Render("Connection successful!"))
		fmt.Fprintf(out, "   URL: %s\n", result.URL)
		fmt.Fprintf(out, "   Host: %s\n", result.Host)
		fmt.Fprintf(out, "   Method: %s\n", result.Method)
		fmt.Fprintf(out, "   Status Code: %d %s\n", result.StatusCode, result.StatusText)
		fmt.Fprintf(out, "   Response Time: %dms\n", result.DurationMs)
		if !result.Success {
			fmt.Fprintln(out, "Note: the server returned a non-success status code; the host is reachable")
		}
	}

	if result.Error != "" {
		return fmt.Errorf("connection failed: %s", result.Error)
	}
	return nil
}

// pingTarget resolves the URL and key to test from the flags and args
func pingTarget(cmd *cobra.Command, args []string) (url, key, label string, err error) {
	if cmd.Flags().Changed("url") {
		if len(args) > 0 {
			return "", "", "", errors.New("--url cannot be combined with a tool or model")
		}
		return customURL, "", "custom URL: " + customURL, nil
	}

	store, err := openStore(newLogger())
	if err != nil {
		return "", "", "", err
	}
	snap := store.Load()

	kind := snap.ActiveTool
	if len(args) > 0 {
		if kind, err = models.ParseToolKind(args[0]); err != nil {
			return "", "", "", err
		}
	}
	cfg := snap.Tool(kind)
	name := cfg.CurrentModel
	if len(args) > 1 {
		name = args[1]
	}
	m, ok := cfg.Model(name)
	if !ok {
		return "", "", "", fmt.Errorf("%s has no model %q", kind.DisplayName(), name)
	}
	if m.ModelURL == "" {
		return "", "", "", fmt.Errorf("model %q uses the default endpoint of %s, nothing to test", name, kind.DisplayName())
	}
	return m.ModelURL, m.APIKey, fmt.Sprintf("%s model %s", kind.DisplayName(), name), nil
}

// pingEndpoint sends one request to baseURL. Transport failures are
// classified into a readable message in the result.
func pingEndpoint(ctx context.Context, baseURL, apiKey, method string, timeout time.Duration) pingResult {
	result := pingResult{URL: baseURL, Method: method, TimeoutMs: timeout.Milliseconds()}
	if !utils.ValidateURL(baseURL) {
		result.Error = "invalid URL format (it must use http or https and name a host)"
		return result
	}
	result.Host = utils.ExtractHost(baseURL)

	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:          10,
			IdleConnTimeout:       30 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}

	req, err := http.NewRequestWithContext(ctx, method, baseURL, nil)
	if err != nil {
		result.Error = fmt.Sprintf("failed to create request: %v", err)
		return result
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
		req.Header.Set("x-api-key", apiKey)
	}

	start := time.Now()
	resp, err := client.Do(req)
	result.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		result.Error = classifyPingError(err, timeout)
		return result
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode
	result.StatusText = http.StatusText(resp.StatusCode)
	result.Success = resp.StatusCode >= 200 && resp.StatusCode < 300
	return result
}

func classifyPingError(err error, timeout time.Duration) string {
	var netErr net.Error
	errStr := err.Error()
	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Sprintf("request timed out (more than %s)", timeout)
	case strings.Contains(errStr, "connection refused"):
		return "connection refused (server not listening on this port)"
	case strings.Contains(errStr, "network is unreachable"):
		return "network unreachable"
	case strings.Contains(errStr, "no such host"):
		return "DNS resolution failed"
	case strings.Contains(errStr, "EOF"):
		return "connection closed unexpectedly"
	}
	return fmt.Sprintf("request failed: %v", err)
}
