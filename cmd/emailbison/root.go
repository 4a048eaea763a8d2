package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ignite/emailbison-cli/internal/bison"
	"github.com/ignite/emailbison-cli/internal/campaign"
	"github.com/ignite/emailbison-cli/internal/config"
	"github.com/ignite/emailbison-cli/internal/pkg/logger"
)

// Exit codes, kept stable for scripting:
// 2 validation/usage, 3 auth/API/config, 4 network, 5 unexpected.
const (
	exitOK         = 0
	exitValidation = 2
	exitAPI        = 3
	exitNetwork    = 4
	exitUnexpected = 5
)

var (
	// Global flags
	jsonOutput bool
	debugMode  bool
	baseURL    string
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "emailbison",
	Short: "EmailBison campaign provisioning CLI",
	Long: `emailbison orchestrates the EmailBison REST API to provision outbound
email campaigns: create a campaign, attach settings, schedule, sequence
steps, sender emails, and leads, optionally start it, and batch-process
directories of lead CSVs into per-district campaigns.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debugMode {
			logger.SetLevel(logger.DEBUG)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON output")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Log request/response summaries to stderr")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Override the EmailBison base URL")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a config file (default: XDG config dir, then ./emailbison.yaml)")
}

func run() int {
	if err := rootCmd.Execute(); err != nil {
		renderError(err)
		return exitCode(err)
	}
	return exitOK
}

// newClient resolves configuration and builds an API client. The caller
// owns the client and must Close it on every exit path.
func newClient() (*bison.Client, error) {
	cfg, err := config.LoadFromEnv(configFile)
	if err != nil {
		return nil, err
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := bison.NewClient(bison.Config{
		BaseURL:          cfg.BaseURL,
		APIToken:         cfg.APIToken,
		TimeoutSeconds:   cfg.TimeoutSeconds,
		Retries:          cfg.Retries,
		CampaignsPath:    cfg.CampaignsPath,
		CampaignsV11Path: cfg.CampaignsV11Path,
		SenderEmailsPath: cfg.SenderEmailsPath,
	})
	if debugMode {
		fmt.Fprintf(os.Stderr, "debug: auth=%s\n", client.RedactedAuth())
	}
	return client, nil
}

// renderError prints a terminal failure in the selected output mode. In
// JSON mode workflow failures carry their partial context (campaign id,
// audit trail) so callers can see how far the run got.
func renderError(err error) {
	if jsonOutput {
		payload := map[string]interface{}{
			"error": map[string]interface{}{
				"type":    errorTypeName(err),
				"message": err.Error(),
			},
		}
		var apiErr *bison.APIError
		if errors.As(err, &apiErr) {
			payload["error"].(map[string]interface{})["status_code"] = apiErr.StatusCode
			if apiErr.Details != nil {
				payload["error"].(map[string]interface{})["details"] = apiErr.Details
			}
		}
		var wfErr *campaign.WorkflowError
		if errors.As(err, &wfErr) {
			payload["campaign_id"] = wfErr.CampaignID
			payload["steps"] = wfErr.Steps
		}
		printJSON(payload)
		return
	}

	var apiErr *bison.APIError
	if errors.As(err, &apiErr) && apiErr.Details != nil {
		fmt.Fprintf(os.Stderr, "%s Details: %s\n", err.Error(), apiErr.FormatDetails())
		return
	}
	fmt.Fprintln(os.Stderr, err.Error())
}

func errorTypeName(err error) string {
	var (
		apiErr        *bison.APIError
		authErr       *bison.AuthError
		netErr        *bison.NetworkError
		validationErr *campaign.ValidationError
		extractionErr *campaign.ExtractionError
		timeoutErr    *campaign.LeadListTimeoutError
	)
	switch {
	case errors.As(err, &authErr):
		return "AuthError"
	case errors.As(err, &netErr):
		return "NetworkError"
	case errors.As(err, &apiErr):
		return "APIError"
	case errors.As(err, &timeoutErr):
		return "LeadListTimeoutError"
	case errors.As(err, &validationErr):
		return "ValidationError"
	case errors.As(err, &extractionErr):
		return "ExtractionError"
	case errors.Is(err, config.ErrMissingToken):
		return "ConfigError"
	default:
		return "Error"
	}
}

func exitCode(err error) int {
	var (
		apiErr        *bison.APIError
		authErr       *bison.AuthError
		netErr        *bison.NetworkError
		validationErr *campaign.ValidationError
		extractionErr *campaign.ExtractionError
		timeoutErr    *campaign.LeadListTimeoutError
	)
	switch {
	case errors.As(err, &validationErr), errors.As(err, &timeoutErr):
		return exitValidation
	case errors.As(err, &authErr), errors.As(err, &apiErr), errors.Is(err, config.ErrMissingToken):
		return exitAPI
	case errors.As(err, &netErr):
		return exitNetwork
	case errors.As(err, &extractionErr):
		return exitValidation
	default:
		return exitUnexpected
	}
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode JSON output: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

// dumpOrHuman prints the raw envelope in JSON mode, or the given summary
// lines (falling back to the envelope) in human mode.
func dumpOrHuman(env bison.Envelope, humanLines []string) {
	if jsonOutput {
		printJSON(env)
		return
	}
	if len(humanLines) > 0 {
		for _, line := range humanLines {
			fmt.Println(line)
		}
		return
	}
	printJSON(env)
}

// loadJSONFile reads a JSON object file used for spec/settings/schedule
// inputs.
func loadJSONFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &campaign.ValidationError{Msg: fmt.Sprintf("file not found: %s", path)}
	}
	return data, nil
}

func decodeJSONInto(path string, v interface{}) error {
	data, err := loadJSONFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &campaign.ValidationError{Msg: fmt.Sprintf("invalid JSON in %s: %v", path, err)}
	}
	return nil
}
