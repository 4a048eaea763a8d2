package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ignite/emailbison-cli/internal/campaign"
)

var (
	batchDir          string
	batchSettingsFile string
	batchScheduleFile string
	batchSequenceFile string
	batchSenderIDs    []int
	batchDryRun       bool
	batchPollTimeout  time.Duration
)

var campaignCreateBatchCmd = &cobra.Command{
	Use:   "create-batch",
	Short: "Create one campaign per lead CSV in a directory",
	Long: `Scan a directory for .csv files and create one outbound campaign per
file: upload the CSV as a new lead list, wait for it to process, create
a campaign named after the district column (or the file name), apply
the shared settings/schedule/sequence, attach the shared sender emails,
and attach the lead list.

Files are processed one at a time. A failure on one file is recorded
and the batch moves on; only unexpected errors abort the whole run.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if batchDir == "" {
			return &campaign.ValidationError{Msg: "--dir is required"}
		}

		plans, err := campaign.BuildPlans(batchDir)
		if err != nil {
			return err
		}
		if len(plans) == 0 {
			return &campaign.ValidationError{Msg: fmt.Sprintf("no CSV files found in %s", batchDir)}
		}

		opts, err := buildBatchOptions()
		if err != nil {
			return err
		}

		if batchDryRun {
			printBatchResult(campaign.DryRunResult(plans), true)
			return nil
		}

		client, err := newClient()
		if err != nil {
			return err
		}
		defer client.Close()

		result, err := campaign.RunBatch(cmd.Context(), client, plans, opts)
		if err != nil {
			return err
		}
		printBatchResult(result, false)
		return nil
	},
}

func buildBatchOptions() (campaign.BatchOptions, error) {
	opts := campaign.BatchOptions{SenderEmailIDs: batchSenderIDs}

	if batchSettingsFile != "" {
		var settings campaign.CampaignSettings
		if err := decodeJSONInto(batchSettingsFile, &settings); err != nil {
			return opts, err
		}
		opts.Settings = &settings
	}
	if batchScheduleFile != "" {
		var schedule campaign.CampaignSchedule
		if err := decodeJSONInto(batchScheduleFile, &schedule); err != nil {
			return opts, err
		}
		if err := schedule.Validate(); err != nil {
			return opts, err
		}
		opts.Schedule = &schedule
	}
	if batchSequenceFile != "" {
		var sequence campaign.SequenceSpec
		if err := decodeJSONInto(batchSequenceFile, &sequence); err != nil {
			return opts, err
		}
		if err := sequence.Validate(); err != nil {
			return opts, err
		}
		opts.Sequence = &sequence
	}
	if batchPollTimeout > 0 {
		opts.Poller.Timeout = batchPollTimeout
	}
	return opts, nil
}

func printBatchResult(result *campaign.BatchResult, dryRun bool) {
	if jsonOutput {
		printJSON(result)
		return
	}

	if dryRun {
		fmt.Println("dry run: no API calls made")
	}
	for _, file := range result.Files {
		if file.OK {
			if dryRun {
				fmt.Printf("ok\t%s\t%q\t%d lead(s)\n", file.CSV, file.CampaignName, file.LeadCount)
			} else {
				fmt.Printf("ok\t%s\t%q\tcampaign %d, lead list %d\n",
					file.CSV, file.CampaignName, file.CampaignID, file.LeadListID)
			}
			continue
		}
		fmt.Printf("FAIL\t%s\t%s: %s\n", file.CSV, file.ErrorType, file.Error)
	}
	fmt.Printf("processed %d file(s): %d succeeded, %d failed, %d lead(s) loaded\n",
		result.Summary.TotalProcessed, result.Summary.Succeeded,
		result.Summary.Failed, result.Summary.LeadsLoaded)
}

func init() {
	campaignCreateBatchCmd.Flags().StringVar(&batchDir, "dir", "", "Directory of lead CSV files")
	campaignCreateBatchCmd.Flags().StringVar(&batchSettingsFile, "settings-file", "", "JSON settings applied to every campaign")
	campaignCreateBatchCmd.Flags().StringVar(&batchScheduleFile, "schedule-file", "", "JSON schedule applied to every campaign")
	campaignCreateBatchCmd.Flags().StringVar(&batchSequenceFile, "sequence-file", "", "JSON sequence applied to every campaign")
	campaignCreateBatchCmd.Flags().IntSliceVar(&batchSenderIDs, "sender-email-id", nil, "Sender email id attached to every campaign (repeatable)")
	campaignCreateBatchCmd.Flags().BoolVar(&batchDryRun, "dry-run", false, "Plan the batch without calling the API")
	campaignCreateBatchCmd.Flags().DurationVar(&batchPollTimeout, "poll-timeout", 0, "Per-file lead list processing timeout (default 5m)")
	campaignCmd.AddCommand(campaignCreateBatchCmd)
}
