package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ignite/emailbison-cli/internal/bison"
	"github.com/ignite/emailbison-cli/internal/campaign"
)

var campaignCmd = &cobra.Command{
	Use:   "campaign",
	Short: "Manage EmailBison campaigns",
}

// parseID parses a positional campaign/step/list id argument.
func parseID(arg, what string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, &campaign.ValidationError{Msg: fmt.Sprintf("%s must be a positive integer, got %q", what, arg)}
	}
	return id, nil
}

var (
	campaignListSearch string
	campaignListStatus string
	campaignListTagIDs []int
)

var campaignListCmd = &cobra.Command{
	Use:   "list",
	Short: "List campaigns",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		defer client.Close()

		env, _, err := client.ListCampaigns(cmd.Context(), bison.ListCampaignsFilter{
			Search: campaignListSearch,
			Status: campaignListStatus,
			TagIDs: campaignListTagIDs,
		})
		if err != nil {
			return err
		}

		var lines []string
		for _, item := range env.DataList() {
			row, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			id, _ := bison.CoerceInt(row["id"])
			lines = append(lines, fmt.Sprintf("%d\t%v\t%v", id, row["name"], row["status"]))
		}
		dumpOrHuman(env, lines)
		return nil
	},
}

var campaignGetCmd = &cobra.Command{
	Use:   "get CAMPAIGN_ID",
	Short: "Show one campaign",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		campaignID, err := parseID(args[0], "campaign id")
		if err != nil {
			return err
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		defer client.Close()

		env, _, err := client.CampaignDetails(cmd.Context(), campaignID)
		if err != nil {
			return err
		}
		dumpOrHuman(env, nil)
		return nil
	},
}

// simpleCampaignAction builds a command that issues one id-scoped call
// and reports the campaign's status afterwards.
func simpleCampaignAction(use, short, verb string, call func(cmd *cobra.Command, client *bison.Client, campaignID int) (bison.Envelope, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " CAMPAIGN_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			campaignID, err := parseID(args[0], "campaign id")
			if err != nil {
				return err
			}
			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			env, err := call(cmd, client, campaignID)
			if err != nil {
				return err
			}
			status, _ := env.Status()
			line := fmt.Sprintf("campaign %d %s", campaignID, verb)
			if status != "" {
				line = fmt.Sprintf("%s (status: %s)", line, status)
			}
			dumpOrHuman(env, []string{line})
			return nil
		},
	}
}

var campaignStartForce bool

var campaignStartCmd = &cobra.Command{
	Use:   "start CAMPAIGN_ID",
	Short: "Start a campaign after preflight checks",
	Long: `Start (resume) an existing campaign. Before issuing the resume call the
campaign is checked for attached leads, attached sender emails, and at
least one sequence step; all missing conditions are reported together.
Use --force to start anyway.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		campaignID, err := parseID(args[0], "campaign id")
		if err != nil {
			return err
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		defer client.Close()

		status, steps, err := campaign.Start(cmd.Context(), client, campaignID, campaignStartForce)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(map[string]interface{}{
				"campaign_id": campaignID,
				"status":      status,
				"steps":       steps,
			})
			return nil
		}
		fmt.Printf("campaign %d started (status: %s)\n", campaignID, status)
		return nil
	},
}

var (
	campaignStatsStart string
	campaignStatsEnd   string
)

var campaignStatsCmd = &cobra.Command{
	Use:   "stats CAMPAIGN_ID",
	Short: "Show campaign stats for a date range",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		campaignID, err := parseID(args[0], "campaign id")
		if err != nil {
			return err
		}
		if campaignStatsStart == "" || campaignStatsEnd == "" {
			return &campaign.ValidationError{Msg: "--start-date and --end-date are required (YYYY-MM-DD)"}
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		defer client.Close()

		env, _, err := client.CampaignStats(cmd.Context(), campaignID, campaignStatsStart, campaignStatsEnd)
		if err != nil {
			return err
		}
		dumpOrHuman(env, nil)
		return nil
	},
}

var (
	repliesSearch   string
	repliesStatus   string
	repliesFolder   string
	repliesSenderID int
	repliesLeadID   int
	repliesTagIDs   []int
)

var campaignRepliesCmd = &cobra.Command{
	Use:   "replies CAMPAIGN_ID",
	Short: "List replies received by a campaign",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		campaignID, err := parseID(args[0], "campaign id")
		if err != nil {
			return err
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		defer client.Close()

		filter := bison.RepliesFilter{
			Search:        repliesSearch,
			Status:        repliesStatus,
			Folder:        repliesFolder,
			SenderEmailID: repliesSenderID,
			LeadID:        repliesLeadID,
			TagIDs:        repliesTagIDs,
		}
		if cmd.Flags().Changed("read") {
			read, _ := cmd.Flags().GetBool("read")
			filter.Read = &read
		}

		env, _, err := client.CampaignReplies(cmd.Context(), campaignID, filter)
		if err != nil {
			return err
		}
		dumpOrHuman(env, nil)
		return nil
	},
}

var stopFutureLeadIDs []int

var campaignStopFutureCmd = &cobra.Command{
	Use:   "stop-future-emails CAMPAIGN_ID",
	Short: "Stop future sends to specific leads in a campaign",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		campaignID, err := parseID(args[0], "campaign id")
		if err != nil {
			return err
		}
		if len(stopFutureLeadIDs) == 0 {
			return &campaign.ValidationError{Msg: "at least one --lead-id is required"}
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		defer client.Close()

		env, _, err := client.StopFutureEmails(cmd.Context(), campaignID, stopFutureLeadIDs)
		if err != nil {
			return err
		}
		dumpOrHuman(env, []string{
			fmt.Sprintf("stopped future emails for %d lead(s) in campaign %d", len(stopFutureLeadIDs), campaignID),
		})
		return nil
	},
}

var campaignSummaryCmd = &cobra.Command{
	Use:   "summary CAMPAIGN_ID",
	Short: "Show a compact campaign summary",
	Long: `Fetch the campaign details, attached sender emails, and sequence steps
and print them as one consolidated view.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		campaignID, err := parseID(args[0], "campaign id")
		if err != nil {
			return err
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		defer client.Close()

		ctx := cmd.Context()
		details, _, err := client.CampaignDetails(ctx, campaignID)
		if err != nil {
			return err
		}
		senders, _, err := client.GetCampaignSenderEmails(ctx, campaignID)
		if err != nil {
			return err
		}
		sequence, _, err := client.GetSequenceSteps(ctx, campaignID)
		if err != nil {
			return err
		}

		name := ""
		status := ""
		totalLeads := 0
		if data := details.Data(); data != nil {
			name = fmt.Sprintf("%v", data["name"])
			if s, ok := data["status"].(string); ok {
				status = s
			}
			if n, ok := bison.CoerceInt(data["total_leads"]); ok {
				totalLeads = n
			}
		}
		senderCount := len(senders.DataList())
		stepCount := 0
		if data := sequence.Data(); data != nil {
			if steps, ok := data["sequence_steps"].([]interface{}); ok {
				stepCount = len(steps)
			}
		}

		if jsonOutput {
			printJSON(map[string]interface{}{
				"campaign_id":    campaignID,
				"name":           name,
				"status":         status,
				"total_leads":    totalLeads,
				"sender_emails":  senderCount,
				"sequence_steps": stepCount,
				"details":        details,
			})
			return nil
		}
		fmt.Printf("campaign %d: %s\n", campaignID, name)
		fmt.Printf("  status:         %s\n", status)
		fmt.Printf("  total leads:    %d\n", totalLeads)
		fmt.Printf("  sender emails:  %d\n", senderCount)
		fmt.Printf("  sequence steps: %d\n", stepCount)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(campaignCmd)

	campaignListCmd.Flags().StringVar(&campaignListSearch, "search", "", "Filter campaigns by name")
	campaignListCmd.Flags().StringVar(&campaignListStatus, "status", "", "Filter campaigns by status")
	campaignListCmd.Flags().IntSliceVar(&campaignListTagIDs, "tag-id", nil, "Filter campaigns by tag id (repeatable)")
	campaignCmd.AddCommand(campaignListCmd)

	campaignCmd.AddCommand(campaignGetCmd)

	campaignCmd.AddCommand(simpleCampaignAction("pause", "Pause a campaign", "paused",
		func(cmd *cobra.Command, client *bison.Client, campaignID int) (bison.Envelope, error) {
			env, _, err := client.PauseCampaign(cmd.Context(), campaignID)
			return env, err
		}))
	campaignCmd.AddCommand(simpleCampaignAction("resume", "Resume a paused campaign", "resumed",
		func(cmd *cobra.Command, client *bison.Client, campaignID int) (bison.Envelope, error) {
			env, _, err := client.ResumeCampaign(cmd.Context(), campaignID)
			return env, err
		}))
	campaignCmd.AddCommand(simpleCampaignAction("archive", "Archive a campaign", "archived",
		func(cmd *cobra.Command, client *bison.Client, campaignID int) (bison.Envelope, error) {
			env, _, err := client.ArchiveCampaign(cmd.Context(), campaignID)
			return env, err
		}))

	campaignStartCmd.Flags().BoolVar(&campaignStartForce, "force", false, "Start even when preflight checks fail")
	campaignCmd.AddCommand(campaignStartCmd)

	campaignStatsCmd.Flags().StringVar(&campaignStatsStart, "start-date", "", "Range start (YYYY-MM-DD)")
	campaignStatsCmd.Flags().StringVar(&campaignStatsEnd, "end-date", "", "Range end (YYYY-MM-DD)")
	campaignCmd.AddCommand(campaignStatsCmd)

	campaignRepliesCmd.Flags().StringVar(&repliesSearch, "search", "", "Search replies")
	campaignRepliesCmd.Flags().StringVar(&repliesStatus, "status", "", "Filter by interest status")
	campaignRepliesCmd.Flags().StringVar(&repliesFolder, "folder", "", "Filter by folder")
	campaignRepliesCmd.Flags().Bool("read", false, "Filter by read/unread")
	campaignRepliesCmd.Flags().IntVar(&repliesSenderID, "sender-email-id", 0, "Filter by sender email id")
	campaignRepliesCmd.Flags().IntVar(&repliesLeadID, "lead-id", 0, "Filter by lead id")
	campaignRepliesCmd.Flags().IntSliceVar(&repliesTagIDs, "tag-id", nil, "Filter by tag id (repeatable)")
	campaignCmd.AddCommand(campaignRepliesCmd)

	campaignStopFutureCmd.Flags().IntSliceVar(&stopFutureLeadIDs, "lead-id", nil, "Lead id to stop (repeatable)")
	campaignCmd.AddCommand(campaignStopFutureCmd)

	campaignCmd.AddCommand(campaignSummaryCmd)
}
