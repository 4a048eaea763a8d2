package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ignite/emailbison-cli/internal/bison"
	"github.com/ignite/emailbison-cli/internal/campaign"
)

var senderEmailsCmd = &cobra.Command{
	Use:   "sender-emails",
	Short: "Manage sender email accounts",
}

var (
	senderListSearch      string
	senderListTagIDs      []int
	senderListExcludeTags []int
)

var senderEmailsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sender email accounts for the workspace",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		defer client.Close()

		filter := bison.SenderEmailFilter{
			Search:         senderListSearch,
			TagIDs:         senderListTagIDs,
			ExcludedTagIDs: senderListExcludeTags,
		}
		if cmd.Flags().Changed("without-tags") {
			withoutTags, _ := cmd.Flags().GetBool("without-tags")
			filter.WithoutTags = &withoutTags
		}

		env, _, err := client.ListSenderEmails(cmd.Context(), filter)
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
			lines = append(lines, fmt.Sprintf("%d\t%v\t%v", id, row["email"], row["status"]))
		}
		dumpOrHuman(env, lines)
		return nil
	},
}

var campaignSenderEmailsCmd = &cobra.Command{
	Use:   "sender-emails CAMPAIGN_ID",
	Short: "List sender emails attached to a campaign",
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

		env, _, err := client.GetCampaignSenderEmails(cmd.Context(), campaignID)
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
			lines = append(lines, fmt.Sprintf("%d\t%v", id, row["email"]))
		}
		dumpOrHuman(env, lines)
		return nil
	},
}

// senderEmailAttachment builds attach/remove commands, which differ only
// in the client call and the verb reported.
func senderEmailAttachment(use, short, verb string, call func(cmd *cobra.Command, client *bison.Client, campaignID int, ids []int) (bison.Envelope, error)) *cobra.Command {
	var ids []int
	c := &cobra.Command{
		Use:   use + " CAMPAIGN_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			campaignID, err := parseID(args[0], "campaign id")
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				return &campaign.ValidationError{Msg: "at least one --sender-email-id is required"}
			}
			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			env, err := call(cmd, client, campaignID, ids)
			if err != nil {
				return err
			}
			dumpOrHuman(env, []string{
				fmt.Sprintf("%d sender email(s) %s campaign %d", len(ids), verb, campaignID),
			})
			return nil
		},
	}
	c.Flags().IntSliceVar(&ids, "sender-email-id", nil, "Sender email id (repeatable)")
	return c
}

func init() {
	rootCmd.AddCommand(senderEmailsCmd)

	senderEmailsListCmd.Flags().StringVar(&senderListSearch, "search", "", "Search sender emails")
	senderEmailsListCmd.Flags().IntSliceVar(&senderListTagIDs, "tag-id", nil, "Filter by tag id (repeatable)")
	senderEmailsListCmd.Flags().IntSliceVar(&senderListExcludeTags, "excluded-tag-id", nil, "Exclude tag id (repeatable)")
	senderEmailsListCmd.Flags().Bool("without-tags", false, "Only accounts without tags")
	senderEmailsCmd.AddCommand(senderEmailsListCmd)

	campaignCmd.AddCommand(campaignSenderEmailsCmd)
	campaignCmd.AddCommand(senderEmailAttachment("attach-sender-emails", "Attach sender emails to a campaign", "attached to",
		func(cmd *cobra.Command, client *bison.Client, campaignID int, ids []int) (bison.Envelope, error) {
			env, _, err := client.AttachSenderEmails(cmd.Context(), campaignID, ids)
			return env, err
		}))
	campaignCmd.AddCommand(senderEmailAttachment("remove-sender-emails", "Detach sender emails from a campaign", "removed from",
		func(cmd *cobra.Command, client *bison.Client, campaignID int, ids []int) (bison.Envelope, error) {
			env, _, err := client.RemoveSenderEmails(cmd.Context(), campaignID, ids)
			return env, err
		}))
}
