package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ignite/emailbison-cli/internal/campaign"
)

var sequenceCmd = &cobra.Command{
	Use:   "sequence",
	Short: "Manage campaign email sequences",
}

var sequenceGetCmd = &cobra.Command{
	Use:   "get CAMPAIGN_ID",
	Short: "Show a campaign's sequence steps",
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

		env, _, err := client.GetSequenceSteps(cmd.Context(), campaignID)
		if err != nil {
			return err
		}
		dumpOrHuman(env, nil)
		return nil
	},
}

var sequenceSetFile string

var sequenceSetCmd = &cobra.Command{
	Use:   "set CAMPAIGN_ID",
	Short: "Create a campaign's sequence from a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		campaignID, err := parseID(args[0], "campaign id")
		if err != nil {
			return err
		}
		if sequenceSetFile == "" {
			return &campaign.ValidationError{Msg: "--file is required"}
		}
		var sequence campaign.SequenceSpec
		if err := decodeJSONInto(sequenceSetFile, &sequence); err != nil {
			return err
		}
		if err := sequence.Validate(); err != nil {
			return err
		}

		client, err := newClient()
		if err != nil {
			return err
		}
		defer client.Close()

		env, _, err := client.CreateSequenceSteps(cmd.Context(), campaignID, sequence.Payload())
		if err != nil {
			return err
		}
		dumpOrHuman(env, []string{
			fmt.Sprintf("sequence %q created on campaign %d (%d step(s))",
				sequence.Title, campaignID, len(sequence.SequenceSteps)),
		})
		return nil
	},
}

var sequenceUpdateFile string

var sequenceUpdateCmd = &cobra.Command{
	Use:   "update SEQUENCE_ID",
	Short: "Replace an existing sequence from a JSON file",
	Long: `Replace the steps of an existing sequence. Steps carrying an "id" are
updated in place; steps without one are created.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sequenceID, err := parseID(args[0], "sequence id")
		if err != nil {
			return err
		}
		if sequenceUpdateFile == "" {
			return &campaign.ValidationError{Msg: "--file is required"}
		}
		var update campaign.SequenceUpdateSpec
		if err := decodeJSONInto(sequenceUpdateFile, &update); err != nil {
			return err
		}
		if err := update.Validate(); err != nil {
			return err
		}

		client, err := newClient()
		if err != nil {
			return err
		}
		defer client.Close()

		env, _, err := client.UpdateSequenceSteps(cmd.Context(), sequenceID, update.Payload())
		if err != nil {
			return err
		}
		dumpOrHuman(env, []string{
			fmt.Sprintf("sequence %d updated (%d step(s))", sequenceID, len(update.SequenceSteps)),
		})
		return nil
	},
}

var sequenceDeleteCmd = &cobra.Command{
	Use:   "delete STEP_ID",
	Short: "Delete a single sequence step",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stepID, err := parseID(args[0], "step id")
		if err != nil {
			return err
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		defer client.Close()

		env, _, err := client.DeleteSequenceStep(cmd.Context(), stepID)
		if err != nil {
			return err
		}
		dumpOrHuman(env, []string{fmt.Sprintf("sequence step %d deleted", stepID)})
		return nil
	},
}

var sequenceTestEmail string

var sequenceTestEmailCmd = &cobra.Command{
	Use:   "test-email STEP_ID",
	Short: "Send a test email for one sequence step",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stepID, err := parseID(args[0], "step id")
		if err != nil {
			return err
		}
		if sequenceTestEmail == "" {
			return &campaign.ValidationError{Msg: "--to is required"}
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		defer client.Close()

		env, _, err := client.TestSequenceStepEmail(cmd.Context(), stepID, sequenceTestEmail)
		if err != nil {
			return err
		}
		dumpOrHuman(env, []string{
			fmt.Sprintf("test email for step %d sent to %s", stepID, sequenceTestEmail),
		})
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sequenceCmd)

	sequenceCmd.AddCommand(sequenceGetCmd)

	sequenceSetCmd.Flags().StringVarP(&sequenceSetFile, "file", "f", "", "Path to a JSON sequence spec")
	sequenceCmd.AddCommand(sequenceSetCmd)

	sequenceUpdateCmd.Flags().StringVarP(&sequenceUpdateFile, "file", "f", "", "Path to a JSON sequence update spec")
	sequenceCmd.AddCommand(sequenceUpdateCmd)

	sequenceCmd.AddCommand(sequenceDeleteCmd)

	sequenceTestEmailCmd.Flags().StringVar(&sequenceTestEmail, "to", "", "Recipient for the test email")
	sequenceCmd.AddCommand(sequenceTestEmailCmd)
}
