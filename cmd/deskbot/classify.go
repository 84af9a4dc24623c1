package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lhdbsbz/deskbot/internal/intent"
)

func newClassifyCmd() *cobra.Command {
	var (
		direct   bool
		pending  bool
		triggers []string
	)
	cmd := &cobra.Command{
		Use:   "classify <text>",
		Short: "Show how a message would be classified",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("trigger") {
				flagPath, _ := cmd.Flags().GetString("config")
				cfg, _, err := loadConfig(flagPath)
				if err != nil {
					return err
				}
				triggers = cfg.Bot.Triggers
			}
			c := intent.NewClassifier(triggers)
			in := intent.Input{Text: strings.Join(args, " "), Direct: direct, PendingImage: pending}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), describeIntent(c.Classify(in)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&direct, "direct", false, "Treat the message as a one-to-one chat.")
	cmd.Flags().BoolVar(&pending, "pending", false, "Pretend an image is pending in the conversation.")
	cmd.Flags().StringSliceVar(&triggers, "trigger", nil, "Trigger phrase (repeatable). Defaults to the configured triggers.")
	return cmd
}

func describeIntent(it intent.Intent) string {
	switch v := it.(type) {
	case intent.Search:
		return fmt.Sprintf("%s query=%q", v.Kind(), v.Query)
	case intent.CodeLookup:
		return fmt.Sprintf("%s code=%q", v.Kind(), v.Code)
	case intent.PaymentCheck:
		return fmt.Sprintf("%s attempt=%q", v.Kind(), v.AttemptID)
	case intent.AIChat:
		return fmt.Sprintf("%s prompt=%q", v.Kind(), v.Prompt)
	default:
		return string(it.Kind())
	}
}
