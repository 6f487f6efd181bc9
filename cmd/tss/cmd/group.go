package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/onflow/flow-tss/model/tss"
	"github.com/onflow/flow-tss/network/relay"
)

func newGroupCommand(c *cli) *cobra.Command {
	var (
		label     string
		parties   uint16
		threshold uint16
	)

	cmd := &cobra.Command{
		Use:   "group",
		Short: "Create a group of parties on the session coordination server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			params := tss.Parameters{Parties: parties, Threshold: threshold}
			err := params.Validate()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), c.config.Timeout)
			defer cancel()
			client, err := relay.Dial(ctx, c.log, c.config.Relay)
			if err != nil {
				return err
			}
			defer client.Close()

			group, err := relay.CreateGroup(ctx, client, label, params)
			if err != nil {
				return err
			}
			c.log.Info().Str("group_id", group.ID).Str("params", params.String()).Msg("group created")
			return printResult(cmd, group)
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "human readable name of the group")
	cmd.Flags().Uint16Var(&parties, "parties", 3, "number of parties holding a key share")
	cmd.Flags().Uint16Var(&threshold, "threshold", 1, "maximum number of parties which cannot sign together")
	return cmd
}
