package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

func newProposeCommand(c *cli) *cobra.Command {
	var (
		groupID string
		address string
		message string
	)

	cmd := &cobra.Command{
		Use:   "propose",
		Short: "Announce a message the group should sign",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), c.config.Timeout)
			defer cancel()

			n, err := c.newNode(ctx)
			if err != nil {
				return err
			}
			defer n.Close()

			group, err := n.joinGroup(ctx, groupID)
			if err != nil {
				return err
			}
			proposal, err := n.coordinator.Propose(ctx, group, address, message)
			if err != nil {
				return err
			}
			return printResult(cmd, proposal)
		},
	}
	cmd.Flags().StringVar(&groupID, "group", "", "ID of the group")
	cmd.Flags().StringVar(&address, "address", "", "address of the key to sign with")
	cmd.Flags().StringVar(&message, "message", "", "message to sign")
	_ = cmd.MarkFlagRequired("group")
	_ = cmd.MarkFlagRequired("address")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}
