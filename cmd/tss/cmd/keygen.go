package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/onflow/flow-tss/model/tss"
)

type keygenResult struct {
	GroupID    string `json:"group_id"`
	SessionID  string `json:"session_id"`
	Address    string `json:"address"`
	PartyIndex uint16 `json:"party_index"`
}

func newKeygenCommand(c *cli) *cobra.Command {
	var (
		groupID   string
		sessionID string
	)

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Take part in a key generation session",
		Long: "Take part in a key generation session of a group. Without --session, a new session is created " +
			"and its ID logged so that the other parties can join it.",
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
			var session *tss.Session
			if sessionID == "" {
				session, err = n.coordinator.CreateSession(ctx, group, tss.SessionKeygen)
			} else {
				session, err = n.coordinator.JoinSession(ctx, group, sessionID)
			}
			if err != nil {
				return err
			}
			c.log.Info().
				Str("group_id", group.ID).
				Str("session_id", session.ID).
				Str("params", group.Params.String()).
				Msg("waiting for all parties to join the key generation session")

			share, err := n.coordinator.Keygen(ctx, group, session)
			if err != nil {
				return err
			}
			return printResult(cmd, keygenResult{
				GroupID:    group.ID,
				SessionID:  session.ID,
				Address:    share.Address,
				PartyIndex: share.PartyIndex,
			})
		},
	}
	cmd.Flags().StringVar(&groupID, "group", "", "ID of the group")
	cmd.Flags().StringVar(&sessionID, "session", "", "ID of the session to join, a new session is created if empty")
	_ = cmd.MarkFlagRequired("group")
	return cmd
}
