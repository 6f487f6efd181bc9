package cmd

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	tsscoordinator "github.com/onflow/flow-tss/engine/tss"
	"github.com/onflow/flow-tss/model/tss"
)

type signResult struct {
	SessionID string         `json:"session_id"`
	Address   string         `json:"address"`
	Signature *tss.Signature `json:"signature"`
	Hex       string         `json:"hex"`
}

func newSignCommand(c *cli) *cobra.Command {
	var (
		groupID   string
		sessionID string
		address   string
		message   string
		digestHex string
	)

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Take part in a signing session",
		Long: "Take part in a signing session of a group with the stored key share of --address. The digest is " +
			"either given with --digest or computed as the Keccak-256 hash of --message.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			digest, err := signingDigest(message, digestHex)
			if err != nil {
				return err
			}

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
				session, err = n.coordinator.CreateSession(ctx, group, tss.SessionSign)
			} else {
				session, err = n.coordinator.JoinSession(ctx, group, sessionID)
			}
			if err != nil {
				return err
			}
			c.log.Info().
				Str("group_id", group.ID).
				Str("session_id", session.ID).
				Str("digest", hexutil.Encode(digest)).
				Msg("waiting for all signers to join the signing session")

			signature, err := n.coordinator.Sign(ctx, group, session, address, digest)
			if err != nil {
				return err
			}
			return printResult(cmd, signResult{
				SessionID: session.ID,
				Address:   address,
				Signature: signature,
				Hex:       signature.Hex(),
			})
		},
	}
	cmd.Flags().StringVar(&groupID, "group", "", "ID of the group")
	cmd.Flags().StringVar(&sessionID, "session", "", "ID of the session to join, a new session is created if empty")
	cmd.Flags().StringVar(&address, "address", "", "address of the key to sign with")
	cmd.Flags().StringVar(&message, "message", "", "message whose Keccak-256 hash is signed")
	cmd.Flags().StringVar(&digestHex, "digest", "", "0x-prefixed 32 byte digest to sign")
	_ = cmd.MarkFlagRequired("group")
	_ = cmd.MarkFlagRequired("address")
	return cmd
}

// signingDigest returns the digest given in hex, or the hash of message.
// Exactly one of both must be set.
func signingDigest(message string, digestHex string) ([]byte, error) {
	switch {
	case message != "" && digestHex != "":
		return nil, fmt.Errorf("--message and --digest are mutually exclusive")
	case digestHex != "":
		digest, err := hexutil.Decode(digestHex)
		if err != nil {
			return nil, fmt.Errorf("invalid digest: %w", err)
		}
		if len(digest) != 32 {
			return nil, fmt.Errorf("digest must be 32 bytes, got %d", len(digest))
		}
		return digest, nil
	case message != "":
		return tsscoordinator.Digest(message), nil
	default:
		return nil, fmt.Errorf("one of --message or --digest is required")
	}
}
