package cmd

import (
	"github.com/spf13/cobra"

	"github.com/onflow/flow-tss/model/tss"
	bstorage "github.com/onflow/flow-tss/storage/badger"
)

func newSharesCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "shares",
		Short: "List the key shares stored in the data directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := c.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			shares, err := bstorage.NewKeyShares(db).All()
			if err != nil {
				return err
			}
			if shares == nil {
				shares = []*tss.KeyShare{}
			}
			// local keys are never encoded to JSON
			return printResult(cmd, shares)
		},
	}
}
