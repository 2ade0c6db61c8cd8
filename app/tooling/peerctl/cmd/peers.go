package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/ardanlabs/peerledger/foundation/blockchain/peer"
	"github.com/spf13/cobra"
)

var peersCmd = &cobra.Command{
	Use:   "peers",
	Short: "List the peers in the directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := filepath.Abs(peerDir)
		if err != nil {
			return err
		}

		peers, err := peer.Lookup(dir, "")
		if err != nil {
			return err
		}

		for _, pr := range peers {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", pr.ID(), pr.Addr)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(peersCmd)
}
