package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var announceCmd = &cobra.Command{
	Use:   "announce",
	Short: "Announce a miner to every peer and report who replied",
	RunE: func(cmd *cobra.Command, args []string) error {
		node, err := startEphemeral()
		if err != nil {
			return err
		}
		defer node.stop()

		statuses, err := node.FetchBlocks(context.Background())

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "PEER\tREACHABLE\tERROR")
		for _, status := range statuses {
			fmt.Fprintf(tw, "%s\t%t\t%s\n", status.Peer.ID(), status.Reachable, status.LastError)
		}
		tw.Flush()

		return err
	},
}

func init() {
	rootCmd.AddCommand(announceCmd)
}
