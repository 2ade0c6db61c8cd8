package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/ardanlabs/peerledger/foundation/blockchain/digest"
	"github.com/ardanlabs/peerledger/foundation/blockchain/state"
	"github.com/ardanlabs/peerledger/foundation/blockchain/transport"
	"github.com/spf13/cobra"
)

var (
	to      string
	payload string
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Mine a payload into a block and propose it to a peer",
	Long: `Mine a payload into a block and propose it to a peer.

The block is mined by a short lived node whose ledger is empty, so the block
is built on the zero hash. A peer that already holds blocks will reject it.
To extend an existing ledger, submit the payload to a running node with the
submit command or POST /v1/block/send on that node's public API.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if to == "" || payload == "" {
			return errors.New("both --to and --payload are required")
		}

		// A bare peer id is resolved inside the peer directory.
		addr := to
		if filepath.Ext(addr) != transport.Extension {
			addr = filepath.Join(peerDir, addr+transport.Extension)
		}

		node, err := startEphemeral()
		if err != nil {
			return err
		}
		defer node.stop()

		block, err := node.SendBlock(context.Background(), addr, payload)
		switch {
		case errors.Is(err, state.ErrBlockRejected):
			fmt.Fprintf(cmd.OutOrStdout(), "rejected: %s\n", digest.Hex(block.Hash()))
			return err
		case err != nil:
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "accepted: %s nonce[%d]\n", digest.Hex(block.Hash()), block.Nonce)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&to, "to", "t", "", "Peer id or endpoint path to send the block to.")
	sendCmd.Flags().StringVarP(&payload, "payload", "p", "", "Payload to mine into the block.")
}
