// Package cmd contains the peerctl commands.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ardanlabs/peerledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/peerledger/foundation/blockchain/state"
	"github.com/ardanlabs/peerledger/foundation/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	peerDir      string
	genesisPath  string
	replyTimeout time.Duration
	verbose      bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&peerDir, "peer-dir", "d", "zblock/peers", "Directory holding the peer endpoints.")
	rootCmd.PersistentFlags().StringVarP(&genesisPath, "genesis", "g", "zblock/genesis.json", "Path to the genesis file.")
	rootCmd.PersistentFlags().DurationVarP(&replyTimeout, "reply-timeout", "r", 2*time.Second, "How long to wait for a peer to reply.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log node events to stderr.")
}

var rootCmd = &cobra.Command{
	Use:          "peerctl",
	Short:        "Inspect and drive the peers of a ledger",
	SilenceUsage: true,
}

// Execute runs the command selected on the command line.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// =============================================================================

// ephemeral is a short lived node used to talk to the peers. It owns an
// endpoint in the directory so peers have somewhere to send their replies.
type ephemeral struct {
	*state.State
	log  *zap.SugaredLogger
	shut chan struct{}
	done chan struct{}
}

// startEphemeral acquires an endpoint in the peer directory and starts
// accepting the replies sent to it.
func startEphemeral() (*ephemeral, error) {
	output := "stderr"
	if !verbose {
		output = os.DevNull
	}

	log, err := logger.New("PEERCTL", output)
	if err != nil {
		return nil, fmt.Errorf("constructing logger: %w", err)
	}

	gen, err := genesis.LoadOrDefault(genesisPath)
	if err != nil {
		return nil, fmt.Errorf("loading genesis: %w", err)
	}

	st, err := state.New(state.Config{
		PeerDir:      peerDir,
		Genesis:      gen,
		ReplyTimeout: replyTimeout,
		EvHandler: func(v string, args ...any) {
			log.Infof(v, args...)
		},
	})
	if err != nil {
		return nil, err
	}

	e := ephemeral{
		State: st,
		log:   log,
		shut:  make(chan struct{}),
		done:  make(chan struct{}),
	}

	go func() {
		defer close(e.done)
		for {
			select {
			case <-e.shut:
				return
			default:
			}

			if _, err := st.AcceptNext(50 * time.Millisecond); errors.Is(err, state.ErrEndpointClosed) {
				return
			}
		}
	}()

	return &e, nil
}

// stop stops accepting and releases the endpoint.
func (e *ephemeral) stop() {
	close(e.shut)
	<-e.done

	if err := e.Shutdown(); err != nil {
		e.log.Errorw("shutdown", "ERROR", err)
	}
	e.log.Sync()
}
