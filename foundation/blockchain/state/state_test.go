package state_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ardanlabs/peerledger/foundation/blockchain/database"
	"github.com/ardanlabs/peerledger/foundation/blockchain/digest"
	"github.com/ardanlabs/peerledger/foundation/blockchain/envelope"
	"github.com/ardanlabs/peerledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/peerledger/foundation/blockchain/peer"
	"github.com/ardanlabs/peerledger/foundation/blockchain/state"
	"github.com/ardanlabs/peerledger/foundation/blockchain/transport"
	"github.com/ardanlabs/peerledger/foundation/blockchain/worker"
	"github.com/ardanlabs/peerledger/foundation/logger"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func ifErrFailNow(t *testing.T, err error) {
	if err != nil {
		t.Error(err)
		t.FailNow()
	}
}

// newLogger constructs the logger the nodes under test write their events to.
func newLogger(t *testing.T) *zap.SugaredLogger {
	log, err := logger.New("TEST")
	ifErrFailNow(t, err)
	t.Cleanup(func() { log.Sync() })

	return log
}

// newNode starts a node in the directory. When withWorker is set the node
// accepts connections and mines in the background.
func newNode(t *testing.T, log *zap.SugaredLogger, dir string, difficulty uint16, withWorker bool) *state.State {
	ev := func(v string, args ...any) {
		log.Infow(fmt.Sprintf(v, args...), "traceid", "00000000-0000-0000-0000-000000000000")
	}

	gen := genesis.Default()
	gen.Difficulty = difficulty

	st, err := state.New(state.Config{
		PeerDir:      dir,
		Genesis:      gen,
		ReplyTimeout: 500 * time.Millisecond,
		ReadTimeout:  500 * time.Millisecond,
		EvHandler:    ev,
	})
	ifErrFailNow(t, err)
	t.Cleanup(func() { st.Shutdown() })

	if withWorker {
		worker.Run(st, worker.Config{
			PollInterval:       10 * time.Millisecond,
			PeerUpdateInterval: time.Hour,
			EvHandler:          ev,
		})
	}

	return st
}

// mine produces a block extending prevHash at the specified difficulty.
func mine(t *testing.T, payload string, prevHash common.Hash, difficulty uint) database.Block {
	block, err := database.Mine(context.Background(), database.NewCandidate("test-creator", payload, prevHash), difficulty, nil)
	ifErrFailNow(t, err)

	return block
}

// =============================================================================

func Test_EndToEnd(t *testing.T) {
	t.Log("Given the need to move a mined block between two peers.")
	{
		t.Logf("\tTest 0:\tWhen peer A sends \"hello\" to peer B at difficulty 8.")
		{
			log := newLogger(t)
			dir := t.TempDir()

			nodeA := newNode(t, log, dir, 8, true)
			nodeB := newNode(t, log, dir, 8, true)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			block, err := nodeA.SendBlock(ctx, nodeB.RetrieveAddr(), "hello")
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould have the block accepted by peer B: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould have the block accepted by peer B.", success)

			if !digest.Meets(block.Hash(), 8) || block.Payload != "hello" || block.Creator != nodeA.RetrieveID().String() {
				t.Fatalf("\t%s\tTest 0:\tShould mine a block for the payload: %s", failed, block)
			}
			t.Logf("\t%s\tTest 0:\tShould mine a block for the payload.", success)

			if nodeB.QueryLedgerLength() != 1 || nodeB.RetrieveTip() != block.Hash() {
				t.Logf("\t%s\tTest 0:\tgot: len[%d] tip[%s]", failed, nodeB.QueryLedgerLength(), digest.Hex(nodeB.RetrieveTip()))
				t.Logf("\t%s\tTest 0:\texp: len[1] tip[%s]", failed, digest.Hex(block.Hash()))
				t.Fatalf("\t%s\tTest 0:\tShould have the block as peer B's tip.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould have the block as peer B's tip.", success)

			if nodeA.QueryLedgerLength() != 1 || nodeA.RetrieveTip() != block.Hash() {
				t.Fatalf("\t%s\tTest 0:\tShould have the block as peer A's tip.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould have the block as peer A's tip.", success)

			// Sending the same payload again builds on the new tip.
			next, err := nodeA.SendBlock(ctx, nodeB.RetrieveAddr(), "hello")
			if err != nil || next.PrevHash != block.Hash() || nodeB.QueryLedgerLength() != 2 {
				t.Fatalf("\t%s\tTest 0:\tShould extend both ledgers with a second block: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould extend both ledgers with a second block.", success)
		}
	}
}

func Test_Dispatch(t *testing.T) {
	t.Log("Given the need to apply inbound signals to the node.")
	{
		log := newLogger(t)
		dir := t.TempDir()
		node := newNode(t, log, dir, 4, false)

		block := mine(t, "hello", digest.ZeroHash, 4)

		t.Logf("\tTest 0:\tWhen receiving the same block twice.")
		{
			reply, ok := node.Dispatch(envelope.AddBlock("peer/a.sock", block))
			if !ok || reply.Value != (envelope.Okay{OK: true}) || reply.From != node.RetrieveAddr() {
				t.Fatalf("\t%s\tTest 0:\tShould reply IsOkay(true) for a new block: %v", failed, reply)
			}
			t.Logf("\t%s\tTest 0:\tShould reply IsOkay(true) for a new block.", success)

			reply, ok = node.Dispatch(envelope.AddBlock("peer/a.sock", block))
			if !ok || reply.Value != (envelope.Okay{OK: false}) {
				t.Fatalf("\t%s\tTest 0:\tShould reply IsOkay(false) for a duplicate: %v", failed, reply)
			}
			t.Logf("\t%s\tTest 0:\tShould reply IsOkay(false) for a duplicate.", success)

			if node.QueryLedgerLength() != 1 {
				t.Fatalf("\t%s\tTest 0:\tShould keep a single block: got %d", failed, node.QueryLedgerLength())
			}
			t.Logf("\t%s\tTest 0:\tShould keep a single block.", success)
		}

		t.Logf("\tTest 1:\tWhen a new miner announces itself.")
		{
			addr := filepath.Join(dir, "miner.sock")

			reply, ok := node.Dispatch(envelope.NewMiner(addr))
			if !ok || reply.Value != (envelope.Okay{OK: true}) {
				t.Fatalf("\t%s\tTest 1:\tShould reply IsOkay(true): %v", failed, reply)
			}
			t.Logf("\t%s\tTest 1:\tShould reply IsOkay(true).", success)

			peers := node.RetrieveKnownPeers()
			if len(peers) != 1 || !peers[0].Match(addr) {
				t.Fatalf("\t%s\tTest 1:\tShould record the miner as a known peer: %v", failed, peers)
			}
			t.Logf("\t%s\tTest 1:\tShould record the miner as a known peer.", success)

			if node.QueryLedgerLength() != 1 {
				t.Fatalf("\t%s\tTest 1:\tShould leave the ledger untouched.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould leave the ledger untouched.", success)
		}

		t.Logf("\tTest 2:\tWhen receiving replies nobody waits for.")
		{
			for _, sig := range []envelope.Signal{
				envelope.IsOkay("peer/a.sock", true),
				envelope.IsBlockConform("peer/a.sock", true),
				envelope.FinishedMining("peer/a.sock", block),
			} {
				if _, ok := node.Dispatch(sig); ok {
					t.Fatalf("\t%s\tTest 2:\tShould not reply to %s.", failed, sig.Kind())
				}
			}
			t.Logf("\t%s\tTest 2:\tShould not reply.", success)

			if node.QueryLedgerLength() != 1 {
				t.Fatalf("\t%s\tTest 2:\tShould leave the ledger untouched.", failed)
			}
			t.Logf("\t%s\tTest 2:\tShould leave the ledger untouched.", success)
		}
	}
}

func Test_GarbageFrame(t *testing.T) {
	t.Log("Given the need to keep serving after a bad frame.")
	{
		t.Logf("\tTest 0:\tWhen a peer receives text that isn't a signal.")
		{
			log := newLogger(t)
			dir := t.TempDir()

			nodeA := newNode(t, log, dir, 4, true)
			nodeB := newNode(t, log, dir, 4, true)

			if err := transport.Send(nodeA.RetrieveAddr(), []byte("{not a signal"), time.Second); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to send the frame: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to send the frame.", success)

			statuses, err := nodeB.FetchBlocks(context.Background())
			if err != nil || len(statuses) != 1 || !statuses[0].Reachable {
				t.Fatalf("\t%s\tTest 0:\tShould still answer announcements: %v: %v", failed, statuses, err)
			}
			t.Logf("\t%s\tTest 0:\tShould still answer announcements.", success)

			if nodeA.QueryLedgerLength() != 0 {
				t.Fatalf("\t%s\tTest 0:\tShould leave the ledger untouched.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould leave the ledger untouched.", success)
		}
	}
}

func Test_FetchBlocks(t *testing.T) {
	t.Log("Given the need to announce a node to every peer.")
	{
		log := newLogger(t)
		dir := t.TempDir()

		// A socket that accepts at the kernel level but never replies.
		deadAddr := filepath.Join(dir, "dead.sock")
		dead, err := net.Listen("unix", deadAddr)
		ifErrFailNow(t, err)
		t.Cleanup(func() { dead.Close() })

		t.Logf("\tTest 0:\tWhen the only peer never replies.")
		{
			node := newNode(t, log, dir, 4, true)

			statuses, err := node.FetchBlocks(context.Background())
			if !errors.Is(err, state.ErrAllPeersFailed) {
				t.Fatalf("\t%s\tTest 0:\tShould fail when every peer failed: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould fail when every peer failed.", success)

			if len(statuses) != 1 || statuses[0].Reachable || statuses[0].Failures == 0 {
				t.Fatalf("\t%s\tTest 0:\tShould record the dead peer: %v", failed, statuses)
			}
			t.Logf("\t%s\tTest 0:\tShould record the dead peer.", success)
		}

		t.Logf("\tTest 1:\tWhen one peer replies and one doesn't.")
		{
			other := newNode(t, log, dir, 4, true)
			node := newNode(t, log, dir, 4, true)

			statuses, err := node.FetchBlocks(context.Background())
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould tolerate a partial failure: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould tolerate a partial failure.", success)

			got := make(map[string]peer.PeerStatus)
			for _, status := range statuses {
				got[status.Peer.Addr] = status
			}

			if s, ok := got[deadAddr]; !ok || s.Reachable {
				t.Fatalf("\t%s\tTest 1:\tShould mark the dead peer unreachable: %v", failed, statuses)
			}
			t.Logf("\t%s\tTest 1:\tShould mark the dead peer unreachable.", success)

			if s, ok := got[other.RetrieveAddr()]; !ok || !s.Reachable {
				t.Fatalf("\t%s\tTest 1:\tShould mark the live peer reachable: %v", failed, statuses)
			}
			t.Logf("\t%s\tTest 1:\tShould mark the live peer reachable.", success)

			if _, ok := got[node.RetrieveAddr()]; ok {
				t.Fatalf("\t%s\tTest 1:\tShould not announce to itself.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould not announce to itself.", success)
		}
	}
}

func Test_SendBlockRejected(t *testing.T) {
	t.Log("Given the need to report a peer refusing a block.")
	{
		t.Logf("\tTest 0:\tWhen the peer's ledger has moved on.")
		{
			log := newLogger(t)
			dir := t.TempDir()

			nodeA := newNode(t, log, dir, 4, true)
			nodeB := newNode(t, log, dir, 4, true)

			// Peer B already has a block peer A knows nothing about.
			if _, ok := nodeB.Dispatch(envelope.AddBlock("peer/c.sock", mine(t, "other", digest.ZeroHash, 4))); !ok {
				t.Fatalf("\t%s\tTest 0:\tShould seed peer B's ledger.", failed)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			block, err := nodeA.SendBlock(ctx, nodeB.RetrieveAddr(), "hello")
			if !errors.Is(err, state.ErrBlockRejected) {
				t.Fatalf("\t%s\tTest 0:\tShould report the rejection: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould report the rejection.", success)

			if nodeA.RetrieveTip() != block.Hash() || nodeB.QueryLedgerLength() != 1 {
				t.Fatalf("\t%s\tTest 0:\tShould keep the block local only.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould keep the block local only.", success)
		}
	}
}

func Test_ConcurrentMining(t *testing.T) {
	t.Log("Given the need to keep the chain linked while the tip moves.")
	{
		t.Logf("\tTest 0:\tWhen several miners race on the same ledger.")
		{
			log := newLogger(t)
			node := newNode(t, log, t.TempDir(), 10, false)

			const miners = 4
			for i := 0; i < miners; i++ {
				if _, err := node.SubmitPayload(fmt.Sprintf("payload-%d", i)); err != nil {
					t.Fatalf("\t%s\tTest 0:\tShould be able to submit a payload: %v", failed, err)
				}
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			var wg sync.WaitGroup
			errs := make(chan error, miners)
			for i := 0; i < miners; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if _, err := node.MineNewBlock(ctx); err != nil {
						errs <- err
					}
				}()
			}
			wg.Wait()
			close(errs)

			for err := range errs {
				t.Fatalf("\t%s\tTest 0:\tShould mine without errors: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould mine without errors.", success)

			blocks := node.RetrieveLedger()
			if len(blocks) != miners {
				t.Logf("\t%s\tTest 0:\tgot: %d", failed, len(blocks))
				t.Logf("\t%s\tTest 0:\texp: %d", failed, miners)
				t.Fatalf("\t%s\tTest 0:\tShould mine one block per payload.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould mine one block per payload.", success)

			seen := make(map[string]int)
			for _, block := range blocks {
				seen[block.Payload]++
			}
			for i := 0; i < miners; i++ {
				payload := fmt.Sprintf("payload-%d", i)
				if seen[payload] != 1 {
					t.Fatalf("\t%s\tTest 0:\tShould mine %s exactly once: got %d", failed, payload, seen[payload])
				}
			}
			t.Logf("\t%s\tTest 0:\tShould mine every payload exactly once.", success)

			if n := node.QueryMempoolLength(); n != 0 {
				t.Fatalf("\t%s\tTest 0:\tShould leave the mempool empty: got %d", failed, n)
			}
			t.Logf("\t%s\tTest 0:\tShould leave the mempool empty.", success)

			if _, err := node.MineNewBlock(ctx); !errors.Is(err, state.ErrNoPayloads) {
				t.Fatalf("\t%s\tTest 0:\tShould report an empty mempool: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould report an empty mempool.", success)

			cancelled, cancelNow := context.WithCancel(context.Background())
			cancelNow()

			if _, err := node.SubmitPayload("later"); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to submit a payload: %v", failed, err)
			}
			if _, err := node.MineNewBlock(cancelled); err == nil {
				t.Fatalf("\t%s\tTest 0:\tShould fail to mine with a cancelled context.", failed)
			}
			if n := node.QueryMempoolLength(); n != 1 {
				t.Fatalf("\t%s\tTest 0:\tShould restore the payload after a failed mining: got %d", failed, n)
			}
			t.Logf("\t%s\tTest 0:\tShould restore the payload after a failed mining.", success)

			if _, err := node.SubmitPayload("\xff\xfe"); !errors.Is(err, database.ErrInvalidText) {
				t.Fatalf("\t%s\tTest 0:\tShould refuse a payload that is not UTF-8: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould refuse a payload that is not UTF-8.", success)

			prev := digest.ZeroHash
			for i, block := range blocks {
				if err := block.Validate(prev, 10); err != nil {
					t.Fatalf("\t%s\tTest 0:\tShould have a linked chain: block %d: %v", failed, i, err)
				}
				prev = block.Hash()
			}
			t.Logf("\t%s\tTest 0:\tShould have a linked chain.", success)
		}
	}
}
