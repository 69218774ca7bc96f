package main

import (
	"time"

	log "github.com/sirupsen/logrus"

	"mina-core/internal/action"
	"mina-core/internal/blockprodsvc"
	"mina-core/internal/consensus"
	"mina-core/internal/eventsource"
	"mina-core/internal/ledgersvc"
	"mina-core/internal/node"
	"mina-core/internal/p2p"
	"mina-core/internal/p2p/transport"
	"mina-core/internal/rpc"
	"mina-core/internal/snarkpool"
	"mina-core/internal/snarksvc"
	"mina-core/internal/snarkverify"
	"mina-core/internal/store"
	"mina-core/internal/types"
	"mina-core/pkg/config"
)

// wiring holds every long-lived collaborator buildServices constructs, kept
// around so main can close/drain them on shutdown.
type wiring struct {
	host    *transport.Host
	svcImpl *transport.ServiceImpl
	ledger  *ledgersvc.Engine
	ledgerC *ledgersvc.InMemoryClient
	verify  *snarksvc.Engine
	fetcher *rpc.Fetcher
	resp    *rpc.Responder
	source  *eventsource.Source
	cb      *liveCallbacks
}

// rpcInbound is the eventsource payload for bytes arriving on a peer's rpc
// data channel, routed by loop.go to either internal/rpc's Responder (it's
// a request) or built into a frontier action (it's a reply).
type rpcInbound struct {
	peer types.PeerID
	data []byte
}

// liveCallbacks is the snarkverify.Callbacks implementation wired into the
// running node (spec §4.6 "On success" / "On error"): a verified block
// feeds consensus' fork-choice, a verified work batch graduates into the
// snark pool, a verified user-command batch is only logged (concrete
// transaction admission is a spec Non-goal — there is no mempool module
// to admit into), and an attributable failure disconnects the sender. It
// dispatches back into the same store the verification request came
// from, so the store field is filled in once main has built it, after
// buildServices returns but before the event loop starts.
type liveCallbacks struct {
	store *store.Store[node.State]
	pool  *snarkpool.State
}

func (c *liveCallbacks) dispatch(kind action.Kind, build func(action.Meta) action.Action) {
	if c.store == nil {
		return
	}
	meta := action.NewMeta(kind, nil, time.Now())
	c.store.Dispatch(build(meta))
}

// OnBlockVerified dispatches the verified block as a consensus candidate,
// letting consensus.Effects resolve it against the current best tip
// (spec §4.3, §8 scenario S2).
func (c *liveCallbacks) OnBlockVerified(sender types.PeerID, block types.BlockWithHash) {
	b := block.Block
	if b == nil {
		return
	}
	c.dispatch(consensus.KindCandidateBlockReceived, func(meta action.Meta) action.Action {
		return consensus.CandidateBlockReceivedAction{
			Base: action.Base{Meta: meta},
			Candidate: consensus.CandidateBlock{
				Block:            block,
				BlockchainLength: b.BlockchainLength,
				VRFOutput:        b.VRFOutput,
				StakingEpochData: consensus.EpochData{
					EpochCount:     b.EpochCount,
					SlotInEpoch:    b.SlotInEpoch,
					LockCheckpoint: b.LockCheckpoint,
				},
			},
		}
	})
}

// OnWorkVerified graduates every verified job id into the snark pool,
// recovering the fee/prover the candidate was originally gossiped with
// from the pool's own pending-fetch bookkeeping (spec §4.7, §8 scenario
// S3's rate-limited propagation).
func (c *liveCallbacks) OnWorkVerified(sender types.PeerID, jobIDs []types.JobID) {
	for _, id := range jobIDs {
		info, ok := c.pool.PendingInfo(sender, id)
		if !ok {
			info = snarkpool.SnarkInfo{JobID: id, Prover: sender}
		}
		c.dispatch(snarkpool.KindCandidateVerified, func(meta action.Meta) action.Action {
			return snarkpool.CandidateVerifiedAction{Base: action.Base{Meta: meta}, Info: info}
		})
	}
}

func (c *liveCallbacks) OnUserCommandVerified(sender types.PeerID, count int) {
	log.WithFields(log.Fields{"peer": sender, "count": count}).Info("node: user commands verified")
}

// OnVerifyFailed disconnects the sender for an attributable failure (spec
// §4.6 "On error ... this may decrement the sender's reputation or
// disconnect them entirely", §8 scenario S4); a crashed validator thread
// is the node's own fault, not the peer's, so it is left connected.
func (c *liveCallbacks) OnVerifyFailed(sender types.PeerID, kind snarkverify.ErrorKind) {
	if !kind.Attributable() {
		return
	}
	c.dispatch(p2p.KindDisconnect, func(meta action.Meta) action.Action {
		return p2p.DisconnectAction{
			EffectfulBase: action.EffectfulBase{Base: action.Base{Meta: meta}},
			Peer:          sender,
			Reason:        "verification_failed",
		}
	})
}

// buildServices wires the concrete collaborators node.Services needs: a
// libp2p/WebRTC transport, an in-process ledger-service fake wrapped by
// ledgersvc.NewLocal (no gRPC dial), a bounded verifier worker pool, and the
// block-producer's pool/prove/broadcast trio — all driven through one
// shared eventsource.Source so nothing outside internal/eventsource ever
// calls store.Dispatch directly (spec §5). pool is the snark-pool substate
// already embedded in the root state, needed to build the producer's
// PoolSource.
func buildServices(cfg *config.Config, pool *snarkpool.State) (*wiring, node.Services, error) {
	source := eventsource.New(1024)

	host, err := transport.New(transport.Config{
		ListenAddr:     cfg.Network.ListenAddr,
		DiscoveryTag:   cfg.Network.DiscoveryTag,
		BootstrapPeers: cfg.Network.BootstrapPeers,
		ChainID:        cfg.Network.ChainID,
	})
	if err != nil {
		return nil, node.Services{}, err
	}
	svcImpl := transport.NewService(host)

	ledgerClient := ledgersvc.NewInMemoryClient()
	ledgerEngine := ledgersvc.NewLocal(ledgerClient)

	verifyEngine := snarksvc.New(source, cfg.Verifier.WorkerPoolSize, snarksvc.AlwaysValid)

	fetcher := rpc.NewFetcher(svcImpl)
	responder := rpc.NewResponder(svcImpl, ledgerClient)

	svcImpl.OnChannelMessage(func(peer types.PeerID, channel string, data []byte) {
		if channel != "rpc" {
			return
		}
		source.Post(eventsource.Event{Kind: eventsource.KindRPC, Payload: rpcInbound{peer: peer, data: data}})
	})

	cb := &liveCallbacks{pool: pool}

	svc := node.Services{
		P2P:            svcImpl,
		Verify:         verifyEngine,
		VerifyCallback: cb,
		Ledger:         ledgerEngine,
		PeerFetch:      fetcher,
		ProducerLedger: ledgerEngine,
		Prover:         blockprodsvc.NewProver(),
		Broadcaster:    blockprodsvc.NewBroadcaster(host),
		PoolSource:     blockprodsvc.NewPoolAdapter(pool),
	}

	log.WithField("peer_id", host.ID()).Info("node: transport ready")

	return &wiring{
		host:    host,
		svcImpl: svcImpl,
		ledger:  ledgerEngine,
		ledgerC: ledgerClient,
		verify:  verifyEngine,
		fetcher: fetcher,
		resp:    responder,
		source:  source,
		cb:      cb,
	}, svc, nil
}
