package main

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"mina-core/internal/action"
	"mina-core/internal/eventsource"
	"mina-core/internal/frontier"
	"mina-core/internal/node"
	"mina-core/internal/rpc"
	"mina-core/internal/snarksvc"
	"mina-core/internal/snarkverify"
	"mina-core/internal/store"
	"mina-core/internal/telemetry"
	"mina-core/internal/types"
)

// runLoop is the node's single logical event loop (spec §5): it blocks on
// w.source.Wait, translates whatever arrived into the matching root
// action, dispatches it, and refreshes the telemetry gauges every tick —
// until ctx is cancelled.
func runLoop(ctx context.Context, s *store.Store[node.State], w *wiring, tel *telemetry.Collector) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reportTelemetry(s, tel)
			continue
		default:
		}

		// Bound each wait by the tick interval so an idle queue does not
		// keep the loop from reaching the ticker check.
		waitCtx, cancel := context.WithTimeout(ctx, time.Second)
		ev, ok := w.source.Wait(waitCtx)
		cancel()
		if !ok {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		handleEvent(s, w, tel, ev)
	}
}

func handleEvent(s *store.Store[node.State], w *wiring, tel *telemetry.Collector, ev eventsource.Event) {
	switch ev.Kind {
	case eventsource.KindVerifier:
		handleVerifierResult(s, tel, ev.Payload)
	case eventsource.KindRPC:
		in, ok := ev.Payload.(rpcInbound)
		if !ok {
			return
		}
		handleRPCInbound(s, w, in)
	default:
		log.WithField("kind", ev.Kind).Debug("node: unhandled event kind")
	}
}

func rootMeta(kind action.Kind) action.Meta {
	return action.NewMeta(kind, nil, time.Now())
}

func handleVerifierResult(s *store.Store[node.State], tel *telemetry.Collector, payload any) {
	switch res := payload.(type) {
	case snarksvc.BlockResult:
		if res.OK {
			s.Dispatch(snarkverify.BlockVerifySuccessAction{Base: action.Base{Meta: rootMeta(snarkverify.KindBlockVerifySuccess)}, ReqID: res.ReqID})
		} else {
			tel.RecordVerifyError(res.Kind)
			s.Dispatch(snarkverify.BlockVerifyErrorAction{Base: action.Base{Meta: rootMeta(snarkverify.KindBlockVerifyError)}, ReqID: res.ReqID, Kind: res.Kind})
		}
	case snarksvc.WorkResult:
		if res.OK {
			s.Dispatch(snarkverify.WorkVerifySuccessAction{Base: action.Base{Meta: rootMeta(snarkverify.KindWorkVerifySuccess)}, ReqID: res.ReqID})
		} else {
			tel.RecordVerifyError(res.Kind)
			s.Dispatch(snarkverify.WorkVerifyErrorAction{Base: action.Base{Meta: rootMeta(snarkverify.KindWorkVerifyError)}, ReqID: res.ReqID, Kind: res.Kind})
		}
	case snarksvc.UserCommandResult:
		if res.OK {
			s.Dispatch(snarkverify.UserCommandVerifySuccessAction{Base: action.Base{Meta: rootMeta(snarkverify.KindUserCommandVerifySuccess)}, ReqID: res.ReqID})
		} else {
			tel.RecordVerifyError(res.Kind)
			s.Dispatch(snarkverify.UserCommandVerifyErrorAction{Base: action.Base{Meta: rootMeta(snarkverify.KindUserCommandVerifyError)}, ReqID: res.ReqID, Kind: res.Kind})
		}
	}
}

// handleRPCInbound decodes one message read off a peer's rpc channel. Reply
// kinds (the responses to fetches this node issued) become frontier
// actions; request kinds (another peer's fetch) are answered directly
// through the Responder without ever touching the Store.
func handleRPCInbound(s *store.Store[node.State], w *wiring, in rpcInbound) {
	resp, err := rpc.DecodeResponse(in.data)
	if err != nil {
		log.WithError(err).WithField("peer", in.peer).Warn("node: malformed rpc message")
		return
	}

	switch resp.Kind {
	case rpc.KindLedgerQuery, rpc.KindStagedLedgerParts, rpc.KindBlockFetch:
		if err := w.resp.Handle(in.peer, in.data); err != nil {
			log.WithError(err).WithField("peer", in.peer).Warn("node: failed to answer rpc request")
		}

	case rpc.KindLedgerQueryReply:
		s.Dispatch(frontier.SnarkedLedgerResponseAction{
			Base:        action.Base{Meta: rootMeta(frontier.KindSnarkedLedgerResponse)},
			Addr:        resp.Addr,
			ChildHashes: resp.ChildHashes,
			Accounts:    resp.Accounts,
		})

	case rpc.KindStagedLedgerPartsReply:
		if err := w.ledger.ValidateStagedLedgerParts(resp.BlockHash, resp.Parts); err != nil {
			s.Dispatch(frontier.StagedLedgerPartsErrorAction{
				Base: action.Base{Meta: rootMeta(frontier.KindStagedLedgerPartsError)},
				Peer: in.peer,
			})
			return
		}
		s.Dispatch(frontier.StagedLedgerPartsSuccessAction{Base: action.Base{Meta: rootMeta(frontier.KindStagedLedgerPartsSuccess)}})

	case rpc.KindBlockFetchReply:
		block := &types.Block{Hash: resp.BlockHash, RawBody: resp.Block}
		s.Dispatch(frontier.BlockApplyInitAction{
			EffectfulBase: action.EffectfulBase{Base: action.Base{Meta: rootMeta(frontier.KindBlockApplyInit)}},
			Block:         *types.NewBlockWithHash(block),
		})
	}
}

func reportTelemetry(s *store.Store[node.State], tel *telemetry.Collector) {
	st := s.State()
	tel.SetPeerCount(st.P2P.Peers.Count())
	tel.SetBestChainLen(len(st.Frontier.BestChain))
	tel.SetSnarkPoolSize(len(st.SnarkPool.Pool))
}
