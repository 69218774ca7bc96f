// Package frontier implements the transition-frontier sync pipeline (spec
// §4.2): from a local root to a target best-tip hash, fetch the snarked
// Merkle ledger top-down, fetch and validate staged-ledger parts,
// reconstruct the staged ledger, apply the block chain in height order,
// then commit — releasing ledgers beyond the retention window. Committing
// does not prune snark-pool jobs.
package frontier

import (
	"time"

	"mina-core/internal/action"
	"mina-core/internal/reqreg"
	"mina-core/internal/types"
)

// Kind constants for this subsystem.
const (
	KindSyncInit action.Kind = action.KindFrontierBase + iota
	KindSnarkedLedgerQuery
	KindSnarkedLedgerResponse
	KindSnarkedLedgerError
	KindSnarkedLedgerSuccess
	KindStagedLedgerPartsInit
	KindStagedLedgerPartsSuccess
	KindStagedLedgerPartsError
	KindStagedLedgerReconstructInit
	KindStagedLedgerReconstructSuccess
	KindStagedLedgerReconstructError
	KindBlockApplyInit
	KindBlockApplySuccess
	KindBlockApplyError
	KindCommit
	KindPeerErrored
)

// Phase is the sync-phase state machine (spec §3 "Sync phase state
// machine"). Transitions are strictly forward; no backtracking (spec §8
// property 7, scenario S5).
type Phase int

const (
	PhaseInit Phase = iota
	PhaseSnarkedLedgerPending
	PhaseSnarkedLedgerSuccess
	PhaseStagedLedgerPartsPending
	PhaseStagedLedgerPartsSuccess
	PhaseStagedLedgerReconstructPending
	PhaseStagedLedgerReconstructSuccess
	PhaseBlocksPending
	PhaseBlocksSuccess
	PhaseCommitted
)

var phaseRank = map[Phase]int{
	PhaseInit:                           0,
	PhaseSnarkedLedgerPending:           1,
	PhaseSnarkedLedgerSuccess:           2,
	PhaseStagedLedgerPartsPending:       3,
	PhaseStagedLedgerPartsSuccess:       4,
	PhaseStagedLedgerReconstructPending: 5,
	PhaseStagedLedgerReconstructSuccess: 6,
	PhaseBlocksPending:                  7,
	PhaseBlocksSuccess:                  8,
	PhaseCommitted:                      9,
}

// LedgerAddrTag/BlockFetchTag give pending-request ids for ledger queries
// and block-body fetches distinct Go types (spec §3).
type LedgerAddrTag struct{}
type BlockFetchTag struct{}

// LedgerQuery is one outstanding (ledger_hash, address) query, deduped so
// at most one is outstanding at a time (spec §4.2 phase 1).
type LedgerQuery struct {
	LedgerHash types.LedgerHash
	Address    types.LedgerAddress
	Peer       types.PeerID
	SentAt     time.Time
}

// DefaultRetentionDepth bounds how many committed best-chain ancestors are kept
// before being released (spec §4.2 phase 5, GLOSSARY "transition
// frontier").
const DefaultRetentionDepth = 290

// State is the transition-frontier substate (spec §3 "transition_frontier:
// { genesis, sync, best_chain, needed_protocol_states }").
type State struct {
	Genesis         types.BlockWithHash
	Phase           Phase
	Target          types.BlockHash
	BestChain       []types.BlockWithHash // root -> tip, ascending height
	RetentionDepth  int

	pendingQueries map[types.LedgerAddress]reqreg.ID[LedgerAddrTag]
	queries        *reqreg.Table[LedgerAddrTag, LedgerQuery]
	peerErrors     map[types.PeerID]int
}

// NewState builds a State rooted at genesis, idle until a sync target
// arrives.
func NewState(genesis types.BlockWithHash) *State {
	return &State{
		Genesis:        genesis,
		Phase:          PhaseInit,
		BestChain:      []types.BlockWithHash{genesis},
		RetentionDepth: DefaultRetentionDepth,
		pendingQueries: make(map[types.LedgerAddress]reqreg.ID[LedgerAddrTag]),
		queries:        reqreg.NewTable[LedgerAddrTag, LedgerQuery](),
		peerErrors:     make(map[types.PeerID]int),
	}
}

// canAdvanceTo enforces the phase DAG's monotonicity (spec §8 property 7).
func (s *State) canAdvanceTo(next Phase) bool {
	return phaseRank[next] == phaseRank[s.Phase]+1
}

// maxPeerErrorsBeforeDisconnect mirrors conn.MaxChannelErrorsBeforeDisconnect
// for the sync-specific failure policy (spec §4.2 phase 1 "a peer that
// delivers three such errors is disconnected entirely").
const maxPeerErrorsBeforeDisconnect = 3

// Ledger is the §6 ledger-service contract this pipeline drives: setting
// fetched hashes/accounts, validating staged-ledger parts, reconstructing,
// and applying blocks.
type Ledger interface {
	SetLedgerHashes(ledgerHash types.LedgerHash, addr types.LedgerAddress, childHashes [][32]byte) error
	SetLedgerAccounts(ledgerHash types.LedgerHash, addr types.LedgerAddress, accounts [][]byte) error
	ValidateStagedLedgerParts(targetBlock types.BlockHash, parts []byte) error
	ReconstructStagedLedger(snarkedLedger types.LedgerHash, parts []byte) error
	ApplyBlock(block types.BlockWithHash) error
	ReleaseBelow(height uint64) error
}

// PeerFetch is the §6 p2p-rpc contract used to fetch ledger chunks and
// block bodies from peers during sync.
type PeerFetch interface {
	FetchLedgerQuery(peer types.PeerID, ledgerHash types.LedgerHash, addr types.LedgerAddress) error
	FetchStagedLedgerParts(peer types.PeerID, target types.BlockHash) error
	FetchBlock(peer types.PeerID, hash types.BlockHash) error
	Disconnect(peer types.PeerID) error
}

// --- Actions -------------------------------------------------------------

type SyncInitAction struct {
	action.Base
	Target types.BlockHash
}

type SnarkedLedgerQueryAction struct {
	action.EffectfulBase
	LedgerHash types.LedgerHash
	Addr       types.LedgerAddress
	Peer       types.PeerID
}

type SnarkedLedgerResponseAction struct {
	action.Base
	Addr        types.LedgerAddress
	ChildHashes [][32]byte
	Accounts    [][]byte
}

type SnarkedLedgerErrorAction struct {
	action.EffectfulBase
	Peer types.PeerID
	Addr types.LedgerAddress
}

type SnarkedLedgerSuccessAction struct {
	action.Base
}

type StagedLedgerPartsInitAction struct {
	action.EffectfulBase
	Peer types.PeerID
}

type StagedLedgerPartsSuccessAction struct {
	action.Base
}

type StagedLedgerPartsErrorAction struct {
	action.Base
	Peer types.PeerID
}

type StagedLedgerReconstructInitAction struct {
	action.EffectfulBase
}

type StagedLedgerReconstructSuccessAction struct {
	action.Base
}

type StagedLedgerReconstructErrorAction struct {
	action.Base
}

type BlockApplyInitAction struct {
	action.EffectfulBase
	Block types.BlockWithHash
}

type BlockApplySuccessAction struct {
	action.Base
	Block types.BlockWithHash
}

type BlockApplyErrorAction struct {
	action.Base
	Block types.BlockWithHash
}

type CommitAction struct {
	action.EffectfulBase
}

type PeerErroredAction struct {
	action.EffectfulBase
	Peer types.PeerID
}

// Reduce applies a transition-frontier action to State, enforcing
// monotonic phase transitions (spec §8 property 7).
func Reduce(s *State, a action.Action) {
	switch act := a.(type) {
	case SyncInitAction:
		if s.Phase != PhaseInit {
			return
		}
		s.Target = act.Target
		s.Phase = PhaseSnarkedLedgerPending
	case SnarkedLedgerResponseAction:
		delete(s.pendingQueries, act.Addr)
	case SnarkedLedgerSuccessAction:
		if s.canAdvanceTo(PhaseSnarkedLedgerSuccess) {
			s.Phase = PhaseSnarkedLedgerSuccess
		}
	case StagedLedgerPartsInitAction:
		if s.canAdvanceTo(PhaseStagedLedgerPartsPending) {
			s.Phase = PhaseStagedLedgerPartsPending
		}
	case StagedLedgerPartsSuccessAction:
		if s.canAdvanceTo(PhaseStagedLedgerPartsSuccess) {
			s.Phase = PhaseStagedLedgerPartsSuccess
		}
	case StagedLedgerReconstructInitAction:
		if s.canAdvanceTo(PhaseStagedLedgerReconstructPending) {
			s.Phase = PhaseStagedLedgerReconstructPending
		}
	case StagedLedgerReconstructSuccessAction:
		if s.canAdvanceTo(PhaseStagedLedgerReconstructSuccess) {
			s.Phase = PhaseStagedLedgerReconstructSuccess
		}
	case BlockApplyInitAction:
		if s.Phase == PhaseStagedLedgerReconstructSuccess {
			s.Phase = PhaseBlocksPending
		}
	case BlockApplySuccessAction:
		s.BestChain = append(s.BestChain, act.Block)
		if act.Block.Hash == s.Target {
			s.Phase = PhaseBlocksSuccess
		}
	case CommitAction:
		if s.canAdvanceTo(PhaseCommitted) {
			s.Phase = PhaseCommitted
		}
	case PeerErroredAction:
		s.peerErrors[act.Peer]++
	}
}

// Effects drives the pipeline forward, one phase transition at a time,
// calling the ledger and peer-fetch services (spec §4.2).
func Effects(s *State, a action.Action, d action.Dispatcher, ledger Ledger, fetch PeerFetch) {
	switch act := a.(type) {
	case SyncInitAction:
		// Caller is responsible for picking the first peer and address;
		// modelled here as depth-0 root query against the target ledger
		// hash known from the consensus candidate.
		_ = act

	case SnarkedLedgerQueryAction:
		if err := fetch.FetchLedgerQuery(act.Peer, act.LedgerHash, act.Addr); err != nil {
			dispatchPeerError(d, act.ActionMeta(), act.Peer)
			meta := action.NewMeta(KindSnarkedLedgerError, ptr(act.ActionMeta()), d.Now())
			d.Dispatch(SnarkedLedgerErrorAction{EffectfulBase: action.EffectfulBase{Base: action.Base{Meta: meta}}, Peer: act.Peer, Addr: act.Addr})
		}

	case SnarkedLedgerResponseAction:
		var err error
		if len(act.ChildHashes) > 0 {
			err = ledger.SetLedgerHashes(types.LedgerHash{}, act.Addr, act.ChildHashes)
		} else {
			err = ledger.SetLedgerAccounts(types.LedgerHash{}, act.Addr, act.Accounts)
		}
		if err != nil {
			meta := action.NewMeta(KindSnarkedLedgerError, ptr(act.ActionMeta()), d.Now())
			d.Dispatch(SnarkedLedgerErrorAction{EffectfulBase: action.EffectfulBase{Base: action.Base{Meta: meta}}, Addr: act.Addr})
			return
		}
		if len(s.pendingQueries) == 0 {
			meta := action.NewMeta(KindSnarkedLedgerSuccess, ptr(act.ActionMeta()), d.Now())
			d.Dispatch(SnarkedLedgerSuccessAction{Base: action.Base{Meta: meta}})
		}

	case SnarkedLedgerErrorAction:
		// The failure was already counted by the PeerErroredAction reducer.
		if s.peerErrors[act.Peer] >= maxPeerErrorsBeforeDisconnect {
			_ = fetch.Disconnect(act.Peer)
		}

	case SnarkedLedgerSuccessAction:
		meta := action.NewMeta(KindStagedLedgerPartsInit, ptr(act.ActionMeta()), d.Now())
		d.Dispatch(StagedLedgerPartsInitAction{EffectfulBase: action.EffectfulBase{Base: action.Base{Meta: meta}}})

	case StagedLedgerPartsInitAction:
		if err := fetch.FetchStagedLedgerParts(act.Peer, s.Target); err != nil {
			meta := action.NewMeta(KindStagedLedgerPartsError, ptr(act.ActionMeta()), d.Now())
			d.Dispatch(StagedLedgerPartsErrorAction{Base: action.Base{Meta: meta}, Peer: act.Peer})
		}

	case StagedLedgerPartsSuccessAction:
		meta := action.NewMeta(KindStagedLedgerReconstructInit, ptr(act.ActionMeta()), d.Now())
		d.Dispatch(StagedLedgerReconstructInitAction{EffectfulBase: action.EffectfulBase{Base: action.Base{Meta: meta}}})

	case StagedLedgerReconstructInitAction:
		if err := ledger.ReconstructStagedLedger(types.LedgerHash{}, nil); err != nil {
			meta := action.NewMeta(KindStagedLedgerReconstructError, ptr(act.ActionMeta()), d.Now())
			d.Dispatch(StagedLedgerReconstructErrorAction{Base: action.Base{Meta: meta}})
			return
		}
		meta := action.NewMeta(KindStagedLedgerReconstructSuccess, ptr(act.ActionMeta()), d.Now())
		d.Dispatch(StagedLedgerReconstructSuccessAction{Base: action.Base{Meta: meta}})

	case BlockApplyInitAction:
		if err := ledger.ApplyBlock(act.Block); err != nil {
			meta := action.NewMeta(KindBlockApplyError, ptr(act.ActionMeta()), d.Now())
			d.Dispatch(BlockApplyErrorAction{Base: action.Base{Meta: meta}, Block: act.Block})
			return
		}
		meta := action.NewMeta(KindBlockApplySuccess, ptr(act.ActionMeta()), d.Now())
		d.Dispatch(BlockApplySuccessAction{Base: action.Base{Meta: meta}, Block: act.Block})

	case BlockApplySuccessAction:
		if s.Phase == PhaseBlocksSuccess {
			meta := action.NewMeta(KindCommit, ptr(act.ActionMeta()), d.Now())
			d.Dispatch(CommitAction{EffectfulBase: action.EffectfulBase{Base: action.Base{Meta: meta}}})
		}

	case CommitAction:
		height := uint64(len(s.BestChain)) - 1
		if height > uint64(s.RetentionDepth) {
			_ = ledger.ReleaseBelow(height - uint64(s.RetentionDepth))
		}
	}
}

func dispatchPeerError(d action.Dispatcher, parent action.Meta, peer types.PeerID) {
	meta := action.NewMeta(KindPeerErrored, &parent, d.Now())
	d.Dispatch(PeerErroredAction{EffectfulBase: action.EffectfulBase{Base: action.Base{Meta: meta}}, Peer: peer})
}

func ptr(m action.Meta) *action.Meta { return &m }
