// Package snarksvc implements the verifier-service boundary consumed by
// internal/snarkverify (spec §6 "verifier pool"). Verification itself
// (checking a Groth16/Pickles proof) is an explicit spec Non-goal; this
// package models the asynchronous shape of the real thing — a bounded
// worker pool that runs a verification function off the single-threaded
// reducer and reports the outcome back through internal/eventsource,
// exactly as a real verifier process would regardless of how long the
// underlying cryptography takes.
package snarksvc

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"mina-core/internal/eventsource"
	"mina-core/internal/reqreg"
	"mina-core/internal/snarkverify"
	"mina-core/internal/types"
)

// Verifier is the pluggable check a worker runs. The default used by New
// always succeeds; tests and the in-memory fake substitute a deterministic
// one to exercise the error path.
type Verifier func(kind string, payload any) (ok bool, errKind snarkverify.ErrorKind)

// AlwaysValid is the default Verifier: every submission passes, used when
// no concrete proof-checking backend is wired (spec Non-goal).
func AlwaysValid(string, any) (bool, snarkverify.ErrorKind) { return true, 0 }

// BlockResult, WorkResult, UserCommandResult are the eventsource payloads a
// worker posts on completion; the node's main loop translates them into
// the matching snarkverify *Success/*Error action.
type BlockResult struct {
	ReqID  reqreg.ID[snarkverify.BlockTag]
	Sender types.PeerID
	OK     bool
	Kind   snarkverify.ErrorKind
}

type WorkResult struct {
	ReqID  reqreg.ID[snarkverify.WorkTag]
	Sender types.PeerID
	OK     bool
	Kind   snarkverify.ErrorKind
}

type UserCommandResult struct {
	ReqID  reqreg.ID[snarkverify.UserCommandTag]
	Sender types.PeerID
	OK     bool
	Kind   snarkverify.ErrorKind
}

// DefaultWorkerPoolSize mirrors a modest verifier-pool size; configurable
// via pkg/config's verifier worker pool size setting.
const DefaultWorkerPoolSize = 4

// Engine is the verifier-pool Service implementation: each VerifyXInit call
// acquires a pool slot and runs Verify in its own goroutine, posting the
// result to Source rather than blocking the reducer/effects pipeline
// (spec §5 "effects never block").
type Engine struct {
	Source *eventsource.Source
	Verify Verifier

	sem chan struct{}
	wg  sync.WaitGroup
}

// New builds an Engine posting results onto source, running up to
// poolSize verifications concurrently.
func New(source *eventsource.Source, poolSize int, verify Verifier) *Engine {
	if poolSize <= 0 {
		poolSize = DefaultWorkerPoolSize
	}
	if verify == nil {
		verify = AlwaysValid
	}
	return &Engine{Source: source, Verify: verify, sem: make(chan struct{}, poolSize)}
}

var _ snarkverify.Service = (*Engine)(nil)

func (e *Engine) VerifyBlockInit(reqID reqreg.ID[snarkverify.BlockTag], sender types.PeerID, block types.BlockWithHash) error {
	e.run(func() {
		ok, kind := e.Verify("block", block)
		e.Source.Post(eventsource.Event{Kind: eventsource.KindVerifier, Payload: BlockResult{ReqID: reqID, Sender: sender, OK: ok, Kind: kind}})
	})
	return nil
}

func (e *Engine) VerifyWorkInit(reqID reqreg.ID[snarkverify.WorkTag], sender types.PeerID, jobIDs []types.JobID) error {
	e.run(func() {
		ok, kind := e.Verify("work", jobIDs)
		e.Source.Post(eventsource.Event{Kind: eventsource.KindVerifier, Payload: WorkResult{ReqID: reqID, Sender: sender, OK: ok, Kind: kind}})
	})
	return nil
}

func (e *Engine) VerifyUserCommandInit(reqID reqreg.ID[snarkverify.UserCommandTag], sender types.PeerID, commandCount int) error {
	e.run(func() {
		ok, kind := e.Verify("user_command", commandCount)
		e.Source.Post(eventsource.Event{Kind: eventsource.KindVerifier, Payload: UserCommandResult{ReqID: reqID, Sender: sender, OK: ok, Kind: kind}})
	})
	return nil
}

// run acquires a worker slot, blocking only the caller's own goroutine (the
// verifier pool, never the reducer) until one is free.
func (e *Engine) run(job func()) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.sem <- struct{}{}
		defer func() { <-e.sem }()
		defer func() {
			if r := recover(); r != nil {
				log.WithField("panic", r).Error("snarksvc: verifier worker crashed")
			}
		}()
		job()
	}()
}

// Wait blocks until every submitted verification has posted its result;
// used by tests and by graceful shutdown.
func (e *Engine) Wait() { e.wg.Wait() }
