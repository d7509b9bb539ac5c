// Package service hosts installed guards behind a concurrency-safe API.
//
// Requests for one guard are serialized by a per-guard mutex; different
// guards proceed in parallel. An accepted request is journaled, committed to
// the state database and applied to the in-memory guard before its effects
// are dispatched to the protected account.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"gopkg.in/op/go-logging.v1"

	"github.com/tonkeeper/2fa-extension/credential"
	"github.com/tonkeeper/2fa-extension/envelope"
	"github.com/tonkeeper/2fa-extension/fees"
	"github.com/tonkeeper/2fa-extension/guard"
	"github.com/tonkeeper/2fa-extension/journal"
	"github.com/tonkeeper/2fa-extension/log"
	"github.com/tonkeeper/2fa-extension/metrics"
	"github.com/tonkeeper/2fa-extension/model"
	"github.com/tonkeeper/2fa-extension/receipt"
	"github.com/tonkeeper/2fa-extension/statedb"
	"github.com/tonkeeper/2fa-extension/wallet"
)

// Failure stages reported to metrics.
const (
	stageJournal  = "journal"
	stageStateDB  = "statedb"
	stageReceipt  = "receipt"
	stageDispatch = "dispatch"
	stageAccount  = "account"
)

// Options configure a Service. Accounts is required; the rest are optional.
type Options struct {
	Delays   guard.Delays
	Fees     fees.Schedule
	Accounts wallet.Directory

	// DB persists guards; without it guards live only in memory.
	DB *statedb.DB
	// Journal archives requests, snapshots and receipts.
	Journal *journal.Journal
	// ReceiptSigner signs receipts when set.
	ReceiptSigner credential.Signer

	Metrics *metrics.Metrics
	Log     *log.Backend
	// Clock defaults to time.Now.
	Clock func() time.Time
}

type entry struct {
	mu sync.Mutex
	g  *guard.Guard

	recovering atomic.Bool
	delegating atomic.Bool
}

func (e *entry) publish() {
	st := e.g.State()
	e.recovering.Store(st.Recovery.Pending())
	e.delegating.Store(st.Delegation.Pending)
}

// Service is the guard host.
type Service struct {
	opts Options
	log  *logging.Logger

	mu     sync.RWMutex
	guards map[string]*entry
}

// New creates a service and restores every guard stored in opts.DB.
func New(opts Options) (*Service, error) {
	if opts.Accounts == nil {
		return nil, errors.New("service: no account directory")
	}
	if opts.Log == nil {
		opts.Log = log.Discard()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Fees == (fees.Schedule{}) {
		opts.Fees = fees.Basechain()
	}
	s := &Service{
		opts:   opts,
		log:    opts.Log.GetLogger("service"),
		guards: make(map[string]*entry),
	}
	if opts.DB != nil {
		states, err := opts.DB.LoadAll()
		if err != nil {
			return nil, fmt.Errorf("service: restore: %w", err)
		}
		for _, st := range states {
			g, err := guard.Restore(st, s.guardOptions())
			if err != nil {
				return nil, fmt.Errorf("service: restore %s: %w", st.Owner, err)
			}
			e := &entry{g: g}
			e.publish()
			s.guards[st.Owner] = e
		}
		s.log.Noticef("Restored %d guard(s).", len(states))
	}
	s.refreshGauges()
	return s, nil
}

func (s *Service) guardOptions() guard.Options {
	return guard.Options{Delays: s.opts.Delays}
}

func (s *Service) now() uint64 {
	t := s.opts.Clock().Unix()
	if t < 0 {
		return 0
	}
	return uint64(t)
}

func (s *Service) lookup(owner string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.guards[owner]
	if !ok {
		return nil, guard.Reject(guard.CodeNotInstalled, 0, "no guard installed for "+owner)
	}
	return e, nil
}

func (s *Service) refreshGauges() {
	if s.opts.Metrics == nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rec, del int
	for _, e := range s.guards {
		if e.recovering.Load() {
			rec++
		}
		if e.delegating.Load() {
			del++
		}
	}
	s.opts.Metrics.SetGuards(len(s.guards), rec, del)
}

// Install creates the guard for owner from an install payload. origin must
// prove that the protected account itself sent the payload; a forged or
// foreign origin is rejected with NotOwner. A second install for an active
// guard is rejected with AlreadyInstalled.
func (s *Service) Install(ctx context.Context, owner string, payload []byte, origin wallet.Origin) (*model.InstallResult, error) {
	if err := wallet.CheckAddress(owner); err != nil {
		return nil, guard.Reject(guard.CodeMalformed, envelope.OpInstall, err.Error())
	}
	g, err := guard.InstallPayload(owner, origin.Sender, payload, s.guardOptions())
	if err != nil {
		s.rejected(envelope.OpInstall, owner, err, 0)
		return nil, err
	}
	if err := s.authenticate(ctx, envelope.OpInstall, owner, payload, origin); err != nil {
		return nil, err
	}

	res, err := s.install(owner, g, payload)
	if err != nil {
		return nil, err
	}
	s.refreshGauges()
	return res, nil
}

// authenticate checks origin against owner's account.
func (s *Service) authenticate(ctx context.Context, op envelope.OpCode, owner string, body []byte, origin wallet.Origin) error {
	acct, err := s.opts.Accounts.Account(ctx, owner)
	if err != nil {
		s.opts.Metrics.Failure(stageAccount)
		return fmt.Errorf("service: resolve account: %w", err)
	}
	if err := acct.Authenticate(ctx, body, origin); err != nil {
		rej := &guard.Rejection{Code: guard.CodeNotOwner, Op: op, Message: "message not sent by the protected account", Cause: err}
		s.rejected(op, owner, rej, 0)
		return rej
	}
	return nil
}

func (s *Service) install(owner string, g *guard.Guard, payload []byte) (*model.InstallResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.guards[owner]; ok {
		err := guard.Reject(guard.CodeAlreadyInstalled, envelope.OpInstall, "guard already installed")
		s.rejected(envelope.OpInstall, owner, err, 0)
		return nil, err
	}

	st := g.State()
	res := &model.InstallResult{Owner: owner, Extension: wallet.ExtensionAddress(owner), Counter: st.Counter}
	rec := statedb.Record{Op: envelope.OpInstall, Outcome: "installed", At: s.now()}
	if s.opts.Journal != nil {
		snap, err := st.MarshalBinary()
		if err != nil {
			return nil, err
		}
		je, err := s.opts.Journal.Record(payload, snap, nil)
		if err != nil {
			s.opts.Metrics.Failure(stageJournal)
			s.log.Errorf("Failed to journal install for %s: %v", owner, err)
			return nil, err
		}
		s.opts.Metrics.JournalRecords(len(je.CIDs()))
		rec.Request, rec.Snapshot = je.Request.String(), je.Snapshot.String()
		res.RequestCID = rec.Request
	}
	if s.opts.DB != nil {
		if err := s.opts.DB.Install(st, rec); err != nil {
			s.opts.Metrics.Failure(stageStateDB)
			s.log.Errorf("Failed to persist install for %s: %v", owner, err)
			if errors.Is(err, statedb.ErrExists) {
				return nil, guard.Reject(guard.CodeAlreadyInstalled, envelope.OpInstall, "guard already installed")
			}
			return nil, err
		}
	}
	e := &entry{g: g}
	e.publish()
	s.guards[owner] = e
	s.log.Infof("Installed %s guard for %s.", st.Credentials.Shape(), owner)
	return res, nil
}

// Submit evaluates an externally delivered signed request for owner's guard.
func (s *Service) Submit(ctx context.Context, owner string, raw []byte) (*model.SubmitResult, error) {
	return s.submit(ctx, owner, raw, "external")
}

// SubmitRelayed evaluates a signed request relayed through the protected
// account's internal message. origin must prove that the account sent raw;
// otherwise the request is rejected with NotOwner before evaluation.
func (s *Service) SubmitRelayed(ctx context.Context, owner string, raw []byte, origin wallet.Origin) (*model.SubmitResult, error) {
	if origin.Sender != owner {
		err := guard.Reject(guard.CodeNotOwner, 0, "relayed requests must come from the protected account")
		s.rejected(0, owner, err, 0)
		return nil, err
	}
	if err := s.authenticate(ctx, 0, owner, raw, origin); err != nil {
		return nil, err
	}
	return s.submit(ctx, owner, raw, "relayed")
}

func (s *Service) submit(ctx context.Context, owner string, raw []byte, via string) (*model.SubmitResult, error) {
	start := time.Now()
	env, err := envelope.Unmarshal(raw)
	if err != nil {
		err = &guard.Rejection{Code: guard.CodeMalformed, Message: "undecodable envelope", Cause: err}
		s.rejected(0, owner, err, time.Since(start))
		return nil, err
	}
	e, err := s.lookup(owner)
	if err != nil {
		s.rejected(env.Op, owner, err, time.Since(start))
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := s.now()
	t, err := e.g.Evaluate(env, now)
	if err != nil {
		s.rejected(env.Op, owner, err, time.Since(start))
		return nil, err
	}
	acct, err := s.opts.Accounts.Account(ctx, owner)
	if err != nil {
		s.opts.Metrics.Failure(stageAccount)
		s.log.Errorf("%s: %s: failed to resolve account: %v", owner, env.Op, err)
		return nil, fmt.Errorf("service: resolve account: %w", err)
	}

	var je journal.Entry
	if s.opts.Journal != nil {
		snap, err := t.Next.MarshalBinary()
		if err != nil {
			return nil, err
		}
		if je, err = s.opts.Journal.Record(raw, snap, nil); err != nil {
			s.opts.Metrics.Failure(stageJournal)
			s.log.Errorf("%s: %s: failed to journal request: %v", owner, env.Op, err)
			return nil, err
		}
	}

	rc := receipt.FromTransition(owner, env, t, now, je)
	rb, err := receipt.Render(rc, receipt.RenderOptions{Signer: s.opts.ReceiptSigner})
	if err != nil {
		s.opts.Metrics.Failure(stageReceipt)
		s.log.Errorf("%s: %s: failed to render receipt: %v", owner, env.Op, err)
		return nil, err
	}
	if s.opts.ReceiptSigner != nil {
		s.opts.Metrics.ReceiptSigned()
	}
	receiptCID, err := receipt.CID(rb)
	if err != nil {
		return nil, err
	}
	if s.opts.Journal != nil {
		if je.Receipt, err = s.opts.Journal.PutReceipt(rb); err != nil {
			s.opts.Metrics.Failure(stageJournal)
			s.log.Errorf("%s: %s: failed to journal receipt: %v", owner, env.Op, err)
			return nil, err
		}
		s.opts.Metrics.JournalRecords(len(je.CIDs()))
	}

	if s.opts.DB != nil {
		rec := statedb.Record{Op: t.Op, Counter: t.CounterBefore, Outcome: string(t.Outcome), At: now, Receipt: receiptCID}
		if je.Request.Defined() {
			rec.Request, rec.Snapshot = je.Request.String(), je.Snapshot.String()
		}
		var next *guard.State
		if !t.Removed {
			next = &t.Next
		}
		if err := s.opts.DB.Commit(owner, next, rec); err != nil {
			s.opts.Metrics.Failure(stageStateDB)
			s.log.Errorf("%s: %s: failed to commit state: %v", owner, env.Op, err)
			return nil, err
		}
	}
	if err := e.g.Commit(t); err != nil {
		// Unreachable: Evaluate and Commit run under the same lock.
		s.log.Errorf("%s: %s: in-memory commit failed after persisting: %v", owner, env.Op, err)
		return nil, err
	}
	e.publish()
	if t.Removed {
		s.mu.Lock()
		delete(s.guards, owner)
		s.mu.Unlock()
	}

	effects := make([]string, 0, len(t.Effects))
	for _, ef := range t.Effects {
		effects = append(effects, receipt.DescribeEffect(ef))
	}
	res := model.ResultFromTransition(t, effects)
	res.ReceiptCID = receiptCID
	res.Receipt = rb
	if je.Request.Defined() {
		res.RequestCID, res.SnapshotCID = je.Request.String(), je.Snapshot.String()
	}

	if err := wallet.Dispatch(ctx, acct, wallet.ExtensionAddress(owner), t.Effects); err != nil {
		s.opts.Metrics.Failure(stageDispatch)
		s.log.Errorf("%s: %s: committed at counter %d but dispatch failed: %v", owner, env.Op, t.CounterBefore, err)
		res.DispatchError = err.Error()
	}

	s.opts.Metrics.ObserveRequest(t.Op.String(), metrics.ResultAccepted, time.Since(start))
	s.refreshGauges()
	s.log.Infof("%s: %s (%s) accepted at counter %d: %s.", owner, t.Op, via, t.CounterBefore, t.Outcome)
	return &res, nil
}

func (s *Service) rejected(op envelope.OpCode, owner string, err error, d time.Duration) {
	code := guard.CodeOf(err)
	if code == "" {
		code = "Internal"
	}
	s.opts.Metrics.ObserveRequest(op.String(), string(code), d)
	s.log.Noticef("%s: %s rejected: %v", owner, op, err)
}
