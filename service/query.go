package service

import (
	"fmt"
	"io"
	"sort"

	"github.com/ipfs/go-cid"

	"github.com/tonkeeper/2fa-extension/journal"
	"github.com/tonkeeper/2fa-extension/journal/bundle"
	"github.com/tonkeeper/2fa-extension/model"
)

// Status returns the read-only view of owner's guard.
func (s *Service) Status(owner string) (*model.GuardStatus, error) {
	e, err := s.lookup(owner)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	st := model.StatusFromState(e.g.State(), e.g.Delays())
	return &st, nil
}

// Counter returns the counter the next request for owner must carry.
func (s *Service) Counter(owner string) (uint64, error) {
	e, err := s.lookup(owner)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.g.Counter(), nil
}

// Owners lists the accounts with an installed guard.
func (s *Service) Owners() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.guards))
	for o := range s.guards {
		out = append(out, o)
	}
	sort.Strings(out)
	return out
}

// EstimateFee prices a send-actions request under the configured schedule.
func (s *Service) EstimateFee(q model.FeeQuery) (*model.FeeEstimate, error) {
	est, err := s.opts.Fees.Estimate(q.ForwardBits, q.Outputs, q.Extended)
	if len(q.Message) > 0 {
		est, err = s.opts.Fees.EstimateMessage(q.Message, q.Outputs, q.Extended)
	}
	if err != nil {
		return nil, model.NewError(model.ErrInvalidRequest, err.Error())
	}
	out := model.EstimateFrom(est)
	return &out, nil
}

// History returns the committed requests of owner, including those of
// removed guards.
func (s *Service) History(owner string) ([]model.HistoryEntry, error) {
	if s.opts.DB == nil {
		return nil, model.NewError(model.ErrNotFound, "no state database configured")
	}
	recs, err := s.opts.DB.History(owner)
	if err != nil {
		return nil, err
	}
	out := make([]model.HistoryEntry, 0, len(recs))
	for _, r := range recs {
		out = append(out, model.HistoryEntry{
			Op:          r.Op.String(),
			Counter:     r.Counter,
			Outcome:     r.Outcome,
			At:          r.At,
			RequestCID:  r.Request,
			SnapshotCID: r.Snapshot,
			ReceiptCID:  r.Receipt,
		})
	}
	return out, nil
}

// ExportHistory writes owner's journaled records as a bundle. Records are
// labelled "<n>-<op>/<kind>" in commit order.
func (s *Service) ExportHistory(w io.Writer, owner string) error {
	if s.opts.Journal == nil {
		return model.NewError(model.ErrNotFound, "no journal configured")
	}
	hist, err := s.History(owner)
	if err != nil {
		return err
	}
	if len(hist) == 0 {
		return model.NewError(model.ErrNotFound, "no history for "+owner)
	}
	var ids []cid.Cid
	labels := make(map[string]cid.Cid)
	for i, h := range hist {
		e, err := journal.ParseEntry(h.RequestCID, h.SnapshotCID, h.ReceiptCID)
		if err != nil {
			return err
		}
		for _, r := range e.Refs() {
			// Requests committed without a journal have nothing to export.
			if !s.opts.Journal.Archive.Has(r.ID) {
				continue
			}
			ids = append(ids, r.ID)
			labels[fmt.Sprintf("%04d-%s/%s", i, h.Op, r.Kind)] = r.ID
		}
	}
	if len(ids) == 0 {
		return fmt.Errorf("service: %s: %w", owner, journal.ErrNotFound)
	}
	return bundle.Export(w, s.opts.Journal.Archive, ids, bundle.ExportOptions{Labels: labels, IncludeIndex: true})
}
