// Package reconciler intersects the normalized forum snapshot with the
// ledger's registered identities and resolves the ledger state of every match.
package reconciler

import (
	"context"
	"errors"

	"github.com/forum-rewards/rewarder/pkg/ledgerReader"
	"github.com/forum-rewards/rewarder/pkg/rewardsTypes"
	"go.uber.org/zap"
)

// Matched pairs a snapshot record with the registered entry it matched.
type Matched struct {
	Record *rewardsTypes.ActivityRecord
	Entry  *rewardsTypes.RegisteredEntry
}

type Reconciler struct {
	reader *ledgerReader.LedgerReader
	logger *zap.Logger
}

func NewReconciler(reader *ledgerReader.LedgerReader, l *zap.Logger) *Reconciler {
	return &Reconciler{
		reader: reader,
		logger: l,
	}
}

// Match returns the records whose identity is registered, in snapshot order.
// Identities are compared with exact, case-sensitive equality. When an
// identity is registered more than once the lowest index wins, and when the
// snapshot repeats an identity only its first record matches.
func Match(records []*rewardsTypes.ActivityRecord, entries []*rewardsTypes.RegisteredEntry) []*Matched {
	registered := make(map[string]*rewardsTypes.RegisteredEntry, len(entries))
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		if existing, ok := registered[entry.Identity]; ok && existing.Index <= entry.Index {
			continue
		}
		registered[entry.Identity] = entry
	}

	matches := make([]*Matched, 0)
	seen := make(map[string]struct{}, len(records))
	for _, record := range records {
		if record == nil {
			continue
		}
		if _, ok := seen[record.Identity]; ok {
			continue
		}
		entry, ok := registered[record.Identity]
		if !ok {
			continue
		}
		seen[record.Identity] = struct{}{}
		matches = append(matches, &Matched{Record: record, Entry: entry})
	}
	return matches
}

// Reconcile matches the snapshot against the registered entries and resolves
// the recorded count and wallet of every match. The only errors are ledger
// read failures; an empty intersection is a valid result.
func (r *Reconciler) Reconcile(
	ctx context.Context,
	snapshot *rewardsTypes.Snapshot,
	entries []*rewardsTypes.RegisteredEntry,
) ([]*rewardsTypes.QualifiedIdentity, error) {
	var records []*rewardsTypes.ActivityRecord
	if snapshot != nil {
		records = snapshot.Records
	}

	matches := Match(records, entries)
	r.logger.Sugar().Infow("Matched snapshot against registered identities",
		zap.Int("records", len(records)),
		zap.Int("registered", len(entries)),
		zap.Int("matched", len(matches)),
	)
	if len(matches) == 0 {
		return []*rewardsTypes.QualifiedIdentity{}, nil
	}

	identities := make([]string, 0, len(matches))
	for _, m := range matches {
		identities = append(identities, m.Record.Identity)
	}

	resolved, err := r.reader.ResolveIdentities(ctx, identities)
	if err != nil {
		r.logger.Sugar().Errorw("Failed to resolve qualified identities", zap.Error(err))
		// a listed identity without a wallet means the ledger changed between reads
		if errors.Is(err, rewardsTypes.ErrNotRegistered) {
			return nil, &rewardsTypes.LedgerReadError{Call: "walletAddress", Err: err}
		}
		return nil, err
	}

	qualified := make([]*rewardsTypes.QualifiedIdentity, 0, len(matches))
	for i, m := range matches {
		q := &rewardsTypes.QualifiedIdentity{
			Identity:      m.Record.Identity,
			ObservedCount: m.Record.ActivityCount,
			RecordedCount: resolved[i].RecordedCount,
			WalletAddress: resolved[i].WalletAddress,
		}
		r.logger.Sugar().Debugw("Qualified identity",
			zap.String("identity", q.Identity),
			zap.Uint64("registeredIndex", m.Entry.Index),
			zap.Uint64("observedCount", q.ObservedCount),
			zap.Uint64("recordedCount", q.RecordedCount),
			zap.String("wallet", q.WalletAddress.Hex()),
		)
		qualified = append(qualified, q)
	}
	return qualified, nil
}
