// Package snapshotNormalizer turns raw forum user records into the ordered,
// de-duplicated list of active identities a run reconciles against.
package snapshotNormalizer

import (
	"github.com/forum-rewards/rewarder/pkg/clients/forum"
	"github.com/forum-rewards/rewarder/pkg/rewardsTypes"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/zap"
)

type SnapshotNormalizer struct {
	logger *zap.Logger
}

func NewSnapshotNormalizer(l *zap.Logger) *SnapshotNormalizer {
	return &SnapshotNormalizer{
		logger: l,
	}
}

// Normalize keeps source order, drops zero-activity and identity-less records,
// and collapses repeated identities: the last value seen wins, the first
// position seen is kept.
//
// Identities are used exactly as given, no trimming or case folding.
func (sn *SnapshotNormalizer) Normalize(users []*forum.User) *rewardsTypes.Snapshot {
	snapshot := &rewardsTypes.Snapshot{}
	active := orderedmap.New[string, uint64](orderedmap.WithCapacity[string, uint64](len(users)))

	for _, u := range users {
		if u == nil {
			snapshot.Malformed++
			continue
		}
		identity := u.GetEmail()
		if identity == "" {
			snapshot.Malformed++
			continue
		}

		if _, present := active.Get(identity); present {
			snapshot.Duplicates++
		}

		if u.PostCount == 0 {
			// a later zero overrides an earlier count for the same identity
			active.Delete(identity)
			snapshot.Inactive++
			continue
		}
		active.Set(identity, u.PostCount)
	}

	snapshot.Records = make([]*rewardsTypes.ActivityRecord, 0, active.Len())
	for pair := active.Oldest(); pair != nil; pair = pair.Next() {
		snapshot.Records = append(snapshot.Records, &rewardsTypes.ActivityRecord{
			Identity:      pair.Key,
			ActivityCount: pair.Value,
		})
	}

	sn.logger.Sugar().Infow("Normalized forum snapshot",
		zap.Int("input", len(users)),
		zap.Int("active", len(snapshot.Records)),
		zap.Int("inactive", snapshot.Inactive),
		zap.Int("malformed", snapshot.Malformed),
		zap.Int("duplicates", snapshot.Duplicates),
	)
	if snapshot.Malformed > 0 {
		sn.logger.Sugar().Warnw("Skipped forum records without an identity", zap.Int("count", snapshot.Malformed))
	}
	return snapshot
}
