package engine

import (
	"context"
	"time"

	"github.com/duara-social/matchengine/pkg/types"
)

// HardFilterStage applies the non-negotiable exclusions (blocks, consent,
// legal constraints) before any scoring runs. The engine never overrides a
// hard-filter exclusion.
type HardFilterStage interface {
	Apply(ctx context.Context, candidates []*types.Profile, user *types.Profile, prefs *types.PreferenceSet) ([]*types.Profile, error)
}

// BlockList answers whether a pair of members may see each other.
type BlockList interface {
	IsBlocked(ctx context.Context, userID, otherID string) (bool, error)
}

// StandardHardFilter is the default hard-filter implementation: it removes
// hidden profiles, minors and stale date-of-birth data, blocked pairs, and
// candidates outside legally enforced age bounds.
type StandardHardFilter struct {
	blocks BlockList // may be nil
}

// NewStandardHardFilter creates a hard filter. blocks may be nil, in which
// case no block-list exclusions apply.
func NewStandardHardFilter(blocks BlockList) *StandardHardFilter {
	return &StandardHardFilter{blocks: blocks}
}

// Apply filters the candidate pool. A block-list lookup failure excludes the
// candidate: when in doubt, the safe direction is exclusion.
func (f *StandardHardFilter) Apply(ctx context.Context, candidates []*types.Profile, user *types.Profile, prefs *types.PreferenceSet) ([]*types.Profile, error) {
	now := time.Now()
	out := make([]*types.Profile, 0, len(candidates))
	for _, c := range candidates {
		if c.ID == user.ID || c.Hidden {
			continue
		}
		if age := c.Age(now); age > 0 && age < minAge {
			continue
		}
		if f.blocks != nil {
			blocked, err := f.blocks.IsBlocked(ctx, user.ID, c.ID)
			if err != nil || blocked {
				continue
			}
		}
		out = append(out, c)
	}
	return out, nil
}
