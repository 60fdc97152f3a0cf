package pipeline

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/halcyon-research/tracklist-cli/internal/model"
	"github.com/halcyon-research/tracklist-cli/internal/store"
)

// Merger applies stage patches to the catalog under the provenance
// precedence rules. All attribute writes flow through here; per-song
// locking makes concurrent patch application safe.
type Merger struct {
	store     store.Store
	stageRank map[model.Stage]int
	mu        sync.Mutex
	songLocks map[string]*sync.Mutex
}

// NewMerger creates a Merger. stageRanking orders stages from most to least
// trusted and breaks ties between sourced values from different stages.
func NewMerger(st store.Store, stageRanking []string) *Merger {
	rank := make(map[model.Stage]int, len(stageRanking))
	for i, s := range stageRanking {
		rank[model.Stage(s)] = i
	}
	return &Merger{
		store:     st,
		stageRank: rank,
		songLocks: map[string]*sync.Mutex{},
	}
}

func (m *Merger) lockSong(id string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.songLocks[id]
	if !ok {
		l = &sync.Mutex{}
		m.songLocks[id] = l
	}
	return l
}

// Apply merges one patch. Attributes that lose to an existing value are
// dropped silently; applying the same patch twice is a no-op. Patches for
// unknown records are logged and discarded, never an error.
func (m *Merger) Apply(ctx context.Context, patch model.Patch) (applied int, err error) {
	if patch.Empty() {
		return 0, nil
	}

	exists, err := m.store.SongExists(ctx, patch.SongID)
	if err != nil {
		return 0, err
	}
	if !exists {
		zap.L().Warn("merge: patch references unknown record",
			zap.String("song_id", patch.SongID),
			zap.String("stage", string(patch.Stage)),
		)
		return 0, nil
	}

	lock := m.lockSong(patch.SongID)
	lock.Lock()
	defer lock.Unlock()

	current, err := m.store.GetAttributes(ctx, patch.SongID)
	if err != nil {
		return 0, err
	}

	for _, pa := range patch.Attrs {
		if !pa.Provenance.Valid() {
			return applied, eris.Errorf("merge: invalid provenance %q for %s/%s",
				pa.Provenance, patch.SongID, pa.Name)
		}
		incoming := model.Attribute{Value: pa.Value, Provenance: pa.Provenance}
		existing, ok := current[pa.Name]
		if ok && pa.Value == existing.Value && pa.Provenance == existing.Provenance {
			continue
		}
		if ok && !m.wins(incoming, existing) {
			continue
		}
		if err := m.store.PutAttribute(ctx, patch.SongID, pa.Name, incoming); err != nil {
			return applied, err
		}
		current[pa.Name] = incoming
		applied++
	}
	return applied, nil
}

// wins reports whether an incoming attribute takes precedence over the
// stored one. Sourced beats inferred beats unresolved; between sourced
// values the configured stage ranking decides, and a stage never replaces
// its own earlier value.
func (m *Merger) wins(incoming, existing model.Attribute) bool {
	ir, er := incoming.Provenance.Rank(), existing.Provenance.Rank()
	if ir != er {
		return ir > er
	}

	// Same rank. Inferred and unresolved values never replace each other.
	if !incoming.Provenance.IsSourced() {
		return false
	}

	is, es := incoming.Provenance.SourceStage(), existing.Provenance.SourceStage()
	if is == es {
		return false
	}
	iRank, iOK := m.stageRank[is]
	eRank, eOK := m.stageRank[es]
	if !iOK || !eOK {
		// Unranked stages lose to ranked ones.
		return iOK
	}
	return iRank < eRank
}
