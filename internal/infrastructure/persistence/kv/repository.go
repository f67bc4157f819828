package kv

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/debugmaster-hub/progression-engine/internal/domain/achievement"
	"github.com/debugmaster-hub/progression-engine/internal/domain/economy"
	"github.com/debugmaster-hub/progression-engine/internal/domain/progress"
	"github.com/debugmaster-hub/progression-engine/internal/domain/shared"
)

// Key schema. Singleton aggregates live under fixed keys, records under
// prefixed keys with their natural ID as suffix.
const (
	KeyProgress  = "progress"
	KeyWallet    = "wallet"
	KeyInventory = "inventory"

	PrefixCompletion = "completion:"
	PrefixUnlock     = "unlock:"
)

// CompletionKey builds the key of one bug completion record.
func CompletionKey(bugID shared.BugID) string {
	return PrefixCompletion + bugID.String()
}

// UnlockKey builds the key of one achievement unlock record.
func UnlockKey(achievementID string) string {
	return PrefixUnlock + achievementID
}

// State is everything the engine loads at startup and keeps authoritative
// in memory afterwards.
type State struct {
	Progress    *progress.UserProgress
	Wallet      *economy.Wallet
	Inventory   *economy.Inventory
	Completions map[shared.BugID]progress.BugCompletionRecord
	Unlocks     map[string]achievement.UnlockRecord
}

// NewState returns an empty, fully initialized state.
func NewState() *State {
	return &State{
		Progress:    progress.NewUserProgress(),
		Wallet:      economy.NewWallet(),
		Inventory:   economy.NewInventory(),
		Completions: make(map[shared.BugID]progress.BugCompletionRecord),
		Unlocks:     make(map[string]achievement.UnlockRecord),
	}
}

// Repository maps domain records onto the key-value store with JSON
// codecs. Marshal errors surface before anything is staged, so a commit
// never half-encodes.
type Repository struct {
	store Store
}

// NewRepository creates a Repository over a store.
func NewRepository(store Store) *Repository {
	return &Repository{store: store}
}

// Store returns the underlying store.
func (r *Repository) Store() Store {
	return r.store
}

// Load reads the complete engine state. Missing keys mean a fresh
// install and come back as zero values, not errors.
func (r *Repository) Load(ctx context.Context) (*State, error) {
	state := NewState()

	if err := r.loadJSON(ctx, KeyProgress, state.Progress); err != nil {
		return nil, err
	}
	if err := r.loadJSON(ctx, KeyWallet, state.Wallet); err != nil {
		return nil, err
	}
	if err := r.loadJSON(ctx, KeyInventory, state.Inventory); err != nil {
		return nil, err
	}
	if state.Inventory.Charges == nil {
		state.Inventory.Charges = make(map[shared.ConsumableKind]int)
	}

	completions, err := r.store.List(ctx, PrefixCompletion)
	if err != nil {
		return nil, shared.NewPersistenceError("kv", "Load", err)
	}
	for key, raw := range completions {
		var rec progress.BugCompletionRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, shared.WrapError("kv", "Load", shared.ErrPersistence,
				"corrupted completion record at "+key, err)
		}
		state.Completions[rec.BugID] = rec
	}

	unlocks, err := r.store.List(ctx, PrefixUnlock)
	if err != nil {
		return nil, shared.NewPersistenceError("kv", "Load", err)
	}
	for key, raw := range unlocks {
		var rec achievement.UnlockRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, shared.WrapError("kv", "Load", shared.ErrPersistence,
				"corrupted unlock record at "+key, err)
		}
		state.Unlocks[rec.AchievementID] = rec
	}

	return state, nil
}

func (r *Repository) loadJSON(ctx context.Context, key string, dst interface{}) error {
	raw, err := r.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return shared.NewPersistenceError("kv", "Load", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return shared.WrapError("kv", "Load", shared.ErrPersistence, "corrupted value at "+key, err)
	}
	return nil
}

// ChangeSet accumulates the dirty parts of one unit of work. The engine
// fills it while mutating staged copies and the repository turns it into
// staged store operations.
type ChangeSet struct {
	Progress    *progress.UserProgress
	Wallet      *economy.Wallet
	Inventory   *economy.Inventory
	Completions []progress.BugCompletionRecord
	Unlocks     []achievement.UnlockRecord

	// ResetProgress clears the progress singleton and completion records.
	ResetProgress bool

	// ResetAll additionally clears wallet, inventory and unlock records.
	ResetAll bool
}

// Empty reports whether the change set stages nothing.
func (cs *ChangeSet) Empty() bool {
	return cs.Progress == nil && cs.Wallet == nil && cs.Inventory == nil &&
		len(cs.Completions) == 0 && len(cs.Unlocks) == 0 &&
		!cs.ResetProgress && !cs.ResetAll
}

// Commit writes the change set atomically.
func (r *Repository) Commit(ctx context.Context, cs *ChangeSet) error {
	if cs.Empty() {
		return nil
	}

	// Encode everything up front: a marshal failure must not reach the store.
	type staged struct {
		key   string
		value []byte
	}
	var puts []staged

	stage := func(key string, v interface{}) error {
		raw, err := json.Marshal(v)
		if err != nil {
			return shared.WrapError("kv", "Commit", shared.ErrPersistence, "failed to encode "+key, err)
		}
		puts = append(puts, staged{key: key, value: raw})
		return nil
	}

	if cs.Progress != nil {
		if err := stage(KeyProgress, cs.Progress); err != nil {
			return err
		}
	}
	if cs.Wallet != nil {
		if err := stage(KeyWallet, cs.Wallet); err != nil {
			return err
		}
	}
	if cs.Inventory != nil {
		if err := stage(KeyInventory, cs.Inventory); err != nil {
			return err
		}
	}
	for _, rec := range cs.Completions {
		if err := stage(CompletionKey(rec.BugID), rec); err != nil {
			return err
		}
	}
	for _, rec := range cs.Unlocks {
		if err := stage(UnlockKey(rec.AchievementID), rec); err != nil {
			return err
		}
	}

	err := r.store.Transact(ctx, func(tx Tx) error {
		if cs.ResetProgress || cs.ResetAll {
			tx.DeletePrefix(PrefixCompletion)
		}
		if cs.ResetAll {
			tx.DeletePrefix(PrefixUnlock)
		}
		for _, p := range puts {
			tx.Put(p.key, p.value)
		}
		return nil
	})
	if err != nil {
		return shared.NewPersistenceError("kv", "Commit", err)
	}
	return nil
}

// ValidPrefix reports whether the key belongs to the known schema.
// Used by backends that share a keyspace with other data.
func ValidPrefix(key string) bool {
	switch {
	case key == KeyProgress, key == KeyWallet, key == KeyInventory:
		return true
	case strings.HasPrefix(key, PrefixCompletion), strings.HasPrefix(key, PrefixUnlock):
		return true
	default:
		return false
	}
}
