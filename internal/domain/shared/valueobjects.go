// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"regexp"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// Difficulty Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Difficulty represents how hard a bug is to fix.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// IsValid checks if the difficulty is one of the known grades.
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (d Difficulty) String() string {
	return string(d)
}

// BaseXP returns the XP awarded for fixing a bug of this difficulty,
// before any bonuses or multipliers.
func (d Difficulty) BaseXP() uint64 {
	switch d {
	case DifficultyEasy:
		return 10
	case DifficultyMedium:
		return 20
	case DifficultyHard:
		return 30
	default:
		return 0
	}
}

// NewDifficulty creates a Difficulty with validation.
func NewDifficulty(value string) (Difficulty, error) {
	d := Difficulty(strings.ToLower(strings.TrimSpace(value)))
	if !d.IsValid() {
		return "", ErrInvalidDifficulty
	}
	return d, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// BugID Value Object
// ═══════════════════════════════════════════════════════════════════════════

// BugID represents a unique bug identifier.
type BugID string

// Bug ID format: category-name-number (e.g., "null-deref-01", "race-cond-03").
var bugIDRegex = regexp.MustCompile(`^[a-z][a-z0-9]*([_-][a-z0-9]+)*$`)

// IsValid checks if the bug ID format is valid.
func (b BugID) IsValid() bool {
	s := string(b)
	return len(s) >= 2 && len(s) <= 64 && bugIDRegex.MatchString(s)
}

// String returns the string representation.
func (b BugID) String() string {
	return string(b)
}

// IsEmpty checks if the ID is empty.
func (b BugID) IsEmpty() bool {
	return b == ""
}

// NewBugID creates a new BugID with validation.
func NewBugID(id string) (BugID, error) {
	bid := BugID(strings.ToLower(strings.TrimSpace(id)))
	if !bid.IsValid() {
		return "", ErrInvalidBugID
	}
	return bid, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// ConsumableKind Value Object
// ═══════════════════════════════════════════════════════════════════════════

// ConsumableKind identifies a purchasable consumable item.
type ConsumableKind string

const (
	// ConsumableHintPack holds hint charges spent when the user reveals a hint.
	ConsumableHintPack ConsumableKind = "hint_pack"
	// ConsumableXPBoost doubles the XP of one completion per charge.
	ConsumableXPBoost ConsumableKind = "xp_boost"
	// ConsumableStreakShield absorbs one missed day without breaking the streak.
	ConsumableStreakShield ConsumableKind = "streak_shield"
)

// AllConsumableKinds lists every known kind in a stable order.
func AllConsumableKinds() []ConsumableKind {
	return []ConsumableKind{ConsumableHintPack, ConsumableXPBoost, ConsumableStreakShield}
}

// IsValid checks if the kind is known.
func (k ConsumableKind) IsValid() bool {
	switch k {
	case ConsumableHintPack, ConsumableXPBoost, ConsumableStreakShield:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (k ConsumableKind) String() string {
	return string(k)
}

// NewConsumableKind creates a ConsumableKind with validation.
func NewConsumableKind(value string) (ConsumableKind, error) {
	k := ConsumableKind(strings.ToLower(strings.TrimSpace(value)))
	if !k.IsValid() {
		return "", ErrInvalidConsumable
	}
	return k, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// GrantReason Value Object
// ═══════════════════════════════════════════════════════════════════════════

// GrantReason records why gems or consumables were credited.
type GrantReason string

const (
	GrantReasonPurchase    GrantReason = "purchase"
	GrantReasonDailyReward GrantReason = "daily_reward"
	GrantReasonAchievement GrantReason = "achievement"
	GrantReasonMilestone   GrantReason = "milestone"
	GrantReasonAdmin       GrantReason = "admin"
)

// IsValid checks if the reason is known.
func (r GrantReason) IsValid() bool {
	switch r {
	case GrantReasonPurchase, GrantReasonDailyReward, GrantReasonAchievement,
		GrantReasonMilestone, GrantReasonAdmin:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (r GrantReason) String() string {
	return string(r)
}
