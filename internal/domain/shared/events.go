// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each event represents something significant that
// happened to the user's progression or economy state.
const (
	// Progress events
	EventBugCompleted         EventType = "progress.bug_completed"
	EventXPGained             EventType = "progress.xp_gained"
	EventLevelUp              EventType = "progress.level_up"
	EventStreakExtended       EventType = "progress.streak_extended"
	EventStreakReset          EventType = "progress.streak_reset"
	EventStreakShieldConsumed EventType = "progress.streak_shield_consumed"
	EventStreakMilestone      EventType = "progress.streak_milestone"
	EventProgressReset        EventType = "progress.reset"

	// Economy events
	EventGemsGranted       EventType = "economy.gems_granted"
	EventGemsSpent         EventType = "economy.gems_spent"
	EventConsumableGranted EventType = "economy.consumable_granted"
	EventConsumableUsed    EventType = "economy.consumable_used"
	EventDailyRewardClaim  EventType = "economy.daily_reward_claimed"

	// Achievement events
	EventAchievementUnlocked EventType = "achievement.unlocked"
)

// AggregateUserProgress is the aggregate ID of the singleton user state.
// The engine tracks exactly one local user.
const AggregateUserProgress = "user_progress"

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// EventID returns the unique identifier of this event instance.
	EventID() string

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
	Version     int       `json:"version"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// EventID implements Event interface.
func (e BaseEvent) EventID() string {
	return e.ID
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event. The timestamp comes from the
// caller so that event time follows the injected clock, not the wall clock.
func NewBaseEvent(eventType EventType, at time.Time) BaseEvent {
	return BaseEvent{
		ID:          uuid.NewString(),
		Type:        eventType,
		Timestamp:   at,
		AggregateId: AggregateUserProgress,
		Version:     1,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// BugCompletedEvent is emitted when a bug completion is recorded.
type BugCompletedEvent struct {
	BaseEvent
	BugID      string `json:"bug_id"`
	Difficulty string `json:"difficulty"`
	HintsUsed  int    `json:"hints_used"`
	XPAwarded  uint64 `json:"xp_awarded"`
}

// Payload implements Event interface.
func (e BugCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"bug_id":     e.BugID,
		"difficulty": e.Difficulty,
		"hints_used": e.HintsUsed,
		"xp_awarded": e.XPAwarded,
	}
}

// NewBugCompletedEvent creates a new BugCompletedEvent.
func NewBugCompletedEvent(at time.Time, bugID BugID, difficulty Difficulty, hintsUsed int, xpAwarded uint64) BugCompletedEvent {
	return BugCompletedEvent{
		BaseEvent:  NewBaseEvent(EventBugCompleted, at),
		BugID:      bugID.String(),
		Difficulty: difficulty.String(),
		HintsUsed:  hintsUsed,
		XPAwarded:  xpAwarded,
	}
}

// XPGainedEvent is emitted when the user gains XP from any source.
type XPGainedEvent struct {
	BaseEvent
	Amount   uint64 `json:"amount"`
	NewTotal uint64 `json:"new_total"`
	Source   string `json:"source"` // e.g., "bug_completion", "achievement", "milestone"
}

// Payload implements Event interface.
func (e XPGainedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"amount":    e.Amount,
		"new_total": e.NewTotal,
		"source":    e.Source,
	}
}

// NewXPGainedEvent creates a new XPGainedEvent.
func NewXPGainedEvent(at time.Time, amount, newTotal uint64, source string) XPGainedEvent {
	return XPGainedEvent{
		BaseEvent: NewBaseEvent(EventXPGained, at),
		Amount:    amount,
		NewTotal:  newTotal,
		Source:    source,
	}
}

// LevelUpEvent is emitted when gained XP crosses a level boundary.
type LevelUpEvent struct {
	BaseEvent
	OldLevel uint64 `json:"old_level"`
	NewLevel uint64 `json:"new_level"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"old_level": e.OldLevel,
		"new_level": e.NewLevel,
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(at time.Time, oldLevel, newLevel uint64) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, at),
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
	}
}

// StreakExtendedEvent is emitted when the daily streak grows or starts.
type StreakExtendedEvent struct {
	BaseEvent
	CurrentStreak int `json:"current_streak"`
	LongestStreak int `json:"longest_streak"`
}

// Payload implements Event interface.
func (e StreakExtendedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"current_streak": e.CurrentStreak,
		"longest_streak": e.LongestStreak,
	}
}

// NewStreakExtendedEvent creates a new StreakExtendedEvent.
func NewStreakExtendedEvent(at time.Time, current, longest int) StreakExtendedEvent {
	return StreakExtendedEvent{
		BaseEvent:     NewBaseEvent(EventStreakExtended, at),
		CurrentStreak: current,
		LongestStreak: longest,
	}
}

// StreakResetEvent is emitted when a missed day breaks the streak.
type StreakResetEvent struct {
	BaseEvent
	PreviousStreak int `json:"previous_streak"`
	DaysMissed     int `json:"days_missed"`
}

// Payload implements Event interface.
func (e StreakResetEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"previous_streak": e.PreviousStreak,
		"days_missed":     e.DaysMissed,
	}
}

// NewStreakResetEvent creates a new StreakResetEvent.
func NewStreakResetEvent(at time.Time, previousStreak, daysMissed int) StreakResetEvent {
	return StreakResetEvent{
		BaseEvent:      NewBaseEvent(EventStreakReset, at),
		PreviousStreak: previousStreak,
		DaysMissed:     daysMissed,
	}
}

// StreakShieldConsumedEvent is emitted when a shield charge absorbs a gap.
type StreakShieldConsumedEvent struct {
	BaseEvent
	DaysMissed       int `json:"days_missed"`
	ChargesRemaining int `json:"charges_remaining"`
	PreservedStreak  int `json:"preserved_streak"`
}

// Payload implements Event interface.
func (e StreakShieldConsumedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"days_missed":       e.DaysMissed,
		"charges_remaining": e.ChargesRemaining,
		"preserved_streak":  e.PreservedStreak,
	}
}

// NewStreakShieldConsumedEvent creates a new StreakShieldConsumedEvent.
func NewStreakShieldConsumedEvent(at time.Time, daysMissed, chargesRemaining, preservedStreak int) StreakShieldConsumedEvent {
	return StreakShieldConsumedEvent{
		BaseEvent:        NewBaseEvent(EventStreakShieldConsumed, at),
		DaysMissed:       daysMissed,
		ChargesRemaining: chargesRemaining,
		PreservedStreak:  preservedStreak,
	}
}

// StreakMilestoneEvent is emitted when the streak reaches a reward threshold.
type StreakMilestoneEvent struct {
	BaseEvent
	Days           int    `json:"days"`
	GemsAwarded    uint64 `json:"gems_awarded"`
	ShieldsAwarded int    `json:"shields_awarded"`
}

// Payload implements Event interface.
func (e StreakMilestoneEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"days":            e.Days,
		"gems_awarded":    e.GemsAwarded,
		"shields_awarded": e.ShieldsAwarded,
	}
}

// NewStreakMilestoneEvent creates a new StreakMilestoneEvent.
func NewStreakMilestoneEvent(at time.Time, days int, gems uint64, shields int) StreakMilestoneEvent {
	return StreakMilestoneEvent{
		BaseEvent:      NewBaseEvent(EventStreakMilestone, at),
		Days:           days,
		GemsAwarded:    gems,
		ShieldsAwarded: shields,
	}
}

// ProgressResetEvent is emitted when the user resets their progression.
type ProgressResetEvent struct {
	BaseEvent
	Full bool `json:"full"` // true when wallet, inventory and unlocks were cleared too
}

// Payload implements Event interface.
func (e ProgressResetEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"full": e.Full,
	}
}

// NewProgressResetEvent creates a new ProgressResetEvent.
func NewProgressResetEvent(at time.Time, full bool) ProgressResetEvent {
	return ProgressResetEvent{
		BaseEvent: NewBaseEvent(EventProgressReset, at),
		Full:      full,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Economy Events
// ═══════════════════════════════════════════════════════════════════════════

// GemsGrantedEvent is emitted when gems are credited to the wallet.
type GemsGrantedEvent struct {
	BaseEvent
	Amount     uint64 `json:"amount"`
	NewBalance uint64 `json:"new_balance"`
	Reason     string `json:"reason"`
}

// Payload implements Event interface.
func (e GemsGrantedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"amount":      e.Amount,
		"new_balance": e.NewBalance,
		"reason":      e.Reason,
	}
}

// NewGemsGrantedEvent creates a new GemsGrantedEvent.
func NewGemsGrantedEvent(at time.Time, amount, newBalance uint64, reason GrantReason) GemsGrantedEvent {
	return GemsGrantedEvent{
		BaseEvent:  NewBaseEvent(EventGemsGranted, at),
		Amount:     amount,
		NewBalance: newBalance,
		Reason:     reason.String(),
	}
}

// GemsSpentEvent is emitted after a successful spend.
type GemsSpentEvent struct {
	BaseEvent
	Amount     uint64 `json:"amount"`
	NewBalance uint64 `json:"new_balance"`
	Item       string `json:"item,omitempty"`
}

// Payload implements Event interface.
func (e GemsSpentEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"amount":      e.Amount,
		"new_balance": e.NewBalance,
		"item":        e.Item,
	}
}

// NewGemsSpentEvent creates a new GemsSpentEvent.
func NewGemsSpentEvent(at time.Time, amount, newBalance uint64, item string) GemsSpentEvent {
	return GemsSpentEvent{
		BaseEvent:  NewBaseEvent(EventGemsSpent, at),
		Amount:     amount,
		NewBalance: newBalance,
		Item:       item,
	}
}

// ConsumableGrantedEvent is emitted when consumable charges are credited.
type ConsumableGrantedEvent struct {
	BaseEvent
	Kind       string `json:"kind"`
	Charges    int    `json:"charges"`
	NewBalance int    `json:"new_balance"`
	Reason     string `json:"reason"`
}

// Payload implements Event interface.
func (e ConsumableGrantedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"kind":        e.Kind,
		"charges":     e.Charges,
		"new_balance": e.NewBalance,
		"reason":      e.Reason,
	}
}

// NewConsumableGrantedEvent creates a new ConsumableGrantedEvent.
func NewConsumableGrantedEvent(at time.Time, kind ConsumableKind, charges, newBalance int, reason GrantReason) ConsumableGrantedEvent {
	return ConsumableGrantedEvent{
		BaseEvent:  NewBaseEvent(EventConsumableGranted, at),
		Kind:       kind.String(),
		Charges:    charges,
		NewBalance: newBalance,
		Reason:     reason.String(),
	}
}

// ConsumableUsedEvent is emitted when one charge is consumed.
type ConsumableUsedEvent struct {
	BaseEvent
	Kind       string `json:"kind"`
	NewBalance int    `json:"new_balance"`
}

// Payload implements Event interface.
func (e ConsumableUsedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"kind":        e.Kind,
		"new_balance": e.NewBalance,
	}
}

// NewConsumableUsedEvent creates a new ConsumableUsedEvent.
func NewConsumableUsedEvent(at time.Time, kind ConsumableKind, newBalance int) ConsumableUsedEvent {
	return ConsumableUsedEvent{
		BaseEvent:  NewBaseEvent(EventConsumableUsed, at),
		Kind:       kind.String(),
		NewBalance: newBalance,
	}
}

// DailyRewardClaimedEvent is emitted when the once-per-day reward is claimed.
type DailyRewardClaimedEvent struct {
	BaseEvent
	Gems         uint64 `json:"gems"`
	RewardStreak int    `json:"reward_streak"`
}

// Payload implements Event interface.
func (e DailyRewardClaimedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"gems":          e.Gems,
		"reward_streak": e.RewardStreak,
	}
}

// NewDailyRewardClaimedEvent creates a new DailyRewardClaimedEvent.
func NewDailyRewardClaimedEvent(at time.Time, gems uint64, rewardStreak int) DailyRewardClaimedEvent {
	return DailyRewardClaimedEvent{
		BaseEvent:    NewBaseEvent(EventDailyRewardClaim, at),
		Gems:         gems,
		RewardStreak: rewardStreak,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Achievement Events
// ═══════════════════════════════════════════════════════════════════════════

// AchievementUnlockedEvent is emitted exactly once per achievement, ever.
type AchievementUnlockedEvent struct {
	BaseEvent
	AchievementID string `json:"achievement_id"`
	Name          string `json:"name"`
	Rarity        string `json:"rarity"`
	XPReward      uint64 `json:"xp_reward"`
}

// Payload implements Event interface.
func (e AchievementUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"achievement_id": e.AchievementID,
		"name":           e.Name,
		"rarity":         e.Rarity,
		"xp_reward":      e.XPReward,
	}
}

// NewAchievementUnlockedEvent creates a new AchievementUnlockedEvent.
func NewAchievementUnlockedEvent(at time.Time, achievementID, name, rarity string, xpReward uint64) AchievementUnlockedEvent {
	return AchievementUnlockedEvent{
		BaseEvent:     NewBaseEvent(EventAchievementUnlocked, at),
		AchievementID: achievementID,
		Name:          name,
		Rarity:        rarity,
		XPReward:      xpReward,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID          string          `json:"id"`
	Type        EventType       `json:"type"`
	AggregateID string          `json:"aggregate_id"`
	Timestamp   time.Time       `json:"timestamp"`
	Version     int             `json:"version"`
	Payload     json.RawMessage `json:"payload"`
}

// Envelope serializes an event into a transport envelope.
func Envelope(e Event) (EventEnvelope, error) {
	payload, err := json.Marshal(e.Payload())
	if err != nil {
		return EventEnvelope{}, err
	}
	return EventEnvelope{
		ID:          e.EventID(),
		Type:        e.EventType(),
		AggregateID: e.AggregateID(),
		Timestamp:   e.OccurredAt(),
		Version:     1,
		Payload:     payload,
	}, nil
}

// EventPublisher defines the interface for publishing committed events.
type EventPublisher interface {
	// Publish delivers the events of one committed mutation.
	Publish(events []Event)
}
