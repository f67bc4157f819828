// Package engine - единственный писатель всего состояния прогрессии.
// Все мутации сериализуются одним мьютексом и проходят одинаковый цикл:
// клонировать агрегаты, применить изменения к копиям, проверить
// инварианты, зафиксировать в хранилище и только после этого подменить
// рабочее состояние и разослать события. Ошибка записи отбрасывает
// копии целиком, рабочее состояние не меняется.
package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/debugmaster-hub/progression-engine/internal/application/projection"
	"github.com/debugmaster-hub/progression-engine/internal/domain/achievement"
	"github.com/debugmaster-hub/progression-engine/internal/domain/economy"
	"github.com/debugmaster-hub/progression-engine/internal/domain/progress"
	"github.com/debugmaster-hub/progression-engine/internal/domain/shared"
	"github.com/debugmaster-hub/progression-engine/internal/infrastructure/persistence/kv"
	"github.com/debugmaster-hub/progression-engine/pkg/logger"
	"github.com/debugmaster-hub/progression-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config - тумблеры движка. Выключенная фича не меняет ни формулы
// начисления, ни хранимые данные: она просто не срабатывает.
type Config struct {
	// WeekendBonus - удвоение XP за решения в субботу и воскресенье.
	WeekendBonus bool

	// DailyReward - ежедневный бонус кристаллов.
	DailyReward bool

	// Milestones - награды за рубежи серии.
	Milestones bool
}

// DefaultConfig возвращает конфигурацию со всеми фичами.
func DefaultConfig() Config {
	return Config{
		WeekendBonus: true,
		DailyReward:  true,
		Milestones:   true,
	}
}

// Publisher получает зафиксированные снимки вместе с событиями мутации.
type Publisher interface {
	Publish(snap projection.Snapshot, events []shared.Event) error
}

// Options - зависимости движка. Nil-поля заменяются значениями по
// умолчанию, кроме Publisher: без него события просто не рассылаются.
type Options struct {
	Clock     timeutil.Clock
	Publisher Publisher
	Catalog   []achievement.Definition
	Config    *Config
	Logger    *logger.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// ENGINE
// ══════════════════════════════════════════════════════════════════════════════

// Engine владеет авторитетным состоянием в памяти и сериализует мутации.
type Engine struct {
	mu        sync.Mutex
	state     *kv.State
	repo      *kv.Repository
	evaluator *achievement.Evaluator
	clock     timeutil.Clock
	publisher Publisher
	cfg       Config
	logger    *logger.Logger
}

// New загружает состояние из хранилища и поднимает движок. Повреждённые
// данные и нарушенные инварианты останавливают запуск: работать поверх
// битого состояния нельзя.
func New(ctx context.Context, repo *kv.Repository, opts Options) (*Engine, error) {
	if opts.Clock == nil {
		opts.Clock = timeutil.NewSystemClock(time.UTC)
	}
	if opts.Catalog == nil {
		opts.Catalog = achievement.DefaultCatalog()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	cfg := DefaultConfig()
	if opts.Config != nil {
		cfg = *opts.Config
	}

	evaluator, err := achievement.NewEvaluator(opts.Catalog)
	if err != nil {
		return nil, err
	}

	state, err := repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := state.Progress.Invariants(); err != nil {
		return nil, shared.WrapError("progress", "Load", shared.ErrProgressCorrupted,
			"loaded progress failed invariant checks", err)
	}
	if err := state.Inventory.Invariants(); err != nil {
		return nil, err
	}

	e := &Engine{
		state:     state,
		repo:      repo,
		evaluator: evaluator,
		clock:     opts.Clock,
		publisher: opts.Publisher,
		cfg:       cfg,
		logger:    opts.Logger.With(logger.Component("engine")),
	}

	e.logger.Info("engine started",
		logger.F("xp", state.Progress.XP),
		logger.F("level", state.Progress.Level()),
		logger.Int("total_solved", state.Progress.TotalSolved),
		logger.F("gems", state.Wallet.Gems),
		logger.Int("unlocked", len(state.Unlocks)),
	)

	// Стартовый снимок: подписчики и Latest видят состояние сразу.
	e.publish(e.snapshotLocked(e.clock.Now()), nil)

	return e, nil
}

// Catalog возвращает каталог достижений в порядке оценки.
func (e *Engine) Catalog() []achievement.Definition {
	return e.evaluator.Catalog()
}

// Snapshot возвращает актуальный снимок состояния.
func (e *Engine) Snapshot() projection.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked(e.clock.Now())
}

// snapshotLocked собирает снимок из рабочего состояния. Вызывать только
// под мьютексом.
func (e *Engine) snapshotLocked(at time.Time) projection.Snapshot {
	inv := make(map[shared.ConsumableKind]int, len(e.state.Inventory.Charges))
	for k, v := range e.state.Inventory.Charges {
		inv[k] = v
	}

	type unlock struct {
		id string
		at time.Time
	}
	unlocks := make([]unlock, 0, len(e.state.Unlocks))
	for id, rec := range e.state.Unlocks {
		unlocks = append(unlocks, unlock{id: id, at: rec.UnlockedAt})
	}
	sort.Slice(unlocks, func(i, j int) bool {
		if unlocks[i].at.Equal(unlocks[j].at) {
			return unlocks[i].id < unlocks[j].id
		}
		return unlocks[i].at.Before(unlocks[j].at)
	})
	unlocked := make([]string, len(unlocks))
	for i, u := range unlocks {
		unlocked[i] = u.id
	}

	return projection.Snapshot{
		TakenAt:     at,
		Progress:    *e.state.Progress,
		Wallet:      *e.state.Wallet,
		Inventory:   inv,
		Unlocked:    unlocked,
		Completions: len(e.state.Completions),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// UNIT OF WORK
// ══════════════════════════════════════════════════════════════════════════════

// txn - одна единица работы: копии агрегатов, накопленные события и
// набор изменений для хранилища. До commit рабочее состояние не видит
// никаких изменений.
type txn struct {
	progress  *progress.UserProgress
	wallet    *economy.Wallet
	inventory *economy.Inventory

	progressDirty  bool
	walletDirty    bool
	inventoryDirty bool

	completions []progress.BugCompletionRecord
	unlocks     []achievement.UnlockRecord

	resetProgress bool
	resetAll      bool

	events []shared.Event
}

// begin клонирует рабочие агрегаты. Вызывать только под мьютексом.
func (e *Engine) begin() *txn {
	return &txn{
		progress:  e.state.Progress.Clone(),
		wallet:    e.state.Wallet.Clone(),
		inventory: e.state.Inventory.Clone(),
	}
}

func (t *txn) emit(events ...shared.Event) {
	t.events = append(t.events, events...)
}

// stats собирает снимок для предикатов достижений из staged-копий.
func (t *txn) stats() achievement.Stats {
	return achievement.Stats{
		XP:                 t.progress.XP,
		Level:              t.progress.Level(),
		TotalSolved:        t.progress.TotalSolved,
		EasySolved:         t.progress.EasySolved,
		MediumSolved:       t.progress.MediumSolved,
		HardSolved:         t.progress.HardSolved,
		CurrentStreak:      t.progress.CurrentStreak,
		LongestStreak:      t.progress.LongestStreak,
		SolvedWithoutHints: t.progress.SolvedWithoutHints,
		Gems:               t.wallet.Gems,
	}
}

// runAchievements прогоняет каталог до неподвижной точки: награды за
// открытия меняют статистику и могут открыть следующие достижения.
// Каждое достижение открывается не более одного раза, записи и события
// идут строго в порядке каталога.
func (e *Engine) runAchievements(t *txn, at time.Time) error {
	unlocked := make(map[string]bool, len(e.state.Unlocks)+len(t.unlocks))
	for id := range e.state.Unlocks {
		unlocked[id] = true
	}
	for _, rec := range t.unlocks {
		unlocked[rec.AchievementID] = true
	}

	for {
		newly := e.evaluator.Evaluate(t.stats(), unlocked)
		if len(newly) == 0 {
			return nil
		}

		for _, def := range newly {
			unlocked[def.ID] = true
			t.unlocks = append(t.unlocks, achievement.UnlockRecord{
				AchievementID: def.ID,
				UnlockedAt:    at,
			})
			t.emit(shared.NewAchievementUnlockedEvent(at, def.ID, def.Name, string(def.Rarity), def.XPReward))

			if def.XPReward > 0 {
				oldLevel, newLevel, err := t.progress.GainXP(def.XPReward)
				if err != nil {
					return err
				}
				t.progressDirty = true
				t.emit(shared.NewXPGainedEvent(at, def.XPReward, t.progress.XP, "achievement"))
				if newLevel > oldLevel {
					t.emit(shared.NewLevelUpEvent(at, oldLevel, newLevel))
				}
			}
		}
	}
}

// commit проверяет инварианты staged-копий, пишет изменения в хранилище
// и при успехе подменяет рабочее состояние и рассылает события. Любая
// ошибка оставляет рабочее состояние нетронутым.
func (e *Engine) commit(ctx context.Context, t *txn) error {
	if err := t.progress.Invariants(); err != nil {
		e.logger.Error("invariant violation, mutation aborted", logger.Err(err))
		return err
	}
	if err := t.inventory.Invariants(); err != nil {
		e.logger.Error("invariant violation, mutation aborted", logger.Err(err))
		return err
	}

	cs := &kv.ChangeSet{
		Completions:   t.completions,
		Unlocks:       t.unlocks,
		ResetProgress: t.resetProgress,
		ResetAll:      t.resetAll,
	}
	if t.progressDirty || len(t.unlocks) > 0 {
		cs.Progress = t.progress
	}
	if t.walletDirty {
		cs.Wallet = t.wallet
	}
	if t.inventoryDirty {
		cs.Inventory = t.inventory
	}

	if err := e.repo.Commit(ctx, cs); err != nil {
		e.logger.Error("commit failed, staged changes dropped", logger.Err(err))
		return err
	}

	if cs.Progress != nil {
		e.state.Progress = t.progress
	}
	if cs.Wallet != nil {
		e.state.Wallet = t.wallet
	}
	if cs.Inventory != nil {
		e.state.Inventory = t.inventory
	}
	if t.resetProgress || t.resetAll {
		e.state.Completions = make(map[shared.BugID]progress.BugCompletionRecord)
	}
	if t.resetAll {
		e.state.Unlocks = make(map[string]achievement.UnlockRecord)
	}
	for _, rec := range t.completions {
		e.state.Completions[rec.BugID] = rec
	}
	for _, rec := range t.unlocks {
		e.state.Unlocks[rec.AchievementID] = rec
	}

	e.publish(e.snapshotLocked(e.clock.Now()), t.events)
	return nil
}

func (e *Engine) publish(snap projection.Snapshot, events []shared.Event) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(snap, events); err != nil {
		e.logger.Warn("failed to publish update", logger.Err(err))
	}
}
