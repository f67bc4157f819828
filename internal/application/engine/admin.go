package engine

import (
	"context"

	"github.com/debugmaster-hub/progression-engine/internal/domain/economy"
	"github.com/debugmaster-hub/progression-engine/internal/domain/progress"
	"github.com/debugmaster-hub/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// APP LIFECYCLE AND RESETS
// ══════════════════════════════════════════════════════════════════════════════

// RecordAppOpened фиксирует момент открытия приложения. Серию не трогает:
// её двигают только решения багов.
func (e *Engine) RecordAppOpened(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t := e.begin()
	t.progress.LastOpenedAt = e.clock.Now()
	t.progressDirty = true

	return e.commit(ctx, t)
}

// ResetProgress обнуляет прогресс и записи решений. Кошелёк, инвентарь
// и открытые достижения переживают сброс: открытое остаётся открытым
// навсегда.
func (e *Engine) ResetProgress(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	t := e.begin()

	t.progress = progress.NewUserProgress()
	t.progressDirty = true
	t.resetProgress = true
	t.emit(shared.NewProgressResetEvent(now, false))

	if err := e.commit(ctx, t); err != nil {
		return err
	}

	e.logger.Warn("progress reset")
	return nil
}

// ResetAll стирает всё: прогресс, решения, кошелёк, инвентарь и
// достижения. Состояние после операции неотличимо от свежей установки.
func (e *Engine) ResetAll(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	t := e.begin()

	t.progress = progress.NewUserProgress()
	t.wallet = economy.NewWallet()
	t.inventory = economy.NewInventory()
	t.progressDirty = true
	t.walletDirty = true
	t.inventoryDirty = true
	t.resetAll = true
	t.emit(shared.NewProgressResetEvent(now, true))

	if err := e.commit(ctx, t); err != nil {
		return err
	}

	e.logger.Warn("full reset")
	return nil
}
