package engine

import (
	"context"

	"github.com/debugmaster-hub/progression-engine/internal/domain/economy"
	"github.com/debugmaster-hub/progression-engine/internal/domain/shared"
	"github.com/debugmaster-hub/progression-engine/pkg/logger"
	"github.com/debugmaster-hub/progression-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GEMS
// ══════════════════════════════════════════════════════════════════════════════

// GrantGems зачисляет кристаллы и возвращает новый баланс. Зачисление
// может открыть достижения-копилки, поэтому каталог прогоняется тут же.
func (e *Engine) GrantGems(ctx context.Context, amount uint64, reason shared.GrantReason) (uint64, error) {
	if !reason.IsValid() {
		return 0, shared.ErrInvalidGrant
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Нулевое зачисление - допустимый no-op: баланс не меняется,
	// ничего не пишется и не рассылается.
	if amount == 0 {
		return e.state.Wallet.Gems, nil
	}

	now := e.clock.Now()
	t := e.begin()

	if err := t.wallet.Grant(amount); err != nil {
		return e.state.Wallet.Gems, err
	}
	t.walletDirty = true
	t.emit(shared.NewGemsGrantedEvent(now, amount, t.wallet.Gems, reason))

	if err := e.runAchievements(t, now); err != nil {
		return e.state.Wallet.Gems, err
	}
	if err := e.commit(ctx, t); err != nil {
		return e.state.Wallet.Gems, err
	}

	e.logger.Info("gems granted", logger.Gems(amount), logger.F("balance", t.wallet.Gems),
		logger.String("reason", reason.String()))
	return t.wallet.Gems, nil
}

// SpendGems атомарно списывает кристаллы. Недостаток средств - обычный
// исход: возвращается false, баланс не меняется, ничего не пишется.
// Каталог достижений прогоняется после списания: предикаты видят любое
// зафиксированное изменение экономики.
func (e *Engine) SpendGems(ctx context.Context, amount uint64, item string) (bool, error) {
	// Нулевое списание тривиально успешно и не трогает состояние.
	if amount == 0 {
		return true, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	t := e.begin()

	if !t.wallet.Spend(amount) {
		return false, nil
	}
	t.walletDirty = true
	t.emit(shared.NewGemsSpentEvent(now, amount, t.wallet.Gems, item))

	if err := e.runAchievements(t, now); err != nil {
		return false, err
	}
	if err := e.commit(ctx, t); err != nil {
		return false, err
	}

	e.logger.Info("gems spent", logger.Gems(amount), logger.F("balance", t.wallet.Gems),
		logger.String("item", item))
	return true, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CONSUMABLES
// ══════════════════════════════════════════════════════════════════════════════

// PurchaseResult - исход покупки в магазине.
type PurchaseResult struct {
	// Item - купленная позиция.
	Item economy.ShopItem

	// Purchased - false при недостатке кристаллов.
	Purchased bool

	// Balance - баланс после операции.
	Balance uint64

	// Charges - заряды купленного вида после операции.
	Charges int
}

// PurchaseConsumable покупает расходник: списание и зачисление зарядов
// в одной единице работы. Переполнение лимита щитов отклоняет покупку
// целиком, кристаллы не списываются.
func (e *Engine) PurchaseConsumable(ctx context.Context, kind shared.ConsumableKind) (*PurchaseResult, error) {
	item, err := economy.ItemFor(kind)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	t := e.begin()

	if !t.wallet.Spend(item.Price) {
		return &PurchaseResult{Item: item, Purchased: false, Balance: e.state.Wallet.Gems,
			Charges: e.state.Inventory.Count(kind)}, nil
	}
	t.walletDirty = true

	// Списание уже применено к копии: ошибка зачисления отбрасывает
	// всю транзакцию, рабочий кошелёк не тронут.
	if err := t.inventory.Grant(kind, item.Charges); err != nil {
		return nil, err
	}
	t.inventoryDirty = true

	t.emit(shared.NewGemsSpentEvent(now, item.Price, t.wallet.Gems, kind.String()))
	t.emit(shared.NewConsumableGrantedEvent(now, kind, item.Charges, t.inventory.Count(kind),
		shared.GrantReasonPurchase))

	if err := e.runAchievements(t, now); err != nil {
		return nil, err
	}
	if err := e.commit(ctx, t); err != nil {
		return nil, err
	}

	e.logger.Info("consumable purchased",
		logger.Consumable(kind.String()),
		logger.Gems(item.Price),
		logger.F("balance", t.wallet.Gems),
		logger.Int("charges", t.inventory.Count(kind)),
	)
	return &PurchaseResult{Item: item, Purchased: true, Balance: t.wallet.Gems,
		Charges: t.inventory.Count(kind)}, nil
}

// GrantConsumable зачисляет заряды мимо магазина: награды и
// административные выдачи.
func (e *Engine) GrantConsumable(ctx context.Context, kind shared.ConsumableKind, charges int, reason shared.GrantReason) (int, error) {
	if !reason.IsValid() {
		return 0, shared.ErrInvalidGrant
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	t := e.begin()

	if err := t.inventory.Grant(kind, charges); err != nil {
		return e.state.Inventory.Count(kind), err
	}
	t.inventoryDirty = true
	t.emit(shared.NewConsumableGrantedEvent(now, kind, charges, t.inventory.Count(kind), reason))

	if err := e.runAchievements(t, now); err != nil {
		return e.state.Inventory.Count(kind), err
	}
	if err := e.commit(ctx, t); err != nil {
		return e.state.Inventory.Count(kind), err
	}
	return t.inventory.Count(kind), nil
}

// ConsumeConsumable тратит один заряд. Ноль зарядов - обычный исход с
// false, а не ошибка. XP-буст и щит тратятся движком самостоятельно при
// решении бага; эта операция нужна внешним потребителям зарядов вроде
// подсказок.
func (e *Engine) ConsumeConsumable(ctx context.Context, kind shared.ConsumableKind) (bool, error) {
	if !kind.IsValid() {
		return false, shared.ErrInvalidConsumable
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	t := e.begin()

	if !t.inventory.Consume(kind) {
		return false, nil
	}
	t.inventoryDirty = true
	t.emit(shared.NewConsumableUsedEvent(now, kind, t.inventory.Count(kind)))

	if err := e.runAchievements(t, now); err != nil {
		return false, err
	}
	if err := e.commit(ctx, t); err != nil {
		return false, err
	}
	return true, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DAILY REWARD
// ══════════════════════════════════════════════════════════════════════════════

// DailyRewardResult - исход попытки забрать ежедневный бонус.
type DailyRewardResult struct {
	// Claimed - бонус выдан этой операцией.
	Claimed bool

	// AlreadyClaimed - бонус за сегодня уже забирали.
	AlreadyClaimed bool

	// Gems - сколько кристаллов выдано.
	Gems uint64

	// RewardStreak - серия ежедневных бонусов после операции.
	RewardStreak int
}

// ClaimDailyReward выдаёт ежедневный бонус. Идемпотентна в пределах
// календарного дня: повторный вызов в тот же день ничего не меняет.
// Пропуск дня сбрасывает серию бонусов на первый день.
func (e *Engine) ClaimDailyReward(ctx context.Context) (*DailyRewardResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.cfg.DailyReward {
		return &DailyRewardResult{}, nil
	}

	now := e.clock.Now()
	today := e.clock.Today()
	t := e.begin()

	if !t.progress.LastDailyRewardDate.IsZero() &&
		timeutil.DaysBetween(t.progress.LastDailyRewardDate, today) <= 0 {
		return &DailyRewardResult{
			AlreadyClaimed: true,
			RewardStreak:   t.progress.DailyRewardStreak,
		}, nil
	}

	if !t.progress.LastDailyRewardDate.IsZero() &&
		timeutil.DaysBetween(t.progress.LastDailyRewardDate, today) == 1 {
		t.progress.DailyRewardStreak++
	} else {
		t.progress.DailyRewardStreak = 1
	}
	t.progress.LastDailyRewardDate = today
	t.progressDirty = true

	gems := economy.DailyRewardGems(t.progress.DailyRewardStreak)
	if err := t.wallet.Grant(gems); err != nil {
		return nil, err
	}
	t.walletDirty = true

	t.emit(shared.NewDailyRewardClaimedEvent(now, gems, t.progress.DailyRewardStreak))
	t.emit(shared.NewGemsGrantedEvent(now, gems, t.wallet.Gems, shared.GrantReasonDailyReward))

	if err := e.runAchievements(t, now); err != nil {
		return nil, err
	}
	if err := e.commit(ctx, t); err != nil {
		return nil, err
	}

	e.logger.Info("daily reward claimed", logger.Gems(gems),
		logger.Int("reward_streak", t.progress.DailyRewardStreak))
	return &DailyRewardResult{
		Claimed:      true,
		Gems:         gems,
		RewardStreak: t.progress.DailyRewardStreak,
	}, nil
}
