package economy

import (
	"github.com/debugmaster-hub/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SHOP
// ══════════════════════════════════════════════════════════════════════════════

// ShopItem - позиция магазина: сколько стоит и сколько зарядов даёт.
type ShopItem struct {
	// Kind - вид расходника.
	Kind shared.ConsumableKind

	// Price - цена в кристаллах.
	Price uint64

	// Charges - сколько зарядов приходит за одну покупку.
	Charges int
}

// shopCatalog - прайс-лист. Пакет подсказок дешевле в пересчёте на заряд,
// щит - самый дорогой одиночный предмет.
var shopCatalog = []ShopItem{
	{Kind: shared.ConsumableHintPack, Price: 50, Charges: 3},
	{Kind: shared.ConsumableXPBoost, Price: 75, Charges: 5},
	{Kind: shared.ConsumableStreakShield, Price: 100, Charges: 1},
}

// ShopCatalog возвращает все позиции магазина в стабильном порядке.
func ShopCatalog() []ShopItem {
	out := make([]ShopItem, len(shopCatalog))
	copy(out, shopCatalog)
	return out
}

// ItemFor возвращает позицию магазина для вида расходника.
func ItemFor(kind shared.ConsumableKind) (ShopItem, error) {
	for _, item := range shopCatalog {
		if item.Kind == kind {
			return item, nil
		}
	}
	return ShopItem{}, shared.ErrUnknownItem
}

// ══════════════════════════════════════════════════════════════════════════════
// DAILY REWARD
// ══════════════════════════════════════════════════════════════════════════════

const (
	// DailyRewardBase - кристаллы за первый день серии бонусов.
	DailyRewardBase uint64 = 15

	// DailyRewardPerDay - надбавка за каждый следующий день подряд.
	DailyRewardPerDay uint64 = 2

	// DailyRewardCap - потолок ежедневного бонуса.
	DailyRewardCap uint64 = 35
)

// DailyRewardGems считает бонус для дня серии (1, 2, 3...).
func DailyRewardGems(rewardStreak int) uint64 {
	if rewardStreak < 1 {
		rewardStreak = 1
	}
	gems := DailyRewardBase + DailyRewardPerDay*uint64(rewardStreak-1)
	if gems > DailyRewardCap {
		gems = DailyRewardCap
	}
	return gems
}
