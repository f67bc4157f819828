// Package economy содержит кошелёк кристаллов и инвентарь расходников.
// Баланс никогда не уходит в минус: недостаток средств - это обычный
// исход операции, а не ошибка.
package economy

import (
	"math"

	"github.com/debugmaster-hub/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// WALLET
// ══════════════════════════════════════════════════════════════════════════════

// Wallet - кошелёк с кристаллами.
type Wallet struct {
	// Gems - текущий баланс. Беззнаковый: отрицательного баланса не бывает.
	Gems uint64 `json:"gems"`
}

// NewWallet создаёт пустой кошелёк.
func NewWallet() *Wallet {
	return &Wallet{}
}

// Clone возвращает независимую копию кошелька.
func (w *Wallet) Clone() *Wallet {
	cp := *w
	return &cp
}

// Grant зачисляет кристаллы. Нулевое зачисление - допустимый no-op,
// переполнение - громкая ошибка.
func (w *Wallet) Grant(amount uint64) error {
	if amount > math.MaxUint64-w.Gems {
		return shared.ErrGemOverflow
	}
	w.Gems += amount
	return nil
}

// Spend атомарно проверяет баланс и списывает. Возвращает false, если
// кристаллов не хватает: баланс при этом не меняется.
func (w *Wallet) Spend(amount uint64) bool {
	if amount > w.Gems {
		return false
	}
	w.Gems -= amount
	return true
}

// ══════════════════════════════════════════════════════════════════════════════
// CONSUMABLE INVENTORY
// ══════════════════════════════════════════════════════════════════════════════

// MaxStreakShields - максимум зарядов щита на руках.
const MaxStreakShields = 5

// Inventory - количество зарядов каждого расходника.
type Inventory struct {
	// Charges - заряды по видам. Отсутствующий ключ означает ноль.
	Charges map[shared.ConsumableKind]int `json:"charges"`
}

// NewInventory создаёт пустой инвентарь.
func NewInventory() *Inventory {
	return &Inventory{Charges: make(map[shared.ConsumableKind]int)}
}

// Clone возвращает независимую копию инвентаря.
func (inv *Inventory) Clone() *Inventory {
	cp := NewInventory()
	for k, v := range inv.Charges {
		cp.Charges[k] = v
	}
	return cp
}

// Count возвращает количество зарядов вида.
func (inv *Inventory) Count(kind shared.ConsumableKind) int {
	return inv.Charges[kind]
}

// Has сообщает, есть ли хотя бы один заряд.
func (inv *Inventory) Has(kind shared.ConsumableKind) bool {
	return inv.Charges[kind] > 0
}

// Grant добавляет заряды. Щиты ограничены MaxStreakShields: попытка
// превысить лимит - ошибка, покупка должна быть отклонена целиком.
func (inv *Inventory) Grant(kind shared.ConsumableKind, n int) error {
	if !kind.IsValid() {
		return shared.ErrInvalidConsumable
	}
	if n <= 0 {
		return shared.ErrInvalidGrant
	}
	if kind == shared.ConsumableStreakShield && inv.Charges[kind]+n > MaxStreakShields {
		return shared.ErrShieldCapReached
	}
	if inv.Charges == nil {
		inv.Charges = make(map[shared.ConsumableKind]int)
	}
	inv.Charges[kind] += n
	return nil
}

// GrantClamped добавляет заряды, обрезая по лимиту вместо ошибки.
// Используется для наград за рубежи серии: решение бага не должно
// падать из-за полного инвентаря. Возвращает, сколько реально добавлено.
func (inv *Inventory) GrantClamped(kind shared.ConsumableKind, n int) int {
	if !kind.IsValid() || n <= 0 {
		return 0
	}
	if inv.Charges == nil {
		inv.Charges = make(map[shared.ConsumableKind]int)
	}
	if kind == shared.ConsumableStreakShield {
		room := MaxStreakShields - inv.Charges[kind]
		if room <= 0 {
			return 0
		}
		if n > room {
			n = room
		}
	}
	inv.Charges[kind] += n
	return n
}

// Consume тратит один заряд. Возвращает false при нуле зарядов,
// инвентарь не меняется.
func (inv *Inventory) Consume(kind shared.ConsumableKind) bool {
	if inv.Charges[kind] <= 0 {
		return false
	}
	inv.Charges[kind]--
	return true
}

// Invariants проверяет согласованность инвентаря.
func (inv *Inventory) Invariants() error {
	for kind, n := range inv.Charges {
		if !kind.IsValid() {
			return shared.NewInvariantError("economy", "Invariants", "unknown consumable kind "+kind.String())
		}
		if n < 0 {
			return shared.NewInvariantError("economy", "Invariants", "negative charges for "+kind.String())
		}
	}
	if inv.Charges[shared.ConsumableStreakShield] > MaxStreakShields {
		return shared.NewInvariantError("economy", "Invariants", "streak shield charges above cap")
	}
	return nil
}
