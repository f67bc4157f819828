package achievement

import (
	"sort"
	"time"
)

// UnlockRecord фиксирует открытие достижения. Записи идемпотентны:
// одно достижение - максимум одна запись за всё время.
type UnlockRecord struct {
	// AchievementID - идентификатор из каталога.
	AchievementID string `json:"achievement_id"`

	// UnlockedAt - момент открытия.
	UnlockedAt time.Time `json:"unlocked_at"`
}

// Evaluator прогоняет предикаты каталога по свежему снимку статистики.
// Оценка детерминирована: всегда в порядке SortOrder.
type Evaluator struct {
	catalog []Definition
	byID    map[string]Definition
}

// NewEvaluator создаёт оценщик. Каталог валидируется и сортируется один
// раз при создании.
func NewEvaluator(catalog []Definition) (*Evaluator, error) {
	if err := ValidateCatalog(catalog); err != nil {
		return nil, err
	}

	sorted := make([]Definition, len(catalog))
	copy(sorted, catalog)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].SortOrder < sorted[j].SortOrder
	})

	byID := make(map[string]Definition, len(sorted))
	for _, def := range sorted {
		byID[def.ID] = def
	}

	return &Evaluator{catalog: sorted, byID: byID}, nil
}

// Catalog возвращает каталог в порядке оценки.
func (e *Evaluator) Catalog() []Definition {
	out := make([]Definition, len(e.catalog))
	copy(out, e.catalog)
	return out
}

// Definition возвращает определение по ID.
func (e *Evaluator) Definition(id string) (Definition, bool) {
	def, ok := e.byID[id]
	return def, ok
}

// Evaluate возвращает достижения, чьи предикаты выполнились и которых
// ещё нет в unlocked. Один проход по каталогу; награды за открытие
// меняют статистику, поэтому вызывающая сторона повторяет Evaluate со
// свежим снимком, пока список не опустеет.
func (e *Evaluator) Evaluate(stats Stats, unlocked map[string]bool) []Definition {
	var newly []Definition
	for _, def := range e.catalog {
		if unlocked[def.ID] {
			continue
		}
		if def.Predicate(stats) {
			newly = append(newly, def)
		}
	}
	return newly
}
