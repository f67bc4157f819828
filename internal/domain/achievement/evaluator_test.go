package achievement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog_IsValid(t *testing.T) {
	catalog := DefaultCatalog()

	require.NoError(t, ValidateCatalog(catalog))
	assert.GreaterOrEqual(t, len(catalog), 30)
}

func TestDefaultCatalog_KnownEntries(t *testing.T) {
	ev, err := NewEvaluator(DefaultCatalog())
	require.NoError(t, err)

	first, ok := ev.Definition("first_fix")
	require.True(t, ok)
	assert.Equal(t, "First Fix", first.Name)
	assert.Equal(t, CategoryMilestone, first.Category)
	assert.True(t, first.Predicate(Stats{TotalSolved: 1}))
	assert.False(t, first.Predicate(Stats{TotalSolved: 0}))

	_, ok = ev.Definition("streak_365")
	assert.True(t, ok)
	_, ok = ev.Definition("no_such_id")
	assert.False(t, ok)
}

func TestValidateCatalog_Rejections(t *testing.T) {
	pred := func(Stats) bool { return false }

	dupID := []Definition{
		{ID: "a", SortOrder: 1, Predicate: pred},
		{ID: "a", SortOrder: 2, Predicate: pred},
	}
	assert.Error(t, ValidateCatalog(dupID))

	dupOrder := []Definition{
		{ID: "a", SortOrder: 1, Predicate: pred},
		{ID: "b", SortOrder: 1, Predicate: pred},
	}
	assert.Error(t, ValidateCatalog(dupOrder))

	nilPred := []Definition{{ID: "a", SortOrder: 1}}
	assert.Error(t, ValidateCatalog(nilPred))

	emptyID := []Definition{{ID: "", SortOrder: 1, Predicate: pred}}
	assert.Error(t, ValidateCatalog(emptyID))
}

func TestEvaluate_DeterministicOrder(t *testing.T) {
	ev, err := NewEvaluator(DefaultCatalog())
	require.NoError(t, err)

	stats := Stats{TotalSolved: 10, XP: 150, Level: 2, SolvedWithoutHints: 1, EasySolved: 10}

	newly := ev.Evaluate(stats, map[string]bool{})

	var ids []string
	for _, def := range newly {
		ids = append(ids, def.ID)
	}
	assert.Equal(t, []string{"first_fix", "bug_squasher_10", "xp_100", "no_hint_1"}, ids)

	// Повторный прогон с теми же входами даёт тот же порядок.
	again := ev.Evaluate(stats, map[string]bool{})
	assert.Equal(t, newly, again)
}

func TestEvaluate_SkipsUnlocked(t *testing.T) {
	ev, err := NewEvaluator(DefaultCatalog())
	require.NoError(t, err)

	stats := Stats{TotalSolved: 1, SolvedWithoutHints: 1}
	unlocked := map[string]bool{"first_fix": true}

	newly := ev.Evaluate(stats, unlocked)

	for _, def := range newly {
		assert.NotEqual(t, "first_fix", def.ID, "unlocked achievements are never re-emitted")
	}
	require.Len(t, newly, 1)
	assert.Equal(t, "no_hint_1", newly[0].ID)
}

func TestEvaluate_NothingSatisfied(t *testing.T) {
	ev, err := NewEvaluator(DefaultCatalog())
	require.NoError(t, err)

	assert.Empty(t, ev.Evaluate(Stats{}, map[string]bool{}))
}

func TestEvaluate_RewardCascadeConverges(t *testing.T) {
	ev, err := NewEvaluator(DefaultCatalog())
	require.NoError(t, err)

	// Имитация цикла движка: награды добавляются к XP и открывают
	// следующие достижения, пока проход не окажется пустым.
	stats := Stats{TotalSolved: 1, XP: 90, SolvedWithoutHints: 1}
	unlocked := map[string]bool{}

	rounds := 0
	for {
		newly := ev.Evaluate(stats, unlocked)
		if len(newly) == 0 {
			break
		}
		rounds++
		require.LessOrEqual(t, rounds, len(DefaultCatalog()), "cascade must converge")
		for _, def := range newly {
			unlocked[def.ID] = true
			stats.XP += def.XPReward
		}
	}

	// first_fix и no_hint_1 дают 50 XP, что пересекает порог xp_100.
	assert.True(t, unlocked["first_fix"])
	assert.True(t, unlocked["no_hint_1"])
	assert.True(t, unlocked["xp_100"])
	assert.GreaterOrEqual(t, rounds, 2)
}
