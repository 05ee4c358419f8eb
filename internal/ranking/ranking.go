// Package ranking computes leaderboards over student balances and
// collections. The computation is a pure read: it re-queries the store on
// every call and has no side effects.
package ranking

import (
	"fmt"
	"sort"

	"github.com/pokeayman/pokeayman/internal/model"
	"github.com/pokeayman/pokeayman/internal/store"
)

// Scope selects the population a leaderboard covers. The zero value is
// global; setting SchoolID or ClassID narrows it.
type Scope struct {
	SchoolID *int64
	ClassID  *int64
}

// Aggregator reads balances and collection rollups and produces ranked rows.
//
// Scoring: totalScore = coinWeight*coins + valueWeight*pokemonValue, where
// pokemonValue is the summed catalog price of owned entries. Both weights
// default to 1 and are tunable through the settings store
// (ranking_coin_weight, ranking_value_weight).
type Aggregator struct {
	students    *store.StudentStore
	collections *store.CollectionStore
	settings    *store.SettingsStore
}

func NewAggregator(students *store.StudentStore, collections *store.CollectionStore, settings *store.SettingsStore) *Aggregator {
	return &Aggregator{students: students, collections: collections, settings: settings}
}

// Compute returns the leaderboard for the scope, best first. Ordering is
// totalScore desc, then pokemonCount desc, then studentID asc, so equal
// inputs always produce the identical ranking. Ranks are 1..N with no
// shared ranks.
func (a *Aggregator) Compute(scope Scope) ([]model.RankingRow, error) {
	students, err := a.studentsInScope(scope)
	if err != nil {
		return nil, err
	}

	agg, err := a.collections.AggregateByStudent()
	if err != nil {
		return nil, fmt.Errorf("aggregate collections: %w", err)
	}

	coinWeight := a.settings.GetInt("ranking_coin_weight", 1)
	valueWeight := a.settings.GetInt("ranking_value_weight", 1)

	rows := make([]model.RankingRow, 0, len(students))
	for _, st := range students {
		c := agg[st.ID]
		rows = append(rows, model.RankingRow{
			StudentID:    st.ID,
			DisplayName:  st.Name,
			Coins:        st.Coins,
			PokemonCount: c.Count,
			PokemonValue: c.Value,
			TotalScore:   coinWeight*st.Coins + valueWeight*c.Value,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].TotalScore != rows[j].TotalScore {
			return rows[i].TotalScore > rows[j].TotalScore
		}
		if rows[i].PokemonCount != rows[j].PokemonCount {
			return rows[i].PokemonCount > rows[j].PokemonCount
		}
		return rows[i].StudentID < rows[j].StudentID
	})

	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows, nil
}

func (a *Aggregator) studentsInScope(scope Scope) ([]model.Student, error) {
	switch {
	case scope.ClassID != nil:
		return a.students.ListByClass(*scope.ClassID)
	case scope.SchoolID != nil:
		return a.students.ListBySchool(*scope.SchoolID)
	default:
		return a.students.ListAll()
	}
}
