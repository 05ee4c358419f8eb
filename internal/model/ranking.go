package model

// RankingRow is one leaderboard line. It is derived at query time and never
// persisted.
type RankingRow struct {
	Rank         int    `json:"rank"`
	StudentID    int64  `json:"student_id"`
	DisplayName  string `json:"display_name"`
	Coins        int    `json:"coins"`
	PokemonCount int    `json:"pokemon_count"`
	PokemonValue int    `json:"pokemon_value"`
	TotalScore   int    `json:"total_score"`
}
