package model

import "time"

// Source records how a collection entry was obtained.
type Source string

const (
	SourceTeacherAward Source = "teacher_award"
	SourceShopPurchase Source = "shop_purchase"
	SourceMysteryBall  Source = "mystery_ball"
)

// ValidSource reports whether s is one of the known acquisition sources.
func ValidSource(s Source) bool {
	switch s {
	case SourceTeacherAward, SourceShopPurchase, SourceMysteryBall:
		return true
	}
	return false
}

// Pokemon is one species in the shared catalog. The catalog is immutable
// reference data; entries are imported once and never edited.
type Pokemon struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ImageURL      string `json:"image_url"`
	TypePrimary   string `json:"type_primary"`
	TypeSecondary string `json:"type_secondary,omitempty"`
	Rarity        string `json:"rarity"`
	Price         int    `json:"price"`
}

// CollectionEntry is one concrete instance of a student owning a catalog
// Pokémon. A student may own the same species several times; each ownership
// is a distinct entry with its own ID.
type CollectionEntry struct {
	ID        string    `json:"id"`
	StudentID int64     `json:"student_id"`
	PokemonID string    `json:"pokemon_id"`
	Source    Source    `json:"source"`
	AwardedAt time.Time `json:"awarded_at"`
}
