package store

import (
	"testing"

	"github.com/pokeayman/pokeayman/internal/database"
	"github.com/pokeayman/pokeayman/internal/model"
)

func setupCatalogStore(t *testing.T) *CatalogStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewCatalogStore(db)
}

func samplePokemon() []model.Pokemon {
	return []model.Pokemon{
		{ID: "pikachu-id", Name: "Pikachu", TypePrimary: "electric", Rarity: "common", Price: 15},
		{ID: "bulbasaur-id", Name: "Bulbasaur", TypePrimary: "grass", TypeSecondary: "poison", Rarity: "common", Price: 5},
		{ID: "mewtwo-id", Name: "Mewtwo", TypePrimary: "psychic", Rarity: "legendary", Price: 200},
	}
}

func TestCatalogImportAndGet(t *testing.T) {
	cat := setupCatalogStore(t)

	n, err := cat.Import(samplePokemon())
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if n != 3 {
		t.Errorf("inserted = %d, want 3", n)
	}

	p, err := cat.GetPokemon("bulbasaur-id")
	if err != nil {
		t.Fatalf("get pokemon: %v", err)
	}
	if p == nil {
		t.Fatal("expected bulbasaur, got nil")
	}
	if p.Name != "Bulbasaur" {
		t.Errorf("name = %q, want %q", p.Name, "Bulbasaur")
	}
	if p.TypeSecondary != "poison" {
		t.Errorf("type_secondary = %q, want %q", p.TypeSecondary, "poison")
	}
	if p.Price != 5 {
		t.Errorf("price = %d, want 5", p.Price)
	}
}

func TestCatalogImportSkipsExisting(t *testing.T) {
	cat := setupCatalogStore(t)

	if _, err := cat.Import(samplePokemon()); err != nil {
		t.Fatalf("first import: %v", err)
	}

	// Re-importing the same batch plus one new entry only inserts the
	// new one and never touches existing rows.
	batch := append(samplePokemon(), model.Pokemon{
		ID: "eevee-id", Name: "Eevee", TypePrimary: "normal", Rarity: "uncommon", Price: 25,
	})
	n, err := cat.Import(batch)
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if n != 1 {
		t.Errorf("inserted = %d, want 1", n)
	}

	all, err := cat.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("catalog size = %d, want 4", len(all))
	}
}

func TestCatalogGetPokemonMissing(t *testing.T) {
	cat := setupCatalogStore(t)

	p, err := cat.GetPokemon("nope")
	if err != nil {
		t.Fatalf("get pokemon: %v", err)
	}
	if p != nil {
		t.Errorf("expected nil for unknown id, got %+v", p)
	}
}

func TestCatalogRandomPokemon(t *testing.T) {
	cat := setupCatalogStore(t)

	// Empty catalog yields nil, not an error.
	p, err := cat.RandomPokemon()
	if err != nil {
		t.Fatalf("random on empty catalog: %v", err)
	}
	if p != nil {
		t.Errorf("expected nil on empty catalog, got %+v", p)
	}

	if _, err := cat.Import(samplePokemon()); err != nil {
		t.Fatalf("import: %v", err)
	}

	known := map[string]bool{"pikachu-id": true, "bulbasaur-id": true, "mewtwo-id": true}
	for i := 0; i < 10; i++ {
		p, err := cat.RandomPokemon()
		if err != nil {
			t.Fatalf("random pokemon: %v", err)
		}
		if p == nil {
			t.Fatal("expected a pokemon, got nil")
		}
		if !known[p.ID] {
			t.Errorf("random returned unknown id %q", p.ID)
		}
	}
}

func TestCatalogListOrdering(t *testing.T) {
	cat := setupCatalogStore(t)
	if _, err := cat.Import(samplePokemon()); err != nil {
		t.Fatalf("import: %v", err)
	}

	all, err := cat.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"Bulbasaur", "Mewtwo", "Pikachu"}
	if len(all) != len(want) {
		t.Fatalf("list size = %d, want %d", len(all), len(want))
	}
	for i, name := range want {
		if all[i].Name != name {
			t.Errorf("list[%d] = %q, want %q", i, all[i].Name, name)
		}
	}
}
