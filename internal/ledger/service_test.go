package ledger_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/pokeayman/pokeayman/internal/database"
	"github.com/pokeayman/pokeayman/internal/fallback"
	"github.com/pokeayman/pokeayman/internal/ledger"
	"github.com/pokeayman/pokeayman/internal/model"
	"github.com/pokeayman/pokeayman/internal/store"
)

var errStoreDown = errors.New("store down")

// flakyBalances wraps the real balance store and fails on demand, so tests
// can simulate an unreachable primary.
type flakyBalances struct {
	*store.StudentStore
	failCredit bool
	failDebit  bool
	failGet    bool
}

func (f *flakyBalances) GetBalance(studentID int64) (*model.StudentBalance, error) {
	if f.failGet {
		return nil, errStoreDown
	}
	return f.StudentStore.GetBalance(studentID)
}

func (f *flakyBalances) CreditCoins(studentID int64, amount int) (*model.StudentBalance, error) {
	if f.failCredit {
		return nil, errStoreDown
	}
	return f.StudentStore.CreditCoins(studentID, amount)
}

func (f *flakyBalances) DebitCoins(studentID int64, amount int) (*model.StudentBalance, error) {
	if f.failDebit {
		return nil, errStoreDown
	}
	return f.StudentStore.DebitCoins(studentID, amount)
}

type flakyCollections struct {
	*store.CollectionStore
	failInsert bool
}

func (f *flakyCollections) InsertEntry(studentID int64, pokemonID string, source model.Source) (*model.CollectionEntry, error) {
	if f.failInsert {
		return nil, errStoreDown
	}
	return f.CollectionStore.InsertEntry(studentID, pokemonID, source)
}

type flakyFallback struct {
	*fallback.Store
	failRefund bool
}

func (f *flakyFallback) RefundCoins(studentID int64, amount int) (*model.StudentBalance, error) {
	if f.failRefund {
		return nil, errStoreDown
	}
	return f.Store.RefundCoins(studentID, amount)
}

type sentNotification struct {
	RecipientID int64
	Title       string
	Kind        string
}

// recordingNotifier captures side-effect notifications for assertions.
type recordingNotifier struct {
	sent []sentNotification
}

func (n *recordingNotifier) Send(recipientID int64, title, message, kind string) {
	n.sent = append(n.sent, sentNotification{RecipientID: recipientID, Title: title, Kind: kind})
}

type env struct {
	svc         *ledger.Service
	balances    *flakyBalances
	collections *flakyCollections
	fb          *flakyFallback
	notifier    *recordingNotifier
	students    *store.StudentStore
	alice       *model.Student
}

func setupEnv(t *testing.T) *env {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schools := store.NewSchoolStore(db)
	school, err := schools.CreateSchool("Ayman Elementary")
	if err != nil {
		t.Fatalf("create school: %v", err)
	}
	class, err := schools.CreateClass(school.ID, "Class 3A")
	if err != nil {
		t.Fatalf("create class: %v", err)
	}

	students := store.NewStudentStore(db)
	alice, err := students.Create(class.ID, class.SchoolID, "Alice")
	if err != nil {
		t.Fatalf("create student: %v", err)
	}

	catalog := store.NewCatalogStore(db)
	_, err = catalog.Import([]model.Pokemon{
		{ID: "pikachu-id", Name: "Pikachu", TypePrimary: "electric", Rarity: "common", Price: 15},
	})
	if err != nil {
		t.Fatalf("import catalog: %v", err)
	}

	fb, err := fallback.Open(filepath.Join(t.TempDir(), "fallback.json"))
	if err != nil {
		t.Fatalf("open fallback: %v", err)
	}

	e := &env{
		balances:    &flakyBalances{StudentStore: students},
		collections: &flakyCollections{CollectionStore: store.NewCollectionStore(db)},
		fb:          &flakyFallback{Store: fb},
		notifier:    &recordingNotifier{},
		students:    students,
		alice:       alice,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e.svc = ledger.NewService(e.balances, e.collections, catalog, e.fb, e.notifier, logger)
	return e
}

func TestAwardCoins(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()

	balance, err := e.svc.AwardCoins(ctx, e.alice.ID, 10, "good behavior")
	if err != nil {
		t.Fatalf("award coins: %v", err)
	}
	if balance.Coins != 10 {
		t.Errorf("coins = %d, want 10", balance.Coins)
	}

	if len(e.notifier.sent) != 1 {
		t.Fatalf("notifications = %d, want 1", len(e.notifier.sent))
	}
	if e.notifier.sent[0].Title != "Coins Awarded" || e.notifier.sent[0].RecipientID != e.alice.ID {
		t.Errorf("notification = %+v, want Coins Awarded for alice", e.notifier.sent[0])
	}
}

func TestAwardCoinsRejectsNonPositive(t *testing.T) {
	e := setupEnv(t)

	if _, err := e.svc.AwardCoins(context.Background(), e.alice.ID, 0, "x"); err == nil {
		t.Error("expected error for zero amount")
	}
	if _, err := e.svc.AwardCoins(context.Background(), e.alice.ID, -5, "x"); err == nil {
		t.Error("expected error for negative amount")
	}
}

func TestAwardCoinsUnknownStudent(t *testing.T) {
	e := setupEnv(t)

	_, err := e.svc.AwardCoins(context.Background(), 999, 10, "x")
	if !errors.Is(err, ledger.ErrStudentNotFound) {
		t.Errorf("error = %v, want ErrStudentNotFound", err)
	}
	if len(e.notifier.sent) != 0 {
		t.Errorf("notifications = %d, want 0 for failed award", len(e.notifier.sent))
	}
}

func TestRemoveCoinsInsufficient(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()

	if _, err := e.svc.AwardCoins(ctx, e.alice.ID, 10, "seed"); err != nil {
		t.Fatalf("award: %v", err)
	}

	_, err := e.svc.RemoveCoins(ctx, e.alice.ID, 15)
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Errorf("error = %v, want ErrInsufficientFunds", err)
	}

	balance, err := e.svc.GetBalance(ctx, e.alice.ID)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if balance.Coins != 10 || balance.SpentCoins != 0 {
		t.Errorf("balance = %+v, want untouched coins=10 spent=0", balance)
	}
}

func TestRemoveCoinsGrowsSpentTotal(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()

	if _, err := e.svc.AwardCoins(ctx, e.alice.ID, 10, "seed"); err != nil {
		t.Fatalf("award: %v", err)
	}
	balance, err := e.svc.RemoveCoins(ctx, e.alice.ID, 10)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if balance.Coins != 0 || balance.SpentCoins != 10 {
		t.Errorf("balance = %+v, want coins=0 spent=10", balance)
	}
}

func TestAwardPokemon(t *testing.T) {
	e := setupEnv(t)

	entry, err := e.svc.AwardPokemon(context.Background(), e.alice.ID, "pikachu-id", model.SourceTeacherAward)
	if err != nil {
		t.Fatalf("award pokemon: %v", err)
	}
	if entry.PokemonID != "pikachu-id" || entry.Source != model.SourceTeacherAward {
		t.Errorf("entry = %+v, want pikachu via teacher_award", entry)
	}

	if len(e.notifier.sent) != 1 || e.notifier.sent[0].Title != "New Pokémon!" {
		t.Errorf("notifications = %+v, want one New Pokémon!", e.notifier.sent)
	}
}

func TestAwardPokemonUnknownSpecies(t *testing.T) {
	e := setupEnv(t)

	_, err := e.svc.AwardPokemon(context.Background(), e.alice.ID, "missingno", model.SourceTeacherAward)
	if !errors.Is(err, ledger.ErrPokemonNotFound) {
		t.Errorf("error = %v, want ErrPokemonNotFound", err)
	}
}

func TestAwardPokemonInvalidSource(t *testing.T) {
	e := setupEnv(t)

	if _, err := e.svc.AwardPokemon(context.Background(), e.alice.ID, "pikachu-id", "found_on_floor"); err == nil {
		t.Error("expected error for invalid source")
	}
}

func TestRemovePokemonTwice(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()

	entry, err := e.svc.AwardPokemon(ctx, e.alice.ID, "pikachu-id", model.SourceTeacherAward)
	if err != nil {
		t.Fatalf("award pokemon: %v", err)
	}

	if err := e.svc.RemovePokemon(ctx, entry.ID); err != nil {
		t.Fatalf("remove pokemon: %v", err)
	}
	if err := e.svc.RemovePokemon(ctx, entry.ID); !errors.Is(err, ledger.ErrEntryNotFound) {
		t.Errorf("second remove error = %v, want ErrEntryNotFound", err)
	}
}

func TestPurchasePokemon(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()

	if _, err := e.svc.AwardCoins(ctx, e.alice.ID, 20, "seed"); err != nil {
		t.Fatalf("award: %v", err)
	}

	entry, balance, err := e.svc.PurchasePokemon(ctx, e.alice.ID, "pikachu-id")
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if entry.Source != model.SourceShopPurchase {
		t.Errorf("source = %q, want %q", entry.Source, model.SourceShopPurchase)
	}
	if balance.Coins != 5 || balance.SpentCoins != 15 {
		t.Errorf("balance = %+v, want coins=5 spent=15", balance)
	}
}

func TestPurchasePokemonInsufficientFunds(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()

	if _, err := e.svc.AwardCoins(ctx, e.alice.ID, 5, "seed"); err != nil {
		t.Fatalf("award: %v", err)
	}

	_, _, err := e.svc.PurchasePokemon(ctx, e.alice.ID, "pikachu-id")
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("error = %v, want ErrInsufficientFunds", err)
	}

	// Nothing was deducted and nothing was awarded.
	balance, err := e.svc.GetBalance(ctx, e.alice.ID)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if balance.Coins != 5 {
		t.Errorf("coins = %d, want 5", balance.Coins)
	}
	entries, err := e.svc.ListCollection(ctx, e.alice.ID)
	if err != nil {
		t.Fatalf("list collection: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("collection = %d entries, want 0", len(entries))
	}
}

func TestPurchaseRefundsOnFailedAward(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()

	if _, err := e.svc.AwardCoins(ctx, e.alice.ID, 20, "seed"); err != nil {
		t.Fatalf("award: %v", err)
	}

	e.collections.failInsert = true
	_, _, err := e.svc.PurchasePokemon(ctx, e.alice.ID, "pikachu-id")
	if !errors.Is(err, ledger.ErrStoreUnavailable) {
		t.Fatalf("error = %v, want ErrStoreUnavailable after refund", err)
	}
	e.collections.failInsert = false

	// The deduction was compensated.
	balance, err := e.svc.GetBalance(ctx, e.alice.ID)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if balance.Coins != 20 {
		t.Errorf("coins after refund = %d, want 20", balance.Coins)
	}
}

func TestPurchaseSurfacesFailedRefund(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()

	if _, err := e.svc.AwardCoins(ctx, e.alice.ID, 20, "seed"); err != nil {
		t.Fatalf("award: %v", err)
	}

	// Award fails and so do both compensations, primary and fallback. The
	// divergence must be reported, not swallowed.
	e.collections.failInsert = true
	e.balances.failCredit = true
	e.fb.failRefund = true
	_, _, err := e.svc.PurchasePokemon(ctx, e.alice.ID, "pikachu-id")
	if !errors.Is(err, ledger.ErrRefundFailed) {
		t.Fatalf("error = %v, want ErrRefundFailed", err)
	}
}

func TestPurchaseRefundQueuedWhenPrimaryDiesMidPurchase(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()

	if _, err := e.svc.AwardCoins(ctx, e.alice.ID, 20, "seed"); err != nil {
		t.Fatalf("award: %v", err)
	}

	// The deduction lands on the primary, then the store dies before the
	// award; the compensating credit is queued for replay.
	e.collections.failInsert = true
	e.balances.failCredit = true
	_, _, err := e.svc.PurchasePokemon(ctx, e.alice.ID, "pikachu-id")
	if !errors.Is(err, ledger.ErrStoreUnavailable) {
		t.Fatalf("error = %v, want ErrStoreUnavailable after fallback refund", err)
	}

	ops := e.fb.PendingOps()
	if len(ops) != 1 || ops[0].Kind != ledger.OpCredit || ops[0].Amount != 15 {
		t.Fatalf("pending ops = %+v, want one credit of 15", ops)
	}

	e.collections.failInsert = false
	e.balances.failCredit = false
	if err := e.svc.Reconcile(ctx); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	balance, err := e.svc.GetBalance(ctx, e.alice.ID)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if balance.Coins != 20 {
		t.Errorf("coins after reconcile = %d, want 20", balance.Coins)
	}
}

func TestPurchaseDuringFullOutageChargesNothing(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()

	if _, err := e.svc.AwardCoins(ctx, e.alice.ID, 20, "seed"); err != nil {
		t.Fatalf("award: %v", err)
	}

	// Full outage: the deduction only ever existed as a queued fallback
	// debit, so the refund cancels it before it can charge the primary.
	e.balances.failDebit = true
	e.balances.failCredit = true
	e.collections.failInsert = true
	_, _, err := e.svc.PurchasePokemon(ctx, e.alice.ID, "pikachu-id")
	if !errors.Is(err, ledger.ErrStoreUnavailable) {
		t.Fatalf("error = %v, want ErrStoreUnavailable after fallback refund", err)
	}

	if ops := e.fb.PendingOps(); len(ops) != 0 {
		t.Fatalf("pending ops = %+v, want cancelled debit leaving empty queue", ops)
	}
	if b, ok := e.fb.GetBalance(e.alice.ID); !ok || b.Coins != 20 {
		t.Fatalf("cached balance = %+v, want coins=20 restored", b)
	}

	e.balances.failDebit = false
	e.balances.failCredit = false
	e.collections.failInsert = false
	if err := e.svc.Reconcile(ctx); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	balance, err := e.svc.GetBalance(ctx, e.alice.ID)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if balance.Coins != 20 || balance.SpentCoins != 0 {
		t.Errorf("balance after reconcile = %+v, want coins=20 spent=0", balance)
	}
	entries, err := e.svc.ListCollection(ctx, e.alice.ID)
	if err != nil {
		t.Fatalf("list collection: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("collection = %d entries, want 0", len(entries))
	}
}

func TestOpenMysteryBall(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()

	if _, err := e.svc.AwardCoins(ctx, e.alice.ID, 10, "seed"); err != nil {
		t.Fatalf("award: %v", err)
	}

	entry, balance, err := e.svc.OpenMysteryBall(ctx, e.alice.ID, 10)
	if err != nil {
		t.Fatalf("open mystery ball: %v", err)
	}
	if entry.Source != model.SourceMysteryBall {
		t.Errorf("source = %q, want %q", entry.Source, model.SourceMysteryBall)
	}
	if balance.Coins != 0 || balance.SpentCoins != 10 {
		t.Errorf("balance = %+v, want coins=0 spent=10", balance)
	}
}

func TestAwardCoinsFallsBackWhenPrimaryDown(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()

	if _, err := e.svc.AwardCoins(ctx, e.alice.ID, 10, "seed"); err != nil {
		t.Fatalf("award: %v", err)
	}

	e.balances.failCredit = true
	balance, err := e.svc.AwardCoins(ctx, e.alice.ID, 5, "degraded")
	if err != nil {
		t.Fatalf("degraded award: %v", err)
	}
	// The first award seeded the fallback cache, so the degraded balance
	// reflects the full amount.
	if balance.Coins != 15 {
		t.Errorf("degraded coins = %d, want 15", balance.Coins)
	}

	ops := e.fb.PendingOps()
	if len(ops) != 1 || ops[0].Kind != ledger.OpCredit || ops[0].Amount != 5 {
		t.Fatalf("pending ops = %+v, want one credit of 5", ops)
	}

	// Primary recovers; replay applies the queued credit on top of the
	// primary balance.
	e.balances.failCredit = false
	if err := e.svc.Reconcile(ctx); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if ops := e.fb.PendingOps(); len(ops) != 0 {
		t.Errorf("pending ops after reconcile = %d, want 0", len(ops))
	}

	balance, err = e.svc.GetBalance(ctx, e.alice.ID)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if balance.Coins != 15 {
		t.Errorf("coins after reconcile = %d, want 15", balance.Coins)
	}
}

func TestGetBalanceServedFromFallback(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()

	if err := e.fb.Seed(model.StudentBalance{StudentID: e.alice.ID, Coins: 7}); err != nil {
		t.Fatalf("seed fallback: %v", err)
	}

	e.balances.failGet = true
	balance, err := e.svc.GetBalance(ctx, e.alice.ID)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if balance.Coins != 7 {
		t.Errorf("coins = %d, want 7 from fallback", balance.Coins)
	}

	// No cached record for an unknown student: the failure surfaces.
	if _, err := e.svc.GetBalance(ctx, 999); !errors.Is(err, ledger.ErrStoreUnavailable) {
		t.Errorf("error = %v, want ErrStoreUnavailable", err)
	}
}

func TestPrimaryReadsSeedFallback(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()

	if _, err := e.svc.AwardCoins(ctx, e.alice.ID, 12, "seed"); err != nil {
		t.Fatalf("award: %v", err)
	}
	if _, err := e.svc.GetBalance(ctx, e.alice.ID); err != nil {
		t.Fatalf("get balance: %v", err)
	}

	// The primary goes away; the balance survives through the cache seeded
	// by the earlier primary operations.
	e.balances.failGet = true
	balance, err := e.svc.GetBalance(ctx, e.alice.ID)
	if err != nil {
		t.Fatalf("degraded get balance: %v", err)
	}
	if balance.Coins != 12 {
		t.Errorf("coins = %d, want 12 from seeded cache", balance.Coins)
	}
}

func TestRemoveCoinsDegradedInsufficient(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()

	if err := e.fb.Seed(model.StudentBalance{StudentID: e.alice.ID, Coins: 3}); err != nil {
		t.Fatalf("seed fallback: %v", err)
	}

	// Non-negative balance holds even while degraded.
	e.balances.failDebit = true
	if _, err := e.svc.RemoveCoins(ctx, e.alice.ID, 5); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Errorf("error = %v, want ErrInsufficientFunds", err)
	}

	balance, err := e.svc.RemoveCoins(ctx, e.alice.ID, 3)
	if err != nil {
		t.Fatalf("degraded remove: %v", err)
	}
	if balance.Coins != 0 {
		t.Errorf("degraded coins = %d, want 0", balance.Coins)
	}
}

func TestAwardPokemonFallsBackWhenPrimaryDown(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()

	e.collections.failInsert = true
	entry, err := e.svc.AwardPokemon(ctx, e.alice.ID, "pikachu-id", model.SourceTeacherAward)
	if err != nil {
		t.Fatalf("degraded award: %v", err)
	}
	if entry.PokemonID != "pikachu-id" {
		t.Errorf("entry = %+v, want pikachu", entry)
	}

	ops := e.fb.PendingOps()
	if len(ops) != 1 || ops[0].Kind != ledger.OpAddEntry {
		t.Fatalf("pending ops = %+v, want one add_entry", ops)
	}

	e.collections.failInsert = false
	if err := e.svc.Reconcile(ctx); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	entries, err := e.svc.ListCollection(ctx, e.alice.ID)
	if err != nil {
		t.Fatalf("list collection: %v", err)
	}
	if len(entries) != 1 || entries[0].PokemonID != "pikachu-id" {
		t.Errorf("collection = %+v, want one pikachu", entries)
	}
}

func TestReconcileDropsUnreplayableDebit(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()

	if err := e.fb.Seed(model.StudentBalance{StudentID: e.alice.ID, Coins: 10}); err != nil {
		t.Fatalf("seed fallback: %v", err)
	}

	// A degraded debit that the primary (still at 0 coins) cannot honor.
	e.balances.failDebit = true
	if _, err := e.svc.RemoveCoins(ctx, e.alice.ID, 5); err != nil {
		t.Fatalf("degraded remove: %v", err)
	}
	e.balances.failDebit = false

	if err := e.svc.Reconcile(ctx); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	// The debit is dropped instead of blocking the queue forever.
	if ops := e.fb.PendingOps(); len(ops) != 0 {
		t.Errorf("pending ops = %+v, want empty queue", ops)
	}

	balance, err := e.svc.GetBalance(ctx, e.alice.ID)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if balance.Coins != 0 {
		t.Errorf("coins = %d, want 0", balance.Coins)
	}
}

func TestReconcileStopsOnTransientFailure(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()

	e.balances.failCredit = true
	if _, err := e.svc.AwardCoins(ctx, e.alice.ID, 5, "degraded"); err != nil {
		t.Fatalf("degraded award: %v", err)
	}
	if _, err := e.svc.AwardCoins(ctx, e.alice.ID, 7, "degraded"); err != nil {
		t.Fatalf("degraded award: %v", err)
	}

	// Primary still down: nothing replays, nothing is lost.
	if err := e.svc.Reconcile(ctx); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if ops := e.fb.PendingOps(); len(ops) != 2 {
		t.Errorf("pending ops = %d, want 2", len(ops))
	}
}
