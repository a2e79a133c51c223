package ledger

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/settleup/internal/metrics"
	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/settlement"
	"github.com/mmynk/settleup/internal/storage"
	"github.com/mmynk/settleup/internal/storage/sqlite"
	"github.com/mmynk/settleup/internal/storage/sqlstore"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func setupLedger(t *testing.T, opts ...Option) (*Ledger, *sqlstore.Store) {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(store, opts...), store
}

func createGroup(t *testing.T, store *sqlstore.Store, members ...string) string {
	t.Helper()
	group := &models.Group{Name: "test", Members: members}
	require.NoError(t, store.CreateGroup(context.Background(), group))
	return group.ID
}

func addExpense(t *testing.T, l *Ledger, groupID, payer string, amount float64, participants ...string) *models.Expense {
	t.Helper()
	expense := &models.Expense{GroupID: groupID, Payer: payer, Amount: amount, Participants: participants}
	require.NoError(t, l.AddExpense(context.Background(), expense))
	return expense
}

type edge struct {
	From, To string
	Amount   float64
}

func edges(settlements []*models.Settlement) []edge {
	out := make([]edge, 0, len(settlements))
	for _, s := range settlements {
		out = append(out, edge{s.From, s.To, s.Amount})
	}
	return out
}

// freshEdges recomputes the settlement set from what is stored.
func freshEdges(t *testing.T, store *sqlstore.Store, groupID string) []edge {
	t.Helper()
	ctx := context.Background()
	group, err := store.GetGroup(ctx, groupID)
	require.NoError(t, err)
	stored, err := store.ListExpensesByGroup(ctx, groupID)
	require.NoError(t, err)

	var expenses []settlement.Expense
	for _, e := range stored {
		expense, err := settlement.NewExpense(e.ID, e.Payer, e.Amount, e.Participants)
		require.NoError(t, err)
		expenses = append(expenses, expense)
	}
	_, computed := settlement.Settle(expenses, group.Members)

	out := make([]edge, 0, len(computed))
	for _, s := range computed {
		out = append(out, edge{s.From, s.To, settlement.RoundCents(s.Amount)})
	}
	return out
}

func persistedEdges(t *testing.T, store *sqlstore.Store, groupID string) []edge {
	t.Helper()
	settlements, err := store.ListSettlementsByGroup(context.Background(), groupID)
	require.NoError(t, err)
	return edges(settlements)
}

func TestLedger_AddExpenseResettles(t *testing.T) {
	l, store := setupLedger(t)
	groupID := createGroup(t, store, "alice", "bob", "carol")

	addExpense(t, l, groupID, "alice", 90, "alice", "bob", "carol")

	assert.Equal(t, []edge{
		{"bob", "alice", 30},
		{"carol", "alice", 30},
	}, persistedEdges(t, store, groupID))
}

func TestLedger_DuplicateParticipantsCollapsed(t *testing.T) {
	l, store := setupLedger(t)
	groupID := createGroup(t, store, "alice", "bob")

	expense := addExpense(t, l, groupID, "alice", 10, "bob", "alice", "bob")
	assert.Equal(t, []string{"bob", "alice"}, expense.Participants)

	stored, err := store.GetExpense(context.Background(), expense.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "alice"}, stored.Participants)
	assert.Equal(t, []edge{{"bob", "alice", 5}}, persistedEdges(t, store, groupID))
}

func TestLedger_Validation(t *testing.T) {
	l, store := setupLedger(t)
	groupID := createGroup(t, store, "alice", "bob")
	ctx := context.Background()

	tests := []struct {
		name    string
		expense *models.Expense
		wantErr error
	}{
		{
			name:    "zero amount",
			expense: &models.Expense{GroupID: groupID, Payer: "alice", Amount: 0, Participants: []string{"bob"}},
			wantErr: settlement.ErrInvalidAmount,
		},
		{
			name:    "no payer",
			expense: &models.Expense{GroupID: groupID, Amount: 10, Participants: []string{"bob"}},
			wantErr: settlement.ErrNoPayer,
		},
		{
			name:    "no participants",
			expense: &models.Expense{GroupID: groupID, Payer: "alice", Amount: 10},
			wantErr: settlement.ErrNoParticipants,
		},
		{
			name:    "unknown group",
			expense: &models.Expense{GroupID: "missing", Payer: "alice", Amount: 10, Participants: []string{"bob"}},
			wantErr: storage.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := l.AddExpense(ctx, tt.expense)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	expenses, err := store.ListExpensesByGroup(ctx, groupID)
	require.NoError(t, err)
	assert.Empty(t, expenses)
}

func TestLedger_UpdateAndDelete(t *testing.T) {
	l, store := setupLedger(t)
	groupID := createGroup(t, store, "alice", "bob", "carol")
	ctx := context.Background()

	dinner := addExpense(t, l, groupID, "alice", 90, "alice", "bob", "carol")
	taxi := addExpense(t, l, groupID, "bob", 30, "alice", "bob", "carol")
	assert.Equal(t, freshEdges(t, store, groupID), persistedEdges(t, store, groupID))

	update := &models.Expense{
		ID:           dinner.ID,
		GroupID:      "ignored",
		Payer:        "carol",
		Amount:       60,
		Participants: []string{"alice", "bob"},
		Description:  "Dinner (fixed)",
	}
	require.NoError(t, l.UpdateExpense(ctx, update))
	assert.Equal(t, groupID, update.GroupID)

	// carol +50, alice -40, bob -10
	assert.Equal(t, []edge{
		{"alice", "carol", 40},
		{"bob", "carol", 10},
	}, persistedEdges(t, store, groupID))
	assert.Equal(t, freshEdges(t, store, groupID), persistedEdges(t, store, groupID))

	require.NoError(t, l.DeleteExpense(ctx, taxi.ID))
	assert.Equal(t, []edge{
		{"alice", "carol", 30},
		{"bob", "carol", 30},
	}, persistedEdges(t, store, groupID))

	require.NoError(t, l.DeleteExpense(ctx, dinner.ID))
	assert.Empty(t, persistedEdges(t, store, groupID))

	assert.ErrorIs(t, l.DeleteExpense(ctx, dinner.ID), storage.ErrNotFound)
	assert.ErrorIs(t, l.UpdateExpense(ctx, update), storage.ErrNotFound)
}

func TestLedger_ConcurrentMutations(t *testing.T) {
	l, store := setupLedger(t)
	members := []string{"alice", "bob", "carol", "dave"}
	groupID := createGroup(t, store, members...)

	var wg sync.WaitGroup
	for i := range 24 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			expense := &models.Expense{
				GroupID:      groupID,
				Payer:        members[i%len(members)],
				Amount:       float64(10 + i),
				Participants: members[:1+i%len(members)],
				Description:  fmt.Sprintf("expense %d", i),
			}
			assert.NoError(t, l.AddExpense(context.Background(), expense))
		}(i)
	}
	wg.Wait()

	expenses, err := store.ListExpensesByGroup(context.Background(), groupID)
	require.NoError(t, err)
	assert.Len(t, expenses, 24)
	assert.Equal(t, freshEdges(t, store, groupID), persistedEdges(t, store, groupID))
	assert.Zero(t, lockCount(l))
}

func lockCount(l *Ledger) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func TestLedger_GroupLocksReleased(t *testing.T) {
	l, store := setupLedger(t)
	ctx := context.Background()

	for range 5 {
		groupID := createGroup(t, store, "alice", "bob")
		expense := addExpense(t, l, groupID, "alice", 10, "bob")
		_, err := l.Snapshot(ctx, groupID)
		require.NoError(t, err)
		require.NoError(t, l.DeleteExpense(ctx, expense.ID))
		require.NoError(t, store.DeleteGroup(ctx, groupID))
	}
	_, err := l.Resettle(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.Zero(t, lockCount(l))

	// A holder keeps the entry alive until it releases.
	unlock := l.lock("g1")
	assert.Equal(t, 1, lockCount(l))
	unlock()
	assert.Zero(t, lockCount(l))
}

var errDBDown = errors.New("db down")

// brokenSettlements fails every ReplaceSettlements made inside a transaction.
type brokenSettlements struct {
	*sqlstore.Store
}

func (b brokenSettlements) InTx(ctx context.Context, fn func(tx storage.TxStore) error) error {
	return b.Store.InTx(ctx, func(tx storage.TxStore) error {
		return fn(brokenSettlementsTx{tx})
	})
}

type brokenSettlementsTx struct {
	storage.TxStore
}

func (brokenSettlementsTx) ReplaceSettlements(context.Context, string, []*models.Settlement) error {
	return errDBDown
}

func TestLedger_FailedResettleRollsBack(t *testing.T) {
	l, store := setupLedger(t)
	groupID := createGroup(t, store, "alice", "bob", "carol")
	ctx := context.Background()

	dinner := addExpense(t, l, groupID, "alice", 90, "alice", "bob", "carol")
	wantEdges := persistedEdges(t, store, groupID)
	broken := New(brokenSettlements{store})

	tests := []struct {
		name   string
		mutate func() error
	}{
		{
			name: "add",
			mutate: func() error {
				return broken.AddExpense(ctx, &models.Expense{GroupID: groupID, Payer: "bob", Amount: 30, Participants: []string{"alice", "carol"}})
			},
		},
		{
			name: "update",
			mutate: func() error {
				return broken.UpdateExpense(ctx, &models.Expense{ID: dinner.ID, Payer: "carol", Amount: 60, Participants: []string{"alice", "bob"}})
			},
		},
		{
			name: "delete",
			mutate: func() error {
				return broken.DeleteExpense(ctx, dinner.ID)
			},
		},
		{
			name: "resettle",
			mutate: func() error {
				_, err := broken.Resettle(ctx, groupID)
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, tt.mutate(), errDBDown)

			stored, err := store.ListExpensesByGroup(ctx, groupID)
			require.NoError(t, err)
			require.Len(t, stored, 1)
			assert.Equal(t, "alice", stored[0].Payer)
			assert.Equal(t, 90.0, stored[0].Amount)
			assert.Equal(t, wantEdges, persistedEdges(t, store, groupID))
		})
	}
}

func TestLedger_CarryForward(t *testing.T) {
	ctx := context.Background()

	run := func(t *testing.T, policy Policy) *models.Settlement {
		l, store := setupLedger(t, WithPolicy(policy))
		groupID := createGroup(t, store, "alice", "bob", "carol", "dave", "erin")

		addExpense(t, l, groupID, "alice", 90, "alice", "bob", "carol")
		settlements, err := store.ListSettlementsByGroup(ctx, groupID)
		require.NoError(t, err)
		require.Len(t, settlements, 2)
		paid := settlements[0]
		require.Equal(t, "bob", paid.From)

		marked, err := l.MarkPaid(ctx, paid.ID, true)
		require.NoError(t, err)
		assert.True(t, marked.IsSettled)
		assert.Equal(t, fixedNow.Unix(), marked.SettledAt)

		// Unrelated to the bob -> alice debt.
		addExpense(t, l, groupID, "dave", 20, "dave", "erin")

		settlements, err = store.ListSettlementsByGroup(ctx, groupID)
		require.NoError(t, err)
		assert.Equal(t, []edge{
			{"bob", "alice", 30},
			{"carol", "alice", 30},
			{"erin", "dave", 10},
		}, edges(settlements))
		return settlements[0]
	}

	t.Run("carry forward keeps paid state", func(t *testing.T) {
		got := run(t, PolicyCarryForward)
		assert.True(t, got.IsSettled)
		assert.Equal(t, fixedNow.Unix(), got.SettledAt)
	})

	t.Run("overwrite resets paid state", func(t *testing.T) {
		got := run(t, PolicyOverwrite)
		assert.False(t, got.IsSettled)
		assert.Zero(t, got.SettledAt)
	})
}

func TestLedger_CarryForwardRequiresSameAmount(t *testing.T) {
	l, store := setupLedger(t)
	groupID := createGroup(t, store, "alice", "bob")
	ctx := context.Background()

	addExpense(t, l, groupID, "alice", 20, "alice", "bob")
	settlements, err := store.ListSettlementsByGroup(ctx, groupID)
	require.NoError(t, err)
	_, err = l.MarkPaid(ctx, settlements[0].ID, true)
	require.NoError(t, err)

	addExpense(t, l, groupID, "alice", 10, "bob")

	settlements, err = store.ListSettlementsByGroup(ctx, groupID)
	require.NoError(t, err)
	require.Len(t, settlements, 1)
	assert.Equal(t, 20.0, settlements[0].Amount)
	assert.False(t, settlements[0].IsSettled)
}

func TestLedger_MarkPaid(t *testing.T) {
	l, store := setupLedger(t)
	groupID := createGroup(t, store, "alice", "bob")
	ctx := context.Background()

	addExpense(t, l, groupID, "alice", 20, "alice", "bob")
	settlements, err := store.ListSettlementsByGroup(ctx, groupID)
	require.NoError(t, err)

	got, err := l.MarkPaid(ctx, settlements[0].ID, true)
	require.NoError(t, err)
	assert.True(t, got.IsSettled)

	got, err = l.MarkPaid(ctx, settlements[0].ID, false)
	require.NoError(t, err)
	assert.False(t, got.IsSettled)
	assert.Zero(t, got.SettledAt)

	_, err = l.MarkPaid(ctx, "missing", true)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLedger_Snapshot(t *testing.T) {
	m := metrics.New()
	l, store := setupLedger(t, WithMetrics(m))
	groupID := createGroup(t, store, "alice", "bob", "carol")
	ctx := context.Background()

	addExpense(t, l, groupID, "alice", 30, "alice", "bob", "carol")

	snap, err := l.Snapshot(ctx, groupID)
	require.NoError(t, err)
	assert.Equal(t, groupID, snap.Group.ID)
	assert.Equal(t, []settlement.MemberBalance{
		{Member: "alice", Paid: 30, Owed: 10, Net: 20},
		{Member: "bob", Paid: 0, Owed: 10, Net: -10},
		{Member: "carol", Paid: 0, Owed: 10, Net: -10},
	}, snap.Balances)
	assert.Len(t, snap.Settlements, 2)

	_, err = l.Snapshot(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLedger_ResettleEmptyGroup(t *testing.T) {
	l, store := setupLedger(t)
	groupID := createGroup(t, store, "alice")

	got, err := l.Resettle(context.Background(), groupID)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, persistedEdges(t, store, groupID))
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{in: "", want: PolicyCarryForward},
		{in: "carry-forward", want: PolicyCarryForward},
		{in: "Overwrite", want: PolicyOverwrite},
		{in: "sometimes", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePolicy(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	var p Policy
	require.NoError(t, p.UnmarshalText([]byte("overwrite")))
	assert.Equal(t, "overwrite", p.String())
}
