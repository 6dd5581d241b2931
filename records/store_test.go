package records_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/goliatone/go-expense-tracker/auth"
	"github.com/goliatone/go-expense-tracker/persistence"
	"github.com/goliatone/go-expense-tracker/records"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type dbConfig struct {
	dsn string
}

func (c dbConfig) GetDatabaseDriver() string { return persistence.DriverSQLite }
func (c dbConfig) GetDatabaseDSN() string    { return c.dsn }
func (c dbConfig) GetDatabaseDebug() bool    { return false }

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	ctx := context.Background()

	db, err := persistence.Open(ctx, dbConfig{dsn: "file:" + filepath.Join(t.TempDir(), "records.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = persistence.Migrate(ctx, db)
	require.NoError(t, err)

	return db
}

func newOwner(t *testing.T, db *bun.DB, username string) uuid.UUID {
	t.Helper()
	user, err := auth.NewUsersRepository(db).Create(context.Background(),
		auth.NewPendingUser(username, username+"@example.com", "hash"))
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, user.ID)
	return user.ID
}

func day(s string) time.Time {
	d, err := time.Parse(records.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestStoreScopesRecordsToOwner(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	store := records.NewExpenseStore(db)

	alice := newOwner(t, db, "alice")
	bob := newOwner(t, db, "bob")

	older, err := store.CreateForOwner(ctx, alice, &records.Expense{
		Amount: 10, Date: day("2024-03-01"), Description: "bus", Category: "Transport",
	})
	require.NoError(t, err)
	assert.Equal(t, alice, older.OwnerID)

	newer, err := store.CreateForOwner(ctx, alice, &records.Expense{
		Amount: 42.5, Date: day("2024-03-09"), Description: "groceries", Category: "Food",
	})
	require.NoError(t, err)

	_, err = store.CreateForOwner(ctx, bob, &records.Expense{
		Amount: 900, Date: day("2024-03-05"), Description: "rent", Category: "Rent",
	})
	require.NoError(t, err)

	t.Run("list returns newest first", func(t *testing.T) {
		list, total, err := store.ListByOwner(ctx, alice)
		require.NoError(t, err)
		require.Equal(t, 2, total)
		assert.Equal(t, newer.ID, list[0].ID)
		assert.Equal(t, older.ID, list[1].ID)
	})

	t.Run("get hides foreign records", func(t *testing.T) {
		got, err := store.GetByOwner(ctx, alice, newer.ID)
		require.NoError(t, err)
		assert.Equal(t, "groceries", got.Description)

		_, err = store.GetByOwner(ctx, bob, newer.ID)
		assert.True(t, persistence.IsRecordNotFound(err))
	})

	t.Run("update requires ownership", func(t *testing.T) {
		hijack := &records.Expense{ID: newer.ID, Amount: 1, Date: day("2024-03-09"), Description: "hijacked", Category: "Food"}
		_, err := store.UpdateForOwner(ctx, bob, hijack)
		assert.True(t, persistence.IsRecordNotFound(err))

		got, err := store.GetByOwner(ctx, alice, newer.ID)
		require.NoError(t, err)
		assert.Equal(t, "groceries", got.Description)

		got.Description = "weekly groceries"
		_, err = store.UpdateForOwner(ctx, alice, got)
		require.NoError(t, err)

		got, err = store.GetByOwner(ctx, alice, newer.ID)
		require.NoError(t, err)
		assert.Equal(t, "weekly groceries", got.Description)

		got.Description = ""
		_, err = store.UpdateForOwner(ctx, alice, got)
		require.NoError(t, err)

		got, err = store.GetByOwner(ctx, alice, newer.ID)
		require.NoError(t, err)
		assert.Empty(t, got.Description)
	})

	t.Run("unknown ids are not found", func(t *testing.T) {
		_, err := store.GetByOwner(ctx, alice, uuid.New())
		assert.True(t, persistence.IsRecordNotFound(err))
	})

	t.Run("delete requires ownership", func(t *testing.T) {
		err := store.DeleteForOwner(ctx, bob, older.ID)
		assert.True(t, persistence.IsRecordNotFound(err))

		require.NoError(t, store.DeleteForOwner(ctx, alice, older.ID))

		_, total, err := store.ListByOwner(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, 1, total)
	})
}

func TestStoreCreateRequiresOwner(t *testing.T) {
	db := newTestDB(t)
	store := records.NewIncomeStore(db)

	_, err := store.CreateForOwner(context.Background(), uuid.Nil, &records.Income{
		Amount: 1, Date: day("2024-03-01"), Description: "gift", Source: "Other",
	})
	assert.Error(t, err)

	_, total, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestListByOwnerPaginates(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	store := records.NewIncomeStore(db)
	owner := newOwner(t, db, "carol")

	start := day("2024-01-01")
	for i := 0; i < records.PageSize+3; i++ {
		_, err := store.CreateForOwner(ctx, owner, &records.Income{
			Amount: float64(i + 1), Date: start.AddDate(0, 0, i), Description: "pay", Source: "Salary",
		})
		require.NoError(t, err)
	}

	first, total, err := store.ListByOwner(ctx, owner, records.Page(1))
	require.NoError(t, err)
	assert.Equal(t, records.PageSize+3, total)
	require.Len(t, first, records.PageSize)
	assert.Equal(t, float64(records.PageSize+3), first[0].Amount)

	second, total, err := store.ListByOwner(ctx, owner, records.Page(2))
	require.NoError(t, err)
	assert.Equal(t, records.PageSize+3, total)
	require.Len(t, second, 3)
	assert.Equal(t, float64(1), second[2].Amount)

	clamped, _, err := store.ListByOwner(ctx, owner, records.Page(0))
	require.NoError(t, err)
	assert.Equal(t, first[0].ID, clamped[0].ID)
}

func TestOptionsAreSorted(t *testing.T) {
	db := newTestDB(t)
	options := records.NewOptions(db)
	ctx := context.Background()

	categories, err := options.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Entertainment", "Food", "Health", "Other", "Rent", "Transport", "Utilities"}, categories)

	sources, err := options.Sources(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Business", "Investments", "Other", "Salary", "Side hustle"}, sources)
}
