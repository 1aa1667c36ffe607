package postgresengine_test

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopkit/conditional-cart-go/cart"
	"github.com/shopkit/conditional-cart-go/cart/postgresengine"
)

func Test_NewStorage_ErrorCases(t *testing.T) {
	t.Run("nil pgx pool", func(t *testing.T) {
		_, err := postgresengine.NewStorageFromPGXPool(nil)
		assert.ErrorIs(t, err, postgresengine.ErrNilDatabaseConnection)
	})

	t.Run("nil sql db", func(t *testing.T) {
		_, err := postgresengine.NewStorageFromSQLDB(nil)
		assert.ErrorIs(t, err, postgresengine.ErrNilDatabaseConnection)
	})

	t.Run("nil sqlx db", func(t *testing.T) {
		_, err := postgresengine.NewStorageFromSQLX(nil)
		assert.ErrorIs(t, err, postgresengine.ErrNilDatabaseConnection)
	})

	t.Run("empty table name", func(t *testing.T) {
		db, openErr := sql.Open("postgres", "postgres://localhost/unused?sslmode=disable")
		require.NoError(t, openErr)
		t.Cleanup(func() { _ = db.Close() })

		_, err := postgresengine.NewStorageFromSQLDB(db, postgresengine.WithTableName(""))
		assert.ErrorIs(t, err, postgresengine.ErrEmptyTableName)
	})
}

// testDB connects to the Postgres named by CART_TEST_POSTGRES_DSN, creates
// the snapshot table and skips the test when the variable is unset.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := os.Getenv("CART_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("set CART_TEST_POSTGRES_DSN to run Postgres storage tests")
	}

	db, openErr := sql.Open("postgres", dsn)
	require.NoError(t, openErr)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Ping())

	_, execErr := db.Exec(`
		CREATE TABLE IF NOT EXISTS cart_snapshots_test (
			session_key TEXT PRIMARY KEY,
			snapshot    JSONB NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL
		)`)
	require.NoError(t, execErr)

	t.Cleanup(func() {
		_, _ = db.Exec(`TRUNCATE cart_snapshots_test`)
	})

	return db
}

func testStorage(t *testing.T) *postgresengine.Storage {
	t.Helper()

	storage, err := postgresengine.NewStorageFromSQLDB(
		testDB(t),
		postgresengine.WithTableName("cart_snapshots_test"),
	)
	require.NoError(t, err)

	return storage
}

func Test_Storage_GetMissesOnUnknownKey(t *testing.T) {
	storage := testStorage(t)

	value, found, err := storage.Get(context.Background(), "session-missing_cart_items")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, value)
}

func Test_Storage_UpsertReplacesSnapshotWholesale(t *testing.T) {
	ctx := context.Background()
	storage := testStorage(t)

	key := "session-1_cart_items"

	require.NoError(t, storage.Put(ctx, key, []byte(`[{"id": "456", "name": "Sample Item", "price": 67.99, "quantity": 1}]`)))
	require.NoError(t, storage.Put(ctx, key, []byte(`[]`)))

	value, found, err := storage.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `[]`, string(value))
}

func Test_Storage_CarriesAFullCartSession(t *testing.T) {
	ctx := context.Background()
	storage := testStorage(t)

	c, err := cart.New(storage, cart.NopDispatcher{}, "cart", "session-pg")
	require.NoError(t, err)

	_, err = c.Add(ctx, cart.ItemSpec{ID: "456", Name: "Sample Item", Price: 67.99, Quantity: 2})
	require.NoError(t, err)

	vat, err := cart.NewCondition(cart.ConditionSpec{Name: "VAT", Type: "tax", Target: cart.TargetTotal, Value: "12.5%"})
	require.NoError(t, err)
	require.NoError(t, c.AddCondition(ctx, vat))

	total, err := c.Total(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 152.9775, total, 1e-9)
}

var _ cart.Storage = (*postgresengine.Storage)(nil)
