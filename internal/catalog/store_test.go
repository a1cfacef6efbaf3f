package catalog

import (
	"context"
	"testing"

	"github.com/aderut/moridam/internal/domain"
	"github.com/aderut/moridam/internal/options"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.RunMigrations())
	return store
}

func TestListProducts_Seeded(t *testing.T) {
	store := setupTestStore(t)

	products, err := store.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 4)

	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	assert.ElementsMatch(t, []string{"milkshake", "parfait", "small-chops", "water"}, ids)
}

func TestRunMigrations_Twice(t *testing.T) {
	store := setupTestStore(t)
	assert.NoError(t, store.RunMigrations())
}

func TestGetProduct(t *testing.T) {
	store := setupTestStore(t)

	p, err := store.GetProduct(context.Background(), "milkshake")
	require.NoError(t, err)
	assert.Equal(t, "Milkshake", p.Title)
	assert.Equal(t, 1500.0, p.Price)
	assert.False(t, p.CreatedAt.IsZero())

	schema := options.Normalize(p.RawOptions)
	require.Len(t, schema, 2)
	assert.Equal(t, "Flavor", schema[0].Name)
	assert.True(t, schema[0].Required)
	assert.Equal(t, domain.OptionModeMultiple, schema[1].Mode)
}

func TestGetProduct_LegacyOptionShapes(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	parfait, err := store.GetProduct(ctx, "parfait")
	require.NoError(t, err)
	schema := options.Normalize(parfait.RawOptions)
	require.Len(t, schema, 1)
	assert.True(t, schema[0].Required)
	assert.Equal(t, []domain.OptionChoice{{Label: "Small"}, {Label: "Large"}}, schema[0].Choices)

	chops, err := store.GetProduct(ctx, "small-chops")
	require.NoError(t, err)
	schema = options.Normalize(chops.RawOptions)
	require.Len(t, schema, 1)
	assert.Equal(t, domain.OptionModeMultiple, schema[0].Mode)

	water, err := store.GetProduct(ctx, "water")
	require.NoError(t, err)
	assert.Nil(t, water.RawOptions)
	assert.Empty(t, options.Normalize(water.RawOptions))
}

func TestGetProduct_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetProduct(context.Background(), "pizza")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSaveOptions(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	schema := domain.ProductOptionSchema{
		{
			Name:    "Toppings",
			Mode:    domain.OptionModeMultiple,
			Choices: []domain.OptionChoice{{Label: "Granola", Price: 150}, {Label: "Honey", Price: 100}},
		},
	}
	require.NoError(t, store.SaveOptions(ctx, "water", schema))

	p, err := store.GetProduct(ctx, "water")
	require.NoError(t, err)
	assert.Equal(t, schema, options.Normalize(p.RawOptions))

	require.NoError(t, store.SaveOptions(ctx, "water", nil))
	p, err = store.GetProduct(ctx, "water")
	require.NoError(t, err)
	assert.Nil(t, p.RawOptions)
}

func TestSaveOptions_Rejected(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.SaveOptions(ctx, "water", domain.ProductOptionSchema{
		{Name: "Size", Mode: domain.OptionModeSingle},
	})
	assert.True(t, domain.IsValidation(err))

	err = store.SaveOptions(ctx, "pizza", domain.ProductOptionSchema{
		{Name: "Size", Mode: domain.OptionModeSingle, Choices: []domain.OptionChoice{{Label: "L"}}},
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
