package pricing

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/settlement/services/settlement/internal/domain"
	"example.com/settlement/services/settlement/internal/testutil"
)

func price(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func catalog() *testutil.CatalogStore {
	return testutil.NewCatalogStore(
		domain.Product{ID: "kettle", Name: "Чайник", Price: price("500"), Stock: 3},
		domain.Product{ID: "mug", Name: "Кружка", Price: price("200"), SalePrice: price("150"), OnSale: true, Stock: 0},
		domain.Product{ID: "broken", Name: "Без цены", Stock: 10},
		domain.Product{ID: "sale-no-price", Name: "Распродажа без цены", Price: price("100"), OnSale: true, Stock: 1},
	)
}

func TestResolver_Resolve(t *testing.T) {
	r := NewResolver(catalog())

	quote, err := r.Resolve(context.Background(), []CartLine{
		{ProductID: "kettle", Quantity: 2},
		{ProductID: "mug", Quantity: 1},
	})
	require.NoError(t, err)

	require.Len(t, quote.Lines, 2)
	assert.True(t, quote.Subtotal.Equal(decimal.NewFromInt(1150)), "2×500 + 1×150 (цена распродажи)")
	assert.True(t, quote.Lines[1].UnitPrice.Equal(decimal.NewFromInt(150)))
	assert.True(t, quote.Lines[0].InStock)
	assert.False(t, quote.Lines[1].InStock, "товар без остатка всё равно оценивается")
	assert.Empty(t, quote.Skipped)
}

func TestResolver_Resolve_SkipsUnresolvable(t *testing.T) {
	r := NewResolver(catalog())

	quote, err := r.Resolve(context.Background(), []CartLine{
		{ProductID: "kettle", Quantity: 1},
		{ProductID: "unknown", Quantity: 5},
		{ProductID: "broken", Quantity: 1},
		{ProductID: "sale-no-price", Quantity: 1},
	})
	require.NoError(t, err)

	require.Len(t, quote.Lines, 1)
	assert.True(t, quote.Subtotal.Equal(decimal.NewFromInt(500)))
	assert.ElementsMatch(t, []string{"unknown", "broken", "sale-no-price"}, quote.Skipped)
}

func TestResolver_Resolve_Errors(t *testing.T) {
	tests := []struct {
		name    string
		cart    []CartLine
		wantErr error
	}{
		{name: "пустая корзина", cart: nil, wantErr: domain.ErrEmptyCart},
		{name: "нулевое количество", cart: []CartLine{{ProductID: "kettle", Quantity: 0}}, wantErr: domain.ErrInvalidQuantity},
		{name: "только неизвестные товары", cart: []CartLine{{ProductID: "unknown", Quantity: 1}}, wantErr: domain.ErrNoResolvableItems},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewResolver(catalog()).Resolve(context.Background(), tt.cart)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestResolver_Resolve_CatalogError(t *testing.T) {
	store := catalog()
	store.Err = errors.New("connection reset")

	_, err := NewResolver(store).Resolve(context.Background(), []CartLine{{ProductID: "kettle", Quantity: 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "каталог")
}

func TestLine_Total(t *testing.T) {
	l := Line{UnitPrice: decimal.RequireFromString("99.99"), Quantity: 3}
	assert.Equal(t, "299.97", l.Total().String())
}
