// Package pricing пересчитывает корзину по ценам каталога.
// Цены из запроса клиента никогда не используются.
package pricing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"example.com/settlement/pkg/logger"
	"example.com/settlement/services/settlement/internal/domain"
	"example.com/settlement/services/settlement/internal/repository"
)

// CartLine — позиция корзины из запроса: только товар и количество.
type CartLine struct {
	ProductID string
	Quantity  int
}

// Line — позиция с ценой каталога.
type Line struct {
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	InStock     bool
}

// Total возвращает стоимость позиции.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Quote — результат пересчёта корзины.
type Quote struct {
	Lines    []Line
	Subtotal decimal.Decimal
	Skipped  []string // товары, которые не удалось оценить
}

// Resolver — Catalog Price Resolver.
type Resolver struct {
	catalog repository.CatalogRepository
}

// NewResolver создаёт Resolver.
func NewResolver(catalog repository.CatalogRepository) *Resolver {
	return &Resolver{catalog: catalog}
}

// Resolve оценивает корзину. Отсутствующие в каталоге товары и товары без цены
// исключаются молча. Если не осталось ни одной позиции — ErrNoResolvableItems.
func (r *Resolver) Resolve(ctx context.Context, cart []CartLine) (*Quote, error) {
	if len(cart) == 0 {
		return nil, domain.ErrEmptyCart
	}

	ids := make([]string, 0, len(cart))
	seen := make(map[string]struct{}, len(cart))
	for _, line := range cart {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: товар %s", domain.ErrInvalidQuantity, line.ProductID)
		}
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}

	products, err := r.catalog.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки каталога: %w", err)
	}

	byID := make(map[string]*domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	quote := &Quote{Subtotal: decimal.Zero}
	for _, line := range cart {
		product, ok := byID[line.ProductID]
		if !ok {
			quote.Skipped = append(quote.Skipped, line.ProductID)
			continue
		}
		price, ok := product.UnitPrice()
		if !ok {
			quote.Skipped = append(quote.Skipped, line.ProductID)
			continue
		}

		resolved := Line{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    line.Quantity,
			UnitPrice:   price,
			InStock:     product.InStock(),
		}
		quote.Lines = append(quote.Lines, resolved)
		quote.Subtotal = quote.Subtotal.Add(resolved.Total())
	}

	if len(quote.Skipped) > 0 {
		logger.Ctx(ctx).Warn().
			Strs("product_ids", quote.Skipped).
			Msg("Товары исключены из корзины: нет в каталоге или нет цены")
	}

	if len(quote.Lines) == 0 {
		return nil, domain.ErrNoResolvableItems
	}
	return quote, nil
}
