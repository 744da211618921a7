package domain

import "github.com/shopspring/decimal"

// Product — товар каталога. Цены могут отсутствовать (NULL в каталоге).
type Product struct {
	ID        string
	Name      string
	Price     decimal.NullDecimal
	SalePrice decimal.NullDecimal
	OnSale    bool
	Stock     int
}

// UnitPrice возвращает действующую цену: акционную при OnSale, иначе обычную.
// ok=false, если действующая цена не задана или отрицательна.
func (p *Product) UnitPrice() (decimal.Decimal, bool) {
	price := p.Price
	if p.OnSale {
		price = p.SalePrice
	}
	if !price.Valid || price.Decimal.IsNegative() {
		return decimal.Zero, false
	}
	return price.Decimal, true
}

// InStock возвращает true, если товар есть на складе.
func (p *Product) InStock() bool {
	return p.Stock > 0
}
