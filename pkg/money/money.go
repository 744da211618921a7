// Package money содержит денежную арифметику на shopspring/decimal.
// Суммы хранятся в БД как DECIMAL(12,2), float64 в расчётах не используется.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale — количество знаков после запятой у хранимых сумм.
const Scale = 2

var hundred = decimal.NewFromInt(100)

// NonNegative возвращает d, если d >= 0, иначе ноль.
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Percent возвращает base * pct / 100.
func Percent(base, pct decimal.Decimal) decimal.Decimal {
	return base.Mul(pct).Div(hundred)
}

// CapAt ограничивает d сверху значением limit.
func CapAt(d, limit decimal.Decimal) decimal.Decimal {
	return decimal.Min(d, limit)
}

// FloorThenRound отбрасывает дробную часть, затем округляет результат до целого.
// Для неотрицательных значений совпадает с Floor; второй шаг сохранён намеренно,
// чтобы режим округления задавался в одном месте.
func FloorThenRound(d decimal.Decimal) decimal.Decimal {
	return d.Floor().Round(0)
}

// Normalize приводит сумму к масштабу хранения.
func Normalize(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// Parse разбирает строковое представление суммы.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("некорректная сумма %q: %w", s, err)
	}
	return d, nil
}
