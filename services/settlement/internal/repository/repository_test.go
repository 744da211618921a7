package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"example.com/settlement/services/settlement/internal/domain"
)

// =====================================
// Вспомогательные функции
// =====================================

// setupMockDB создаёт мок базы данных с GORM.
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err, "Ошибка создания sqlmock")
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "Ошибка инициализации GORM")

	return gormDB, mock
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testOrder() *domain.Order {
	return &domain.Order{
		ID:            "order-1",
		UserID:        "user-1",
		TotalAmount:   dec("950"),
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		PaymentMethod: domain.PaymentMethodOnline,
		ShippingAddress: domain.ShippingAddress{
			City: "Pune",
			Breakdown: domain.PriceBreakdown{
				Subtotal: dec("1000"),
				Discount: dec("50"),
				Shipping: decimal.Zero,
			},
		},
		Items: []domain.OrderItem{
			{ID: "item-1", ProductID: "p-1", ProductName: "Чайник", Quantity: 2, PriceAtPurchase: dec("500")},
		},
	}
}

// =====================================
// OrderRepository
// =====================================

func TestOrderRepository_Create(t *testing.T) {
	t.Run("заказ и позиции в одной транзакции", func(t *testing.T) {
		gdb, mock := setupMockDB(t)
		repo := NewOrderRepository(gdb)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `orders`")).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `order_items`")).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		err := repo.Create(context.Background(), testOrder())

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ошибка вставки позиций откатывает заказ", func(t *testing.T) {
		gdb, mock := setupMockDB(t)
		repo := NewOrderRepository(gdb)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `orders`")).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `order_items`")).
			WillReturnError(errors.New("deadlock"))
		mock.ExpectRollback()

		err := repo.Create(context.Background(), testOrder())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "deadlock")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOrderRepository_GetByID(t *testing.T) {
	t.Run("заказ найден вместе с позициями", func(t *testing.T) {
		gdb, mock := setupMockDB(t)
		repo := NewOrderRepository(gdb)
		now := time.Now()

		mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `orders`")).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "user_id", "total_amount", "status", "payment_status", "payment_method",
				"shipping_address", "coupon_id", "created_at", "updated_at",
			}).AddRow(
				"order-1", "user-1", "950.00", "pending", "pending", "online",
				`{"city":"Pune","price_breakdown":{"subtotal":"1000","discount":"50","shipping":"0"}}`,
				"coupon-1", now, now,
			))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `order_items`")).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "order_id", "product_id", "product_name", "quantity", "price_at_purchase", "created_at",
			}).AddRow("item-1", "order-1", "p-1", "Чайник", 2, "500.00", now))

		order, err := repo.GetByID(context.Background(), "order-1")

		require.NoError(t, err)
		assert.Equal(t, domain.PaymentMethodOnline, order.PaymentMethod)
		assert.True(t, dec("950").Equal(order.TotalAmount))
		assert.True(t, dec("50").Equal(order.ShippingAddress.Breakdown.Discount))
		require.NotNil(t, order.CouponID)
		assert.Equal(t, "coupon-1", *order.CouponID)
		require.Len(t, order.Items, 1)
		assert.True(t, dec("500").Equal(order.Items[0].PriceAtPurchase))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("заказ не найден", func(t *testing.T) {
		gdb, mock := setupMockDB(t)
		repo := NewOrderRepository(gdb)

		mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `orders`")).
			WillReturnError(gorm.ErrRecordNotFound)

		_, err := repo.GetByID(context.Background(), "missing")

		assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	})
}

func TestOrderRepository_TransitionPayment(t *testing.T) {
	tests := []struct {
		name         string
		rowsAffected int64
		expectedErr  error
	}{
		{name: "переход зафиксирован", rowsAffected: 1, expectedErr: nil},
		{name: "статус уже изменён другим вызовом", rowsAffected: 0, expectedErr: domain.ErrPaymentAlreadySettled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gdb, mock := setupMockDB(t)
			repo := NewOrderRepository(gdb)

			mock.ExpectBegin()
			mock.ExpectExec(regexp.QuoteMeta("UPDATE `orders` SET")).
				WillReturnResult(sqlmock.NewResult(0, tt.rowsAffected))
			mock.ExpectCommit()

			err := repo.TransitionPayment(context.Background(), "order-1",
				domain.PaymentStatusPending, domain.OrderStatusProcessing, domain.PaymentStatusSucceeded)

			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestOrderRepository_ConfirmCOD(t *testing.T) {
	gdb, mock := setupMockDB(t)
	repo := NewOrderRepository(gdb)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `orders` SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `orders` SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	changed, err := repo.ConfirmCOD(context.Background(), "order-1")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.ConfirmCOD(context.Background(), "order-1")
	require.NoError(t, err)
	assert.False(t, changed, "повторное подтверждение ничего не меняет")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_ListStalePending(t *testing.T) {
	gdb, mock := setupMockDB(t)
	repo := NewOrderRepository(gdb)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `orders` WHERE payment_status = ? AND status = ? AND created_at < ? ORDER BY created_at ASC")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "total_amount", "status", "payment_status", "payment_method", "created_at"}).
			AddRow("order-1", "user-1", "100.00", "pending", "pending", "online", now.Add(-time.Hour)).
			AddRow("order-2", "user-2", "200.00", "pending", "pending", "cod", now.Add(-time.Minute*30)))

	orders, err := repo.ListStalePending(context.Background(), now.Add(-5*time.Minute), 10)

	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "order-1", orders[0].ID)
	assert.Equal(t, domain.PaymentMethodCOD, orders[1].PaymentMethod, "COD заказы тоже попадают в выборку")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// =====================================
// CatalogRepository
// =====================================

func TestCatalogRepository_GetByIDs(t *testing.T) {
	gdb, mock := setupMockDB(t)
	repo := NewCatalogRepository(gdb)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `products`")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "price", "sale_price", "on_sale", "stock"}).
			AddRow("p-1", "Чайник", "500.00", nil, false, 3).
			AddRow("p-2", "Кружка", "200.00", "150.00", true, 0))

	products, err := repo.GetByIDs(context.Background(), []string{"p-1", "p-2", "p-404"})

	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.False(t, products[0].SalePrice.Valid)
	price, ok := products[1].UnitPrice()
	assert.True(t, ok)
	assert.True(t, dec("150").Equal(price))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogRepository_GetByIDs_Empty(t *testing.T) {
	gdb, mock := setupMockDB(t)
	repo := NewCatalogRepository(gdb)

	products, err := repo.GetByIDs(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, products)
	assert.NoError(t, mock.ExpectationsWereMet(), "пустой список не должен ходить в БД")
}

// =====================================
// CouponRepository
// =====================================

func TestCouponRepository_GetByCode(t *testing.T) {
	gdb, mock := setupMockDB(t)
	repo := NewCouponRepository(gdb)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `coupons` WHERE code = ?")).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "code", "discount_type", "discount_value", "usage_limit", "used_count",
			"min_purchase_amount", "max_discount_amount", "expires_at", "is_active",
		}).AddRow("c-1", "SAVE10", "percentage", "10.00", nil, 4, "0.00", "50.00", nil, true))

	coupon, err := repo.GetByCode(context.Background(), " save10 ")

	require.NoError(t, err)
	assert.Equal(t, domain.DiscountTypePercentage, coupon.DiscountType)
	assert.Nil(t, coupon.UsageLimit)
	require.NotNil(t, coupon.MaxDiscountAmount)
	assert.True(t, dec("50").Equal(*coupon.MaxDiscountAmount))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCouponRepository_GetByID_NotFound(t *testing.T) {
	gdb, mock := setupMockDB(t)
	repo := NewCouponRepository(gdb)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `coupons`")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByID(context.Background(), "nope")

	assert.ErrorIs(t, err, domain.ErrCouponNotFound)
}

func TestCouponRepository_IncrementUsage(t *testing.T) {
	tests := []struct {
		name         string
		rowsAffected int64
		expectedErr  error
	}{
		{name: "счётчик увеличен", rowsAffected: 1},
		{name: "лимит исчерпан", rowsAffected: 0, expectedErr: domain.ErrCouponExhausted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gdb, mock := setupMockDB(t)
			repo := NewCouponRepository(gdb)

			mock.ExpectBegin()
			mock.ExpectExec(regexp.QuoteMeta("UPDATE `coupons` SET `used_count`=used_count + ?")).
				WillReturnResult(sqlmock.NewResult(0, tt.rowsAffected))
			mock.ExpectCommit()

			err := repo.IncrementUsage(context.Background(), "c-1")

			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

// =====================================
// AffiliateRepository
// =====================================

func TestAffiliateRepository_CreateCommission(t *testing.T) {
	commission := func() *domain.AffiliateCommission {
		return &domain.AffiliateCommission{
			ID:          "com-1",
			AffiliateID: "aff-1",
			OrderID:     "order-1",
			Amount:      dec("95"),
			RateApplied: dec("10"),
			Status:      domain.CommissionStatusPending,
		}
	}

	t.Run("начисление создано", func(t *testing.T) {
		gdb, mock := setupMockDB(t)
		repo := NewAffiliateRepository(gdb)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `affiliate_commissions`")).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		assert.NoError(t, repo.CreateCommission(context.Background(), commission()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("дубликат по (affiliate_id, order_id)", func(t *testing.T) {
		gdb, mock := setupMockDB(t)
		repo := NewAffiliateRepository(gdb)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `affiliate_commissions`")).
			WillReturnError(errors.New("Error 1062 (23000): Duplicate entry 'aff-1-order-1' for key 'idx_affiliate_commission_unique'"))
		mock.ExpectRollback()

		err := repo.CreateCommission(context.Background(), commission())

		assert.ErrorIs(t, err, domain.ErrCommissionExists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAffiliateRepository_GetByCouponID(t *testing.T) {
	gdb, mock := setupMockDB(t)
	repo := NewAffiliateRepository(gdb)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `affiliates` WHERE coupon_id = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "coupon_id", "commission_rate", "total_earnings", "payout_info"}).
			AddRow("aff-1", "user-9", "c-1", "10.00", "1200.00", []byte(`{"upi":"aff@bank"}`)))

	aff, err := repo.GetByCouponID(context.Background(), "c-1")

	require.NoError(t, err)
	assert.Equal(t, "aff-1", aff.ID)
	assert.True(t, dec("10").Equal(aff.CommissionRate))
	assert.JSONEq(t, `{"upi":"aff@bank"}`, string(aff.PayoutInfo))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAffiliateRepository_AddEarnings(t *testing.T) {
	gdb, mock := setupMockDB(t)
	repo := NewAffiliateRepository(gdb)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `affiliates` SET `total_earnings`=total_earnings + ?")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	assert.NoError(t, repo.AddEarnings(context.Background(), "aff-1", dec("95")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// =====================================
// ProfileRepository
// =====================================

func TestProfileRepository_Upsert(t *testing.T) {
	gdb, mock := setupMockDB(t)
	repo := NewProfileRepository(gdb)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `profiles`") + ".*" + regexp.QuoteMeta("ON DUPLICATE KEY UPDATE")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.Upsert(context.Background(), &domain.Profile{ID: "user-1", Email: "a@b.c", Name: "Аня"})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepository_Get(t *testing.T) {
	t.Run("профиль найден", func(t *testing.T) {
		gdb, mock := setupMockDB(t)
		repo := NewProfileRepository(gdb)

		mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `profiles` WHERE id = ?")).
			WillReturnRows(sqlmock.NewRows([]string{"id", "email", "phone", "name"}).
				AddRow("user-1", "a@b.c", "999", "Аня"))

		p, err := repo.Get(context.Background(), "user-1")
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, "a@b.c", p.Email)
	})

	t.Run("профиля нет", func(t *testing.T) {
		gdb, mock := setupMockDB(t)
		repo := NewProfileRepository(gdb)

		mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `profiles`")).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		p, err := repo.Get(context.Background(), "user-2")
		require.NoError(t, err)
		assert.Nil(t, p)
	})
}
