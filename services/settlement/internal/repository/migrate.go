package repository

import (
	"fmt"

	"gorm.io/gorm"

	"example.com/settlement/pkg/outbox"
)

// AutoMigrate создаёт или обновляет схему всех таблиц сервиса, включая outbox.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&ProductModel{},
		&CouponModel{},
		&AffiliateModel{},
		&AffiliateCommissionModel{},
		&ProfileModel{},
		&OrderModel{},
		&OrderItemModel{},
		&outbox.Model{},
	); err != nil {
		return fmt.Errorf("ошибка миграции схемы: %w", err)
	}
	return nil
}
