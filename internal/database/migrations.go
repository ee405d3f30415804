package database

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/chachabrian/hacktruck-backend/internal/models"
)

func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}, &models.Listing{}); err != nil {
		return err
	}

	if db.Dialector.Name() != "postgres" {
		return nil
	}

	truckTypes := make([]string, len(models.TruckTypes))
	for i, t := range models.TruckTypes {
		truckTypes[i] = "'" + string(t) + "'"
	}

	constraints := []struct {
		table, name, check string
	}{
		{"users", "users_role_check", "role IN ('driver', 'user')"},
		{"listings", "listings_truck_type_check", "truck_type IN (" + strings.Join(truckTypes, ", ") + ")"},
		{"listings", "listings_max_weight_check", "max_weight > 0"},
		{"listings", "listings_price_check", "price >= 0"},
		{"listings", "listings_rating_check", "rating IS NULL OR (rating >= 0 AND rating <= 5)"},
	}

	for _, c := range constraints {
		if err := db.Exec(fmt.Sprintf(`ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s`, c.table, c.name)).Error; err != nil {
			return err
		}
		if err := db.Exec(fmt.Sprintf(`ALTER TABLE %s ADD CONSTRAINT %s CHECK (%s)`, c.table, c.name, c.check)).Error; err != nil {
			return fmt.Errorf("add constraint %s: %w", c.name, err)
		}
	}

	return nil
}
