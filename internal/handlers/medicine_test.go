package handlers

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/pharmadrop/internal/models"
)

// dryRunDB renders SQL without a server.
func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=pharmadrop dbname=pharmadrop sslmode=disable",
	}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               logger.Discard,
	})
	require.NoError(t, err)
	return db
}

func medicineUpdateSQL(t *testing.T, m *models.Medicine, columns []string) string {
	t.Helper()
	return dryRunDB(t).ToSQL(func(tx *gorm.DB) *gorm.DB {
		return saveMedicine(tx, m, columns)
	})
}

func stockedMedicine() *models.Medicine {
	m := &models.Medicine{Name: "Ibuprofen", Price: 10, Stock: 5}
	m.ID = uuid.New()
	return m
}

func TestSaveMedicine_DiscountLeavesStockAlone(t *testing.T) {
	m := stockedMedicine()
	require.NoError(t, m.ApplyDiscount(20))

	sql := medicineUpdateSQL(t, m, discountColumns)
	assert.Contains(t, sql, `"discounted_price"`)
	assert.Contains(t, sql, `"is_discounted"`)
	assert.NotContains(t, sql, `"stock"`)
	assert.NotContains(t, sql, `"price"=`)

	m.RemoveDiscount()
	sql = medicineUpdateSQL(t, m, discountColumns)
	assert.Contains(t, sql, `"discount_percentage"`)
	assert.NotContains(t, sql, `"stock"`)
}

func TestApplyMedicineRequest_Columns(t *testing.T) {
	price := 12.5
	stock := 3
	name := "  Aspirin "

	t.Run("stock untouched unless sent", func(t *testing.T) {
		m := stockedMedicine()
		columns, err := applyMedicineRequest(m, medicineRequest{Name: &name, Price: &price})
		require.NoError(t, err)
		assert.Equal(t, []string{"name", "price"}, columns)
		assert.Equal(t, "Aspirin", m.Name)

		sql := medicineUpdateSQL(t, m, columns)
		assert.Contains(t, sql, `"price"`)
		assert.NotContains(t, sql, `"stock"`)
	})

	t.Run("explicit stock is written", func(t *testing.T) {
		m := stockedMedicine()
		columns, err := applyMedicineRequest(m, medicineRequest{Stock: &stock})
		require.NoError(t, err)
		assert.Equal(t, []string{"stock"}, columns)
		assert.Contains(t, medicineUpdateSQL(t, m, columns), `"stock"`)
	})

	t.Run("price change refreshes discount", func(t *testing.T) {
		m := stockedMedicine()
		require.NoError(t, m.ApplyDiscount(50))
		columns, err := applyMedicineRequest(m, medicineRequest{Price: &price})
		require.NoError(t, err)
		assert.Equal(t, append([]string{"price"}, discountColumns...), columns)
		require.NotNil(t, m.DiscountedPrice)
		assert.Equal(t, 6.25, *m.DiscountedPrice)
	})

	t.Run("empty body changes nothing", func(t *testing.T) {
		columns, err := applyMedicineRequest(stockedMedicine(), medicineRequest{})
		require.NoError(t, err)
		assert.Empty(t, columns)
	})

	t.Run("negative stock rejected", func(t *testing.T) {
		negative := -1
		_, err := applyMedicineRequest(stockedMedicine(), medicineRequest{Stock: &negative})
		assert.Error(t, err)
	})
}
