// internal/domain/cartsync/postgres_repository.go
package cartsync

import (
	"context"
	"fmt"
	"time"

	"github.com/your-org/storefront-core/internal/domain/cart"
	"github.com/your-org/storefront-core/internal/domain/identity"
	"gorm.io/gorm"
)

// CartItemRecord is one mirrored line item of an authenticated cart
type CartItemRecord struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CustomerID string    `gorm:"not null;index:idx_cart_items_owner" json:"customer_id"`
	Origin     string    `gorm:"not null;index:idx_cart_items_owner" json:"origin"`
	ProductID  string    `gorm:"not null" json:"product_id"`
	VariantKey string    `gorm:"not null" json:"variant_key"`
	Quantity   int       `gorm:"not null;default:1" json:"quantity"`
	UnitPrice  int64     `gorm:"not null" json:"unit_price"`
	AddedAt    time.Time `json:"added_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName overrides the table name
func (CartItemRecord) TableName() string {
	return "cart_items"
}

// PostgresRepository mirrors authenticated carts in the database so they
// survive sessions and follow the customer across devices.
type PostgresRepository struct {
	db *gorm.DB
}

// NewPostgresRepository creates a database-backed cart mirror
func NewPostgresRepository(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get loads the mirrored cart for a customer and catalog
func (r *PostgresRepository) Get(ctx context.Context, owner identity.Identity, origin cart.CatalogOrigin) (*cart.Cart, error) {
	var records []CartItemRecord
	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND origin = ?", owner.Value, string(origin)).
		Order("added_at").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load cart %s: %w", cart.ID(owner, origin), err)
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}

	c := &cart.Cart{
		Owner:     owner,
		Origin:    origin,
		Items:     make([]cart.LineItem, len(records)),
		CreatedAt: records[0].CreatedAt,
		UpdatedAt: records[0].UpdatedAt,
	}
	for i, rec := range records {
		c.Items[i] = cart.LineItem{
			ProductID:     rec.ProductID,
			VariantKey:    rec.VariantKey,
			Quantity:      rec.Quantity,
			UnitPrice:     rec.UnitPrice,
			CatalogOrigin: origin,
			AddedAt:       rec.AddedAt,
		}
		if rec.UpdatedAt.After(c.UpdatedAt) {
			c.UpdatedAt = rec.UpdatedAt
		}
	}
	return c, nil
}

// Put overwrites the mirror with the cart's current line items
func (r *PostgresRepository) Put(ctx context.Context, c *cart.Cart) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("customer_id = ? AND origin = ?", c.Owner.Value, string(c.Origin)).
			Delete(&CartItemRecord{}).Error
		if err != nil {
			return fmt.Errorf("failed to clear cart mirror %s: %w", c.ID(), err)
		}

		if len(c.Items) == 0 {
			return nil
		}

		records := make([]CartItemRecord, len(c.Items))
		for i, item := range c.Items {
			records[i] = CartItemRecord{
				CustomerID: c.Owner.Value,
				Origin:     string(c.Origin),
				ProductID:  item.ProductID,
				VariantKey: item.VariantKey,
				Quantity:   item.Quantity,
				UnitPrice:  item.UnitPrice,
				AddedAt:    item.AddedAt,
			}
		}
		if err := tx.Create(&records).Error; err != nil {
			return fmt.Errorf("failed to write cart mirror %s: %w", c.ID(), err)
		}
		return nil
	})
}

// Delete drops the mirrored cart
func (r *PostgresRepository) Delete(ctx context.Context, owner identity.Identity, origin cart.CatalogOrigin) error {
	return r.db.WithContext(ctx).
		Where("customer_id = ? AND origin = ?", owner.Value, string(origin)).
		Delete(&CartItemRecord{}).Error
}
