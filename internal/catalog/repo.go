package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/counterline/poscore/pkg/db/models"
)

// Repository exposes persistence for the locally cached catalog slice.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindProduct loads one cached product by id.
func (r *Repository) FindProduct(ctx context.Context, id uuid.UUID) (*models.CatalogProduct, error) {
	var product models.CatalogProduct
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindProductByBarcode loads one cached product by scan code.
func (r *Repository) FindProductByBarcode(ctx context.Context, barcode string) (*models.CatalogProduct, error) {
	var product models.CatalogProduct
	if err := r.db.WithContext(ctx).Where("barcode = ?", barcode).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// UpsertProducts writes a delta page, replacing cached rows by primary key.
func (r *Repository) UpsertProducts(ctx context.Context, products []models.CatalogProduct) error {
	if len(products) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&products).Error
}

// FindCustomer loads one cached credit profile by id.
func (r *Repository) FindCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&customer).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

// SearchCustomers lists cached profiles whose name or phone matches the term.
func (r *Repository) SearchCustomers(ctx context.Context, term string, limit int) ([]models.Customer, error) {
	if limit <= 0 {
		limit = 20
	}
	var customers []models.Customer
	pattern := "%" + term + "%"
	err := r.db.WithContext(ctx).
		Where("name LIKE ? OR phone LIKE ?", pattern, pattern).
		Order("name ASC").
		Limit(limit).
		Find(&customers).Error
	if err != nil {
		return nil, err
	}
	return customers, nil
}

// UpsertCustomers writes a delta page, replacing cached rows by primary key.
func (r *Repository) UpsertCustomers(ctx context.Context, customers []models.Customer) error {
	if len(customers) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&customers).Error
}
