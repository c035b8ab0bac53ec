package customers

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/shopchat-core/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shopchat-core/pkg/errors"
)

// ContactPatch carries the contact fields a customer supplied. Nil fields are left untouched.
type ContactPatch struct {
	Name    *string
	Phone   *string
	Address *string
}

// Empty reports whether the patch sets nothing.
func (p ContactPatch) Empty() bool {
	return p.Name == nil && p.Phone == nil && p.Address == nil
}

// Repository persists customers. Every write is scoped to one customer row.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	FindByExternalID(ctx context.Context, shopID uuid.UUID, externalID string) (*models.Customer, error)
	UpsertByExternalID(ctx context.Context, shopID uuid.UUID, externalID string) (*models.Customer, bool, error)
	UpdateContact(ctx context.Context, id uuid.UUID, patch ContactPatch) (*models.Customer, bool, error)
	SetPreference(ctx context.Context, id uuid.UUID, key, value string) error
	PauseAI(ctx context.Context, id uuid.UUID, until time.Time) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a customers repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&customer).Error; err != nil {
		return nil, mapFindErr(err)
	}
	return &customer, nil
}

func (r *repository) FindByExternalID(ctx context.Context, shopID uuid.UUID, externalID string) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.WithContext(ctx).
		Where("shop_id = ? AND external_id = ?", shopID, externalID).
		First(&customer).Error
	if err != nil {
		return nil, mapFindErr(err)
	}
	return &customer, nil
}

// UpsertByExternalID returns the customer for the platform id, inserting it
// on first contact. created is true only for the caller whose insert won.
func (r *repository) UpsertByExternalID(ctx context.Context, shopID uuid.UUID, externalID string) (*models.Customer, bool, error) {
	if externalID == "" {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "external id is required")
	}

	customer := models.Customer{
		ShopID:      shopID,
		ExternalID:  externalID,
		Preferences: map[string]string{},
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "shop_id"}, {Name: "external_id"}},
			DoNothing: true,
		}).
		Create(&customer)
	if res.Error != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "upsert customer")
	}

	found, err := r.FindByExternalID(ctx, shopID, externalID)
	if err != nil {
		return nil, false, err
	}
	return found, res.RowsAffected == 1, nil
}

// UpdateContact applies patch. changed is false when every supplied value
// already matched, in which case nothing is written.
func (r *repository) UpdateContact(ctx context.Context, id uuid.UUID, patch ContactPatch) (*models.Customer, bool, error) {
	customer, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, false, err
	}

	updates := map[string]any{}
	if patch.Name != nil && !sameValue(customer.Name, *patch.Name) {
		updates["name"] = *patch.Name
		customer.Name = patch.Name
	}
	if patch.Phone != nil && !sameValue(customer.Phone, *patch.Phone) {
		updates["phone"] = *patch.Phone
		customer.Phone = patch.Phone
	}
	if patch.Address != nil && !sameValue(customer.Address, *patch.Address) {
		updates["address"] = *patch.Address
		customer.Address = patch.Address
	}
	if len(updates) == 0 {
		return customer, false, nil
	}

	if err := r.db.WithContext(ctx).Model(&models.Customer{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update customer contact")
	}
	return customer, true, nil
}

// SetPreference overwrites one key of the preference map. Callers serialise
// writes per customer; the map is rewritten whole.
func (r *repository) SetPreference(ctx context.Context, id uuid.UUID, key, value string) error {
	customer, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	prefs := make(map[string]string, len(customer.Preferences)+1)
	for k, v := range customer.Preferences {
		prefs[k] = v
	}
	prefs[key] = value
	customer.Preferences = prefs

	if err := r.db.WithContext(ctx).Model(customer).Select("preferences").Updates(customer).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save preference")
	}
	return nil
}

// PauseAI sets ai_paused_until. Last write wins.
func (r *repository) PauseAI(ctx context.Context, id uuid.UUID, until time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Where("id = ?", id).
		Update("ai_paused_until", until.UTC())
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "pause assistant")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
	}
	return nil
}

func sameValue(current *string, next string) bool {
	return current != nil && *current == next
}

func mapFindErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
}
