package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/n2nstreams/saasfactory-cloud/internal/config"
	"github.com/n2nstreams/saasfactory-cloud/internal/cryptoutils"
	"github.com/n2nstreams/saasfactory-cloud/internal/domain/tenant"
)

// TenantModel is the database DTO with gorm tags.
type TenantModel struct {
	ID             int64  `gorm:"primaryKey"`
	Slug           string `gorm:"uniqueIndex;type:varchar(63)"`
	Name           string `gorm:"type:varchar(255)"`
	IsolationState string `gorm:"type:varchar(50);not null"`

	DBHost     string `gorm:"type:varchar(255)"`
	DBPort     int    `gorm:"type:int"`
	DBName     string `gorm:"type:varchar(255)"`
	DBUser     string `gorm:"type:varchar(255)"`
	DBPassword string `gorm:"type:text"` // AES-GCM sealed when a key is configured

	DeploymentRef string `gorm:"type:varchar(255)"`
	RoutingRef    string `gorm:"type:text"`
	LastError     string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (TenantModel) TableName() string {
	return "tenants"
}

// TenantRepository implements tenant.Repository on the control-plane store.
type TenantRepository struct {
	db            *gorm.DB
	encryptionKey string
}

func NewTenantRepository(db *gorm.DB, cfg *config.Config) *TenantRepository {
	return &TenantRepository{
		db:            db,
		encryptionKey: cfg.CredentialEncryptionKey,
	}
}

func (r *TenantRepository) FindBySlug(ctx context.Context, slug string) (*tenant.Tenant, error) {
	var model TenantModel
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.toDomain(model)
}

func (r *TenantRepository) Save(ctx context.Context, entity *tenant.Tenant) error {
	model, err := r.toModel(entity)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Save(&model).Error; err != nil {
		return err
	}
	entity.ID = model.ID
	return nil
}

// CompareAndSwapState is the conditional update backing the promoting lock
// and the terminal transitions. RowsAffected tells us whether this caller
// won; there is no read-then-write window.
func (r *TenantRepository) CompareAndSwapState(ctx context.Context, slug string, expected, next tenant.IsolationState) (bool, error) {
	result := r.db.WithContext(ctx).Model(&TenantModel{}).
		Where("slug = ? AND isolation_state = ?", slug, string(expected)).
		Updates(map[string]any{
			"isolation_state": string(next),
			"updated_at":      time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *TenantRepository) ListByState(ctx context.Context, states []tenant.IsolationState, limit int) ([]*tenant.Tenant, error) {
	if len(states) == 0 {
		return nil, nil
	}
	values := make([]string, 0, len(states))
	for _, state := range states {
		values = append(values, string(state))
	}

	query := r.db.WithContext(ctx).Where("isolation_state IN ?", values).Order("updated_at asc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var models []TenantModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	items := make([]*tenant.Tenant, 0, len(models))
	for _, model := range models {
		item, err := r.toDomain(model)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *TenantRepository) ResetToShared(ctx context.Context, slug string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&TenantModel{}).
		Where("slug = ? AND isolation_state IN ?", slug,
			[]string{string(tenant.StatePromoting), string(tenant.StatePromotionFailed)}).
		Updates(map[string]any{
			"isolation_state": string(tenant.StateShared),
			"last_error":      "",
			"updated_at":      time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *TenantRepository) toDomain(m TenantModel) (*tenant.Tenant, error) {
	password := m.DBPassword
	if r.encryptionKey != "" {
		plain, err := cryptoutils.Decrypt(m.DBPassword, r.encryptionKey)
		if err != nil {
			return nil, fmt.Errorf("decrypt tenant credentials: %w", err)
		}
		password = plain
	}

	return &tenant.Tenant{
		ID:             m.ID,
		Slug:           m.Slug,
		Name:           m.Name,
		IsolationState: tenant.IsolationState(m.IsolationState),
		DBHost:         m.DBHost,
		DBPort:         m.DBPort,
		DBName:         m.DBName,
		DBUser:         m.DBUser,
		DBPassword:     password,
		DeploymentRef:  m.DeploymentRef,
		RoutingRef:     m.RoutingRef,
		LastError:      m.LastError,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}, nil
}

func (r *TenantRepository) toModel(d *tenant.Tenant) (TenantModel, error) {
	password := d.DBPassword
	if r.encryptionKey != "" {
		sealed, err := cryptoutils.Encrypt(d.DBPassword, r.encryptionKey)
		if err != nil {
			return TenantModel{}, fmt.Errorf("encrypt tenant credentials: %w", err)
		}
		password = sealed
	}

	return TenantModel{
		ID:             d.ID,
		Slug:           d.Slug,
		Name:           d.Name,
		IsolationState: string(d.IsolationState),
		DBHost:         d.DBHost,
		DBPort:         d.DBPort,
		DBName:         d.DBName,
		DBUser:         d.DBUser,
		DBPassword:     password,
		DeploymentRef:  d.DeploymentRef,
		RoutingRef:     d.RoutingRef,
		LastError:      d.LastError,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}, nil
}

// marshalSteps serializes the ordered step list for the jsonb column.
func marshalSteps(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
