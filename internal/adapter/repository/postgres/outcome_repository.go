package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/n2nstreams/saasfactory-cloud/internal/domain/promotion"
)

// OutcomeModel is the append-only audit row for one promotion run.
type OutcomeModel struct {
	RunID         int64  `gorm:"primaryKey;autoIncrement:false"`
	TenantSlug    string `gorm:"index;type:varchar(63)"`
	RequestedBy   string `gorm:"type:varchar(255)"`
	TriggerSource string `gorm:"type:varchar(20)"`
	RawLabel      string `gorm:"type:text"`
	RawTitle      string `gorm:"type:text"`
	RawBody       string `gorm:"type:text"`
	Steps         string `gorm:"type:jsonb"`
	FinalState    string `gorm:"type:varchar(20);not null"`
	Reason        string `gorm:"type:varchar(64)"`
	Detail        string `gorm:"type:text"`
	RoutingRef    string `gorm:"type:text"`
	RequestedAt   time.Time
	CompletedAt   time.Time
	CreatedAt     time.Time
}

func (OutcomeModel) TableName() string {
	return "promotion_outcomes"
}

// OutcomeRepository implements promotion.OutcomeRepository. Rows are only
// ever inserted; there is no update path.
type OutcomeRepository struct {
	db *gorm.DB
}

func NewOutcomeRepository(db *gorm.DB) *OutcomeRepository {
	return &OutcomeRepository{db: db}
}

func (r *OutcomeRepository) Append(ctx context.Context, out *promotion.Outcome) error {
	steps, err := marshalSteps(out.Steps)
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}

	model := OutcomeModel{
		RunID:         out.RunID,
		TenantSlug:    out.Request.TenantSlug,
		RequestedBy:   out.Request.RequestedBy,
		TriggerSource: string(out.Request.Source),
		RawLabel:      out.Request.Raw.Label,
		RawTitle:      out.Request.Raw.Title,
		RawBody:       out.Request.Raw.Body,
		Steps:         steps,
		FinalState:    string(out.FinalState),
		Reason:        string(out.Reason),
		Detail:        out.Detail,
		RoutingRef:    out.RoutingRef,
		RequestedAt:   out.Request.CreatedAt,
		CompletedAt:   out.CompletedAt,
		CreatedAt:     time.Now().UTC(),
	}

	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *OutcomeRepository) FindByRunID(ctx context.Context, runID int64) (*promotion.Outcome, error) {
	var model OutcomeModel
	if err := r.db.WithContext(ctx).Where("run_id = ?", runID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toOutcome(model)
}

func (r *OutcomeRepository) ListBySlug(ctx context.Context, slug string, limit int) ([]*promotion.Outcome, error) {
	query := r.db.WithContext(ctx).Where("tenant_slug = ?", slug).Order("completed_at desc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var models []OutcomeModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	items := make([]*promotion.Outcome, 0, len(models))
	for _, model := range models {
		item, err := toOutcome(model)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func toOutcome(m OutcomeModel) (*promotion.Outcome, error) {
	var steps []promotion.Step
	if m.Steps != "" {
		if err := json.Unmarshal([]byte(m.Steps), &steps); err != nil {
			return nil, fmt.Errorf("unmarshal steps: %w", err)
		}
	}

	return &promotion.Outcome{
		RunID: m.RunID,
		Request: promotion.Request{
			RunID:       m.RunID,
			TenantSlug:  m.TenantSlug,
			RequestedBy: m.RequestedBy,
			Source:      promotion.TriggerSource(m.TriggerSource),
			Raw: promotion.RawTrigger{
				Label:       m.RawLabel,
				Title:       m.RawTitle,
				Body:        m.RawBody,
				RequestedBy: m.RequestedBy,
			},
			CreatedAt: m.RequestedAt,
		},
		Steps:       steps,
		FinalState:  promotion.FinalState(m.FinalState),
		Reason:      promotion.Reason(m.Reason),
		Detail:      m.Detail,
		RoutingRef:  m.RoutingRef,
		CompletedAt: m.CompletedAt,
	}, nil
}
