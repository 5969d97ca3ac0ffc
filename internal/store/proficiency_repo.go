package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/deepreview/socratic/internal/assessment"
)

type proficiencyRepo struct {
	db *gorm.DB
}

func (r *proficiencyRepo) Get(ctx context.Context, userID string) (*assessment.ProficiencyRecord, error) {
	var row proficiencyRow
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get proficiency: %w", err)
	}
	return row.toDomain(), nil
}

func (r *proficiencyRepo) Merge(ctx context.Context, userID string, fn MergeFunc) (*assessment.ProficiencyRecord, error) {
	var merged assessment.ProficiencyRecord

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Where("user_id = ?", userID)
		// SQLite serializes writers already and has no row locks.
		if tx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var current *assessment.ProficiencyRecord
		var row proficiencyRow
		switch err := q.Take(&row).Error; {
		case err == nil:
			current = row.toDomain()
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return fmt.Errorf("read proficiency: %w", err)
		}

		articles, err := countArticles(tx, userID)
		if err != nil {
			return err
		}

		merged = fn(current, articles)
		merged.UserID = userID
		merged.UpdatedAt = time.Now().UTC()

		out := proficiencyToRow(merged)
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			UpdateAll: true,
		}).Create(&out).Error
	})
	if err != nil {
		return nil, fmt.Errorf("merge proficiency: %w", err)
	}
	return &merged, nil
}

type completionRepo struct {
	db *gorm.DB
}

func (r *completionRepo) Record(ctx context.Context, c *assessment.Completion) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	row := completionToRow(c)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("record completion: %w", err)
	}
	return nil
}

func (r *completionRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*assessment.Completion, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []completionRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	out := make([]*assessment.Completion, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

func (r *completionRepo) CountArticles(ctx context.Context, userID string) (int, error) {
	return countArticles(r.db.WithContext(ctx), userID)
}

func countArticles(db *gorm.DB, userID string) (int, error) {
	var n int64
	err := db.Model(&completionRow{}).
		Where("user_id = ?", userID).
		Distinct("article_id").
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count completed articles: %w", err)
	}
	return int(n), nil
}
