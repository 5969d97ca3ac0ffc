package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/deepreview/socratic/internal/assessment"
)

type articleRepo struct {
	db *gorm.DB
}

func (r *articleRepo) Create(ctx context.Context, a *assessment.Article) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	row := articleRow{
		ID:         a.ID,
		OwnerID:    a.OwnerID,
		Title:      a.Title,
		Authors:    datatypes.JSONSlice[string](a.Authors),
		Abstract:   a.Abstract,
		MainTopics: datatypes.JSONSlice[string](a.MainTopics),
		FullText:   a.FullText,
		CreatedAt:  a.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create article: %w", err)
	}
	return nil
}

func (r *articleRepo) Get(ctx context.Context, id, ownerID string) (*assessment.Article, error) {
	var row articleRow
	err := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get article %s: %w", id, err)
	}
	return row.toDomain(), nil
}

func (r *articleRepo) List(ctx context.Context, ownerID string) ([]*assessment.Article, error) {
	var rows []articleRow
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	out := make([]*assessment.Article, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}
