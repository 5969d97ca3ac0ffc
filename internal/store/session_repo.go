package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/deepreview/socratic/internal/assessment"
)

type sessionRepo struct {
	db *gorm.DB
}

func (r *sessionRepo) Create(ctx context.Context, s *assessment.Session) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	row := sessionToRow(s)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (r *sessionRepo) Get(ctx context.Context, id, userID string) (*assessment.Session, error) {
	var row sessionRow
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return row.toDomain(), nil
}

func (r *sessionRepo) Active(ctx context.Context, userID, articleID string) (*assessment.Session, error) {
	var row sessionRow
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND article_id = ? AND is_completed = ?", userID, articleID, false).
		Order("created_at DESC").
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("active session: %w", err)
	}
	return row.toDomain(), nil
}

func (r *sessionRepo) Completed(ctx context.Context, userID, articleID string) ([]*assessment.Session, error) {
	var rows []sessionRow
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND article_id = ? AND is_completed = ?", userID, articleID, true).
		Order("completed_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("completed sessions: %w", err)
	}
	out := make([]*assessment.Session, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

func (r *sessionRepo) Save(ctx context.Context, s *assessment.Session) error {
	now := time.Now().UTC()
	row := sessionToRow(s)

	res := r.db.WithContext(ctx).
		Model(&sessionRow{}).
		Where("id = ? AND user_id = ? AND version = ?", s.ID, s.UserID, s.Version).
		Updates(map[string]any{
			"questions":          row.Questions,
			"answers":            row.Answers,
			"current_difficulty": s.CurrentDifficulty,
			"is_completed":       s.IsCompleted,
			"completed_at":       s.CompletedAt,
			"version":            s.Version + 1,
			"updated_at":         now,
		})
	if res.Error != nil {
		return fmt.Errorf("save session %s: %w", s.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := r.Get(ctx, s.ID, s.UserID); errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return ErrStaleSession
	}

	s.Version++
	s.UpdatedAt = now
	return nil
}
