package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// llmEventRepo implements LLMEventRepo on the llm_request_events table.
type llmEventRepo struct {
	db *gorm.DB
}

func (r *llmEventRepo) AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error {
	row := llmEventRow{
		Timestamp:    time.Now().UTC(),
		Provider:     data.Provider,
		Model:        data.Model,
		Purpose:      data.Purpose,
		SessionID:    data.SessionID,
		InputTokens:  data.InputTokens,
		OutputTokens: data.OutputTokens,
		LatencyMs:    data.LatencyMs,
		Success:      data.Success,
		ErrorMessage: data.ErrorMessage,
		RequestBody:  data.RequestBody,
		ResponseBody: data.ResponseBody,
		CostUSD:      data.CostUSD,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("save LLM request event: %w", err)
	}
	return nil
}

func (r *llmEventRepo) QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMEvent, error) {
	q := r.db.WithContext(ctx).Model(&llmEventRow{})
	if opts.After > 0 {
		q = q.Where("id > ?", opts.After)
	}
	if opts.Before > 0 {
		q = q.Where("id < ?", opts.Before)
	}
	if !opts.From.IsZero() {
		q = q.Where("timestamp >= ?", opts.From)
	}
	if !opts.To.IsZero() {
		q = q.Where("timestamp <= ?", opts.To)
	}
	if opts.Purpose != "" {
		q = q.Where("purpose = ?", opts.Purpose)
	}
	if opts.SessionID != "" {
		q = q.Where("session_id = ?", opts.SessionID)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}

	var rows []llmEventRow
	if err := q.Order("id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query LLM events: %w", err)
	}
	out := make([]LLMEvent, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

func (r *llmEventRepo) GetLLMEvent(ctx context.Context, id int64) (*LLMEvent, error) {
	var row llmEventRow
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get LLM event %d: %w", id, err)
	}
	e := row.toDomain()
	return &e, nil
}

func (r *llmEventRepo) LLMUsageByPurpose(ctx context.Context) ([]PurposeUsage, error) {
	var out []PurposeUsage
	err := r.db.WithContext(ctx).Model(&llmEventRow{}).
		Select("purpose, COUNT(*) AS calls, " +
			"COALESCE(SUM(input_tokens), 0) AS input_tokens, " +
			"COALESCE(SUM(output_tokens), 0) AS output_tokens, " +
			"CAST(COALESCE(AVG(latency_ms), 0) AS INTEGER) AS avg_latency_ms").
		Group("purpose").
		Order("purpose").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("usage by purpose: %w", err)
	}
	return out, nil
}

func (r *llmEventRepo) LLMUsageByModel(ctx context.Context) ([]ModelUsage, error) {
	var out []ModelUsage
	err := r.db.WithContext(ctx).Model(&llmEventRow{}).
		Select("model, COUNT(*) AS calls, " +
			"COALESCE(SUM(input_tokens), 0) AS input_tokens, " +
			"COALESCE(SUM(output_tokens), 0) AS output_tokens, " +
			"COALESCE(SUM(cost_usd), 0) AS cost_usd").
		Group("model").
		Order("model").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("usage by model: %w", err)
	}
	return out, nil
}
