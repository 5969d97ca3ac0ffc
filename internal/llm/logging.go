package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/deepreview/socratic/internal/logger"
	"github.com/deepreview/socratic/internal/metrics"
	"github.com/deepreview/socratic/internal/store"
)

// LoggingProvider is a decorator that records every LLM request as an
// event row, a structured log line, and Prometheus samples.
type LoggingProvider struct {
	inner    Provider
	provider string
	events   store.LLMEventRepo
	log      *logger.Logger
}

// WithLogging wraps a Provider with event logging. events may be nil.
func WithLogging(p Provider, providerName string, events store.LLMEventRepo, log *logger.Logger) *LoggingProvider {
	if log == nil {
		log = logger.Nop()
	}
	return &LoggingProvider{
		inner:    p,
		provider: providerName,
		events:   events,
		log:      log.With("component", "llm", "provider", providerName),
	}
}

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	purpose := PurposeFrom(ctx)

	resp, err := l.inner.Generate(ctx, req)

	latency := time.Since(start)
	outcome := outcomeOf(err)
	metrics.LLMRequests.WithLabelValues(purpose, outcome).Inc()
	metrics.LLMLatency.WithLabelValues(purpose).Observe(latency.Seconds())

	data := store.LLMRequestEventData{
		Provider:    l.provider,
		Model:       l.inner.ModelID(),
		Purpose:     purpose,
		SessionID:   SessionIDFrom(ctx),
		LatencyMs:   latency.Milliseconds(),
		Success:     err == nil,
		RequestBody: serializeRequest(req),
	}
	if resp != nil {
		data.InputTokens = resp.Usage.InputTokens
		data.OutputTokens = resp.Usage.OutputTokens
		if resp.Model != "" {
			data.Model = resp.Model
		}
		data.ResponseBody = resp.Text
		if cost := LookupCost(data.Model); cost != nil {
			data.CostUSD = cost.Cost(data.InputTokens, data.OutputTokens)
		}
		metrics.LLMTokens.WithLabelValues(purpose, "input").Add(float64(data.InputTokens))
		metrics.LLMTokens.WithLabelValues(purpose, "output").Add(float64(data.OutputTokens))
	}
	if err != nil {
		data.ErrorMessage = err.Error()
		l.log.Warn("LLM request failed",
			"purpose", purpose, "outcome", outcome, "latency_ms", data.LatencyMs, "error", err)
	} else {
		l.log.Debug("LLM request",
			"purpose", purpose, "model", data.Model, "latency_ms", data.LatencyMs,
			"input_tokens", data.InputTokens, "output_tokens", data.OutputTokens)
	}

	// Event storage failures never fail the request.
	if l.events != nil {
		if logErr := l.events.AppendLLMRequest(ctx, data); logErr != nil {
			l.log.Warn("failed to record LLM request event", "error", logErr)
		}
	}

	return resp, err
}

func (l *LoggingProvider) ModelID() string {
	return l.inner.ModelID()
}

func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	if _, ok := AsRateLimit(err); ok {
		return "rate_limited"
	}
	if IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "error"
}

// serializeRequest builds a readable representation of the LLM request.
func serializeRequest(req Request) string {
	var b strings.Builder

	if req.System != "" {
		b.WriteString("[system]\n")
		b.WriteString(req.System)
		b.WriteString("\n\n")
	}

	for _, m := range req.Messages {
		fmt.Fprintf(&b, "[%s]\n", m.Role)
		b.WriteString(m.Content)
		b.WriteString("\n\n")
	}

	if req.Schema != nil {
		if def, err := json.Marshal(req.Schema.Definition); err == nil {
			fmt.Fprintf(&b, "[schema: %s]\n", req.Schema.Name)
			b.Write(def)
			b.WriteString("\n")
		}
	}

	return b.String()
}
