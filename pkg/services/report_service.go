package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-estimator/pkg/llm"
	"github.com/ekaya-inc/ekaya-estimator/pkg/models"
	"github.com/ekaya-inc/ekaya-estimator/pkg/prompts"
)

// ErrLLMDisabled is returned by ReportService when no model is configured.
var ErrLLMDisabled = errors.New("llm disabled by configuration")

// ReportService turns estimate outcomes into text using the language model.
// Outcomes are only read.
type ReportService interface {
	// Enabled reports whether a model is configured.
	Enabled() bool

	// GenerateReport writes a report for the outcome.
	GenerateReport(ctx context.Context, outcome *models.EstimateOutcome) (string, error)

	// ChatReply answers message using the outcome.
	ChatReply(ctx context.Context, message string, outcome *models.EstimateOutcome) (string, error)

	// ChatOnlyReply answers message without estimate data.
	ChatOnlyReply(ctx context.Context, message string, history []models.ChatMessage) (string, error)
}

type reportService struct {
	client      llm.LLMClient
	temperature float64
	logger      *zap.Logger
}

// NewReportService creates a ReportService. A nil client disables generation.
func NewReportService(client llm.LLMClient, temperature float64, logger *zap.Logger) ReportService {
	return &reportService{
		client:      client,
		temperature: temperature,
		logger:      logger.Named("report"),
	}
}

var _ ReportService = (*reportService)(nil)

func (s *reportService) Enabled() bool {
	return s.client != nil
}

func (s *reportService) GenerateReport(ctx context.Context, outcome *models.EstimateOutcome) (string, error) {
	prompt, err := prompts.BuildReportPrompt(outcome)
	if err != nil {
		return "", err
	}
	return s.generate(ctx, "report", prompts.ReportSystemPrompt, prompt)
}

func (s *reportService) ChatReply(ctx context.Context, message string, outcome *models.EstimateOutcome) (string, error) {
	return s.generate(ctx, "chat", prompts.ChatSystemPrompt, prompts.BuildChatPrompt(message, outcome))
}

func (s *reportService) ChatOnlyReply(ctx context.Context, message string, history []models.ChatMessage) (string, error) {
	return s.generate(ctx, "chat_only", prompts.ChatSystemPrompt, prompts.BuildChatOnlyPrompt(message, history))
}

func (s *reportService) generate(ctx context.Context, kind, system, prompt string) (string, error) {
	if !s.Enabled() {
		return "", ErrLLMDisabled
	}

	result, err := s.client.Complete(ctx, llm.Request{
		System:      system,
		Messages:    []llm.Message{{Role: models.ChatRoleUser, Content: prompt}},
		Temperature: s.temperature,
	})
	if err != nil {
		s.logger.Warn("Text generation failed",
			zap.String("kind", kind),
			zap.String("error_type", string(llm.GetErrorType(err))),
			zap.Error(err))
		return "", fmt.Errorf("generate %s: %w", kind, err)
	}

	s.logger.Debug("Text generated",
		zap.String("kind", kind),
		zap.Int("completion_tokens", result.CompletionTokens))
	return result.Content, nil
}

// WithReport wraps outcome for the API and, when requested, attaches a
// generated report. Generation problems become warnings; the estimate itself
// is never discarded.
func WithReport(ctx context.Context, reports ReportService, outcome *models.EstimateOutcome, formatReport bool) *models.EstimateResponse {
	resp := models.NewEstimateResponse(outcome)
	if !formatReport {
		return resp
	}
	if !reports.Enabled() {
		resp.AddWarning(WarningLLMDisabled)
		return resp
	}

	report, err := reports.GenerateReport(ctx, outcome)
	if err != nil {
		resp.AddWarning(WarningLLMFailed)
		return resp
	}
	resp.Report = &report
	return resp
}
