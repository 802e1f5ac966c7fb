package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-estimator/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-estimator/pkg/models"
	"github.com/ekaya-inc/ekaya-estimator/pkg/prompts"
)

// ChatService answers chat turns, running an estimate first when the turn
// carries names.
type ChatService interface {
	// Chat handles one turn. Only invalid requests return an error; estimate
	// and model failures degrade into warnings and fallback replies.
	Chat(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error)
}

type chatService struct {
	estimates EstimateService
	reports   ReportService
	logger    *zap.Logger
}

// NewChatService creates a ChatService.
func NewChatService(estimates EstimateService, reports ReportService, logger *zap.Logger) ChatService {
	return &chatService{
		estimates: estimates,
		reports:   reports,
		logger:    logger.Named("chat"),
	}
}

var _ ChatService = (*chatService)(nil)

// ValidateChatRequest checks the message, mode and history roles.
// An empty mode is treated as auto.
func ValidateChatRequest(req *models.ChatRequest) error {
	if strings.TrimSpace(req.Message) == "" {
		return fmt.Errorf("%w: message must not be empty", apperrors.ErrInvalidInput)
	}
	if req.Mode == "" {
		req.Mode = models.ChatModeAuto
	}
	if !models.IsValidChatMode(req.Mode) {
		return fmt.Errorf("%w: unknown mode %q", apperrors.ErrInvalidInput, req.Mode)
	}
	for i, msg := range req.History {
		if !models.IsValidChatRole(msg.Role) {
			return fmt.Errorf("%w: history[%d] has unknown role %q", apperrors.ErrInvalidInput, i, msg.Role)
		}
		if msg.Content == "" {
			return fmt.Errorf("%w: history[%d] has empty content", apperrors.ErrInvalidInput, i)
		}
	}
	return nil
}

func (s *chatService) Chat(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	if err := ValidateChatRequest(&req); err != nil {
		return nil, err
	}

	s.logger.Info("Chat turn",
		zap.String("mode", req.Mode),
		zap.Int("names", len(req.Names)),
		zap.Int("history", len(req.History)))

	if req.Mode == models.ChatModeEstimate && len(req.Names) == 0 {
		data := models.NewEstimateResponse(nil)
		data.AddWarning(WarningNamesRequired)
		return &models.ChatResponse{Reply: ReplyNamesRequired, Data: data}, nil
	}

	if req.Mode == models.ChatModeEstimate || (req.Mode == models.ChatModeAuto && len(req.Names) > 0) {
		return s.estimateTurn(ctx, req), nil
	}
	return s.chatOnlyTurn(ctx, req), nil
}

func (s *chatService) estimateTurn(ctx context.Context, req models.ChatRequest) *models.ChatResponse {
	outcome, err := s.estimates.Estimate(ctx, req.Names, req.Filters)
	if err != nil {
		s.logger.Warn("Estimate failed during chat, replying without data", zap.Error(err))
		data := models.NewEstimateResponse(nil)
		data.AddWarning(WarningEstimateFailed)
		return &models.ChatResponse{Reply: ReplyEstimateFailed, Data: data}
	}

	data := models.NewEstimateResponse(outcome)
	if !req.UseLLM {
		return &models.ChatResponse{Reply: prompts.BuildSummary(outcome), Data: data}
	}

	reply, err := s.reports.ChatReply(ctx, req.Message, outcome)
	return &models.ChatResponse{Reply: s.fallbackReply(reply, err), Data: data}
}

func (s *chatService) chatOnlyTurn(ctx context.Context, req models.ChatRequest) *models.ChatResponse {
	data := models.NewEstimateResponse(nil)
	data.AddWarning(WarningNoSearch)
	if !req.UseLLM {
		return &models.ChatResponse{Reply: ReplyNeedNames, Data: data}
	}

	reply, err := s.reports.ChatOnlyReply(ctx, req.Message, req.History)
	return &models.ChatResponse{Reply: s.fallbackReply(reply, err), Data: data}
}

// fallbackReply substitutes a canned reply when generation did not succeed.
func (s *chatService) fallbackReply(reply string, err error) string {
	switch {
	case err == nil:
		return reply
	case errors.Is(err, ErrLLMDisabled):
		return ReplyLLMDisabled
	default:
		return ReplyLLMFailed
	}
}
