package core

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const defaultModelName = "gemini-1.5-flash"

// ResponseIterator yields streamed chunks until it returns iterator.Done.
type ResponseIterator interface {
	Next() (*genai.GenerateContentResponse, error)
}

// ContentStreamer opens a streaming generation session for a single user message.
type ContentStreamer interface {
	GenerateContentStream(ctx context.Context, parts ...genai.Part) ResponseIterator
}

// LLMService is the Gemini-backed ContentStreamer.
type LLMService struct {
	client    *genai.Client
	modelName string
	logger    *zap.SugaredLogger
}

func NewLLMService(ctx context.Context, apiKey, modelName string, logger *zap.SugaredLogger) (*LLMService, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	if modelName == "" {
		modelName = defaultModelName
	}
	return &LLMService{
		client:    client,
		modelName: modelName,
		logger:    logger,
	}, nil
}

func (s *LLMService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.logger.Errorf("Error closing GenAI client: %v", err)
		} else {
			s.logger.Debug("GenAI client closed.")
		}
	}
}

// GenerateContentStream sends parts as one user-role message and streams the reply.
func (s *LLMService) GenerateContentStream(ctx context.Context, parts ...genai.Part) ResponseIterator {
	model := s.client.GenerativeModel(s.modelName)
	return model.GenerateContentStream(ctx, parts...)
}
