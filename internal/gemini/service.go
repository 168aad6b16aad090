// Package gemini wraps the Gemini API: file uploads for native document
// chat, and chat model construction for both chat paths.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"drivemind/internal/config"
	"drivemind/pkg/logger"
)

const fileChatSystemInstruction = `You are a helpful assistant that answers questions about documents.

CRITICAL RULES:
1. Base your answers ONLY on the provided documents
2. ALWAYS cite your sources using the format [Source: filename]
3. If information is not in the documents, say "I couldn't find this in the provided documents"
4. Be concise but thorough
5. When quoting from documents, use quotation marks

When listing files, format them nicely and mention their types.`

// Fragment is one piece of a streamed model response. A Fragment with a
// non-nil Err terminates the stream.
type Fragment struct {
	Text string
	Err  error
}

// Service owns the Gemini client.
type Service struct {
	client    *genai.Client
	modelName string
	log       *logger.Logger
}

func New(ctx context.Context, cfg *config.GoogleConfig) (*Service, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Service{
		client:    client,
		modelName: cfg.ChatModel,
		log:       logger.New("gemini"),
	}, nil
}

// Client exposes the underlying genai client for the embedding layer.
func (s *Service) Client() *genai.Client {
	return s.client
}

func (s *Service) Close() error {
	return s.client.Close()
}

// fileChatModel builds the model used for native-file conversations.
func (s *Service) fileChatModel() *genai.GenerativeModel {
	model := s.client.GenerativeModel(s.modelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(fileChatSystemInstruction)},
	}
	model.SafetySettings = blockNothing()
	return model
}

// textModel builds a model with a caller-supplied system instruction and no
// attached files. The agent uses it for retrieval-augmented turns.
func (s *Service) textModel(systemInstruction string) *genai.GenerativeModel {
	model := s.client.GenerativeModel(s.modelName)
	if systemInstruction != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(systemInstruction)},
		}
	}
	model.SafetySettings = blockNothing()
	return model
}

func blockNothing() []*genai.SafetySetting {
	categories := []genai.HarmCategory{
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryDangerousContent,
	}
	settings := make([]*genai.SafetySetting, len(categories))
	for i, c := range categories {
		settings[i] = &genai.SafetySetting{Category: c, Threshold: genai.HarmBlockNone}
	}
	return settings
}

// fileNameFromURI extracts the API file name from a stored file URI, e.g.
// "https://generativelanguage.googleapis.com/v1beta/files/abc123" -> "files/abc123".
func fileNameFromURI(uri string) string {
	idx := strings.LastIndex(uri, "/")
	if idx < 0 {
		return uri
	}
	return "files/" + uri[idx+1:]
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String()
}
