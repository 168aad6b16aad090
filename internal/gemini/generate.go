package gemini

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"

	"drivemind/internal/models"
)

// Generate sends a prompt on top of prior turns and returns the full
// response text. No files are attached and no system instruction is set;
// callers embed their instructions in the prompt itself.
func (s *Service) Generate(ctx context.Context, history []models.ChatTurn, prompt string) (string, error) {
	model := s.textModel("")
	session := model.StartChat()
	session.History = chatHistory(history)

	resp, err := session.SendMessage(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate: %w", err)
	}
	return responseText(resp), nil
}

// GenerateStream is Generate with a streamed response. The channel closes
// after the last fragment; a fragment with Err set ends the stream early.
func (s *Service) GenerateStream(ctx context.Context, history []models.ChatTurn, prompt string) <-chan Fragment {
	model := s.textModel("")
	session := model.StartChat()
	session.History = chatHistory(history)

	out := make(chan Fragment)
	go func() {
		defer close(out)
		iter := session.SendMessageStream(ctx, genai.Text(prompt))
		for {
			resp, err := iter.Next()
			if err == iterator.Done {
				return
			}
			if err != nil {
				out <- Fragment{Err: fmt.Errorf("failed to stream: %w", err)}
				return
			}
			if text := responseText(resp); text != "" {
				out <- Fragment{Text: text}
			}
		}
	}()
	return out
}
