package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"

	"drivemind/internal/models"
)

// ChatWithFiles answers a question against the folder's natively uploaded
// files. Citations are the attached files whose names appear in the answer.
func (s *Service) ChatWithFiles(ctx context.Context, message string, files []models.UploadedFile, history []models.ChatTurn) (string, []models.Citation, error) {
	model := s.fileChatModel()
	parts, attached := s.fileParts(ctx, files)
	parts = append(parts, genai.Text(fmt.Sprintf("Please analyze the document(s) above and answer: %s", message)))

	session := model.StartChat()
	session.History = chatHistory(history)

	resp, err := session.SendMessage(ctx, parts...)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	answer := responseText(resp)
	return answer, CitationsForFiles(answer, attached), nil
}

// StreamChatWithFiles is ChatWithFiles with a streamed answer. The returned
// channel is closed after the last fragment; a fragment with Err set ends
// the stream early. Attached is the set of files the model actually saw,
// for citation extraction once the full answer is assembled.
func (s *Service) StreamChatWithFiles(ctx context.Context, message string, files []models.UploadedFile, history []models.ChatTurn) (<-chan Fragment, []models.UploadedFile) {
	model := s.fileChatModel()
	parts, attached := s.fileParts(ctx, files)
	parts = append(parts, genai.Text(fmt.Sprintf("Please analyze the document(s) above and answer: %s", message)))

	session := model.StartChat()
	session.History = chatHistory(history)

	out := make(chan Fragment)
	go func() {
		defer close(out)
		iter := session.SendMessageStream(ctx, parts...)
		for {
			resp, err := iter.Next()
			if err == iterator.Done {
				return
			}
			if err != nil {
				out <- Fragment{Err: fmt.Errorf("failed to stream answer: %w", err)}
				return
			}
			if text := responseText(resp); text != "" {
				out <- Fragment{Text: text}
			}
		}
	}()
	return out, attached
}

// fileParts resolves stored upload URIs back into attachable file
// references. Files that are gone (uploads expire server-side) are skipped.
func (s *Service) fileParts(ctx context.Context, files []models.UploadedFile) ([]genai.Part, []models.UploadedFile) {
	var parts []genai.Part
	var attached []models.UploadedFile
	for _, f := range files {
		if !f.Uploaded() {
			continue
		}
		file, err := s.client.GetFile(ctx, fileNameFromURI(f.URI))
		if err != nil {
			s.log.WithErr(err).Warn(fmt.Sprintf("failed to resolve uploaded file %s", f.Name))
			continue
		}
		parts = append(parts, genai.FileData{MIMEType: file.MIMEType, URI: file.URI})
		attached = append(attached, f)
	}
	return parts, attached
}

func chatHistory(history []models.ChatTurn) []*genai.Content {
	var contents []*genai.Content
	for _, turn := range history {
		role := "model"
		if turn.Role == models.RoleUser {
			role = "user"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(turn.Content)},
		})
	}
	return contents
}

// CitationsForFiles returns a citation for every file whose name occurs in
// the answer, matched case-insensitively.
func CitationsForFiles(answer string, files []models.UploadedFile) []models.Citation {
	lowered := strings.ToLower(answer)
	var citations []models.Citation
	for _, f := range files {
		if f.Name == "" || !strings.Contains(lowered, strings.ToLower(f.Name)) {
			continue
		}
		citations = append(citations, models.Citation{
			FileName: f.Name,
			FileID:   f.ID,
			MimeType: f.MimeType,
		})
	}
	return citations
}
