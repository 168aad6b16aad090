package agent

import (
	"context"

	"drivemind/internal/gemini"
	"drivemind/internal/models"
)

// Event is one element of a streamed chat response. Text events carry
// answer fragments; the terminal event has Done set and carries the
// citations. An event with Err set ends the stream.
type Event struct {
	Text      string
	Done      bool
	Citations []models.Citation
	Err       error
}

// StreamChat answers a single message as a stream of events. The channel is
// closed after the terminal event.
func (a *Agent) StreamChat(ctx context.Context, req Request) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		if req.IndexMode == models.IndexModeNativeFiles {
			a.streamFiles(ctx, req, out)
		} else {
			a.streamRAG(ctx, req, out)
		}
	}()
	return out
}

func (a *Agent) streamFiles(ctx context.Context, req Request, out chan<- Event) {
	fragments, attached := a.files.StreamChatWithFiles(ctx, req.Message, req.UploadedFiles, req.History)

	answer := ""
	for f := range fragments {
		if f.Err != nil {
			out <- Event{Err: f.Err}
			return
		}
		answer += f.Text
		out <- Event{Text: f.Text}
	}
	out <- Event{Done: true, Citations: gemini.CitationsForFiles(answer, attached)}
}

// streamRAG runs the tool loop without streaming, then streams one final
// answer turn on top of the accumulated tool results.
func (a *Agent) streamRAG(ctx context.Context, req Request, out chan<- Event) {
	msgs := []models.ChatTurn{{Role: models.RoleUser, Content: ragSystemPrompt + "\n\nUser: " + req.Message}}
	msgs = append(msgs, req.History...)

	var citations []models.Citation
	for i := 0; i < maxToolIterations; i++ {
		text, err := a.model.Generate(ctx, msgs[:len(msgs)-1], msgs[len(msgs)-1].Content)
		if err != nil {
			out <- Event{Err: err}
			return
		}

		call := parseToolCall(text)
		if call == nil {
			break
		}

		result, resultCitations := a.executeTool(ctx, req.UserID, req.FolderID, call)
		citations = mergeCitations(citations, resultCitations)

		msgs = append(msgs,
			models.ChatTurn{Role: models.RoleAssistant, Content: text},
			models.ChatTurn{Role: models.RoleUser, Content: "Tool result: " + result},
		)
	}

	msgs = append(msgs, models.ChatTurn{Role: models.RoleUser, Content: finalAnswerPrompt})
	for f := range a.model.GenerateStream(ctx, msgs[:len(msgs)-1], msgs[len(msgs)-1].Content) {
		if f.Err != nil {
			out <- Event{Err: f.Err}
			return
		}
		out <- Event{Text: f.Text}
	}
	out <- Event{Done: true, Citations: citations}
}
