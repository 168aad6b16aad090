// Package agent routes chat requests between the native-file path and the
// tool-driven retrieval path, depending on how a folder was indexed.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"drivemind/internal/gemini"
	"drivemind/internal/models"
	"drivemind/internal/vectorstore"
	"drivemind/pkg/logger"
)

const (
	maxToolIterations = 5

	defaultSearchResults = 10
	maxSearchResults     = 20
	fileContentResults   = 50
)

// ChatModel generates text over a conversation. Prompts carry their own
// instructions.
type ChatModel interface {
	Generate(ctx context.Context, history []models.ChatTurn, prompt string) (string, error)
	GenerateStream(ctx context.Context, history []models.ChatTurn, prompt string) <-chan gemini.Fragment
}

// FileChat answers questions against natively uploaded files.
type FileChat interface {
	ChatWithFiles(ctx context.Context, message string, files []models.UploadedFile, history []models.ChatTurn) (string, []models.Citation, error)
	StreamChatWithFiles(ctx context.Context, message string, files []models.UploadedFile, history []models.ChatTurn) (<-chan gemini.Fragment, []models.UploadedFile)
}

// Request is one chat turn against an indexed folder.
type Request struct {
	UserID        string
	FolderID      string
	Message       string
	History       []models.ChatTurn
	IndexMode     models.IndexMode
	UploadedFiles []models.UploadedFile
}

// Response is the completed answer with its source citations.
type Response struct {
	Content   string
	Citations []models.Citation
}

// Agent answers questions about an indexed folder.
type Agent struct {
	model ChatModel
	files FileChat
	store vectorstore.Store
	log   *logger.Logger
}

func New(model ChatModel, files FileChat, store vectorstore.Store) *Agent {
	return &Agent{
		model: model,
		files: files,
		store: store,
		log:   logger.New("agent"),
	}
}

// Chat answers a single message. Folders indexed with native files go
// straight to the file chat; everything else runs the retrieval loop.
func (a *Agent) Chat(ctx context.Context, req Request) (Response, error) {
	if req.IndexMode == models.IndexModeNativeFiles {
		content, citations, err := a.files.ChatWithFiles(ctx, req.Message, req.UploadedFiles, req.History)
		if err != nil {
			return Response{}, err
		}
		return Response{Content: content, Citations: citations}, nil
	}
	return a.chatRAG(ctx, req)
}

// chatRAG runs the tool loop: the model emits JSON tool calls, the agent
// executes them against the vector store and feeds results back, until the
// model produces a plain answer or the iteration budget runs out.
func (a *Agent) chatRAG(ctx context.Context, req Request) (Response, error) {
	msgs := []models.ChatTurn{{Role: models.RoleUser, Content: ragSystemPrompt + "\n\nUser: " + req.Message}}
	msgs = append(msgs, req.History...)

	var citations []models.Citation
	for i := 0; i < maxToolIterations; i++ {
		text, err := a.model.Generate(ctx, msgs[:len(msgs)-1], msgs[len(msgs)-1].Content)
		if err != nil {
			return Response{}, err
		}

		call := parseToolCall(text)
		if call == nil {
			return Response{Content: text, Citations: citations}, nil
		}

		result, resultCitations := a.executeTool(ctx, req.UserID, req.FolderID, call)
		citations = mergeCitations(citations, resultCitations)

		msgs = append(msgs,
			models.ChatTurn{Role: models.RoleAssistant, Content: text},
			models.ChatTurn{Role: models.RoleUser, Content: "Tool result: " + result},
		)
	}

	return Response{Content: apologyAnswer, Citations: citations}, nil
}

// toolCall is the JSON shape the model emits to invoke a tool.
type toolCall struct {
	Tool     string `json:"tool"`
	Query    string `json:"query"`
	NResults int    `json:"n_results"`
	FileName string `json:"file_name"`
}

var toolCallPattern = regexp.MustCompile(`\{[^{}]+\}`)

// parseToolCall finds the first flat JSON object in the text and treats it
// as a tool call when it carries a "tool" key.
func parseToolCall(text string) *toolCall {
	match := toolCallPattern.FindString(text)
	if match == "" {
		return nil
	}

	var probe map[string]any
	if err := json.Unmarshal([]byte(match), &probe); err != nil {
		return nil
	}
	if _, ok := probe["tool"]; !ok {
		return nil
	}

	var call toolCall
	if err := json.Unmarshal([]byte(match), &call); err != nil {
		return nil
	}
	return &call
}

// executeTool runs one tool call and returns its JSON-encoded result plus
// any citations the results justify.
func (a *Agent) executeTool(ctx context.Context, userID, folderID string, call *toolCall) (string, []models.Citation) {
	switch call.Tool {
	case "list_files":
		return a.toolListFiles(ctx, userID, folderID), nil
	case "search_documents":
		return a.toolSearchDocuments(ctx, userID, folderID, call)
	case "get_file_content":
		return a.toolGetFileContent(ctx, userID, folderID, call.FileName), nil
	}
	return encodeToolResult(map[string]string{"error": fmt.Sprintf("Unknown tool: %s", call.Tool)}), nil
}

func (a *Agent) toolListFiles(ctx context.Context, userID, folderID string) string {
	manifest, err := a.store.GetFileManifest(ctx, userID, folderID)
	if err != nil {
		a.log.WithFolder(folderID).WithErr(err).Warn("list_files tool failed")
		return encodeToolResult(map[string]string{"error": err.Error()})
	}

	type fileEntry struct {
		Name string `json:"name"`
		Path string `json:"path"`
		Type string `json:"type"`
	}
	entries := make([]fileEntry, len(manifest))
	for i, f := range manifest {
		entries[i] = fileEntry{Name: f.Name, Path: f.Path, Type: f.MimeType}
	}
	return encodeToolResult(map[string]any{"files": entries, "total": len(entries)})
}

type searchResult struct {
	Content    string `json:"content"`
	FileName   string `json:"file_name"`
	FileID     string `json:"file_id"`
	FilePath   string `json:"file_path"`
	MimeType   string `json:"mime_type"`
	ChunkIndex int    `json:"chunk_index"`
	PageNumber int    `json:"page_number,omitempty"`
}

func (a *Agent) toolSearchDocuments(ctx context.Context, userID, folderID string, call *toolCall) (string, []models.Citation) {
	topK := call.NResults
	if topK <= 0 {
		topK = defaultSearchResults
	}
	if topK > maxSearchResults {
		topK = maxSearchResults
	}

	hits, err := a.store.Search(ctx, userID, folderID, call.Query, topK, call.FileName)
	if err != nil {
		a.log.WithFolder(folderID).WithErr(err).Warn("search_documents tool failed")
		return encodeToolResult(map[string]string{"error": err.Error()}), nil
	}

	results := make([]searchResult, len(hits))
	citations := make([]models.Citation, len(hits))
	for i, h := range hits {
		results[i] = searchResult{
			Content:    h.Content,
			FileName:   h.Metadata.FileName,
			FileID:     h.Metadata.FileID,
			FilePath:   h.Metadata.FilePath,
			MimeType:   h.Metadata.MimeType,
			ChunkIndex: h.Metadata.ChunkIndex,
			PageNumber: h.Metadata.PageNumber,
		}
		citations[i] = models.Citation{
			FileName:   h.Metadata.FileName,
			FileID:     h.Metadata.FileID,
			MimeType:   h.Metadata.MimeType,
			ChunkIndex: h.Metadata.ChunkIndex,
			PageNumber: h.Metadata.PageNumber,
		}
	}
	return encodeToolResult(map[string]any{"results": results, "total_found": len(results)}), citations
}

func (a *Agent) toolGetFileContent(ctx context.Context, userID, folderID, fileName string) string {
	hits, err := a.store.Search(ctx, userID, folderID, "content from "+fileName, fileContentResults, fileName)
	if err != nil {
		a.log.WithFolder(folderID).WithErr(err).Warn("get_file_content tool failed")
		return encodeToolResult(map[string]string{"error": err.Error()})
	}

	type chunkEntry struct {
		Content    string `json:"content"`
		ChunkIndex int    `json:"chunk_index"`
		PageNumber int    `json:"page_number,omitempty"`
	}
	chunks := make([]chunkEntry, len(hits))
	for i, h := range hits {
		chunks[i] = chunkEntry{Content: h.Content, ChunkIndex: h.Metadata.ChunkIndex, PageNumber: h.Metadata.PageNumber}
	}
	return encodeToolResult(map[string]any{
		"file_name":    fileName,
		"chunks":       chunks,
		"total_chunks": len(chunks),
	})
}

func encodeToolResult(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(data)
}

// mergeCitations appends new citations, keeping only the first citation per
// file name.
func mergeCitations(existing, incoming []models.Citation) []models.Citation {
	seen := make(map[string]struct{}, len(existing))
	for _, c := range existing {
		seen[c.FileName] = struct{}{}
	}
	for _, c := range incoming {
		if _, ok := seen[c.FileName]; ok {
			continue
		}
		seen[c.FileName] = struct{}{}
		existing = append(existing, c)
	}
	return existing
}
