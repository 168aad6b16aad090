package models

// FileDescriptor identifies a single drive file inside a linked folder.
// Path is the slash-joined chain of ancestor folder names within the folder.
type FileDescriptor struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

// UploadedFile is a FileDescriptor that has been through a native-file store
// upload attempt. URI is the opaque upload handle; it is empty when the
// upload failed.
type UploadedFile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	MimeType string `json:"mime_type"`
	URI      string `json:"uri"`
}

// Uploaded reports whether the upload attempt produced a usable handle.
func (u UploadedFile) Uploaded() bool {
	return u.URI != ""
}

// Citation is a structured reference to a source file backing part of an
// answer. ChunkIndex and PageNumber are meaningful on the vector-store path
// only; PageNumber is zero for unpaged sources.
type Citation struct {
	FileName   string `json:"file_name"`
	FileID     string `json:"file_id"`
	MimeType   string `json:"mime_type"`
	ChunkIndex int    `json:"chunk_index"`
	PageNumber int    `json:"page_number,omitempty"`
}

// Chat turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatTurn is one prior turn of a conversation, fed back to the model as
// context.
type ChatTurn struct {
	Role    string `json:"role"` // RoleUser or RoleAssistant
	Content string `json:"content"`
}
