package drive

// SupportedMimeTypes maps every mime type the indexer accepts onto a short
// extension label. Files outside this set are skipped during listing.
var SupportedMimeTypes = map[string]string{
	"application/pdf":                       "pdf",
	"application/vnd.google-apps.document":  "gdoc",
	"application/vnd.google-apps.spreadsheet":   "gsheet",
	"application/vnd.google-apps.presentation":  "gslides",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   "docx",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         "xlsx",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": "pptx",
	"application/msword":            "doc",
	"application/vnd.ms-excel":      "xls",
	"application/vnd.ms-powerpoint": "ppt",
	"text/plain":                "txt",
	"text/markdown":             "md",
	"text/csv":                  "csv",
	"text/html":                 "html",
	"application/json":          "json",
	"application/rtf":           "rtf",
	"text/rtf":                  "rtf",
	"text/x-python":             "py",
	"application/x-python-code": "py",
	"text/javascript":           "js",
	"application/javascript":    "js",
	"text/x-java-source":        "java",
	"text/x-c":                  "c",
	"text/x-c++src":             "cpp",
	"text/x-csharp":             "cs",
	"text/x-go":                 "go",
	"text/x-rust":               "rs",
	"text/x-typescript":         "ts",
	"application/xml":           "xml",
	"text/xml":                  "xml",
	"application/x-yaml":        "yaml",
	"text/yaml":                 "yaml",
	"image/png":       "png",
	"image/jpeg":      "jpg",
	"image/jpg":       "jpg",
	"image/gif":       "gif",
	"image/webp":      "webp",
	"image/heic":      "heic",
	"image/heif":      "heif",
	"video/mp4":       "mp4",
	"video/quicktime": "mov",
	"audio/mpeg":      "mp3",
	"audio/wav":       "wav",
}

// ExportMimeTypes maps Google Workspace native types onto the Office formats
// they are exported as when downloaded.
var ExportMimeTypes = map[string]string{
	"application/vnd.google-apps.document":     "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.google-apps.spreadsheet":  "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/vnd.google-apps.presentation": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
}

// MimeFolder is the drive mime type for folders.
const MimeFolder = "application/vnd.google-apps.folder"
