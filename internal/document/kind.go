package document

import "github.com/gabriel-vasile/mimetype"

// Kind is the closed set of document families the extractor understands.
// Dispatch happens on Kind, never on raw mime strings.
type Kind int

const (
	KindUnsupported Kind = iota
	KindPDF
	KindWord
	KindSpreadsheet
	KindPresentation
	KindCSV
	KindJSON
	KindHTML
	KindText
)

const (
	MimePDF          = "application/pdf"
	MimeGoogleDoc    = "application/vnd.google-apps.document"
	MimeGoogleSheet  = "application/vnd.google-apps.spreadsheet"
	MimeGoogleSlides = "application/vnd.google-apps.presentation"
	MimeDocx         = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeXlsx         = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MimePptx         = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
)

// plainTextMimes are decoded directly, with invalid bytes replaced.
var plainTextMimes = map[string]struct{}{
	"text/plain":               {},
	"text/markdown":            {},
	"application/rtf":          {},
	"text/rtf":                 {},
	"text/x-python":            {},
	"application/x-python-code": {},
	"text/javascript":          {},
	"application/javascript":   {},
	"text/x-java-source":       {},
	"text/x-c":                 {},
	"text/x-c++src":            {},
	"text/x-csharp":            {},
	"text/x-go":                {},
	"text/x-rust":              {},
	"text/x-typescript":        {},
	"application/xml":          {},
	"text/xml":                 {},
	"application/x-yaml":       {},
	"text/yaml":                {},
}

// KindForMime maps a declared mime type onto the extraction kind. Unknown
// types map to KindUnsupported, which extracts to empty text.
func KindForMime(mimeType string) Kind {
	switch mimeType {
	case MimePDF:
		return KindPDF
	case MimeGoogleDoc, MimeDocx, "application/msword":
		return KindWord
	case MimeGoogleSheet, MimeXlsx, "application/vnd.ms-excel":
		return KindSpreadsheet
	case MimeGoogleSlides, MimePptx, "application/vnd.ms-powerpoint":
		return KindPresentation
	case "text/csv":
		return KindCSV
	case "application/json":
		return KindJSON
	case "text/html":
		return KindHTML
	}
	if _, ok := plainTextMimes[mimeType]; ok {
		return KindText
	}
	return KindUnsupported
}

// DetectMime returns the declared mime type, falling back to content
// sniffing when the drive reported nothing usable.
func DetectMime(content []byte, declared string) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if len(content) == 0 {
		return declared
	}
	return mimetype.Detect(content).String()
}
