package document

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/unidoc/unioffice/v2/document"
	"github.com/xuri/excelize/v2"
)

// ConvertOfficeToText turns Office documents into plain-text equivalents so
// they can be attached to a model that only accepts a narrow set of mime
// types. It returns the converted content, the rewritten file name and the
// new mime type. When the input is not an Office document, or conversion
// fails, the original content, name and mime type are returned unchanged.
func ConvertOfficeToText(content []byte, mimeType, filename string) ([]byte, string, string) {
	var text string
	var err error

	switch mimeType {
	case MimeDocx:
		text, err = docxToText(content)
	case MimeXlsx:
		text, err = xlsxToText(content)
	case MimePptx:
		text, err = pptxToText(content)
	default:
		return content, filename, mimeType
	}
	if err != nil || strings.TrimSpace(text) == "" {
		return content, filename, mimeType
	}

	return []byte(text), textFileName(filename), "text/plain"
}

func docxToText(content []byte) (string, error) {
	doc, err := document.Read(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}
	defer doc.Close()

	var paras []string
	for _, para := range doc.Paragraphs() {
		var sb strings.Builder
		for _, run := range para.Runs() {
			sb.WriteString(run.Text())
		}
		if s := strings.TrimSpace(sb.String()); s != "" {
			paras = append(paras, s)
		}
	}
	return strings.Join(paras, "\n\n"), nil
}

func xlsxToText(content []byte) (string, error) {
	wb, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", err
	}
	defer wb.Close()

	var sb strings.Builder
	for _, sheet := range wb.GetSheetList() {
		sb.WriteString(fmt.Sprintf("=== Sheet: %s ===\n", sheet))
		rows, err := wb.GetRows(sheet)
		if err != nil {
			continue
		}
		for _, row := range rows {
			sb.WriteString(strings.Join(row, "\t"))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func pptxToText(content []byte) (string, error) {
	return slidesText(content, "=== Slide %d ===")
}

// textFileName rewrites a file name to carry a .txt extension, keeping the
// original base name.
func textFileName(filename string) string {
	if idx := strings.LastIndex(filename, "."); idx > 0 {
		return filename[:idx] + ".txt"
	}
	return filename + ".txt"
}
