package document

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/ledongthuc/pdf"
	"github.com/unidoc/unioffice/v2/document"
	"github.com/unidoc/unioffice/v2/presentation"
	"github.com/unidoc/unioffice/v2/schema/soo/dml"
	"github.com/xuri/excelize/v2"
)

// Page is the extracted text of one page of a paged document. Number is
// 1-based.
type Page struct {
	Number int
	Text   string
}

// Extract converts the raw bytes of a document into plain text according to
// its kind. Unsupported kinds yield empty text and no error; the caller
// treats empty text as non-indexable. Decoding of text formats never fails on
// invalid bytes.
func Extract(content []byte, kind Kind) (string, error) {
	switch kind {
	case KindPDF:
		pages, err := PDFPages(content)
		if err != nil {
			return "", err
		}
		var sb strings.Builder
		for _, p := range pages {
			sb.WriteString(p.Text)
		}
		return sb.String(), nil
	case KindWord:
		text, err := WordText(content)
		if err != nil {
			// Legacy .doc files frequently fail the OOXML parser; fall back
			// to a tolerant raw decode rather than dropping the file.
			return decodeText(content), nil
		}
		return text, nil
	case KindSpreadsheet:
		return sheetText(content)
	case KindPresentation:
		return slidesText(content, "[Slide %d]")
	case KindCSV:
		return csvText(content), nil
	case KindJSON:
		return jsonText(content), nil
	case KindHTML:
		md, err := htmltomarkdown.ConvertString(decodeText(content))
		if err != nil {
			return decodeText(content), nil
		}
		return md, nil
	case KindText:
		return decodeText(content), nil
	}
	return "", nil
}

// PDFPages extracts per-page text from a PDF. Pages that yield no text are
// dropped.
func PDFPages(content []byte) ([]Page, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}

	var pages []Page
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	return pages, nil
}

// WordText extracts the paragraph text of a word-processing document, one
// paragraph per line.
func WordText(content []byte) (string, error) {
	doc, err := document.Read(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("failed to open word document: %w", err)
	}
	defer doc.Close()

	var sb strings.Builder
	for _, para := range doc.Paragraphs() {
		for _, run := range para.Runs() {
			sb.WriteString(run.Text())
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// sheetText renders every sheet row-wise with space-joined cell values.
// Empty rows are dropped.
func sheetText(content []byte) (string, error) {
	wb, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer wb.Close()

	var sb strings.Builder
	for _, sheet := range wb.GetSheetList() {
		rows, err := wb.GetRows(sheet)
		if err != nil {
			continue
		}
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, " "))
			if line == "" {
				continue
			}
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

// slidesText concatenates the shape text of every slide, labeled with the
// 1-based slide number formatted through labelFormat. Slides without text
// are dropped.
func slidesText(content []byte, labelFormat string) (string, error) {
	ppt, err := presentation.Read(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("failed to open presentation: %w", err)
	}
	defer ppt.Close()

	var parts []string
	for i, slide := range ppt.Slides() {
		var texts []string
		for _, ph := range slide.PlaceHolders() {
			for _, para := range ph.Paragraphs() {
				if s := strings.TrimSpace(paragraphText(para.X().EG_TextRun)); s != "" {
					texts = append(texts, s)
				}
			}
		}
		if len(texts) > 0 {
			parts = append(parts, fmt.Sprintf(labelFormat, i+1)+"\n"+strings.Join(texts, "\n"))
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

// paragraphText joins the literal text runs of a drawing paragraph. Line
// breaks and text fields carry no literal text and are skipped.
func paragraphText(runs []*dml.EG_TextRun) string {
	var sb strings.Builder
	for _, run := range runs {
		if run.TextRunChoice != nil && run.TextRunChoice.R != nil {
			sb.WriteString(run.TextRunChoice.R.T)
		}
	}
	return sb.String()
}

// csvText renders each record as a " | "-joined line. Ragged rows are
// tolerated.
func csvText(content []byte) string {
	reader := csv.NewReader(strings.NewReader(decodeText(content)))
	reader.FieldsPerRecord = -1

	var lines []string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		lines = append(lines, strings.Join(record, " | "))
	}
	return strings.Join(lines, "\n")
}

// jsonText pretty-prints JSON content, falling back to the raw decoded text
// when parsing fails.
func jsonText(content []byte) string {
	raw := decodeText(content)
	var data interface{}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return raw
	}
	pretty, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return raw
	}
	return string(pretty)
}

// decodeText converts bytes to a string, replacing invalid UTF-8 sequences
// instead of failing.
func decodeText(content []byte) string {
	return strings.ToValidUTF8(string(content), "�")
}
