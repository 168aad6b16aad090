package document

const (
	// DefaultChunkSize is the target window size for chunking, in bytes of
	// extracted text.
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is the number of trailing bytes each chunk shares
	// with the next one.
	DefaultChunkOverlap = 200
)

// Chunk splits text into overlapping fixed-size windows. Text no longer than
// size is returned as a single chunk. Otherwise the window advances by
// size-overlap positions until the text is exhausted; the final chunk may be
// shorter than size. An overlap outside [0, size) is ignored so the window
// always advances.
func Chunk(text string, size, overlap int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	if len(text) <= size {
		return []string{text}
	}

	step := size - overlap
	chunks := make([]string, 0, (len(text)-overlap+step-1)/step)
	for start := 0; start < len(text); start += step {
		end := start + size
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, text[start:end])
		if end == len(text) {
			break
		}
	}
	return chunks
}
