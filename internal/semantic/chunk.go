package semantic

import (
	"strings"
	"unicode/utf8"
)

// Chunk splits text into sentence-aligned pieces of roughly size runes. The
// effective size grows for long texts so that at most maxChunks pieces are
// produced.
func Chunk(text string, size, maxChunks int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = defaultChunkSize
	}
	if maxChunks > 0 {
		total := utf8.RuneCountInString(text)
		if perChunk := (total + maxChunks - 1) / maxChunks; perChunk > size {
			size = perChunk
		}
	}

	var (
		chunks  []string
		current []string
		length  int
	)
	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, strings.Join(current, ". ")+".")
		}
	}

	for _, sentence := range strings.Split(text, ".") {
		sentence = strings.Join(strings.Fields(sentence), " ")
		if sentence == "" {
			continue
		}
		n := utf8.RuneCountInString(sentence)
		if length+n > size && len(current) > 0 {
			flush()
			current, length = nil, 0
		}
		current = append(current, sentence)
		length += n
	}
	flush()

	if len(chunks) == 0 {
		return []string{text}
	}
	if maxChunks > 0 && len(chunks) > maxChunks {
		chunks = chunks[:maxChunks]
	}
	return chunks
}
