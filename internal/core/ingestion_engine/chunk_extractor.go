package ingestion_engine

import (
	"fmt"
	"strings"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"

	"github.com/markdave123-py/embedding-forge/internal/models"
)

// Default chunking parameters.
//
// DefaultTargetTokens: approximate word tokens per chunk.
// DefaultOverlapRatio: share of the target retained as seed for the next
// chunk, so each boundary keeps local context for retrieval.
const (
	DefaultTargetTokens = 700
	DefaultOverlapRatio = 0.3
)

// Chunker splits text documents into overlapping token-bounded chunks.
// It is pure and deterministic: the same input and parameters always produce
// the same chunks, which is what keeps chunk ids stable across runs.
type Chunker struct {
	targetTokens int
	overlapRatio float64
	tokenizer    *sentences.DefaultSentenceTokenizer
}

type textChunk struct {
	text     string
	tokenCnt int
}

func NewChunker(targetTokens int, overlapRatio float64) (*Chunker, error) {
	if targetTokens <= 0 {
		targetTokens = DefaultTargetTokens
	}
	if overlapRatio < 0 || overlapRatio >= 1 {
		overlapRatio = DefaultOverlapRatio
	}

	tokenizer, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, fmt.Errorf("sentence tokenizer: %w", err)
	}

	return &Chunker{
		targetTokens: targetTokens,
		overlapRatio: overlapRatio,
		tokenizer:    tokenizer,
	}, nil
}

// ChunkDocuments splits each document into chunks and assigns indexes in
// emission order across the whole call. All documents of one source object
// are always chunked in a single call, so the indexes and the record ids
// derived from them are unique per object key.
func (c *Chunker) ChunkDocuments(docs []models.TextDocument) []models.ChunkDocument {
	var out []models.ChunkDocument
	idx := 0
	for _, doc := range docs {
		for _, ch := range c.chunkContent(doc.Content) {
			out = append(out, models.ChunkDocument{
				Content:    ch.text,
				Meta:       doc.Meta, // value copy; chunks never share metadata
				Index:      idx,
				TokenCount: ch.tokenCnt,
			})
			idx++
		}
	}
	return out
}

// chunkContent packs sentences greedily into word-token-bounded chunks.
//
// A sentence that would push the buffer past the target closes the current
// chunk first; the last overlap tokens of the closed buffer seed the next
// one. Sentences are never split, so a single sentence longer than the
// target can alone exceed the nominal budget.
func (c *Chunker) chunkContent(content string) []textChunk {
	normalized := strings.Join(strings.Fields(content), " ")
	if normalized == "" {
		return nil
	}

	var sents []string
	for _, s := range c.tokenizer.Tokenize(normalized) {
		if t := strings.TrimSpace(s.Text); t != "" {
			sents = append(sents, t)
		}
	}

	overlap := int(float64(c.targetTokens) * c.overlapRatio)

	var (
		chunks []textChunk
		buf    []string
	)
	for _, sent := range sents {
		toks := strings.Fields(sent)

		if len(buf)+len(toks) > c.targetTokens && len(buf) > 0 {
			chunks = append(chunks, textChunk{text: strings.Join(buf, " "), tokenCnt: len(buf)})

			if overlap < len(buf) {
				buf = append([]string(nil), buf[len(buf)-overlap:]...)
			}
			// else: fewer tokens than the overlap window, keep them all
		}

		buf = append(buf, toks...)
	}

	if len(buf) > 0 {
		chunks = append(chunks, textChunk{text: strings.Join(buf, " "), tokenCnt: len(buf)})
	}

	return chunks
}
