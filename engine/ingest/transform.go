package ingest

import (
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/WessleyAI/docrag/engine/domain"
	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

const (
	// DefaultWindowSize is the number of sentences per chunk.
	DefaultWindowSize = 3
	// DefaultOverlap is the number of sentences shared by consecutive chunks.
	DefaultOverlap = 1
)

// SentenceSplitter breaks text into sentences.
type SentenceSplitter interface {
	Split(text string) []string
}

// PunktSplitter uses the unsupervised Punkt tokenizer trained for English.
type PunktSplitter struct {
	once sync.Once
	tok  *sentences.DefaultSentenceTokenizer
	err  error
}

// NewPunktSplitter loads the English Punkt model.
func NewPunktSplitter() (*PunktSplitter, error) {
	p := &PunktSplitter{}
	p.load()
	if p.err != nil {
		return nil, fmt.Errorf("ingest: load punkt model: %w", p.err)
	}
	return p, nil
}

func (p *PunktSplitter) load() {
	p.once.Do(func() {
		p.tok, p.err = english.NewSentenceTokenizer(nil)
	})
}

func (p *PunktSplitter) Split(text string) []string {
	p.load()
	if p.err != nil {
		return RuleSplitter{}.Split(text)
	}
	var out []string
	for _, s := range p.tok.Tokenize(text) {
		if t := strings.TrimSpace(s.Text); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// RuleSplitter splits on terminal punctuation followed by whitespace, and on newlines.
type RuleSplitter struct{}

func (RuleSplitter) Split(text string) []string {
	var out []string
	var cur strings.Builder
	runes := []rune(text)

	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}
	for i, r := range runes {
		if r == '\n' {
			flush()
			continue
		}
		cur.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if i == len(runes)-1 || unicode.IsSpace(runes[i+1]) {
				flush()
			}
		}
	}
	flush()
	return out
}

// NewSplitter returns the splitter named by the chunker config ("punkt" or "rules").
func NewSplitter(name string) (SentenceSplitter, error) {
	switch name {
	case "", "punkt":
		return NewPunktSplitter()
	case "rules":
		return RuleSplitter{}, nil
	default:
		return nil, fmt.Errorf("ingest: unknown sentence splitter %q", name)
	}
}

// Chunker groups sentences into overlapping fixed-size windows.
type Chunker struct {
	window  int
	overlap int
	split   SentenceSplitter
}

// NewChunker validates window >= 1 and 0 <= overlap < window. A nil splitter
// means RuleSplitter.
func NewChunker(window, overlap int, split SentenceSplitter) (*Chunker, error) {
	if err := domain.ValidateWindow(window, overlap); err != nil {
		return nil, err
	}
	if split == nil {
		split = RuleSplitter{}
	}
	return &Chunker{window: window, overlap: overlap, split: split}, nil
}

// Sentences splits text with the configured splitter.
func (c *Chunker) Sentences(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return c.split.Split(text)
}

// Chunk splits text into sentence windows.
func (c *Chunker) Chunk(text string) []domain.Chunk {
	return c.ChunkSentences(c.Sentences(text))
}

// ChunkSentences groups already split sentences into windows.
func (c *Chunker) ChunkSentences(sents []string) []domain.Chunk {
	return windowChunks(sents, c.window, c.overlap)
}

// windowChunks emits sentences[i:i+window] for i = 0, step, 2*step, ... with
// step = window-overlap, stopping after the first window that reaches the end.
func windowChunks(sents []string, window, overlap int) []domain.Chunk {
	n := len(sents)
	if n == 0 {
		return nil
	}
	step := window - overlap

	var chunks []domain.Chunk
	for i := 0; ; i += step {
		end := min(i+window, n)
		chunks = append(chunks, domain.Chunk{
			Text:          strings.Join(sents[i:end], " "),
			StartSentence: i,
			EndSentence:   end,
			NumSentences:  end - i,
			ChunkID:       len(chunks),
		})
		if i+window >= n {
			return chunks
		}
	}
}
