package embedder

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/soundprediction/ontoreason/pkg/utils"
)

// Client embeds free text into the model's vector space.
type Client interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedSingle(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

var _ Client = (*Model)(nil)

const (
	maxExp      = 6.0
	minLRFactor = 1e-4
)

// Model is a fitted skip-gram model. It is immutable after Fit and safe for
// concurrent reads.
type Model struct {
	dim     int
	symbols []string
	index   map[string]int
	folded  map[string]int
	vectors [][]float32
}

// Fit trains a skip-gram model with negative sampling on corpus. The final
// vector of each symbol is the sum of its input and output vectors.
func Fit(corpus Corpus, cfg Config, logger *slog.Logger) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	symbols, counts := buildVocab(corpus, cfg.MinCount)
	m := &Model{
		dim:     cfg.Dimension,
		symbols: symbols,
		index:   make(map[string]int, len(symbols)),
		folded:  make(map[string]int, len(symbols)),
	}
	for i, s := range symbols {
		m.index[s] = i
		lower := strings.ToLower(s)
		if _, ok := m.folded[lower]; !ok {
			m.folded[lower] = i
		}
	}
	if len(symbols) == 0 {
		return m, nil
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed+1))
	in := make([][]float32, len(symbols))
	out := make([][]float32, len(symbols))
	for i := range symbols {
		in[i] = make([]float32, cfg.Dimension)
		out[i] = make([]float32, cfg.Dimension)
		for d := range in[i] {
			in[i][d] = float32((rng.Float64() - 0.5) / float64(cfg.Dimension))
		}
	}

	sentences := encode(corpus, m.index)
	sampler := newNegativeSampler(counts)
	total := float64(cfg.Epochs) * float64(corpus.Tokens())
	processed := 0.0
	grad := make([]float32, cfg.Dimension)

	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		for _, sentence := range sentences {
			for pos, center := range sentence {
				lr := cfg.LearningRate * math.Max(minLRFactor, 1-processed/total)
				processed++

				span := 1 + rng.IntN(cfg.Window)
				for off := -span; off <= span; off++ {
					ctxPos := pos + off
					if off == 0 || ctxPos < 0 || ctxPos >= len(sentence) {
						continue
					}
					ctxID := sentence[ctxPos]
					clear(grad)
					update(in[ctxID], out[center], grad, 1, lr)
					for k := 0; k < cfg.Negative; k++ {
						neg := sampler.sample(rng)
						if neg == center {
							continue
						}
						update(in[ctxID], out[neg], grad, 0, lr)
					}
					for d := range grad {
						in[ctxID][d] += grad[d]
					}
				}
			}
		}
	}

	m.vectors = make([][]float32, len(symbols))
	for i := range symbols {
		v := make([]float32, cfg.Dimension)
		for d := range v {
			v[d] = in[i][d] + out[i][d]
		}
		m.vectors[i] = v
	}

	logger.Info("Embedding model fitted",
		"symbols", len(symbols),
		"sentences", len(corpus),
		"epochs", cfg.Epochs,
		"duration", time.Since(start))
	return m, nil
}

// update applies one logistic step between a context input vector and a
// target output vector, accumulating the input gradient into grad.
func update(input, output, grad []float32, label float64, lr float64) {
	var dot float64
	for d := range input {
		dot += float64(input[d]) * float64(output[d])
	}
	var f float64
	switch {
	case dot > maxExp:
		f = 1
	case dot < -maxExp:
		f = 0
	default:
		f = 1 / (1 + math.Exp(-dot))
	}
	g := float32((label - f) * lr)
	for d := range input {
		grad[d] += g * output[d]
		output[d] += g * input[d]
	}
}

func buildVocab(corpus Corpus, minCount int) ([]string, []int) {
	seen := make(map[string]int)
	var order []string
	for _, sentence := range corpus {
		for _, s := range sentence {
			if _, ok := seen[s]; !ok {
				order = append(order, s)
			}
			seen[s]++
		}
	}
	symbols := make([]string, 0, len(order))
	counts := make([]int, 0, len(order))
	for _, s := range order {
		if seen[s] >= minCount {
			symbols = append(symbols, s)
			counts = append(counts, seen[s])
		}
	}
	return symbols, counts
}

func encode(corpus Corpus, index map[string]int) [][]int {
	encoded := make([][]int, 0, len(corpus))
	for _, sentence := range corpus {
		ids := make([]int, 0, len(sentence))
		for _, s := range sentence {
			if i, ok := index[s]; ok {
				ids = append(ids, i)
			}
		}
		if len(ids) > 0 {
			encoded = append(encoded, ids)
		}
	}
	return encoded
}

// negativeSampler draws symbols proportionally to count^0.75.
type negativeSampler struct {
	cumulative []float64
}

func newNegativeSampler(counts []int) *negativeSampler {
	cumulative := make([]float64, len(counts))
	sum := 0.0
	for i, c := range counts {
		sum += math.Pow(float64(c), 0.75)
		cumulative[i] = sum
	}
	return &negativeSampler{cumulative: cumulative}
}

func (s *negativeSampler) sample(rng *rand.Rand) int {
	r := rng.Float64() * s.cumulative[len(s.cumulative)-1]
	i := sort.SearchFloat64s(s.cumulative, r)
	if i >= len(s.cumulative) {
		i = len(s.cumulative) - 1
	}
	return i
}

// Dimensions returns the vector length.
func (m *Model) Dimensions() int {
	return m.dim
}

// Symbols returns the vocabulary in first-seen order.
func (m *Model) Symbols() []string {
	return append([]string(nil), m.symbols...)
}

// Has reports whether symbol is in the vocabulary.
func (m *Model) Has(symbol string) bool {
	_, ok := m.index[symbol]
	return ok
}

// Vector returns a copy of the vector of an exact symbol.
func (m *Model) Vector(symbol string) ([]float32, error) {
	i, ok := m.index[symbol]
	if !ok {
		return nil, &UnknownSymbolError{Symbol: symbol}
	}
	return append([]float32(nil), m.vectors[i]...), nil
}

// Vectors returns the vectors of every symbol that is in the vocabulary.
func (m *Model) Vectors(symbols []string) map[string][]float32 {
	vectors := make(map[string][]float32, len(symbols))
	for _, s := range symbols {
		if i, ok := m.index[s]; ok {
			vectors[s] = append([]float32(nil), m.vectors[i]...)
		}
	}
	return vectors
}

// EmbedText maps free text to a vector. An exact symbol wins, then a
// case-insensitive symbol, then the mean of the tokens that name symbols
// case-insensitively.
func (m *Model) EmbedText(text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if i, ok := m.index[text]; ok {
		return append([]float32(nil), m.vectors[i]...), nil
	}
	if i, ok := m.folded[strings.ToLower(text)]; ok {
		return append([]float32(nil), m.vectors[i]...), nil
	}

	var matched [][]float32
	for _, tok := range Tokenize(text) {
		if i, ok := m.folded[strings.ToLower(tok)]; ok {
			matched = append(matched, m.vectors[i])
		}
	}
	if len(matched) == 0 {
		return nil, &UnknownSymbolError{Symbol: text}
	}
	return utils.MeanVector(matched...), nil
}

// Embed implements Client. It fails on the first text that cannot be
// embedded.
func (m *Model) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for _, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := m.EmbedText(t)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text: %w", err)
		}
		vectors = append(vectors, v)
	}
	return vectors, nil
}

// EmbedSingle implements Client.
func (m *Model) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := m.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Tokenize splits text on non-alphanumeric runes and camelCase boundaries.
// "hasOnboardingStep" yields [has Onboarding Step].
func Tokenize(text string) []string {
	var tokens []string
	var current []rune
	flush := func() {
		if len(current) > 0 {
			tokens = append(tokens, string(current))
			current = current[:0]
		}
	}

	runes := []rune(text)
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if unicode.IsUpper(r) && len(current) > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush()
			}
		}
		current = append(current, r)
	}
	flush()
	return tokens
}
