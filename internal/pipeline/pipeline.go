// Package pipeline orchestrates ingestion and question answering:
// workbook -> corpus -> (BM25 stats, vector index) on initialize;
// query -> fusion ranker -> answerability gate -> prompt -> generator on
// each request.
package pipeline

import (
	"context"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/claracenn/finlite/internal/config"
	"github.com/claracenn/finlite/internal/corpus"
	"github.com/claracenn/finlite/internal/embed"
	finerr "github.com/claracenn/finlite/internal/errors"
	"github.com/claracenn/finlite/internal/gen"
	"github.com/claracenn/finlite/internal/history"
	"github.com/claracenn/finlite/internal/prompt"
	"github.com/claracenn/finlite/internal/search"
	"github.com/claracenn/finlite/internal/store"
)

// workerPoolSize bounds concurrent CPU-bound and blocking core operations so
// request ingress stays responsive.
const workerPoolSize = 2

// snapshot is the per-ingestion immutable state: the corpus and its BM25
// statistics always travel together, so readers never observe stats from a
// different corpus.
type snapshot struct {
	corpus *corpus.Corpus
	bm25   *store.BM25
}

// Pipeline owns the process-wide singletons: the current corpus snapshot,
// the in-memory index handle, and the generator.
type Pipeline struct {
	cfg       *config.Config
	reader    corpus.WorkbookReader
	embedder  embed.Embedder // nil when no encoder is available
	generator gen.Generator
	histLog   *history.Log
	builder   *prompt.Builder

	pool *semaphore.Weighted

	// genMu serializes generator calls; the model is not reentrant.
	genMu sync.Mutex

	current atomic.Pointer[snapshot]
	index   atomic.Pointer[store.FlatIndex]
}

// QueryRequest is one question against the current corpus.
type QueryRequest struct {
	Prompt string

	// Detailed selects the long-form prompt template.
	Detailed bool

	// K overrides the configured top-k when positive.
	K int

	// SessionID groups interactions in the history log.
	SessionID string

	// ExtraSnippets are client-supplied evidence rows placed at the top of
	// the evidence block.
	ExtraSnippets []string
}

// QueryResult is the outcome of one query.
type QueryResult struct {
	// Snippets is the evidence used, empty on refusal.
	Snippets []string

	// Answer is the generated (or refusal) text.
	Answer string

	// Refused reports that the answerability gate declined to answer.
	Refused bool
}

// Status describes the current pipeline state.
type Status struct {
	ChunksLoaded int
	HasIndex     bool
	SampleChunks []string
}

// New creates a pipeline. The embedder may be nil; retrieval then runs on
// lexical signals only.
func New(cfg *config.Config, reader corpus.WorkbookReader, embedder embed.Embedder, generator gen.Generator, histLog *history.Log) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		reader:    reader,
		embedder:  embedder,
		generator: generator,
		histLog:   histLog,
		builder:   prompt.NewBuilder(cfg.Generation.DetailedWordLimit),
		pool:      semaphore.NewWeighted(workerPoolSize),
	}
}

// Initialize ingests the workbook at path: builds the corpus and BM25
// statistics, rebuilds the persistent vector index, and publishes the new
// state atomically. Returns the snippet count.
func (p *Pipeline) Initialize(ctx context.Context, path string) (int, error) {
	if path == "" {
		return 0, finerr.InvalidInput("workbook path is required", nil)
	}
	if _, err := os.Stat(path); err != nil {
		return 0, finerr.InvalidInput("workbook not found: "+path, err)
	}

	var sheets []corpus.Sheet
	err := p.withWorker(ctx, func() error {
		var readErr error
		sheets, readErr = p.reader.Read(path)
		return readErr
	})
	if err != nil {
		return 0, finerr.Upstream("workbook reader failed", err)
	}

	crp := corpus.Linearize(sheets)
	if crp.Len() == 0 {
		return 0, finerr.EmptyCorpus()
	}

	bm25 := store.NewBM25(crp.Texts())

	if p.embedder != nil {
		var embs [][]float32
		err = p.withWorker(ctx, func() error {
			var embErr error
			embs, embErr = p.embedder.EmbedBatch(ctx, crp.Texts())
			return embErr
		})
		if err != nil {
			return 0, finerr.Upstream("snippet embedding failed", err)
		}

		idx, err := store.NewFlatIndex(embs, p.embedder.Dimensions())
		if err != nil {
			return 0, finerr.New(finerr.ErrCodeEmbeddingFailed, "index construction failed", err)
		}

		indexPath := p.cfg.ResolveIndexPath()
		err = p.withWorker(ctx, func() error {
			return idx.Save(indexPath)
		})
		if err != nil {
			return 0, finerr.Upstream("index write failed", err)
		}

		// Publish the fresh index so the next query does not reload from
		// disk.
		p.index.Store(idx)
	} else {
		p.index.Store(nil)
	}

	p.current.Store(&snapshot{corpus: crp, bm25: bm25})

	slog.Info("corpus_initialized",
		slog.String("workbook", path),
		slog.Int("snippets", crp.Len()))

	return crp.Len(), nil
}

// Query answers a question over the current corpus, or refuses when the
// evidence is insufficient.
func (p *Pipeline) Query(ctx context.Context, req QueryRequest) (QueryResult, error) {
	snap := p.current.Load()
	if snap == nil {
		return QueryResult{}, finerr.NotInitialized()
	}

	k := req.K
	if k <= 0 {
		k = p.cfg.Retrieval.K
	}

	retriever := &search.Retriever{
		Corpus:   snap.corpus,
		BM25:     snap.bm25,
		Index:    p.loadIndex(),
		Embedder: p.embedder,
		Opts: search.Options{
			K:               k,
			BM25TopMult:     p.cfg.Retrieval.BM25TopMult,
			WeightBM25:      p.cfg.Retrieval.WeightBM25,
			WeightEmbed:     p.cfg.Retrieval.WeightEmbed,
			AnswerThreshold: p.cfg.Retrieval.AnswerabilityThreshold,
		},
	}

	var result search.Result
	err := p.withWorker(ctx, func() error {
		var retErr error
		result, retErr = retriever.Retrieve(ctx, req.Prompt)
		return retErr
	})
	if err != nil {
		return QueryResult{}, finerr.Upstream("retrieval failed", err)
	}

	if result.Refused {
		return p.refuse(req), nil
	}

	gate := &search.Gate{
		AnswerThreshold:  p.cfg.Retrieval.AnswerabilityThreshold,
		OverlapThreshold: p.cfg.Retrieval.EvidenceOverlapThreshold,
	}
	if !gate.PassesCoverage(req.Prompt, result.Texts) {
		return p.refuse(req), nil
	}

	evidence := dedupPreserveOrder(req.ExtraSnippets, result.Texts)
	fullPrompt := p.builder.Build(evidence, req.Prompt, req.Detailed)

	raw, err := p.generate(ctx, fullPrompt, req.Detailed)
	if err != nil {
		return QueryResult{}, finerr.Upstream("generation failed", err)
	}
	answer := trimToFirstAnswer(raw)

	p.logInteraction(ctx, history.NewRecord(
		extractOriginalPrompt(req.Prompt), evidence, answer, req.SessionID, "chat"))

	return QueryResult{Snippets: evidence, Answer: answer}, nil
}

// Generate runs the generator directly, outside retrieval. Used by the
// formula helper. Calls are serialized with query-path generation.
func (p *Pipeline) Generate(ctx context.Context, promptText string, detailed bool) (string, error) {
	raw, err := p.generate(ctx, promptText, detailed)
	if err != nil {
		return "", finerr.Upstream("generation failed", err)
	}
	return raw, nil
}

// LogInteraction appends to the interaction log, swallowing failures.
func (p *Pipeline) LogInteraction(ctx context.Context, rec history.Record) {
	p.logInteraction(ctx, rec)
}

// Status reports the current corpus and index state.
func (p *Pipeline) Status() Status {
	st := Status{SampleChunks: []string{}}

	snap := p.current.Load()
	if snap != nil {
		st.ChunksLoaded = snap.corpus.Len()
		for i := 0; i < 3 && i < snap.corpus.Len(); i++ {
			st.SampleChunks = append(st.SampleChunks, snap.corpus.Text(i))
		}
	}

	if p.index.Load() != nil {
		st.HasIndex = true
	} else if _, err := os.Stat(p.cfg.ResolveIndexPath()); err == nil {
		st.HasIndex = true
	}

	return st
}

// Close drains the worker pool and releases the encoder and generator.
func (p *Pipeline) Close() error {
	// Acquiring every permit waits for in-flight work to finish.
	_ = p.pool.Acquire(context.Background(), workerPoolSize)

	if p.embedder != nil {
		_ = p.embedder.Close()
	}
	if p.generator != nil {
		_ = p.generator.Close()
	}
	return nil
}

// loadIndex returns the in-memory index handle, loading it lazily from disk
// on first use. A missing index file is not cached, so a later initialize
// (or an external rebuild) is picked up on the next query.
func (p *Pipeline) loadIndex() *store.FlatIndex {
	if idx := p.index.Load(); idx != nil {
		return idx
	}
	idx := store.LoadFlatIndex(p.cfg.ResolveIndexPath())
	if idx != nil {
		p.index.Store(idx)
	}
	return idx
}

// generate runs one generator call on the worker pool under the generator
// mutex.
func (p *Pipeline) generate(ctx context.Context, promptText string, detailed bool) (string, error) {
	params := p.cfg.Generation.Params
	if detailed {
		params = p.cfg.Generation.ParamsDetailed
	}

	var out string
	err := p.withWorker(ctx, func() error {
		p.genMu.Lock()
		defer p.genMu.Unlock()

		var genErr error
		out, genErr = p.generator.Generate(ctx, promptText, gen.Params{
			MaxTokens:   params.MaxTokens,
			Stop:        params.Stop,
			Temperature: params.Temperature,
		})
		return genErr
	})
	return out, err
}

// logInteraction appends to the history log on the worker pool. Failures
// never fail the request.
func (p *Pipeline) logInteraction(ctx context.Context, rec history.Record) {
	if p.histLog == nil {
		return
	}
	err := p.withWorker(ctx, func() error {
		return p.histLog.Append(rec)
	})
	if err != nil {
		slog.Warn("history_append_failed", slog.String("error", err.Error()))
	}
}

// withWorker runs fn on the bounded worker pool.
func (p *Pipeline) withWorker(ctx context.Context, fn func() error) error {
	if err := p.pool.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.pool.Release(1)
	return fn()
}

// refuse builds the canonical refusal result. Refusals are not logged to
// history; only generated answers are.
func (p *Pipeline) refuse(_ QueryRequest) QueryResult {
	return QueryResult{
		Snippets: []string{},
		Answer:   search.RefusalMessage,
		Refused:  true,
	}
}

// answerSplitRegex finds the first echoed question or range marker in the
// generated text; everything after it is discarded.
var answerSplitRegex = regexp.MustCompile(`\n?(?:Question:|Selected range)`)

// trimToFirstAnswer keeps the text before the first echoed marker, trimmed.
func trimToFirstAnswer(text string) string {
	if loc := answerSplitRegex.FindStringIndex(text); loc != nil {
		text = text[:loc[0]]
	}
	return strings.TrimSpace(text)
}

// promptDirectiveRegex strips client-added answer-style directives so the
// history log stores what the user actually asked.
var promptDirectiveRegex = regexp.MustCompile(`(?i)^\s*please\s+answer\s+(?:concisely|detailedly)\s*:\s*`)

func extractOriginalPrompt(p string) string {
	return strings.TrimSpace(promptDirectiveRegex.ReplaceAllString(p, ""))
}

// dedupPreserveOrder concatenates the lists, keeping first occurrences.
func dedupPreserveOrder(lists ...[]string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, list := range lists {
		for _, s := range list {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
