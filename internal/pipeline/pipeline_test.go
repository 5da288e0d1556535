package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/claracenn/finlite/internal/config"
	"github.com/claracenn/finlite/internal/corpus"
	"github.com/claracenn/finlite/internal/embed"
	finerr "github.com/claracenn/finlite/internal/errors"
	"github.com/claracenn/finlite/internal/gen"
	"github.com/claracenn/finlite/internal/history"
	"github.com/claracenn/finlite/internal/search"
)

// stubGenerator returns a canned response and records prompts.
type stubGenerator struct {
	response string
	prompts  []string
}

func (g *stubGenerator) Generate(_ context.Context, prompt string, _ gen.Params) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return g.response, nil
}

func (g *stubGenerator) Available(_ context.Context) bool { return true }
func (g *stubGenerator) Close() error                     { return nil }

func writeWorkbook(t *testing.T, name string, sheets map[string][][]any) string {
	t.Helper()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	first := true
	for sheetName, rows := range sheets {
		if first {
			require.NoError(t, f.SetSheetName("Sheet1", sheetName))
			first = false
		} else {
			_, err := f.NewSheet(sheetName)
			require.NoError(t, err)
		}
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			r := row
			require.NoError(t, f.SetSheetRow(sheetName, cell, &r))
		}
	}

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, f.SaveAs(path))
	return path
}

func salesWorkbook(t *testing.T) string {
	return writeWorkbook(t, "sales.xlsx", map[string][][]any{
		"Sales": {
			{"Product", "Revenue"},
			{"A", 100},
			{"B", 200},
		},
	})
}

func newTestPipeline(t *testing.T, response string) (*Pipeline, *stubGenerator, *history.Log) {
	t.Helper()

	dir := t.TempDir()
	cfg := config.NewConfig()
	cfg.Index.Path = filepath.Join(dir, "test.index")
	cfg.History.LogJSONL = filepath.Join(dir, "history.jsonl")

	stub := &stubGenerator{response: response}
	histLog := history.NewLog(cfg.ResolveHistoryPath())

	pipe := New(cfg, corpus.NewExcelReader(), embed.NewStaticEmbedder(), stub, histLog)
	return pipe, stub, histLog
}

func TestInitialize_CountsSnippets(t *testing.T) {
	pipe, _, _ := newTestPipeline(t, "ok")
	defer func() { _ = pipe.Close() }()

	count, err := pipe.Initialize(context.Background(), salesWorkbook(t))
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	st := pipe.Status()
	assert.Equal(t, 2, st.ChunksLoaded)
	assert.True(t, st.HasIndex)
	require.NotEmpty(t, st.SampleChunks)
	assert.Equal(t, "[Sales] Product: A; Revenue: 100", st.SampleChunks[0])
}

func TestInitialize_MissingPath(t *testing.T) {
	pipe, _, _ := newTestPipeline(t, "ok")
	defer func() { _ = pipe.Close() }()

	_, err := pipe.Initialize(context.Background(), filepath.Join(t.TempDir(), "absent.xlsx"))
	require.Error(t, err)
	assert.Equal(t, finerr.ErrCodeInvalidInput, finerr.GetCode(err))

	_, err = pipe.Initialize(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, finerr.ErrCodeInvalidInput, finerr.GetCode(err))
}

func TestInitialize_EmptyWorkbook(t *testing.T) {
	pipe, _, _ := newTestPipeline(t, "ok")
	defer func() { _ = pipe.Close() }()

	path := writeWorkbook(t, "empty.xlsx", map[string][][]any{
		"Sheet": {{"OnlyHeader"}},
	})

	_, err := pipe.Initialize(context.Background(), path)
	require.Error(t, err)
	assert.Equal(t, finerr.ErrCodeEmptyCorpus, finerr.GetCode(err))
}

func TestQuery_BeforeInitialize(t *testing.T) {
	pipe, _, _ := newTestPipeline(t, "ok")
	defer func() { _ = pipe.Close() }()

	_, err := pipe.Query(context.Background(), QueryRequest{Prompt: "anything"})
	require.Error(t, err)
	assert.Equal(t, finerr.ErrCodeNotInitialized, finerr.GetCode(err))
}

func TestQuery_Lookup(t *testing.T) {
	pipe, stub, _ := newTestPipeline(t, "The revenue of A is 100.")
	defer func() { _ = pipe.Close() }()

	_, err := pipe.Initialize(context.Background(), salesWorkbook(t))
	require.NoError(t, err)

	result, err := pipe.Query(context.Background(), QueryRequest{
		Prompt:    "what is the revenue of A",
		SessionID: "s1",
	})
	require.NoError(t, err)
	require.False(t, result.Refused)

	assert.Equal(t, "The revenue of A is 100.", result.Answer)
	assert.Contains(t, result.Snippets, "[Sales] Product: A; Revenue: 100")
	require.Len(t, stub.prompts, 1)
	assert.Contains(t, stub.prompts[0], "Question: what is the revenue of A")
}

func TestQuery_RefusesGibberish(t *testing.T) {
	pipe, stub, _ := newTestPipeline(t, "should never be called")
	defer func() { _ = pipe.Close() }()

	_, err := pipe.Initialize(context.Background(), salesWorkbook(t))
	require.NoError(t, err)

	result, err := pipe.Query(context.Background(), QueryRequest{Prompt: "asdf qwerty"})
	require.NoError(t, err)

	assert.True(t, result.Refused)
	assert.Equal(t, search.RefusalMessage, result.Answer)
	assert.Empty(t, result.Snippets)
	assert.Empty(t, stub.prompts)
}

func TestQuery_DetailedComparePrompt(t *testing.T) {
	pipe, stub, _ := newTestPipeline(t, "Apple wins.")
	defer func() { _ = pipe.Close() }()

	path := writeWorkbook(t, "tech.xlsx", map[string][][]any{
		"Tech": {
			{"Company", "Revenue"},
			{"Apple", 383},
			{"Microsoft", 211},
		},
	})
	_, err := pipe.Initialize(context.Background(), path)
	require.NoError(t, err)

	result, err := pipe.Query(context.Background(), QueryRequest{
		Prompt:   "compare Apple vs Microsoft",
		Detailed: true,
	})
	require.NoError(t, err)
	require.False(t, result.Refused)

	require.Len(t, stub.prompts, 1)
	assert.Contains(t, stub.prompts[0], "key metrics")
	assert.Contains(t, stub.prompts[0], "winner/better option")
}

func TestQuery_TrimsEchoedQuestion(t *testing.T) {
	pipe, _, _ := newTestPipeline(t, "The answer is 100.\nQuestion: what else?\nAnswer: more")
	defer func() { _ = pipe.Close() }()

	_, err := pipe.Initialize(context.Background(), salesWorkbook(t))
	require.NoError(t, err)

	result, err := pipe.Query(context.Background(), QueryRequest{Prompt: "what is the revenue of A"})
	require.NoError(t, err)
	assert.Equal(t, "The answer is 100.", result.Answer)
}

func TestQuery_ExtraSnippetsLeadEvidence(t *testing.T) {
	pipe, _, _ := newTestPipeline(t, "ok")
	defer func() { _ = pipe.Close() }()

	_, err := pipe.Initialize(context.Background(), salesWorkbook(t))
	require.NoError(t, err)

	extra := "[Note] Revenue figures are in millions"
	result, err := pipe.Query(context.Background(), QueryRequest{
		Prompt:        "what is the revenue of A",
		ExtraSnippets: []string{extra, extra},
	})
	require.NoError(t, err)
	require.False(t, result.Refused)

	// Extra snippets lead, deduplicated.
	assert.Equal(t, extra, result.Snippets[0])
	assert.Equal(t, 1, countOf(result.Snippets, extra))
}

func TestReinitialize_ReplacesCorpusWholesale(t *testing.T) {
	pipe, _, _ := newTestPipeline(t, "ok")
	defer func() { _ = pipe.Close() }()

	_, err := pipe.Initialize(context.Background(), salesWorkbook(t))
	require.NoError(t, err)
	assert.Equal(t, 2, pipe.Status().ChunksLoaded)

	second := writeWorkbook(t, "costs.xlsx", map[string][][]any{
		"Costs": {
			{"Item", "Amount"},
			{"Rent", 50},
			{"Power", 20},
			{"Water", 10},
		},
	})
	_, err = pipe.Initialize(context.Background(), second)
	require.NoError(t, err)

	st := pipe.Status()
	assert.Equal(t, 3, st.ChunksLoaded)
	for _, chunk := range st.SampleChunks {
		assert.NotContains(t, chunk, "Sales")
	}
}

func TestQuery_LogsWithDedup(t *testing.T) {
	pipe, _, histLog := newTestPipeline(t, "The revenue of A is 100.")
	defer func() { _ = pipe.Close() }()

	_, err := pipe.Initialize(context.Background(), salesWorkbook(t))
	require.NoError(t, err)

	req := QueryRequest{Prompt: "what is the revenue of A", SessionID: "s1"}
	_, err = pipe.Query(context.Background(), req)
	require.NoError(t, err)
	_, err = pipe.Query(context.Background(), req)
	require.NoError(t, err)

	records, err := histLog.Read()
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, "chat", records[0].Mode)
	assert.Equal(t, "s1", records[0].SessionID)
}

func TestStatus_BeforeInitialize(t *testing.T) {
	pipe, _, _ := newTestPipeline(t, "ok")
	defer func() { _ = pipe.Close() }()

	st := pipe.Status()
	assert.Equal(t, 0, st.ChunksLoaded)
	assert.False(t, st.HasIndex)
	assert.Empty(t, st.SampleChunks)
}

func TestTrimToFirstAnswer(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"plain answer", "plain answer"},
		{"answer\nQuestion: echoed", "answer"},
		{"answer\nSelected range A1:B2", "answer"},
		{"answer Question: inline", "answer"},
		{"  padded  ", "padded"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, trimToFirstAnswer(tt.input))
	}
}

func TestExtractOriginalPrompt(t *testing.T) {
	assert.Equal(t, "what is A", extractOriginalPrompt("Please answer concisely: what is A"))
	assert.Equal(t, "what is A", extractOriginalPrompt("please answer detailedly:  what is A"))
	assert.Equal(t, "what is A", extractOriginalPrompt("what is A"))
}

func TestDedupPreserveOrder(t *testing.T) {
	out := dedupPreserveOrder([]string{"a", "b"}, []string{"b", "c", "a"})
	assert.Equal(t, []string{"a", "b", "c"}, out)

	assert.Empty(t, dedupPreserveOrder(nil, nil))
}

func countOf(list []string, want string) int {
	n := 0
	for _, s := range list {
		if s == want {
			n++
		}
	}
	return n
}
