package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/hseol/chapter-translator/internal/chapter"
	"github.com/hseol/chapter-translator/internal/config"
	"github.com/hseol/chapter-translator/internal/glossary"
	"github.com/hseol/chapter-translator/internal/jobs"
	"github.com/hseol/chapter-translator/internal/persistence"
	"github.com/hseol/chapter-translator/internal/pricing"
	"github.com/hseol/chapter-translator/internal/session"
	"github.com/hseol/chapter-translator/internal/token"
	"github.com/hseol/chapter-translator/internal/translate"
)

type memChapters struct {
	mu       sync.Mutex
	chapters map[string]*chapter.Chapter
}

func newMemChapters() *memChapters {
	return &memChapters{chapters: make(map[string]*chapter.Chapter)}
}

func (m *memChapters) GetChapter(_ context.Context, id string) (*chapter.Chapter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.chapters[id]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	tmp := *ch
	return &tmp, nil
}

func (m *memChapters) ListChapters(_ context.Context, novelID string) ([]*chapter.Chapter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ret := make([]*chapter.Chapter, 0)
	for _, ch := range m.chapters {
		if ch.NovelID == novelID {
			tmp := *ch
			ret = append(ret, &tmp)
		}
	}
	return ret, nil
}

func (m *memChapters) UpsertChapter(_ context.Context, ch *chapter.Chapter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tmp := *ch
	m.chapters[ch.ID] = &tmp
	return nil
}

func (m *memChapters) SaveTranslation(_ context.Context, id, translated, translatedTitle, model string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.chapters[id]
	if !ok {
		return persistence.ErrNotFound
	}
	ch.Text.Translated = translated
	if translatedTitle != "" {
		ch.Text.TranslatedTitle = translatedTitle
	}
	if model != "" {
		ch.TranslationModel = model
	}
	return nil
}

func (m *memChapters) SetTranslationStatus(_ context.Context, id string, status chapter.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.chapters[id]
	if !ok {
		return persistence.ErrNotFound
	}
	ch.Status = status
	return nil
}

func (m *memChapters) setStatus(id string, status chapter.Status) {
	_ = m.SetTranslationStatus(context.Background(), id, status)
}

type memGlossary struct {
	mu       sync.Mutex
	mappings map[string]glossary.Mapping
}

func newMemGlossary() *memGlossary {
	return &memGlossary{mappings: make(map[string]glossary.Mapping)}
}

func (m *memGlossary) GetGlossary(_ context.Context, novelID string) (glossary.Mapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mapping, ok := m.mappings[novelID]
	if !ok {
		return glossary.Mapping{}, nil
	}
	return mapping, nil
}

func (m *memGlossary) ReplaceGlossary(_ context.Context, novelID string, entries glossary.Mapping) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mappings[novelID] = entries
	return nil
}

type staticPrices struct {
	table pricing.Table
}

func (p *staticPrices) Get(_ context.Context) (pricing.Table, error) { return p.table, nil }

func (p *staticPrices) Refresh(_ context.Context) error { return nil }

func (p *staticPrices) SetOverrides(_ context.Context, o pricing.Table) error {
	p.table = p.table.Merge(o)
	return nil
}

func (p *staticPrices) Overrides() pricing.Table { return pricing.Table{} }

type testEnv struct {
	server   *Server
	chapters *memChapters
	queue    *jobs.Queue
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()

	chapters := newMemChapters()
	glossaries := newMemGlossary()
	queue := jobs.NewQueue(1, nil)
	t.Cleanup(queue.Stop)

	prices := &staticPrices{table: pricing.Table{
		"test/model": {InputPerThousand: 0.01, OutputPerThousand: 0.03},
	}}

	sess := session.New(session.Deps{
		Estimator: token.NewEstimator(),
		Prices:    prices,
		Submitter: session.QueueSubmitter{Queue: queue},
		Statuses:  session.ChapterStoreAdapter{Store: chapters},
		Saver:     session.ChapterStoreAdapter{Store: chapters},
	}, session.Options{PollInterval: time.Millisecond, MaxPolls: 50})

	opts = append([]Option{
		WithPriceCache(prices),
		WithDefaultModel("test/model"),
	}, opts...)
	server := NewServer(chapters, glossaries, queue, sess, opts...)
	return &testEnv{server: server, chapters: chapters, queue: queue}
}

func (e *testEnv) addChapter(t *testing.T, novelID, title, text string) chapter.Chapter {
	t.Helper()
	ch := chapter.New(novelID, title, text, 1)
	require.NoError(t, e.chapters.UpsertChapter(context.Background(), &ch))
	return ch
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestImportAndListChapters(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env.server.Handler(), http.MethodPost, "/api/chapters", importChapterRequest{
		NovelID: "novel-1",
		Title:   "1장",
		Text:    "김철수는 검을 들었다.",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created chapter.Chapter
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, chapter.StatusNone, created.Status)

	rec = doJSON(t, env.server.Handler(), http.MethodGet, "/api/chapters?novel=novel-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []chapter.Chapter
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Len(t, listed, 1)
}

func TestImportChapterValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env.server.Handler(), http.MethodPost, "/api/chapters", importChapterRequest{
		NovelID: "novel-1",
		Text:    "   ",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChapterStatusEndpoint(t *testing.T) {
	env := newTestEnv(t)
	ch := env.addChapter(t, "novel-1", "1장", "원문")
	env.chapters.setStatus(ch.ID, chapter.StatusInProgress)

	rec := doJSON(t, env.server.Handler(), http.MethodGet, "/api/chapters/"+ch.ID+"/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp chapterStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, chapter.StatusInProgress, resp.Status)

	rec = doJSON(t, env.server.Handler(), http.MethodGet, "/api/chapters/missing/status", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEstimateEndpoint(t *testing.T) {
	env := newTestEnv(t)
	ch := env.addChapter(t, "novel-1", "1장", strings.Repeat("원문 텍스트입니다. ", 50))

	rec := doJSON(t, env.server.Handler(), http.MethodPost, "/api/translate/estimate", estimateRequest{
		ChapterID: ch.ID,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var quote session.Quote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quote))
	assert.Positive(t, quote.Estimate.InputTokens)
	require.NotNil(t, quote.Cost)
	assert.Equal(t, "test/model", quote.Cost.Model)
}

func TestTranslateLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ch := env.addChapter(t, "novel-1", "1장", "김철수는 검을 들었다.")

	// The background executor is simulated by flipping statuses once the
	// job lands in the queue.
	env.queue.Start(func(_ context.Context, job *jobs.TranslationJob) error {
		env.chapters.setStatus(job.Payload.ChapterID, chapter.StatusInProgress)
		env.chapters.setStatus(job.Payload.ChapterID, chapter.StatusCompleted)
		return nil
	})

	rec := doJSON(t, env.server.Handler(), http.MethodPost, "/api/translate", translateRequest{
		ChapterID: ch.ID,
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp translateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.JobID)
	require.NotNil(t, resp.Quote)

	require.Eventually(t, func() bool {
		got, err := env.chapters.GetChapter(context.Background(), ch.ID)
		return err == nil && got.Status == chapter.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTranslateWhileBusyConflicts(t *testing.T) {
	env := newTestEnv(t)
	ch := env.addChapter(t, "novel-1", "1장", "원문")
	// Queue not started: the job stays pending so the slot stays busy.

	rec := doJSON(t, env.server.Handler(), http.MethodPost, "/api/translate", translateRequest{ChapterID: ch.ID})
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = doJSON(t, env.server.Handler(), http.MethodPost, "/api/translate", translateRequest{ChapterID: ch.ID})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSaveTranslationEndpoint(t *testing.T) {
	env := newTestEnv(t)
	ch := env.addChapter(t, "novel-1", "1장", "원문")

	rec := doJSON(t, env.server.Handler(), http.MethodPut, "/api/chapters/"+ch.ID+"/translation", saveTranslationRequest{
		Content: "  \n ",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, env.server.Handler(), http.MethodPut, "/api/chapters/"+ch.ID+"/translation", saveTranslationRequest{
		Content: "edited translation",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := env.chapters.GetChapter(context.Background(), ch.ID)
	require.NoError(t, err)
	assert.Equal(t, "edited translation", got.Text.Translated)
}

func TestRenderedChapterHighlightsCharacters(t *testing.T) {
	env := newTestEnv(t)
	ch := env.addChapter(t, "novel-1", "1장", "김철수는 검을 들었다.")
	require.NoError(t, env.chapters.SaveTranslation(context.Background(), ch.ID,
		"Kim Cheol-su drew his sword.", "Chapter 1", "test/model"))

	rec := doJSON(t, env.server.Handler(), http.MethodPut, "/api/glossary?novel=novel-1", glossary.Mapping{
		"c1": {ID: "c1", DisplayName: "Kim Cheol-su", SourceName: "김철수", Description: "Protagonist"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, env.server.Handler(), http.MethodGet, "/api/chapters/"+ch.ID+"/rendered", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp renderedChapterResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.MarkedTranslation, `<span class="character-name" data-character-id="c1">Kim Cheol-su</span>`)
	assert.Contains(t, resp.Matched, "c1")
	assert.NotEmpty(t, resp.Alignment.Pairs)
}

func TestGlossaryValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env.server.Handler(), http.MethodPut, "/api/glossary?novel=novel-1", glossary.Mapping{
		"c1": {ID: "c1", DisplayName: "  "},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, env.server.Handler(), http.MethodGet, "/api/glossary", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type fakeDetector struct {
	characters []translate.DetectedCharacter
	names      map[string]string
	genders    map[string]glossary.Gender
}

func (f *fakeDetector) DetectCharacters(_ context.Context, _, _ string) ([]translate.DetectedCharacter, error) {
	return f.characters, nil
}

func (f *fakeDetector) TranslateNames(_ context.Context, _ []string, _, _ string) (map[string]string, error) {
	return f.names, nil
}

func (f *fakeDetector) DetectGenders(_ context.Context, _ string, _ []string, _ string) (map[string]glossary.Gender, error) {
	return f.genders, nil
}

func TestGlossaryDetectEndpoint(t *testing.T) {
	detector := &fakeDetector{
		characters: []translate.DetectedCharacter{
			{Name: "김철수", Description: "A swordsman"},
			{Name: "이영희", Description: "His rival"},
		},
		names:   map[string]string{"김철수": "Kim Cheol-su"},
		genders: map[string]glossary.Gender{"김철수": glossary.GenderMale, "이영희": glossary.GenderFemale},
	}
	env := newTestEnv(t, WithCharacterDetector(detector, language.English))
	ch := env.addChapter(t, "novel-1", "1장", "김철수는 이영희를 바라보았다.")

	rec := doJSON(t, env.server.Handler(), http.MethodPost, "/api/glossary/detect", detectCharactersRequest{
		ChapterID: ch.ID,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp detectCharactersResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Suggestions, 2)

	byName := make(map[string]glossary.Entry)
	for id, entry := range resp.Suggestions {
		assert.Equal(t, id, entry.ID)
		byName[entry.SourceName] = entry
	}
	assert.Equal(t, "Kim Cheol-su", byName["김철수"].DisplayName)
	assert.Equal(t, glossary.GenderMale, byName["김철수"].Gender)
	// No rendering from the model falls back to the source name.
	assert.Equal(t, "이영희", byName["이영희"].DisplayName)
}

func TestGlossaryDetectNotConfigured(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env.server.Handler(), http.MethodPost, "/api/glossary/detect", detectCharactersRequest{
		ChapterID: "ch-1",
	})
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestPricingEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env.server.Handler(), http.MethodGet, "/api/pricing", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test/model")

	rec = doJSON(t, env.server.Handler(), http.MethodPost, "/api/pricing", pricing.Table{
		"custom/model": {InputPerThousand: 0.002, OutputPerThousand: 0.004},
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, env.server.Handler(), http.MethodPost, "/api/pricing", pricing.Table{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, env.server.Handler(), http.MethodPost, "/api/pricing/refresh", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSettingsUpdateInvokesApplier(t *testing.T) {
	initial := config.RuntimeSettings{
		LLMAPIURL:       "https://openrouter.ai/api/v1",
		LLMAPIKey:       "test-key",
		LLMModel:        "openai/gpt-4o-mini",
		PricingCronExpr: "0 0 * * *",
		TargetLanguage:  "en",
	}
	store, err := config.NewRuntimeSettingsStore(filepath.Join(t.TempDir(), "settings.json"), initial)
	require.NoError(t, err)

	var applied config.RuntimeSettings
	env := newTestEnv(t,
		WithRuntimeSettingsStore(store),
		WithRuntimeSettingsApplier(func(next config.RuntimeSettings) error {
			applied = next
			return nil
		}),
	)

	next := initial
	next.LLMModel = "anthropic/claude-sonnet"
	next.LLMThinkingModel = "deepseek/deepseek-r1"
	rec := doJSON(t, env.server.Handler(), http.MethodPut, "/api/settings", next)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anthropic/claude-sonnet", applied.LLMModel)
	assert.Equal(t, "deepseek/deepseek-r1", applied.LLMThinkingModel)

	got, err := store.GetRuntimeSettings()
	require.NoError(t, err)
	assert.Equal(t, "anthropic/claude-sonnet", got.LLMModel)
}

func TestSessionEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env.server.Handler(), http.MethodGet, "/api/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "idle")
}

func TestJobsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	payload := jobs.JobPayload{NovelID: "novel-1", ChapterID: "ch-1"}
	env.queue.Enqueue(jobs.EnqueueRequest{Source: "manual", DedupeKey: payload.DedupeKey(), Payload: payload})

	rec := doJSON(t, env.server.Handler(), http.MethodGet, "/api/jobs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "job-1")
}
