package httpapi

import (
	"context"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/hseol/chapter-translator/internal/chapter"
	"github.com/hseol/chapter-translator/internal/config"
	"github.com/hseol/chapter-translator/internal/glossary"
	"github.com/hseol/chapter-translator/internal/jobs"
	"github.com/hseol/chapter-translator/internal/pricing"
	"github.com/hseol/chapter-translator/internal/session"
	"github.com/hseol/chapter-translator/internal/translate"
)

type chapterStore interface {
	GetChapter(ctx context.Context, id string) (*chapter.Chapter, error)
	ListChapters(ctx context.Context, novelID string) ([]*chapter.Chapter, error)
	UpsertChapter(ctx context.Context, ch *chapter.Chapter) error
}

type priceCache interface {
	Get(ctx context.Context) (pricing.Table, error)
	Refresh(ctx context.Context) error
	SetOverrides(ctx context.Context, overrides pricing.Table) error
	Overrides() pricing.Table
}

type runtimeSettingsStore interface {
	GetRuntimeSettings() (config.RuntimeSettings, error)
	UpdateRuntimeSettings(next config.RuntimeSettings) (config.RuntimeSettings, error)
}

type runtimeSettingsApplier func(next config.RuntimeSettings) error

// characterDetector is the AI-assisted glossary helper surface.
type characterDetector interface {
	DetectCharacters(ctx context.Context, text, sourceLanguage string) ([]translate.DetectedCharacter, error)
	TranslateNames(ctx context.Context, names []string, sourceLanguage, targetLanguage string) (map[string]string, error)
	DetectGenders(ctx context.Context, text string, names []string, sourceLanguage string) (map[string]glossary.Gender, error)
}

type Server struct {
	chapters   chapterStore
	glossaries glossary.Store
	queue      *jobs.Queue
	sess       *session.Session
	prices     priceCache
	settings   runtimeSettingsStore
	apply      runtimeSettingsApplier

	detector       characterDetector
	targetLanguage language.Tag

	defaultModel string

	uiEnabled   bool
	uiStaticDir string

	mux    *http.ServeMux
	server *http.Server
}

type Option func(*Server)

func WithUI(staticDir string, enabled bool) Option {
	return func(s *Server) {
		s.uiStaticDir = staticDir
		s.uiEnabled = enabled
	}
}

func WithPriceCache(cache priceCache) Option {
	return func(s *Server) {
		s.prices = cache
	}
}

func WithRuntimeSettingsStore(store runtimeSettingsStore) Option {
	return func(s *Server) {
		s.settings = store
	}
}

func WithRuntimeSettingsApplier(apply runtimeSettingsApplier) Option {
	return func(s *Server) {
		s.apply = apply
	}
}

func WithCharacterDetector(detector characterDetector, targetLanguage language.Tag) Option {
	return func(s *Server) {
		s.detector = detector
		s.targetLanguage = targetLanguage
	}
}

func WithDefaultModel(model string) Option {
	return func(s *Server) {
		s.defaultModel = model
	}
}

func NewServer(chapters chapterStore, glossaries glossary.Store, queue *jobs.Queue, sess *session.Session, opts ...Option) *Server {
	s := &Server{
		chapters:   chapters,
		glossaries: glossaries,
		queue:      queue,
		sess:       sess,
		uiEnabled:  false,
		mux:        http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/chapters", s.handleChapters)
	s.mux.HandleFunc("/api/chapters/", s.handleChapterByID)
	s.mux.HandleFunc("/api/translate", s.handleTranslate)
	s.mux.HandleFunc("/api/translate/estimate", s.handleEstimate)
	s.mux.HandleFunc("/api/session", s.handleSession)
	s.mux.HandleFunc("/api/jobs", s.handleJobs)
	s.mux.HandleFunc("/api/jobs/stream", s.handleJobStream)
	s.mux.HandleFunc("/api/glossary", s.handleGlossary)
	s.mux.HandleFunc("/api/glossary/detect", s.handleGlossaryDetect)
	s.mux.HandleFunc("/api/pricing", s.handlePricing)
	s.mux.HandleFunc("/api/pricing/refresh", s.handlePricingRefresh)
	s.mux.HandleFunc("/api/settings", s.handleSettings)
	s.mux.HandleFunc("/", s.handleStatic)
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if !s.uiEnabled || s.uiStaticDir == "" {
		http.NotFound(w, r)
		return
	}

	rel := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
	indexPath := filepath.Join(s.uiStaticDir, "index.html")

	if rel == "" || !strings.Contains(filepath.Base(rel), ".") {
		http.ServeFile(w, r, indexPath)
		return
	}

	filePath := filepath.Join(s.uiStaticDir, rel)
	if _, err := os.Stat(filePath); err != nil {
		// SPA fallback: non-existing static file path returns index
		http.ServeFile(w, r, indexPath)
		return
	}
	http.ServeFile(w, r, filePath)
}
