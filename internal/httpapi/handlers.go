package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/hseol/chapter-translator/internal/align"
	"github.com/hseol/chapter-translator/internal/chapter"
	"github.com/hseol/chapter-translator/internal/config"
	"github.com/hseol/chapter-translator/internal/glossary"
	"github.com/hseol/chapter-translator/internal/persistence"
	"github.com/hseol/chapter-translator/internal/pricing"
	"github.com/hseol/chapter-translator/internal/session"
)

type importChapterRequest struct {
	NovelID  string `json:"novel_id"`
	Title    string `json:"title"`
	Text     string `json:"text"`
	Position int    `json:"position"`
}

func (s *Server) handleChapters(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		novelID := r.URL.Query().Get("novel")
		if novelID == "" {
			writeError(w, http.StatusBadRequest, "novel query parameter is required")
			return
		}
		chapters, err := s.chapters.ListChapters(r.Context(), novelID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, chapters)
	case http.MethodPost:
		var req importChapterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if req.NovelID == "" {
			writeError(w, http.StatusBadRequest, "novel_id is required")
			return
		}
		if strings.TrimSpace(req.Text) == "" {
			writeError(w, http.StatusBadRequest, "text is required")
			return
		}
		ch := chapter.New(req.NovelID, req.Title, req.Text, req.Position)
		if err := s.chapters.UpsertChapter(r.Context(), &ch); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, ch)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleChapterByID serves /api/chapters/{id}, /api/chapters/{id}/status,
// /api/chapters/{id}/rendered and /api/chapters/{id}/translation.
func (s *Server) handleChapterByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/chapters/")
	id, action, _ := strings.Cut(rest, "/")
	if decoded, err := url.PathUnescape(id); err == nil {
		id = decoded
	}
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing chapter id")
		return
	}

	switch action {
	case "":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.serveChapter(w, r, id)
	case "status":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.serveChapterStatus(w, r, id)
	case "rendered":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.serveRenderedChapter(w, r, id)
	case "translation":
		if r.Method != http.MethodPut && r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.saveChapterTranslation(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) serveChapter(w http.ResponseWriter, r *http.Request, id string) {
	ch, err := s.chapters.GetChapter(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

type chapterStatusResponse struct {
	ChapterID string         `json:"chapter_id"`
	Status    chapter.Status `json:"status"`
	Model     string         `json:"model,omitempty"`
}

func (s *Server) serveChapterStatus(w http.ResponseWriter, r *http.Request, id string) {
	ch, err := s.chapters.GetChapter(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chapterStatusResponse{
		ChapterID: ch.ID,
		Status:    ch.Status,
		Model:     ch.TranslationModel,
	})
}

type renderedChapterResponse struct {
	Chapter           *chapter.Chapter          `json:"chapter"`
	MarkedSource      string                    `json:"marked_source"`
	MarkedTranslation string                    `json:"marked_translation"`
	Matched           map[string]glossary.Entry `json:"matched_characters"`
	Alignment         alignmentResponse         `json:"alignment"`
}

type alignmentResponse struct {
	Pairs []align.Pair `json:"pairs"`
	Skew  int          `json:"skew"`
}

// serveRenderedChapter returns the bilingual reading view: translated
// text with character names wrapped for highlighting, plus the
// unit-by-unit alignment between source and translation.
func (s *Server) serveRenderedChapter(w http.ResponseWriter, r *http.Request, id string) {
	ch, err := s.chapters.GetChapter(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	mapping, err := s.glossaries.GetGlossary(r.Context(), ch.NovelID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	translated := glossary.Highlight(ch.Text.Translated, mapping)
	alignment := align.Correlate(align.Segment(ch.Text.Source), align.Segment(ch.Text.Translated))

	writeJSON(w, http.StatusOK, renderedChapterResponse{
		Chapter:           ch,
		MarkedSource:      ch.Text.Source,
		MarkedTranslation: translated.Marked,
		Matched:           translated.Matched,
		Alignment: alignmentResponse{
			Pairs: alignment.Pairs(),
			Skew:  alignment.Skew(),
		},
	})
}

type saveTranslationRequest struct {
	Content string `json:"content"`
}

func (s *Server) saveChapterTranslation(w http.ResponseWriter, r *http.Request, id string) {
	var req saveTranslationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := s.sess.SaveEdit(r.Context(), id, req.Content); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type translateRequest struct {
	NovelID   string `json:"novel_id"`
	ChapterID string `json:"chapter_id"`
	Model     string `json:"model"`
	Thinking  bool   `json:"thinking"`
}

type translateResponse struct {
	JobID string         `json:"job_id"`
	Quote *session.Quote `json:"quote"`
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req translateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.ChapterID == "" {
		writeError(w, http.StatusBadRequest, "chapter_id is required")
		return
	}

	ch, err := s.chapters.GetChapter(r.Context(), req.ChapterID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	novelID := req.NovelID
	if novelID == "" {
		novelID = ch.NovelID
	}

	quote, jobID, err := s.sess.Begin(r.Context(), session.Request{
		NovelID:   novelID,
		ChapterID: ch.ID,
		Text:      ch.Text.Source,
		Model:     s.modelFor(req.Model),
		Thinking:  req.Thinking,
	})
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, translateResponse{JobID: jobID, Quote: quote})
}

type estimateRequest struct {
	ChapterID string `json:"chapter_id"`
	Text      string `json:"text"`
	Model     string `json:"model"`
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req estimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	text := req.Text
	if text == "" && req.ChapterID != "" {
		ch, err := s.chapters.GetChapter(r.Context(), req.ChapterID)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		text = ch.Text.Source
	}

	quote, err := s.sess.Estimate(r.Context(), text, s.modelFor(req.Model))
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"phase": s.sess.Phase(),
		"slot":  s.sess.SlotState(),
	})
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.queue.List())
}

func (s *Server) handleGlossary(w http.ResponseWriter, r *http.Request) {
	novelID := r.URL.Query().Get("novel")
	if novelID == "" {
		writeError(w, http.StatusBadRequest, "novel query parameter is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		mapping, err := s.glossaries.GetGlossary(r.Context(), novelID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, mapping)
	case http.MethodPut:
		var mapping glossary.Mapping
		if err := json.NewDecoder(r.Body).Decode(&mapping); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		for id, entry := range mapping {
			if entry.ID == "" {
				entry.ID = id
				mapping[id] = entry
			}
			if strings.TrimSpace(entry.DisplayName) == "" {
				writeError(w, http.StatusBadRequest, "display_name is required for entry "+id)
				return
			}
		}
		if err := s.glossaries.ReplaceGlossary(r.Context(), novelID, mapping); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, mapping)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type detectCharactersRequest struct {
	ChapterID string `json:"chapter_id"`
}

type detectCharactersResponse struct {
	Suggestions glossary.Mapping `json:"suggestions"`
}

// handleGlossaryDetect drafts glossary entries from a chapter: the model
// lists named characters, renders their names in the target language and
// infers pronoun preferences. Nothing is persisted; the client reviews
// the suggestions and saves them through PUT /api/glossary.
func (s *Server) handleGlossaryDetect(w http.ResponseWriter, r *http.Request) {
	if s.detector == nil {
		writeError(w, http.StatusNotImplemented, "character detection is not configured")
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req detectCharactersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.ChapterID == "" {
		writeError(w, http.StatusBadRequest, "chapter_id is required")
		return
	}

	ch, err := s.chapters.GetChapter(r.Context(), req.ChapterID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	sourceLang := displayLanguage(ch.SourceLanguage)
	targetLang := displayLanguage(s.targetLanguage)

	characters, err := s.detector.DetectCharacters(r.Context(), ch.Text.Source, sourceLang)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	names := make([]string, 0, len(characters))
	for _, c := range characters {
		names = append(names, c.Name)
	}

	translated, err := s.detector.TranslateNames(r.Context(), names, sourceLang, targetLang)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	genders, err := s.detector.DetectGenders(r.Context(), ch.Text.Source, names, sourceLang)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	suggestions := make(glossary.Mapping, len(characters))
	for _, c := range characters {
		displayName := translated[c.Name]
		if displayName == "" {
			displayName = c.Name
		}
		id := uuid.NewString()
		suggestions[id] = glossary.Entry{
			ID:          id,
			DisplayName: displayName,
			SourceName:  c.Name,
			Description: c.Description,
			Gender:      genders[c.Name],
		}
	}

	writeJSON(w, http.StatusOK, detectCharactersResponse{Suggestions: suggestions})
}

func displayLanguage(tag language.Tag) string {
	if tag == language.Und {
		return "the source language"
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return tag.String()
}

func (s *Server) handlePricing(w http.ResponseWriter, r *http.Request) {
	if s.prices == nil {
		writeError(w, http.StatusNotImplemented, "pricing is not configured")
		return
	}

	switch r.Method {
	case http.MethodGet:
		table, err := s.prices.Get(r.Context())
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"models":    table,
			"overrides": s.prices.Overrides(),
		})
	case http.MethodPost:
		var overrides pricing.Table
		if err := json.NewDecoder(r.Body).Decode(&overrides); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if len(overrides) == 0 {
			writeError(w, http.StatusBadRequest, "no overrides given")
			return
		}
		if err := s.prices.SetOverrides(r.Context(), overrides); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, s.prices.Overrides())
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handlePricingRefresh(w http.ResponseWriter, r *http.Request) {
	if s.prices == nil {
		writeError(w, http.StatusNotImplemented, "pricing is not configured")
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := s.prices.Refresh(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if s.settings == nil {
		writeError(w, http.StatusNotImplemented, "settings store is not configured")
		return
	}

	switch r.Method {
	case http.MethodGet:
		settings, err := s.settings.GetRuntimeSettings()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, settings)
	case http.MethodPut:
		var req config.RuntimeSettings
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if err := req.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		saved, err := s.settings.UpdateRuntimeSettings(req)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if s.apply != nil {
			if err := s.apply(saved); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}
		writeJSON(w, http.StatusOK, saved)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) modelFor(requested string) string {
	if requested != "" {
		return requested
	}
	if s.settings != nil {
		if settings, err := s.settings.GetRuntimeSettings(); err == nil && settings.LLMModel != "" {
			return settings.LLMModel
		}
	}
	return s.defaultModel
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, persistence.ErrNotFound) {
		writeError(w, http.StatusNotFound, "chapter not found")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case session.IsErrorType(err, session.ErrBusy):
		writeError(w, http.StatusConflict, err.Error())
	case session.IsErrorType(err, session.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case session.IsErrorType(err, session.ErrPricing):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
