package persistence

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	_ "modernc.org/sqlite"

	"github.com/hseol/chapter-translator/internal/chapter"
	"github.com/hseol/chapter-translator/internal/glossary"
	"github.com/hseol/chapter-translator/internal/jobs"
	"github.com/hseol/chapter-translator/internal/pricing"
	"github.com/hseol/chapter-translator/internal/token"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = fmt.Errorf("not found")

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	// Bootstrap schema_migrations table so we can track applied versions.
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile(filepath.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

func (s *SQLiteStore) GetChapter(ctx context.Context, id string) (*chapter.Chapter, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, novel_id, title, position, source_text, translated_text, translated_title,
		        source_language, translation_status, translation_model, created_at, updated_at
		 FROM chapters
		 WHERE id = ?`,
		id,
	)
	return scanChapter(row)
}

func (s *SQLiteStore) ListChapters(ctx context.Context, novelID string) ([]*chapter.Chapter, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, novel_id, title, position, source_text, translated_text, translated_title,
		        source_language, translation_status, translation_model, created_at, updated_at
		 FROM chapters
		 WHERE novel_id = ?
		 ORDER BY position ASC`,
		novelID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]*chapter.Chapter, 0)
	for rows.Next() {
		ch, err := scanChapter(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, ch)
	}
	return ret, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChapter(row rowScanner) (*chapter.Chapter, error) {
	var ch chapter.Chapter
	var sourceLang string
	var status string
	if err := row.Scan(
		&ch.ID,
		&ch.NovelID,
		&ch.Title,
		&ch.Position,
		&ch.Text.Source,
		&ch.Text.Translated,
		&ch.Text.TranslatedTitle,
		&sourceLang,
		&status,
		&ch.TranslationModel,
		&ch.CreatedAt,
		&ch.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if tag, err := language.Parse(sourceLang); err == nil {
		ch.SourceLanguage = tag
	} else {
		ch.SourceLanguage = language.Und
	}
	ch.Status = chapter.Status(status)
	return &ch, nil
}

func (s *SQLiteStore) UpsertChapter(ctx context.Context, ch *chapter.Chapter) error {
	if ch == nil {
		return fmt.Errorf("chapter is nil")
	}
	sourceLang := ""
	if ch.SourceLanguage != language.Und {
		sourceLang = ch.SourceLanguage.String()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO chapters (
			id, novel_id, title, position, source_text, translated_text, translated_title,
			source_language, translation_status, translation_model, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			novel_id=excluded.novel_id,
			title=excluded.title,
			position=excluded.position,
			source_text=excluded.source_text,
			translated_text=excluded.translated_text,
			translated_title=excluded.translated_title,
			source_language=excluded.source_language,
			translation_status=excluded.translation_status,
			translation_model=excluded.translation_model,
			updated_at=excluded.updated_at`,
		ch.ID,
		ch.NovelID,
		ch.Title,
		ch.Position,
		ch.Text.Source,
		ch.Text.Translated,
		ch.Text.TranslatedTitle,
		sourceLang,
		string(ch.Status),
		ch.TranslationModel,
		ch.CreatedAt.UTC(),
		time.Now().UTC(),
	)
	return err
}

func (s *SQLiteStore) SaveTranslation(ctx context.Context, id, translated, translatedTitle, model string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE chapters
		 SET translated_text = ?,
		     translated_title = CASE WHEN ? = '' THEN translated_title ELSE ? END,
		     translation_model = CASE WHEN ? = '' THEN translation_model ELSE ? END,
		     updated_at = ?
		 WHERE id = ?`,
		translated,
		translatedTitle, translatedTitle,
		model, model,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) SetTranslationStatus(ctx context.Context, id string, status chapter.Status) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE chapters SET translation_status = ?, updated_at = ? WHERE id = ?`,
		string(status),
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) GetGlossary(ctx context.Context, novelID string) (glossary.Mapping, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, display_name, source_name, description, gender
		 FROM glossary_entries
		 WHERE novel_id = ?`,
		novelID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	mapping := glossary.Mapping{}
	for rows.Next() {
		var entry glossary.Entry
		var gender string
		if err := rows.Scan(&entry.ID, &entry.DisplayName, &entry.SourceName, &entry.Description, &gender); err != nil {
			return nil, err
		}
		entry.Gender = glossary.Gender(gender)
		mapping[entry.ID] = entry
	}
	return mapping, rows.Err()
}

// ReplaceGlossary swaps a novel's glossary wholesale in one
// transaction.
func (s *SQLiteStore) ReplaceGlossary(ctx context.Context, novelID string, entries glossary.Mapping) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM glossary_entries WHERE novel_id = ?`, novelID); err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, entry := range entries {
		gender := entry.Gender
		if gender == "" {
			gender = glossary.GenderAuto
		}
		if _, err = tx.ExecContext(
			ctx,
			`INSERT INTO glossary_entries (id, novel_id, display_name, source_name, description, gender, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			entry.ID,
			novelID,
			entry.DisplayName,
			entry.SourceName,
			entry.Description,
			string(gender),
			now,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) LoadJobs(ctx context.Context) ([]*jobs.TranslationJob, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, source, dedupe_key, novel_id, chapter_id, thinking, status, error, created_at, updated_at
		 FROM jobs
		 ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]*jobs.TranslationJob, 0)
	for rows.Next() {
		var item jobs.TranslationJob
		var status string
		var thinking int
		if err := rows.Scan(
			&item.ID,
			&item.Source,
			&item.DedupeKey,
			&item.Payload.NovelID,
			&item.Payload.ChapterID,
			&thinking,
			&status,
			&item.Error,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		item.Status = jobs.Status(status)
		item.Payload.Thinking = thinking == 1
		ret = append(ret, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *SQLiteStore) UpsertJob(ctx context.Context, job *jobs.TranslationJob) error {
	if job == nil {
		return fmt.Errorf("job is nil")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (
			id, source, dedupe_key, novel_id, chapter_id, thinking, status, error, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source=excluded.source,
			dedupe_key=excluded.dedupe_key,
			novel_id=excluded.novel_id,
			chapter_id=excluded.chapter_id,
			thinking=excluded.thinking,
			status=excluded.status,
			error=excluded.error,
			updated_at=excluded.updated_at`,
		job.ID,
		job.Source,
		job.DedupeKey,
		job.Payload.NovelID,
		job.Payload.ChapterID,
		boolToInt(job.Payload.Thinking),
		string(job.Status),
		job.Error,
		job.CreatedAt,
		job.UpdatedAt,
	)
	return err
}

func (s *SQLiteStore) DeleteJob(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, jobID)
	return err
}

func (s *SQLiteStore) RecordTokenUsage(ctx context.Context, usage token.Usage) error {
	createdAt := usage.CreatedAt.UTC()
	if usage.CreatedAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	kind := usage.Kind
	if kind == "" {
		kind = token.UsageContent
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO token_usage (chapter_id, provider, model, input_tokens, output_tokens, total_tokens, kind, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		usage.ChapterID,
		usage.Provider,
		usage.Model,
		usage.InputTokens,
		usage.OutputTokens,
		usage.TotalTokens,
		string(kind),
		createdAt,
	)
	return err
}

func (s *SQLiteStore) ListTokenUsage(ctx context.Context, chapterID string) ([]token.Usage, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, chapter_id, provider, model, input_tokens, output_tokens, total_tokens, kind, created_at
		 FROM token_usage
		 WHERE chapter_id = ?
		 ORDER BY id ASC`,
		chapterID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]token.Usage, 0)
	for rows.Next() {
		var item token.Usage
		var kind string
		if err := rows.Scan(
			&item.ID,
			&item.ChapterID,
			&item.Provider,
			&item.Model,
			&item.InputTokens,
			&item.OutputTokens,
			&item.TotalTokens,
			&kind,
			&item.CreatedAt,
		); err != nil {
			return nil, err
		}
		item.Kind = token.UsageKind(kind)
		ret = append(ret, item)
	}
	return ret, rows.Err()
}

func (s *SQLiteStore) LoadPriceTable(ctx context.Context, source string) (pricing.Table, time.Time, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT payload_json, fetched_at FROM price_tables WHERE source = ?`,
		source,
	)
	var payloadJSON string
	var fetchedAt time.Time
	if err := row.Scan(&payloadJSON, &fetchedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, time.Time{}, nil
		}
		return nil, time.Time{}, err
	}
	var table pricing.Table
	if err := json.Unmarshal([]byte(payloadJSON), &table); err != nil {
		return nil, time.Time{}, fmt.Errorf("corrupt price table %q: %w", source, err)
	}
	return table, fetchedAt, nil
}

func (s *SQLiteStore) SavePriceTable(ctx context.Context, source string, table pricing.Table) error {
	payload, err := json.Marshal(table)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO price_tables (source, payload_json, fetched_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(source) DO UPDATE SET
			payload_json=excluded.payload_json,
			fetched_at=excluded.fetched_at`,
		source,
		string(payload),
		time.Now().UTC(),
	)
	return err
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
