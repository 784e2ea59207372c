package glossary

import "context"

// Store persists per-novel glossaries.
type Store interface {
	GetGlossary(ctx context.Context, novelID string) (Mapping, error)
	ReplaceGlossary(ctx context.Context, novelID string, entries Mapping) error
}
