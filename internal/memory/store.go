package memory

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/anima-sh/anima/internal/embed"
)

const memoryCols = `id, persona_id, content, importance, active, created_at, updated_at`

const workingCols = `id, persona_id, session_id, content, decay_score, expires_at,
	created_at, updated_at`

// Store manages both memory tiers in PostgreSQL + pgvector.
type Store struct {
	pool         *pgxpool.Pool
	embedder     embed.Embedder
	logger       *slog.Logger
	workingTTL   time.Duration
	canonicalCap int
}

// NewStore creates a memory store. workingTTL is how long a captured
// working memory lives before expiry.
func NewStore(pool *pgxpool.Pool, embedder embed.Embedder, logger *slog.Logger, workingTTL time.Duration) *Store {
	if workingTTL <= 0 {
		workingTTL = 48 * time.Hour
	}
	return &Store{
		pool:         pool,
		embedder:     embedder,
		logger:       logger.With("component", "memory"),
		workingTTL:   workingTTL,
		canonicalCap: MaxCanonicalPerPersona,
	}
}

// embedOrNil generates an embedding, degrading to nil on failure so
// capture never fails the caller. A nil embedding leaves the row
// reachable by keyword search only.
func (s *Store) embedOrNil(ctx context.Context, text string) *pgvector.Vector {
	embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
	defer cancel()

	raw, err := s.embedder.Embed(embedCtx, text)
	if err != nil {
		s.logger.Warn("embedding failed, storing keyword-only", "error", err)
		return nil
	}
	vec := pgvector.NewVector(raw)
	return &vec
}

// Remember stores a canonical memory. Idempotent: re-remembering the
// same content for the same persona is a no-op.
func (s *Store) Remember(ctx context.Context, personaID uuid.UUID, content string, importance int) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	importance = clampImportance(importance)

	vec := s.embedOrNil(ctx, content)

	_, err := s.pool.Exec(ctx,
		`INSERT INTO memories (persona_id, content, embedding, importance)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (persona_id, md5(content)) WHERE active = true DO NOTHING`,
		personaID, content, vec, importance,
	)
	if err != nil {
		return fmt.Errorf("remembering: %w", err)
	}

	if err := s.evictIfNeeded(ctx, personaID); err != nil {
		s.logger.Warn("canonical eviction failed", "error", err)
	}
	return nil
}

// Capture stores a working memory with full decay score and the
// configured TTL. sessionID may be nil.
func (s *Store) Capture(ctx context.Context, personaID uuid.UUID, sessionID *uuid.UUID, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	vec := s.embedOrNil(ctx, content)

	_, err := s.pool.Exec(ctx,
		`INSERT INTO working_memory (persona_id, session_id, content, embedding, expires_at)
		 VALUES ($1, $2, $3, $4, now() + $5)`,
		personaID, sessionID, content, vec, s.workingTTL,
	)
	if err != nil {
		return fmt.Errorf("capturing working memory: %w", err)
	}
	return nil
}

// clampImportance clamps importance to 1-10 (default 5).
func clampImportance(v int) int {
	if v == 0 {
		return 5
	}
	if v < 1 {
		return 1
	}
	if v > 10 {
		return 10
	}
	return v
}

// normalizeQuery bounds and rejects hostile search input. Returns ""
// when the query should yield no results.
func normalizeQuery(query string) string {
	if len(query) > MaxSearchQueryLen {
		query = query[:MaxSearchQueryLen]
	}
	if strings.ContainsRune(query, 0) {
		return ""
	}
	return query
}

func clampTopK(topK int) int {
	if topK <= 0 {
		return 5
	}
	if topK > MaxTopK {
		return MaxTopK
	}
	return topK
}

// Search returns canonical memories by embedding cosine similarity.
func (s *Store) Search(ctx context.Context, personaID uuid.UUID, query string, topK int) ([]*Memory, error) {
	query = normalizeQuery(query)
	if query == "" {
		return []*Memory{}, nil
	}
	topK = clampTopK(topK)

	embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
	defer cancel()
	raw, err := s.embedder.Embed(embedCtx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	vec := pgvector.NewVector(raw)

	rows, err := s.pool.Query(ctx,
		`SELECT `+memoryCols+`, 1 - (embedding <=> $2) AS relevance
		 FROM memories
		 WHERE persona_id = $1 AND active = true AND embedding IS NOT NULL
		 ORDER BY embedding <=> $2
		 LIMIT $3`,
		personaID, vec, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("searching memories: %w", err)
	}
	defer rows.Close()

	return scanMemoriesWithScore(rows)
}

// KeywordSearch returns canonical memories by full-text rank. Works
// even for rows whose embedding is missing.
func (s *Store) KeywordSearch(ctx context.Context, personaID uuid.UUID, query string, topK int) ([]*Memory, error) {
	query = normalizeQuery(query)
	if query == "" {
		return []*Memory{}, nil
	}
	topK = clampTopK(topK)

	rows, err := s.pool.Query(ctx,
		`SELECT `+memoryCols+`,
		        ts_rank_cd(search_text, plainto_tsquery('english', $2), 1) AS relevance
		 FROM memories
		 WHERE persona_id = $1 AND active = true
		   AND search_text @@ plainto_tsquery('english', $2)
		 ORDER BY relevance DESC
		 LIMIT $3`,
		personaID, query, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("keyword searching memories: %w", err)
	}
	defer rows.Close()

	return scanMemoriesWithScore(rows)
}

// HybridSearch ranks canonical memories by a composite of vector
// similarity, full-text rank, and importance-scaled freshness:
// 0.6*vector + 0.2*text + 0.2*importance/10.
func (s *Store) HybridSearch(ctx context.Context, personaID uuid.UUID, query string, topK int) ([]*Memory, error) {
	query = normalizeQuery(query)
	if query == "" {
		return []*Memory{}, nil
	}
	topK = clampTopK(topK)

	embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
	defer cancel()
	raw, err := s.embedder.Embed(embedCtx, query)
	if err != nil {
		// Degrade to keyword-only rather than failing retrieval.
		s.logger.Warn("query embedding failed, keyword-only search", "error", err)
		return s.KeywordSearch(ctx, personaID, query, topK)
	}
	vec := pgvector.NewVector(raw)

	rows, err := s.pool.Query(ctx,
		`SELECT `+memoryCols+`,
		        ($4 * COALESCE(1 - (embedding <=> $1), 0)
		         + $5 * LEAST(1.0, COALESCE(ts_rank_cd(search_text, plainto_tsquery('english', $3), 1), 0))
		         + $6 * (importance / 10.0)
		        ) AS relevance
		 FROM memories
		 WHERE persona_id = $2 AND active = true
		 ORDER BY relevance DESC
		 LIMIT $7`,
		vec, personaID, query,
		searchWeightVector, searchWeightText, searchWeightDecay,
		topK,
	)
	if err != nil {
		return nil, fmt.Errorf("hybrid searching memories: %w", err)
	}
	defer rows.Close()

	return scanMemoriesWithScore(rows)
}

// SearchWorking ranks live working memories by the same composite,
// with decay_score as the freshness term. Expired rows are excluded
// even before the scheduler removes them.
func (s *Store) SearchWorking(ctx context.Context, personaID uuid.UUID, query string, topK int) ([]*WorkingMemory, error) {
	query = normalizeQuery(query)
	if query == "" {
		return []*WorkingMemory{}, nil
	}
	topK = clampTopK(topK)

	embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
	defer cancel()
	raw, err := s.embedder.Embed(embedCtx, query)
	if err != nil {
		s.logger.Warn("query embedding failed, keyword-only working search", "error", err)
		raw = nil
	}

	var vec *pgvector.Vector
	if raw != nil {
		v := pgvector.NewVector(raw)
		vec = &v
	}

	// The ::vector cast keeps operator resolution working when the
	// query embedding is NULL.
	rows, err := s.pool.Query(ctx,
		`SELECT `+workingCols+`,
		        ($4 * COALESCE(1 - (embedding <=> $1::vector), 0)
		         + $5 * LEAST(1.0, COALESCE(ts_rank_cd(search_text, plainto_tsquery('english', $3), 1), 0))
		         + $6 * decay_score
		        ) AS relevance
		 FROM working_memory
		 WHERE persona_id = $2 AND expires_at > now()
		 ORDER BY relevance DESC
		 LIMIT $7`,
		vec, personaID, query,
		searchWeightVector, searchWeightText, searchWeightDecay,
		topK,
	)
	if err != nil {
		return nil, fmt.Errorf("searching working memory: %w", err)
	}
	defer rows.Close()

	return scanWorkingWithScore(rows)
}

// Retrieve merges both tiers for prompt assembly: hybrid canonical
// search plus working-memory search, sorted by score, capped at topK.
func (s *Store) Retrieve(ctx context.Context, personaID uuid.UUID, query string, topK int) ([]Retrieved, error) {
	topK = clampTopK(topK)

	canonical, err := s.HybridSearch(ctx, personaID, query, topK)
	if err != nil {
		return nil, err
	}
	working, err := s.SearchWorking(ctx, personaID, query, topK)
	if err != nil {
		return nil, err
	}

	merged := make([]Retrieved, 0, len(canonical)+len(working))
	for _, m := range canonical {
		merged = append(merged, Retrieved{Content: m.Content, Score: m.Score})
	}
	for _, w := range working {
		merged = append(merged, Retrieved{Content: w.Content, Score: w.Score, Working: true})
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if len(merged) > topK {
		merged = merged[:topK]
	}
	return merged, nil
}

// List returns active canonical memories for a persona, newest first.
func (s *Store) List(ctx context.Context, personaID uuid.UUID, limit, offset int) ([]*Memory, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+memoryCols+`
		 FROM memories
		 WHERE persona_id = $1 AND active = true
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		personaID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("listing memories: %w", err)
	}
	defer rows.Close()

	return scanMemories(rows)
}

// Delete soft-deactivates a canonical memory.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE memories SET active = false, updated_at = now()
		 WHERE id = $1 AND active = true`, id)
	if err != nil {
		return fmt.Errorf("deleting memory: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateDecayScores recalculates decay_score for all live working
// memories from their age. Returns rows updated.
//
// The Go-side decayScore must stay in sync with the SQL expression.
//
// NOTE: The explicit $1::float8 cast is required because pgx v5 sends
// Go float64 as an untyped parameter; PostgreSQL may otherwise infer
// integer and truncate the lambda to 0. See github.com/jackc/pgx/issues/2125
func (s *Store) UpdateDecayScores(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE working_memory
		 SET decay_score = LEAST(1.0,
		     exp(-$1::float8 * extract(epoch from (now() - created_at)) / 3600.0))
		 WHERE expires_at > now()`,
		workingDecayLambda,
	)
	if err != nil {
		return 0, fmt.Errorf("updating decay scores: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// DeleteStale removes working memories past their expiry. Returns rows
// deleted.
func (s *Store) DeleteStale(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM working_memory WHERE expires_at < now()`)
	if err != nil {
		return 0, fmt.Errorf("deleting stale working memory: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// evictIfNeeded deactivates the least important, oldest canonical
// memories beyond the per-persona cap.
func (s *Store) evictIfNeeded(ctx context.Context, personaID uuid.UUID) error {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM memories WHERE persona_id = $1 AND active = true`,
		personaID,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("counting memories: %w", err)
	}
	if count <= s.canonicalCap {
		return nil
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE memories SET active = false, updated_at = now()
		 WHERE id IN (
		     SELECT id FROM memories
		     WHERE persona_id = $1 AND active = true
		     ORDER BY importance ASC, created_at ASC
		     LIMIT $2
		 )`,
		personaID, count-s.canonicalCap,
	)
	if err != nil {
		return fmt.Errorf("evicting memories: %w", err)
	}
	s.logger.Info("evicted canonical memories over cap",
		"persona_id", personaID, "evicted", count-s.canonicalCap)
	return nil
}

// decayScore is the Go reference implementation of the working-memory
// decay formula. Must stay in sync with the SQL in UpdateDecayScores.
func decayScore(lambda float64, elapsed time.Duration) float64 {
	if lambda == 0 {
		return 1.0
	}
	score := math.Exp(-lambda * elapsed.Hours())
	if score > 1.0 {
		return 1.0
	}
	return score
}

func scanMemories(rows pgx.Rows) ([]*Memory, error) {
	var memories []*Memory
	for rows.Next() {
		m := &Memory{}
		if err := rows.Scan(
			&m.ID, &m.PersonaID, &m.Content, &m.Importance, &m.Active,
			&m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning memory: %w", err)
		}
		memories = append(memories, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating memories: %w", err)
	}
	return memories, nil
}

func scanMemoriesWithScore(rows pgx.Rows) ([]*Memory, error) {
	var memories []*Memory
	for rows.Next() {
		m := &Memory{}
		if err := rows.Scan(
			&m.ID, &m.PersonaID, &m.Content, &m.Importance, &m.Active,
			&m.CreatedAt, &m.UpdatedAt, &m.Score,
		); err != nil {
			return nil, fmt.Errorf("scanning memory with score: %w", err)
		}
		memories = append(memories, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating memories: %w", err)
	}
	return memories, nil
}

func scanWorkingWithScore(rows pgx.Rows) ([]*WorkingMemory, error) {
	var memories []*WorkingMemory
	for rows.Next() {
		w := &WorkingMemory{}
		if err := rows.Scan(
			&w.ID, &w.PersonaID, &w.SessionID, &w.Content, &w.DecayScore,
			&w.ExpiresAt, &w.CreatedAt, &w.UpdatedAt, &w.Score,
		); err != nil {
			return nil, fmt.Errorf("scanning working memory: %w", err)
		}
		memories = append(memories, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating working memory: %w", err)
	}
	return memories, nil
}
