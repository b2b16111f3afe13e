package persona

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// COALESCE on model: the column is nullable, the struct field is not.
const personaColumns = `id, name, display_name, system_prompt, traits, COALESCE(model, ''),
	temperature, vitality, active, last_interaction_at, created_at, updated_at`

// Store manages persona rows in PostgreSQL.
type Store struct {
	pool          *pgxpool.Pool
	logger        *slog.Logger
	halfLifeHours float64
}

// NewStore creates a persona store. halfLifeHours controls vitality
// decay: after one half-life without interaction, vitality halves.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger, halfLifeHours float64) *Store {
	if halfLifeHours <= 0 {
		halfLifeHours = 24 * 7
	}
	return &Store{
		pool:          pool,
		logger:        logger.With("component", "persona"),
		halfLifeHours: halfLifeHours,
	}
}

// Create inserts a new persona with full vitality.
func (s *Store) Create(ctx context.Context, p CreateParams) (*Persona, error) {
	if p.Traits == nil {
		p.Traits = []string{}
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO personas (name, display_name, system_prompt, traits, model, temperature)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
		 RETURNING `+personaColumns,
		p.Name, p.DisplayName, p.SystemPrompt, p.Traits, p.Model, p.Temperature,
	)

	persona, err := scanPersona(row)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23505 = unique_violation on the name column
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("%w: %q", ErrNameTaken, p.Name)
		}
		return nil, fmt.Errorf("creating persona: %w", err)
	}

	s.logger.Info("persona created", "id", persona.ID, "name", persona.Name)
	return persona, nil
}

// Get returns an active persona by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Persona, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+personaColumns+` FROM personas WHERE id = $1 AND active = true`, id)
	persona, err := scanPersona(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting persona: %w", err)
	}
	return persona, nil
}

// GetByName returns an active persona by its unique name.
func (s *Store) GetByName(ctx context.Context, name string) (*Persona, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+personaColumns+` FROM personas WHERE name = $1 AND active = true`, name)
	persona, err := scanPersona(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting persona by name: %w", err)
	}
	return persona, nil
}

// List returns active personas ordered by name.
func (s *Store) List(ctx context.Context) ([]*Persona, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+personaColumns+` FROM personas WHERE active = true ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing personas: %w", err)
	}
	defer rows.Close()

	var personas []*Persona
	for rows.Next() {
		p, err := scanPersona(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning persona: %w", err)
		}
		personas = append(personas, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating personas: %w", err)
	}
	return personas, nil
}

// Update applies the non-nil fields of p to an active persona. An
// explicit empty model or a ClearTemperature value drops the override
// so the config default applies again.
func (s *Store) Update(ctx context.Context, id uuid.UUID, p UpdateParams) (*Persona, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE personas
		 SET display_name = COALESCE($2, display_name),
		     system_prompt = COALESCE($3, system_prompt),
		     traits = COALESCE($4, traits),
		     model = CASE WHEN $5::text IS NULL THEN model ELSE NULLIF($5, '') END,
		     temperature = CASE WHEN $6::real IS NULL THEN temperature
		                        WHEN $6 < 0 THEN NULL
		                        ELSE $6 END,
		     updated_at = now()
		 WHERE id = $1 AND active = true
		 RETURNING `+personaColumns,
		id, p.DisplayName, p.SystemPrompt, p.Traits, p.Model, p.Temperature,
	)
	persona, err := scanPersona(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("updating persona: %w", err)
	}
	return persona, nil
}

// Deactivate soft-deletes a persona. Existing sessions keep their
// persona reference; the persona just stops accepting chat.
func (s *Store) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE personas SET active = false, updated_at = now()
		 WHERE id = $1 AND active = true`, id)
	if err != nil {
		return fmt.Errorf("deactivating persona: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	s.logger.Info("persona deactivated", "id", id)
	return nil
}

// RefreshVitality restores full vitality and stamps the interaction
// time. Called on every successful chat turn.
func (s *Store) RefreshVitality(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE personas
		 SET vitality = 1.0, last_interaction_at = now(), updated_at = now()
		 WHERE id = $1 AND active = true`, id)
	if err != nil {
		return fmt.Errorf("refreshing vitality: %w", err)
	}
	return nil
}

// DecayVitality recalculates vitality for all active personas from the
// time since their last interaction. Returns rows updated.
//
// The Go-side formula in vitalityScore must stay in sync with the SQL
// expression below.
//
// NOTE: The explicit $1::float8 cast is required because pgx v5 sends
// Go float64 as an untyped parameter and PostgreSQL may infer integer,
// silently truncating small lambdas to 0. See github.com/jackc/pgx/issues/2125
func (s *Store) DecayVitality(ctx context.Context) (int, error) {
	lambda := s.lambda()

	tag, err := s.pool.Exec(ctx,
		`UPDATE personas
		 SET vitality = GREATEST($2::float8,
		     exp(-$1::float8 * extract(epoch from (now() - last_interaction_at)) / 3600.0))
		 WHERE active = true`,
		lambda, VitalityFloor,
	)
	if err != nil {
		return 0, fmt.Errorf("decaying vitality: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// lambda converts the configured half-life to a decay constant.
func (s *Store) lambda() float64 {
	return math.Ln2 / s.halfLifeHours
}

// vitalityScore is the Go reference implementation of the decay
// formula. Must stay in sync with the SQL in DecayVitality.
func vitalityScore(lambda float64, elapsed time.Duration) float64 {
	score := math.Exp(-lambda * elapsed.Hours())
	if score < VitalityFloor {
		return VitalityFloor
	}
	if score > 1.0 {
		return 1.0
	}
	return score
}

// rowScanner covers pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPersona(row rowScanner) (*Persona, error) {
	var p Persona
	err := row.Scan(
		&p.ID, &p.Name, &p.DisplayName, &p.SystemPrompt, &p.Traits, &p.Model,
		&p.Temperature, &p.Vitality, &p.Active, &p.LastInteractionAt,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
