package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Repository provides data access methods
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck performs a database health check
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

// ============================================================================
// USERS
// ============================================================================

// CreateUser inserts a new trainee account
func (r *Repository) CreateUser(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, email, password_hash, display_name, skill_tier, is_admin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Pool.Exec(
		ctx, query,
		user.ID, user.Email, user.PasswordHash, user.DisplayName,
		user.SkillTier, user.IsAdmin, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByEmail retrieves a user by email, nil when absent
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT id, email, password_hash, display_name, skill_tier, is_admin, created_at, updated_at, last_login_at
		FROM users
		WHERE email = $1
	`
	user := &User{}
	err := r.db.Pool.QueryRow(ctx, query, email).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.DisplayName,
		&user.SkillTier, &user.IsAdmin, &user.CreatedAt, &user.UpdatedAt, &user.LastLoginAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

// GetUserByID retrieves a user by ID, nil when absent
func (r *Repository) GetUserByID(ctx context.Context, id string) (*User, error) {
	query := `
		SELECT id, email, password_hash, display_name, skill_tier, is_admin, created_at, updated_at, last_login_at
		FROM users
		WHERE id = $1
	`
	user := &User{}
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.DisplayName,
		&user.SkillTier, &user.IsAdmin, &user.CreatedAt, &user.UpdatedAt, &user.LastLoginAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return user, nil
}

// EmailExists reports whether an email is already registered
func (r *Repository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return exists, nil
}

// UpdateLastLogin stamps the user's last login time
func (r *Repository) UpdateLastLogin(ctx context.Context, id string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE users SET last_login_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP WHERE id = $1`, id,
	)
	return err
}

// UpdateSkillTier moves a trainee to a new tier
func (r *Repository) UpdateSkillTier(ctx context.Context, id, tier string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE users SET skill_tier = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1`, id, tier,
	)
	return err
}

// ============================================================================
// SCENARIOS
// ============================================================================

// SaveScenario persists a generated scenario
func (r *Repository) SaveScenario(ctx context.Context, rec *ScenarioRecord) error {
	query := `
		INSERT INTO scenarios (id, symbol, title, difficulty, setup_type, correct_action, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Pool.Exec(
		ctx, query,
		rec.ID, rec.Symbol, rec.Title, rec.Difficulty, rec.SetupType,
		rec.CorrectAction, rec.Payload, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save scenario: %w", err)
	}
	return nil
}

// GetScenario retrieves a stored scenario by ID, nil when absent
func (r *Repository) GetScenario(ctx context.Context, id string) (*ScenarioRecord, error) {
	query := `
		SELECT id, symbol, title, difficulty, setup_type, correct_action, payload, created_at
		FROM scenarios
		WHERE id = $1
	`
	rec := &ScenarioRecord{}
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&rec.ID, &rec.Symbol, &rec.Title, &rec.Difficulty, &rec.SetupType,
		&rec.CorrectAction, &rec.Payload, &rec.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scenario: %w", err)
	}
	return rec, nil
}

// ListScenarios returns recent scenarios, optionally filtered by difficulty
func (r *Repository) ListScenarios(ctx context.Context, difficulty string, limit int) ([]ScenarioRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, symbol, title, difficulty, setup_type, correct_action, payload, created_at
		FROM scenarios
	`
	args := []interface{}{}
	if difficulty != "" {
		query += ` WHERE difficulty = $1 ORDER BY created_at DESC LIMIT $2`
		args = append(args, difficulty, limit)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}
	defer rows.Close()

	var out []ScenarioRecord
	for rows.Next() {
		var rec ScenarioRecord
		if err := rows.Scan(
			&rec.ID, &rec.Symbol, &rec.Title, &rec.Difficulty, &rec.SetupType,
			&rec.CorrectAction, &rec.Payload, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan scenario: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ============================================================================
// ATTEMPTS
// ============================================================================

// SaveAttempt records one trainee decision
func (r *Repository) SaveAttempt(ctx context.Context, attempt *Attempt) error {
	query := `
		INSERT INTO attempts (scenario_id, user_id, action, correct, level_score, trend_score, patience_score)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	err := r.db.Pool.QueryRow(
		ctx, query,
		attempt.ScenarioID, attempt.UserID, attempt.Action, attempt.Correct,
		attempt.LevelScore, attempt.TrendScore, attempt.PatienceScore,
	).Scan(&attempt.ID, &attempt.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save attempt: %w", err)
	}
	return nil
}

// ListAttemptsByUser returns a trainee's recent attempts
func (r *Repository) ListAttemptsByUser(ctx context.Context, userID string, limit int) ([]Attempt, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, scenario_id, COALESCE(user_id::text, ''), action, correct,
		       level_score, trend_score, patience_score, created_at
		FROM attempts
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		var a Attempt
		if err := rows.Scan(
			&a.ID, &a.ScenarioID, &a.UserID, &a.Action, &a.Correct,
			&a.LevelScore, &a.TrendScore, &a.PatienceScore, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetAttemptStats aggregates a trainee's attempt history
func (r *Repository) GetAttemptStats(ctx context.Context, userID string) (*AttemptStats, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE correct),
		       COALESCE(AVG(level_score), 0),
		       COALESCE(AVG(trend_score), 0),
		       COALESCE(AVG(patience_score), 0)
		FROM attempts
		WHERE user_id = $1
	`
	stats := &AttemptStats{}
	err := r.db.Pool.QueryRow(ctx, query, userID).Scan(
		&stats.Total, &stats.Correct, &stats.AvgLevel, &stats.AvgTrend, &stats.AvgPatience,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get attempt stats: %w", err)
	}
	if stats.Total > 0 {
		stats.Accuracy = float64(stats.Correct) / float64(stats.Total) * 100
	}

	byDifficulty := `
		SELECT s.difficulty, COUNT(*)
		FROM attempts a
		JOIN scenarios s ON s.id = a.scenario_id
		WHERE a.user_id = $1
		GROUP BY s.difficulty
	`
	rows, err := r.db.Pool.Query(ctx, byDifficulty, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get per-difficulty stats: %w", err)
	}
	defer rows.Close()

	stats.ByDifficulty = make(map[string]int)
	for rows.Next() {
		var difficulty string
		var count int
		if err := rows.Scan(&difficulty, &count); err != nil {
			return nil, fmt.Errorf("failed to scan per-difficulty stats: %w", err)
		}
		stats.ByDifficulty[difficulty] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read per-difficulty stats: %w", err)
	}
	return stats, nil
}
