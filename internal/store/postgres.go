package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/climaterisk/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Tenants ---

func (s *PostgresStore) GetDefaultTenant(ctx context.Context) (*models.Tenant, error) {
	var t models.Tenant
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, created_at, updated_at FROM tenants WHERE name = 'default' LIMIT 1`,
	).Scan(&t.ID, &t.Name, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get default tenant: %w", err)
	}
	return &t, nil
}

// --- API Keys ---

const apiKeyColumns = `id, tenant_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at`

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	return collectAPIKeys(rows)
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, tenant_id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key.ID, key.TenantID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context, tenantID uuid.UUID) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE tenant_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return collectAPIKeys(rows)
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`, id, tenantID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func collectAPIKeys(rows pgx.Rows) ([]*models.APIKey, error) {
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.TenantID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

// --- Sites ---

func (s *PostgresStore) CreateSite(ctx context.Context, site *models.Site) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sites (id, tenant_id, name, latitude, longitude, road_address, jibun_address, site_type, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		site.ID, site.TenantID, site.Name, site.Latitude, site.Longitude,
		site.RoadAddress, site.JibunAddress, site.SiteType, site.CreatedAt, site.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create site: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSite(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.Site, error) {
	var site models.Site
	err := s.pool.QueryRow(ctx,
		`SELECT id, tenant_id, name, latitude, longitude, road_address, jibun_address, site_type, created_at, updated_at
		 FROM sites WHERE id = $1 AND tenant_id = $2`, id, tenantID,
	).Scan(&site.ID, &site.TenantID, &site.Name, &site.Latitude, &site.Longitude,
		&site.RoadAddress, &site.JibunAddress, &site.SiteType, &site.CreatedAt, &site.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get site: %w", err)
	}
	return &site, nil
}

// --- Analysis Jobs ---

const jobColumns = `id, tenant_id, site_id, job_token, status, progress, current_node, error_code, error_message,
	started_at, completed_at, estimated_completion_at, created_at, updated_at`

func scanJob(row pgx.Row) (*models.AnalysisJob, error) {
	var j models.AnalysisJob
	err := row.Scan(&j.ID, &j.TenantID, &j.SiteID, &j.JobToken, &j.Status, &j.Progress,
		&j.CurrentNode, &j.ErrorCode, &j.ErrorMessage,
		&j.StartedAt, &j.CompletedAt, &j.EstimatedCompletionAt, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// CreateAnalysisJob inserts a job row. A second queued or running job for the
// same site violates the active-site index and returns ErrDuplicateKey.
func (s *PostgresStore) CreateAnalysisJob(ctx context.Context, job *models.AnalysisJob) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO analysis_jobs (id, tenant_id, site_id, job_token, status, progress, current_node, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		job.ID, job.TenantID, job.SiteID, job.JobToken, job.Status, job.Progress, job.CurrentNode,
		job.CreatedAt, job.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create analysis job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAnalysisJob(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.AnalysisJob, error) {
	j, err := scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM analysis_jobs WHERE id = $1 AND tenant_id = $2`, id, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis job: %w", err)
	}
	return j, nil
}

func (s *PostgresStore) GetAnalysisJobByToken(ctx context.Context, token string) (*models.AnalysisJob, error) {
	j, err := scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM analysis_jobs WHERE job_token = $1`, token))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis job by token: %w", err)
	}
	return j, nil
}

func (s *PostgresStore) GetLatestAnalysisJobForSite(ctx context.Context, siteID uuid.UUID, tenantID uuid.UUID) (*models.AnalysisJob, error) {
	j, err := scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM analysis_jobs WHERE site_id = $1 AND tenant_id = $2
		 ORDER BY created_at DESC LIMIT 1`, siteID, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get latest analysis job: %w", err)
	}
	return j, nil
}

// ListActiveAnalysisJobs returns queued and running jobs that carry an
// upstream token, least recently updated first.
func (s *PostgresStore) ListActiveAnalysisJobs(ctx context.Context, limit int) ([]*models.AnalysisJob, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM analysis_jobs
		 WHERE status IN ('queued', 'running') AND job_token IS NOT NULL
		 ORDER BY updated_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list active analysis jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.AnalysisJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan analysis job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// UpdateAnalysisJob moves a job to status under a row lock and applies opts.
// A same-state update of an active job only changes attributes. Any other move
// must be allowed by models.CanTransition or ErrInvalidTransition is returned.
func (s *PostgresStore) UpdateAnalysisJob(ctx context.Context, id uuid.UUID, status models.JobState, opts ...JobUpdateOption) (*models.AnalysisJob, error) {
	params := ResolveJobUpdate(opts...)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin job update: %w", err)
	}
	defer tx.Rollback(ctx)

	var current models.JobState
	err = tx.QueryRow(ctx, `SELECT status FROM analysis_jobs WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job status: %w", err)
	}

	sameActive := status == current && current.Active()
	if !sameActive && !models.CanTransition(current, status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, status)
	}

	now := time.Now().UTC()
	if params.Now != nil {
		now = params.Now.UTC()
	}

	query := `UPDATE analysis_jobs SET status = $2, updated_at = $3`
	args := []any{id, status, now}
	argIdx := 4

	if status == models.JobStateRunning && current == models.JobStateQueued {
		query += fmt.Sprintf(", started_at = COALESCE(started_at, $%d)", argIdx)
		args = append(args, now)
		argIdx++
	}
	if status.Terminal() {
		query += fmt.Sprintf(", completed_at = $%d", argIdx)
		args = append(args, now)
		argIdx++
	}
	if status == models.JobStateCompleted {
		query += ", progress = 100"
	} else if params.Progress != nil {
		query += fmt.Sprintf(", progress = GREATEST(progress, $%d)", argIdx)
		args = append(args, *params.Progress)
		argIdx++
	}
	if params.CurrentNode != nil {
		query += fmt.Sprintf(", current_node = $%d", argIdx)
		args = append(args, *params.CurrentNode)
		argIdx++
	}
	if status == models.JobStateFailed && params.ErrorCode != nil {
		query += fmt.Sprintf(", error_code = $%d, error_message = $%d", argIdx, argIdx+1)
		args = append(args, *params.ErrorCode, *params.ErrorMessage)
		argIdx += 2
	}
	if params.JobToken != nil {
		query += fmt.Sprintf(", job_token = $%d", argIdx)
		args = append(args, *params.JobToken)
		argIdx++
	}
	if params.EstimatedCompletionAt != nil {
		query += fmt.Sprintf(", estimated_completion_at = $%d", argIdx)
		args = append(args, params.EstimatedCompletionAt.UTC())
	}

	query += " WHERE id = $1 RETURNING " + jobColumns

	job, err := scanJob(tx.QueryRow(ctx, query, args...))
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("update analysis job: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit job update: %w", err)
	}
	return job, nil
}

// PurgeTerminalAnalysisJobs deletes completed and failed jobs that finished
// before olderThan. Active jobs are never touched.
func (s *PostgresStore) PurgeTerminalAnalysisJobs(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM analysis_jobs WHERE status IN ('completed', 'failed') AND completed_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("purge analysis jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
