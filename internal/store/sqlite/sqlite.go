package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nulzo/tier-router/internal/store"
	"github.com/nulzo/tier-router/internal/store/model"
)

// DB defines the interface for database operations (satisfied by *sqlx.DB and *sqlx.Tx)
type DB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// SqliteRepository implements store.Repository
type SqliteRepository struct {
	db       *sqlx.DB // Required for starting new transactions
	executor DB       // Used for actual queries (can be *sqlx.DB or *sqlx.Tx)
}

func NewSqliteRepository(db *sqlx.DB) *SqliteRepository {
	return &SqliteRepository{
		db:       db,
		executor: db,
	}
}

func (r *SqliteRepository) Close() error {
	return r.db.Close()
}

func (r *SqliteRepository) WithTx(ctx context.Context, fn func(repo store.Repository) error) error {
	if _, nested := r.executor.(*sqlx.Tx); nested {
		return fn(r)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	txRepo := &SqliteRepository{
		db:       r.db,
		executor: tx,
	}

	if err := fn(txRepo); err != nil {
		// attempt rollback, but prioritize original error
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

func (r *SqliteRepository) Requests() store.RequestRepository {
	return &requestRepo{db: r.executor, repo: r}
}

func (r *SqliteRepository) Pricing() store.PricingRepository {
	return &pricingRepo{db: r.executor}
}

type requestRepo struct {
	db   DB
	repo *SqliteRepository
}

const insertRequestLog = `
	INSERT INTO request_logs (
		id, tier, model_id, provider_id, status, error_message,
		input_tokens, output_tokens, latency_ms, ttft_ms,
		total_cost_micros, is_streamed, is_fallback, created_at
	) VALUES (
		:id, :tier, :model_id, :provider_id, :status, :error_message,
		:input_tokens, :output_tokens, :latency_ms, :ttft_ms,
		:total_cost_micros, :is_streamed, :is_fallback, :created_at
	)`

func (r *requestRepo) Log(ctx context.Context, log *model.RequestLog) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	log.CreatedAt = log.CreatedAt.UTC()
	_, err := r.db.NamedExecContext(ctx, insertRequestLog, log)
	return err
}

func (r *requestRepo) LogBatch(ctx context.Context, logs []*model.RequestLog) error {
	if len(logs) == 0 {
		return nil
	}
	return r.repo.WithTx(ctx, func(tx store.Repository) error {
		for _, l := range logs {
			if err := tx.Requests().Log(ctx, l); err != nil {
				return fmt.Errorf("failed to log request %s: %w", l.ID, err)
			}
		}
		return nil
	})
}

func (r *requestRepo) GetByID(ctx context.Context, id string) (*model.RequestLog, error) {
	var log model.RequestLog
	err := r.db.GetContext(ctx, &log, `SELECT * FROM request_logs WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &log, nil
}

// SQLite date offset format is '-7 days'
func since(days int) string {
	return fmt.Sprintf("-%d days", days)
}

func (r *requestRepo) GetDailyStats(ctx context.Context, days int) ([]model.DailyStats, error) {
	stats := []model.DailyStats{}
	query := `
		SELECT
			DATE(created_at) as date,
			tier,
			COUNT(*) as total_requests,
			COALESCE(SUM(input_tokens + output_tokens), 0) as total_tokens,
			COALESCE(SUM(total_cost_micros), 0) as total_cost_micros,
			COALESCE(AVG(latency_ms), 0) as avg_latency
		FROM request_logs
		WHERE created_at >= DATE('now', ?)
		GROUP BY date, tier
		ORDER BY date DESC, tier
	`
	err := r.db.SelectContext(ctx, &stats, query, since(days))
	return stats, err
}

func (r *requestRepo) GetTierStats(ctx context.Context, days int) ([]model.TierStats, error) {
	stats := []model.TierStats{}
	query := `
		SELECT
			tier,
			COUNT(*) as total_requests,
			COALESCE(SUM(CASE WHEN is_fallback THEN 1 ELSE 0 END), 0) as fallback_count,
			COALESCE(SUM(CASE WHEN status != 'completed' THEN 1 ELSE 0 END), 0) as failed_count,
			COALESCE(SUM(input_tokens + output_tokens), 0) as total_tokens,
			COALESCE(SUM(total_cost_micros), 0) as total_cost_micros
		FROM request_logs
		WHERE created_at >= DATE('now', ?)
		GROUP BY tier
		ORDER BY tier
	`
	err := r.db.SelectContext(ctx, &stats, query, since(days))
	return stats, err
}

type pricingRepo struct {
	db DB
}

func (r *pricingRepo) Get(ctx context.Context, modelID string) (*model.ModelPricing, error) {
	var p model.ModelPricing
	err := r.db.GetContext(ctx, &p, `SELECT * FROM model_pricing WHERE model_id = ?`, modelID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *pricingRepo) List(ctx context.Context) ([]model.ModelPricing, error) {
	prices := []model.ModelPricing{}
	err := r.db.SelectContext(ctx, &prices, `SELECT * FROM model_pricing ORDER BY model_id`)
	return prices, err
}

func (r *pricingRepo) Upsert(ctx context.Context, prices []model.ModelPricing) error {
	query := `
	INSERT INTO model_pricing (
		model_id, input_cost_micros_per_1k, output_cost_micros_per_1k, updated_at
	) VALUES (
		:model_id, :input_cost_micros_per_1k, :output_cost_micros_per_1k, CURRENT_TIMESTAMP
	)
	ON CONFLICT(model_id) DO UPDATE SET
		input_cost_micros_per_1k = excluded.input_cost_micros_per_1k,
		output_cost_micros_per_1k = excluded.output_cost_micros_per_1k,
		updated_at = CURRENT_TIMESTAMP`

	for _, p := range prices {
		if _, err := r.db.NamedExecContext(ctx, query, p); err != nil {
			return fmt.Errorf("failed to upsert price for %s: %w", p.ModelID, err)
		}
	}
	return nil
}
