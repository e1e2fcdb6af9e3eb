package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veilco/market-creation/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL. Every status
// transition is a conditional UPDATE keyed on the expected current status;
// the database row is the single source of truth, so concurrent transitions
// from a stale read lose cleanly with domain.ErrConflict.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

// trim_scale keeps NUMERIC round-trips canonical: "100" stays "100" rather
// than growing trailing zeros from the column scale.
const marketCols = `uid, type, description, details, resolution_source, end_time,
	tags, category, trim_scale(market_creator_fee_rate)::text, author, metadata,
	trim_scale(min_price)::text, trim_scale(max_price)::text, trim_scale(num_ticks)::text,
	scalar_denomination, status, transaction_hash, activated_at, address,
	created_at, updated_at`

// Create inserts a new market row and returns it with database-assigned
// timestamps.
func (s *MarketStore) Create(ctx context.Context, m domain.Market) (domain.Market, error) {
	tags, metadata, err := encodeJSONFields(m)
	if err != nil {
		return domain.Market{}, err
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO markets (
			uid, type, description, details, resolution_source, end_time,
			tags, category, market_creator_fee_rate, author, metadata,
			min_price, max_price, num_ticks, scalar_denomination, status
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9::numeric, $10, $11,
			$12::numeric, $13::numeric, $14::numeric, $15, $16
		)
		RETURNING `+marketCols,
		m.UID, string(m.Type), m.Description, m.Details, m.ResolutionSource, m.EndTime,
		tags, m.Category, m.MarketCreatorFeeRate, m.Author, metadata,
		m.MinPrice, m.MaxPrice, m.NumTicks, m.ScalarDenomination, string(m.Status),
	)
	created, err := scanMarket(row)
	if err != nil {
		return domain.Market{}, fmt.Errorf("postgres: create market %s: %w", m.UID, err)
	}
	return created, nil
}

// GetByUID retrieves a market by its unique id.
func (s *MarketStore) GetByUID(ctx context.Context, uid string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE uid = $1`, uid)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", uid, err)
	}
	return m, nil
}

// ListByAuthor returns all markets authored by the given address, newest
// first. The match is case-insensitive: addresses arrive in mixed checksum
// casings.
func (s *MarketStore) ListByAuthor(ctx context.Context, author string) ([]domain.Market, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+marketCols+` FROM markets WHERE LOWER(author) = LOWER($1) ORDER BY created_at DESC`,
		author)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets by author: %w", err)
	}
	return collectMarkets(rows)
}

// ListByStatus returns all markets currently in the given lifecycle status.
func (s *MarketStore) ListByStatus(ctx context.Context, status domain.MarketStatus) ([]domain.Market, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+marketCols+` FROM markets WHERE status = $1 ORDER BY created_at ASC`,
		string(status))
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets by status: %w", err)
	}
	return collectMarkets(rows)
}

// UpdateDraft overwrites the content fields of a draft market.
func (s *MarketStore) UpdateDraft(ctx context.Context, m domain.Market) (domain.Market, error) {
	tags, metadata, err := encodeJSONFields(m)
	if err != nil {
		return domain.Market{}, err
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE markets SET
			type = $2, description = $3, details = $4, resolution_source = $5,
			end_time = $6, tags = $7, category = $8,
			market_creator_fee_rate = $9::numeric, metadata = $10,
			min_price = $11::numeric, max_price = $12::numeric,
			num_ticks = $13::numeric, scalar_denomination = $14,
			updated_at = NOW()
		WHERE uid = $1 AND status = 'draft'
		RETURNING `+marketCols,
		m.UID, string(m.Type), m.Description, m.Details, m.ResolutionSource,
		m.EndTime, tags, m.Category,
		m.MarketCreatorFeeRate, metadata,
		m.MinPrice, m.MaxPrice, m.NumTicks, m.ScalarDenomination,
	)
	updated, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, s.missOrConflict(ctx, m.UID)
		}
		return domain.Market{}, fmt.Errorf("postgres: update draft %s: %w", m.UID, err)
	}
	return updated, nil
}

// BeginActivation moves a draft to activating, stamping the transaction
// hash and the activation time used for timeout reversion.
func (s *MarketStore) BeginActivation(ctx context.Context, uid, txHash string, at time.Time) (domain.Market, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE markets SET
			status = 'activating', transaction_hash = $2, activated_at = $3,
			updated_at = NOW()
		WHERE uid = $1 AND status = 'draft'
		RETURNING `+marketCols,
		uid, txHash, at,
	)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, s.missOrConflict(ctx, uid)
		}
		return domain.Market{}, fmt.Errorf("postgres: begin activation %s: %w", uid, err)
	}
	return m, nil
}

// CompleteActivation moves an activating market to active and records the
// deployed contract address.
func (s *MarketStore) CompleteActivation(ctx context.Context, uid, address string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE markets SET
			status = 'active', address = $2, updated_at = NOW()
		WHERE uid = $1 AND status = 'activating'
		RETURNING `+marketCols,
		uid, address,
	)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, s.missOrConflict(ctx, uid)
		}
		return domain.Market{}, fmt.Errorf("postgres: complete activation %s: %w", uid, err)
	}
	return m, nil
}

// RevertActivation moves an activating market back to draft, clearing the
// transaction hash and activation timestamp.
func (s *MarketStore) RevertActivation(ctx context.Context, uid string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE markets SET
			status = 'draft', transaction_hash = NULL, activated_at = NULL,
			updated_at = NOW()
		WHERE uid = $1 AND status = 'activating'
		RETURNING `+marketCols,
		uid,
	)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, s.missOrConflict(ctx, uid)
		}
		return domain.Market{}, fmt.Errorf("postgres: revert activation %s: %w", uid, err)
	}
	return m, nil
}

// missOrConflict distinguishes "row does not exist" from "row exists but a
// concurrent transition already moved it out of the expected status".
func (s *MarketStore) missOrConflict(ctx context.Context, uid string) error {
	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM markets WHERE uid = $1)", uid,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("postgres: check market %s: %w", uid, err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrConflict
}

func encodeJSONFields(m domain.Market) (tags []byte, metadata []byte, err error) {
	if m.Tags == nil {
		m.Tags = []string{}
	}
	tags, err = json.Marshal(m.Tags)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: marshal tags: %w", err)
	}
	if m.Metadata != nil {
		metadata, err = json.Marshal(m.Metadata)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: marshal metadata: %w", err)
		}
	}
	return tags, metadata, nil
}

func scanMarket(row pgx.Row) (domain.Market, error) {
	var (
		m           domain.Market
		typ, status string
		tags        []byte
		metadata    []byte
	)
	err := row.Scan(
		&m.UID, &typ, &m.Description, &m.Details, &m.ResolutionSource, &m.EndTime,
		&tags, &m.Category, &m.MarketCreatorFeeRate, &m.Author, &metadata,
		&m.MinPrice, &m.MaxPrice, &m.NumTicks,
		&m.ScalarDenomination, &status, &m.TransactionHash, &m.ActivatedAt, &m.Address,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	m.Type = domain.MarketType(typ)
	m.Status = domain.MarketStatus(status)
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &m.Tags); err != nil {
			return domain.Market{}, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &m.Metadata); err != nil {
			return domain.Market{}, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return m, nil
}

func collectMarkets(rows pgx.Rows) ([]domain.Market, error) {
	defer rows.Close()
	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: market rows: %w", err)
	}
	return markets, nil
}

// Compile-time interface check.
var _ domain.MarketStore = (*MarketStore)(nil)
