package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/luckygrid/platform/internal/domain"
	"github.com/luckygrid/platform/internal/infra"
)

const paymentColumns = `id, profile_id, provider, reference, amount_minor, currency, tokens, status, metadata, created_at`

type paymentRepo struct{}

// NewPaymentRepository returns a pgx-backed PaymentRepository.
func NewPaymentRepository() PaymentRepository {
	return &paymentRepo{}
}

func (r *paymentRepo) Create(ctx context.Context, db DBTX, p *domain.Payment) (bool, error) {
	row := db.QueryRow(ctx, `
		INSERT INTO payments (profile_id, provider, reference, amount_minor, currency, tokens, status, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (provider, reference) DO NOTHING
		RETURNING id, created_at`,
		p.ProfileID, p.Provider, p.Reference,
		infra.Int64ToNumeric(p.AmountMinor), p.Currency, p.Tokens,
		string(p.Status), ensureJSON(p.Metadata),
	)
	if err := row.Scan(&p.ID, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("insert payment: %w", err)
	}
	return true, nil
}

func (r *paymentRepo) FindByReference(ctx context.Context, db DBTX, provider, reference string) (*domain.Payment, error) {
	row := db.QueryRow(ctx, `
		SELECT `+paymentColumns+`
		FROM payments WHERE provider = $1 AND reference = $2`, provider, reference)
	return scanPayment(row)
}

func (r *paymentRepo) List(ctx context.Context, db DBTX, limit, offset int) ([]domain.PaymentView, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := db.Query(ctx, `
		SELECT pm.id, pm.profile_id, pm.provider, pm.reference, pm.amount_minor, pm.currency,
		       pm.tokens, pm.status, pm.metadata, pm.created_at, COALESCE(NULLIF(pr.name, ''), 'N/A')
		FROM payments pm
		LEFT JOIN profiles pr ON pr.id = pm.profile_id
		ORDER BY pm.created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()

	var payments []domain.PaymentView
	for rows.Next() {
		var v domain.PaymentView
		var amountNum pgtype.Numeric
		if err := rows.Scan(&v.ID, &v.ProfileID, &v.Provider, &v.Reference, &amountNum, &v.Currency,
			&v.Tokens, &v.Status, &v.Metadata, &v.CreatedAt, &v.UserName); err != nil {
			return nil, fmt.Errorf("scan payment row: %w", err)
		}
		if v.AmountMinor, err = infra.NumericToInt64(amountNum); err != nil {
			return nil, fmt.Errorf("convert payment amount: %w", err)
		}
		payments = append(payments, v)
	}
	return payments, rows.Err()
}

func (r *paymentRepo) Revenue(ctx context.Context, db DBTX) (int64, error) {
	var total pgtype.Numeric
	err := db.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount_minor), 0) FROM payments WHERE status = 'completed'`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum revenue: %w", err)
	}
	return infra.NumericToInt64(total)
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	var amountNum pgtype.Numeric
	err := row.Scan(
		&p.ID, &p.ProfileID, &p.Provider, &p.Reference, &amountNum, &p.Currency,
		&p.Tokens, &p.Status, &p.Metadata, &p.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	p.AmountMinor, err = infra.NumericToInt64(amountNum)
	if err != nil {
		return nil, fmt.Errorf("convert payment amount: %w", err)
	}
	return &p, nil
}
