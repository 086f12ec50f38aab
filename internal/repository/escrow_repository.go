package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/maintenance-escrow/internal/domain"
)

// ErrEscrowExists is returned when a second hold is attempted for a ticket
// that already has an escrow. The unique index makes double-custody a
// persistence-level impossibility, not just a service-level check.
var ErrEscrowExists = errors.New("escrow already exists for ticket")

// EscrowRepository encapsulates escrow persistence. The ledger column is
// append-only: updates always carry the prior entries plus the new one.
type EscrowRepository interface {
	Create(ctx context.Context, escrow *domain.Escrow) error
	Update(ctx context.Context, escrow *domain.Escrow) error
	GetByID(ctx context.Context, id string) (*domain.Escrow, error)
	GetByTicketID(ctx context.Context, ticketID string) (*domain.Escrow, error)
}

type escrowRepository struct {
	pool *pgxpool.Pool
}

// NewEscrowRepository instantiates the Postgres repository.
func NewEscrowRepository(pool *pgxpool.Pool) EscrowRepository {
	return &escrowRepository{pool: pool}
}

func (r *escrowRepository) Create(ctx context.Context, escrow *domain.Escrow) error {
	ledger, err := json.Marshal(escrow.Ledger)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO escrows (contract_id, ticket_id, amount, currency, status,
            provider, payment_ref, ledger, version)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,1)
        ON CONFLICT (ticket_id) DO NOTHING
        RETURNING id, version, created_at, updated_at`
	err = r.pool.QueryRow(ctx, query,
		escrow.ContractID,
		escrow.TicketID,
		escrow.Amount.String(),
		escrow.Currency,
		escrow.Status,
		escrow.Provider,
		escrow.PaymentRef,
		ledger,
	).Scan(&escrow.ID, &escrow.Version, &escrow.CreatedAt, &escrow.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrEscrowExists
	}
	return err
}

func (r *escrowRepository) Update(ctx context.Context, escrow *domain.Escrow) error {
	ledger, err := json.Marshal(escrow.Ledger)
	if err != nil {
		return err
	}
	const query = `
        UPDATE escrows SET status=$1, ledger=$2, version=version+1, updated_at=NOW()
        WHERE id=$3 AND version=$4
        RETURNING version, updated_at`
	err = r.pool.QueryRow(ctx, query,
		escrow.Status,
		ledger,
		escrow.ID,
		escrow.Version,
	).Scan(&escrow.Version, &escrow.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrVersionConflict
	}
	return err
}

const escrowColumns = `id, contract_id, ticket_id, amount::text, currency, status,
       provider, payment_ref, ledger, version, created_at, updated_at`

func (r *escrowRepository) GetByID(ctx context.Context, id string) (*domain.Escrow, error) {
	const query = `SELECT ` + escrowColumns + ` FROM escrows WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *escrowRepository) GetByTicketID(ctx context.Context, ticketID string) (*domain.Escrow, error) {
	const query = `SELECT ` + escrowColumns + ` FROM escrows WHERE ticket_id=$1`
	return r.fetchSingle(ctx, query, ticketID)
}

func (r *escrowRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Escrow, error) {
	var (
		escrow domain.Escrow
		amount string
		ledger []byte
	)
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&escrow.ID,
		&escrow.ContractID,
		&escrow.TicketID,
		&amount,
		&escrow.Currency,
		&escrow.Status,
		&escrow.Provider,
		&escrow.PaymentRef,
		&ledger,
		&escrow.Version,
		&escrow.CreatedAt,
		&escrow.UpdatedAt,
	); err != nil {
		return nil, err
	}
	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, err
	}
	escrow.Amount = parsed
	if len(ledger) > 0 {
		if err := json.Unmarshal(ledger, &escrow.Ledger); err != nil {
			return nil, err
		}
	}
	return &escrow, nil
}
