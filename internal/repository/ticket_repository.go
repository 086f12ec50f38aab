package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/maintenance-escrow/internal/domain"
)

// ErrVersionConflict is returned when an update carries a stale version.
// The caller lost the per-ticket race and must re-read before retrying.
var ErrVersionConflict = errors.New("version conflict")

// TicketRepository encapsulates ticket persistence. Update performs a
// compare-and-swap on the version column; it never overwrites a row that
// moved underneath the caller.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListForAccount(ctx context.Context, accountID string, limit, offset int) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the Postgres repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, contract_id, property_id, opened_by, owner_id, pro_id,
       service, title, description, status, quote, extra, appointment,
       invoice_url, escrow_id, history, version, created_at, updated_at, closed_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	quote, extra, appointment, history, err := marshalTicketDocs(ticket)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO tickets (contract_id, property_id, opened_by, owner_id, pro_id,
            service, title, description, status, quote, extra, appointment,
            invoice_url, escrow_id, history, version)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,1)
        RETURNING id, version, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.ContractID,
		ticket.PropertyID,
		ticket.OpenedBy,
		ticket.OwnerID,
		ticket.ProID,
		ticket.Service,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		quote,
		extra,
		appointment,
		ticket.InvoiceURL,
		ticket.EscrowID,
		history,
	).Scan(&ticket.ID, &ticket.Version, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	quote, extra, appointment, history, err := marshalTicketDocs(ticket)
	if err != nil {
		return err
	}
	const query = `
        UPDATE tickets SET pro_id=$1, status=$2, quote=$3, extra=$4, appointment=$5,
            invoice_url=$6, escrow_id=$7, history=$8, closed_at=$9,
            version=version+1, updated_at=NOW()
        WHERE id=$10 AND version=$11
        RETURNING version, updated_at`
	err = r.pool.QueryRow(ctx, query,
		ticket.ProID,
		ticket.Status,
		quote,
		extra,
		appointment,
		ticket.InvoiceURL,
		ticket.EscrowID,
		history,
		ticket.ClosedAt,
		ticket.ID,
		ticket.Version,
	).Scan(&ticket.Version, &ticket.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrVersionConflict
	}
	return err
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1`, ticketColumns)
	row := r.pool.QueryRow(ctx, query, id)
	return scanTicket(row)
}

func (r *ticketRepository) ListForAccount(ctx context.Context, accountID string, limit, offset int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf(`
        SELECT %s FROM tickets
        WHERE opened_by=$1 OR owner_id=$1 OR pro_id=$1
        ORDER BY updated_at DESC LIMIT %d OFFSET %d`, ticketColumns, limit, offset)
	rows, err := r.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (*domain.Ticket, error) {
	var (
		ticket      domain.Ticket
		quote       []byte
		extra       []byte
		appointment []byte
		history     []byte
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.ContractID,
		&ticket.PropertyID,
		&ticket.OpenedBy,
		&ticket.OwnerID,
		&ticket.ProID,
		&ticket.Service,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&quote,
		&extra,
		&appointment,
		&ticket.InvoiceURL,
		&ticket.EscrowID,
		&history,
		&ticket.Version,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ClosedAt,
	); err != nil {
		return nil, err
	}
	if err := unmarshalTicketDocs(&ticket, quote, extra, appointment, history); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func marshalTicketDocs(ticket *domain.Ticket) (quote, extra, appointment, history []byte, err error) {
	if ticket.Quote != nil {
		if quote, err = json.Marshal(ticket.Quote); err != nil {
			return nil, nil, nil, nil, err
		}
	}
	if ticket.Extra != nil {
		if extra, err = json.Marshal(ticket.Extra); err != nil {
			return nil, nil, nil, nil, err
		}
	}
	if ticket.Appointment != nil {
		if appointment, err = json.Marshal(ticket.Appointment); err != nil {
			return nil, nil, nil, nil, err
		}
	}
	events := ticket.History
	if events == nil {
		events = []domain.TicketEvent{}
	}
	if history, err = json.Marshal(events); err != nil {
		return nil, nil, nil, nil, err
	}
	return quote, extra, appointment, history, nil
}

func unmarshalTicketDocs(ticket *domain.Ticket, quote, extra, appointment, history []byte) error {
	if len(quote) > 0 {
		ticket.Quote = &domain.Quote{}
		if err := json.Unmarshal(quote, ticket.Quote); err != nil {
			return err
		}
	}
	if len(extra) > 0 {
		ticket.Extra = &domain.Extra{}
		if err := json.Unmarshal(extra, ticket.Extra); err != nil {
			return err
		}
	}
	if len(appointment) > 0 {
		ticket.Appointment = &domain.Appointment{}
		if err := json.Unmarshal(appointment, ticket.Appointment); err != nil {
			return err
		}
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &ticket.History); err != nil {
			return err
		}
	}
	return nil
}
