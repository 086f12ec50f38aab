package repository

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/maintenance-escrow/internal/domain"
)

// In-memory repositories back the service in tests and in development runs
// without a POSTGRES_DSN. They mirror the Postgres semantics exactly:
// version compare-and-swap on update, a unique escrow per ticket, and
// pgx.ErrNoRows for missing rows so error mapping stays uniform.

// MemoryTicketRepository is the in-memory TicketRepository.
type MemoryTicketRepository struct {
	mu      sync.RWMutex
	tickets map[string]*domain.Ticket
	seq     int64
}

// NewMemoryTicketRepository constructs an empty repository.
func NewMemoryTicketRepository() *MemoryTicketRepository {
	return &MemoryTicketRepository{tickets: make(map[string]*domain.Ticket)}
}

func (r *MemoryTicketRepository) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	now := time.Now().UTC()
	ticket.ID = "tck_" + strconv.FormatInt(r.seq, 10)
	ticket.Version = 1
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	r.tickets[ticket.ID] = cloneTicket(ticket)
	return nil
}

func (r *MemoryTicketRepository) Update(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[ticket.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if stored.Version != ticket.Version {
		return ErrVersionConflict
	}
	ticket.Version++
	ticket.UpdatedAt = time.Now().UTC()
	r.tickets[ticket.ID] = cloneTicket(ticket)
	return nil
}

func (r *MemoryTicketRepository) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneTicket(stored), nil
}

func (r *MemoryTicketRepository) ListForAccount(_ context.Context, accountID string, limit, offset int) ([]domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if limit <= 0 {
		limit = 20
	}
	var matched []domain.Ticket
	for _, ticket := range r.tickets {
		if ticket.OpenedBy == accountID || ticket.OwnerID == accountID ||
			(ticket.ProID != nil && *ticket.ProID == accountID) {
			matched = append(matched, *cloneTicket(ticket))
		}
	}
	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// MemoryEscrowRepository is the in-memory EscrowRepository.
type MemoryEscrowRepository struct {
	mu       sync.RWMutex
	escrows  map[string]*domain.Escrow
	byTicket map[string]string
	seq      int64
}

// NewMemoryEscrowRepository constructs an empty repository.
func NewMemoryEscrowRepository() *MemoryEscrowRepository {
	return &MemoryEscrowRepository{
		escrows:  make(map[string]*domain.Escrow),
		byTicket: make(map[string]string),
	}
}

func (r *MemoryEscrowRepository) Create(_ context.Context, escrow *domain.Escrow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byTicket[escrow.TicketID]; exists {
		return ErrEscrowExists
	}
	r.seq++
	now := time.Now().UTC()
	escrow.ID = "esc_" + strconv.FormatInt(r.seq, 10)
	escrow.Version = 1
	escrow.CreatedAt = now
	escrow.UpdatedAt = now
	r.escrows[escrow.ID] = cloneEscrow(escrow)
	r.byTicket[escrow.TicketID] = escrow.ID
	return nil
}

func (r *MemoryEscrowRepository) Update(_ context.Context, escrow *domain.Escrow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.escrows[escrow.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if stored.Version != escrow.Version {
		return ErrVersionConflict
	}
	escrow.Version++
	escrow.UpdatedAt = time.Now().UTC()
	r.escrows[escrow.ID] = cloneEscrow(escrow)
	return nil
}

func (r *MemoryEscrowRepository) GetByID(_ context.Context, id string) (*domain.Escrow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored, ok := r.escrows[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneEscrow(stored), nil
}

func (r *MemoryEscrowRepository) GetByTicketID(_ context.Context, ticketID string) (*domain.Escrow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byTicket[ticketID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneEscrow(r.escrows[id]), nil
}

// MemoryAccountRepository is the in-memory AccountRepository.
type MemoryAccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
	byEmail  map[string]string
	seq      int64
}

// NewMemoryAccountRepository constructs an empty repository.
func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{
		accounts: make(map[string]*domain.Account),
		byEmail:  make(map[string]string),
	}
}

func (r *MemoryAccountRepository) Create(_ context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	now := time.Now().UTC()
	account.ID = "acc_" + strconv.FormatInt(r.seq, 10)
	account.CreatedAt = now
	account.UpdatedAt = now
	copied := *account
	r.accounts[account.ID] = &copied
	r.byEmail[account.Email] = account.ID
	return nil
}

func (r *MemoryAccountRepository) Update(_ context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[account.ID]; !ok {
		return pgx.ErrNoRows
	}
	account.UpdatedAt = time.Now().UTC()
	copied := *account
	r.accounts[account.ID] = &copied
	return nil
}

func (r *MemoryAccountRepository) GetByID(_ context.Context, id string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored, ok := r.accounts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *stored
	return &copied, nil
}

func (r *MemoryAccountRepository) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[email]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *r.accounts[id]
	return &copied, nil
}

// MemoryPasswordResetRepository is the in-memory PasswordResetRepository.
type MemoryPasswordResetRepository struct {
	mu     sync.Mutex
	tokens map[string]*PasswordResetToken
	seq    int64
}

// NewMemoryPasswordResetRepository constructs an empty repository.
func NewMemoryPasswordResetRepository() *MemoryPasswordResetRepository {
	return &MemoryPasswordResetRepository{tokens: make(map[string]*PasswordResetToken)}
}

func (r *MemoryPasswordResetRepository) Create(_ context.Context, token *PasswordResetToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	token.ID = "prt_" + strconv.FormatInt(r.seq, 10)
	token.CreatedAt = time.Now().UTC()
	copied := *token
	r.tokens[token.Token] = &copied
	return nil
}

func (r *MemoryPasswordResetRepository) GetByToken(_ context.Context, tokenStr string) (*PasswordResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tokens[tokenStr]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *stored
	return &copied, nil
}

func (r *MemoryPasswordResetRepository) MarkUsed(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, token := range r.tokens {
		if token.ID == id {
			now := time.Now().UTC()
			token.UsedAt = &now
			return nil
		}
	}
	return pgx.ErrNoRows
}

func cloneTicket(t *domain.Ticket) *domain.Ticket {
	copied := *t
	copied.PropertyID = cloneStringPtr(t.PropertyID)
	copied.ProID = cloneStringPtr(t.ProID)
	copied.InvoiceURL = cloneStringPtr(t.InvoiceURL)
	copied.EscrowID = cloneStringPtr(t.EscrowID)
	copied.ClosedAt = cloneTimePtr(t.ClosedAt)
	if t.Quote != nil {
		quote := *t.Quote
		copied.Quote = &quote
	}
	if t.Extra != nil {
		extra := *t.Extra
		extra.DecidedAt = cloneTimePtr(t.Extra.DecidedAt)
		copied.Extra = &extra
	}
	if t.Appointment != nil {
		appointment := *t.Appointment
		appointment.ConfirmedAt = cloneTimePtr(t.Appointment.ConfirmedAt)
		copied.Appointment = &appointment
	}
	if t.History != nil {
		copied.History = make([]domain.TicketEvent, len(t.History))
		for i, ev := range t.History {
			copied.History[i] = ev
			if ev.Payload != nil {
				payload := make(map[string]any, len(ev.Payload))
				for k, v := range ev.Payload {
					payload[k] = v
				}
				copied.History[i].Payload = payload
			}
		}
	}
	return &copied
}

func cloneEscrow(e *domain.Escrow) *domain.Escrow {
	copied := *e
	if e.Ledger != nil {
		copied.Ledger = make([]domain.LedgerEntry, len(e.Ledger))
		for i, entry := range e.Ledger {
			copied.Ledger[i] = entry
			if entry.Payload != nil {
				payload := make(map[string]any, len(entry.Payload))
				for k, v := range entry.Payload {
					payload[k] = v
				}
				copied.Ledger[i].Payload = payload
			}
		}
	}
	return &copied
}

func cloneStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	copied := *s
	return &copied
}

func cloneTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	copied := *t
	return &copied
}
