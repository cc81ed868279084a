package testhelpers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"itcwallet/domain/entities"
	"itcwallet/domain/events"
	"itcwallet/domain/interfaces"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemoryStore is an in-memory stand-in for the Postgres store. Units of work created
// from it run one at a time and see a private copy of the data until they commit.
type MemoryStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	state     *memoryState
	published []events.Event
	seq       int64

	// FailCommits makes the next n commits fail after rollback
	FailCommits int
	// OnBegin is called at the start of every unit of work
	OnBegin func() error
}

type memoryState struct {
	wallets      map[string]entities.Wallet
	transactions []entities.Transaction
	cashouts     map[uuid.UUID]entities.CashoutRequest
	destinations map[string]entities.DestinationAccount
	webhooks     map[string]entities.WebhookEventRecord
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: &memoryState{
			wallets:      map[string]entities.Wallet{},
			cashouts:     map[uuid.UUID]entities.CashoutRequest{},
			destinations: map[string]entities.DestinationAccount{},
			webhooks:     map[string]entities.WebhookEventRecord{},
		},
	}
}

func (s *memoryState) clone() *memoryState {
	c := &memoryState{
		wallets:      make(map[string]entities.Wallet, len(s.wallets)),
		transactions: append([]entities.Transaction(nil), s.transactions...),
		cashouts:     make(map[uuid.UUID]entities.CashoutRequest, len(s.cashouts)),
		destinations: make(map[string]entities.DestinationAccount, len(s.destinations)),
		webhooks:     make(map[string]entities.WebhookEventRecord, len(s.webhooks)),
	}
	for k, v := range s.wallets {
		c.wallets[k] = v
	}
	for k, v := range s.cashouts {
		c.cashouts[k] = v
	}
	for k, v := range s.destinations {
		c.destinations[k] = v
	}
	for k, v := range s.webhooks {
		c.webhooks[k] = v
	}
	return c
}

// Create implements interfaces.UnitOfWorkFactory
func (s *MemoryStore) Create() interfaces.UnitOfWork {
	return &memoryUnitOfWork{store: s}
}

// Published returns the events flushed by committed units of work
func (s *MemoryStore) Published() []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]events.Event(nil), s.published...)
}

// Wallet returns a copy of the committed wallet, or nil
func (s *MemoryStore) Wallet(userID string) *entities.Wallet {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.state.wallets[userID]
	if !ok {
		return nil
	}
	return &w
}

// Transactions returns the committed transactions of a user, oldest first
func (s *MemoryStore) Transactions(userID string) []*entities.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entities.Transaction
	for i := range s.state.transactions {
		if s.state.transactions[i].UserID == userID {
			tx := s.state.transactions[i]
			out = append(out, &tx)
		}
	}
	return out
}

// Cashout returns a copy of a committed cash-out request, or nil
func (s *MemoryStore) Cashout(id uuid.UUID) *entities.CashoutRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.state.cashouts[id]
	if !ok {
		return nil
	}
	return &c
}

// Cashouts returns every committed cash-out request
func (s *MemoryStore) Cashouts() []*entities.CashoutRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entities.CashoutRequest, 0, len(s.state.cashouts))
	for _, c := range s.state.cashouts {
		c := c
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.Before(out[j].RequestedAt) })
	return out
}

// SeedWallet stores a wallet and a matching opening transaction
func (s *MemoryStore) SeedWallet(userID string, balance string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	w := entities.NewWallet(userID)
	w.CreatedAt, w.UpdatedAt = now, now
	amount := decimal.RequireFromString(balance)
	w.TokenBalance = amount
	w.LifetimeTokensEarned = amount
	s.state.wallets[userID] = *w
	if amount.IsPositive() {
		s.seq++
		s.state.transactions = append(s.state.transactions, entities.Transaction{
			ID:           uuid.New(),
			Seq:          s.seq,
			UserID:       userID,
			Type:         entities.TransactionTypeAdminAdjustment,
			Amount:       amount,
			BalanceAfter: amount,
			Reason:       "opening balance",
			Metadata:     map[string]any{},
			CreatedAt:    now,
		})
	}
}

// SeedDestination stores a destination account
func (s *MemoryStore) SeedDestination(account *entities.DestinationAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.destinations[account.UserID] = *account
}

// SeedCashout stores a cash-out request as it is
func (s *MemoryStore) SeedCashout(request *entities.CashoutRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.cashouts[request.ID] = *request
}

// memoryUnitOfWork implements interfaces.UnitOfWork on top of MemoryStore
type memoryUnitOfWork struct {
	store   *MemoryStore
	working *memoryState
	pending []events.Event
	active  bool
}

func (u *memoryUnitOfWork) Begin(ctx context.Context) error {
	if u.active {
		return errors.New("transaction already started")
	}
	if u.store.OnBegin != nil {
		if err := u.store.OnBegin(); err != nil {
			return err
		}
	}
	u.store.txMu.Lock()
	u.store.mu.Lock()
	u.working = u.store.state.clone()
	u.store.mu.Unlock()
	u.pending = nil
	u.active = true
	return nil
}

func (u *memoryUnitOfWork) Commit() error {
	if !u.active {
		return errors.New("no transaction to commit")
	}
	defer u.finish()

	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	if u.store.FailCommits > 0 {
		u.store.FailCommits--
		return errors.New("commit failed: connection reset")
	}
	u.store.state = u.working
	u.store.published = append(u.store.published, u.pending...)
	return nil
}

func (u *memoryUnitOfWork) Rollback() error {
	if !u.active {
		return nil
	}
	u.finish()
	return nil
}

func (u *memoryUnitOfWork) finish() {
	u.working = nil
	u.pending = nil
	u.active = false
	u.store.txMu.Unlock()
}

func (u *memoryUnitOfWork) mustBeActive() {
	if !u.active {
		panic("unit of work not started")
	}
}

func (u *memoryUnitOfWork) WalletRepository() interfaces.WalletRepository {
	u.mustBeActive()
	return &memoryWalletRepo{uow: u}
}

func (u *memoryUnitOfWork) TransactionRepository() interfaces.TransactionRepository {
	u.mustBeActive()
	return &memoryTransactionRepo{uow: u}
}

func (u *memoryUnitOfWork) CashoutRepository() interfaces.CashoutRepository {
	u.mustBeActive()
	return &memoryCashoutRepo{uow: u}
}

func (u *memoryUnitOfWork) DestinationAccountRepository() interfaces.DestinationAccountRepository {
	u.mustBeActive()
	return &memoryDestinationRepo{uow: u}
}

func (u *memoryUnitOfWork) WebhookEventRepository() interfaces.WebhookEventRepository {
	u.mustBeActive()
	return &memoryWebhookRepo{uow: u}
}

func (u *memoryUnitOfWork) EventBus() interfaces.EventPublisher {
	u.mustBeActive()
	return memoryPublisher{uow: u}
}

type memoryPublisher struct {
	uow *memoryUnitOfWork
}

func (p memoryPublisher) Publish(event events.Event) error {
	p.uow.pending = append(p.uow.pending, event)
	return nil
}

type memoryWalletRepo struct {
	uow *memoryUnitOfWork
}

func (r *memoryWalletRepo) GetForUpdate(ctx context.Context, userID string) (*entities.Wallet, error) {
	w, ok := r.uow.working.wallets[userID]
	if !ok {
		w = *entities.NewWallet(userID)
		w.CreatedAt, w.UpdatedAt = time.Now(), time.Now()
		r.uow.working.wallets[userID] = w
	}
	return &w, nil
}

func (r *memoryWalletRepo) GetByUserID(ctx context.Context, userID string) (*entities.Wallet, error) {
	w, ok := r.uow.working.wallets[userID]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (r *memoryWalletRepo) UpdateBalance(ctx context.Context, wallet *entities.Wallet) error {
	if wallet.TokenBalance.IsNegative() {
		return fmt.Errorf("wallet balance check violated for %s", wallet.UserID)
	}
	r.uow.working.wallets[wallet.UserID] = *wallet
	return nil
}

func (r *memoryWalletRepo) SetStatus(ctx context.Context, userID string, status entities.WalletStatus) error {
	w, ok := r.uow.working.wallets[userID]
	if !ok {
		w = *entities.NewWallet(userID)
	}
	w.Status = status
	r.uow.working.wallets[userID] = w
	return nil
}

type memoryTransactionRepo struct {
	uow *memoryUnitOfWork
}

func (r *memoryTransactionRepo) Create(ctx context.Context, tx *entities.Transaction) error {
	if tx.ReferenceID != nil && tx.Type.RequiresUniqueReference() {
		for _, existing := range r.uow.working.transactions {
			if existing.UserID == tx.UserID && existing.Type == tx.Type &&
				existing.ReferenceID != nil && *existing.ReferenceID == *tx.ReferenceID {
				return entities.ErrDuplicateEntry
			}
		}
	}
	r.uow.store.mu.Lock()
	r.uow.store.seq++
	tx.Seq = r.uow.store.seq
	r.uow.store.mu.Unlock()
	r.uow.working.transactions = append(r.uow.working.transactions, *tx)
	return nil
}

func (r *memoryTransactionRepo) FindByReference(ctx context.Context, userID string, txType entities.TransactionType, referenceID string) (*entities.Transaction, error) {
	for _, tx := range r.uow.working.transactions {
		if tx.UserID == userID && tx.Type == txType && tx.ReferenceID != nil && *tx.ReferenceID == referenceID {
			found := tx
			return &found, nil
		}
	}
	return nil, nil
}

func (r *memoryTransactionRepo) GetByUser(ctx context.Context, userID string, limit, offset int) ([]*entities.Transaction, error) {
	all, _ := r.GetAllByUser(ctx, userID)
	out := make([]*entities.Transaction, 0, limit)
	for i := len(all) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (r *memoryTransactionRepo) GetAllByUser(ctx context.Context, userID string) ([]*entities.Transaction, error) {
	var out []*entities.Transaction
	for _, tx := range r.uow.working.transactions {
		if tx.UserID == userID {
			tx := tx
			out = append(out, &tx)
		}
	}
	return out, nil
}

func (r *memoryTransactionRepo) CountByUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	for _, tx := range r.uow.working.transactions {
		if tx.UserID == userID {
			n++
		}
	}
	return n, nil
}

type memoryCashoutRepo struct {
	uow *memoryUnitOfWork
}

func (r *memoryCashoutRepo) Create(ctx context.Context, request *entities.CashoutRequest) error {
	if _, ok := r.uow.working.cashouts[request.ID]; ok {
		return fmt.Errorf("cash-out %s already exists", request.ID)
	}
	r.uow.working.cashouts[request.ID] = *request
	return nil
}

func (r *memoryCashoutRepo) GetByID(ctx context.Context, id uuid.UUID) (*entities.CashoutRequest, error) {
	c, ok := r.uow.working.cashouts[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *memoryCashoutRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.CashoutRequest, error) {
	return r.GetByID(ctx, id)
}

func (r *memoryCashoutRepo) Update(ctx context.Context, request *entities.CashoutRequest) error {
	if _, ok := r.uow.working.cashouts[request.ID]; !ok {
		return fmt.Errorf("cash-out %s not found", request.ID)
	}
	r.uow.working.cashouts[request.ID] = *request
	return nil
}

func (r *memoryCashoutRepo) GetStaleReserved(ctx context.Context, requestedBefore time.Time, limit int) ([]*entities.CashoutRequest, error) {
	var out []*entities.CashoutRequest
	for _, c := range r.uow.working.cashouts {
		if c.Status == entities.CashoutStatusReserved && c.RequestedAt.Before(requestedBefore) {
			c := c
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.Before(out[j].RequestedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memoryDestinationRepo struct {
	uow *memoryUnitOfWork
}

func (r *memoryDestinationRepo) GetByUserID(ctx context.Context, userID string) (*entities.DestinationAccount, error) {
	d, ok := r.uow.working.destinations[userID]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (r *memoryDestinationRepo) GetByExternalID(ctx context.Context, externalAccountID string) (*entities.DestinationAccount, error) {
	for _, d := range r.uow.working.destinations {
		if d.ExternalAccountID == externalAccountID {
			d := d
			return &d, nil
		}
	}
	return nil, nil
}

func (r *memoryDestinationRepo) Upsert(ctx context.Context, account *entities.DestinationAccount) error {
	r.uow.working.destinations[account.UserID] = *account
	return nil
}

type memoryWebhookRepo struct {
	uow *memoryUnitOfWork
}

func (r *memoryWebhookRepo) Exists(ctx context.Context, eventID string) (bool, error) {
	_, ok := r.uow.working.webhooks[eventID]
	return ok, nil
}

func (r *memoryWebhookRepo) Record(ctx context.Context, record *entities.WebhookEventRecord) error {
	if _, ok := r.uow.working.webhooks[record.EventID]; ok {
		return entities.ErrDuplicateWebhookEvent
	}
	r.uow.working.webhooks[record.EventID] = *record
	return nil
}
