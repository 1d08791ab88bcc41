package ledger

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github/chapool/go-ledger/internal/util"
)

// Store is the canonical table of requests. Every mutation runs inside Update
// and is applied all-or-nothing.
type Store struct {
	mu sync.Mutex

	address common.Address
	admin   common.Address

	paused            bool
	numRequests       uint64
	requests          map[RequestID]*Request
	trustedModules    map[common.Address]struct{}
	trustedExtensions map[common.Address]struct{}

	events []Event
	sinks  []EventSink

	// pending holds committed batches not yet handed to sinks; one caller at
	// a time drains it.
	pending    []batch
	publishing bool
}

type batch struct {
	ctx    context.Context
	events []Event
}

// NewStore creates an empty store identified by address and administered by admin.
func NewStore(address common.Address, admin common.Address) *Store {
	return &Store{
		address:           address,
		admin:             admin,
		requests:          make(map[RequestID]*Request),
		trustedModules:    make(map[common.Address]struct{}),
		trustedExtensions: make(map[common.Address]struct{}),
	}
}

func (s *Store) Address() common.Address { return s.address }
func (s *Store) Admin() common.Address   { return s.admin }

// AddSink registers a sink for committed events.
func (s *Store) AddSink(sink EventSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sinks = append(s.sinks, sink)
}

// Update runs fn as one store transaction on behalf of caller. Changes and
// events staged by fn are committed only if it returns nil. fn must not call
// back into the store.
//
// Committed events reach sinks in commit order, outside the store lock. A
// sink may call back into the store; the events of that nested call are
// delivered once the current batch has been handed to every sink.
func (s *Store) Update(ctx context.Context, caller common.Address, fn func(tx *Tx) error) ([]Event, error) {
	events, err := s.apply(ctx, caller, fn)
	if err != nil {
		return nil, err
	}

	s.drain()

	return events, nil
}

func (s *Store) apply(ctx context.Context, caller common.Address, fn func(tx *Tx) error) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := newTx(s, caller)
	if err := fn(tx); err != nil {
		return nil, err
	}

	s.commit(tx)
	if len(tx.events) > 0 {
		s.pending = append(s.pending, batch{ctx: ctx, events: tx.events})
	}
	return tx.events, nil
}

// drain publishes pending batches unless another call is already doing so.
func (s *Store) drain() {
	s.mu.Lock()
	if s.publishing {
		s.mu.Unlock()
		return
	}
	s.publishing = true
	s.mu.Unlock()

	done := false
	defer func() {
		if !done {
			s.mu.Lock()
			s.publishing = false
			s.mu.Unlock()
		}
	}()

	for {
		b, sinks, ok := s.next()
		if !ok {
			done = true
			return
		}
		s.publish(b.ctx, sinks, b.events)
	}
}

// next pops the oldest pending batch. With none left it ends the drain.
func (s *Store) next() (batch, []EventSink, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		s.publishing = false
		return batch{}, nil, false
	}
	b := s.pending[0]
	s.pending = s.pending[1:]
	return b, append([]EventSink(nil), s.sinks...), true
}

func (s *Store) commit(tx *Tx) {
	for id, r := range tx.staged {
		s.requests[id] = r
	}
	s.numRequests = tx.numRequests
	if tx.paused != nil {
		s.paused = *tx.paused
	}
	for addr, trusted := range tx.modules {
		if trusted {
			s.trustedModules[addr] = struct{}{}
		} else {
			delete(s.trustedModules, addr)
		}
	}
	for addr, trusted := range tx.extensions {
		if trusted {
			s.trustedExtensions[addr] = struct{}{}
		} else {
			delete(s.trustedExtensions, addr)
		}
	}
	s.events = append(s.events, tx.events...)
}

func (s *Store) publish(ctx context.Context, sinks []EventSink, events []Event) {
	if len(events) == 0 {
		return
	}

	l := util.LogFromContext(ctx).With().Str("component", "ledger").Str("store", s.address.Hex()).Logger()
	l.Debug().Strs("events", EventNames(events)).Msg("Committed ledger transaction")

	for _, sink := range sinks {
		if err := sink.Publish(ctx, events); err != nil {
			l.Error().Err(err).Int("event_count", len(events)).Msg("Failed to publish ledger events")
		}
	}
}

// Request returns a copy of the request with the given id.
func (s *Store) Request(id RequestID) (*Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	return r.clone(), nil
}

// SubPayeesCount returns the number of sub-payees of a request.
func (s *Store) SubPayeesCount(id RequestID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[id]
	if !ok {
		return 0, ErrRequestNotFound
	}
	return len(r.SubPayees), nil
}

// NumRequests returns how many requests have been created.
func (s *Store) NumRequests() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.numRequests
}

func (s *Store) IsTrustedModule(addr common.Address) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.trustedModules[addr]
	return ok
}

func (s *Store) IsTrustedExtension(addr common.Address) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.trustedExtensions[addr]
	return ok
}

func (s *Store) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Events returns the full committed event log.
func (s *Store) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// CreateRequest creates a request owned by caller.
func (s *Store) CreateRequest(ctx context.Context, caller common.Address, params CreateParams) (RequestID, error) {
	var id RequestID
	_, err := s.Update(ctx, caller, func(tx *Tx) error {
		var err error
		id, err = tx.CreateRequest(params)
		return err
	})
	return id, err
}

// CreateRequestFromBytes decodes a packed request and creates it.
func (s *Store) CreateRequestFromBytes(ctx context.Context, caller common.Address, packed []byte) (RequestID, error) {
	params, err := DecodePacked(packed)
	if err != nil {
		return RequestID{}, err
	}
	return s.CreateRequest(ctx, caller, params)
}

func (s *Store) SetPayee(ctx context.Context, caller common.Address, id RequestID, payee common.Address) error {
	return s.single(ctx, caller, func(tx *Tx) error { return tx.SetPayee(id, payee) })
}

func (s *Store) SetPayer(ctx context.Context, caller common.Address, id RequestID, payer common.Address) error {
	return s.single(ctx, caller, func(tx *Tx) error { return tx.SetPayer(id, payer) })
}

func (s *Store) UpdateBalance(ctx context.Context, caller common.Address, id RequestID, payeeIndex int, delta *big.Int) error {
	return s.single(ctx, caller, func(tx *Tx) error { return tx.UpdateBalance(id, payeeIndex, delta) })
}

func (s *Store) UpdateExpectedAmount(ctx context.Context, caller common.Address, id RequestID, payeeIndex int, delta *big.Int) error {
	return s.single(ctx, caller, func(tx *Tx) error { return tx.UpdateExpectedAmount(id, payeeIndex, delta) })
}

func (s *Store) Accept(ctx context.Context, caller common.Address, id RequestID) error {
	return s.single(ctx, caller, func(tx *Tx) error { return tx.Accept(id) })
}

func (s *Store) Cancel(ctx context.Context, caller common.Address, id RequestID) error {
	return s.single(ctx, caller, func(tx *Tx) error { return tx.Cancel(id) })
}

func (s *Store) SetExtension(ctx context.Context, caller common.Address, id RequestID, extension common.Address) error {
	return s.single(ctx, caller, func(tx *Tx) error { return tx.SetExtension(id, extension) })
}

func (s *Store) SetData(ctx context.Context, caller common.Address, id RequestID, data string) error {
	return s.single(ctx, caller, func(tx *Tx) error { return tx.SetData(id, data) })
}

func (s *Store) AddTrustedModule(ctx context.Context, caller common.Address, module common.Address) error {
	return s.single(ctx, caller, func(tx *Tx) error { return tx.AddTrustedModule(module) })
}

func (s *Store) RemoveTrustedModule(ctx context.Context, caller common.Address, module common.Address) error {
	return s.single(ctx, caller, func(tx *Tx) error { return tx.RemoveTrustedModule(module) })
}

func (s *Store) AddTrustedExtension(ctx context.Context, caller common.Address, extension common.Address) error {
	return s.single(ctx, caller, func(tx *Tx) error { return tx.AddTrustedExtension(extension) })
}

func (s *Store) RemoveTrustedExtension(ctx context.Context, caller common.Address, extension common.Address) error {
	return s.single(ctx, caller, func(tx *Tx) error { return tx.RemoveTrustedExtension(extension) })
}

func (s *Store) Pause(ctx context.Context, caller common.Address) error {
	return s.single(ctx, caller, func(tx *Tx) error { return tx.Pause() })
}

func (s *Store) Unpause(ctx context.Context, caller common.Address) error {
	return s.single(ctx, caller, func(tx *Tx) error { return tx.Unpause() })
}

func (s *Store) single(ctx context.Context, caller common.Address, fn func(tx *Tx) error) error {
	_, err := s.Update(ctx, caller, fn)
	return err
}
