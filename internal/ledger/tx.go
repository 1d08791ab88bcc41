package ledger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Tx is a staged store transaction. Reads see the transaction's own writes.
type Tx struct {
	store  *Store
	caller common.Address

	staged      map[RequestID]*Request
	numRequests uint64
	paused      *bool
	modules     map[common.Address]bool
	extensions  map[common.Address]bool
	events      []Event
}

func newTx(s *Store, caller common.Address) *Tx {
	return &Tx{
		store:       s,
		caller:      caller,
		staged:      make(map[RequestID]*Request),
		numRequests: s.numRequests,
		modules:     make(map[common.Address]bool),
		extensions:  make(map[common.Address]bool),
	}
}

// Caller is the identity the transaction runs as.
func (tx *Tx) Caller() common.Address {
	return tx.caller
}

// Events lists the events staged so far.
func (tx *Tx) Events() []Event {
	return tx.events
}

func (tx *Tx) emit(e Event) {
	tx.events = append(tx.events, e)
}

// Request returns a copy of a request as seen by the transaction.
func (tx *Tx) Request(id RequestID) (*Request, error) {
	r, err := tx.load(id)
	if err != nil {
		return nil, err
	}
	return r.clone(), nil
}

func (tx *Tx) load(id RequestID) (*Request, error) {
	if r, ok := tx.staged[id]; ok {
		return r, nil
	}
	r, ok := tx.store.requests[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	return r, nil
}

// owned returns a writable staged copy of a request owned by the caller.
func (tx *Tx) owned(id RequestID) (*Request, error) {
	if r, ok := tx.staged[id]; ok {
		if r.Module != tx.caller {
			return nil, ErrNotOwner
		}
		return r, nil
	}
	r, ok := tx.store.requests[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	if r.Module != tx.caller {
		return nil, ErrNotOwner
	}
	c := r.clone()
	tx.staged[id] = c
	return c, nil
}

func (tx *Tx) isPaused() bool {
	if tx.paused != nil {
		return *tx.paused
	}
	return tx.store.paused
}

func (tx *Tx) isTrustedModule(addr common.Address) bool {
	if trusted, ok := tx.modules[addr]; ok {
		return trusted
	}
	_, ok := tx.store.trustedModules[addr]
	return ok
}

func (tx *Tx) isTrustedExtension(addr common.Address) bool {
	if trusted, ok := tx.extensions[addr]; ok {
		return trusted
	}
	_, ok := tx.store.trustedExtensions[addr]
	return ok
}

// CreateRequest allocates the next id and stores a new request owned by the caller.
func (tx *Tx) CreateRequest(params CreateParams) (RequestID, error) {
	if !tx.isTrustedModule(tx.caller) {
		return RequestID{}, ErrNotTrustedModule
	}
	if tx.isPaused() {
		return RequestID{}, ErrStorePaused
	}
	if params.Creator == (common.Address{}) {
		return RequestID{}, ErrMissingCreator
	}
	for i, p := range params.Payees {
		if err := CheckAmount(p.ExpectedAmount); err != nil {
			return RequestID{}, err
		}
		if i > 0 && p.Address == (common.Address{}) {
			return RequestID{}, ErrMissingSubPayee
		}
	}
	if params.Extension != (common.Address{}) && !tx.isTrustedExtension(params.Extension) {
		return RequestID{}, ErrUntrustedExtension
	}

	tx.numRequests++
	id := NewRequestID(tx.store.address, tx.numRequests)

	r := &Request{
		ID:             id,
		Creator:        params.Creator,
		Payer:          params.Payer,
		Module:         tx.caller,
		ExpectedAmount: new(big.Int),
		Balance:        new(big.Int),
		State:          StateCreated,
		Extension:      params.Extension,
		Data:           params.Data,
	}
	if len(params.Payees) > 0 {
		r.Payee = params.Payees[0].Address
		r.ExpectedAmount = cloneInt(params.Payees[0].ExpectedAmount)
	}
	tx.staged[id] = r

	tx.emit(Created{RequestID: id, Payee: r.Payee, Payer: r.Payer, Creator: r.Creator, Data: r.Data})

	for i := 1; i < len(params.Payees); i++ {
		p := params.Payees[i]
		r.SubPayees = append(r.SubPayees, SubPayee{
			Address:        p.Address,
			ExpectedAmount: cloneInt(p.ExpectedAmount),
			Balance:        new(big.Int),
		})
		tx.emit(NewSubPayee{RequestID: id, Payee: p.Address})
	}

	if r.Extension != (common.Address{}) {
		tx.emit(NewExtension{RequestID: id, Extension: r.Extension})
	}

	return id, nil
}

// SetPayee sets the primary payee of a request created without one.
func (tx *Tx) SetPayee(id RequestID, payee common.Address) error {
	r, err := tx.owned(id)
	if err != nil {
		return err
	}
	if payee == (common.Address{}) {
		return ErrMissingAddress
	}
	if r.Payee != (common.Address{}) {
		return ErrPayeeAlreadySet
	}
	r.Payee = payee
	tx.emit(NewPayee{RequestID: id, Payee: payee})
	return nil
}

// SetPayer sets the payer of a request created without one.
func (tx *Tx) SetPayer(id RequestID, payer common.Address) error {
	r, err := tx.owned(id)
	if err != nil {
		return err
	}
	if payer == (common.Address{}) {
		return ErrMissingAddress
	}
	if r.Payer != (common.Address{}) {
		return ErrPayerAlreadySet
	}
	r.Payer = payer
	tx.emit(NewPayer{RequestID: id, Payer: payer})
	return nil
}

// UpdateBalance adds delta to the balance at payeeIndex. Allowed in any state.
func (tx *Tx) UpdateBalance(id RequestID, payeeIndex int, delta *big.Int) error {
	r, err := tx.owned(id)
	if err != nil {
		return err
	}
	if payeeIndex < 0 || payeeIndex > len(r.SubPayees) {
		return ErrPayeeIndex
	}

	if payeeIndex == 0 {
		sum, err := addChecked(r.Balance, delta)
		if err != nil {
			return err
		}
		r.Balance = sum
	} else {
		sp := &r.SubPayees[payeeIndex-1]
		sum, err := addChecked(sp.Balance, delta)
		if err != nil {
			return err
		}
		sp.Balance = sum
	}

	tx.emit(UpdateBalance{RequestID: id, PayeeIndex: payeeIndex, DeltaAmount: cloneInt(delta)})
	return nil
}

// UpdateExpectedAmount adds delta to the expected amount at payeeIndex.
// Allowed in any state.
func (tx *Tx) UpdateExpectedAmount(id RequestID, payeeIndex int, delta *big.Int) error {
	r, err := tx.owned(id)
	if err != nil {
		return err
	}
	if payeeIndex < 0 || payeeIndex > len(r.SubPayees) {
		return ErrPayeeIndex
	}

	if payeeIndex == 0 {
		sum, err := addChecked(r.ExpectedAmount, delta)
		if err != nil {
			return err
		}
		r.ExpectedAmount = sum
	} else {
		sp := &r.SubPayees[payeeIndex-1]
		sum, err := addChecked(sp.ExpectedAmount, delta)
		if err != nil {
			return err
		}
		sp.ExpectedAmount = sum
	}

	tx.emit(UpdateExpectedAmount{RequestID: id, PayeeIndex: payeeIndex, DeltaAmount: cloneInt(delta)})
	return nil
}

// Accept moves a request from Created to Accepted.
func (tx *Tx) Accept(id RequestID) error {
	r, err := tx.owned(id)
	if err != nil {
		return err
	}
	if r.State != StateCreated {
		return ErrNotCreated
	}
	r.State = StateAccepted
	tx.emit(Accepted{RequestID: id})
	return nil
}

// Cancel moves a request from Created or Accepted to Canceled.
func (tx *Tx) Cancel(id RequestID) error {
	r, err := tx.owned(id)
	if err != nil {
		return err
	}
	if r.State == StateCanceled {
		return ErrAlreadyCanceled
	}
	r.State = StateCanceled
	tx.emit(Canceled{RequestID: id})
	return nil
}

// SetExtension attaches a trusted extension. It can be set only once.
func (tx *Tx) SetExtension(id RequestID, extension common.Address) error {
	r, err := tx.owned(id)
	if err != nil {
		return err
	}
	if r.Extension != (common.Address{}) {
		return ErrExtensionAlreadySet
	}
	if extension == (common.Address{}) {
		return ErrMissingAddress
	}
	if !tx.isTrustedExtension(extension) {
		return ErrUntrustedExtension
	}
	r.Extension = extension
	tx.emit(NewExtension{RequestID: id, Extension: extension})
	return nil
}

func (tx *Tx) SetData(id RequestID, data string) error {
	r, err := tx.owned(id)
	if err != nil {
		return err
	}
	r.Data = data
	tx.emit(NewData{RequestID: id, Data: data})
	return nil
}

func (tx *Tx) requireAdmin() error {
	if tx.caller != tx.store.admin {
		return ErrNotAdmin
	}
	return nil
}

func (tx *Tx) AddTrustedModule(module common.Address) error {
	if err := tx.requireAdmin(); err != nil {
		return err
	}
	tx.modules[module] = true
	tx.emit(NewTrustedContract{Contract: module})
	return nil
}

// RemoveTrustedModule stops module from creating requests. Requests it
// already owns stay mutable by it.
func (tx *Tx) RemoveTrustedModule(module common.Address) error {
	if err := tx.requireAdmin(); err != nil {
		return err
	}
	tx.modules[module] = false
	tx.emit(RemoveTrustedContract{Contract: module})
	return nil
}

func (tx *Tx) AddTrustedExtension(extension common.Address) error {
	if err := tx.requireAdmin(); err != nil {
		return err
	}
	tx.extensions[extension] = true
	tx.emit(NewTrustedExtension{Extension: extension})
	return nil
}

func (tx *Tx) RemoveTrustedExtension(extension common.Address) error {
	if err := tx.requireAdmin(); err != nil {
		return err
	}
	tx.extensions[extension] = false
	tx.emit(RemoveTrustedExtension{Extension: extension})
	return nil
}

// Pause blocks request creation. Existing requests stay mutable.
func (tx *Tx) Pause() error {
	if err := tx.requireAdmin(); err != nil {
		return err
	}
	paused := true
	tx.paused = &paused
	tx.emit(Pause{Account: tx.caller})
	return nil
}

func (tx *Tx) Unpause() error {
	if err := tx.requireAdmin(); err != nil {
		return err
	}
	paused := false
	tx.paused = &paused
	tx.emit(Unpause{Account: tx.caller})
	return nil
}
