package ledger

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Event is a domain event emitted on commit.
type Event interface {
	EventName() string
}

// EventSink receives committed events in commit order.
type EventSink interface {
	Publish(ctx context.Context, events []Event) error
}

const (
	EventCreated                = "Created"
	EventNewPayee               = "NewPayee"
	EventNewPayer               = "NewPayer"
	EventNewSubPayee            = "NewSubPayee"
	EventUpdateBalance          = "UpdateBalance"
	EventUpdateExpectedAmount   = "UpdateExpectedAmount"
	EventAccepted               = "Accepted"
	EventCanceled               = "Canceled"
	EventNewExtension           = "NewExtension"
	EventNewData                = "NewData"
	EventUpdateRateFees         = "UpdateRateFees"
	EventUpdateMaxFees          = "UpdateMaxFees"
	EventPause                  = "Pause"
	EventUnpause                = "Unpause"
	EventNewTrustedContract     = "NewTrustedContract"
	EventRemoveTrustedContract  = "RemoveTrustedContract"
	EventNewTrustedExtension    = "NewTrustedExtension"
	EventRemoveTrustedExtension = "RemoveTrustedExtension"
	EventFundsAvailable         = "FundsAvailableToWithdraw"
)

type Created struct {
	RequestID RequestID      `json:"requestId"`
	Payee     common.Address `json:"payee"`
	Payer     common.Address `json:"payer"`
	Creator   common.Address `json:"creator"`
	Data      string         `json:"data"`
}

type NewPayee struct {
	RequestID RequestID      `json:"requestId"`
	Payee     common.Address `json:"payee"`
}

type NewPayer struct {
	RequestID RequestID      `json:"requestId"`
	Payer     common.Address `json:"payer"`
}

type NewSubPayee struct {
	RequestID RequestID      `json:"requestId"`
	Payee     common.Address `json:"payee"`
}

type UpdateBalance struct {
	RequestID   RequestID `json:"requestId"`
	PayeeIndex  int       `json:"payeeIndex"`
	DeltaAmount *big.Int  `json:"deltaAmount"`
}

type UpdateExpectedAmount struct {
	RequestID   RequestID `json:"requestId"`
	PayeeIndex  int       `json:"payeeIndex"`
	DeltaAmount *big.Int  `json:"deltaAmount"`
}

type Accepted struct {
	RequestID RequestID `json:"requestId"`
}

type Canceled struct {
	RequestID RequestID `json:"requestId"`
}

type NewExtension struct {
	RequestID RequestID      `json:"requestId"`
	Extension common.Address `json:"extension"`
}

type NewData struct {
	RequestID RequestID `json:"requestId"`
	Data      string    `json:"data"`
}

type UpdateRateFees struct {
	Numerator   *big.Int `json:"numerator"`
	Denominator *big.Int `json:"denominator"`
}

type UpdateMaxFees struct {
	MaxFees *big.Int `json:"maxFees"`
}

type Pause struct {
	Account common.Address `json:"account"`
}

type Unpause struct {
	Account common.Address `json:"account"`
}

type NewTrustedContract struct {
	Contract common.Address `json:"contract"`
}

type RemoveTrustedContract struct {
	Contract common.Address `json:"contract"`
}

type NewTrustedExtension struct {
	Extension common.Address `json:"extension"`
}

type RemoveTrustedExtension struct {
	Extension common.Address `json:"extension"`
}

// FundsAvailableToWithdraw reports a push that failed and was credited to the
// recipient's withdrawal buffer instead.
type FundsAvailableToWithdraw struct {
	RequestID RequestID      `json:"requestId"`
	Recipient common.Address `json:"recipient"`
	Amount    *big.Int       `json:"amount"`
}

func (Created) EventName() string                  { return EventCreated }
func (NewPayee) EventName() string                 { return EventNewPayee }
func (NewPayer) EventName() string                 { return EventNewPayer }
func (NewSubPayee) EventName() string              { return EventNewSubPayee }
func (UpdateBalance) EventName() string            { return EventUpdateBalance }
func (UpdateExpectedAmount) EventName() string     { return EventUpdateExpectedAmount }
func (Accepted) EventName() string                 { return EventAccepted }
func (Canceled) EventName() string                 { return EventCanceled }
func (NewExtension) EventName() string             { return EventNewExtension }
func (NewData) EventName() string                  { return EventNewData }
func (UpdateRateFees) EventName() string           { return EventUpdateRateFees }
func (UpdateMaxFees) EventName() string            { return EventUpdateMaxFees }
func (Pause) EventName() string                    { return EventPause }
func (Unpause) EventName() string                  { return EventUnpause }
func (NewTrustedContract) EventName() string       { return EventNewTrustedContract }
func (RemoveTrustedContract) EventName() string    { return EventRemoveTrustedContract }
func (NewTrustedExtension) EventName() string      { return EventNewTrustedExtension }
func (RemoveTrustedExtension) EventName() string   { return EventRemoveTrustedExtension }
func (FundsAvailableToWithdraw) EventName() string { return EventFundsAvailable }

// EventNames maps events to their names, keeping order.
func EventNames(events []Event) []string {
	names := make([]string, len(events))
	for i, e := range events {
		names[i] = e.EventName()
	}
	return names
}

// Recorder is an in-memory EventSink.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(_ context.Context, events []Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Reset drops every recorded event.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
