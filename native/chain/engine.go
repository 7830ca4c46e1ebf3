package chain

import (
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	coretypes "versechain/core/types"
	nativecommon "versechain/native/common"
)

const moduleName = "chain"

// State is the persistence boundary for the executor. GetChain returns
// (nil, nil) when no record exists. The ownership index enforces one active
// chain per (verse, principal).
type State interface {
	GetChain(id string) (*ChainState, error)
	PutChain(state *ChainState) error
	GetAccount(addr common.Address) (*coretypes.Account, error)
	PutAccount(addr common.Address, account *coretypes.Account) error
	ActiveChainID(verse string, principal common.Address) (string, error)
	SetActiveChain(verse string, principal common.Address, id string) error
	ClearActiveChain(verse string, principal common.Address) error
}

// SubProtocol is one opaque fallible leverage action with a reverse operation
// of matching shape. Apply takes the value entering the step and returns the
// value leaving it; Reverse takes the original input amount and undoes the
// action, returning the restored value.
type SubProtocol interface {
	Apply(verse string, principal common.Address, amount *big.Int) (*big.Int, error)
	Reverse(verse string, principal common.Address, amount *big.Int) (*big.Int, error)
}

// Event is a chain lifecycle notification handed to the audit recorder.
type Event struct {
	ChainID   string
	Verse     string
	Principal string
	Type      string
	StepIndex int
	Kind      string
	Leverage  string
	Value     string
	At        int64
}

// Lifecycle event types.
const (
	EventChainCreated = "chain_created"
	EventStepApplied  = "step_applied"
	EventStepFailed   = "step_failed"
	EventChainDone    = "chain_completed"
	EventStepReversed = "step_reversed"
	EventChainUnwound = "chain_unwound"
)

// Recorder consumes lifecycle events for audit purposes. Implementations must
// not block the engine; failures are the recorder's concern.
type Recorder interface {
	RecordChainEvent(event Event)
}

// StepOutcome reports the result of one applied step.
type StepOutcome struct {
	Index             int      `json:"index"`
	Kind              Step     `json:"kind"`
	Value             *big.Int `json:"value"`
	EffectiveLeverage *big.Int `json:"effectiveLeverage"`
	ChainCompleted    bool     `json:"chainCompleted"`
}

// Engine orchestrates chain creation and step-by-step execution. Operations
// on one chain are serialized by a per-chain lock; coverage is reserved once
// at planning time and the coverage lock is never held across a sub-protocol
// call.
type Engine struct {
	state        State
	guard        *CoverageGuard
	pauses       nativecommon.PauseView
	recorder     Recorder
	subProtocols map[Step]SubProtocol
	now          func() int64

	lockMu     sync.Mutex
	locks      map[string]*sync.Mutex
	ownerLocks map[string]*sync.Mutex
}

// NewEngine constructs an executor bound to the verse coverage guard.
func NewEngine(guard *CoverageGuard) *Engine {
	return &Engine{
		guard:        guard,
		subProtocols: make(map[Step]SubProtocol),
		now:          func() int64 { return time.Now().Unix() },
		locks:        make(map[string]*sync.Mutex),
		ownerLocks:   make(map[string]*sync.Mutex),
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state State) { e.state = state }

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetRecorder attaches the audit sink. A nil recorder disables auditing.
func (e *Engine) SetRecorder(r Recorder) {
	if e == nil {
		return
	}
	e.recorder = r
}

// SetClock overrides the timestamp source, used by tests.
func (e *Engine) SetClock(now func() int64) {
	if e == nil || now == nil {
		return
	}
	e.now = now
}

// RegisterSubProtocol wires the handler for a step kind.
func (e *Engine) RegisterSubProtocol(kind Step, sp SubProtocol) {
	if e == nil || !kind.Valid() || sp == nil {
		return
	}
	e.subProtocols[kind] = sp
}

// Guard returns the coverage guard the engine reserves against.
func (e *Engine) Guard() *CoverageGuard { return e.guard }

// chainLock returns the exclusive lock for a chain id.
func (e *Engine) chainLock(id string) *sync.Mutex {
	e.lockMu.Lock()
	defer e.lockMu.Unlock()
	lock, ok := e.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[id] = lock
	}
	return lock
}

// dropChainLock removes the lock entry for a chain that reached a terminal
// status and needs no further serialization.
func (e *Engine) dropChainLock(id string) {
	e.lockMu.Lock()
	delete(e.locks, id)
	e.lockMu.Unlock()
}

// ownerLock returns the exclusive lock for a (verse, principal) ownership
// slot. Creation holds it from the existence check through the index write so
// two concurrent creates cannot both claim the slot.
func (e *Engine) ownerLock(verse string, principal common.Address) *sync.Mutex {
	e.lockMu.Lock()
	defer e.lockMu.Unlock()
	key := verse + "/" + principal.Hex()
	lock, ok := e.ownerLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		e.ownerLocks[key] = lock
	}
	return lock
}

func (e *Engine) emit(event Event) {
	if e.recorder != nil {
		e.recorder.RecordChainEvent(event)
	}
}

// rollbackCreate undoes a partially persisted creation: the deposit moves
// back from collateral to balance, an already written chain record is marked
// Unwound and the reservation is released. Secondary failures are dropped;
// the caller returns the primary error.
func (e *Engine) rollbackCreate(principal common.Address, verseID, chainID string, deposit *big.Int, record *ChainState) {
	if account, err := e.state.GetAccount(principal); err == nil {
		account = account.Normalize()
		account.Balance = new(big.Int).Add(account.Balance, deposit)
		if account.Collateral.Cmp(deposit) >= 0 {
			account.Collateral = new(big.Int).Sub(account.Collateral, deposit)
		} else {
			account.Collateral = big.NewInt(0)
		}
		_ = e.state.PutAccount(principal, account)
	}
	if record != nil {
		record.Status = StatusUnwound
		record.UpdatedAt = e.now()
		_ = e.state.PutChain(record)
	}
	e.guard.Release(verseID, chainID)
}

// CreateChain validates a plan, reserves worst-case exposure against the
// verse budget and persists the new Active chain. Validation and coverage
// failures happen before any state mutation; a persistence failure rolls the
// account debit and the reservation back. Creation for one (verse, principal)
// slot is serialized so at most one Active chain can claim it.
func (e *Engine) CreateChain(principal common.Address, verseID string, deposit *big.Int, steps []Step) (*ChainState, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if deposit == nil || deposit.Sign() <= 0 {
		return nil, ErrInvalidDeposit
	}
	if err := ValidateSteps(steps); err != nil {
		return nil, err
	}
	if e.guard == nil || !e.guard.HasVerse(verseID) {
		return nil, ErrVerseNotFound
	}

	ownership := e.ownerLock(verseID, principal)
	ownership.Lock()
	defer ownership.Unlock()

	existing, err := e.state.ActiveChainID(verseID, principal)
	if err != nil {
		return nil, err
	}
	if existing != "" {
		return nil, ErrChainExists
	}

	account, err := e.state.GetAccount(principal)
	if err != nil {
		return nil, err
	}
	account = account.Normalize()
	if account.Balance.Cmp(deposit) < 0 {
		return nil, ErrInsufficientBalance
	}

	planned := Leverage(steps)
	exposure := WorstCaseExposure(deposit, planned)
	chainID := uuid.NewString()

	if err := e.guard.Reserve(verseID, chainID, exposure); err != nil {
		return nil, err
	}

	account.Balance = new(big.Int).Sub(account.Balance, deposit)
	account.Collateral = new(big.Int).Add(account.Collateral, deposit)
	if err := e.state.PutAccount(principal, account); err != nil {
		e.guard.Release(verseID, chainID)
		return nil, err
	}

	now := e.now()
	record := &ChainState{
		ID:                chainID,
		Verse:             verseID,
		Principal:         principal,
		Deposit:           new(big.Int).Set(deposit),
		CurrentValue:      new(big.Int).Set(deposit),
		Steps:             append([]Step(nil), steps...),
		StepsCompleted:    0,
		EffectiveLeverage: new(big.Int).Set(one),
		ReservedExposure:  exposure,
		Status:            StatusActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := e.state.PutChain(record); err != nil {
		e.rollbackCreate(principal, verseID, chainID, deposit, nil)
		return nil, err
	}
	if err := e.state.SetActiveChain(verseID, principal, chainID); err != nil {
		e.rollbackCreate(principal, verseID, chainID, deposit, record)
		return nil, err
	}

	e.emit(Event{
		ChainID:   chainID,
		Verse:     verseID,
		Principal: principal.Hex(),
		Type:      EventChainCreated,
		Leverage:  planned.String(),
		Value:     deposit.String(),
		At:        now,
	})
	return record.Clone(), nil
}

// AdvanceChain applies the next pending step of an Active chain. A
// sub-protocol failure leaves the chain untouched and is surfaced as a
// StepExecutionError; the chain stays Active for retry or unwind.
func (e *Engine) AdvanceChain(chainID string) (*StepOutcome, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}

	lock := e.chainLock(chainID)
	lock.Lock()
	defer lock.Unlock()

	record, err := e.state.GetChain(chainID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrChainNotFound
	}
	record.Normalize()
	if record.Status != StatusActive {
		return nil, ErrInvalidChainStatus
	}
	index := int(record.StepsCompleted)
	if index >= len(record.Steps) {
		return nil, ErrInvalidChainStatus
	}

	kind := record.Steps[index]
	sp, ok := e.subProtocols[kind]
	if !ok {
		return nil, errSubProtocolMissing
	}

	input := new(big.Int).Set(record.CurrentValue)
	output, err := sp.Apply(record.Verse, record.Principal, input)
	if err != nil {
		e.emit(Event{
			ChainID:   record.ID,
			Verse:     record.Verse,
			Principal: record.Principal.Hex(),
			Type:      EventStepFailed,
			StepIndex: index,
			Kind:      kind.String(),
			At:        e.now(),
		})
		return nil, &StepExecutionError{Index: index, Kind: kind, Err: err}
	}

	record.Records = append(record.Records, StepRecord{
		Kind:   kind,
		Input:  input,
		Output: new(big.Int).Set(output),
	})
	record.StepsCompleted++
	record.CurrentValue = new(big.Int).Set(output)
	record.EffectiveLeverage = Leverage(record.Steps[:record.StepsCompleted])
	completed := int(record.StepsCompleted) == len(record.Steps)
	if completed {
		record.Status = StatusCompleted
	}
	record.UpdatedAt = e.now()

	if err := e.state.PutChain(record); err != nil {
		return nil, err
	}

	eventType := EventStepApplied
	if completed {
		eventType = EventChainDone
	}
	e.emit(Event{
		ChainID:   record.ID,
		Verse:     record.Verse,
		Principal: record.Principal.Hex(),
		Type:      eventType,
		StepIndex: index,
		Kind:      kind.String(),
		Leverage:  record.EffectiveLeverage.String(),
		Value:     record.CurrentValue.String(),
		At:        record.UpdatedAt,
	})

	return &StepOutcome{
		Index:             index,
		Kind:              kind,
		Value:             new(big.Int).Set(record.CurrentValue),
		EffectiveLeverage: new(big.Int).Set(record.EffectiveLeverage),
		ChainCompleted:    completed,
	}, nil
}

// GetChain returns a copy of the chain record for read-model consumers.
// Unwound chains remain readable for audit.
func (e *Engine) GetChain(chainID string) (*ChainState, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	record, err := e.state.GetChain(chainID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrChainNotFound
	}
	return record.Clone(), nil
}
