package chain

import (
	"math/big"

	nativecommon "versechain/native/common"
)

// Unwind reverses the applied steps of a chain in strict reverse order of
// application, restoring the original deposit to the principal and releasing
// the verse exposure. Active and Completed chains are eligible; a chain can
// be unwound once.
//
// Each successful reversal is persisted before the next is attempted, so a
// mid-unwind failure leaves StepsCompleted reflecting exactly the steps still
// applied. Calling Unwind again resumes from that point. The reserved
// exposure is released only after every step has been reversed.
func (e *Engine) Unwind(chainID string) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}

	lock := e.chainLock(chainID)
	lock.Lock()
	defer lock.Unlock()

	record, err := e.state.GetChain(chainID)
	if err != nil {
		return err
	}
	if record == nil {
		return ErrChainNotFound
	}
	record.Normalize()
	if record.Status == StatusUnwound {
		return ErrAlreadyUnwound
	}

	for int(record.StepsCompleted) > 0 {
		index := int(record.StepsCompleted) - 1
		rec := record.Records[index]
		sp, ok := e.subProtocols[rec.Kind]
		if !ok {
			return errSubProtocolMissing
		}

		restored, err := sp.Reverse(record.Verse, record.Principal, rec.Input)
		if err != nil {
			// A partially unwound chain drops back to Active so the
			// terminal invariants keep holding; retrying Unwind resumes
			// here.
			record.Status = StatusActive
			record.UpdatedAt = e.now()
			if putErr := e.state.PutChain(record); putErr != nil {
				return putErr
			}
			return &StepExecutionError{Index: index, Kind: rec.Kind, Reversal: true, Err: err}
		}

		record.StepsCompleted--
		record.Records = record.Records[:index]
		record.CurrentValue = new(big.Int).Set(restored)
		record.EffectiveLeverage = Leverage(record.Steps[:record.StepsCompleted])
		record.Status = StatusActive
		record.UpdatedAt = e.now()
		if err := e.state.PutChain(record); err != nil {
			return err
		}

		e.emit(Event{
			ChainID:   record.ID,
			Verse:     record.Verse,
			Principal: record.Principal.Hex(),
			Type:      EventStepReversed,
			StepIndex: index,
			Kind:      rec.Kind.String(),
			Leverage:  record.EffectiveLeverage.String(),
			Value:     record.CurrentValue.String(),
			At:        record.UpdatedAt,
		})
	}

	account, err := e.state.GetAccount(record.Principal)
	if err != nil {
		return err
	}
	account = account.Normalize()
	if account.Collateral.Cmp(record.Deposit) >= 0 {
		account.Collateral = new(big.Int).Sub(account.Collateral, record.Deposit)
	} else {
		account.Collateral = big.NewInt(0)
	}
	account.Balance = new(big.Int).Add(account.Balance, record.Deposit)
	if err := e.state.PutAccount(record.Principal, account); err != nil {
		return err
	}

	record.CurrentValue = new(big.Int).Set(record.Deposit)
	record.EffectiveLeverage = new(big.Int).Set(one)
	record.Status = StatusUnwound
	record.UpdatedAt = e.now()
	if err := e.state.PutChain(record); err != nil {
		return err
	}
	if err := e.state.ClearActiveChain(record.Verse, record.Principal); err != nil {
		return err
	}

	e.guard.Release(record.Verse, record.ID)
	e.dropChainLock(record.ID)

	e.emit(Event{
		ChainID:   record.ID,
		Verse:     record.Verse,
		Principal: record.Principal.Hex(),
		Type:      EventChainUnwound,
		Leverage:  record.EffectiveLeverage.String(),
		Value:     record.CurrentValue.String(),
		At:        record.UpdatedAt,
	})
	return nil
}
