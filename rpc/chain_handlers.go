package rpc

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"versechain/native/chain"
	"versechain/observability"
)

type chainCreateParams struct {
	Principal string   `json:"principal"`
	Verse     string   `json:"verse"`
	Deposit   string   `json:"deposit"`
	Steps     []string `json:"steps"`
}

type chainIDParams struct {
	ChainID string `json:"chainId"`
}

func decodeSingleParam(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return errors.New("parameter object required")
	}
	return json.Unmarshal(req.Params[0], out)
}

// chainErrorStatus maps engine sentinels onto HTTP statuses and RPC codes.
func chainErrorStatus(err error) (int, int) {
	switch {
	case errors.Is(err, chain.ErrChainNotFound), errors.Is(err, chain.ErrVerseNotFound):
		return http.StatusNotFound, codeServerError
	case errors.Is(err, chain.ErrTooManySteps),
		errors.Is(err, chain.ErrChainCycle),
		errors.Is(err, chain.ErrInvalidDeposit),
		errors.Is(err, chain.ErrChainExists),
		errors.Is(err, chain.ErrInsufficientBalance),
		errors.Is(err, chain.ErrExceedsVerseLimit),
		errors.Is(err, chain.ErrAlreadyUnwound),
		errors.Is(err, chain.ErrInvalidChainStatus):
		return http.StatusBadRequest, codeInvalidParams
	default:
		return http.StatusInternalServerError, codeServerError
	}
}

func (s *Server) handleChainCreate(w http.ResponseWriter, req *RPCRequest) bool {
	var params chainCreateParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return true
	}
	if !common.IsHexAddress(params.Principal) {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid principal address", params.Principal)
		return true
	}
	deposit, ok := new(big.Int).SetString(strings.TrimSpace(params.Deposit), 10)
	if !ok {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "deposit must be a decimal amount", params.Deposit)
		return true
	}
	steps := make([]chain.Step, 0, len(params.Steps))
	for _, raw := range params.Steps {
		step, err := chain.ParseStep(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "unknown step kind", raw)
			return true
		}
		steps = append(steps, step)
	}

	record, err := s.engine.CreateChain(common.HexToAddress(params.Principal), params.Verse, deposit, steps)
	if err != nil {
		status, code := chainErrorStatus(err)
		writeError(w, status, req.ID, code, err.Error(), nil)
		return true
	}
	observability.Chain().SetCommittedExposure(record.Verse, s.engine.Guard().Committed(record.Verse))
	writeResult(w, req.ID, record)
	return false
}

func (s *Server) handleChainAdvance(w http.ResponseWriter, req *RPCRequest) bool {
	var params chainIDParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return true
	}

	outcome, err := s.engine.AdvanceChain(params.ChainID)
	if err != nil {
		var stepErr *chain.StepExecutionError
		if errors.As(err, &stepErr) {
			writeError(w, http.StatusConflict, req.ID, codeServerError, err.Error(), map[string]interface{}{
				"stepIndex": stepErr.Index,
				"kind":      stepErr.Kind.String(),
			})
			return true
		}
		status, code := chainErrorStatus(err)
		writeError(w, status, req.ID, code, err.Error(), nil)
		return true
	}
	writeResult(w, req.ID, outcome)
	return false
}

func (s *Server) handleChainUnwind(w http.ResponseWriter, req *RPCRequest) bool {
	var params chainIDParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return true
	}

	if err := s.engine.Unwind(params.ChainID); err != nil {
		var stepErr *chain.StepExecutionError
		if errors.As(err, &stepErr) {
			writeError(w, http.StatusConflict, req.ID, codeServerError, err.Error(), map[string]interface{}{
				"stepIndex": stepErr.Index,
				"kind":      stepErr.Kind.String(),
			})
			return true
		}
		status, code := chainErrorStatus(err)
		writeError(w, status, req.ID, code, err.Error(), nil)
		return true
	}

	record, err := s.engine.GetChain(params.ChainID)
	if err != nil {
		status, code := chainErrorStatus(err)
		writeError(w, status, req.ID, code, err.Error(), nil)
		return true
	}
	observability.Chain().SetCommittedExposure(record.Verse, s.engine.Guard().Committed(record.Verse))
	writeResult(w, req.ID, record)
	return false
}

func (s *Server) handleChainGet(w http.ResponseWriter, req *RPCRequest) bool {
	var params chainIDParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return true
	}

	record, err := s.engine.GetChain(params.ChainID)
	if err != nil {
		status, code := chainErrorStatus(err)
		writeError(w, status, req.ID, code, err.Error(), nil)
		return true
	}
	writeResult(w, req.ID, record)
	return false
}

func (s *Server) handleChainEvents(w http.ResponseWriter, req *RPCRequest) bool {
	var params chainIDParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return true
	}
	if s.audit == nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "audit store unavailable", nil)
		return true
	}

	events, err := s.audit.EventsForChain(params.ChainID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load events", err.Error())
		return true
	}
	writeResult(w, req.ID, events)
	return false
}
