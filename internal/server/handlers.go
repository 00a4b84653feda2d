package server

import (
	"context"
	"net/http"
	"strconv"

	sdkmath "cosmossdk.io/math"
	"github.com/go-chi/chi/v5"

	"pledgepool/internal/ledger"
	"pledgepool/internal/pool"
)

// --- pool lifecycle ---

type createPoolRequest struct {
	Caller                 string `json:"caller"`
	SettleTime             int64  `json:"settle_time"`
	EndTime                int64  `json:"end_time"`
	InterestRate           string `json:"interest_rate"`
	MaxLendSupply          string `json:"max_lend_supply"`
	MortgageRate           string `json:"mortgage_rate"`
	LendAsset              string `json:"lend_asset"`
	BorrowAsset            string `json:"borrow_asset"`
	SPToken                string `json:"sp_token"`
	JPToken                string `json:"jp_token"`
	AutoLiquidateThreshold string `json:"auto_liquidate_threshold"`
}

type createPoolResponse struct {
	PoolID uint64 `json:"pool_id"`
}

func (s *Server) createPool(w http.ResponseWriter, r *http.Request) {
	var req createPoolRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	terms := pool.Terms{
		SettleTime:  req.SettleTime,
		EndTime:     req.EndTime,
		LendAsset:   req.LendAsset,
		BorrowAsset: req.BorrowAsset,
		SPToken:     req.SPToken,
		JPToken:     req.JPToken,
	}
	var err error
	if terms.InterestRate, err = parseAmount(req.InterestRate); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "interest_rate: " + err.Error()})
		return
	}
	if terms.MaxLendSupply, err = parseAmount(req.MaxLendSupply); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "max_lend_supply: " + err.Error()})
		return
	}
	if terms.MortgageRate, err = parseAmount(req.MortgageRate); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "mortgage_rate: " + err.Error()})
		return
	}
	if terms.AutoLiquidateThreshold, err = parseAmount(req.AutoLiquidateThreshold); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "auto_liquidate_threshold: " + err.Error()})
		return
	}

	id, err := s.eng.CreatePool(r.Context(), req.Caller, terms)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, createPoolResponse{PoolID: id})
}

type lifecycleRequest struct {
	Caller string `json:"caller"`
}

type okResponse struct {
	Status string `json:"status"`
}

func (s *Server) settle(w http.ResponseWriter, r *http.Request) {
	s.lifecycleOp(w, r, s.eng.Settle)
}

func (s *Server) finish(w http.ResponseWriter, r *http.Request) {
	s.lifecycleOp(w, r, s.eng.Finish)
}

func (s *Server) liquidate(w http.ResponseWriter, r *http.Request) {
	s.lifecycleOp(w, r, s.eng.Liquidate)
}

func (s *Server) lifecycleOp(w http.ResponseWriter, r *http.Request, op func(context.Context, string, uint64) error) {
	id, err := poolIDParam(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid pool id"})
		return
	}
	var req lifecycleRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := op(r.Context(), req.Caller, id); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, okResponse{Status: "ok"})
}

// --- participant operations ---

type depositRequest struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

type amountResponse struct {
	Amount string `json:"amount"`
}

func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	id, side, req, ok := s.decodeSideAmount(w, r)
	if !ok {
		return
	}

	op := s.eng.DepositLend
	if side == ledger.SideBorrow {
		op = s.eng.DepositBorrow
	}
	actual, err := op(r.Context(), req.caller, id, req.amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, amountResponse{Amount: actual.String()})
}

func (s *Server) refund(w http.ResponseWriter, r *http.Request) {
	s.sideOp(w, r, s.eng.RefundLend, s.eng.RefundBorrow)
}

func (s *Server) emergency(w http.ResponseWriter, r *http.Request) {
	s.sideOp(w, r, s.eng.EmergencyLendWithdrawal, s.eng.EmergencyBorrowWithdrawal)
}

type claimResponse struct {
	ShareAmount string `json:"share_amount"`
	Payout      string `json:"payout,omitempty"`
}

func (s *Server) claim(w http.ResponseWriter, r *http.Request) {
	id, err := poolIDParam(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid pool id"})
		return
	}
	side, err := sideParam(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	var req lifecycleRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	if side == ledger.SideLend {
		shares, err := s.eng.ClaimLend(r.Context(), req.Caller, id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, claimResponse{ShareAmount: shares.String()})
		return
	}

	shares, payout, err := s.eng.ClaimBorrow(r.Context(), req.Caller, id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, claimResponse{ShareAmount: shares.String(), Payout: payout.String()})
}

type withdrawRequest struct {
	Caller      string `json:"caller"`
	ShareAmount string `json:"share_amount"`
}

func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
	id, err := poolIDParam(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid pool id"})
		return
	}
	side, err := sideParam(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	var req withdrawRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	shares, err := parseAmount(req.ShareAmount)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "share_amount: " + err.Error()})
		return
	}

	op := s.eng.WithdrawLend
	if side == ledger.SideBorrow {
		op = s.eng.WithdrawBorrow
	}
	payout, err := op(r.Context(), req.Caller, id, shares)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, amountResponse{Amount: payout.String()})
}

type sideOpFunc = func(context.Context, string, uint64) (sdkmath.Int, error)

func (s *Server) sideOp(w http.ResponseWriter, r *http.Request, lendOp, borrowOp sideOpFunc) {
	id, err := poolIDParam(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid pool id"})
		return
	}
	side, err := sideParam(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	var req lifecycleRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	op := lendOp
	if side == ledger.SideBorrow {
		op = borrowOp
	}
	amount, err := op(r.Context(), req.Caller, id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, amountResponse{Amount: amount.String()})
}

type sideAmountRequest struct {
	caller string
	amount sdkmath.Int
}

func (s *Server) decodeSideAmount(w http.ResponseWriter, r *http.Request) (uint64, ledger.Side, sideAmountRequest, bool) {
	id, err := poolIDParam(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid pool id"})
		return 0, 0, sideAmountRequest{}, false
	}
	side, err := sideParam(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return 0, 0, sideAmountRequest{}, false
	}
	var req depositRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return 0, 0, sideAmountRequest{}, false
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "amount: " + err.Error()})
		return 0, 0, sideAmountRequest{}, false
	}
	return id, side, sideAmountRequest{caller: req.Caller, amount: amount}, true
}

// --- queries ---

func (s *Server) listPools(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.queries.ListPools(r.Context()))
}

func (s *Server) getPool(w http.ResponseWriter, r *http.Request) {
	id, err := poolIDParam(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid pool id"})
		return
	}
	detail, err := s.queries.GetPool(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, detail)
}

func (s *Server) getPrices(w http.ResponseWriter, r *http.Request) {
	id, err := poolIDParam(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid pool id"})
		return
	}
	prices, err := s.queries.GetPrices(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, prices)
}

func (s *Server) liquidationCheck(w http.ResponseWriter, r *http.Request) {
	id, err := poolIDParam(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid pool id"})
		return
	}
	check, err := s.queries.CheckLiquidation(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, check)
}

func (s *Server) poolHistory(w http.ResponseWriter, r *http.Request) {
	id, err := poolIDParam(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid pool id"})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	history, err := s.queries.PoolHistory(r.Context(), id, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, history)
}

func (s *Server) getStake(w http.ResponseWriter, r *http.Request) {
	id, err := poolIDParam(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid pool id"})
		return
	}
	side, err := sideParam(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	stake, err := s.queries.GetStake(r.Context(), id, side, chi.URLParam(r, "participant"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stake)
}

// --- admin ---

type setFeesRequest struct {
	Caller    string `json:"caller"`
	LendFee   string `json:"lend_fee,omitempty"`
	BorrowFee string `json:"borrow_fee,omitempty"`
}

func (s *Server) setFees(w http.ResponseWriter, r *http.Request) {
	var req setFeesRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	if req.LendFee != "" {
		fee, err := parseAmount(req.LendFee)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "lend_fee: " + err.Error()})
			return
		}
		if err := s.eng.SetLendFee(r.Context(), req.Caller, fee); err != nil {
			s.writeError(w, err)
			return
		}
	}
	if req.BorrowFee != "" {
		fee, err := parseAmount(req.BorrowFee)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "borrow_fee: " + err.Error()})
			return
		}
		if err := s.eng.SetBorrowFee(r.Context(), req.Caller, fee); err != nil {
			s.writeError(w, err)
			return
		}
	}
	s.writeJSON(w, http.StatusOK, okResponse{Status: "ok"})
}

type setFeeRecipientRequest struct {
	Caller    string `json:"caller"`
	Recipient string `json:"recipient"`
}

func (s *Server) setFeeRecipient(w http.ResponseWriter, r *http.Request) {
	var req setFeeRecipientRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := s.eng.SetFeeRecipient(r.Context(), req.Caller, req.Recipient); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, okResponse{Status: "ok"})
}

type setMinDepositRequest struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

func (s *Server) setMinDeposit(w http.ResponseWriter, r *http.Request) {
	var req setMinDepositRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	min, err := parseAmount(req.Amount)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "amount: " + err.Error()})
		return
	}
	if err := s.eng.SetMinDeposit(r.Context(), req.Caller, min); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, okResponse{Status: "ok"})
}

type setSwapVenueRequest struct {
	Caller string `json:"caller"`
	Router string `json:"router"`
}

func (s *Server) setSwapVenue(w http.ResponseWriter, r *http.Request) {
	var req setSwapVenueRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if s.venues == nil {
		s.writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "swap venue reconfiguration is not available in this deployment"})
		return
	}
	venue, err := s.venues(r.Context(), req.Router)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "router: " + err.Error()})
		return
	}
	if err := s.eng.SetSwapVenue(r.Context(), req.Caller, venue); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, okResponse{Status: "ok"})
}

type setPauseRequest struct {
	Caller string `json:"caller"`
	Paused bool   `json:"paused"`
}

func (s *Server) setPause(w http.ResponseWriter, r *http.Request) {
	var req setPauseRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := s.eng.SetPause(r.Context(), req.Caller, req.Paused); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, okResponse{Status: "ok"})
}
