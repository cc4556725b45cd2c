package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/Nzyazin/schoolwallet/internal/core/logger"
	"github.com/Nzyazin/schoolwallet/internal/core/models"
	"github.com/Nzyazin/schoolwallet/internal/core/usecase"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

type WalletHandler struct {
	usecase  usecase.WalletUsecase
	log      logger.Logger
	location *time.Location
}

// Response is the envelope every endpoint answers with.
type Response struct {
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

type SpendingResponse struct {
	WalletID           uuid.UUID           `json:"wallet_id"`
	SpentToday         decimal.Decimal     `json:"spent_today"`
	DailySpendingLimit decimal.NullDecimal `json:"daily_spending_limit"`
}

type topUpBody struct {
	Amount string `json:"amount"`
	models.TopUpRequest
}

type purchaseBody struct {
	Amount string `json:"amount"`
	models.PurchaseRequest
}

type withdrawBody struct {
	Amount string `json:"amount"`
	models.WithdrawRequest
}

type settingsBody struct {
	Status                  *string `json:"status"`
	LowBalanceThreshold     *string `json:"low_balance_threshold"`
	DailySpendingLimit      *string `json:"daily_spending_limit"`
	ClearDailySpendingLimit bool    `json:"clear_daily_spending_limit"`
}

var amountRegexp = regexp.MustCompile(`^\s*\d{1,12}([.,]\d{1,2})?\s*$`)

func NewWalletHandler(usecase usecase.WalletUsecase, log logger.Logger, location *time.Location) *WalletHandler {
	if location == nil {
		location = time.UTC
	}
	return &WalletHandler{usecase: usecase, log: log, location: location}
}

func (h *WalletHandler) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/students/{student_id}/wallet", h.CreateWallet).Methods("POST")
	api.HandleFunc("/students/{student_id}/wallet", h.GetWalletByStudent).Methods("GET")
	api.HandleFunc("/wallets", h.ListActiveWallets).Methods("GET")
	api.HandleFunc("/wallets/{wallet_id}", h.GetWallet).Methods("GET")
	api.HandleFunc("/wallets/{wallet_id}", h.UpdateSettings).Methods("PATCH")
	api.HandleFunc("/wallets/{wallet_id}/topup", h.TopUp).Methods("POST")
	api.HandleFunc("/wallets/{wallet_id}/purchase", h.Purchase).Methods("POST")
	api.HandleFunc("/wallets/{wallet_id}/withdraw", h.Withdraw).Methods("POST")
	api.HandleFunc("/wallets/{wallet_id}/spending/today", h.TodaySpending).Methods("GET")
	api.HandleFunc("/wallets/{wallet_id}/statement", h.Statement).Methods("GET")
}

func (h *WalletHandler) CreateWallet(w http.ResponseWriter, r *http.Request) {
	wallet, err := h.usecase.CreateWalletForStudent(r.Context(), mux.Vars(r)["student_id"])
	if err != nil {
		h.handleError(w, "create wallet", err)
		return
	}
	respondWithJSON(w, http.StatusOK, Response{Data: wallet})
}

func (h *WalletHandler) GetWalletByStudent(w http.ResponseWriter, r *http.Request) {
	wallet, err := h.usecase.GetWalletByStudent(r.Context(), mux.Vars(r)["student_id"])
	if err != nil {
		h.handleError(w, "get wallet by student", err)
		return
	}
	respondWithJSON(w, http.StatusOK, Response{Data: wallet})
}

func (h *WalletHandler) ListActiveWallets(w http.ResponseWriter, r *http.Request) {
	summary, err := h.usecase.GetAllActiveWallets(r.Context())
	if err != nil {
		h.handleError(w, "list active wallets", err)
		return
	}
	respondWithJSON(w, http.StatusOK, Response{Data: summary})
}

func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	walletID, ok := h.walletID(w, r)
	if !ok {
		return
	}

	wallet, err := h.usecase.GetWallet(r.Context(), walletID)
	if err != nil {
		h.handleError(w, "get wallet", err)
		return
	}
	respondWithJSON(w, http.StatusOK, Response{Data: wallet})
}

func (h *WalletHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	walletID, ok := h.walletID(w, r)
	if !ok {
		return
	}

	var body settingsBody
	if err := h.decodeRequest(w, r, &body); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	settings, err := h.parseSettings(body)
	if err != nil {
		h.log.Warn("Invalid wallet settings", logger.ErrorField("error", err))
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	wallet, err := h.usecase.UpdateSettings(r.Context(), walletID, settings)
	if err != nil {
		h.handleError(w, "update settings", err)
		return
	}
	respondWithJSON(w, http.StatusOK, Response{Data: wallet})
}

func (h *WalletHandler) TopUp(w http.ResponseWriter, r *http.Request) {
	walletID, ok := h.walletID(w, r)
	if !ok {
		return
	}

	var body topUpBody
	amount, ok := h.decodeOperation(w, r, &body, func() string { return body.Amount })
	if !ok {
		return
	}
	req := body.TopUpRequest
	req.WalletID = walletID
	req.Amount = amount

	result, err := h.usecase.TopUp(r.Context(), req)
	if err != nil {
		h.handleError(w, "topup", err)
		return
	}
	h.logSuccess("topup", walletID, amount, result)
	respondWithJSON(w, http.StatusOK, Response{Data: result})
}

func (h *WalletHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	walletID, ok := h.walletID(w, r)
	if !ok {
		return
	}

	var body purchaseBody
	amount, ok := h.decodeOperation(w, r, &body, func() string { return body.Amount })
	if !ok {
		return
	}
	req := body.PurchaseRequest
	req.WalletID = walletID
	req.Amount = amount

	result, err := h.usecase.Purchase(r.Context(), req)
	if err != nil {
		h.handleError(w, "purchase", err)
		return
	}
	h.logSuccess("purchase", walletID, amount, result)
	respondWithJSON(w, http.StatusOK, Response{Data: result})
}

func (h *WalletHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	walletID, ok := h.walletID(w, r)
	if !ok {
		return
	}

	var body withdrawBody
	amount, ok := h.decodeOperation(w, r, &body, func() string { return body.Amount })
	if !ok {
		return
	}
	req := body.WithdrawRequest
	req.WalletID = walletID
	req.Amount = amount

	result, err := h.usecase.Withdraw(r.Context(), req)
	if err != nil {
		h.handleError(w, "withdraw", err)
		return
	}
	h.logSuccess("withdraw", walletID, amount, result)
	respondWithJSON(w, http.StatusOK, Response{Data: result})
}

func (h *WalletHandler) TodaySpending(w http.ResponseWriter, r *http.Request) {
	walletID, ok := h.walletID(w, r)
	if !ok {
		return
	}

	spent, err := h.usecase.TodaySpending(r.Context(), walletID)
	if err != nil {
		h.handleError(w, "today spending", err)
		return
	}
	wallet, err := h.usecase.GetWallet(r.Context(), walletID)
	if err != nil {
		h.handleError(w, "today spending", err)
		return
	}

	respondWithJSON(w, http.StatusOK, Response{Data: SpendingResponse{
		WalletID:           walletID,
		SpentToday:         spent,
		DailySpendingLimit: wallet.DailySpendingLimit,
	}})
}

func (h *WalletHandler) Statement(w http.ResponseWriter, r *http.Request) {
	walletID, ok := h.walletID(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	start, err := h.parseDate(query.Get("start"), false)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "start: "+err.Error())
		return
	}
	end, err := h.parseDate(query.Get("end"), true)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "end: "+err.Error())
		return
	}

	statement, err := h.usecase.GenerateStatement(r.Context(), walletID, start, end)
	if err != nil {
		h.handleError(w, "statement", err)
		return
	}
	respondWithJSON(w, http.StatusOK, Response{Data: statement})
}

func (h *WalletHandler) walletID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := mux.Vars(r)["wallet_id"]
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		h.log.Warn("Invalid wallet id", logger.StringField("wallet_id", raw))
		respondWithError(w, http.StatusBadRequest, "Invalid wallet id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *WalletHandler) decodeRequest(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.log.Warn("Failed to decode request body", logger.ErrorField("error", err))
		return fmt.Errorf("invalid request payload")
	}
	return nil
}

// decodeOperation decodes body and parses the amount read by amountOf after decoding.
func (h *WalletHandler) decodeOperation(w http.ResponseWriter, r *http.Request, body interface{}, amountOf func() string) (decimal.Decimal, bool) {
	if err := h.decodeRequest(w, r, body); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return decimal.Zero, false
	}

	amount, err := h.parseAmount(amountOf())
	if err != nil {
		h.log.Warn("Invalid amount", logger.StringField("amount", amountOf()), logger.ErrorField("error", err))
		respondWithError(w, http.StatusBadRequest, err.Error())
		return decimal.Zero, false
	}
	return amount, true
}

func (h *WalletHandler) parseDecimal(raw string) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(strings.ReplaceAll(raw, " ", ""), ",", ".")

	if !amountRegexp.MatchString(cleaned) {
		return decimal.Zero, fmt.Errorf("invalid amount format: %s", cleaned)
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("could not parse amount: %v", err)
	}
	return amount, nil
}

func (h *WalletHandler) parseAmount(raw string) (decimal.Decimal, error) {
	amount, err := h.parseDecimal(raw)
	if err != nil {
		return decimal.Zero, err
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}

func (h *WalletHandler) parseSettings(body settingsBody) (models.WalletSettings, error) {
	var settings models.WalletSettings

	if body.Status != nil {
		status := models.WalletStatus(strings.ToLower(strings.TrimSpace(*body.Status)))
		settings.Status = &status
	}
	if body.LowBalanceThreshold != nil {
		threshold, err := h.parseDecimal(*body.LowBalanceThreshold)
		if err != nil {
			return settings, fmt.Errorf("low_balance_threshold: %w", err)
		}
		settings.LowBalanceThreshold = &threshold
	}
	switch {
	case body.ClearDailySpendingLimit:
		settings.DailySpendingLimit = &decimal.NullDecimal{}
	case body.DailySpendingLimit != nil:
		limit, err := h.parseAmount(*body.DailySpendingLimit)
		if err != nil {
			return settings, fmt.Errorf("daily_spending_limit: %w", err)
		}
		settings.DailySpendingLimit = &decimal.NullDecimal{Decimal: limit, Valid: true}
	}
	return settings, nil
}

// parseDate accepts RFC 3339 or a calendar date in the school time zone. A
// calendar end date covers the whole day.
func (h *WalletHandler) parseDate(raw string, endOfDay bool) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("date is required")
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}

	day, err := time.ParseInLocation(dateLayout, raw, h.location)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD or RFC 3339", raw)
	}
	if endOfDay {
		// microsecond is the timestamp resolution of the store
		return day.AddDate(0, 0, 1).Add(-time.Microsecond), nil
	}
	return day, nil
}

func (h *WalletHandler) handleError(w http.ResponseWriter, operation string, err error) {
	switch {
	case errors.Is(err, usecase.ErrWalletNotFound):
		h.log.Warn("Wallet not found", logger.StringField("operation", operation), logger.ErrorField("error", err))
		respondWithError(w, http.StatusNotFound, "Wallet not found")
	case errors.Is(err, usecase.ErrWalletInactive):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, usecase.ErrInsufficientFunds),
		errors.Is(err, usecase.ErrDailyLimitExceeded):
		respondWithError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, usecase.ErrInvalidAmount),
		errors.Is(err, usecase.ErrInvalidSettings),
		errors.Is(err, usecase.ErrInvalidPeriod),
		errors.Is(err, usecase.ErrStudentRequired):
		respondWithError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error("Failed to process operation",
			logger.StringField("operation", operation),
			logger.ErrorField("error", err),
		)
		respondWithError(w, http.StatusInternalServerError, "Failed to process operation")
	}
}

func (h *WalletHandler) logSuccess(operation string, walletID uuid.UUID, amount decimal.Decimal, result *models.OperationResult) {
	h.log.Info("Wallet operation successful",
		logger.StringField("wallet_id", walletID.String()),
		logger.StringField("operation_type", operation),
		logger.StringField("amount", amount.String()),
		logger.StringField("transaction_number", result.Transaction.TransactionNumber),
		logger.StringField("new_balance", result.NewBalance.StringFixedBank(2)),
	)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, Response{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, resp Response) {
	body, err := json.Marshal(resp)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Internal Server Error"}`)) // Fallback response
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(body)
}
