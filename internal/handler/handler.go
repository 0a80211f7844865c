// Package handler содержит HTTP-обработчики API игрового сервиса skatespot.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/skatespot-system/internal/model"
	"github.com/mmeshcher/skatespot-system/internal/repository"
	"github.com/mmeshcher/skatespot-system/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	StartSession(ctx context.Context, userID int64) (string, int, error)
	SubmitScore(ctx context.Context, token string, score int64) (*model.ScoreResult, error)
	ClaimDaily(ctx context.Context, userID int64) (int64, error)
	CreateDuel(ctx context.Context, challengerID, opponentID int64) (int64, error)
	AcceptDuel(ctx context.Context, duelID, userID int64) error
	RejectDuel(ctx context.Context, duelID, userID int64) error
	PenalizeDuel(ctx context.Context, duelID, loserID int64) (*model.PenaltyResult, error)
	GetDuel(ctx context.Context, duelID int64) (*model.Duel, error)
	GetPendingDuels(ctx context.Context, userID int64) ([]model.PendingDuel, error)
	ClaimReward(ctx context.Context, userID, rewardID int64) (string, error)
	GetActiveRewards(ctx context.Context) ([]model.Reward, error)
	GetLeaderboard(ctx context.Context) ([]model.LeaderboardEntry, error)
	GetUserStats(ctx context.Context, userID int64) (*model.UserStats, error)
	GetTransactionsByUser(ctx context.Context, userID int64) ([]model.PointsTransaction, error)
	GetClaimsByUser(ctx context.Context, userID int64) ([]model.RewardClaim, error)
}

// Handler реализует HTTP-обработчики API игрового сервиса skatespot.
type Handler struct {
	service Service
	logger  *zap.Logger
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: s,
		logger:  logger,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

type startSessionRequest struct {
	UserID int64 `json:"user_id"`
}

type startSessionResponse struct {
	SessionToken string `json:"session_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// StartSession выдаёт одноразовый игровой токен текущему пользователю.
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	token, ttl, err := h.service.StartSession(r.Context(), req.UserID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrRateLimitExceeded):
			http.Error(w, "daily session limit reached", http.StatusTooManyRequests)
		case errors.Is(err, repository.ErrUserNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		default:
			h.logger.Error("start session error", zap.Error(err), zap.Int64("userID", req.UserID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, startSessionResponse{
		SessionToken: token,
		ExpiresIn:    ttl,
	})
}

type submitScoreRequest struct {
	SessionToken string `json:"session_token"`
	Score        int64  `json:"score"`
}

type submitScoreResponse struct {
	Success       bool  `json:"success"`
	PointsEarned  int64 `json:"points_earned"`
	CurrentStreak int32 `json:"current_streak"`
}

// SubmitScore засчитывает результат игры по одноразовому токену.
func (h *Handler) SubmitScore(w http.ResponseWriter, r *http.Request) {
	var req submitScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionToken == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	res, err := h.service.SubmitScore(r.Context(), req.SessionToken, req.Score)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidScore):
			http.Error(w, "invalid score", http.StatusBadRequest)
		case errors.Is(err, repository.ErrSessionInvalid):
			http.Error(w, "session invalid or expired", http.StatusUnauthorized)
		default:
			h.logger.Error("submit score error", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, submitScoreResponse{
		Success:       true,
		PointsEarned:  res.PointsEarned,
		CurrentStreak: res.CurrentStreak,
	})
}

type claimDailyRequest struct {
	UserID int64 `json:"user_id"`
}

type claimDailyResponse struct {
	Success       bool   `json:"success"`
	PointsGranted int64  `json:"points_granted"`
	Message       string `json:"message"`
}

// ClaimDaily начисляет ежедневный бонус пользователю.
func (h *Handler) ClaimDaily(w http.ResponseWriter, r *http.Request) {
	var req claimDailyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	points, err := h.service.ClaimDaily(r.Context(), req.UserID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDailyAlreadyClaimed):
			http.Error(w, "daily bonus already claimed", http.StatusBadRequest)
		case errors.Is(err, repository.ErrUserNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		default:
			h.logger.Error("claim daily error", zap.Error(err), zap.Int64("userID", req.UserID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, claimDailyResponse{
		Success:       true,
		PointsGranted: points,
		Message:       "daily bonus claimed",
	})
}

type leaderboardEntryResponse struct {
	UserID           int64  `json:"user_id"`
	Nickname         string `json:"nickname"`
	PointsHistorical int64  `json:"points_historical"`
	BestStreak       int32  `json:"best_streak"`
}

// GetLeaderboard возвращает таблицу лидеров по историческим баллам.
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.GetLeaderboard(r.Context())
	if err != nil {
		h.logger.Error("get leaderboard error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]leaderboardEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, leaderboardEntryResponse{
			UserID:           e.UserID,
			Nickname:         e.Nickname,
			PointsHistorical: e.PointsHistorical,
			BestStreak:       e.BestStreak,
		})
	}

	h.writeJSON(w, resp)
}

type rewardResponse struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Cost        int64  `json:"cost"`
	Stock       int32  `json:"stock"`
}

// GetRewards возвращает доступные для обмена призы.
func (h *Handler) GetRewards(w http.ResponseWriter, r *http.Request) {
	rewards, err := h.service.GetActiveRewards(r.Context())
	if err != nil {
		h.logger.Error("get rewards error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]rewardResponse, 0, len(rewards))
	for _, rw := range rewards {
		resp = append(resp, rewardResponse{
			ID:          rw.ID,
			Title:       rw.Title,
			Description: rw.Description,
			Cost:        rw.Cost,
			Stock:       rw.Stock,
		})
	}

	h.writeJSON(w, resp)
}

type claimRewardRequest struct {
	UserID   int64 `json:"user_id"`
	RewardID int64 `json:"reward_id"`
}

type claimRewardResponse struct {
	Success   bool   `json:"success"`
	ClaimCode string `json:"claim_code"`
	Message   string `json:"message"`
}

// ClaimReward обменивает баллы пользователя на приз из каталога.
func (h *Handler) ClaimReward(w http.ResponseWriter, r *http.Request) {
	var req claimRewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID <= 0 || req.RewardID <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	code, err := h.service.ClaimReward(r.Context(), req.UserID, req.RewardID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound), errors.Is(err, repository.ErrRewardNotFound):
			http.Error(w, "user or reward not found", http.StatusNotFound)
		case errors.Is(err, repository.ErrInsufficientPoints):
			http.Error(w, "insufficient points", http.StatusBadRequest)
		case errors.Is(err, repository.ErrOutOfStock):
			http.Error(w, "reward out of stock", http.StatusBadRequest)
		default:
			h.logger.Error("claim reward error", zap.Error(err),
				zap.Int64("userID", req.UserID), zap.Int64("rewardID", req.RewardID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, claimRewardResponse{
		Success:   true,
		ClaimCode: code,
		Message:   "reward claimed",
	})
}

type createDuelRequest struct {
	ChallengerID int64 `json:"challenger_id"`
	OpponentID   int64 `json:"opponent_id"`
}

type createDuelResponse struct {
	DuelID int64 `json:"duel_id"`
}

// CreateDuel создаёт вызов на дуэль.
func (h *Handler) CreateDuel(w http.ResponseWriter, r *http.Request) {
	var req createDuelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChallengerID <= 0 || req.OpponentID <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	duelID, err := h.service.CreateDuel(r.Context(), req.ChallengerID, req.OpponentID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSelfDuel):
			http.Error(w, "cannot duel yourself", http.StatusBadRequest)
		case errors.Is(err, repository.ErrUserNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		default:
			h.logger.Error("create duel error", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, createDuelResponse{DuelID: duelID})
}

type answerDuelRequest struct {
	DuelID int64 `json:"duel_id"`
	UserID int64 `json:"user_id"`
}

// AcceptDuel принимает входящий вызов на дуэль.
func (h *Handler) AcceptDuel(w http.ResponseWriter, r *http.Request) {
	h.answerDuel(w, r, h.service.AcceptDuel)
}

// RejectDuel отклоняет входящий вызов на дуэль.
func (h *Handler) RejectDuel(w http.ResponseWriter, r *http.Request) {
	h.answerDuel(w, r, h.service.RejectDuel)
}

func (h *Handler) answerDuel(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, duelID, userID int64) error) {
	var req answerDuelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DuelID <= 0 || req.UserID <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := fn(r.Context(), req.DuelID, req.UserID); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuelNotFound):
			http.Error(w, "duel not found or already answered", http.StatusNotFound)
		case errors.Is(err, repository.ErrNotDuelParticipant):
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		default:
			h.logger.Error("answer duel error", zap.Error(err), zap.Int64("duelID", req.DuelID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}

type penalizeDuelRequest struct {
	DuelID  int64 `json:"duel_id"`
	LoserID int64 `json:"loser_id"`
}

type penalizeDuelResponse struct {
	LettersState  string `json:"letters_state"`
	GameOver      bool   `json:"game_over"`
	WinnerMessage string `json:"winner_message"`
}

// PenalizeDuel добавляет букву проигравшей стороне дуэли.
func (h *Handler) PenalizeDuel(w http.ResponseWriter, r *http.Request) {
	var req penalizeDuelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DuelID <= 0 || req.LoserID <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	res, err := h.service.PenalizeDuel(r.Context(), req.DuelID, req.LoserID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuelNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, repository.ErrNotDuelParticipant):
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		default:
			h.logger.Error("penalize duel error", zap.Error(err), zap.Int64("duelID", req.DuelID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, penalizeDuelResponse{
		LettersState:  res.Letters,
		GameOver:      res.GameOver,
		WinnerMessage: res.WinnerMessage,
	})
}

type duelResponse struct {
	ID                int64  `json:"id"`
	ChallengerID      int64  `json:"challenger_id"`
	OpponentID        int64  `json:"opponent_id"`
	State             string `json:"state"`
	ChallengerLetters string `json:"challenger_letters"`
	OpponentLetters   string `json:"opponent_letters"`
	WinnerID          *int64 `json:"winner_id,omitempty"`
	CreatedAt         string `json:"created_at"`
}

// GetDuel возвращает текущее состояние дуэли.
func (h *Handler) GetDuel(w http.ResponseWriter, r *http.Request) {
	duelID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || duelID <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	d, err := h.service.GetDuel(r.Context(), duelID)
	if err != nil {
		if errors.Is(err, repository.ErrDuelNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get duel error", zap.Error(err), zap.Int64("duelID", duelID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, duelResponse{
		ID:                d.ID,
		ChallengerID:      d.ChallengerID,
		OpponentID:        d.OpponentID,
		State:             string(d.State),
		ChallengerLetters: d.ChallengerLetters,
		OpponentLetters:   d.OpponentLetters,
		WinnerID:          d.WinnerID,
		CreatedAt:         d.CreatedAt.Format(time.RFC3339),
	})
}

type pendingDuelResponse struct {
	DuelID             int64  `json:"duel_id"`
	ChallengerID       int64  `json:"challenger_id"`
	ChallengerNickname string `json:"challenger_nickname"`
	CreatedAt          string `json:"created_at"`
}

// GetPendingDuels возвращает входящие вызовы пользователя.
func (h *Handler) GetPendingDuels(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	duels, err := h.service.GetPendingDuels(r.Context(), userID)
	if err != nil {
		h.logger.Error("get pending duels error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(duels) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]pendingDuelResponse, 0, len(duels))
	for _, d := range duels {
		resp = append(resp, pendingDuelResponse{
			DuelID:             d.DuelID,
			ChallengerID:       d.ChallengerID,
			ChallengerNickname: d.ChallengerNickname,
			CreatedAt:          d.CreatedAt.Format(time.RFC3339),
		})
	}

	h.writeJSON(w, resp)
}

type userStatsResponse struct {
	TotalDuels int32   `json:"total_duels"`
	DuelsWon   int32   `json:"duels_won"`
	DuelsLost  int32   `json:"duels_lost"`
	WinRate    float64 `json:"win_rate"`
}

// GetUserStats возвращает статистику дуэлей пользователя.
func (h *Handler) GetUserStats(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || userID <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	stats, err := h.service.GetUserStats(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get user stats error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, userStatsResponse{
		TotalDuels: stats.TotalDuels,
		DuelsWon:   stats.DuelsWon,
		DuelsLost:  stats.DuelsLost,
		WinRate:    stats.WinRate,
	})
}

type transactionResponse struct {
	ID          int64  `json:"id"`
	Amount      int64  `json:"amount"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
}

// GetUserTransactions возвращает историю начислений и списаний баллов пользователя.
func (h *Handler) GetUserTransactions(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || userID <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	txs, err := h.service.GetTransactionsByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("get transactions error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(txs) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]transactionResponse, 0, len(txs))
	for _, t := range txs {
		resp = append(resp, transactionResponse{
			ID:          t.ID,
			Amount:      t.Amount,
			Kind:        string(t.Kind),
			Description: t.Description,
			CreatedAt:   t.CreatedAt.Format(time.RFC3339),
		})
	}

	h.writeJSON(w, resp)
}

type rewardClaimResponse struct {
	ID        int64  `json:"id"`
	RewardID  int64  `json:"reward_id"`
	PaidCost  int64  `json:"paid_cost"`
	ClaimCode string `json:"claim_code"`
	CreatedAt string `json:"created_at"`
}

// GetUserClaims возвращает историю обменов баллов на призы.
func (h *Handler) GetUserClaims(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || userID <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	claims, err := h.service.GetClaimsByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("get claims error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(claims) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]rewardClaimResponse, 0, len(claims))
	for _, c := range claims {
		resp = append(resp, rewardClaimResponse{
			ID:        c.ID,
			RewardID:  c.RewardID,
			PaidCost:  c.PaidCost,
			ClaimCode: c.Code,
			CreatedAt: c.CreatedAt.Format(time.RFC3339),
		})
	}

	h.writeJSON(w, resp)
}
