package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/skatespot-system/internal/model"
	"github.com/mmeshcher/skatespot-system/internal/repository"
	"github.com/mmeshcher/skatespot-system/internal/service"
)

type stubService struct {
	sessionToken string
	sessionTTL   int
	sessionErr   error

	scoreResult *model.ScoreResult
	scoreErr    error

	createDuelID  int64
	createDuelErr error

	answerErr error

	penaltyResult *model.PenaltyResult
	penaltyErr    error

	duel    *model.Duel
	duelErr error

	pending    []model.PendingDuel
	pendingErr error

	claimCode string
	claimErr  error

	rewards    []model.Reward
	rewardsErr error

	leaderboard    []model.LeaderboardEntry
	leaderboardErr error

	stats    *model.UserStats
	statsErr error

	dailyPoints int64
	dailyErr    error

	transactions    []model.PointsTransaction
	transactionsErr error

	claims    []model.RewardClaim
	claimsErr error
}

func (s *stubService) StartSession(ctx context.Context, userID int64) (string, int, error) {
	return s.sessionToken, s.sessionTTL, s.sessionErr
}

func (s *stubService) SubmitScore(ctx context.Context, token string, score int64) (*model.ScoreResult, error) {
	return s.scoreResult, s.scoreErr
}

func (s *stubService) CreateDuel(ctx context.Context, challengerID, opponentID int64) (int64, error) {
	return s.createDuelID, s.createDuelErr
}

func (s *stubService) AcceptDuel(ctx context.Context, duelID, userID int64) error {
	return s.answerErr
}

func (s *stubService) RejectDuel(ctx context.Context, duelID, userID int64) error {
	return s.answerErr
}

func (s *stubService) PenalizeDuel(ctx context.Context, duelID, loserID int64) (*model.PenaltyResult, error) {
	return s.penaltyResult, s.penaltyErr
}

func (s *stubService) GetDuel(ctx context.Context, duelID int64) (*model.Duel, error) {
	return s.duel, s.duelErr
}

func (s *stubService) GetPendingDuels(ctx context.Context, userID int64) ([]model.PendingDuel, error) {
	return s.pending, s.pendingErr
}

func (s *stubService) ClaimReward(ctx context.Context, userID, rewardID int64) (string, error) {
	return s.claimCode, s.claimErr
}

func (s *stubService) GetActiveRewards(ctx context.Context) ([]model.Reward, error) {
	return s.rewards, s.rewardsErr
}

func (s *stubService) GetLeaderboard(ctx context.Context) ([]model.LeaderboardEntry, error) {
	return s.leaderboard, s.leaderboardErr
}

func (s *stubService) GetUserStats(ctx context.Context, userID int64) (*model.UserStats, error) {
	return s.stats, s.statsErr
}

func (s *stubService) ClaimDaily(ctx context.Context, userID int64) (int64, error) {
	return s.dailyPoints, s.dailyErr
}

func (s *stubService) GetTransactionsByUser(ctx context.Context, userID int64) ([]model.PointsTransaction, error) {
	return s.transactions, s.transactionsErr
}

func (s *stubService) GetClaimsByUser(ctx context.Context, userID int64) ([]model.RewardClaim, error) {
	return s.claims, s.claimsErr
}

func newTestRouter(t *testing.T, svc Service) http.Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	return NewHandler(svc, logger).SetupRouter()
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return w
}

func TestStartSession_Success(t *testing.T) {
	router := newTestRouter(t, &stubService{
		sessionToken: "abc123",
		sessionTTL:   300,
	})

	w := doJSON(t, router, http.MethodPost, "/api/game/start-session", startSessionRequest{UserID: 1})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp startSessionResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.SessionToken != "abc123" || resp.ExpiresIn != 300 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestStartSession_RateLimited(t *testing.T) {
	router := newTestRouter(t, &stubService{
		sessionErr: repository.ErrRateLimitExceeded,
	})

	w := doJSON(t, router, http.MethodPost, "/api/game/start-session", startSessionRequest{UserID: 1})

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
}

func TestStartSession_UnknownUser(t *testing.T) {
	router := newTestRouter(t, &stubService{
		sessionErr: repository.ErrUserNotFound,
	})

	w := doJSON(t, router, http.MethodPost, "/api/game/start-session", startSessionRequest{UserID: 99})

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestStartSession_BadBody(t *testing.T) {
	router := newTestRouter(t, &stubService{})

	req := httptest.NewRequest(http.MethodPost, "/api/game/start-session", bytes.NewReader([]byte("not json")))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestSubmitScore_Success(t *testing.T) {
	router := newTestRouter(t, &stubService{
		scoreResult: &model.ScoreResult{PointsEarned: 15, CurrentStreak: 4},
	})

	w := doJSON(t, router, http.MethodPost, "/api/game/submit-score", submitScoreRequest{
		SessionToken: "token",
		Score:        150,
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp submitScoreResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.PointsEarned != 15 || resp.CurrentStreak != 4 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestSubmitScore_InvalidScore(t *testing.T) {
	router := newTestRouter(t, &stubService{
		scoreErr: service.ErrInvalidScore,
	})

	w := doJSON(t, router, http.MethodPost, "/api/game/submit-score", submitScoreRequest{
		SessionToken: "token",
		Score:        999999,
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestSubmitScore_InvalidSession(t *testing.T) {
	router := newTestRouter(t, &stubService{
		scoreErr: repository.ErrSessionInvalid,
	})

	w := doJSON(t, router, http.MethodPost, "/api/game/submit-score", submitScoreRequest{
		SessionToken: "stale",
		Score:        100,
	})

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestClaimDaily_Success(t *testing.T) {
	router := newTestRouter(t, &stubService{
		dailyPoints: 10,
	})

	w := doJSON(t, router, http.MethodPost, "/api/game/claim-daily", claimDailyRequest{UserID: 1})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp claimDailyResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.PointsGranted != 10 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestClaimDaily_AlreadyClaimed(t *testing.T) {
	router := newTestRouter(t, &stubService{
		dailyErr: repository.ErrDailyAlreadyClaimed,
	})

	w := doJSON(t, router, http.MethodPost, "/api/game/claim-daily", claimDailyRequest{UserID: 1})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestClaimDaily_UnknownUser(t *testing.T) {
	router := newTestRouter(t, &stubService{
		dailyErr: repository.ErrUserNotFound,
	})

	w := doJSON(t, router, http.MethodPost, "/api/game/claim-daily", claimDailyRequest{UserID: 99})

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestClaimReward_Success(t *testing.T) {
	router := newTestRouter(t, &stubService{
		claimCode: "AB12CD34",
	})

	w := doJSON(t, router, http.MethodPost, "/api/game/claim-reward", claimRewardRequest{
		UserID:   1,
		RewardID: 2,
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp claimRewardResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.ClaimCode != "AB12CD34" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestClaimReward_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "reward not found", err: repository.ErrRewardNotFound, wantStatus: http.StatusNotFound},
		{name: "user not found", err: repository.ErrUserNotFound, wantStatus: http.StatusNotFound},
		{name: "insufficient points", err: repository.ErrInsufficientPoints, wantStatus: http.StatusBadRequest},
		{name: "out of stock", err: repository.ErrOutOfStock, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(t, &stubService{claimErr: tt.err})

			w := doJSON(t, router, http.MethodPost, "/api/game/claim-reward", claimRewardRequest{
				UserID:   1,
				RewardID: 2,
			})

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestGetRewards_Success(t *testing.T) {
	router := newTestRouter(t, &stubService{
		rewards: []model.Reward{
			{ID: 1, Title: "deck", Cost: 500, Stock: 3, Active: true},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/game/rewards", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp []rewardResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 1 || resp[0].Title != "deck" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestGetLeaderboard_Success(t *testing.T) {
	router := newTestRouter(t, &stubService{
		leaderboard: []model.LeaderboardEntry{
			{UserID: 1, Nickname: "tony", PointsHistorical: 900, BestStreak: 12},
			{UserID: 2, Nickname: "rodney", PointsHistorical: 700, BestStreak: 9},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/game/leaderboard", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp []leaderboardEntryResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 2 || resp[0].Nickname != "tony" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestCreateDuel_Success(t *testing.T) {
	router := newTestRouter(t, &stubService{
		createDuelID: 10,
	})

	w := doJSON(t, router, http.MethodPost, "/api/duels/", createDuelRequest{
		ChallengerID: 1,
		OpponentID:   2,
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp createDuelResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.DuelID != 10 {
		t.Fatalf("duel id = %d, want 10", resp.DuelID)
	}
}

func TestCreateDuel_Self(t *testing.T) {
	router := newTestRouter(t, &stubService{
		createDuelErr: service.ErrSelfDuel,
	})

	w := doJSON(t, router, http.MethodPost, "/api/duels/", createDuelRequest{
		ChallengerID: 1,
		OpponentID:   1,
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestAcceptDuel_Forbidden(t *testing.T) {
	router := newTestRouter(t, &stubService{
		answerErr: repository.ErrNotDuelParticipant,
	})

	w := doJSON(t, router, http.MethodPost, "/api/duels/accept", answerDuelRequest{
		DuelID: 10,
		UserID: 3,
	})

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestRejectDuel_NotFound(t *testing.T) {
	router := newTestRouter(t, &stubService{
		answerErr: repository.ErrDuelNotFound,
	})

	w := doJSON(t, router, http.MethodPost, "/api/duels/reject", answerDuelRequest{
		DuelID: 10,
		UserID: 2,
	})

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestPenalizeDuel_Success(t *testing.T) {
	router := newTestRouter(t, &stubService{
		penaltyResult: &model.PenaltyResult{
			Letters:       "SKATE|SK",
			GameOver:      true,
			WinnerMessage: "rodney wins!",
		},
	})

	w := doJSON(t, router, http.MethodPost, "/api/duels/penalize", penalizeDuelRequest{
		DuelID:  10,
		LoserID: 1,
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp penalizeDuelResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.LettersState != "SKATE|SK" || !resp.GameOver || resp.WinnerMessage != "rodney wins!" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestPenalizeDuel_Outsider(t *testing.T) {
	router := newTestRouter(t, &stubService{
		penaltyErr: repository.ErrNotDuelParticipant,
	})

	w := doJSON(t, router, http.MethodPost, "/api/duels/penalize", penalizeDuelRequest{
		DuelID:  10,
		LoserID: 42,
	})

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestGetDuel_Success(t *testing.T) {
	winner := int64(2)
	router := newTestRouter(t, &stubService{
		duel: &model.Duel{
			ID:                10,
			ChallengerID:      1,
			OpponentID:        2,
			State:             model.DuelStateFinished,
			ChallengerLetters: "SKATE",
			OpponentLetters:   "SK",
			WinnerID:          &winner,
			CreatedAt:         time.Now(),
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/duels/10", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp duelResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.State != "finished" || resp.WinnerID == nil || *resp.WinnerID != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestGetPendingDuels_Empty(t *testing.T) {
	router := newTestRouter(t, &stubService{})

	req := httptest.NewRequest(http.MethodGet, "/api/duels/pending?user_id=5", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
}

func TestGetPendingDuels_BadUserID(t *testing.T) {
	router := newTestRouter(t, &stubService{})

	req := httptest.NewRequest(http.MethodGet, "/api/duels/pending?user_id=abc", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestGetUserStats_Success(t *testing.T) {
	router := newTestRouter(t, &stubService{
		stats: &model.UserStats{TotalDuels: 4, DuelsWon: 3, DuelsLost: 1, WinRate: 75},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/users/7/stats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp userStatsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.TotalDuels != 4 || resp.WinRate != 75 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestGetUserStats_NotFound(t *testing.T) {
	router := newTestRouter(t, &stubService{
		statsErr: repository.ErrUserNotFound,
	})

	req := httptest.NewRequest(http.MethodGet, "/api/users/404/stats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestGetUserTransactions_Success(t *testing.T) {
	router := newTestRouter(t, &stubService{
		transactions: []model.PointsTransaction{
			{ID: 1, UserID: 7, Amount: 15, Kind: model.TransactionKindGameScore, CreatedAt: time.Now()},
			{ID: 2, UserID: 7, Amount: -500, Kind: model.TransactionKindRewardClaim, CreatedAt: time.Now()},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/users/7/transactions", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp []transactionResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 2 || resp[0].Kind != "game_score" || resp[1].Amount != -500 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestGetUserTransactions_Empty(t *testing.T) {
	router := newTestRouter(t, &stubService{})

	req := httptest.NewRequest(http.MethodGet, "/api/users/7/transactions", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
}

func TestGetUserClaims_Success(t *testing.T) {
	router := newTestRouter(t, &stubService{
		claims: []model.RewardClaim{
			{ID: 1, UserID: 7, RewardID: 3, PaidCost: 500, Code: "AB12CD34", CreatedAt: time.Now()},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/users/7/claims", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp []rewardClaimResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 1 || resp[0].ClaimCode != "AB12CD34" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}
