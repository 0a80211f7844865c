// Package service реализует бизнес-логику игрового сервиса skatespot.
package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mmeshcher/skatespot-system/internal/config"
	"github.com/mmeshcher/skatespot-system/internal/model"
)

// ErrInvalidScore возвращается для результата за пределами допустимого диапазона.
var (
	ErrInvalidScore = errors.New("score out of allowed range")
	// ErrSelfDuel возвращается при попытке вызвать на дуэль самого себя.
	ErrSelfDuel = errors.New("cannot duel yourself")
)

const (
	// sessionTokenBytes — размер случайной части игрового токена (256 бит энтропии).
	sessionTokenBytes = 32
	// claimCodeBytes — размер случайной части кода выдачи приза.
	claimCodeBytes = 4

	// leaderboardLimit — число строк в таблице лидеров.
	leaderboardLimit = 10

	// sessionCleanupInterval — период фоновой очистки игровых сессий.
	sessionCleanupInterval = 1 * time.Hour
	// sessionRetention — возраст сессии, после которого её можно удалить.
	// Должен превышать суточное окно лимита сессий, иначе очистка сломает лимит.
	sessionRetention = 48 * time.Hour
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	GetUserByID(ctx context.Context, userID int64) (*model.User, error)
	CreateSession(ctx context.Context, userID int64, token string, ttl time.Duration, dailyLimit int) error
	SubmitScore(ctx context.Context, token string, score, pointsEarned int64, now time.Time) (*model.ScoreResult, error)
	ClaimDaily(ctx context.Context, userID, points int64, now time.Time) error
	DeleteStaleSessions(ctx context.Context, before time.Time) (int64, error)
	CreateDuel(ctx context.Context, challengerID, opponentID int64) (int64, error)
	AcceptDuel(ctx context.Context, duelID, userID int64) error
	RejectDuel(ctx context.Context, duelID, userID int64) error
	PenalizeDuel(ctx context.Context, duelID, loserID int64) (*model.PenaltyResult, error)
	GetDuel(ctx context.Context, duelID int64) (*model.Duel, error)
	GetPendingDuels(ctx context.Context, userID int64) ([]model.PendingDuel, error)
	ClaimReward(ctx context.Context, userID, rewardID int64, code string) error
	GetActiveRewards(ctx context.Context) ([]model.Reward, error)
	GetLeaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)
	GetTransactionsByUser(ctx context.Context, userID int64) ([]model.PointsTransaction, error)
	GetClaimsByUser(ctx context.Context, userID int64) ([]model.RewardClaim, error)
}

// Service содержит бизнес-логику игрового сервиса skatespot.
type Service struct {
	repo Repository
	cfg  *config.Config
}

// NewService создаёт новый сервис с указанным репозиторием и игровой политикой.
func NewService(repo Repository, cfg *config.Config) *Service {
	return &Service{
		repo: repo,
		cfg:  cfg,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// StartSession выдаёт одноразовый игровой токен с ограниченным сроком действия.
// Возвращает токен и срок его жизни в секундах.
func (s *Service) StartSession(ctx context.Context, userID int64) (string, int, error) {
	token, err := generateToken()
	if err != nil {
		return "", 0, err
	}

	if err := s.repo.CreateSession(ctx, userID, token, s.cfg.SessionTTL, s.cfg.DailySessionLimit); err != nil {
		return "", 0, err
	}

	return token, int(s.cfg.SessionTTL.Seconds()), nil
}

// SubmitScore засчитывает результат игры по одноразовому токену.
// Результат выше допустимого максимума отклоняется до обращения к хранилищу.
func (s *Service) SubmitScore(ctx context.Context, token string, score int64) (*model.ScoreResult, error) {
	if score < 0 || score > s.cfg.MaxScore {
		return nil, ErrInvalidScore
	}

	pointsEarned := score / s.cfg.PointsDivisor

	return s.repo.SubmitScore(ctx, token, score, pointsEarned, time.Now())
}

// ClaimDaily начисляет пользователю ежедневные баллы и возвращает их количество.
func (s *Service) ClaimDaily(ctx context.Context, userID int64) (int64, error) {
	if err := s.repo.ClaimDaily(ctx, userID, s.cfg.DailyClaimPoints, time.Now()); err != nil {
		return 0, err
	}
	return s.cfg.DailyClaimPoints, nil
}

// CreateDuel создаёт вызов на дуэль от challenger к opponent.
func (s *Service) CreateDuel(ctx context.Context, challengerID, opponentID int64) (int64, error) {
	if challengerID == opponentID {
		return 0, ErrSelfDuel
	}
	return s.repo.CreateDuel(ctx, challengerID, opponentID)
}

// AcceptDuel принимает входящий вызов на дуэль.
func (s *Service) AcceptDuel(ctx context.Context, duelID, userID int64) error {
	return s.repo.AcceptDuel(ctx, duelID, userID)
}

// RejectDuel отклоняет входящий вызов на дуэль.
func (s *Service) RejectDuel(ctx context.Context, duelID, userID int64) error {
	return s.repo.RejectDuel(ctx, duelID, userID)
}

// PenalizeDuel применяет штраф к проигравшей стороне дуэли.
func (s *Service) PenalizeDuel(ctx context.Context, duelID, loserID int64) (*model.PenaltyResult, error) {
	return s.repo.PenalizeDuel(ctx, duelID, loserID)
}

// GetDuel возвращает текущее состояние дуэли.
func (s *Service) GetDuel(ctx context.Context, duelID int64) (*model.Duel, error) {
	return s.repo.GetDuel(ctx, duelID)
}

// GetPendingDuels возвращает входящие вызовы пользователя.
func (s *Service) GetPendingDuels(ctx context.Context, userID int64) ([]model.PendingDuel, error) {
	return s.repo.GetPendingDuels(ctx, userID)
}

// ClaimReward обменивает баллы пользователя на приз и возвращает код выдачи.
func (s *Service) ClaimReward(ctx context.Context, userID, rewardID int64) (string, error) {
	code, err := generateClaimCode()
	if err != nil {
		return "", err
	}

	if err := s.repo.ClaimReward(ctx, userID, rewardID, code); err != nil {
		return "", err
	}

	return code, nil
}

// GetActiveRewards возвращает доступные для обмена призы.
func (s *Service) GetActiveRewards(ctx context.Context) ([]model.Reward, error) {
	return s.repo.GetActiveRewards(ctx)
}

// GetLeaderboard возвращает таблицу лидеров.
func (s *Service) GetLeaderboard(ctx context.Context) ([]model.LeaderboardEntry, error) {
	return s.repo.GetLeaderboard(ctx, leaderboardLimit)
}

// GetTransactionsByUser возвращает журнал начислений и списаний пользователя.
func (s *Service) GetTransactionsByUser(ctx context.Context, userID int64) ([]model.PointsTransaction, error) {
	return s.repo.GetTransactionsByUser(ctx, userID)
}

// GetClaimsByUser возвращает историю обменов баллов на призы.
func (s *Service) GetClaimsByUser(ctx context.Context, userID int64) ([]model.RewardClaim, error) {
	return s.repo.GetClaimsByUser(ctx, userID)
}

// GetUserStats возвращает статистику дуэлей пользователя с процентом побед.
func (s *Service) GetUserStats(ctx context.Context, userID int64) (*model.UserStats, error) {
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	stats := &model.UserStats{
		TotalDuels: u.TotalDuels,
		DuelsWon:   u.DuelsWon,
		DuelsLost:  u.DuelsLost,
	}

	if stats.TotalDuels > 0 {
		rate := float64(stats.DuelsWon) / float64(stats.TotalDuels) * 100
		stats.WinRate = math.Round(rate*10) / 10
	}

	return stats, nil
}

// StartSessionCleanup запускает фоновый процесс удаления израсходованных и истёкших сессий.
func (s *Service) StartSessionCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(sessionCleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_, _ = s.repo.DeleteStaleSessions(ctx, time.Now().Add(-sessionRetention))
			}
		}
	}()
}

func generateToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func generateClaimCode() (string, error) {
	buf := make([]byte, claimCodeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate claim code: %w", err)
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}
