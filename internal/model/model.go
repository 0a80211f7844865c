// Package model содержит доменные сущности игрового сервиса skatespot.
package model

import "time"

// User представляет игрока с денормализованным балансом баллов и статистикой дуэлей.
type User struct {
	ID               int64
	Nickname         string
	PointsCurrent    int64
	PointsHistorical int64
	BestScore        int64
	CurrentStreak    int32
	BestStreak       int32
	LastPlayedAt     *time.Time
	TotalDuels       int32
	DuelsWon         int32
	DuelsLost        int32
	CreatedAt        time.Time
}

// TransactionKind описывает тип операции в журнале баллов.
type TransactionKind string

const (
	TransactionKindDailyClaim  TransactionKind = "daily_claim"
	TransactionKindGameScore   TransactionKind = "game_score"
	TransactionKindRewardClaim TransactionKind = "reward_claim"
)

// PointsTransaction — запись append-only журнала начислений и списаний.
// Журнал служит для аудита; баланс хранится денормализованно в User.
type PointsTransaction struct {
	ID          int64
	UserID      int64
	Amount      int64
	Kind        TransactionKind
	Description string
	CreatedAt   time.Time
}

// DuelState описывает состояние дуэли.
type DuelState string

const (
	DuelStatePending    DuelState = "pending"
	DuelStateInProgress DuelState = "in_progress"
	DuelStateFinished   DuelState = "finished"
	DuelStateRejected   DuelState = "rejected"
)

// Duel описывает дуэль S.K.A.T.E. между двумя игроками.
// Буквы каждой стороны накапливаются до полного слова; собравший слово проигрывает.
type Duel struct {
	ID                int64
	ChallengerID      int64
	OpponentID        int64
	State             DuelState
	ChallengerLetters string
	OpponentLetters   string
	WinnerID          *int64
	CreatedAt         time.Time
}

// PenaltyResult — результат применения штрафа к дуэли.
type PenaltyResult struct {
	Letters       string
	GameOver      bool
	WinnerMessage string
}

// Reward описывает приз из каталога наград.
type Reward struct {
	ID          int64
	Title       string
	Description string
	Cost        int64
	Stock       int32
	Active      bool
	CreatedAt   time.Time
}

// RewardClaim фиксирует факт обмена баллов на приз.
type RewardClaim struct {
	ID        int64
	UserID    int64
	RewardID  int64
	PaidCost  int64
	Code      string
	CreatedAt time.Time
}

// PendingDuel описывает входящий вызов на дуэль с именем вызвавшего.
type PendingDuel struct {
	DuelID             int64
	ChallengerID       int64
	ChallengerNickname string
	CreatedAt          time.Time
}

// LeaderboardEntry — строка таблицы лидеров по историческим баллам.
type LeaderboardEntry struct {
	UserID           int64
	Nickname         string
	PointsHistorical int64
	BestStreak       int32
}

// UserStats — статистика дуэлей пользователя.
type UserStats struct {
	TotalDuels int32
	DuelsWon   int32
	DuelsLost  int32
	WinRate    float64
}

// ScoreResult — итог зачёта игровой сессии.
type ScoreResult struct {
	PointsEarned  int64
	CurrentStreak int32
}
