// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"

	"github.com/mmeshcher/skatespot-system/internal/letters"
	"github.com/mmeshcher/skatespot-system/internal/model"
	"github.com/mmeshcher/skatespot-system/internal/streak"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUserNotFound возвращается, если пользователь не найден.
var (
	ErrUserNotFound = errors.New("user not found")
	// ErrRewardNotFound возвращается, если приз не найден или неактивен.
	ErrRewardNotFound = errors.New("reward not found")
	// ErrDuelNotFound возвращается, если дуэль не найдена или недоступна в текущем состоянии.
	ErrDuelNotFound = errors.New("duel not found")
	// ErrSessionInvalid возвращается для неизвестного, израсходованного или истёкшего токена.
	ErrSessionInvalid = errors.New("session invalid or expired")
	// ErrRateLimitExceeded возвращается при превышении суточного лимита игровых сессий.
	ErrRateLimitExceeded = errors.New("daily session limit exceeded")
	// ErrInsufficientPoints возвращается при попытке списать больше баллов, чем есть на балансе.
	ErrInsufficientPoints = errors.New("insufficient points")
	// ErrOutOfStock возвращается, если запас приза исчерпан.
	ErrOutOfStock = errors.New("reward out of stock")
	// ErrNotDuelParticipant возвращается, если пользователь не является стороной дуэли.
	ErrNotDuelParticipant = errors.New("user is not a duel participant")
	// ErrDailyAlreadyClaimed возвращается при повторном ежедневном реклейме в тот же день.
	ErrDailyAlreadyClaimed = errors.New("daily points already claimed today")
)

// sessionRateWindow — окно, в котором считается суточный лимит сессий.
const sessionRateWindow = 24 * time.Hour

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry повторяет операцию при ошибках сериализации, дедлоках и сетевых сбоях.
// Бизнес-ошибки (sentinel-значения выше) не ретраятся.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	backoff := retry.WithMaxRetries(3, retry.NewConstant(1*time.Second))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				return retry.RetryableError(err)
			}
			return err
		}

		if isConnectionError(err) {
			return retry.RetryableError(err)
		}

		return err
	})
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// GetUserByID возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUserByID(ctx context.Context, userID int64) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, nickname, points_current, points_historical, best_score,
		        current_streak, best_streak, last_played_at,
		        total_duels, duels_won, duels_lost, created_at
		 FROM users WHERE id = $1`,
		userID,
	)

	var u model.User
	err := row.Scan(&u.ID, &u.Nickname, &u.PointsCurrent, &u.PointsHistorical, &u.BestScore,
		&u.CurrentStreak, &u.BestStreak, &u.LastPlayedAt,
		&u.TotalDuels, &u.DuelsWon, &u.DuelsLost, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &u, nil
}

// CreateSession создаёт игровую сессию с указанным токеном и сроком действия.
// Строка пользователя блокируется на время транзакции, чтобы параллельные запросы
// не обошли суточный лимит.
func (r *PostgresRepository) CreateSession(ctx context.Context, userID int64, token string, ttl time.Duration, dailyLimit int) error {
	return r.withRetry(ctx, func() error {
		return r.createSession(ctx, userID, token, ttl, dailyLimit)
	})
}

func (r *PostgresRepository) createSession(ctx context.Context, userID int64, token string, ttl time.Duration, dailyLimit int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var dummy int
	err = tx.QueryRow(ctx, `SELECT 1 FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&dummy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("lock user for update: %w", err)
	}

	var recent int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM game_sessions WHERE user_id = $1 AND created_at >= $2`,
		userID, time.Now().Add(-sessionRateWindow),
	).Scan(&recent)
	if err != nil {
		return fmt.Errorf("count recent sessions: %w", err)
	}

	if recent >= dailyLimit {
		return ErrRateLimitExceeded
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO game_sessions (token, user_id, expires_at) VALUES ($1, $2, $3)`,
		token, userID, time.Now().Add(ttl),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// SubmitScore атомарно засчитывает результат игровой сессии: помечает токен
// израсходованным, начисляет баллы, пересчитывает серию и пишет запись в журнал.
// Повторная отправка того же токена завершается ErrSessionInvalid без изменений.
func (r *PostgresRepository) SubmitScore(ctx context.Context, token string, score, pointsEarned int64, now time.Time) (*model.ScoreResult, error) {
	var res *model.ScoreResult
	err := r.withRetry(ctx, func() error {
		var err error
		res, err = r.submitScore(ctx, token, score, pointsEarned, now)
		return err
	})
	return res, err
}

func (r *PostgresRepository) submitScore(ctx context.Context, token string, score, pointsEarned int64, now time.Time) (*model.ScoreResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var userID int64
	err = tx.QueryRow(ctx,
		`SELECT user_id FROM game_sessions
		 WHERE token = $1 AND consumed = FALSE AND expires_at > $2
		 FOR UPDATE`,
		token, now,
	).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionInvalid
		}
		return nil, fmt.Errorf("lock session: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE game_sessions SET consumed = TRUE, score = $2 WHERE token = $1`,
		token, score,
	)
	if err != nil {
		return nil, fmt.Errorf("consume session: %w", err)
	}

	var (
		lastPlayed    *time.Time
		currentStreak int32
	)
	err = tx.QueryRow(ctx,
		`SELECT last_played_at, current_streak FROM users WHERE id = $1 FOR UPDATE`,
		userID,
	).Scan(&lastPlayed, &currentStreak)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lock user for update: %w", err)
	}

	newStreak := streak.Next(lastPlayed, currentStreak, now)

	_, err = tx.Exec(ctx,
		`UPDATE users
		 SET points_current = points_current + $2,
		     points_historical = points_historical + $2,
		     current_streak = $3,
		     best_streak = GREATEST(best_streak, $3),
		     best_score = GREATEST(best_score, $4),
		     last_played_at = $5
		 WHERE id = $1`,
		userID, pointsEarned, newStreak, score, now,
	)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO points_transactions (user_id, amount, kind, description)
		 VALUES ($1, $2, $3, $4)`,
		userID, pointsEarned, string(model.TransactionKindGameScore),
		fmt.Sprintf("game session score %d", score),
	)
	if err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &model.ScoreResult{
		PointsEarned:  pointsEarned,
		CurrentStreak: newStreak,
	}, nil
}

// ClaimDaily начисляет пользователю ежедневные баллы не чаще одного раза в календарный день.
// Дата последней игры служит маркером дня, как и при зачёте результата.
func (r *PostgresRepository) ClaimDaily(ctx context.Context, userID, points int64, now time.Time) error {
	return r.withRetry(ctx, func() error {
		return r.claimDaily(ctx, userID, points, now)
	})
}

func (r *PostgresRepository) claimDaily(ctx context.Context, userID, points int64, now time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var lastPlayed *time.Time
	err = tx.QueryRow(ctx,
		`SELECT last_played_at FROM users WHERE id = $1 FOR UPDATE`,
		userID,
	).Scan(&lastPlayed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("lock user for update: %w", err)
	}

	if lastPlayed != nil && sameDay(*lastPlayed, now) {
		return ErrDailyAlreadyClaimed
	}

	_, err = tx.Exec(ctx,
		`UPDATE users
		 SET points_current = points_current + $2,
		     points_historical = points_historical + $2,
		     last_played_at = $3
		 WHERE id = $1`,
		userID, points, now,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO points_transactions (user_id, amount, kind, description)
		 VALUES ($1, $2, $3, $4)`,
		userID, points, string(model.TransactionKindDailyClaim), "daily points claim",
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DeleteStaleSessions удаляет израсходованные и истёкшие сессии, созданные до указанного момента.
// Возвращает число удалённых строк.
func (r *PostgresRepository) DeleteStaleSessions(ctx context.Context, before time.Time) (int64, error) {
	cmdTag, err := r.pool.Exec(ctx,
		`DELETE FROM game_sessions
		 WHERE created_at < $1 AND (consumed = TRUE OR expires_at < $1)`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("delete stale sessions: %w", err)
	}
	return cmdTag.RowsAffected(), nil
}

// CreateDuel создаёт дуэль в состоянии pending и возвращает её идентификатор.
func (r *PostgresRepository) CreateDuel(ctx context.Context, challengerID, opponentID int64) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var cnt int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM users WHERE id = ANY($1)`,
		[]int64{challengerID, opponentID},
	).Scan(&cnt)
	if err != nil {
		return 0, fmt.Errorf("check participants: %w", err)
	}
	if cnt != 2 {
		return 0, ErrUserNotFound
	}

	var duelID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO duels (challenger_id, opponent_id, state)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		challengerID, opponentID, string(model.DuelStatePending),
	).Scan(&duelID)
	if err != nil {
		return 0, fmt.Errorf("insert duel: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	return duelID, nil
}

// AcceptDuel переводит дуэль из pending в in_progress. Принять вызов может только оппонент.
func (r *PostgresRepository) AcceptDuel(ctx context.Context, duelID, userID int64) error {
	return r.answerDuel(ctx, duelID, userID, model.DuelStateInProgress)
}

// RejectDuel переводит дуэль из pending в rejected. Отклонить вызов может только оппонент.
func (r *PostgresRepository) RejectDuel(ctx context.Context, duelID, userID int64) error {
	return r.answerDuel(ctx, duelID, userID, model.DuelStateRejected)
}

func (r *PostgresRepository) answerDuel(ctx context.Context, duelID, userID int64, next model.DuelState) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var opponentID int64
		err = tx.QueryRow(ctx,
			`SELECT opponent_id FROM duels WHERE id = $1 AND state = $2 FOR UPDATE`,
			duelID, string(model.DuelStatePending),
		).Scan(&opponentID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrDuelNotFound
			}
			return fmt.Errorf("lock duel: %w", err)
		}

		if opponentID != userID {
			return ErrNotDuelParticipant
		}

		_, err = tx.Exec(ctx,
			`UPDATE duels SET state = $2 WHERE id = $1`,
			duelID, string(next),
		)
		if err != nil {
			return fmt.Errorf("update duel state: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		return nil
	})
}

// PenalizeDuel добавляет букву проигравшей стороне и при собранном слове
// завершает дуэль: фиксирует победителя и обновляет статистику обоих игроков
// в той же транзакции. Повторный вызов после завершения возвращает терминальное
// состояние без изменений.
func (r *PostgresRepository) PenalizeDuel(ctx context.Context, duelID, loserID int64) (*model.PenaltyResult, error) {
	var res *model.PenaltyResult
	err := r.withRetry(ctx, func() error {
		var err error
		res, err = r.penalizeDuel(ctx, duelID, loserID)
		return err
	})
	return res, err
}

func (r *PostgresRepository) penalizeDuel(ctx context.Context, duelID, loserID int64) (*model.PenaltyResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		challengerID int64
		opponentID   int64
		state        string
		packed       string
		winnerID     *int64
	)
	err = tx.QueryRow(ctx,
		`SELECT challenger_id, opponent_id, state, letters, winner_id
		 FROM duels WHERE id = $1 FOR UPDATE`,
		duelID,
	).Scan(&challengerID, &opponentID, &state, &packed, &winnerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDuelNotFound
		}
		return nil, fmt.Errorf("lock duel: %w", err)
	}

	if winnerID != nil {
		msg, err := r.winnerMessage(ctx, tx, *winnerID)
		if err != nil {
			return nil, err
		}
		return &model.PenaltyResult{Letters: packed, GameOver: true, WinnerMessage: msg}, nil
	}

	if state == string(model.DuelStateRejected) {
		return &model.PenaltyResult{Letters: packed}, nil
	}

	if loserID != challengerID && loserID != opponentID {
		return nil, ErrNotDuelParticipant
	}

	challenger, opponent := letters.Parse(packed)
	if loserID == challengerID {
		challenger = letters.Append(challenger)
	} else {
		opponent = letters.Append(opponent)
	}

	newPacked := letters.Pack(challenger, opponent)
	_, err = tx.Exec(ctx,
		`UPDATE duels SET letters = $2 WHERE id = $1`,
		duelID, newPacked,
	)
	if err != nil {
		return nil, fmt.Errorf("update letters: %w", err)
	}

	res := &model.PenaltyResult{Letters: newPacked}

	if letters.Eliminated(challenger) || letters.Eliminated(opponent) {
		winner, loser := challengerID, opponentID
		if letters.Eliminated(challenger) {
			winner, loser = opponentID, challengerID
		}

		_, err = tx.Exec(ctx,
			`UPDATE duels SET state = $2, winner_id = $3 WHERE id = $1`,
			duelID, string(model.DuelStateFinished), winner,
		)
		if err != nil {
			return nil, fmt.Errorf("finish duel: %w", err)
		}

		_, err = tx.Exec(ctx,
			`UPDATE users SET total_duels = total_duels + 1, duels_won = duels_won + 1 WHERE id = $1`,
			winner,
		)
		if err != nil {
			return nil, fmt.Errorf("update winner stats: %w", err)
		}

		_, err = tx.Exec(ctx,
			`UPDATE users SET total_duels = total_duels + 1, duels_lost = duels_lost + 1 WHERE id = $1`,
			loser,
		)
		if err != nil {
			return nil, fmt.Errorf("update loser stats: %w", err)
		}

		msg, err := r.winnerMessage(ctx, tx, winner)
		if err != nil {
			return nil, err
		}

		res.GameOver = true
		res.WinnerMessage = msg
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return res, nil
}

func (r *PostgresRepository) winnerMessage(ctx context.Context, tx pgx.Tx, winnerID int64) (string, error) {
	var nickname string
	err := tx.QueryRow(ctx, `SELECT nickname FROM users WHERE id = $1`, winnerID).Scan(&nickname)
	if err != nil {
		return "", fmt.Errorf("get winner nickname: %w", err)
	}
	return fmt.Sprintf("%s wins!", nickname), nil
}

// GetDuel возвращает текущее состояние дуэли.
func (r *PostgresRepository) GetDuel(ctx context.Context, duelID int64) (*model.Duel, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, challenger_id, opponent_id, state, letters, winner_id, created_at
		 FROM duels WHERE id = $1`,
		duelID,
	)

	var (
		d      model.Duel
		state  string
		packed string
	)
	err := row.Scan(&d.ID, &d.ChallengerID, &d.OpponentID, &state, &packed, &d.WinnerID, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDuelNotFound
		}
		return nil, fmt.Errorf("get duel: %w", err)
	}

	d.State = model.DuelState(state)
	d.ChallengerLetters, d.OpponentLetters = letters.Parse(packed)

	return &d, nil
}

// GetPendingDuels возвращает входящие вызовы пользователя с именами вызвавших.
func (r *PostgresRepository) GetPendingDuels(ctx context.Context, userID int64) ([]model.PendingDuel, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT d.id, d.challenger_id, u.nickname, d.created_at
		 FROM duels d
		 JOIN users u ON u.id = d.challenger_id
		 WHERE d.opponent_id = $1 AND d.state = $2
		 ORDER BY d.created_at DESC`,
		userID, string(model.DuelStatePending),
	)
	if err != nil {
		return nil, fmt.Errorf("select pending duels: %w", err)
	}
	defer rows.Close()

	var res []model.PendingDuel
	for rows.Next() {
		var p model.PendingDuel
		if err := rows.Scan(&p.DuelID, &p.ChallengerID, &p.ChallengerNickname, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending duel: %w", err)
		}
		res = append(res, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ClaimReward атомарно обменивает баллы на приз: списывает стоимость, уменьшает
// запас и создаёт запись о выдаче с указанным кодом. Строки пользователя и приза
// блокируются на время транзакции.
func (r *PostgresRepository) ClaimReward(ctx context.Context, userID, rewardID int64, code string) error {
	return r.withRetry(ctx, func() error {
		return r.claimReward(ctx, userID, rewardID, code)
	})
}

func (r *PostgresRepository) claimReward(ctx context.Context, userID, rewardID int64, code string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var balance int64
	err = tx.QueryRow(ctx,
		`SELECT points_current FROM users WHERE id = $1 FOR UPDATE`,
		userID,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("lock user for update: %w", err)
	}

	var (
		title  string
		cost   int64
		stock  int32
		active bool
	)
	err = tx.QueryRow(ctx,
		`SELECT title, cost, stock, active FROM rewards WHERE id = $1 FOR UPDATE`,
		rewardID,
	).Scan(&title, &cost, &stock, &active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrRewardNotFound
		}
		return fmt.Errorf("lock reward for update: %w", err)
	}

	if !active {
		return ErrRewardNotFound
	}
	if balance < cost {
		return ErrInsufficientPoints
	}
	if stock <= 0 {
		return ErrOutOfStock
	}

	_, err = tx.Exec(ctx,
		`UPDATE users SET points_current = points_current - $2 WHERE id = $1`,
		userID, cost,
	)
	if err != nil {
		return fmt.Errorf("debit points: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE rewards SET stock = stock - 1 WHERE id = $1`,
		rewardID,
	)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO reward_claims (user_id, reward_id, paid_cost, code)
		 VALUES ($1, $2, $3, $4)`,
		userID, rewardID, cost, code,
	)
	if err != nil {
		return fmt.Errorf("insert claim: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO points_transactions (user_id, amount, kind, description)
		 VALUES ($1, $2, $3, $4)`,
		userID, -cost, string(model.TransactionKindRewardClaim),
		fmt.Sprintf("reward claim: %s", title),
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetActiveRewards возвращает активные призы с ненулевым запасом, упорядоченные по стоимости.
func (r *PostgresRepository) GetActiveRewards(ctx context.Context) ([]model.Reward, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, description, cost, stock, active, created_at
		 FROM rewards
		 WHERE active = TRUE AND stock > 0
		 ORDER BY cost ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select rewards: %w", err)
	}
	defer rows.Close()

	var res []model.Reward
	for rows.Next() {
		var rw model.Reward
		if err := rows.Scan(&rw.ID, &rw.Title, &rw.Description, &rw.Cost, &rw.Stock, &rw.Active, &rw.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		res = append(res, rw)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetTransactionsByUser возвращает журнал начислений и списаний пользователя.
func (r *PostgresRepository) GetTransactionsByUser(ctx context.Context, userID int64) ([]model.PointsTransaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, amount, kind, description, created_at
		 FROM points_transactions
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	defer rows.Close()

	var res []model.PointsTransaction
	for rows.Next() {
		var (
			t    model.PointsTransaction
			kind string
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &kind, &t.Description, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Kind = model.TransactionKind(kind)
		res = append(res, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetClaimsByUser возвращает историю обменов баллов на призы.
func (r *PostgresRepository) GetClaimsByUser(ctx context.Context, userID int64) ([]model.RewardClaim, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, reward_id, paid_cost, code, created_at
		 FROM reward_claims
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select claims: %w", err)
	}
	defer rows.Close()

	var res []model.RewardClaim
	for rows.Next() {
		var c model.RewardClaim
		if err := rows.Scan(&c.ID, &c.UserID, &c.RewardID, &c.PaidCost, &c.Code, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		res = append(res, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetLeaderboard возвращает лучших игроков по историческим баллам.
func (r *PostgresRepository) GetLeaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, nickname, points_historical, best_streak
		 FROM users
		 ORDER BY points_historical DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select leaderboard: %w", err)
	}
	defer rows.Close()

	var res []model.LeaderboardEntry
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Nickname, &e.PointsHistorical, &e.BestStreak); err != nil {
			return nil, fmt.Errorf("scan leaderboard entry: %w", err)
		}
		res = append(res, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
