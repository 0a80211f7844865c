// Package streak содержит чистую логику расчёта ежедневной игровой серии.
package streak

import "time"

// Next вычисляет новое значение серии по дате последней игры и текущей серии.
// Серия растёт только при игре в соседние календарные дни; повторная игра в тот
// же день серию не меняет, пропуск дня сбрасывает её в 1. Отрицательная разница
// дат (рассинхронизация часов) трактуется как игра в тот же день.
func Next(lastPlayed *time.Time, current int32, today time.Time) int32 {
	if lastPlayed == nil {
		return 1
	}

	delta := daysBetween(*lastPlayed, today)

	switch {
	case delta == 1:
		return current + 1
	case delta > 1:
		return 1
	default:
		// delta == 0 либо отрицательная — серию не трогаем.
		if current < 1 {
			return 1
		}
		return current
	}
}

// daysBetween возвращает разницу в календарных днях, а не в 24-часовых интервалах.
func daysBetween(from, to time.Time) int {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()

	f := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	t := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)

	return int(t.Sub(f).Hours() / 24)
}
