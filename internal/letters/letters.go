// Package letters содержит чистую логику игры S.K.A.T.E. — накопление букв
// проигрывающей стороной до полного слова.
package letters

import "strings"

// Word — слово, которое собирает проигрывающая сторона. Пятая буква означает выбывание.
const Word = "SKATE"

const separator = "|"

// Append добавляет стороне следующую букву слова. Сторона, уже собравшая
// слово целиком, не меняется.
func Append(side string) string {
	if len(side) >= len(Word) {
		return side
	}
	return side + string(Word[len(side)])
}

// Eliminated сообщает, собрала ли сторона слово целиком.
func Eliminated(side string) bool {
	return len(side) >= len(Word)
}

// Parse разбирает упакованное состояние "ЧЕЛЛЕНДЖЕР|ОППОНЕНТ".
// Пустые и неполные значения из старых строк трактуются как отсутствие букв.
func Parse(packed string) (challenger, opponent string) {
	parts := strings.SplitN(packed, separator, 2)
	if len(parts) < 2 {
		return "", ""
	}
	return parts[0], parts[1]
}

// Pack упаковывает пару сторон в строку для хранения.
func Pack(challenger, opponent string) string {
	return challenger + separator + opponent
}
