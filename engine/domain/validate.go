package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxQuestionRunes caps question length before embedding.
const MaxQuestionRunes = 4096

// ValidateWindow checks a sentence window: window >= 1 and 0 <= overlap < window.
// The advance step window-overlap is therefore always at least one.
func ValidateWindow(window, overlap int) error {
	if window < 1 {
		return NewValidationError("window_size", fmt.Sprint(window), ErrInvalidWindow)
	}
	if overlap < 0 || overlap >= window {
		return NewValidationError("overlap", fmt.Sprint(overlap), ErrInvalidWindow)
	}
	return nil
}

// ValidateQuestion rejects blank or oversized questions.
func ValidateQuestion(q string) error {
	text := strings.TrimSpace(q)
	if text == "" {
		return NewValidationError("question", q, ErrEmptyQuestion)
	}
	if n := utf8.RuneCountInString(text); n > MaxQuestionRunes {
		return NewValidationError("question", fmt.Sprintf("%d runes", n), ErrQuestionTooLong)
	}
	return nil
}
