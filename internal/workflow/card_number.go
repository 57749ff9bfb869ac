package workflow

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	cardPrefix      = "RC"
	cardSequenceLen = 6
)

var semesterCodePattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9-]{0,14}[A-Z0-9]$`)

// NormalizeSemesterCode upper-cases code and checks it can prefix a card number.
func NormalizeSemesterCode(code string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if !semesterCodePattern.MatchString(normalized) {
		return "", fmt.Errorf("semester code %q must be 2-16 letters, digits or dashes", code)
	}
	return normalized, nil
}

// FormatCardNumber renders RC-<CODE>-<seq> with a zero-padded six digit sequence.
// Sequences past 999999 keep all their digits.
func FormatCardNumber(semesterCode string, seq int64) (string, error) {
	if seq <= 0 {
		return "", fmt.Errorf("card sequence must be positive, got %d", seq)
	}
	code, err := NormalizeSemesterCode(semesterCode)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%0*d", cardPrefix, code, cardSequenceLen, seq), nil
}

// ParseCardNumber splits a card number into its semester code and sequence.
func ParseCardNumber(number string) (string, int64, error) {
	if !strings.HasPrefix(number, cardPrefix+"-") {
		return "", 0, fmt.Errorf("card number %q lacks the %s prefix", number, cardPrefix)
	}
	rest := number[len(cardPrefix)+1:]
	idx := strings.LastIndex(rest, "-")
	if idx <= 0 || len(rest)-idx-1 < cardSequenceLen {
		return "", 0, fmt.Errorf("card number %q is malformed", number)
	}
	seq, err := strconv.ParseInt(rest[idx+1:], 10, 64)
	if err != nil || seq <= 0 {
		return "", 0, fmt.Errorf("card number %q has an invalid sequence", number)
	}
	return rest[:idx], seq, nil
}
