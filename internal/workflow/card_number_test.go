package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestFormatCardNumber(t *testing.T) {
	number, err := FormatCardNumber("2025-odd", 42)
	require.NoError(t, err)
	assert.Equal(t, "RC-2025-ODD-000042", number)

	_, err = FormatCardNumber("2025A", 0)
	assert.Error(t, err)
	_, err = FormatCardNumber("bad code!", 1)
	assert.Error(t, err)
}

func TestCardNumberRoundTrip(t *testing.T) {
	rapid.Check(t, func(r *rapid.T) {
		code := rapid.StringMatching(`[A-Z0-9][A-Z0-9-]{0,10}[A-Z0-9]`).Draw(r, "code")
		seq := rapid.Int64Range(1, 9_999_999).Draw(r, "seq")

		number, err := FormatCardNumber(code, seq)
		if err != nil {
			r.Fatalf("format: %v", err)
		}
		gotCode, gotSeq, err := ParseCardNumber(number)
		if err != nil {
			r.Fatalf("parse %s: %v", number, err)
		}
		if gotCode != code || gotSeq != seq {
			r.Fatalf("round trip %s -> (%s, %d)", number, gotCode, gotSeq)
		}
	})
}

func TestDistinctSequencesGiveDistinctNumbers(t *testing.T) {
	rapid.Check(t, func(r *rapid.T) {
		a := rapid.Int64Range(1, 1_000_000).Draw(r, "a")
		b := rapid.Int64Range(1, 1_000_000).Draw(r, "b")
		na, _ := FormatCardNumber("2025A", a)
		nb, _ := FormatCardNumber("2025A", b)
		if (a == b) != (na == nb) {
			r.Fatalf("%d->%s %d->%s", a, na, b, nb)
		}
	})
}
