package protocol

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScramblePassword(t *testing.T) {
	scramble := []byte("01234567890123456789")

	got := ScramblePassword(scramble, []byte("secret"))
	assert.Equal(t, "7abe1a8776b59e931059451f81e596a60dbbf7a8", hex.EncodeToString(got))

	got = ScramblePassword(scramble, []byte("p4ssw0rd"))
	assert.Equal(t, "4b762908d3fbdb4fcd684277c7c7d25a306f4ba3", hex.EncodeToString(got))
}

func TestScramblePasswordDeterministic(t *testing.T) {
	scramble := []byte("01234567890123456789")
	a := ScramblePassword(scramble, []byte("secret"))
	b := ScramblePassword(scramble, []byte("secret"))
	assert.Equal(t, a, b)
	assert.Len(t, a, 20)
}

func TestScramblePasswordSeedSensitive(t *testing.T) {
	a := ScramblePassword([]byte("01234567890123456789"), []byte("secret"))
	b := ScramblePassword([]byte("98765432109876543210"), []byte("secret"))
	assert.NotEqual(t, a, b, "seed must influence the response")
}

func TestScramblePasswordEmpty(t *testing.T) {
	assert.Empty(t, ScramblePassword([]byte("01234567890123456789"), nil))
	assert.Empty(t, ScramblePassword([]byte("01234567890123456789"), []byte{}))
}

func TestScramble323(t *testing.T) {
	got := Scramble323([]byte("01234567"), []byte("secret"))
	assert.Equal(t, "5053595c49555541", hex.EncodeToString(got))

	got = Scramble323([]byte("AAAAAAAA"), []byte("abc"))
	assert.Equal(t, "56424f5b5d445250", hex.EncodeToString(got))
}

func TestScramble323TruncatesSeed(t *testing.T) {
	// Only the first 8 seed bytes matter.
	short := Scramble323([]byte("01234567"), []byte("secret"))
	long := Scramble323([]byte("0123456789012345"), []byte("secret"))
	assert.Equal(t, short, long)
}

func TestScramble323Empty(t *testing.T) {
	assert.Empty(t, Scramble323([]byte("01234567"), nil))
	assert.Empty(t, Scramble323([]byte("01234567"), []byte{}))
}

func TestScramble323Deterministic(t *testing.T) {
	a := Scramble323([]byte("01234567"), []byte("secret"))
	b := Scramble323([]byte("01234567"), []byte("secret"))
	assert.Equal(t, a, b)
	assert.Len(t, a, Scramble323Length)
}
