package protocol

import (
	"crypto/sha1"
	"math"
)

// Scramble323Length is the size of the legacy scramble response.
const Scramble323Length = 8

// ScramblePassword computes the mysql_native_password auth response:
// SHA1(password) XOR SHA1(scramble + SHA1(SHA1(password))). The server can
// verify this against its stored SHA1(SHA1(password)) without ever seeing the
// plaintext. An empty password yields an empty response.
// See https://dev.mysql.com/doc/internals/en/secure-password-authentication.html
func ScramblePassword(scramble, password []byte) []byte {
	if len(password) == 0 {
		return nil
	}

	crypt := sha1.New()
	crypt.Write(password)
	stage1 := crypt.Sum(nil)

	crypt.Reset()
	crypt.Write(stage1)
	stage2 := crypt.Sum(nil)

	crypt.Reset()
	crypt.Write(scramble)
	crypt.Write(stage2)
	result := crypt.Sum(nil)

	for i := range result {
		result[i] ^= stage1[i]
	}
	return result
}

// Scramble323 computes the pre-4.1 auth response: two 31-bit hash pairs of
// password and seed feed a multiplicative congruential generator that emits
// the 8 response bytes, XORed with one extra output at the end. Seeds longer
// than 8 bytes are truncated. An empty password yields an empty response
// (the legacy protocol allows anonymous auth). See libmysql/password.c.
func Scramble323(seed, password []byte) []byte {
	if len(password) == 0 {
		return nil
	}
	if len(seed) > Scramble323Length {
		seed = seed[:Scramble323Length]
	}

	hashPass := hashPassword323(password)
	hashSeed := hashPassword323(seed)
	rand := newRand323(hashPass[0]^hashSeed[0], hashPass[1]^hashSeed[1])

	result := make([]byte, Scramble323Length)
	for i := range result {
		result[i] = byte(math.Floor(rand.next()*31) + 64)
	}
	extra := byte(math.Floor(rand.next() * 31))
	for i := range result {
		result[i] ^= extra
	}
	return result
}

// hashPassword323 is the pre-4.1 password hash: two 31-bit words derived from
// the input with spaces and tabs skipped.
func hashPassword323(password []byte) [2]uint32 {
	var (
		nr  uint32 = 1345345333
		add uint32 = 7
		nr2 uint32 = 0x12345671
	)
	for _, c := range password {
		if c == ' ' || c == '\t' {
			continue
		}
		tmp := uint32(c)
		nr ^= (((nr & 63) + add) * tmp) + (nr << 8)
		nr2 += (nr2 << 8) ^ nr
		add += tmp
	}
	return [2]uint32{nr & ((1 << 31) - 1), nr2 & ((1 << 31) - 1)}
}

// rand323 is the randomizer from libmysql/password.c, kept bit-for-bit so the
// server derives the identical byte stream from its copy of the seeds.
type rand323 struct {
	maxValue    uint32
	maxValueDbl float64
	seed1       uint32
	seed2       uint32
}

func newRand323(seed1, seed2 uint32) *rand323 {
	return &rand323{
		maxValue:    0x3FFFFFFF,
		maxValueDbl: 0x3FFFFFFF,
		seed1:       seed1 % 0x3FFFFFFF,
		seed2:       seed2 % 0x3FFFFFFF,
	}
}

func (r *rand323) next() float64 {
	r.seed1 = (r.seed1*3 + r.seed2) % r.maxValue
	r.seed2 = (r.seed1 + r.seed2 + 33) % r.maxValue
	return float64(r.seed1) / r.maxValueDbl
}
