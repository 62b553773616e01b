package verify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"mission_rewards/internal/apperr"
	"mission_rewards/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testMissionID = uuid.MustParse("6d2f3a7c-1b4e-4f8a-9c0d-2e3f4a5b6c7d")
	testPlaceID   = uuid.MustParse("a1b2c3d4-e5f6-4789-8abc-def012345678")
)

func TestSigner_MatchesLiteralConcatenation(t *testing.T) {
	s := NewSigner([]byte("secret"))

	sig := s.Sign("m", "p", "n")
	assert.Len(t, sig, 64)
	assert.True(t, s.Valid("m", "p", "n", sig))
	assert.False(t, s.Valid("m", "p", "n2", sig))
	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte("m.p.n"))
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), sig)
	assert.False(t, s.Valid("m", "p", "n", "zz"))
	assert.False(t, NewSigner([]byte("other")).Valid("m", "p", "n", sig))
}

func TestCodeVerifier_RoundTrip(t *testing.T) {
	s := NewSigner([]byte("secret"))
	nonce, err := NewNonce()
	require.NoError(t, err)

	raw, err := s.Issue(testMissionID, testPlaceID, nonce)
	require.NoError(t, err)

	claims, err := NewCodeVerifier(s).VerifyClaims(raw, testMissionID, testPlaceID)
	require.NoError(t, err)
	assert.Equal(t, nonce, claims.Nonce)
	assert.Equal(t, testMissionID.String(), claims.MissionID)
}

func TestCodeVerifier_TamperedFields(t *testing.T) {
	s := NewSigner([]byte("secret"))
	v := NewCodeVerifier(s)
	m, p, n := testMissionID.String(), testPlaceID.String(), "nonce-1"
	valid := TokenClaims{MissionID: m, PlaceID: p, Nonce: n, Signature: s.Sign(m, p, n)}

	otherMission := uuid.New().String()
	otherPlace := uuid.New().String()
	flipped := []byte(valid.Signature)
	if flipped[0] == 'a' {
		flipped[0] = 'b'
	} else {
		flipped[0] = 'a'
	}

	tests := []struct {
		name   string
		mutate func(c *TokenClaims)
	}{
		{name: "mission id", mutate: func(c *TokenClaims) { c.MissionID = otherMission }},
		{name: "place id", mutate: func(c *TokenClaims) { c.PlaceID = otherPlace }},
		{name: "nonce", mutate: func(c *TokenClaims) { c.Nonce = "nonce-2" }},
		{name: "signature", mutate: func(c *TokenClaims) { c.Signature = string(flipped) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			raw, err := EncodeToken(c)
			require.NoError(t, err)

			_, err = v.VerifyClaims(raw, testMissionID, testPlaceID)
			assert.ErrorIs(t, err, apperr.ErrBadSignature)
		})
	}
}

func TestCodeVerifier_WrongBinding(t *testing.T) {
	s := NewSigner([]byte("secret"))
	raw, err := s.Issue(testMissionID, testPlaceID, "n")
	require.NoError(t, err)

	_, err = NewCodeVerifier(s).VerifyClaims(raw, uuid.New(), testPlaceID)
	assert.ErrorIs(t, err, apperr.ErrTokenMismatch)
}

func TestDecodeToken_Malformed(t *testing.T) {
	partial, err := EncodeToken(TokenClaims{MissionID: "m", PlaceID: "p", Nonce: "n"})
	require.NoError(t, err)

	for _, raw := range []string{"", "!!!", "bm90LWpzb24", partial} {
		_, err := DecodeToken(raw)
		assert.ErrorIs(t, err, apperr.ErrMalformedToken, raw)
	}
}

func TestCheckRecord(t *testing.T) {
	now := time.Now()
	consumed := now.Add(-time.Minute)

	assert.ErrorIs(t, CheckRecord(nil, now), apperr.ErrTokenNotFound)
	assert.ErrorIs(t, CheckRecord(&model.ProofToken{ExpiresAt: now.Add(time.Hour), ConsumedAt: &consumed}, now), apperr.ErrTokenConsumed)
	assert.ErrorIs(t, CheckRecord(&model.ProofToken{ExpiresAt: now.Add(-time.Second)}, now), apperr.ErrTokenExpired)
	assert.NoError(t, CheckRecord(&model.ProofToken{ExpiresAt: now.Add(time.Hour)}, now))
}
