package verify

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"time"

	"mission_rewards/internal/apperr"
	"mission_rewards/internal/model"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

const DefaultTokenTTL = 24 * time.Hour

// TokenClaims are the four fields carried by a proof token on the wire.
type TokenClaims struct {
	MissionID string `json:"m"`
	PlaceID   string `json:"p"`
	Nonce     string `json:"n"`
	Signature string `json:"s"`
}

// EncodeToken renders claims as an opaque base64url string.
func EncodeToken(c TokenClaims) (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func DecodeToken(raw string) (TokenClaims, error) {
	var c TokenClaims
	if raw == "" {
		return c, apperr.ErrMalformedToken
	}
	b, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return c, apperr.ErrMalformedToken
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return c, apperr.ErrMalformedToken
	}
	if c.MissionID == "" || c.PlaceID == "" || c.Nonce == "" || c.Signature == "" {
		return c, apperr.ErrMalformedToken
	}
	return c, nil
}

// Signer computes HMAC-SHA-256 over missionId "." placeId "." nonce.
type Signer struct {
	secret []byte
}

func NewSigner(secret []byte) *Signer {
	return &Signer{secret: append([]byte(nil), secret...)}
}

func (s *Signer) mac(missionID, placeID, nonce string) []byte {
	m := hmac.New(sha256.New, s.secret)
	m.Write([]byte(missionID + "." + placeID + "." + nonce))
	return m.Sum(nil)
}

// Sign returns the hex-encoded signature.
func (s *Signer) Sign(missionID, placeID, nonce string) string {
	return hex.EncodeToString(s.mac(missionID, placeID, nonce))
}

// Valid compares in constant time.
func (s *Signer) Valid(missionID, placeID, nonce, signature string) bool {
	supplied, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(s.mac(missionID, placeID, nonce), supplied)
}

func NewNonce() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Issue builds a signed wire token for a freshly generated nonce.
func (s *Signer) Issue(missionID, placeID uuid.UUID, nonce string) (string, error) {
	m, p := missionID.String(), placeID.String()
	return EncodeToken(TokenClaims{
		MissionID: m,
		PlaceID:   p,
		Nonce:     nonce,
		Signature: s.Sign(m, p, nonce),
	})
}

type CodeVerifier struct {
	signer *Signer
}

func NewCodeVerifier(signer *Signer) *CodeVerifier {
	return &CodeVerifier{signer: signer}
}

// VerifyClaims parses a raw token, checks its signature and that it is bound to the
// given mission and place.
func (v *CodeVerifier) VerifyClaims(raw string, missionID, placeID uuid.UUID) (TokenClaims, error) {
	c, err := DecodeToken(raw)
	if err != nil {
		return c, err
	}
	if !v.signer.Valid(c.MissionID, c.PlaceID, c.Nonce, c.Signature) {
		return c, apperr.ErrBadSignature
	}
	if c.MissionID != missionID.String() || c.PlaceID != placeID.String() {
		return c, apperr.ErrTokenMismatch
	}
	return c, nil
}

// CheckRecord validates the stored token behind a set of claims.
func CheckRecord(tok *model.ProofToken, now time.Time) error {
	if tok == nil {
		return apperr.ErrTokenNotFound
	}
	if tok.ConsumedAt != nil {
		return apperr.ErrTokenConsumed
	}
	if !now.Before(tok.ExpiresAt) {
		return apperr.ErrTokenExpired
	}
	return nil
}
