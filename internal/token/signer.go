// Package token issues and verifies the signed capability tokens that
// authorize state-changing admin operations. A token captures the exact
// intent it was minted for; a verified token whose claims diverge from
// the request in hand is worthless.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/rasinmuhammed/matrix-admin/model"
)

// Actions a capability token can authorize.
const (
	ActionCreate       = "create"
	ActionUpdate       = "update"
	ActionDelete       = "delete"
	ActionLoadFragment = "load_fragment"
)

// MinKeyLength is the shortest accepted signing key.
const MinKeyLength = 16

// DefaultMaxAge is how long a token stays valid when the caller does not
// pass an explicit age.
const DefaultMaxAge = time.Hour

const defaultSalt = "matrix-admin"

// Claim names used inside capability tokens.
const (
	ClaimModel    = "model"
	ClaimAction   = "action"
	ClaimSubtype  = "subtype"
	ClaimRecordID = "record_id"
	ClaimTokenID  = "jti"
)

// Signer mints and verifies HMAC-signed capability tokens. The signing
// key is derived from the configured secret and a salt, so two signers
// with different salts never accept each other's tokens.
type Signer struct {
	key []byte
	now func() time.Time
}

// NewSigner derives a signing key from secret and salt. Secrets shorter
// than MinKeyLength are rejected outright rather than weakened silently.
// An empty salt falls back to the package default.
func NewSigner(secret, salt string) (*Signer, error) {
	if len(secret) < MinKeyLength {
		return nil, model.NewWeakKeyError(MinKeyLength)
	}
	if salt == "" {
		salt = defaultSalt
	}
	mac := hmac.New(sha256.New, []byte(salt))
	mac.Write([]byte(secret))
	return &Signer{key: mac.Sum(nil), now: time.Now}, nil
}

// Sign serializes payload into a signed token, stamping the current time
// so Verify can enforce a maximum age.
func (s *Signer) Sign(payload map[string]any) (string, error) {
	claims := jwt.MapClaims{}
	for k, v := range payload {
		claims[k] = v
	}
	claims["iat"] = s.now().Unix()

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
}

// Verify checks the token's signature and age and returns its payload.
// Tokens older than maxAge fail with TOKEN_EXPIRED; any structural or
// signature failure is TOKEN_INVALID. A zero maxAge means DefaultMaxAge.
func (s *Signer) Verify(tokenString string, maxAge time.Duration) (map[string]any, error) {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}

	parsed, err := jwt.Parse(tokenString, func(*jwt.Token) (any, error) {
		return s.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return nil, model.NewTokenInvalidError()
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, model.NewTokenInvalidError()
	}

	issued, err := claims.GetIssuedAt()
	if err != nil || issued == nil {
		return nil, model.NewTokenInvalidError()
	}
	if s.now().After(issued.Add(maxAge)) {
		return nil, model.NewTokenExpiredError()
	}

	payload := make(map[string]any, len(claims))
	for k, v := range claims {
		if k == "iat" {
			continue
		}
		payload[k] = v
	}
	return payload, nil
}

// CreateCapabilityToken mints a token binding a model, an action, and
// optionally a subtype and record ID. Empty optional fields are left out
// of the payload entirely. Every token carries a unique ID so single-use
// enforcement can recognize replays.
func (s *Signer) CreateCapabilityToken(modelName, action, subtype, recordID string) (string, error) {
	payload := map[string]any{
		ClaimModel:   modelName,
		ClaimAction:  action,
		ClaimTokenID: uuid.NewString(),
	}
	if subtype != "" {
		payload[ClaimSubtype] = subtype
	}
	if recordID != "" {
		payload[ClaimRecordID] = recordID
	}
	return s.Sign(payload)
}

// MatchRequest cross-checks a verified payload against the request it
// accompanies. Model, action, and record ID must all match exactly; a
// token minted for record 7 does not authorize anything on record 8.
func MatchRequest(payload map[string]any, modelName, action, recordID string) error {
	if claimString(payload, ClaimModel) != modelName {
		return model.NewTokenMismatchError()
	}
	if claimString(payload, ClaimAction) != action {
		return model.NewTokenMismatchError()
	}
	if claimString(payload, ClaimRecordID) != recordID {
		return model.NewTokenMismatchError()
	}
	return nil
}

// Model returns the model claim of a verified payload, or "".
func Model(payload map[string]any) string {
	return claimString(payload, ClaimModel)
}

// Subtype returns the subtype claim of a verified payload, or "".
func Subtype(payload map[string]any) string {
	return claimString(payload, ClaimSubtype)
}

// ID returns the unique token ID of a verified payload, or "".
func ID(payload map[string]any) string {
	return claimString(payload, ClaimTokenID)
}

func claimString(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	str, _ := v.(string)
	return str
}
