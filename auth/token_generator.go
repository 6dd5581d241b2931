package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/lithammer/shortuuid"
)

// ActivationAudience is the audience claim of every activation token
const ActivationAudience = "account-activation"

// MinSecretKeyLength is the shortest secret accepted for signing
const MinSecretKeyLength = 32

// ActivationClaims are the claims carried by an activation token
type ActivationClaims struct {
	Fingerprint string `json:"fpr"`
	jwt.RegisteredClaims
}

// ActivationTokens issues stateless activation tokens bound to the
// account state they were issued for. Once the account is activated
// or logs in, outstanding tokens stop validating.
type ActivationTokens struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

var _ TokenGenerator = (*ActivationTokens)(nil)

// ActivationTokensOption configures ActivationTokens
type ActivationTokensOption func(*ActivationTokens)

// WithTokenIssuer sets the iss claim
func WithTokenIssuer(issuer string) ActivationTokensOption {
	return func(t *ActivationTokens) {
		t.issuer = issuer
	}
}

// WithTokenTTL sets the activation window, zero disables expiry
func WithTokenTTL(ttl time.Duration) ActivationTokensOption {
	return func(t *ActivationTokens) {
		t.ttl = ttl
	}
}

// WithTokenClock overrides the time source
func WithTokenClock(now func() time.Time) ActivationTokensOption {
	return func(t *ActivationTokens) {
		if now != nil {
			t.now = now
		}
	}
}

// NewActivationTokens requires a secret of at least MinSecretKeyLength bytes
func NewActivationTokens(secret string, opts ...ActivationTokensOption) (*ActivationTokens, error) {
	if len(secret) < MinSecretKeyLength {
		return nil, goerrors.New("secret key is too short", goerrors.CategoryValidation).
			WithTextCode("SECRET_KEY_TOO_SHORT").
			WithMetadata(map[string]any{"min_length": MinSecretKeyLength})
	}

	t := &ActivationTokens{
		secret: []byte(secret),
		issuer: "expense-tracker",
		ttl:    72 * time.Hour,
		now:    time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}

	return t, nil
}

// Issue signs a token for the current state of user
func (t *ActivationTokens) Issue(user *User) (string, error) {
	if user == nil || user.ID == uuid.Nil {
		return "", ErrIdentityNotFound
	}

	now := t.now()
	claims := ActivationClaims{
		Fingerprint: t.fingerprint(user),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			Subject:  user.ID.String(),
			Issuer:   t.issuer,
			Audience: jwt.ClaimStrings{ActivationAudience},
			IssuedAt: jwt.NewNumericDate(now),
		},
	}

	if t.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(t.ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign activation token")
	}

	return signed, nil
}

// Validate reports whether token was issued for user in its current state
func (t *ActivationTokens) Validate(user *User, token string) bool {
	if user == nil || token == "" {
		return false
	}

	claims := &ActivationClaims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(ActivationAudience),
		jwt.WithIssuer(t.issuer),
		jwt.WithTimeFunc(t.now),
	}
	if t.ttl > 0 {
		opts = append(opts, jwt.WithExpirationRequired())
	}

	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return false
	}

	if claims.Subject != user.ID.String() {
		return false
	}

	return hmac.Equal([]byte(claims.Fingerprint), []byte(t.fingerprint(user)))
}

func (t *ActivationTokens) fingerprint(user *User) string {
	mac := hmac.New(sha256.New, t.secret)
	mac.Write([]byte(strings.Join([]string{
		ActivationAudience,
		user.ID.String(),
		user.PasswordHash,
		strconv.FormatBool(user.IsActive),
		user.lastLoginMarker(),
	}, "|")))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// EncodeUID turns an account id into its short id path segment
func EncodeUID(id uuid.UUID) string {
	return shortuuid.DefaultEncoder.Encode(id)
}

// DecodeUID reverses EncodeUID. Only the canonical encoding of an id
// is accepted.
func DecodeUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, ErrInvalidUID
	}

	id, err := hashid.ParseShortID(s)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, ErrInvalidUID
	}

	if EncodeUID(id) != s {
		return uuid.Nil, ErrInvalidUID
	}

	return id, nil
}
