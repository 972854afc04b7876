package service

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"go-gamification/internal/model"
	"go-gamification/pkg/apierror"
)

const (
	DefaultTokenTTL = time.Hour
	TokenTypeBearer = "Bearer"
)

// tokenClaims is the signed payload. sub and exp are integers on the wire.
type tokenClaims struct {
	Subject   int64           `json:"sub"`
	Username  string          `json:"username"`
	Email     string          `json:"email"`
	Roles     []model.RoleRef `json:"roles"`
	ExpiresAt int64           `json:"exp"`
}

func (c tokenClaims) GetExpirationTime() (*jwt.NumericDate, error) {
	if c.ExpiresAt == 0 {
		return nil, nil
	}
	return jwt.NewNumericDate(time.Unix(c.ExpiresAt, 0)), nil
}

func (c tokenClaims) GetIssuedAt() (*jwt.NumericDate, error)  { return nil, nil }
func (c tokenClaims) GetNotBefore() (*jwt.NumericDate, error) { return nil, nil }
func (c tokenClaims) GetIssuer() (string, error)              { return "", nil }
func (c tokenClaims) GetAudience() (jwt.ClaimStrings, error)  { return nil, nil }

func (c tokenClaims) GetSubject() (string, error) {
	return strconv.FormatInt(c.Subject, 10), nil
}

// TokenService issues and validates HS256 bearer tokens.
type TokenService struct {
	defaultTTL time.Duration
	now        func() time.Time
}

func NewTokenService(defaultTTL time.Duration) *TokenService {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTokenTTL
	}
	return &TokenService{defaultTTL: defaultTTL, now: time.Now}
}

func (s *TokenService) DefaultTTL() time.Duration {
	return s.defaultTTL
}

// Issue signs a token for subject that expires ttl from now. A zero ttl
// means the default; a negative one yields an already expired token.
func (s *TokenService) Issue(secret []byte, subject model.UserIdentity, roles []model.RoleRef, ttl time.Duration) (string, error) {
	return s.sign(secret, "", subject, roles, ttl)
}

// IssueWithKey signs with key and records its id in the kid header.
func (s *TokenService) IssueWithKey(key model.SigningKey, subject model.UserIdentity, roles []model.RoleRef, ttl time.Duration) (string, error) {
	secret, err := key.Secret()
	if err != nil {
		return "", err
	}
	return s.sign(secret, strconv.FormatInt(key.ID, 10), subject, roles, ttl)
}

func (s *TokenService) sign(secret []byte, kid string, subject model.UserIdentity, roles []model.RoleRef, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = s.defaultTTL
	}
	if roles == nil {
		roles = []model.RoleRef{}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Subject:   subject.ID,
		Username:  subject.Username,
		Email:     subject.Email,
		Roles:     roles,
		ExpiresAt: s.now().Add(ttl).Unix(),
	})
	if kid != "" {
		token.Header["kid"] = kid
	}

	return token.SignedString(secret)
}

// Validate checks the token's shape, then its signature, then its expiry.
// The expiry check is repeated after the library's own claim validation.
func (s *TokenService) Validate(secret []byte, tokenString string) (*model.Claims, error) {
	if !wellFormed(tokenString) {
		return nil, errInvalidToken()
	}

	var claims tokenClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)

	_, err := parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errTokenExpired()
		}
		return nil, errInvalidToken()
	}

	expiresAt := time.Unix(claims.ExpiresAt, 0)
	if !s.now().Before(expiresAt) {
		return nil, errTokenExpired()
	}

	roles := claims.Roles
	if roles == nil {
		roles = []model.RoleRef{}
	}

	return &model.Claims{
		SubjectID: claims.Subject,
		Username:  claims.Username,
		Email:     claims.Email,
		Roles:     roles,
		ExpiresAt: expiresAt.UTC(),
	}, nil
}

// KeyID reads the kid header without verifying the token. The result only
// selects which key to verify against.
func (s *TokenService) KeyID(tokenString string) (int64, bool) {
	if !wellFormed(tokenString) {
		return 0, false
	}

	token, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return 0, false
	}

	raw, ok := token.Header["kid"].(string)
	if !ok {
		return 0, false
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func wellFormed(tokenString string) bool {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return false
	}
	for _, part := range parts {
		if part == "" {
			return false
		}
	}
	return true
}

func errInvalidToken() error {
	return apierror.Unauthorized(model.ErrInvalidToken, "Invalid JWT token")
}

func errTokenExpired() error {
	return apierror.Unauthorized(model.ErrTokenExpired, "JWT token has expired")
}
