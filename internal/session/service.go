package session

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/afyalink/afyalink/internal/audit"
	"github.com/afyalink/afyalink/internal/identity"
)

// ErrInvalid indicates the credential could not be verified or has been
// revoked.
var ErrInvalid = errors.New("invalid credential")

const revokedKeyPrefix = "session:revoked:"

// Claims is the signed payload of a session credential.
type Claims struct {
	Role      string `json:"role"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Credential is an issued, signed session token.
type Credential struct {
	Token     string
	SessionID string
	ExpiresIn int64
}

// Service issues, refreshes and revokes signed session credentials. Every
// issuance carries a fresh session id; session ids are never reused, even
// across refreshes for the same identity.
type Service struct {
	secret   []byte
	ttl      time.Duration
	cache    *redis.Client
	recorder audit.Recorder
}

// NewService creates a session service. cache may be nil, in which case
// revocation is advisory (audit record only).
func NewService(secret string, ttl time.Duration, cache *redis.Client, recorder audit.Recorder) *Service {
	return &Service{secret: []byte(secret), ttl: ttl, cache: cache, recorder: recorder}
}

// Issue signs a credential for the identity with a fresh session id.
func (s *Service) Issue(ctx context.Context, ident identity.Identity) (Credential, error) {
	cred, err := s.sign(ident.ID, string(ident.Role))
	if err != nil {
		return Credential{}, err
	}
	_ = s.recorder.Record(ctx, audit.New(ident.ID, "session.issued", "session", cred.SessionID, nil))
	return cred, nil
}

// Refresh verifies the presented credential and issues a replacement with a
// new session id for the same identity and role. A revoked session id cannot
// mint a fresh credential.
func (s *Service) Refresh(ctx context.Context, token string) (Credential, error) {
	claims, err := s.Validate(ctx, token)
	if err != nil {
		return Credential{}, ErrInvalid
	}
	cred, err := s.sign(claims.Subject, claims.Role)
	if err != nil {
		return Credential{}, err
	}
	_ = s.recorder.Record(ctx, audit.New(claims.Subject, "session.refreshed", "session", cred.SessionID, map[string]any{
		"previous_sid": claims.SessionID,
	}))
	return cred, nil
}

// Revoke records a logout and places the session id on the revocation list
// for the credential's remaining validity. Without Redis the logout is an
// audit record only.
func (s *Service) Revoke(ctx context.Context, token string) error {
	claims, err := s.parse(token)
	if err != nil {
		return ErrInvalid
	}
	if s.cache != nil && claims.ExpiresAt != nil {
		remaining := time.Until(claims.ExpiresAt.Time)
		if remaining > 0 {
			if err := s.cache.Set(ctx, revokedKeyPrefix+claims.SessionID, "1", remaining).Err(); err != nil {
				return err
			}
		}
	}
	_ = s.recorder.Record(ctx, audit.New(claims.Subject, "session.revoked", "session", claims.SessionID, nil))
	return nil
}

// Validate verifies the credential and checks the revocation list. Redis
// lookup errors fail open: a cache outage must not lock every caller out.
func (s *Service) Validate(ctx context.Context, token string) (Claims, error) {
	claims, err := s.parse(token)
	if err != nil {
		return Claims{}, ErrInvalid
	}
	if s.cache != nil {
		n, err := s.cache.Exists(ctx, revokedKeyPrefix+claims.SessionID).Result()
		if err == nil && n > 0 {
			return Claims{}, ErrInvalid
		}
	}
	return claims, nil
}

func (s *Service) sign(subject, role string) (Credential, error) {
	now := time.Now().UTC()
	sid := uuid.NewString()
	claims := Claims{
		Role:      role,
		SessionID: sid,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Credential{}, err
	}
	return Credential{Token: token, SessionID: sid, ExpiresIn: int64(s.ttl.Seconds())}, nil
}

func (s *Service) parse(token string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalid
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims.Subject == "" || claims.SessionID == "" {
		return Claims{}, ErrInvalid
	}
	return *claims, nil
}
