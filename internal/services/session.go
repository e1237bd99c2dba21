package services

import (
	"fmt"
	"time"

	"github.com/desertthunder/notedesk/internal/listsync"
	"github.com/desertthunder/notedesk/internal/shared"
	"github.com/golang-jwt/jwt/v4"
)

// Claims is the admin session token payload.
type Claims struct {
	Capabilities []string `json:"capabilities"`
	jwt.RegisteredClaims
}

// Session is the signed-in admin and the capabilities it holds.
type Session struct {
	Subject      string
	Capabilities []string
	ExpiresAt    time.Time
	Token        string
}

// Gate returns the session's capabilities as a [listsync.Gate].
func (s *Session) Gate() listsync.StaticGate {
	return listsync.NewStaticGate(s.Capabilities...)
}

// NewSession builds the session from config.
//
// With a token, capabilities come from its claim and fall back to the configured list when the
// claim is empty. Without one, the configured list is used as is.
func NewSession(cfg shared.SessionConfig) (*Session, error) {
	if cfg.Token == "" {
		return &Session{Subject: "local", Capabilities: cfg.Capabilities}, nil
	}

	s, err := ParseSession(cfg.Token, cfg.Secret)
	if err != nil {
		return nil, err
	}
	if len(s.Capabilities) == 0 {
		s.Capabilities = cfg.Capabilities
	}
	return s, nil
}

// ParseSession decodes token. With a secret the HMAC signature is verified; otherwise only the
// registered claims such as expiry are checked.
func ParseSession(token, secret string) (*Session, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", shared.ErrInvalidSession)
	}

	claims := &Claims{}
	if secret != "" {
		_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrInvalidSession, err)
		}
	} else {
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrInvalidSession, err)
		}
		if err := claims.Valid(); err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrInvalidSession, err)
		}
	}

	s := &Session{Subject: claims.Subject, Capabilities: claims.Capabilities, Token: token}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}

// SignSession issues an HS256 token for subject holding caps.
func SignSession(secret, subject string, caps []string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("%w: signing secret", shared.ErrMissingArgument)
	}

	now := time.Now()
	claims := Claims{
		Capabilities: caps,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  subject,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
