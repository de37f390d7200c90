package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrConfiguration is returned when the signing secret is missing or a
	// requested TTL is not strictly positive.
	ErrConfiguration = errors.New("token configuration error")
	// ErrInvalidSignature is returned for tokens that are malformed, signed
	// with another key, or signed with another algorithm.
	ErrInvalidSignature = errors.New("invalid token signature")
	// ErrExpired is returned for correctly signed tokens past their expiry.
	ErrExpired = errors.New("token expired")
)

// SigningMethod names the HMAC algorithm used to sign tokens.
type SigningMethod string

const (
	// MethodHS256 is HMAC-SHA-256, the only supported method.
	MethodHS256 SigningMethod = "HS256"
)

const maxLeeway = 2 * time.Minute

// Reserved claim names. Caller-supplied extra claims never overwrite them.
const (
	ClaimSubject   = "sub"
	ClaimIssuedAt  = "iat"
	ClaimExpiresAt = "exp"
	ClaimRoles     = "roles"
	ClaimTokenID   = "jti"
	ClaimIssuer    = "iss"
)

var reservedClaims = map[string]struct{}{
	ClaimSubject:   {},
	ClaimIssuedAt:  {},
	ClaimExpiresAt: {},
	ClaimRoles:     {},
	ClaimTokenID:   {},
	ClaimIssuer:    {},
}

// Config configures a [Manager].
type Config struct {
	// Secret is the HMAC key. An empty secret is accepted at construction
	// and rejected at issuance and verification with ErrConfiguration.
	Secret        []byte
	SigningMethod SigningMethod
	DefaultTTL    time.Duration
	// Leeway is the clock skew tolerated on exp, between 0 and 2 minutes.
	Leeway time.Duration
	Issuer string
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Manager issues and verifies HMAC-signed bearer tokens. It holds no mutable
// state and is safe for concurrent use.
type Manager struct {
	config Config
}

// IssueOptions are the optional inputs to [Manager.Issue].
type IssueOptions struct {
	Roles []string
	// TTL zero means Config.DefaultTTL.
	TTL         time.Duration
	ExtraClaims map[string]any
}

// Token is a freshly issued token together with the values needed to record
// its session without parsing it again.
type Token struct {
	Value     string
	ID        string
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Claims is the verified payload of a token. Roles is always a sequence.
type Claims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Roles     []string
	TokenID   string
	Issuer    string
	Extra     map[string]any
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	method := SigningMethod(strings.ToUpper(strings.TrimSpace(string(cfg.SigningMethod))))
	if method == "" {
		method = MethodHS256
	}
	if method != MethodHS256 {
		return nil, fmt.Errorf("%w: unsupported signing method %q", ErrConfiguration, cfg.SigningMethod)
	}
	cfg.SigningMethod = method

	if cfg.DefaultTTL <= 0 {
		return nil, fmt.Errorf("%w: default TTL must be positive", ErrConfiguration)
	}
	if cfg.Leeway < 0 || cfg.Leeway > maxLeeway {
		return nil, fmt.Errorf("%w: leeway must be between 0 and %s", ErrConfiguration, maxLeeway)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.Secret = append([]byte(nil), cfg.Secret...)

	return &Manager{config: cfg}, nil
}

// DefaultTTL returns the lifetime used when IssueOptions.TTL is zero.
func (m *Manager) DefaultTTL() time.Duration {
	return m.config.DefaultTTL
}

// Issue signs a token for subject.
//
// roles are embedded only when non-empty. Extra claims whose names collide
// with reserved claims are dropped.
func (m *Manager) Issue(subject string, opts IssueOptions) (*Token, error) {
	if len(m.config.Secret) == 0 {
		return nil, fmt.Errorf("%w: secret key is not set", ErrConfiguration)
	}
	ttl := opts.TTL
	if ttl == 0 {
		ttl = m.config.DefaultTTL
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: ttl must be positive, got %s", ErrConfiguration, ttl)
	}

	now := m.config.Now()
	iat := now.Unix()
	exp := now.Add(ttl).Unix()
	if exp <= iat {
		exp = iat + 1
	}
	jti := uuid.NewString()

	claims := make(jwt.MapClaims, len(opts.ExtraClaims)+6)
	for k, v := range opts.ExtraClaims {
		if _, reserved := reservedClaims[k]; reserved {
			continue
		}
		claims[k] = v
	}
	claims[ClaimSubject] = subject
	claims[ClaimIssuedAt] = iat
	claims[ClaimExpiresAt] = exp
	claims[ClaimTokenID] = jti
	if len(opts.Roles) > 0 {
		claims[ClaimRoles] = append([]string(nil), opts.Roles...)
	}
	if m.config.Issuer != "" {
		claims[ClaimIssuer] = m.config.Issuer
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &Token{
		Value:     signed,
		ID:        jti,
		Subject:   subject,
		IssuedAt:  time.Unix(iat, 0),
		ExpiresAt: time.Unix(exp, 0),
	}, nil
}

// Verify checks the signature and expiry of tokenStr and returns its claims.
// The signature is checked before expiry, so a forged expired token reports
// ErrInvalidSignature.
func (m *Manager) Verify(tokenStr string) (*Claims, error) {
	if len(m.config.Secret) == 0 {
		return nil, fmt.Errorf("%w: secret key is not set", ErrConfiguration)
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{string(m.config.SigningMethod)}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.config.Now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != string(m.config.SigningMethod) {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.config.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidSignature
	}

	return claimsFromMap(mc), nil
}

func claimsFromMap(mc jwt.MapClaims) *Claims {
	c := &Claims{Extra: make(map[string]any)}
	c.Subject, _ = mc.GetSubject()
	c.Issuer, _ = mc.GetIssuer()
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		c.IssuedAt = iat.Time
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	c.TokenID, _ = mc[ClaimTokenID].(string)
	c.Roles = normalizeRoles(mc[ClaimRoles])

	for k, v := range mc {
		if _, reserved := reservedClaims[k]; reserved {
			continue
		}
		c.Extra[k] = v
	}
	return c
}

// normalizeRoles coerces the decoded roles claim into a sequence. A scalar
// becomes a one-element sequence.
func normalizeRoles(v any) []string {
	switch r := v.(type) {
	case nil:
		return nil
	case string:
		return []string{r}
	case []string:
		return append([]string(nil), r...)
	case []any:
		out := make([]string, 0, len(r))
		for _, e := range r {
			if s, ok := e.(string); ok {
				out = append(out, s)
				continue
			}
			out = append(out, fmt.Sprint(e))
		}
		return out
	default:
		return []string{fmt.Sprint(r)}
	}
}

// StringClaim returns the extra claim name as a string.
func (c *Claims) StringClaim(name string) string {
	if c == nil {
		return ""
	}
	s, _ := c.Extra[name].(string)
	return s
}
