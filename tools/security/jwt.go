package security

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"AirChat/module/chat/model"
	"AirChat/tools/errs"
)

type Options struct {
	Secret []byte
	Alg    string        // HS256 / HS384 / HS512, default HS256
	TTL    time.Duration // default 2h
	Issuer string
}

// Claims identify a chat user.
type Claims struct {
	Name string `json:"name"`
	jwtlib.RegisteredClaims
}

func (c *Claims) User() model.User {
	return model.User{ID: c.Subject, Name: c.Name}
}

func DefaultOptions(secret []byte) Options {
	return Options{Secret: secret, Alg: "HS256", TTL: 2 * time.Hour, Issuer: "airchat"}
}

func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "sha256:" + hex.EncodeToString(sum[:])
}

// Generate signs a token for u.
func Generate(opts Options, u model.User) (token string, expireAt time.Time, err error) {
	method, err := signingMethod(opts.Alg)
	if err != nil {
		return "", time.Time{}, err
	}
	if len(opts.Secret) == 0 {
		return "", time.Time{}, errs.ErrArgs.WrapMsg("empty jwt secret")
	}
	if opts.TTL <= 0 {
		opts.TTL = 2 * time.Hour
	}
	now := time.Now()
	exp := now.Add(opts.TTL)
	claims := Claims{
		Name: u.Name,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    opts.Issuer,
			IssuedAt:  jwtlib.NewNumericDate(now),
			NotBefore: jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(exp),
		},
	}
	signed, err := jwtlib.NewWithClaims(method, claims).SignedString(opts.Secret)
	if err != nil {
		return "", time.Time{}, errs.Wrap(err)
	}
	return signed, exp, nil
}

// Verify checks signature, algorithm family and expiry.
func Verify(opts Options, token string) (*Claims, error) {
	method, err := signingMethod(opts.Alg)
	if err != nil {
		return nil, err
	}
	claims := &Claims{}
	parsed, err := jwtlib.ParseWithClaims(token, claims, func(t *jwtlib.Token) (interface{}, error) {
		return opts.Secret, nil
	}, jwtlib.WithValidMethods([]string{method.Alg()}))
	if err != nil {
		return nil, errs.ErrTokenInvalid.WrapMsg(err.Error())
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, errs.ErrTokenInvalid.WrapMsg("invalid token")
	}
	if opts.Issuer != "" && claims.Issuer != opts.Issuer {
		return nil, errs.ErrTokenInvalid.WrapMsg("unexpected issuer", "iss", claims.Issuer)
	}
	return claims, nil
}

func signingMethod(alg string) (jwtlib.SigningMethod, error) {
	switch strings.ToUpper(strings.TrimSpace(alg)) {
	case "", "HS256":
		return jwtlib.SigningMethodHS256, nil
	case "HS384":
		return jwtlib.SigningMethodHS384, nil
	case "HS512":
		return jwtlib.SigningMethodHS512, nil
	default:
		return nil, errs.ErrArgs.WrapMsg("unsupported alg (use HS256/HS384/HS512)", "alg", alg)
	}
}
