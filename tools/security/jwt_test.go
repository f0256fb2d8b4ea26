package security

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AirChat/module/chat/model"
	"AirChat/tools/errs"
)

func TestGenerateVerifyRoundTrip(t *testing.T) {
	opts := DefaultOptions([]byte("s3cret"))
	u := model.User{ID: "u1", Name: "Bahadir"}
	tok, exp, err := Generate(opts, u)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), exp, time.Minute)

	c, err := Verify(opts, tok)
	require.NoError(t, err)
	assert.Equal(t, u, c.User())
	assert.True(t, strings.HasPrefix(HashToken(tok), "sha256:"))
}

func TestVerifyRejects(t *testing.T) {
	opts := DefaultOptions([]byte("s3cret"))
	u := model.User{ID: "u1", Name: "x"}

	tok, _, err := Generate(opts, u)
	require.NoError(t, err)
	_, err = Verify(DefaultOptions([]byte("other")), tok)
	assert.True(t, errors.Is(err, errs.ErrTokenInvalid))

	other := opts
	other.Alg = "HS512"
	_, err = Verify(other, tok)
	assert.True(t, errors.Is(err, errs.ErrTokenInvalid), "algorithm must match")

	neg := opts
	neg.TTL = -time.Minute
	tok, _, err = Generate(neg, u)
	require.NoError(t, err)
	_, err = Verify(opts, tok)
	assert.NoError(t, err, "non-positive TTL falls back to the default")

	_, err = Verify(opts, "garbage")
	assert.True(t, errors.Is(err, errs.ErrTokenInvalid))

	_, _, err = Generate(Options{Alg: "RS256", Secret: []byte("x")}, u)
	assert.True(t, errors.Is(err, errs.ErrArgs))
	_, _, err = Generate(Options{}, u)
	assert.True(t, errors.Is(err, errs.ErrArgs))
}
