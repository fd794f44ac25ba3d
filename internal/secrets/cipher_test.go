package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCipher_RoundTrip(t *testing.T) {
	c, err := New("correct horse battery staple")
	require.NoError(t, err)

	enc, err := c.Encrypt("gsk_live_123456")
	require.NoError(t, err)
	assert.NotEqual(t, "gsk_live_123456", enc)

	dec, err := c.Decrypt(enc)
	require.NoError(t, err)
	assert.Equal(t, "gsk_live_123456", dec)
}

func TestCipher_FreshNonce(t *testing.T) {
	c, err := New("pass")
	require.NoError(t, err)

	a, err := c.Encrypt("same")
	require.NoError(t, err)
	b, err := c.Encrypt("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestCipher_Empty(t *testing.T) {
	c, err := New("pass")
	require.NoError(t, err)

	enc, err := c.Encrypt("")
	require.NoError(t, err)
	assert.Empty(t, enc)

	dec, err := c.Decrypt("")
	require.NoError(t, err)
	assert.Empty(t, dec)
}

func TestCipher_SamePassphraseDecrypts(t *testing.T) {
	a, err := New("shared")
	require.NoError(t, err)
	b, err := New("shared")
	require.NoError(t, err)

	enc, err := a.Encrypt("value")
	require.NoError(t, err)
	dec, err := b.Decrypt(enc)
	require.NoError(t, err)
	assert.Equal(t, "value", dec)
}

func TestCipher_WrongPassphrase(t *testing.T) {
	a, err := New("one")
	require.NoError(t, err)
	b, err := New("two")
	require.NoError(t, err)

	enc, err := a.Encrypt("value")
	require.NoError(t, err)
	_, err = b.Decrypt(enc)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestCipher_Corrupt(t *testing.T) {
	c, err := New("pass")
	require.NoError(t, err)

	_, err = c.Decrypt("not base64!!")
	assert.Error(t, err)

	_, err = c.Decrypt("c2hvcnQ=")
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestNew_MissingPassphrase(t *testing.T) {
	_, err := New("")
	assert.ErrorIs(t, err, ErrMissingPassphrase)
}

func TestMask(t *testing.T) {
	assert.Equal(t, "", Mask(""))
	assert.Equal(t, "****", Mask("abc"))
	assert.Equal(t, "****6789", Mask("gsk_123456789"))
}
