package cipher

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allAdapters(t *testing.T) map[Algorithm]*Adapter {
	t.Helper()
	out := make(map[Algorithm]*Adapter)
	for _, alg := range []Algorithm{AES256GCM, ChaCha20Poly1305} {
		a, err := New(alg)
		require.NoError(t, err)
		out[alg] = a
	}
	return out
}

func TestAdapter_RoundTrip(t *testing.T) {
	for alg, a := range allAdapters(t) {
		t.Run(string(alg), func(t *testing.T) {
			key, err := GenerateKey(rand.Reader)
			require.NoError(t, err)
			nonce, err := GenerateNonce(rand.Reader)
			require.NoError(t, err)

			plaintext := []byte("hello hiddenbox")
			aad := []byte("file-1")

			ct, err := a.Encrypt(key, nonce, plaintext, aad)
			require.NoError(t, err)
			assert.Len(t, ct, len(plaintext)+TagSize)

			pt, err := a.Decrypt(key, nonce, ct, aad)
			require.NoError(t, err)
			assert.Equal(t, plaintext, pt)
		})
	}
}

func TestAdapter_InvalidKey(t *testing.T) {
	a, err := New(AES256GCM)
	require.NoError(t, err)

	nonce := make([]byte, NonceSize)
	for _, size := range []int{0, 16, 24, 31, 33} {
		_, err := a.Encrypt(make([]byte, size), nonce, []byte("x"), nil)
		assert.ErrorIs(t, err, ErrInvalidKey, "key size %d", size)

		_, err = a.Decrypt(make([]byte, size), nonce, make([]byte, TagSize), nil)
		assert.ErrorIs(t, err, ErrInvalidKey, "key size %d", size)
	}
}

func TestAdapter_InvalidNonce(t *testing.T) {
	a, err := New(AES256GCM)
	require.NoError(t, err)

	_, err = a.Encrypt(make([]byte, KeySize), make([]byte, 8), []byte("x"), nil)
	assert.ErrorIs(t, err, ErrInvalidNonce)
}

// 任意一个 bit 的翻转都必须被 tag 检测到
func TestAdapter_DetectsTampering(t *testing.T) {
	for alg, a := range allAdapters(t) {
		t.Run(string(alg), func(t *testing.T) {
			key, _ := GenerateKey(rand.Reader)
			aad := []byte("aad")
			stored, err := a.Seal(key, rand.Reader, []byte("sixteen byte msg"), aad)
			require.NoError(t, err)

			for i := range stored {
				for bit := range 8 {
					corrupted := bytes.Clone(stored)
					corrupted[i] ^= 1 << bit
					_, err := a.Open(key, corrupted, aad)
					require.ErrorIs(t, err, ErrAuthenticationFailed, "byte %d bit %d", i, bit)
				}
			}

			wrongKey := bytes.Clone(key)
			wrongKey[0] ^= 0x01
			_, err = a.Open(wrongKey, stored, aad)
			assert.ErrorIs(t, err, ErrAuthenticationFailed)

			_, err = a.Open(key, stored, []byte("other"))
			assert.ErrorIs(t, err, ErrAuthenticationFailed, "aad 不匹配也必须失败")
		})
	}
}

func TestAdapter_SealUsesFreshNonce(t *testing.T) {
	a, err := New(AES256GCM)
	require.NoError(t, err)
	key, _ := GenerateKey(rand.Reader)

	plaintext := []byte("same plaintext")
	s1, err := a.Seal(key, rand.Reader, plaintext, nil)
	require.NoError(t, err)
	s2, err := a.Seal(key, rand.Reader, plaintext, nil)
	require.NoError(t, err)

	n1, _ := SplitNonce(s1)
	n2, _ := SplitNonce(s2)
	assert.NotEqual(t, n1, n2)
	assert.NotEqual(t, s1, s2)
}

func TestAdapter_OpenMalformed(t *testing.T) {
	a, err := New(AES256GCM)
	require.NoError(t, err)

	_, err = a.Open(make([]byte, KeySize), make([]byte, NonceSize+TagSize-1), nil)
	assert.ErrorIs(t, err, ErrMalformedChunk)
}

func TestAdapter_EmptyPlaintext(t *testing.T) {
	a, err := New(AES256GCM)
	require.NoError(t, err)
	key, _ := GenerateKey(rand.Reader)

	stored, err := a.Seal(key, rand.Reader, nil, nil)
	require.NoError(t, err)
	assert.Len(t, stored, NonceSize+TagSize)

	pt, err := a.Open(key, stored, nil)
	require.NoError(t, err)
	assert.Empty(t, pt)
}

// 注入确定性随机源，便于复现
func TestGenerate_DeterministicSource(t *testing.T) {
	src := bytes.NewReader(bytes.Repeat([]byte{0x42}, KeySize+NonceSize))
	key, err := GenerateKey(src)
	require.NoError(t, err)
	nonce, err := GenerateNonce(src)
	require.NoError(t, err)

	assert.Equal(t, bytes.Repeat([]byte{0x42}, KeySize), key)
	assert.Equal(t, bytes.Repeat([]byte{0x42}, NonceSize), nonce)

	_, err = GenerateNonce(src)
	assert.Error(t, err, "随机源耗尽时必须报错")
}

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		input   string
		want    Algorithm
		wantErr bool
	}{
		{"", AES256GCM, false},
		{"aes-256-gcm", AES256GCM, false},
		{"chacha20-poly1305", ChaCha20Poly1305, false},
		{"rot13", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAlgorithm(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownAlgorithm)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
