// Package cipher 封装 256-bit 密钥的 AEAD 原语。
// 它不知道任何分片逻辑，只负责 (key, nonce, plaintext) <-> ciphertext+tag。
package cipher

import (
	"crypto/aes"
	gocipher "crypto/cipher"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// KeySize 是文件密钥长度 (256 bit)
	KeySize = 32
	// NonceSize 是 96-bit nonce
	NonceSize = 12
	// TagSize 是认证标签长度 (128 bit)
	TagSize = 16
)

var (
	ErrInvalidKey           = errors.New("invalid key size: must be 32 bytes")
	ErrInvalidNonce         = errors.New("invalid nonce size: must be 12 bytes")
	ErrMalformedChunk       = errors.New("stored chunk too short")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrUnknownAlgorithm     = errors.New("unknown cipher algorithm")
)

// Algorithm 标识 AEAD 套件
type Algorithm string

const (
	AES256GCM        Algorithm = "aes-256-gcm" // 默认
	ChaCha20Poly1305 Algorithm = "chacha20-poly1305"
)

// ParseAlgorithm 解析配置中的算法名，空字符串表示默认算法
func ParseAlgorithm(name string) (Algorithm, error) {
	switch Algorithm(name) {
	case "", AES256GCM:
		return AES256GCM, nil
	case ChaCha20Poly1305:
		return ChaCha20Poly1305, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
	}
}

// Adapter 是无状态的，可以在多个 goroutine 间共享
type Adapter struct {
	alg Algorithm
}

func New(alg Algorithm) (*Adapter, error) {
	alg, err := ParseAlgorithm(string(alg))
	if err != nil {
		return nil, err
	}
	return &Adapter{alg: alg}, nil
}

func (a *Adapter) Algorithm() Algorithm { return a.alg }

func (a *Adapter) aead(key []byte) (gocipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidKey, len(key))
	}

	switch a.alg {
	case ChaCha20Poly1305:
		aead, err := chacha20poly1305.New(key)
		if err != nil {
			return nil, fmt.Errorf("failed to create ChaCha20-Poly1305: %w", err)
		}
		return aead, nil
	default:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("failed to create AES cipher: %w", err)
		}
		aead, err := gocipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCM: %w", err)
		}
		return aead, nil
	}
}

// Encrypt 返回 ciphertext ‖ tag
// 同一个 key 下 nonce 绝对不能复用
func (a *Adapter) Encrypt(key, nonce, plaintext, aad []byte) ([]byte, error) {
	aead, err := a.aead(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != NonceSize {
		return nil, ErrInvalidNonce
	}
	return aead.Seal(nil, nonce, plaintext, aad), nil
}

// Decrypt 校验 tag 并返回明文。
// 任何 ciphertext/tag/key/nonce/aad 的篡改都会返回 ErrAuthenticationFailed，
// 绝不会返回错误的明文。
func (a *Adapter) Decrypt(key, nonce, ciphertext, aad []byte) ([]byte, error) {
	aead, err := a.aead(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != NonceSize {
		return nil, ErrInvalidNonce
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return plaintext, nil
}

// Seal 生成随机 nonce 并输出持久化格式:
//
//	[Nonce: 12 bytes] [Ciphertext+Tag: N+16 bytes]
func (a *Adapter) Seal(key []byte, random io.Reader, plaintext, aad []byte) ([]byte, error) {
	nonce, err := GenerateNonce(random)
	if err != nil {
		return nil, err
	}
	aead, err := a.aead(key)
	if err != nil {
		return nil, err
	}

	out := make([]byte, NonceSize, NonceSize+len(plaintext)+aead.Overhead())
	copy(out, nonce)
	return aead.Seal(out, nonce, plaintext, aad), nil
}

// Open 是 Seal 的逆操作：拆出 nonce 前缀后解密
func (a *Adapter) Open(key, stored, aad []byte) ([]byte, error) {
	if len(stored) < NonceSize+TagSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedChunk, len(stored))
	}
	return a.Decrypt(key, stored[:NonceSize], stored[NonceSize:], aad)
}

// SplitNonce 返回持久化分片中的 nonce 前缀
func SplitNonce(stored []byte) ([]byte, error) {
	if len(stored) < NonceSize+TagSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedChunk, len(stored))
	}
	return stored[:NonceSize], nil
}

// GenerateKey 从给定随机源读取一个新的文件密钥
func GenerateKey(random io.Reader) ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(random, key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}

// GenerateNonce 从给定随机源读取一个新的 nonce
func GenerateNonce(random io.Reader) ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(random, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return nonce, nil
}
