// Package crypto 提供敏感字段加密和脱敏工具
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"strings"
)

// AES 加密管理器（AES-GCM）
type AES struct {
	aead cipher.AEAD
}

// 预定义错误
var (
	ErrInvalidKeySize   = errors.New("invalid key size: must be 16, 24, or 32 bytes")
	ErrCiphertextShort  = errors.New("ciphertext too short")
	ErrDecryptionFailed = errors.New("decryption failed")
)

// NewAES 创建 AES 加密管理器
// key 长度必须是 16（AES-128）、24（AES-192）或 32（AES-256）字节
func NewAES(key string) (*AES, error) {
	keyBytes := []byte(key)
	keyLen := len(keyBytes)
	if keyLen != 16 && keyLen != 24 && keyLen != 32 {
		return nil, ErrInvalidKeySize
	}
	block, err := aes.NewCipher(keyBytes)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AES{aead: aead}, nil
}

// Encrypt 加密数据，输出 base64(nonce|ciphertext)
func (a *AES) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, a.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := a.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt 解密数据
func (a *AES) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", err
	}

	nonceSize := a.aead.NonceSize()
	if len(raw) < nonceSize {
		return "", ErrCiphertextShort
	}

	plain, err := a.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plain), nil
}

// FieldCipher 字段加解密接口
type FieldCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// PlainCipher 未配置密钥时原样保存
type PlainCipher struct{}

// Encrypt 原样返回
func (PlainCipher) Encrypt(plaintext string) (string, error) { return plaintext, nil }

// Decrypt 原样返回
func (PlainCipher) Decrypt(ciphertext string) (string, error) { return ciphertext, nil }

// NewFieldCipher 根据密钥创建字段加密器，密钥为空时不加密
func NewFieldCipher(key string) (FieldCipher, error) {
	if key == "" {
		return PlainCipher{}, nil
	}
	return NewAES(key)
}

// MaskBankCard 银行卡号脱敏
func MaskBankCard(cardNo string) string {
	if len(cardNo) < 8 {
		return cardNo
	}
	return cardNo[:4] + " **** **** " + cardNo[len(cardNo)-4:]
}

// MaskEmail 邮箱脱敏
func MaskEmail(email string) string {
	i := strings.IndexByte(email, '@')
	if i <= 2 {
		return email
	}
	return email[:2] + "***" + email[i:]
}

// MaskPaymentAccount 收款账户脱敏，邮箱按邮箱规则，其余按卡号规则
func MaskPaymentAccount(account string) string {
	if strings.Contains(account, "@") {
		return MaskEmail(account)
	}
	return MaskBankCard(account)
}
