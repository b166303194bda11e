package main

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

// 令牌落库前用 config-secret 派生的密钥加密, 对应 config_items.encrypted=1。

const sealedValueVersion = "v1"

var errNoConfigSecret = errors.New("未配置 config-secret, 无法加解密令牌")

func deriveConfigKey(secret string, salt []byte) ([]byte, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errNoConfigSecret
	}
	key, err := scrypt.Key([]byte(secret), salt, 1<<15, 8, 1, chacha20poly1305.KeySize)
	if err != nil {
		return nil, fmt.Errorf("派生配置密钥失败: %w", err)
	}
	return key, nil
}

// sealConfigValue encrypts plain with a key derived from secret and returns
// a self-describing string: v1:<base64 salt>:<base64 nonce+ciphertext>.
func sealConfigValue(secret, plain string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("生成盐失败: %w", err)
	}
	key, err := deriveConfigKey(secret, salt)
	if err != nil {
		return "", err
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", fmt.Errorf("初始化加密器失败: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("生成随机数失败: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plain), nil)
	return strings.Join([]string{
		sealedValueVersion,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(sealed),
	}, ":"), nil
}

// openConfigValue reverses sealConfigValue. A wrong secret fails
// authentication and returns an error instead of garbage.
func openConfigValue(secret, value string) (string, error) {
	parts := strings.SplitN(value, ":", 3)
	if len(parts) != 3 || parts[0] != sealedValueVersion {
		return "", errors.New("加密配置格式无效")
	}
	salt, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("解析盐失败: %w", err)
	}
	sealed, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("解析密文失败: %w", err)
	}

	key, err := deriveConfigKey(secret, salt)
	if err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", fmt.Errorf("初始化解密器失败: %w", err)
	}
	if len(sealed) < aead.NonceSize() {
		return "", errors.New("密文长度不足")
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("解密配置失败: %w", err)
	}
	return string(plain), nil
}
