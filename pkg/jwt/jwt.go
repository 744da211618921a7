// Package jwt — проверка RS256 токенов покупателей.
// Сервис расчётов только валидирует токены публичным ключом. Приватный ключ
// нужен лишь там, где токены выпускаются (auth сервис, тесты).
package jwt

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Ошибки валидации.
var (
	ErrTokenRevoked = errors.New("токен отозван")
	ErrNoSigningKey = errors.New("приватный ключ не загружен: выпуск токенов недоступен")
)

// Identity — данные покупателя из токена. Используются при создании платёжной сессии.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Phone  string `json:"phone,omitempty"`
	Name   string `json:"name,omitempty"`
}

// Claims — содержимое JWT токена.
type Claims struct {
	jwt.RegisteredClaims
	Identity
}

// Config — параметры Manager.
type Config struct {
	PublicKeyPath  string // обязательно
	PrivateKeyPath string // только для выпуска токенов
	Issuer         string
	TokenTTL       time.Duration
}

// Manager валидирует и (при наличии приватного ключа) выпускает токены.
type Manager struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	blacklist  *Blacklist
	issuer     string
	tokenTTL   time.Duration
}

// NewManager загружает ключи из PEM файлов.
func NewManager(cfg Config) (*Manager, error) {
	publicKey, err := LoadPublicKey(cfg.PublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки публичного ключа: %w", err)
	}

	m := &Manager{publicKey: publicKey, issuer: cfg.Issuer, tokenTTL: cfg.TokenTTL}

	if cfg.PrivateKeyPath != "" {
		privateKey, err := LoadPrivateKey(cfg.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("ошибка загрузки приватного ключа: %w", err)
		}
		m.privateKey = privateKey
	}
	return m, nil
}

// NewManagerWithKeys создаёт Manager из готовых ключей. privateKey может быть nil.
func NewManagerWithKeys(privateKey *rsa.PrivateKey, publicKey *rsa.PublicKey, issuer string, ttl time.Duration) *Manager {
	return &Manager{privateKey: privateKey, publicKey: publicKey, issuer: issuer, tokenTTL: ttl}
}

// SetBlacklist включает проверку отозванных токенов.
func (m *Manager) SetBlacklist(bl *Blacklist) {
	m.blacklist = bl
}

// Issue выпускает токен для покупателя.
func (m *Manager) Issue(id Identity) (string, error) {
	if m.privateKey == nil {
		return "", ErrNoSigningKey
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    m.issuer,
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenTTL)),
		},
		Identity: id,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(m.privateKey)
	if err != nil {
		return "", fmt.Errorf("ошибка подписи токена: %w", err)
	}
	return signed, nil
}

// Validate проверяет подпись, срок действия и издателя.
func (m *Manager) Validate(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()})}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return m.publicKey, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("ошибка валидации токена: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("невалидные claims токена")
	}

	// Старые токены несут идентификатор только в sub
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, errors.New("в токене нет идентификатора пользователя")
	}
	return claims, nil
}

// ValidateWithBlacklist проверяет токен и его отсутствие в blacklist.
func (m *Manager) ValidateWithBlacklist(ctx context.Context, tokenString string) (*Claims, error) {
	claims, err := m.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	if m.blacklist == nil || claims.ID == "" {
		return claims, nil
	}

	revoked, err := m.blacklist.Check(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("ошибка проверки blacklist: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// LoadPrivateKey загружает RSA приватный ключ из PEM (PKCS#1 или PKCS#8).
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	block, err := readPEM(path)
	if err != nil {
		return nil, err
	}

	if block.Type == "RSA PRIVATE KEY" {
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга приватного ключа: %w", err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("ключ не является RSA приватным ключом")
	}
	return rsaKey, nil
}

// LoadPublicKey загружает RSA публичный ключ из PEM (PKIX или PKCS#1).
func LoadPublicKey(path string) (*rsa.PublicKey, error) {
	block, err := readPEM(path)
	if err != nil {
		return nil, err
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return x509.ParsePKCS1PublicKey(block.Bytes)
	}
	rsaKey, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("ключ не является RSA публичным ключом")
	}
	return rsaKey, nil
}

func readPEM(path string) (*pem.Block, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла %s: %w", path, err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("не удалось декодировать PEM блок из %s", path)
	}
	return block, nil
}
