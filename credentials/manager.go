package credentials

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	// saltBytes is the number of random bytes behind a generated salt
	saltBytes = 16

	// keyLength is the derived key length in bytes
	keyLength = 32

	hashPrefix = "$argon2id$"
)

var (
	// ErrEmptyPassword is returned when a password to hash is empty
	ErrEmptyPassword = errors.New("password must not be empty")

	// ErrEmptySalt is returned when a salt is missing
	ErrEmptySalt = errors.New("salt must not be empty")

	// ErrInvalidParams is returned when the hashing cost parameters are unusable
	ErrInvalidParams = errors.New("invalid password hashing parameters")

	// ErrMalformedHash is returned when a stored hash cannot be decoded
	ErrMalformedHash = errors.New("malformed password hash")
)

// Credentials is the storable result of hashing a password
type Credentials struct {
	Salt         string `json:"-"`
	PasswordHash string `json:"-"`
}

// Params are the Argon2id cost parameters
type Params struct {
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
}

// DefaultParams returns the RFC 9106 second recommended option
func DefaultParams() Params {
	return Params{
		Time:      3,
		MemoryKiB: 64 * 1024,
		Threads:   4,
	}
}

// Validate checks the parameters are usable by argon2.IDKey
func (p Params) Validate() error {
	if p.Time == 0 {
		return fmt.Errorf("%w: time must be at least 1", ErrInvalidParams)
	}
	if p.Threads == 0 {
		return fmt.Errorf("%w: threads must be at least 1", ErrInvalidParams)
	}
	if p.MemoryKiB < 8*uint32(p.Threads) {
		return fmt.Errorf("%w: memory must be at least 8 KiB per thread", ErrInvalidParams)
	}
	return nil
}

// Manager salts, hashes and verifies user passwords.
// It holds no mutable state and is safe for concurrent use.
type Manager struct {
	params Params
}

// NewManager creates a Manager hashing new passwords with the given parameters
func NewManager(params Params) (*Manager, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Manager{params: params}, nil
}

// Params returns the parameters used for new hashes
func (m *Manager) Params() Params {
	return m.params
}

// GenerateSalt returns a fresh random salt encoded as printable text
func (m *Manager) GenerateSalt() (string, error) {
	b := make([]byte, saltBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random salt: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashPassword derives the encoded hash of password concatenated with salt.
// The result is deterministic for a given password, salt and parameter set.
func (m *Manager) HashPassword(password, salt string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if salt == "" {
		return "", ErrEmptySalt
	}
	key := derive(password, salt, m.params)
	return encodeHash(m.params, key), nil
}

// VerifyPassword reports whether password and salt produce the stored hash.
// A mismatch or an undecodable hash yields false.
func (m *Manager) VerifyPassword(password, salt, hash string) bool {
	if password == "" || salt == "" || hash == "" {
		return false
	}
	if isLegacyHash(hash) {
		return verifyLegacy(password, salt, hash)
	}

	params, want, err := decodeHash(hash)
	if err != nil {
		return false
	}
	got := argon2.IDKey([]byte(password+salt), []byte(salt), params.Time, params.MemoryKiB, params.Threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}

// CreateCredentials salts and hashes a plaintext password for storage
func (m *Manager) CreateCredentials(plaintext string) (Credentials, error) {
	salt, err := m.GenerateSalt()
	if err != nil {
		return Credentials{}, err
	}
	hash, err := m.HashPassword(plaintext, salt)
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{Salt: salt, PasswordHash: hash}, nil
}

func derive(password, salt string, p Params) []byte {
	return argon2.IDKey([]byte(password+salt), []byte(salt), p.Time, p.MemoryKiB, p.Threads, keyLength)
}

// encodeHash renders $argon2id$v=19$m=65536,t=3,p=4$<key>
func encodeHash(p Params, key []byte) string {
	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s",
		hashPrefix, argon2.Version, p.MemoryKiB, p.Time, p.Threads,
		base64.RawStdEncoding.EncodeToString(key))
}

func decodeHash(encoded string) (Params, []byte, error) {
	if !strings.HasPrefix(encoded, hashPrefix) {
		return Params{}, nil, ErrMalformedHash
	}
	parts := strings.Split(strings.TrimPrefix(encoded, hashPrefix), "$")
	if len(parts) != 3 {
		return Params{}, nil, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[0], "v=%d", &version); err != nil {
		return Params{}, nil, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
	if version != argon2.Version {
		return Params{}, nil, fmt.Errorf("%w: unsupported argon2 version %d", ErrMalformedHash, version)
	}

	var p Params
	if _, err := fmt.Sscanf(parts[1], "m=%d,t=%d,p=%d", &p.MemoryKiB, &p.Time, &p.Threads); err != nil {
		return Params{}, nil, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
	if err := p.Validate(); err != nil {
		return Params{}, nil, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[2])
	if err != nil || len(key) == 0 {
		return Params{}, nil, ErrMalformedHash
	}
	return p, key, nil
}
