package password

import (
	"errors"
	"fmt"
	"strings"
)

// Algorithm selects the hashing scheme for new digests.
type Algorithm string

const (
	// AlgorithmBcrypt is the default.
	AlgorithmBcrypt Algorithm = "bcrypt"
	// AlgorithmArgon2id produces PHC-encoded Argon2id digests.
	AlgorithmArgon2id Algorithm = "argon2id"
)

// ErrEmpty is returned by Hash for empty plaintexts.
var ErrEmpty = errors.New("password must not be empty")

// Config configures a [Hasher].
type Config struct {
	Algorithm  Algorithm
	BcryptCost int
	Argon2     Argon2Config
}

// DefaultConfig returns bcrypt at DefaultBcryptCost with default Argon2id
// parameters for verifying existing Argon2id digests.
func DefaultConfig() Config {
	return Config{
		Algorithm:  AlgorithmBcrypt,
		BcryptCost: DefaultBcryptCost,
		Argon2:     DefaultArgon2Config(),
	}
}

// Hasher hashes new passwords with the configured algorithm and verifies
// digests of either supported algorithm.
type Hasher struct {
	algorithm Algorithm
	bcrypt    *Bcrypt
	argon2    *Argon2
}

// NewHasher validates cfg and returns a Hasher.
func NewHasher(cfg Config) (*Hasher, error) {
	switch cfg.Algorithm {
	case "":
		cfg.Algorithm = AlgorithmBcrypt
	case AlgorithmBcrypt, AlgorithmArgon2id:
	default:
		return nil, fmt.Errorf("unsupported password algorithm %q", cfg.Algorithm)
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = DefaultBcryptCost
	}
	if cfg.Argon2 == (Argon2Config{}) {
		cfg.Argon2 = DefaultArgon2Config()
	}

	b, err := NewBcrypt(cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	a, err := NewArgon2(cfg.Argon2)
	if err != nil {
		return nil, err
	}

	return &Hasher{algorithm: cfg.Algorithm, bcrypt: b, argon2: a}, nil
}

// Algorithm returns the algorithm used for new digests.
func (h *Hasher) Algorithm() Algorithm {
	return h.algorithm
}

// Hash returns a self-contained digest of plaintext. Two calls with the same
// input return different digests.
func (h *Hasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmpty
	}
	if h.algorithm == AlgorithmArgon2id {
		return h.argon2.Hash(plaintext)
	}
	return h.bcrypt.Hash(plaintext)
}

// Verify reports whether plaintext matches digest. Every failure mode,
// including malformed digests and internal errors, yields false.
func (h *Hasher) Verify(plaintext, digest string) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	var err error
	switch detect(digest) {
	case AlgorithmBcrypt:
		if len(plaintext) > maxBcryptBytes {
			return false
		}
		ok, err = h.bcrypt.Verify(plaintext, digest)
	case AlgorithmArgon2id:
		ok, err = h.argon2.Verify(plaintext, digest)
	default:
		return false
	}
	return err == nil && ok
}

// NeedsRehash reports whether digest should be replaced on the next
// successful login: it uses another algorithm or weaker parameters than the
// configured ones. Unparseable digests report false.
func (h *Hasher) NeedsRehash(digest string) bool {
	alg := detect(digest)
	if alg == "" {
		return false
	}
	if alg != h.algorithm {
		return true
	}

	var (
		upgrade bool
		err     error
	)
	if alg == AlgorithmArgon2id {
		upgrade, err = h.argon2.NeedsUpgrade(digest)
	} else {
		upgrade, err = h.bcrypt.NeedsUpgrade(digest)
	}
	return err == nil && upgrade
}

func detect(digest string) Algorithm {
	switch {
	case strings.HasPrefix(digest, argon2Prefix):
		return AlgorithmArgon2id
	case strings.HasPrefix(digest, "$2a$"), strings.HasPrefix(digest, "$2b$"), strings.HasPrefix(digest, "$2y$"):
		return AlgorithmBcrypt
	default:
		return ""
	}
}
