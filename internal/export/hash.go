package export

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strconv"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/crypto/argon2"
)

// HashType represents the different hashing algorithms available.
type HashType string

const (
	// HashTypeNone exports user ids as they are.
	HashTypeNone HashType = "none"
	// HashTypeArgon2id uses the Argon2id algorithm for hashing.
	HashTypeArgon2id HashType = "argon2id"
	// HashTypeSHA256 uses the SHA256 algorithm for hashing.
	HashTypeSHA256 HashType = "sha256"
)

// IsValid reports whether the hash type is known.
func (h HashType) IsValid() bool {
	switch h {
	case HashTypeNone, HashTypeArgon2id, HashTypeSHA256:
		return true
	}
	return false
}

// HashID converts a single ID to a hash using the specified algorithm with the provided salt.
func HashID(id int64, salt string, hashType HashType, iterations uint32, memory uint32) string {
	// Little-endian id bytes
	idBytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(idBytes, uint64(id)) //nolint:gosec // snowflakes fit in int64

	var hash []byte

	switch hashType {
	case HashTypeArgon2id:
		hash = argon2.IDKey(idBytes, []byte(salt), iterations, memory*1024, 1, 32)
	case HashTypeSHA256:
		// Iterative SHA256 hashing with salt
		hash = []byte(salt)

		h := sha256.New()
		for range iterations {
			h.Reset()
			h.Write(idBytes)
			h.Write(hash)
			hash = h.Sum(nil)
		}
	case HashTypeNone:
		return strconv.FormatInt(id, 10)
	}

	return hex.EncodeToString(hash)
}

// Hasher pseudonymizes user ids for exports.
type Hasher struct {
	salt        string
	hashType    HashType
	iterations  uint32
	memory      uint32
	concurrency int
}

// NewHasher creates a hasher from the export configuration.
func NewHasher(config *Config) *Hasher {
	concurrency := config.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	return &Hasher{
		salt:        config.Salt,
		hashType:    config.HashType,
		iterations:  config.Iterations,
		memory:      config.Memory,
		concurrency: concurrency,
	}
}

// Hash returns the exported form of one user id. Ids that are not numeric
// are hashed as zero so they never leak in pseudonymized exports.
func (h *Hasher) Hash(userID string) string {
	if h.hashType == HashTypeNone {
		return userID
	}

	id, _ := strconv.ParseInt(userID, 10, 64)

	return HashID(id, h.salt, h.hashType, h.iterations, h.memory)
}

// HashAll hashes user ids concurrently, keeping their order.
func (h *Hasher) HashAll(userIDs []string) []string {
	hashes := make([]string, len(userIDs))
	if h.hashType == HashTypeNone {
		copy(hashes, userIDs)
		return hashes
	}

	p := pool.New().WithMaxGoroutines(h.concurrency)
	for i, userID := range userIDs {
		p.Go(func() {
			hashes[i] = h.Hash(userID)
		})
	}
	p.Wait()

	return hashes
}
