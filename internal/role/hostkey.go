package role

import (
	"fmt"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
)

// HostKeyParams trades hashing cost for join latency; a host key is random, not a password.
var HostKeyParams = &argon2id.Params{
	Memory:      16 * 1024,
	Iterations:  1,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

// NewHostKey returns a secret for the creating device and the hash stored in the room.
func NewHostKey() (key, hash string, err error) {
	key = uuid.NewString()
	hash, err = argon2id.CreateHash(key, HostKeyParams)
	if err != nil {
		return "", "", fmt.Errorf("hash host key: %w", err)
	}
	return key, hash, nil
}

func VerifyHostKey(hash, key string) bool {
	if hash == "" || key == "" {
		return false
	}
	match, err := argon2id.ComparePasswordAndHash(key, hash)
	return err == nil && match
}
