package words

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
)

// Index returns a deterministic index for key using HMAC(salt, key) % n.
func Index(key, salt string, n int) int {
	if n <= 0 {
		return 0
	}
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(key))
	sum := h.Sum(nil)
	// take first 8 bytes to uint64 for modulus distribution
	v := binary.BigEndian.Uint64(sum[:8])
	return int(v % uint64(n))
}

// ForRound returns the hidden word for a round. Both players derive the same
// word from the shared round id, so the answer never has to be stored.
func ForRound(roundID, salt string) string {
	mu.RLock()
	defer mu.RUnlock()
	if len(answers) == 0 {
		return "crane"
	}
	return answers[Index(roundID, salt, len(answers))]
}
