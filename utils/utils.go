package utils

import (
	"math/rand"
)

const alphabet = "abcdefghijklmnopqrstuvwxyz"

// Error codes returned to the client in the "code" field of error responses.
const (
	ErrorTokenAuthFail = 100010
)

// RandomAlphabetString generates a lower case random alphabet string with
// length n.
func RandomAlphabetString(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[rand.Intn(len(alphabet))]
	}
	return string(b)
}
