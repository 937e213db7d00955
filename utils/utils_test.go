package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRandomAlphabetString(t *testing.T) {
	s := RandomAlphabetString(8)
	assert.Equal(t, 8, len(s))
	for _, r := range s {
		assert.True(t, r >= 'a' && r <= 'z')
	}
}
