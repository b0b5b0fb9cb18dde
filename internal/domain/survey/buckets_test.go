package survey

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRound2(t *testing.T) {
	assert.Equal(t, 2.5, Round2(2.5))
	assert.Equal(t, 1.01, Round2(1.005))
	assert.Equal(t, 0.33, Round2(1.0/3.0))
	assert.Equal(t, 0.67, Round2(2.0/3.0))
	assert.Equal(t, -1.26, Round2(-1.255))
	assert.Equal(t, float64(0), Round2(0))
}
