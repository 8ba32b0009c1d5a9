package bit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCombine(t *testing.T) {
	assert.Equal(t, uint16(0xABCD), Combine(0xAB, 0xCD))
	assert.Equal(t, uint16(0x00FF), Combine(0x00, 0xFF))
}

func TestIsSet(t *testing.T) {
	assert.True(t, IsSet(0, 0x01))
	assert.True(t, IsSet(7, 0x80))
	assert.False(t, IsSet(3, 0xF7))
}

func TestSetClear(t *testing.T) {
	assert.Equal(t, uint8(0x08), Set(3, 0x00))
	assert.Equal(t, uint8(0xF7), Clear(3, 0xFF))
}

func TestGetBitValue(t *testing.T) {
	assert.Equal(t, uint8(1), GetBitValue(4, 0x10))
	assert.Equal(t, uint8(0), GetBitValue(4, 0xEF))
}

func TestExtractBits(t *testing.T) {
	assert.Equal(t, uint8(0b101), ExtractBits(0b11010110, 6, 4))
	assert.Equal(t, uint8(0b0110), ExtractBits(0b11010110, 3, 0))
}
