package colorutil_test

import (
	"testing"

	"arbor-tracer/pkg/colorutil"

	"github.com/stretchr/testify/assert"
)

func TestHSVToRGB(t *testing.T) {
	assert.Equal(t, colorutil.Red, colorutil.HSVToRGB(0, 1, 1))
	assert.Equal(t, colorutil.Green, colorutil.HSVToRGB(120, 1, 1))
	assert.Equal(t, colorutil.Blue, colorutil.HSVToRGB(240, 1, 1))
	assert.Equal(t, colorutil.Red, colorutil.HSVToRGB(360, 1, 1))
	assert.Equal(t, colorutil.White, colorutil.HSVToRGB(77, 0, 1))
	assert.Equal(t, colorutil.Black, colorutil.HSVToRGB(200, 1, 0))
}

func TestPalette(t *testing.T) {
	p := colorutil.Palette(6)
	assert.Len(t, p, 6)
	for i := 1; i < len(p); i++ {
		assert.NotEqual(t, p[i-1], p[i])
		assert.Equal(t, uint8(255), p[i].A)
	}
	assert.Empty(t, colorutil.Palette(0))
}
