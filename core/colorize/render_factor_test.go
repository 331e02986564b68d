package colorize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderRangeParse(t *testing.T) {
	cases := []struct {
		name string
		rng  RenderRange
		raw  string
		want int
	}{
		{"image default", ImageRenderRange, "", 35},
		{"image garbage", ImageRenderRange, "high", 35},
		{"image below min", ImageRenderRange, "1", 7},
		{"image above max", ImageRenderRange, "64", 40},
		{"image in range", ImageRenderRange, "20", 20},
		{"video default", VideoRenderRange, "", 10},
		{"video zero", VideoRenderRange, "0", 1},
		{"video negative", VideoRenderRange, "-3", 1},
		{"video max", VideoRenderRange, "40", 40},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.rng.Parse(tc.raw))
		})
	}
}

func TestClampRenderFactor(t *testing.T) {
	assert.Equal(t, 5, ClampRenderFactor(5, 1, 10))
	assert.Equal(t, 1, ClampRenderFactor(-1, 1, 10))
	assert.Equal(t, 10, ClampRenderFactor(11, 1, 10))
}
