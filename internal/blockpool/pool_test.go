package blockpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetReturnsRequestedSize(t *testing.T) {
	p := New()
	buf := p.Get(128)
	assert.Len(t, buf, 128)
}

func TestGetPutRoundTrip(t *testing.T) {
	p := New()
	buf := p.Get(256)
	buf[0] = 0xAB
	p.Put(buf)

	buf2 := p.Get(256)
	assert.Len(t, buf2, 256)
}

func TestDistinctSizesIsolated(t *testing.T) {
	p := New()
	a := p.Get(64)
	b := p.Get(128)
	assert.Len(t, a, 64)
	assert.Len(t, b, 128)
}

func TestGrowthOnRepeatedMiss(t *testing.T) {
	p := New()
	for i := 0; i < 10; i++ {
		buf := p.Get(512)
		assert.Len(t, buf, 512)
		// Never put back: forces repeated batch growth.
	}
}
