package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckoutRespectsCapacity(t *testing.T) {
	p := New(64, 2)

	r1, ok := p.Checkout()
	require.True(t, ok)
	require.NotNil(t, r1)

	r2, ok := p.Checkout()
	require.True(t, ok)

	_, ok = p.Checkout()
	assert.False(t, ok, "third checkout must fail once capacity is exhausted")

	r1.Release()
	r3, ok := p.Checkout()
	assert.True(t, ok, "checkout must succeed again after a release")
	assert.Equal(t, 2, p.InUse())

	r2.Release()
	r3.Release()
	assert.Equal(t, 0, p.InUse())
}

func TestRegionIsFixedSize(t *testing.T) {
	p := New(128, 1)
	r, ok := p.Checkout()
	require.True(t, ok)
	assert.Len(t, r.Bytes(), 128)
}

func TestReleaseIsIdempotent(t *testing.T) {
	p := New(64, 1)
	r, _ := p.Checkout()
	r.Release()
	assert.NotPanics(t, func() { r.Release() })
	assert.Equal(t, 0, p.InUse())
}

func TestRefUpgradeAfterInvalidate(t *testing.T) {
	p := New(64, 1)
	ref := NewRef(p)

	got, ok := ref.Upgrade()
	require.True(t, ok)
	assert.Same(t, p, got)

	ref.Invalidate()
	_, ok = ref.Upgrade()
	assert.False(t, ok, "upgrade must fail once the pool has been invalidated")
}
