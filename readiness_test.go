package mux

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadinessBits(t *testing.T) {
	r := READABLE.Union(ERROR)
	assert.True(t, r.IsReadable())
	assert.True(t, r.IsError())
	assert.False(t, r.IsWritable())
	assert.False(t, r.IsHup())
}

func TestReadinessRemove(t *testing.T) {
	r := READABLE.Union(WRITABLE).Union(HUP)
	r = r.Remove(WRITABLE)
	assert.True(t, r.IsReadable())
	assert.False(t, r.IsWritable())
	assert.True(t, r.IsHup())
}

func TestFilteredIsInterestAndEvent(t *testing.T) {
	s := ReadinessState{Interest: READABLE, Event: READABLE | WRITABLE}
	assert.Equal(t, READABLE, s.Filtered())

	s = ReadinessState{Interest: READABLE | WRITABLE, Event: HUP}
	assert.Equal(t, EMPTY, s.Filtered(), "events outside interest are never acted on")
}
