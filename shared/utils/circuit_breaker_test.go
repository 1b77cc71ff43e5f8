package utils

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	cb := NewCircuitBreaker("webhook", 2, 20*time.Millisecond)
	boom := errors.New("boom")

	assert.ErrorIs(t, cb.Call(func() error { return boom }), boom)
	assert.ErrorIs(t, cb.Call(func() error { return boom }), boom)
	assert.Equal(t, StateOpen, cb.GetState())

	assert.ErrorIs(t, cb.Call(func() error { return nil }), ErrCircuitOpen)

	time.Sleep(30 * time.Millisecond)
	assert.NoError(t, cb.Call(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.GetState())
}
