package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := New("content-store", WithFailureThreshold(3))

	assert.False(t, b.RecordFailure())
	assert.False(t, b.RecordFailure())
	assert.True(t, b.RecordFailure(), "third consecutive failure should open the circuit")
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerAllowsProbeAfterCooldown(t *testing.T) {
	b := New("content-store", WithFailureThreshold(1), WithCooldown(10*time.Millisecond))
	b.RecordFailure()

	assert.False(t, b.Allow(), "no probe immediately after opening")
	time.Sleep(15 * time.Millisecond)
	assert.True(t, b.Allow(), "probe allowed after cooldown")
	assert.False(t, b.Allow(), "only one probe per cooldown window")
}

func TestBreakerClosesAfterProbeSuccesses(t *testing.T) {
	b := New("content-store", WithFailureThreshold(1), WithSuccessThreshold(2))
	b.RecordFailure()

	assert.False(t, b.RecordSuccess())
	assert.True(t, b.RecordSuccess(), "second probe success should close the circuit")
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerSuccessResetsFailureStreak(t *testing.T) {
	b := New("content-store", WithFailureThreshold(2))

	b.RecordFailure()
	b.RecordSuccess()
	assert.False(t, b.RecordFailure(), "streak restarts after a success")
	assert.Equal(t, StateClosed, b.State())
}
