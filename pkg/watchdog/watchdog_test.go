package watchdog

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpiryBoundary(t *testing.T) {
	const T = uint32(100)
	cases := []struct {
		k    uint64
		want bool
	}{
		{0, false},
		{99, false},
		{100, true},
		{101, true},
	}
	for _, c := range cases {
		var w Watchdog
		w.Start(1000, T)
		assert.Equal(t, c.want, w.IsExpired(1000+c.k), "k=%d", c.k)
	}
}

func TestKickRestartsWindow(t *testing.T) {
	var w Watchdog
	w.Start(0, 100)
	assert.False(t, w.IsExpired(90))
	w.Kick(90)
	assert.False(t, w.IsExpired(150))
	assert.True(t, w.IsExpired(190))
}

func TestStopSuppressesExpiry(t *testing.T) {
	var w Watchdog
	w.Start(0, 100)
	w.Stop()
	assert.False(t, w.IsExpired(10_000))
}

func TestKickWhileStoppedIsNoop(t *testing.T) {
	var w Watchdog
	w.Start(0, 100)
	w.Stop()
	w.Kick(50)
	assert.False(t, w.IsExpired(10_000))
}

func TestRemainingMs(t *testing.T) {
	var w Watchdog
	w.Start(0, 100)
	assert.Equal(t, uint32(100), w.RemainingMs(0))
	assert.Equal(t, uint32(40), w.RemainingMs(60))
	assert.Equal(t, uint32(0), w.RemainingMs(150))

	w.Stop()
	assert.Equal(t, uint32(math.MaxUint32), w.RemainingMs(0))
}
