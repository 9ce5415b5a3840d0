package authclient_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/goliatone/go-authclient"
	"github.com/stretchr/testify/assert"
)

func TestIdleTimerFiresAfterTimeout(t *testing.T) {
	var fired atomic.Int32
	timer := authclient.NewIdleTimer(20*time.Millisecond, func() {
		fired.Add(1)
	})

	timer.Initialize()
	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, int32(1), fired.Load())
}

func TestIdleTimerResetDefersExpiry(t *testing.T) {
	var fired atomic.Int32
	timer := authclient.NewIdleTimer(50*time.Millisecond, func() {
		fired.Add(1)
	})

	timer.Initialize()
	time.Sleep(30 * time.Millisecond)
	timer.Reset()
	time.Sleep(30 * time.Millisecond)

	// the reset pushed expiry past the original deadline
	assert.Equal(t, int32(0), fired.Load())

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestIdleTimerStopPreventsExpiry(t *testing.T) {
	var fired atomic.Int32
	timer := authclient.NewIdleTimer(20*time.Millisecond, func() {
		fired.Add(1)
	})

	timer.Initialize()
	timer.Stop()
	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, int32(0), fired.Load())
}

func TestIdleTimerResetWithoutInitializeIsNoop(t *testing.T) {
	var fired atomic.Int32
	timer := authclient.NewIdleTimer(20*time.Millisecond, func() {
		fired.Add(1)
	})

	timer.Reset()
	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, int32(0), fired.Load())
}
