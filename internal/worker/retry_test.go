package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicyNextDelay(t *testing.T) {
	policy := RetryPolicy{
		MaxRetries:    5,
		InitialDelay:  2 * time.Second,
		MaxDelay:      time.Minute,
		BackoffFactor: 2,
	}

	assert.Equal(t, 2*time.Second, policy.NextDelay(1))
	assert.Equal(t, 4*time.Second, policy.NextDelay(2))
	assert.Equal(t, 8*time.Second, policy.NextDelay(3))
	assert.Equal(t, 16*time.Second, policy.NextDelay(4))

	// Дальше растёт, но не выше потолка
	assert.Equal(t, time.Minute, policy.NextDelay(10))
}

func TestRetryPolicyDefaults(t *testing.T) {
	var policy RetryPolicy

	assert.Equal(t, 2*time.Second, policy.NextDelay(0))
	assert.Equal(t, 2*time.Second, policy.NextDelay(1))
	assert.Equal(t, 4*time.Second, policy.NextDelay(2))
	assert.Equal(t, 5, policy.withDefaults().MaxRetries)
}

func TestRetryPolicyJitter(t *testing.T) {
	policy := RetryPolicy{
		InitialDelay:  10 * time.Second,
		MaxDelay:      time.Minute,
		BackoffFactor: 2,
		Jitter:        0.5,
	}

	for i := 0; i < 100; i++ {
		d := policy.NextDelay(1)
		assert.GreaterOrEqual(t, d, 5*time.Second)
		assert.LessOrEqual(t, d, 15*time.Second)
	}
}
