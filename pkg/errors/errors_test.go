package errors

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsRateLimit(t *testing.T) {
	rl := NewRateLimit("followers/list", &RateLimitInfo{Limit: 15, Remaining: 0, Reset: time.Now().Add(time.Minute)})

	assert.True(t, IsRateLimit(rl))
	assert.True(t, IsRateLimit(fmt.Errorf("page 3: %w", rl)))
	assert.False(t, IsRateLimit(New(ErrorTypeServerError, 503, "unavailable")))
	assert.False(t, IsRateLimit(fmt.Errorf("plain")))
	assert.False(t, IsRateLimit(nil))
	assert.Contains(t, rl.Error(), "throttled until")
}

func TestFromStatusCode(t *testing.T) {
	tests := []struct {
		code int
		want ErrorType
	}{
		{401, ErrorTypeAuth},
		{403, ErrorTypeForbidden},
		{404, ErrorTypeNotFound},
		{429, ErrorTypeRateLimit},
		{500, ErrorTypeServerError},
		{503, ErrorTypeServerError},
		{418, ErrorTypeUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FromStatusCode(tt.code), "status %d", tt.code)
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrorTypeNetwork))
	assert.True(t, IsRetryable(ErrorTypeServerError))
	assert.False(t, IsRetryable(ErrorTypeRateLimit))
	assert.False(t, IsRetryable(ErrorTypeAuth))

	assert.True(t, IsRetryableStatusCode(0))
	assert.True(t, IsRetryableStatusCode(502))
	assert.False(t, IsRetryableStatusCode(429))
	assert.False(t, IsRetryableStatusCode(404))
}
