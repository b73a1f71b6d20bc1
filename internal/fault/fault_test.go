package fault

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{
			name: "direct fault error",
			err:  New(KindNotFound, "pull request missing"),
			want: KindNotFound,
		},
		{
			name: "wrapped fault error",
			err:  fmt.Errorf("fetching diff: %w", New(KindAuth, "bad token")),
			want: KindAuth,
		},
		{
			name: "plain error",
			err:  errors.New("boom"),
			want: KindInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestWrapNilCause(t *testing.T) {
	err := Wrap(KindTimeout, nil, "should be nil")
	assert.Nil(t, err)
}

func TestUnwrapPreservesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(KindTimeout, cause, "model call")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindTimeout, KindOf(err))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(New(KindRateLimit, "429")))
	assert.True(t, Retryable(New(KindTimeout, "deadline")))
	assert.False(t, Retryable(New(KindAuth, "401")))
	assert.False(t, Retryable(New(KindQuotaExceeded, "quota")))
	assert.False(t, Retryable(New(KindMalformedResponse, "bad schema")))
	assert.False(t, Retryable(errors.New("unknown")))
}

func TestWithRetryAfter(t *testing.T) {
	err := New(KindRateLimit, "slow down").WithRetryAfter(42 * time.Second)

	var fe *Error
	assert.True(t, errors.As(fmt.Errorf("wrapped: %w", err), &fe))
	assert.Equal(t, 42*time.Second, fe.RetryAfter)
}
