package transport

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifySendFailureMapsRateLimited(t *testing.T) {
	parsed := sendMessageResponse{ErrorCode: 429, Description: "Too Many Requests"}
	parsed.Parameters.RetryAfter = 5
	err := classifySendFailure(http.StatusTooManyRequests, parsed)
	assert.Equal(t, RateLimited, err.Kind)
	assert.Equal(t, int64(5), int64(err.RetryAfter.Seconds()))
}

func TestClassifySendFailureMapsUnauthorized(t *testing.T) {
	err := classifySendFailure(http.StatusForbidden, sendMessageResponse{})
	assert.Equal(t, Unauthorized, err.Kind)
}

func TestClassifySendFailureMapsChatNotFound(t *testing.T) {
	err := classifySendFailure(http.StatusNotFound, sendMessageResponse{})
	assert.Equal(t, ChatNotFound, err.Kind)
}

func TestClassifySendFailureMapsTransientOnServerError(t *testing.T) {
	err := classifySendFailure(http.StatusServiceUnavailable, sendMessageResponse{})
	assert.Equal(t, Transient, err.Kind)
}

func TestClassifySendFailureDefaultsToOther(t *testing.T) {
	err := classifySendFailure(http.StatusTeapot, sendMessageResponse{})
	assert.Equal(t, Other, err.Kind)
}

func TestSendErrorUnwrapExposesUnderlyingError(t *testing.T) {
	sentinel := assert.AnError
	e := &SendError{Kind: Other, Err: sentinel}
	assert.Equal(t, sentinel, e.Unwrap())
}
