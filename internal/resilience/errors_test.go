package resilience

import (
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "transient wrapper", err: NewTransientError(eris.New("503"), 503), want: true},
		{name: "wrapped transient", err: eris.Wrap(NewTransientError(eris.New("503"), 503), "download"), want: true},
		{name: "connection refused", err: syscall.ECONNREFUSED, want: true},
		{name: "connection reset", err: syscall.ECONNRESET, want: true},
		{name: "string heuristic", err: eris.New("read tcp: connection reset by peer"), want: true},
		{name: "dns failure", err: eris.New("dial tcp: lookup api.example: no such host"), want: true},
		{name: "plain error", err: eris.New("validation failed"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	t.Parallel()

	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), code)
	}
	for _, code := range []int{200, 201, 301, 400, 401, 403, 404, 422} {
		assert.False(t, IsTransientHTTPStatus(code), code)
	}
}

func TestTransientErrorUnwrap(t *testing.T) {
	t.Parallel()

	inner := eris.New("upstream 502")
	te := NewTransientError(inner, 502)
	assert.Equal(t, "upstream 502", te.Error())
	assert.Equal(t, 502, te.StatusCode)
	assert.ErrorIs(t, te, inner)
}
