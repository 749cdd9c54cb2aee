package errs

import (
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKindString(t *testing.T) {
	cases := map[Kind]string{
		InvalidInput: "invalid_input",
		NotFound:     "not_found",
		Conflict:     "conflict",
		Transient:    "transient",
		Dimension:    "dimension",
		Unavailable:  "unavailable",
		Timeout:      "timeout",
		Kind(99):     "unknown",
	}
	for kind, want := range cases {
		assert.Equal(t, want, kind.String())
	}
}

func TestWrapAndIs(t *testing.T) {
	base := errors.New("boom")
	wrapped := Wrap(Dimension, base, "embed memo-1")
	require.Error(t, wrapped)
	assert.True(t, Is(wrapped, Dimension))
	assert.False(t, Is(wrapped, Transient))
	assert.ErrorIs(t, wrapped, base)
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(Dimension, nil, "x"))
}

func TestKindOfUnclassified(t *testing.T) {
	assert.Equal(t, Unavailable, KindOf(errors.New("plain")))
}

func TestIsRetryableClassifiesTransientPatterns(t *testing.T) {
	assert.True(t, IsRetryable(errors.New("dial tcp: connection refused")))
	assert.True(t, IsRetryable(errors.New("received 503 from upstream")))
	assert.False(t, IsRetryable(errors.New("invalid request body")))
	assert.False(t, IsRetryable(nil))
}

type fakeNetErr struct{ timeout bool }

func (f fakeNetErr) Error() string   { return "net error" }
func (f fakeNetErr) Timeout() bool   { return f.timeout }
func (f fakeNetErr) Temporary() bool { return true }

var _ net.Error = fakeNetErr{}

func TestClassifyNetError(t *testing.T) {
	ce := Classify(fakeNetErr{timeout: true})
	assert.Equal(t, Timeout, ce.Kind)

	ce = Classify(fakeNetErr{timeout: false})
	assert.Equal(t, Transient, ce.Kind)
}

func TestClassifyPreservesExisting(t *testing.T) {
	original := New(Conflict, "dup id")
	assert.Same(t, original, Classify(original))
}
