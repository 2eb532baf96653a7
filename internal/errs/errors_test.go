package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProxyError_Error(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		err     *ProxyError
		want    string
		wantErr error
	}{
		{
			name: "with wrapped error",
			err: &ProxyError{
				Type:    ErrHijack,
				Op:      "test_operation",
				Message: "test message",
				Err:     errors.New("original error"),
			},
			want:    "hijack: test_operation: original error",
			wantErr: errors.New("original error"),
		},
		{
			name: "without wrapped error",
			err: &ProxyError{
				Type:    ErrTLSHandshake,
				Op:      "test_operation",
				Message: "test message",
			},
			want:    "tls_handshake: test_operation: test message",
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.err.Error())

			got := tt.err.Unwrap()
			if tt.wantErr == nil {
				assert.Nil(t, got)
			} else {
				assert.NotNil(t, got)
				assert.Equal(t, tt.wantErr.Error(), got.Error())
			}
		})
	}
}

func TestNew(t *testing.T) {
	t.Parallel()
	originalErr := errors.New("test error")
	err := New(ErrHijack, "test_op", "test message", originalErr)

	assert.Equal(t, ErrHijack, err.Type)
	assert.Equal(t, "test_op", err.Op)
	assert.Equal(t, "test message", err.Message)
	assert.Equal(t, originalErr, err.Err)

	errStr := err.Error()
	assert.Contains(t, errStr, string(ErrHijack))
	assert.Contains(t, errStr, "test_op")
	assert.Contains(t, errStr, "test error")
}

func TestProxyError_Is(t *testing.T) {
	t.Parallel()

	err1 := New(ErrHijack, "op1", "message1", nil)
	err2 := New(ErrHijack, "op2", "message2", nil)
	err3 := New(ErrTLSHandshake, "op3", "message3", nil)

	assert.True(t, errors.Is(err1, err2))
	assert.False(t, errors.Is(err1, err3))

	wrappedErr := fmt.Errorf("wrapped: %w", err1)
	assert.True(t, errors.Is(wrappedErr, err2))
}

func TestIsType(t *testing.T) {
	t.Parallel()

	err := New(ErrHijack, "op", "message", nil)
	wrappedErr := fmt.Errorf("wrapped: %w", err)

	assert.True(t, IsType(err, ErrHijack))
	assert.False(t, IsType(err, ErrTLSHandshake))
	assert.True(t, IsType(wrappedErr, ErrHijack))
}

func TestAs(t *testing.T) {
	t.Parallel()

	originalErr := errors.New("original error")
	proxyErr := New(ErrHijack, "op", "message", originalErr)
	wrappedErr := fmt.Errorf("wrapped: %w", proxyErr)
	plainErr := errors.New("plain error")

	got1 := As(proxyErr)
	assert.NotNil(t, got1)
	assert.Equal(t, ErrHijack, got1.Type)

	got2 := As(wrappedErr)
	assert.NotNil(t, got2)
	assert.Equal(t, ErrHijack, got2.Type)

	got3 := As(plainErr)
	assert.Nil(t, got3)
}

func TestErrorType_Fatal(t *testing.T) {
	t.Parallel()

	assert.True(t, ErrConfig.Fatal())
	assert.True(t, ErrStartupIO.Fatal())
	assert.False(t, ErrBlock.Fatal())
	assert.False(t, ErrCookie.Fatal())
}
