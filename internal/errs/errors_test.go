package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "without cause",
			err:  New(ErrKindInvalidInput, "connection id is empty"),
			want: "[invalid_input] connection id is empty",
		},
		{
			name: "with cause",
			err:  Wrap(ErrKindPermissionDenied, "describe table orders", errors.New("42501")),
			want: "[permission_denied] describe table orders: 42501",
		},
		{
			name: "formatted",
			err:  Newf(ErrKindUnsupported, "driver %q", "oracle"),
			want: `[unsupported] driver "oracle"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestPredicates(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"not found", Wrap(ErrKindNotFound, "x", cause), IsNotFound},
		{"timeout", Wrap(ErrKindTimeout, "x", cause), IsTimeout},
		{"connection failed", Wrap(ErrKindConnectionFailed, "x", cause), IsConnectionFailed},
		{"invalid input", New(ErrKindInvalidInput, "x"), IsInvalidInput},
		{"permission denied", New(ErrKindPermissionDenied, "x"), IsPermissionDenied},
		{"invalid connection", New(ErrKindInvalidConnection, "x"), IsInvalidConnection},
		{"unsupported", New(ErrKindUnsupported, "x"), IsUnsupported},
		{"wrapped by fmt", fmt.Errorf("build: %w", New(ErrKindPermissionDenied, "x")), IsPermissionDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
		})
	}
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, ErrKindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, ErrKindUnknown, KindOf(nil))
	assert.False(t, IsPermissionDenied(errors.New("permission denied")))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root")
	err := Wrapf(ErrKindQueryFailed, cause, "list tables in %s", "public")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "list tables in public", err.Message)
}
