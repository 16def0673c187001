package syncerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		code      Code
		transient bool
		throttled bool
		notFound  bool
		conflict  bool
	}{
		{name: "nil", err: nil, code: ""},
		{name: "plain error", err: errors.New("boom"), code: CodeUnknown},
		{name: "network", err: New(CodeNetwork, "list users", errors.New("reset")), code: CodeNetwork, transient: true},
		{name: "timeout", err: New(CodeTimeout, "list users", nil), code: CodeTimeout, transient: true},
		{name: "5xx", err: &Error{Code: CodeUnavailable, Status: 502}, code: CodeUnavailable, transient: true},
		{name: "throttle", err: New(CodeRateLimit, "list meetings", nil), code: CodeRateLimit, throttled: true},
		{name: "not found", err: New(CodeNotFound, "get meeting", nil), code: CodeNotFound, notFound: true},
		{name: "wrapped", err: fmt.Errorf("load: %w", New(CodeNetwork, "x", nil)), code: CodeNetwork, transient: true},
		{name: "unauthorized", err: New(CodeUnauthorized, "x", nil), code: CodeUnauthorized},
		{name: "already exists", err: fmt.Errorf("create: %w", &Error{Code: CodeConflict, Status: 409}), code: CodeConflict, conflict: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, CodeOf(tt.err))
			assert.Equal(t, tt.transient, IsTransient(tt.err))
			assert.Equal(t, tt.throttled, IsThrottled(tt.err))
			assert.Equal(t, tt.notFound, IsNotFound(tt.err))
			assert.Equal(t, tt.conflict, IsConflict(tt.err))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Code: CodeInvalidInput, Op: "create user", Status: 400, Body: `{"code":1005}`, Err: errors.New("rejected")}

	assert.Equal(t, "create user: INVALID_INPUT (status 400): rejected", err.Error())
	assert.Equal(t, `{"code":1005}`, BodyOf(fmt.Errorf("outer: %w", err)))
	assert.Empty(t, BodyOf(errors.New("plain")))
}
