package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindChecks(t *testing.T) {
	tests := []struct {
		err   error
		check func(error) bool
	}{
		{Validation("bad input %d", 1), IsValidation},
		{Conflict("already terminal"), IsConflict},
		{BusinessRule("leader inactive"), IsBusinessRule},
		{Gateway("charge create failed", errors.New("timeout")), IsGateway},
		{Integrity("duplicate delivery"), IsIntegrity},
	}
	for _, tt := range tests {
		assert.True(t, tt.check(tt.err), "%v", tt.err)
		assert.False(t, tt.check(errors.New("plain")), "plain error must not match")
	}
}

func TestWrappedErrorsKeepKind(t *testing.T) {
	base := Conflict("registration 5 is cancelled")
	wrapped := fmt.Errorf("cancel: %w", base)

	assert.True(t, IsConflict(wrapped))
	assert.False(t, IsValidation(wrapped))
}

func TestGatewayUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Gateway("create charge", cause)

	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "gateway")
	assert.Contains(t, err.Error(), "connection refused")
}
