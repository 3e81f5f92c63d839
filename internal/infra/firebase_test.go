// README: Tests for mapping verified tokens to operator identities.
package infra

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperatorFromToken(t *testing.T) {
	tests := []struct {
		name  string
		token *auth.Token
		want  Operator
	}{
		{"role claim", &auth.Token{UID: "op1", Claims: map[string]interface{}{"role": "operator"}}, Operator{UID: "op1", Role: "operator"}},
		{"no claims", &auth.Token{UID: "op2"}, Operator{UID: "op2"}},
		{"non-string role", &auth.Token{UID: "op3", Claims: map[string]interface{}{"role": 7}}, Operator{UID: "op3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, *operatorFromToken(tt.token))
		})
	}
}

func TestVerifyOperator_PassesErrorsThrough(t *testing.T) {
	boom := errors.New("expired")
	f := &firebaseOperators{verify: func(context.Context, string) (*auth.Token, error) { return nil, boom }}

	_, err := f.VerifyOperator(context.Background(), "t")
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrTokenRevoked)
}

func TestVerifyOperator(t *testing.T) {
	f := &firebaseOperators{verify: func(_ context.Context, raw string) (*auth.Token, error) {
		return &auth.Token{UID: raw, Claims: map[string]interface{}{"role": "operator"}}, nil
	}}

	op, err := f.VerifyOperator(context.Background(), "op9")
	require.NoError(t, err)
	assert.Equal(t, &Operator{UID: "op9", Role: "operator"}, op)
}
