package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapPattern(t *testing.T) {
	base := fmt.Errorf("boom")
	err := Wrap(base, "resolver", "ApplyPattern", "matching")
	assert.Equal(t, "resolver.ApplyPattern: matching failed: boom", err.Error())
	assert.ErrorIs(t, err, base)

	assert.Nil(t, Wrap(nil, "a", "b", "c"))
	assert.Nil(t, WrapInvalid(nil, "a", "b", "c"))
	assert.Nil(t, WrapEval(nil, "a", "b", "c"))
	assert.Nil(t, WrapFatal(nil, "a", "b", "c"))
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantEval    bool
		wantInvalid bool
		wantFatal   bool
	}{
		{"eval sentinel", ErrNotANumber, true, false, false},
		{"invalid sentinel", ErrDuplicateNode, false, true, false},
		{"wrapped eval", WrapEval(fmt.Errorf("x"), "expr", "Eval", "op"), true, false, false},
		{"wrapped invalid", WrapInvalid(fmt.Errorf("x"), "graph", "AddNode", "add"), false, true, false},
		{"wrapped fatal", WrapFatal(fmt.Errorf("x"), "resolver", "DeleteSRG", "walk"), false, false, true},
		{"plain error", fmt.Errorf("x"), false, false, false},
		{"nil", nil, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantEval, IsEval(tt.err))
			assert.Equal(t, tt.wantInvalid, IsInvalid(tt.err))
			assert.Equal(t, tt.wantFatal, IsFatal(tt.err))
		})
	}
}

func TestUnwrap(t *testing.T) {
	base := ErrQueryNotFound
	err := WrapInvalid(fmt.Errorf("context: %w", base), "resolver", "DeleteQuery", "lookup")
	assert.True(t, errors.Is(err, base))

	var ce *ClassifiedError
	assert.True(t, errors.As(err, &ce))
	assert.Equal(t, ErrorInvalid, ce.Class)
	assert.Equal(t, "resolver", ce.Component)
}
