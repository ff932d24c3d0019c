package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsCode_SeesThroughWrapping(t *testing.T) {
	base := WrongInput("bad date")
	wrapped := fmt.Errorf("set date: %w", base)

	assert.True(t, IsCode(wrapped, ErrCodeWrongInput))
	assert.False(t, IsCode(wrapped, ErrCodeGone))
	assert.False(t, IsCode(fmt.Errorf("plain"), ErrCodeWrongInput))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrCodeGone, CodeOf(Gone(7), ErrCodeInternal))
	assert.Equal(t, ErrCodeInternal, CodeOf(fmt.Errorf("plain"), ErrCodeInternal))
}

func TestError_Message(t *testing.T) {
	err := Internal("corrupt rule set", fmt.Errorf("ordinal 99"))
	assert.Equal(t, "[INTERNAL] corrupt rule set: ordinal 99", err.Error())

	gone := Gone(42)
	assert.Equal(t, "[GONE] reminder 42 is gone", gone.Error())
	assert.Equal(t, int64(42), gone.Context["reminder_id"])
}
