package errtrack

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_EmptyDSNIsNop(t *testing.T) {
	tr, err := New("", "test")
	require.NoError(t, err)
	assert.IsType(t, Nop{}, tr)

	assert.NotPanics(t, func() {
		tr.CaptureError(context.Background(), errors.New("x"), map[string]string{"stage": "extraction"})
		tr.Flush(time.Millisecond)
	})
}

func TestNew_InvalidDSN(t *testing.T) {
	_, err := New("not a dsn", "test")
	assert.Error(t, err)
}
