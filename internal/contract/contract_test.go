package contract

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/memkit/internal/logger"
)

func catch(fn func()) (v *Violation) {
	defer func() { v = Recover(recover()) }()
	fn()
	return nil
}

func TestFailf_PanicsWithViolation(t *testing.T) {
	v := catch(func() { Failf("array.Insert", "at %d > count %d", 5, 3) })
	require.NotNil(t, v)
	assert.Equal(t, "array.Insert", v.Op)
	assert.Equal(t, "array.Insert: at 5 > count 3", v.Error())
	assert.True(t, errors.Is(v, ErrViolation))
}

func TestFailf_Logs(t *testing.T) {
	var buf bytes.Buffer
	logger.Init(logger.Options{Enabled: true, Writer: &buf})
	t.Cleanup(func() { logger.Init(logger.Options{}) })

	_ = catch(func() { Failf("pool.Acquire", "exhausted") })
	assert.Contains(t, buf.String(), "op=pool.Acquire")
	assert.Contains(t, buf.String(), "reason=exhausted")
}

func TestIndexAndRange(t *testing.T) {
	tests := []struct {
		name  string
		fn    func()
		fatal bool
	}{
		{"index ok", func() { Index("op", 0, 1) }, false},
		{"index negative", func() { Index("op", -1, 1) }, true},
		{"index past end", func() { Index("op", 1, 1) }, true},
		{"range empty", func() { Range("op", 0, 0, 0) }, false},
		{"range full", func() { Range("op", 0, 3, 3) }, false},
		{"range inverted", func() { Range("op", 2, 1, 3) }, true},
		{"range past end", func() { Range("op", 1, 4, 3) }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := catch(tt.fn)
			assert.Equal(t, tt.fatal, v != nil)
		})
	}
}

func TestRecover_RepanicsForeignValues(t *testing.T) {
	assert.PanicsWithValue(t, "boom", func() {
		_ = catch(func() { panic("boom") })
	})
}
