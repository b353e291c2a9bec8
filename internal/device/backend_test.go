package device

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunVisitsEveryDevice(t *testing.T) {
	b := NewCPU(4)
	assert.Equal(t, 4, b.Devices())

	var mask int64
	b.Run(func(d int) {
		atomic.AddInt64(&mask, 1<<uint(d))
	})
	assert.Equal(t, int64(0b1111), mask)
}

func TestAutoDefaults(t *testing.T) {
	b := Auto(0)
	assert.Equal(t, "cpu", b.Name())
	assert.GreaterOrEqual(t, b.Devices(), 1)
}
