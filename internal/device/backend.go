// Package device models the compute-device dimension of the engine: atom
// arrays are cut into contiguous blocks, one per device, and force
// evaluation fans out one worker per block. On CPU a "device" is a worker
// goroutine; the block layout is what keeps per-device gathers local.
package device

import (
	"runtime"
	"sync"
)

// Backend executes one function per device shard.
type Backend interface {
	Name() string
	Devices() int
	Run(fn func(d int))
}

// CPU runs shards on worker goroutines.
type CPU struct {
	devices int
}

func NewCPU(devices int) *CPU {
	if devices < 1 {
		devices = runtime.GOMAXPROCS(0)
	}
	return &CPU{devices: devices}
}

func (c *CPU) Name() string { return "cpu" }

func (c *CPU) Devices() int { return c.devices }

func (c *CPU) Run(fn func(d int)) {
	if c.devices == 1 {
		fn(0)
		return
	}
	var wg sync.WaitGroup
	for d := 0; d < c.devices; d++ {
		wg.Add(1)
		go func(d int) {
			defer wg.Done()
			fn(d)
		}(d)
	}
	wg.Wait()
}

// Auto selects the best available backend for the requested device count.
func Auto(devices int) Backend {
	return NewCPU(devices)
}
