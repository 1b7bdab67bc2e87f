package cdc

import (
	"github.com/sourcegraph/conc/pool"
)

// Outcome is the single completion of an asynchronous call.
type Outcome struct {
	Result Result
	Err    error
}

// ProcessAsync validates synchronously and returns the error directly. On
// success the call runs on its own goroutine and exactly one Outcome is
// delivered before the channel is closed. src and dst must not be touched
// until then.
func (c *Chunker) ProcessAsync(src Source, dst Target, final bool) (<-chan Outcome, error) {
	capacity, err := checkCall(c.cfg, src, dst, final)
	if err != nil {
		return nil, err
	}
	window := src.Buf[src.Offset : src.Offset+src.Length]
	out := dst.Buf[dst.Offset : dst.Offset+capacity]

	ch := make(chan Outcome, 1)
	go func() {
		defer close(ch)
		res, err := c.run(window, out, final)
		ch <- Outcome{Result: res, Err: err}
	}()
	return ch, nil
}

// Dispatcher runs calls from many independent streams on a bounded set of
// goroutines.
type Dispatcher struct {
	p *pool.Pool
}

func NewDispatcher(workers int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{p: pool.New().WithMaxGoroutines(workers)}
}

// Submit validates synchronously; a rejected call never invokes done.
// Otherwise done is invoked exactly once from a worker goroutine. Submit
// blocks while every worker is busy.
func (d *Dispatcher) Submit(c *Chunker, src Source, dst Target, final bool, done func(Result, error)) error {
	capacity, err := checkCall(c.cfg, src, dst, final)
	if err != nil {
		return err
	}
	window := src.Buf[src.Offset : src.Offset+src.Length]
	out := dst.Buf[dst.Offset : dst.Offset+capacity]
	d.p.Go(func() {
		done(c.run(window, out, final))
	})
	return nil
}

// Wait blocks until every submitted call has completed. The dispatcher
// must not be used afterwards.
func (d *Dispatcher) Wait() {
	d.p.Wait()
}
