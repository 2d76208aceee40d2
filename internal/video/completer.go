package video

import "sync"

// Completer runs GPU completion callbacks on a goroutine of its own so a
// device never calls back into the pool from its render thread.
type Completer struct {
	ch   chan func()
	once sync.Once
	wg   sync.WaitGroup
}

// NewCompleter starts the completion goroutine. depth bounds the callbacks
// that may be queued; a device never has more than PoolSize outstanding.
func NewCompleter(depth int) *Completer {
	if depth < PoolSize {
		depth = PoolSize
	}
	c := &Completer{ch: make(chan func(), depth)}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for fn := range c.ch {
			fn()
		}
	}()
	return c
}

// Submit queues fn. It must not be called after Close.
func (c *Completer) Submit(fn func()) {
	if fn != nil {
		c.ch <- fn
	}
}

// Close drains the queue and waits for the goroutine to exit.
func (c *Completer) Close() {
	c.once.Do(func() { close(c.ch) })
	c.wg.Wait()
}
