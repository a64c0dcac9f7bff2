package agent

import (
	"math/rand"
	"time"
)

// JitteredDelay returns a pipeline delay function that waits a random
// duration uniformly distributed between min and max before each post,
// spacing consecutive posts out rather than bursting them back to back.
// A zero-width range (min >= max) always waits exactly min.
func JitteredDelay(min, max time.Duration) func() <-chan struct{} {
	return func() <-chan struct{} {
		d := min
		if max > min {
			d = min + time.Duration(rand.Int63n(int64(max-min)))
		}
		ch := make(chan struct{})
		go func() {
			time.Sleep(d)
			close(ch)
		}()
		return ch
	}
}
