package scalper

import "time"

// pricePoint records a single price observation at a point in time.
type pricePoint struct {
	price float64
	ts    time.Time
}

// priceWindow is a fixed-capacity ring of recent price samples. Once full,
// each push evicts the oldest sample, so memory stays bounded regardless of
// tick rate.
type priceWindow struct {
	samples []pricePoint
	head    int // index of the next write
	count   int
}

// newPriceWindow creates a window holding at most capacity samples.
func newPriceWindow(capacity int) *priceWindow {
	if capacity < 1 {
		capacity = 1
	}
	return &priceWindow{samples: make([]pricePoint, capacity)}
}

// push appends a sample, evicting the oldest when the window is full.
func (w *priceWindow) push(price float64, ts time.Time) {
	w.samples[w.head] = pricePoint{price: price, ts: ts}
	w.head = (w.head + 1) % len(w.samples)
	if w.count < len(w.samples) {
		w.count++
	}
}

// len returns the number of samples currently held.
func (w *priceWindow) len() int {
	return w.count
}

// full reports whether the window has reached capacity.
func (w *priceWindow) full() bool {
	return w.count == len(w.samples)
}

// last returns the most recent price, or 0 when the window is empty.
func (w *priceWindow) last() float64 {
	if w.count == 0 {
		return 0
	}
	idx := (w.head - 1 + len(w.samples)) % len(w.samples)
	return w.samples[idx].price
}

// sma returns the simple moving average over the last n samples. It returns
// 0 when fewer than n samples are available.
func (w *priceWindow) sma(n int) float64 {
	if n <= 0 || w.count < n {
		return 0
	}
	var sum float64
	idx := (w.head - 1 + len(w.samples)) % len(w.samples)
	for i := 0; i < n; i++ {
		sum += w.samples[idx].price
		idx = (idx - 1 + len(w.samples)) % len(w.samples)
	}
	return sum / float64(n)
}
