// Package series_store owns the immutable ordered OHLCV series and the
// per-bar derived caches the render path reads every frame. After Load the
// store is read-only from the render thread's point of view; Append and
// AttachIndicator publish a whole new snapshot atomically, so the hot
// RangeQuery/Nearest paths never take a lock.
package series_store

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"candlelab/go_src/chart_exceptions"
	"candlelab/go_src/schema"

	"github.com/sirupsen/logrus"
)

// Timestamps may jitter backwards by at most this many milliseconds before
// the series is rejected as unsorted; smaller regressions are clamped to
// the previous bar's timestamp.
const backwardToleranceMs = 2

// IndexRange is a contiguous, inclusive span of bar indices. An empty
// range has First > Last.
type IndexRange struct {
	First int
	Last  int
}

// Empty reports whether the range contains no bars.
func (r IndexRange) Empty() bool { return r.First > r.Last }

// Count returns the number of bars in the range.
func (r IndexRange) Count() int {
	if r.Empty() {
		return 0
	}
	return r.Last - r.First + 1
}

// Slice is a read-only view over a contiguous portion of the series,
// handed to the geometry builder. Bars, Flags and each indicator array are
// parallel; FirstIndex maps position 0 back to the series index.
type Slice struct {
	FirstIndex int
	Bars       []schema.Bar
	Flags      []schema.BarFlags
	Indicators map[string][]float64
}

// snapshot is the immutable state a reader observes. A new snapshot is
// published for every mutation; readers hold whichever one they loaded for
// the duration of a frame.
type snapshot struct {
	bars       []schema.Bar
	flags      []schema.BarFlags
	indicators map[string][]float64
	priceMin   float64
	priceMax   float64
}

// SeriesHandle is the handle returned by Load. All read methods are safe
// for concurrent use with the single writer.
type SeriesHandle struct {
	cur atomic.Pointer[snapshot]

	// writeMu serializes Append/AttachIndicator. Readers never take it.
	writeMu sync.Mutex
}

// Load validates and adopts an ordered bar sequence. Timestamps unsorted
// beyond the tolerance or a fully empty input fail with DataError.
// Non-finite price/volume fields are clamped to neighbor values instead of
// rejecting the whole series, so partial data stays usable.
func Load(bars []schema.Bar) (*SeriesHandle, error) {
	if len(bars) == 0 {
		return nil, chart_exceptions.NewDataError("", "series is empty")
	}

	owned := make([]schema.Bar, len(bars))
	copy(owned, bars)

	clamped := 0
	for i := range owned {
		if !owned[i].Finite() {
			clampBar(owned, i)
			clamped++
		}
		if i == 0 {
			continue
		}
		prev := owned[i-1].Timestamp
		if owned[i].Timestamp < prev {
			if prev-owned[i].Timestamp > backwardToleranceMs {
				return nil, &chart_exceptions.DataError{
					Message: "timestamps are not sorted",
					Row:     int64(i),
				}
			}
			owned[i].Timestamp = prev
		}
	}
	if clamped > 0 {
		logrus.Warnf("series_store: clamped %d bar(s) with non-finite fields to neighbor values", clamped)
	}

	snap := &snapshot{
		bars:       owned,
		indicators: map[string][]float64{},
	}
	snap.flags = deriveFlags(nil, owned)
	snap.priceMin, snap.priceMax = derivePriceExtent(owned)

	h := &SeriesHandle{}
	h.cur.Store(snap)
	logrus.Debugf("series_store: loaded %d bars spanning [%d, %d]", len(owned), owned[0].Timestamp, owned[len(owned)-1].Timestamp)
	return h, nil
}

// clampBar replaces non-finite fields of bars[i] with the closest usable
// neighbor value: the previous bar's close, or the next finite bar's open
// at the head of the series. Volume clamps to zero.
func clampBar(bars []schema.Bar, i int) {
	ref := math.NaN()
	if i > 0 {
		ref = bars[i-1].Close
	} else {
		for j := i + 1; j < len(bars); j++ {
			if bars[j].Finite() {
				ref = bars[j].Open
				break
			}
		}
	}
	if math.IsNaN(ref) {
		ref = 0
	}
	fix := func(v float64) float64 {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ref
		}
		return v
	}
	bars[i].Open = fix(bars[i].Open)
	bars[i].High = fix(bars[i].High)
	bars[i].Low = fix(bars[i].Low)
	bars[i].Close = fix(bars[i].Close)
	if math.IsNaN(bars[i].Volume) || math.IsInf(bars[i].Volume, 0) {
		bars[i].Volume = 0
	}
}

// deriveFlags extends an existing flag cache with flags for the bars past
// its current length. With a nil prefix it computes the full cache.
func deriveFlags(prefix []schema.BarFlags, bars []schema.Bar) []schema.BarFlags {
	flags := make([]schema.BarFlags, len(bars))
	n := copy(flags, prefix)
	for i := n; i < len(bars); i++ {
		flags[i] = bars[i].Flags()
	}
	return flags
}

func derivePriceExtent(bars []schema.Bar) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, b := range bars {
		lo = math.Min(lo, b.Low)
		hi = math.Max(hi, b.High)
	}
	return lo, hi
}

// Len returns the bar count of the current snapshot.
func (h *SeriesHandle) Len() int {
	return len(h.cur.Load().bars)
}

// Bar returns the bar at index i, or false when i is out of range.
func (h *SeriesHandle) Bar(i int) (schema.Bar, bool) {
	snap := h.cur.Load()
	if i < 0 || i >= len(snap.bars) {
		return schema.Bar{}, false
	}
	return snap.bars[i], true
}

// Extent returns the first and last timestamps of the series.
func (h *SeriesHandle) Extent() (first, last int64) {
	snap := h.cur.Load()
	return snap.bars[0].Timestamp, snap.bars[len(snap.bars)-1].Timestamp
}

// PriceExtent returns the lowest low and highest high over the full series.
func (h *SeriesHandle) PriceExtent() (lo, hi float64) {
	snap := h.cur.Load()
	return snap.priceMin, snap.priceMax
}

// RangeQuery returns the maximal contiguous index span whose timestamps
// fall inside [timeStart, timeEnd], both inclusive. Binary search on the
// sorted timestamps; this is the per-frame hot path during panning.
func (h *SeriesHandle) RangeQuery(timeStart, timeEnd int64) IndexRange {
	snap := h.cur.Load()
	bars := snap.bars
	if timeEnd < timeStart {
		return IndexRange{First: 0, Last: -1}
	}
	first := sort.Search(len(bars), func(i int) bool { return bars[i].Timestamp >= timeStart })
	last := sort.Search(len(bars), func(i int) bool { return bars[i].Timestamp > timeEnd }) - 1
	return IndexRange{First: first, Last: last}
}

// Nearest returns the index of the bar closest in time to timeMs, for
// hit-testing hover and label placement. The price argument is part of
// the hit-test contract for future overlay disambiguation; candle series
// resolve on time alone. Returns -1 for an empty series.
func (h *SeriesHandle) Nearest(timeMs int64, price float64) int {
	_ = price
	snap := h.cur.Load()
	bars := snap.bars
	if len(bars) == 0 {
		return -1
	}
	i := sort.Search(len(bars), func(i int) bool { return bars[i].Timestamp >= timeMs })
	if i == 0 {
		return 0
	}
	if i == len(bars) {
		return len(bars) - 1
	}
	if bars[i].Timestamp-timeMs < timeMs-bars[i-1].Timestamp {
		return i
	}
	return i - 1
}

// Append extends the series with later bars and publishes a new snapshot.
// Readers observe either the pre-append or the post-append series, never a
// partially appended one. Only trailing derived caches are recomputed.
func (h *SeriesHandle) Append(bars []schema.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	old := h.cur.Load()
	lastTS := old.bars[len(old.bars)-1].Timestamp

	grown := make([]schema.Bar, len(old.bars), len(old.bars)+len(bars))
	copy(grown, old.bars)
	for i, b := range bars {
		if !b.Finite() {
			tmp := append(grown, b)
			clampBar(tmp, len(tmp)-1)
			b = tmp[len(tmp)-1]
		}
		if b.Timestamp < lastTS {
			if lastTS-b.Timestamp > backwardToleranceMs {
				return &chart_exceptions.DataError{
					Message: "appended bars are older than the series tail",
					Row:     int64(i),
				}
			}
			b.Timestamp = lastTS
		}
		lastTS = b.Timestamp
		grown = append(grown, b)
	}

	next := &snapshot{
		bars:       grown,
		flags:      deriveFlags(old.flags, grown),
		indicators: padIndicators(old.indicators, len(grown)),
	}
	next.priceMin, next.priceMax = old.priceMin, old.priceMax
	for _, b := range grown[len(old.bars):] {
		next.priceMin = math.Min(next.priceMin, b.Low)
		next.priceMax = math.Max(next.priceMax, b.High)
	}
	h.cur.Store(next)
	logrus.Debugf("series_store: appended %d bars, series now %d bars", len(bars), len(grown))
	return nil
}

// padIndicators carries existing indicator columns into a longer series,
// padding the new tail with NaN so column lengths keep matching bar count.
func padIndicators(old map[string][]float64, n int) map[string][]float64 {
	out := make(map[string][]float64, len(old))
	for name, vals := range old {
		padded := make([]float64, n)
		copy(padded, vals)
		for i := len(vals); i < n; i++ {
			padded[i] = math.NaN()
		}
		out[name] = padded
	}
	return out
}

// AttachIndicator adds a named parallel numeric column, validated for
// length match against the bar count. Attaching an existing name replaces
// the column.
func (h *SeriesHandle) AttachIndicator(name string, values []float64) error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	old := h.cur.Load()
	if len(values) != len(old.bars) {
		return &chart_exceptions.IndicatorError{
			Name:    name,
			Message: "length mismatch against bar count",
		}
	}
	owned := make([]float64, len(values))
	copy(owned, values)

	next := &snapshot{
		bars:       old.bars,
		flags:      old.flags,
		indicators: make(map[string][]float64, len(old.indicators)+1),
		priceMin:   old.priceMin,
		priceMax:   old.priceMax,
	}
	for k, v := range old.indicators {
		next.indicators[k] = v
	}
	next.indicators[name] = owned
	h.cur.Store(next)
	return nil
}

// IndicatorNames lists attached indicator columns in unspecified order.
func (h *SeriesHandle) IndicatorNames() []string {
	snap := h.cur.Load()
	names := make([]string, 0, len(snap.indicators))
	for name := range snap.indicators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Slice materializes a read-only view of the given index range, clamped to
// the series bounds. The view aliases the snapshot's backing arrays; since
// snapshots are immutable this is safe to hold for a frame.
func (h *SeriesHandle) Slice(r IndexRange) Slice {
	snap := h.cur.Load()
	first := r.First
	last := r.Last
	if first < 0 {
		first = 0
	}
	if last >= len(snap.bars) {
		last = len(snap.bars) - 1
	}
	if first > last {
		return Slice{FirstIndex: first}
	}
	inds := make(map[string][]float64, len(snap.indicators))
	for name, vals := range snap.indicators {
		inds[name] = vals[first : last+1]
	}
	return Slice{
		FirstIndex: first,
		Bars:       snap.bars[first : last+1],
		Flags:      snap.flags[first : last+1],
		Indicators: inds,
	}
}
