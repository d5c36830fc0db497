package util

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// LogProgressFunc adds to the progress. It can be called concurrently;
// negative values are ignored.
type LogProgressFunc func(addProgress int)

type LogProgressConfig struct {
	// Message prefixes every progress line.
	Message string
	// Total is the progress reached when the work is done.
	Total int
	// Ticks is the number of progress lines, including the one at 0.
	Ticks int
}

// DefaultLogProgressConfig logs every 10%.
func DefaultLogProgressConfig(message string, total int) LogProgressConfig {
	return LogProgressConfig{
		Message: message,
		Total:   total,
		Ticks:   11,
	}
}

// LogProgress logs the progress at 0% and then once per increment reached.
func LogProgress(log zerolog.Logger, config LogProgressConfig) LogProgressFunc {
	start := time.Now()
	total := uint64(config.Total)

	var mu sync.Mutex
	logProgress := func(current uint64) {
		mu.Lock()
		defer mu.Unlock()

		percentage := float64(100)
		if total > 0 {
			percentage = float64(current) / float64(total) * 100
		}
		log.Info().
			Uint64("current", current).
			Uint64("total", total).
			Dur("elapsed", time.Since(start).Round(time.Millisecond)).
			Msgf("%s progress %.1f%%", config.Message, percentage)
	}

	logProgress(0)

	ticks := uint64(config.Ticks)
	if ticks < 2 {
		ticks = 2
	}
	increment := total / (ticks - 1)
	if increment == 0 {
		increment = 1
	}
	// the last increment is stretched so that the final line reports Total
	overflow := total % increment

	var current atomic.Uint64
	return func(add int) {
		if add <= 0 {
			return
		}
		diff := uint64(add)
		now := current.Add(diff)

		from := (now - diff - overflow) / increment
		to := (now - overflow) / increment
		if now-diff < overflow {
			from = 0
		}
		if now < overflow {
			to = 0
		}
		for tick := from; tick < to; tick++ {
			logProgress(increment*(tick+1) + overflow)
		}
	}
}
