package merger

import "time"

// nowMS stamps processed_time in epoch milliseconds, matching the
// trade_time/event_time units carried on every venue event.
func nowMS() int64 {
	return time.Now().UnixMilli()
}
