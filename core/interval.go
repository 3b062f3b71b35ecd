package core

import (
	"fmt"
	"time"
)

// Interval is the fixed accounting interval all windows are aligned to
const Interval = 15 * time.Minute

// Window is a single quarter-hour accounting interval, left-closed right-open.
// Boundaries sit on the wall-clock minutes 0, 15, 30 and 45 of the window's
// location; the duration is a fixed 15 minutes of absolute time.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) String() string {
	return fmt.Sprintf("%s..%s", w.Start.Format("15:04"), w.End.Format("15:04"))
}

// Contains reports whether ts falls into the window
func (w Window) Contains(ts time.Time) bool {
	return !ts.Before(w.Start) && ts.Before(w.End)
}

// windowOf returns the accounting window containing ts. Alignment follows the
// wall clock of loc, so boundaries stay on quarter hours across DST changes.
func windowOf(ts time.Time, loc *time.Location) Window {
	t := ts.In(loc)
	start := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute()-t.Minute()%15, 0, 0, loc)
	return Window{Start: start, End: start.Add(Interval)}
}

// sameWindow reports whether both timestamps fall into the same window
func sameWindow(a, b time.Time, loc *time.Location) bool {
	return windowOf(a, loc).Start.Equal(windowOf(b, loc).Start)
}
