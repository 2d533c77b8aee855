package watch

import (
	"strings"
	"time"
)

// Ticker rotates through frames while the monitor is redrawing.
type Ticker struct {
	frames   []string
	index    int
	lastTick time.Time
}

func NewTicker() Ticker {
	return Ticker{
		frames:   []string{"◐", "◓", "◑", "◒"},
		lastTick: time.Now(),
	}
}

func (t *Ticker) Tick() {
	t.index = (t.index + 1) % len(t.frames)
	t.lastTick = time.Now()
}

func (t Ticker) Current() string {
	return t.frames[t.index]
}

const spinnerDots = 5

// Spinner lights up on each notice and fades over ten seconds.
type Spinner struct {
	dots      int
	lastEvent time.Time
}

func NewSpinner() Spinner {
	return Spinner{}
}

func (s *Spinner) OnEvent() {
	s.dots = spinnerDots
	s.lastEvent = time.Now()
}

// Decay drops one dot for every two seconds without a notice.
func (s *Spinner) Decay() {
	if s.dots == 0 {
		return
	}
	left := spinnerDots - int(time.Since(s.lastEvent)/(2*time.Second))
	s.dots = max(0, min(s.dots, left))
}

func (s Spinner) Render(theme Theme) string {
	var result strings.Builder
	for i := range spinnerDots {
		if i < s.dots {
			result.WriteString(theme.TickerActive.Render("●"))
		} else {
			result.WriteString(theme.TickerInactive.Render("○"))
		}
	}
	return result.String()
}

func (s Spinner) LastEvent() time.Time {
	return s.lastEvent
}
