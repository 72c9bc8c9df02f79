package supervisor

import (
	"log/slog"
	"maps"
	"runtime"
	"slices"
	"sync"
	"time"
)

// Watchdog is a hardware watchdog that must be fed periodically.
type Watchdog interface {
	Feed()
}

// ErrorInfo aggregates the occurrences of one error tag.
type ErrorInfo struct {
	Count    int       `json:"count"`
	LastSeen time.Time `json:"lastSeen"`
}

// Status is a point-in-time copy of the supervisor state.
type Status struct {
	StartedAt      time.Time            `json:"startedAt"`
	Uptime         time.Duration        `json:"uptime"`
	Processing     []string             `json:"processing"`
	Errors         map[string]ErrorInfo `json:"errors"`
	WatchdogFeeds  uint64               `json:"watchdogFeeds"`
	LastWatchdog   time.Time            `json:"lastWatchdog"`
	Goroutines     int                  `json:"goroutines"`
	HeapAllocBytes uint64               `json:"heapAllocBytes"`
}

// Options configures a Supervisor.
type Options struct {
	// Watchdog receives every feed. Optional.
	Watchdog Watchdog
	// OnError is called after an error tag was recorded. Optional.
	OnError func(tag string)
	// Now defaults to time.Now.
	Now func() time.Time
}

// Supervisor collects processing indicators, error tags and watchdog feeds of the device.
type Supervisor struct {
	l    *slog.Logger
	opts Options

	mu           sync.Mutex
	startedAt    time.Time
	processing   map[string]int
	errors       map[string]ErrorInfo
	feeds        uint64
	lastWatchdog time.Time
}

// New creates a Supervisor.
func New(l *slog.Logger, opts Options) *Supervisor {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Supervisor{
		l:          l.With(slog.String("component", "supervisor")),
		opts:       opts,
		startedAt:  opts.Now(),
		processing: make(map[string]int),
		errors:     make(map[string]ErrorInfo),
	}
}

// StartProcessing marks tag as busy. Calls nest.
func (s *Supervisor) StartProcessing(tag string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.processing[tag]++
}

// StopProcessing releases one StartProcessing of tag.
func (s *Supervisor) StopProcessing(tag string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.processing[tag] <= 1 {
		delete(s.processing, tag)
		return
	}

	s.processing[tag]--
}

// AddError records an occurrence of the error tag.
func (s *Supervisor) AddError(tag string) {
	s.mu.Lock()
	info := s.errors[tag]
	info.Count++
	info.LastSeen = s.opts.Now()
	s.errors[tag] = info
	s.mu.Unlock()

	s.l.Warn("error reported", slog.String("tag", tag), slog.Int("count", info.Count))

	if s.opts.OnError != nil {
		s.opts.OnError(tag)
	}
}

// ClearErrors forgets the given tags, or all tags when none are given.
func (s *Supervisor) ClearErrors(tags ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(tags) == 0 {
		clear(s.errors)
		return
	}

	for _, tag := range tags {
		delete(s.errors, tag)
	}
}

// FeedWatchdog records a feed and forwards it to the hardware watchdog.
func (s *Supervisor) FeedWatchdog() {
	s.mu.Lock()
	s.feeds++
	s.lastWatchdog = s.opts.Now()
	s.mu.Unlock()

	if s.opts.Watchdog != nil {
		s.opts.Watchdog.Feed()
	}
}

// Processing reports whether tag is currently busy.
func (s *Supervisor) Processing(tag string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.processing[tag] > 0
}

// Status returns a copy of the supervisor state.
func (s *Supervisor) Status() Status {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	s.mu.Lock()
	defer s.mu.Unlock()

	return Status{
		StartedAt:      s.startedAt,
		Uptime:         s.opts.Now().Sub(s.startedAt),
		Processing:     slices.Sorted(maps.Keys(s.processing)),
		Errors:         maps.Clone(s.errors),
		WatchdogFeeds:  s.feeds,
		LastWatchdog:   s.lastWatchdog,
		Goroutines:     runtime.NumGoroutine(),
		HeapAllocBytes: mem.HeapAlloc,
	}
}
