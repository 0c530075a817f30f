package ui

import (
	"fmt"
	"io"
	"sync"
)

// Notifier surfaces the outcome of wallet and token operations to the user.
// Loading opens a pending notification under id; Resolve replaces it.
type Notifier interface {
	Success(msg string)
	Error(msg string)
	Loading(id, msg string)
	Resolve(id string, ok bool, msg string)
}

// Discard is a Notifier that drops everything.
var Discard Notifier = discard{}

type discard struct{}

func (discard) Success(string)               {}
func (discard) Error(string)                 {}
func (discard) Loading(string, string)       {}
func (discard) Resolve(string, bool, string) {}

// ---------------------------------------------------------------------------
// Terminal
// ---------------------------------------------------------------------------

// Terminal prints notifications as styled lines. With animate set, a loading
// notification runs a Spinner until it is resolved.
type Terminal struct {
	mu      sync.Mutex
	w       io.Writer
	animate bool
	loading map[string]*Spinner
}

// NewTerminal creates a terminal notifier writing to w.
func NewTerminal(w io.Writer, animate bool) *Terminal {
	return &Terminal{w: w, animate: animate, loading: make(map[string]*Spinner)}
}

func (t *Terminal) Success(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.w, Success(msg))
}

func (t *Terminal) Error(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.w, Err(msg))
}

func (t *Terminal) Loading(id, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked(id)
	if !t.animate {
		fmt.Fprintln(t.w, Info(msg))
		return
	}
	sp := NewSpinner(t.w, msg)
	sp.Start()
	t.loading[id] = sp
}

func (t *Terminal) Resolve(id string, ok bool, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked(id)
	if ok {
		fmt.Fprintln(t.w, Success(msg))
	} else {
		fmt.Fprintln(t.w, Err(msg))
	}
}

// Close stops any spinner still running.
func (t *Terminal) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id := range t.loading {
		t.stopLocked(id)
	}
}

func (t *Terminal) stopLocked(id string) {
	if sp, ok := t.loading[id]; ok {
		sp.Stop()
		delete(t.loading, id)
	}
}

// ---------------------------------------------------------------------------
// Recorder
// ---------------------------------------------------------------------------

// Notification levels recorded by Recorder.
const (
	LevelSuccess = "success"
	LevelError   = "error"
	LevelLoading = "loading"
)

// Note is one recorded notification.
type Note struct {
	Level string
	ID    string
	Msg   string
}

// Recorder keeps notifications in memory. It backs --quiet and tests.
type Recorder struct {
	mu    sync.Mutex
	notes []Note
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Success(msg string) { r.add(Note{Level: LevelSuccess, Msg: msg}) }

func (r *Recorder) Error(msg string) { r.add(Note{Level: LevelError, Msg: msg}) }

func (r *Recorder) Loading(id, msg string) { r.add(Note{Level: LevelLoading, ID: id, Msg: msg}) }

func (r *Recorder) Resolve(id string, ok bool, msg string) {
	level := LevelError
	if ok {
		level = LevelSuccess
	}
	r.add(Note{Level: level, ID: id, Msg: msg})
}

func (r *Recorder) add(n Note) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

// Notes returns a copy of everything recorded so far.
func (r *Recorder) Notes() []Note {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Note(nil), r.notes...)
}

// Messages returns the messages recorded at level, in order.
func (r *Recorder) Messages(level string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.notes {
		if n.Level == level {
			out = append(out, n.Msg)
		}
	}
	return out
}

// Last returns the most recent notification.
func (r *Recorder) Last() (Note, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notes) == 0 {
		return Note{}, false
	}
	return r.notes[len(r.notes)-1], true
}

// Reset forgets everything recorded.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = nil
}
