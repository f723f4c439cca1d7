// Package notify is the user-visible notice channel.
package notify

import (
	"log"
	"sync"
)

// Icon classifies a toast.
type Icon string

const (
	IconInfo      Icon = "info"
	IconImportant Icon = "important"
)

// Toast is one notice.
type Toast struct {
	Text    string
	Icon    Icon
	Sticky  bool
	Title   string
	Persist bool
}

// Notifier shows notices. Calls are fire and forget.
type Notifier interface {
	ShowToast(text string, icon Icon, sticky bool, title string, persist bool)
}

// Log writes toasts to the standard logger. Persistent toasts are also kept
// so the settings panel can show them until dismissed.
type Log struct {
	mu        sync.Mutex
	persisted []Toast
}

func NewLog() *Log { return &Log{} }

func (l *Log) ShowToast(text string, icon Icon, sticky bool, title string, persist bool) {
	if title != "" {
		log.Printf("[%s] %s: %s", icon, title, text)
	} else {
		log.Printf("[%s] %s", icon, text)
	}
	if persist {
		l.mu.Lock()
		l.persisted = append(l.persisted, Toast{Text: text, Icon: icon, Sticky: sticky, Title: title, Persist: persist})
		l.mu.Unlock()
	}
}

// Persisted returns the persistent toasts shown so far.
func (l *Log) Persisted() []Toast {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Toast(nil), l.persisted...)
}

// Dismiss forgets all persistent toasts.
func (l *Log) Dismiss() {
	l.mu.Lock()
	l.persisted = nil
	l.mu.Unlock()
}

// Recorder keeps every toast in memory.
type Recorder struct {
	mu     sync.Mutex
	toasts []Toast
}

func (r *Recorder) ShowToast(text string, icon Icon, sticky bool, title string, persist bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, Toast{Text: text, Icon: icon, Sticky: sticky, Title: title, Persist: persist})
}

// Toasts returns a copy of everything shown.
func (r *Recorder) Toasts() []Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Toast(nil), r.toasts...)
}
