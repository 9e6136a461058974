// ABOUTME: Transient user notifications: desktop toasts, log lines and a test recorder.
// ABOUTME: Every notifier satisfies reconcile.Notifier.

package notify

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/gen2brain/beeep"
)

const iconHashKey = "icon_hash"

//go:embed icon.png
var IconPNG []byte

// Notifier shows a short message to the user
type Notifier interface {
	Notify(message string)
}

// ConfigStore persists the hash of the icon written to disk
type ConfigStore interface {
	GetConfig(key string) (string, error)
	SetConfig(key, value string) error
}

// IconPath writes the embedded icon into dataDir when it is missing or was
// changed since the last write, and returns its path
func IconPath(dataDir string, store ConfigStore) (string, error) {
	iconPath := filepath.Join(dataDir, "icon.png")
	sum := sha256.Sum256(IconPNG)
	embeddedHash := hex.EncodeToString(sum[:])

	storedHash, _ := store.GetConfig(iconHashKey)
	_, statErr := os.Stat(iconPath)
	if statErr == nil && storedHash == embeddedHash {
		return iconPath, nil
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return "", err
	}
	if err := os.WriteFile(iconPath, IconPNG, 0644); err != nil {
		return "", err
	}
	_ = store.SetConfig(iconHashKey, embeddedHash)
	return iconPath, nil
}

// Desktop shows notifications as OS toasts
type Desktop struct {
	title  string
	icon   string
	logger *log.Logger
	send   func(title, message, icon string) error
}

// NewDesktop creates a desktop notifier. icon may be empty.
func NewDesktop(title, icon string) *Desktop {
	return &Desktop{
		title: title,
		icon:  icon,
		send: func(title, message, icon string) error {
			return beeep.Notify(title, message, icon)
		},
	}
}

// SetLogger sets a logger for delivery failures
func (d *Desktop) SetLogger(logger *log.Logger) {
	d.logger = logger
}

// Notify implements Notifier
func (d *Desktop) Notify(message string) {
	d.Show(d.title, message)
}

// Show displays a toast with its own title
func (d *Desktop) Show(title, message string) {
	if err := d.send(title, message, d.icon); err != nil && d.logger != nil {
		d.logger.Printf("Desktop notification failed: %v", err)
	}
}

// Log writes notifications to a logger
type Log struct {
	logger *log.Logger
}

// NewLog creates a notifier that prints to logger
func NewLog(logger *log.Logger) *Log {
	return &Log{logger: logger}
}

// Notify implements Notifier
func (l *Log) Notify(message string) {
	if l.logger != nil {
		l.logger.Printf("! %s", message)
	}
}

// Fanout delivers each message to every notifier
type Fanout []Notifier

// Notify implements Notifier
func (f Fanout) Notify(message string) {
	for _, n := range f {
		if n != nil {
			n.Notify(message)
		}
	}
}

// Recorder keeps every message, for tests
type Recorder struct {
	mu       sync.Mutex
	messages []string
}

// Notify implements Notifier
func (r *Recorder) Notify(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
}

// Messages returns a copy of everything recorded so far
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}
