// Package sceneload loads scene files from disk and recompiles them when they
// change. A scene is only ever replaced by a complete, successfully compiled
// scene so renderers can keep drawing the last good scene while the file is
// being edited.
package sceneload

import (
	"fmt"
	"os"
	"time"

	"github.com/soypat/sdfwalk"
)

// DefaultRetryDelays are the waits between attempts at reading file metadata.
// Editors may replace files non-atomically so metadata reads can fail transiently.
var DefaultRetryDelays = []time.Duration{10 * time.Millisecond, 50 * time.Millisecond}

// Options configures scene loading.
type Options struct {
	Scene sdfwalk.Options
	// RetryDelays overrides [DefaultRetryDelays] when not nil. An empty
	// non-nil slice disables retries.
	RetryDelays []time.Duration
}

func (opts Options) retryDelays() []time.Duration {
	if opts.RetryDelays == nil {
		return DefaultRetryDelays
	}
	return opts.RetryDelays
}

// Load reads and compiles the scene file at path.
func Load(path string, opts Options) (*sdfwalk.SceneDesc, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sd, err := opts.Scene.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sd, nil
}

// LoadIfUpdated compiles the scene at path if it was modified after lastSeen.
// updated is false when the file is unchanged, in which case sd is nil and
// modTime equals lastSeen. When the file changed modTime is its new
// modification time, even if compilation failed and err is not nil.
func LoadIfUpdated(path string, lastSeen time.Time, opts Options) (sd *sdfwalk.SceneDesc, modTime time.Time, updated bool, err error) {
	modTime, err = modifiedAt(path, opts.retryDelays())
	if err != nil {
		return nil, lastSeen, false, err
	}
	if !modTime.After(lastSeen) {
		return nil, lastSeen, false, nil
	}
	sd, err = Load(path, opts)
	return sd, modTime, true, err
}

func modifiedAt(path string, delays []time.Duration) (time.Time, error) {
	info, err := os.Stat(path)
	for _, delay := range delays {
		if err == nil {
			break
		}
		time.Sleep(delay)
		info, err = os.Stat(path)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("reading scene metadata after %d attempts: %w", len(delays)+1, err)
	}
	return info.ModTime(), nil
}

// Loader keeps the last successfully compiled scene of a file. It is not safe
// for concurrent use.
type Loader struct {
	path     string
	opts     Options
	current  *sdfwalk.SceneDesc
	lastSeen time.Time
}

// NewLoader loads the scene at path. The initial load must succeed.
func NewLoader(path string, opts Options) (*Loader, error) {
	l := &Loader{path: path, opts: opts}
	sd, modTime, _, err := LoadIfUpdated(path, time.Time{}, opts)
	if err != nil {
		return nil, err
	}
	l.current = sd
	l.lastSeen = modTime
	return l, nil
}

// Path returns the scene file path.
func (l *Loader) Path() string { return l.path }

// Current returns the last successfully compiled scene. It is never nil.
func (l *Loader) Current() *sdfwalk.SceneDesc { return l.current }

// Reload recompiles the scene unconditionally. On failure the current scene is kept.
func (l *Loader) Reload() error {
	modTime, err := modifiedAt(l.path, l.opts.retryDelays())
	if err != nil {
		return err
	}
	l.lastSeen = modTime
	sd, err := Load(l.path, l.opts)
	if err != nil {
		return err
	}
	l.current = sd
	return nil
}

// Poll recompiles the scene if the file changed since it was last seen and
// reports whether the current scene was replaced. A failed compile keeps the
// current scene and is only reported once per file modification.
func (l *Loader) Poll() (replaced bool, err error) {
	sd, modTime, updated, err := LoadIfUpdated(l.path, l.lastSeen, l.opts)
	if !updated {
		return false, err
	}
	l.lastSeen = modTime
	if err != nil {
		return false, err
	}
	l.current = sd
	return true, nil
}
