package watcher

import (
	"os"
	"time"
)

// poller detects changes by comparing directory listings. It is the fallback
// when fsnotify cannot watch the directory.
type poller struct {
	dir     string
	accepts func(string) bool
	state   map[string]fileSnapshot
}

type fileSnapshot struct {
	modTime time.Time
	size    int64
}

func newPoller(dir string, accepts func(string) bool) *poller {
	return &poller{
		dir:     dir,
		accepts: accepts,
		state:   make(map[string]fileSnapshot),
	}
}

// prime records the current listing as the baseline. Files already present
// are not reported.
func (p *poller) prime() error {
	current, err := p.scan()
	if err != nil {
		return err
	}
	p.state = current
	return nil
}

// poll rescans the directory and returns the changes since the last scan.
func (p *poller) poll() ([]FileEvent, error) {
	current, err := p.scan()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var events []FileEvent
	for name, snap := range current {
		prev, seen := p.state[name]
		switch {
		case !seen:
			events = append(events, FileEvent{Path: name, Operation: OpCreate, Timestamp: now})
		case !prev.modTime.Equal(snap.modTime) || prev.size != snap.size:
			events = append(events, FileEvent{Path: name, Operation: OpModify, Timestamp: now})
		}
	}
	for name := range p.state {
		if _, ok := current[name]; !ok {
			events = append(events, FileEvent{Path: name, Operation: OpDelete, Timestamp: now})
		}
	}

	p.state = current
	return events, nil
}

// scan lists accepted regular files directly inside the directory.
func (p *poller) scan() (map[string]fileSnapshot, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, err
	}

	files := make(map[string]fileSnapshot, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !p.accepts(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files[entry.Name()] = fileSnapshot{modTime: info.ModTime(), size: info.Size()}
	}
	return files, nil
}
