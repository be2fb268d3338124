package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func event(path string, op Operation) FileEvent {
	return FileEvent{Path: path, Operation: op, Timestamp: time.Now()}
}

func waitBatch(t *testing.T, d *Debouncer) []FileEvent {
	t.Helper()
	select {
	case events := <-d.Output():
		return events
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for debounced batch")
		return nil
	}
}

func TestDebouncer_SingleEvent_PassesThrough(t *testing.T) {
	// Given: a debouncer with a short window
	d := NewDebouncer(30*time.Millisecond, nil)
	defer d.Stop()

	// When: one event is added
	d.Add(event("lease.pdf", OpCreate))

	// Then: it is emitted after the window
	events := waitBatch(t, d)
	require.Len(t, events, 1)
	assert.Equal(t, "lease.pdf", events[0].Path)
	assert.Equal(t, OpCreate, events[0].Operation)
}

func TestDebouncer_Coalescing(t *testing.T) {
	tests := []struct {
		name   string
		ops    []Operation
		want   Operation
		cancel bool
	}{
		{"repeated writes", []Operation{OpModify, OpModify, OpModify}, OpModify, false},
		{"create then write", []Operation{OpCreate, OpModify, OpModify}, OpCreate, false},
		{"modify then delete", []Operation{OpModify, OpDelete}, OpDelete, false},
		{"delete then create", []Operation{OpDelete, OpCreate}, OpModify, false},
		{"create then delete", []Operation{OpCreate, OpDelete}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: a debouncer and a control event for another file
			d := NewDebouncer(30*time.Millisecond, nil)
			defer d.Stop()
			d.Add(event("other.txt", OpCreate))

			// When: the sequence arrives for one file
			for _, op := range tt.ops {
				d.Add(event("doc.pdf", op))
			}

			// Then: it collapses to one event or none
			events := waitBatch(t, d)
			byPath := map[string]Operation{}
			for _, e := range events {
				byPath[e.Path] = e.Operation
			}
			assert.Contains(t, byPath, "other.txt")
			got, ok := byPath["doc.pdf"]
			if tt.cancel {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDebouncer_BatchSortedByPath(t *testing.T) {
	d := NewDebouncer(30*time.Millisecond, nil)
	defer d.Stop()

	d.Add(event("c.md", OpCreate))
	d.Add(event("a.pdf", OpModify))
	d.Add(event("b.txt", OpCreate))

	events := waitBatch(t, d)
	require.Len(t, events, 3)
	assert.Equal(t, "a.pdf", events[0].Path)
	assert.Equal(t, "b.txt", events[1].Path)
	assert.Equal(t, "c.md", events[2].Path)
}

func TestDebouncer_WindowRestartsOnActivity(t *testing.T) {
	// Given: a debouncer with a 100ms window
	d := NewDebouncer(100*time.Millisecond, nil)
	defer d.Stop()

	// When: writes keep arriving faster than the window
	start := time.Now()
	for i := 0; i < 4; i++ {
		d.Add(event("copying.pdf", OpModify))
		time.Sleep(40 * time.Millisecond)
	}

	// Then: a single batch arrives only after the writes stop
	events := waitBatch(t, d)
	require.Len(t, events, 1)
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}

func TestDebouncer_Stop_ClosesOutput(t *testing.T) {
	// Given: a debouncer with a pending event
	d := NewDebouncer(time.Hour, nil)
	d.Add(event("pending.pdf", OpCreate))

	// When: stopped twice
	d.Stop()
	d.Stop()

	// Then: the output is closed without emitting, and later adds are ignored
	_, ok := <-d.Output()
	assert.False(t, ok)
	d.Add(event("late.pdf", OpCreate))
}
