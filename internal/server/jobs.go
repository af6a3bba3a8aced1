package server

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/hazetools/dehaze/internal/dcp"
)

// Event is one message on a job's SSE stream.
type Event struct {
	Type    string `json:"type"`
	Stage   string `json:"stage,omitempty"`
	Message string `json:"message,omitempty"`

	// Name identifies an artifact ("dark_channel", "dehazed_guided_filter")
	// or the batch run ("run_001") the event belongs to.
	Name string `json:"name,omitempty"`

	// Image holds a base64 PNG data URI for artifact-bearing events.
	Image string `json:"image,omitempty"`
}

const (
	eventLog          = "log"
	eventIntermediate = "result_intermediate"
	eventRunResult    = "run_result"
	eventDone         = "done"
	eventError        = "error"
)

// terminal reports whether the event ends its job's stream.
func (e Event) terminal() bool {
	return e.Type == eventDone || e.Type == eventError
}

// job is one background pipeline run with its event history.
//
// Events are kept for the job's lifetime so that a subscriber connecting
// mid-run (or after completion) replays the full stream.
type job struct {
	id string

	mu      sync.Mutex
	history []Event
	closed  bool
	subs    []chan Event
}

// publish appends an event and fans it out to live subscribers. Publishing
// a terminal event closes the stream; later publishes are dropped.
func (j *job) publish(e Event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return
	}
	j.history = append(j.history, e)
	for _, ch := range j.subs {
		// A subscriber that stops draining loses live events but still
		// has the full history on reconnect.
		select {
		case ch <- e:
		default:
		}
	}
	if e.terminal() {
		j.closed = true
		for _, ch := range j.subs {
			close(ch)
		}
		j.subs = nil
	}
}

// subscribe returns the events published so far and a channel carrying the
// rest. The channel is closed after the terminal event; for a finished job
// it is closed immediately and the history holds everything.
func (j *job) subscribe() ([]Event, <-chan Event) {
	j.mu.Lock()
	defer j.mu.Unlock()

	snapshot := make([]Event, len(j.history))
	copy(snapshot, j.history)

	ch := make(chan Event, 256)
	if j.closed {
		close(ch)
		return snapshot, ch
	}
	j.subs = append(j.subs, ch)
	return snapshot, ch
}

// registry tracks jobs by ID.
type registry struct {
	mu   sync.RWMutex
	jobs map[string]*job
}

func newRegistry() *registry {
	return &registry{jobs: make(map[string]*job)}
}

// create registers a new job under a random 32-character hex ID.
func (r *registry) create() (*job, error) {
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return nil, fmt.Errorf("failed to generate job ID: %w", err)
	}
	j := &job{id: hex.EncodeToString(raw[:])}

	r.mu.Lock()
	r.jobs[j.id] = j
	r.mu.Unlock()
	return j, nil
}

// get looks up a job by ID.
func (r *registry) get(id string) (*job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	return j, ok
}

// jobSink adapts a job's event stream to the pipeline's Sink interface.
// Artifact images are encoded by the encode callback so the sink itself
// stays free of imaging dependencies.
type jobSink struct {
	job    *job
	encode func(a dcp.Artifact) (string, error)
}

func (s *jobSink) Progress(stage, message string) {
	s.job.publish(Event{Type: eventLog, Stage: stage, Message: message})
}

func (s *jobSink) Artifact(stage, message string, a dcp.Artifact) {
	uri, err := s.encode(a)
	if err != nil {
		s.job.publish(Event{Type: eventLog, Stage: stage,
			Message: fmt.Sprintf("Warning: failed to encode artifact %s: %v", a.Name, err)})
		return
	}
	s.job.publish(Event{Type: eventIntermediate, Stage: stage, Message: message,
		Name: a.Name, Image: uri})
}
