package responder

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Response is the generated-answer record correlated one-to-one with a
// Speaker phrase. ResponseTime and ResponseText stay nil until the
// first answer byte arrives.
type Response struct {
	ID           string     `json:"response_id"`
	QuestionTime time.Time  `json:"question_time"`
	QuestionText string     `json:"question_text"`
	ResponseTime *time.Time `json:"response_time"`
	ResponseText *string    `json:"response_text"`
	IsComplete   bool       `json:"is_complete"`
}

// Answer returns the answer text, or "" when none has been written yet.
func (r *Response) Answer() string {
	if r.ResponseText == nil {
		return ""
	}
	return *r.ResponseText
}

// Registry maps response ids to Response records. All mutation happens
// under a single lock: writers include the generation loop and readers
// include the display feed, and no reader may observe a record
// mid-update.
type Registry struct {
	mu        sync.Mutex
	responses map[string]*Response
	latestID  string
	complete  chan struct{} // single-slot: a response became complete
	now       func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		responses: make(map[string]*Response),
		complete:  make(chan struct{}, 1),
		now:       time.Now,
	}
}

// Create allocates a new incomplete Response for a Speaker phrase and
// records it as the latest. Returns the generated id.
func (r *Registry) Create(questionTime time.Time, questionText string) string {
	id := uuid.New().String()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[id] = &Response{
		ID:           id,
		QuestionTime: questionTime,
		QuestionText: questionText,
	}
	r.latestID = id
	return id
}

// Update writes answer text into the response with the given id.
// Unknown ids are ignored and reported as false. The first update
// stamps ResponseTime. With incremental set, text is appended to the
// existing answer; otherwise it replaces it. When complete flips to
// true the complete-response signal is raised.
func (r *Registry) Update(id, text string, complete, incremental bool) bool {
	r.mu.Lock()
	resp, ok := r.responses[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	if resp.ResponseTime == nil {
		t := r.now()
		resp.ResponseTime = &t
	}
	if incremental && resp.ResponseText != nil {
		joined := *resp.ResponseText + text
		resp.ResponseText = &joined
	} else {
		t := text
		resp.ResponseText = &t
	}
	resp.IsComplete = complete
	r.mu.Unlock()

	if complete {
		select {
		case r.complete <- struct{}{}:
		default:
		}
	}
	return true
}

// Get returns a copy of the response with the given id.
func (r *Registry) Get(id string) (Response, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	resp, ok := r.responses[id]
	if !ok {
		return Response{}, false
	}
	return copyResponse(resp), true
}

// GetLatest returns a copy of the most recently created response.
func (r *Registry) GetLatest() (Response, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	resp, ok := r.responses[r.latestID]
	if !ok {
		return Response{}, false
	}
	return copyResponse(resp), true
}

// Snapshot returns copies of all responses, newest question first.
func (r *Registry) Snapshot() []Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Response, 0, len(r.responses))
	for _, resp := range r.responses {
		out = append(out, copyResponse(resp))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].QuestionTime.After(out[j].QuestionTime)
	})
	return out
}

// WaitForComplete blocks until a response is marked complete or the
// timeout elapses. Signals raised before the wait coalesce to one wake.
func (r *Registry) WaitForComplete(timeout time.Duration) bool {
	select {
	case <-r.complete:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Clear discards every response. Used only by a full context clear.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = make(map[string]*Response)
	r.latestID = ""
}

func copyResponse(r *Response) Response {
	out := *r
	if r.ResponseTime != nil {
		t := *r.ResponseTime
		out.ResponseTime = &t
	}
	if r.ResponseText != nil {
		s := *r.ResponseText
		out.ResponseText = &s
	}
	return out
}
