package queue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Job is a single unit of background work. The payload is opaque to the
// queue; handlers decode it themselves.
type Job struct {
	ID         uuid.UUID       `json:"id"`
	Name       string          `json:"name"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Timeout    time.Duration   `json:"timeout"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// Codec encodes jobs for the broker wire format and back.
type Codec struct {
	Encode func(Job) ([]byte, error)
	Decode func([]byte) (Job, error)
}

// JSONCodec is the default codec.
var JSONCodec = Codec{
	Encode: func(job Job) ([]byte, error) {
		return json.Marshal(job)
	},
	Decode: func(data []byte) (Job, error) {
		var job Job
		err := json.Unmarshal(data, &job)
		return job, err
	},
}
