package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/vinayprograms/codeagent/internal/logging"
)

// Journal runs named steps for one workflow run, memoizing their outputs.
//
// Step IDs are derived from the call order: the first step named "x" gets ID
// "x", the next "x:1", then "x:2". A resumed run that issues the same steps in
// the same order therefore sees the same IDs and replays stored outputs.
type Journal struct {
	store  *Store
	logger *logging.Logger

	mu     sync.Mutex
	counts map[string]int
	seq    int
}

// NewJournal creates a journal over store.
func NewJournal(store *Store, logger *logging.Logger) *Journal {
	if logger == nil {
		logger = logging.New()
	}
	return &Journal{
		store:  store,
		logger: logger.WithComponent("checkpoint"),
		counts: make(map[string]int),
	}
}

// Store returns the underlying store.
func (j *Journal) Store() *Store {
	return j.store
}

func (j *Journal) next(name string) (string, int) {
	j.mu.Lock()
	defer j.mu.Unlock()

	n := j.counts[name]
	j.counts[name] = n + 1
	j.seq++

	if n == 0 {
		return name, j.seq
	}
	return fmt.Sprintf("%s:%d", name, n), j.seq
}

// Do runs fn as the step name and decodes its output into dst (which may be nil).
// A completed step is not run again; its stored output is decoded instead.
// Errors from fn are returned and not stored, so the step runs again on retry.
func (j *Journal) Do(ctx context.Context, name string, dst interface{}, fn func(context.Context) (interface{}, error)) error {
	stepID, seq := j.next(name)

	if rec, ok := j.store.Get(stepID); ok {
		j.logger.StepReplayed(stepID)
		return decode(stepID, rec.Output, dst)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	j.logger.StepStart(stepID)
	start := time.Now()

	out, err := fn(ctx)
	if err != nil {
		j.logger.StepFailed(stepID, err)
		return fmt.Errorf("step %s: %w", stepID, err)
	}

	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("step %s: failed to encode output: %w", stepID, err)
	}

	rec := &Record{
		StepID:    stepID,
		Name:      name,
		Seq:       seq,
		Output:    data,
		Timestamp: time.Now(),
	}
	if err := j.store.Save(rec); err != nil {
		return err
	}

	j.logger.StepComplete(stepID, time.Since(start))
	return decode(stepID, data, dst)
}

// Run is the typed form of Journal.Do.
func Run[T any](ctx context.Context, j *Journal, name string, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := j.Do(ctx, name, &out, func(ctx context.Context) (interface{}, error) {
		return fn(ctx)
	})
	return out, err
}

func decode(stepID string, data json.RawMessage, dst interface{}) error {
	if dst == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("step %s: failed to decode output: %w", stepID, err)
	}
	return nil
}
