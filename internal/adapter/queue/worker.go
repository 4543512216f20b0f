package queue

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"remindbot/internal/schedule"
)

// Dispatcher is the routing entry point callbacks are handed to; satisfied
// by *schedule.Manager.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev schedule.Event) error
}

// Worker consumes scheduled events from the queue and feeds them into the
// dispatcher. The repeat of a recurring schedule is realized by the
// dispatcher, which enqueues the successor occurrence under a fresh id
// after each firing — the fired id cannot be reused while asynq still
// holds it as active.
type Worker struct {
	srv      *asynq.Server
	dispatch Dispatcher
	log      *slog.Logger
}

// NewWorker creates a worker over the same Redis as the adapter.
func NewWorker(redisOpt asynq.RedisClientOpt, q *AsynqQueue, d Dispatcher, concurrency int, log *slog.Logger) *Worker {
	if concurrency <= 0 {
		concurrency = 4
	}
	if log == nil {
		log = slog.Default()
	}
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{q.queue: 1},
	})
	return &Worker{srv: srv, dispatch: d, log: log}
}

// Start begins processing in the background.
func (w *Worker) Start() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeReminderEvent, w.handle)
	return w.srv.Start(mux)
}

// Shutdown waits for in-flight handlers and stops the server.
func (w *Worker) Shutdown() {
	w.srv.Shutdown()
}

func (w *Worker) handle(ctx context.Context, t *asynq.Task) error {
	var ev schedule.Event
	if err := json.Unmarshal(t.Payload(), &ev); err != nil {
		w.log.Error("undecodable scheduled event", "error", err)
		return nil // retrying cannot fix a broken payload
	}

	return w.dispatch.Dispatch(ctx, ev)
}
