package engine

import (
	"log/slog"
	"time"

	"agri-compath/internal/database"
	"agri-compath/internal/engine/actors"
	"agri-compath/internal/feed"
	"agri-compath/internal/models"
	"agri-compath/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
)

// Engine spawns and stops community view actors.
type Engine struct {
	system  *actor.ActorSystem
	fetcher *feed.Fetcher
	source  database.InsertSource
	metrics *utils.MetricsCollector
	logger  *slog.Logger
}

func NewEngine(
	system *actor.ActorSystem,
	fetcher *feed.Fetcher,
	source database.InsertSource,
	metrics *utils.MetricsCollector,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		system:  system,
		fetcher: fetcher,
		source:  source,
		metrics: metrics,
		logger:  logger,
	}
}

// OpenView starts a live view of a community for session. Every update is
// handed to publisher until the view is closed with CloseView.
func (e *Engine) OpenView(session models.Session, communityID int64, publisher actors.Publisher) *actor.PID {
	props := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewCommunityViewActor(
			session,
			communityID,
			e.system.Root,
			e.fetcher,
			e.source,
			publisher,
			e.metrics,
			e.logger,
		)
	})
	return e.system.Root.Spawn(props)
}

// CloseView stops a view and waits until its subscriptions are released.
func (e *Engine) CloseView(pid *actor.PID) {
	if err := e.system.Root.StopFuture(pid).Wait(); err != nil {
		e.logger.Warn("timed out stopping community view", "pid", pid.String(), "error", err)
	}
}

// Send delivers a message to a view without waiting for an answer.
func (e *Engine) Send(pid *actor.PID, message interface{}) {
	e.system.Root.Send(pid, message)
}

// Request asks a view and waits for its answer. An AppError answer is
// returned as the error.
func (e *Engine) Request(pid *actor.PID, message interface{}, timeout time.Duration) (interface{}, error) {
	result, err := e.system.Root.RequestFuture(pid, message, timeout).Result()
	if err != nil {
		return nil, utils.NewActorTimeoutError("community view")
	}
	if appErr, ok := result.(*utils.AppError); ok {
		return nil, appErr
	}
	return result, nil
}
