package assistant

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/mohammad-safakhou/converse/internal/search"
	"github.com/mohammad-safakhou/converse/internal/session"
	"github.com/mohammad-safakhou/converse/internal/telemetry"
	"github.com/mohammad-safakhou/converse/internal/utility"
	"github.com/mohammad-safakhou/converse/models"
)

// Assistant dispatches each user turn down the cheapest path that can answer
// it: the deterministic engine first, then the utility router, then the full
// search pipeline. Turns for the same conversation run one at a time.
type Assistant struct {
	handler  *utility.Handler
	orch     *search.Orchestrator
	sessions session.Store
	tele     *telemetry.Telemetry
	logger   *log.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(handler *utility.Handler, orch *search.Orchestrator, sessions session.Store, tele *telemetry.Telemetry, logger *log.Logger) *Assistant {
	if logger == nil {
		logger = log.New(log.Writer(), "[ASSISTANT] ", log.LstdFlags)
	}
	return &Assistant{
		handler:  handler,
		orch:     orch,
		sessions: sessions,
		tele:     tele,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
	}
}

// HandleTurn produces the response for one user message. It never returns an
// error: every failure path inside terminates in a textual response.
func (a *Assistant) HandleTurn(ctx context.Context, conversationID, text string) models.AgentResponse {
	lock := a.conversationLock(conversationID)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()

	if res, ok := utility.TryMatch(text); ok {
		a.logger.Printf("conv=%s engine category=%s", conversationID, res.Category)
		a.record(telemetry.PathEngine, start)
		return models.AgentResponse{Text: res.Answer, CreatedAt: time.Now()}
	}

	if res, ok := utility.Route(text); ok {
		if answer, done := a.handler.Execute(ctx, res); done {
			a.logger.Printf("conv=%s utility category=%s", conversationID, res.Category)
			a.record(telemetry.PathUtility, start)
			return models.AgentResponse{Text: answer, CreatedAt: time.Now()}
		}
		// Tool execution failed; the general pipeline gets a chance.
		if a.tele != nil {
			a.tele.RecordFallback("utility")
		}
	}

	resp := a.orch.Respond(ctx, conversationID, text)
	a.record(telemetry.PathSearch, start)
	if resp.UsedFallback && a.tele != nil {
		a.tele.RecordFallback("search")
	}
	return resp
}

// Reset clears the conversation's search session and drops its lock entry,
// so the locks map only grows with conversations that were never reset. A
// turn already holding the old lock may overlap the first post-reset turn.
func (a *Assistant) Reset(ctx context.Context, conversationID string) error {
	lock := a.conversationLock(conversationID)
	lock.Lock()
	defer lock.Unlock()

	a.mu.Lock()
	delete(a.locks, conversationID)
	a.mu.Unlock()

	return a.sessions.Reset(ctx, conversationID)
}

func (a *Assistant) conversationLock(conversationID string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	lock, ok := a.locks[conversationID]
	if !ok {
		lock = &sync.Mutex{}
		a.locks[conversationID] = lock
	}
	return lock
}

func (a *Assistant) record(path string, start time.Time) {
	if a.tele != nil {
		a.tele.RecordTurn(path, time.Since(start))
	}
}
