package server

import (
	"errors"
	"net/http"

	"songbook/core/player"
	"songbook/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Same-origin is not enforced; the API is already CORS-open.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// playerCommand is one client message on the playback session.
type playerCommand struct {
	Action   string  `json:"action"`
	URL      string  `json:"url,omitempty"`
	FileName string  `json:"fileName,omitempty"`
	Duration float64 `json:"duration,omitempty"`
	Position float64 `json:"position,omitempty"`
	Seconds  float64 `json:"seconds,omitempty"`
	Start    float64 `json:"start,omitempty"`
	End      float64 `json:"end,omitempty"`
	Message  string  `json:"message,omitempty"`
}

// playerReply carries the engine snapshot after every command, plus an
// inline message when the command itself was rejected.
type playerReply struct {
	Snapshot player.Snapshot `json:"snapshot"`
	Rejected string          `json:"rejected,omitempty"`
}

// PlayerSessionHandler handles GET /api/player/ws: a websocket playback
// session. The client drives the engine (including media clock ticks) and
// observes state after every command.
func (h *APIHandler) PlayerSessionHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", logger.ErrorField(err))
		return
	}

	sessionID := uuid.NewString()
	engine := h.players.Open(sessionID)
	logger.Info("player session opened", logger.String("session", sessionID))

	defer func() {
		h.players.Close(sessionID)
		conn.Close()
		logger.Info("player session closed", logger.String("session", sessionID))
	}()

	for {
		var cmd playerCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("player session read error", logger.ErrorField(err))
			}
			return
		}

		reply := playerReply{}
		if err := applyCommand(engine, cmd); err != nil {
			reply.Rejected = err.Error()
		}
		reply.Snapshot = engine.Snapshot()

		if err := conn.WriteJSON(reply); err != nil {
			logger.Warn("player session write error", logger.ErrorField(err))
			return
		}
	}
}

func applyCommand(engine *player.Engine, cmd playerCommand) error {
	switch cmd.Action {
	case "load":
		engine.Load(cmd.URL, cmd.FileName)
		return nil
	case "ready":
		return engine.SourceReady(cmd.Duration)
	case "fail":
		engine.SourceFailed(errors.New(cmd.Message))
		return nil
	case "play":
		engine.Play()
		return nil
	case "pause":
		engine.Pause()
		return nil
	case "seek":
		engine.Seek(cmd.Position)
		return nil
	case "skipForward":
		engine.SkipForward()
		return nil
	case "skipBackward":
		engine.SkipBackward()
		return nil
	case "skip":
		engine.SkipBy(cmd.Seconds)
		return nil
	case "region":
		return engine.SetLoopRegion(cmd.Start, cmd.End)
	case "markA":
		return engine.MarkA()
	case "markB":
		return engine.MarkB()
	case "clearLoop":
		engine.ClearLoop()
		return nil
	case "tick":
		engine.Advance(cmd.Position)
		return nil
	default:
		return errors.New("unknown action: " + cmd.Action)
	}
}
