package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"emirates-passport/internal/notify"
)

// eventBuffer is how many events a slow stream may fall behind before events are dropped.
const eventBuffer = 16

type sseEvent struct {
	name string
	data []byte
}

type pointsEvent struct {
	Balance int64 `json:"balance"`
}

// Events streams the stamps-changed and points-changed events of one user
// as server-sent events until the client goes away.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	user, _ := UserKeyFromContext(r.Context())

	events := make(chan sseEvent, eventBuffer)
	push := func(name string, payload any) {
		data, err := json.Marshal(payload)
		if err != nil {
			log.Error().Err(err).Str("event", name).Msg("Failed to encode event")
			return
		}
		// Publishing happens on the ledger caller's goroutine and must not block.
		select {
		case events <- sseEvent{name: name, data: data}:
		default:
			log.Warn().Str("user_key", user.String()).Str("event", name).Msg("Event stream full, dropping event")
		}
	}

	unsubStamps := h.notifier.OnStampsChanged(func(e notify.StampsChanged) {
		if e.UserKey == user {
			push(notify.TopicStampsChanged, toStampBookResponse(e.Stamps))
		}
	})
	defer unsubStamps()
	unsubPoints := h.notifier.OnPointsChanged(func(e notify.PointsChanged) {
		if e.UserKey == user {
			push(notify.TopicPointsChanged, pointsEvent{Balance: e.Balance})
		}
	})
	defer unsubPoints()

	rc := http.NewResponseController(w)
	// Streams outlive the server write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	if err := rc.Flush(); err != nil {
		log.Debug().Err(err).Msg("Event stream cannot flush")
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case e := <-events:
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.name, e.data); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
