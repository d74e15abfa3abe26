package transport

import (
	"log/slog"
	"net/http"

	"github.com/loomkit/loom/pkg/hostapp"
)

// Handler returns an http.Handler that upgrades incoming requests to a live
// WebSocket session bound to a freshly mounted App, mountable under a chi
// route by cmd/loom (spec domain stack: chi hosts loom's handler, it does
// not replace any of loom's own routing).
func Handler(factory func() (*hostapp.App, error), log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		app, err := factory()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		sess, err := NewSession(w, r, app, log)
		if err != nil {
			log.Error("loom: websocket upgrade failed", "error", err)
			return
		}
		sess.Serve()
	})
}
