// ABOUTME: Websocket endpoint that authenticates the upgrade and hands the socket to the hub
// ABOUTME: The token comes from the Authorization header or the ?token= query parameter

package gateway

import (
	"net/http"

	"github.com/coder/websocket"

	"github.com/2389/huddle-gateway/internal/auth"
)

func (g *Gateway) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	token, errMsg := auth.TokenFromRequest(r)
	if errMsg != "" {
		writeError(w, http.StatusUnauthorized, errMsg)
		return
	}
	user, err := g.auth.Authenticate(r.Context(), token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	opts := &websocket.AcceptOptions{}
	if origins := g.config.CORS.AllowedOrigins; len(origins) > 0 {
		opts.OriginPatterns = origins
	}
	ws, err := websocket.Accept(w, r, opts)
	if err != nil {
		// Accept has already written the error response.
		g.logger.Warn("websocket upgrade failed", "username", user.Username, "error", err)
		return
	}

	g.logger.Debug("websocket connected", "username", user.Username, "remote_addr", r.RemoteAddr)
	g.hub.Serve(r.Context(), ws, user.Username, g.dispatcher)
}
