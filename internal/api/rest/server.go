package rest

import (
	"fmt"
	"net/http"
	"time"

	"github.com/davidleathers/vintage-vault-backend/internal/infrastructure/config"
)

// NewServer builds the HTTP server for handler. Websocket connections are
// not bound by WriteTimeout: the upgrader clears the deadlines and the hub
// sets its own per frame.
func NewServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    1 << 20,
	}
}
