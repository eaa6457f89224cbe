package httpserver

import (
	"net/http"
	"time"
)

// New builds the register's HTTP server. Lifecycle operations block on the
// database and the search index, so the write timeout leaves room for a
// slow publish.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
