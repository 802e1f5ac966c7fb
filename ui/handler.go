package ui

import (
	"net/http"
)

// Handler serves the single-page UI. Unknown paths fall through to the
// file server's 404.
func Handler() http.Handler {
	return http.FileServerFS(DistFS())
}
