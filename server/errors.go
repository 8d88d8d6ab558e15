package server

import (
	"encoding/json"
	"net/http"

	"github.com/deepractice/resourcex/internal/rxerr"
)

// writeError maps err to the §7 taxonomy's HTTP status and the §6
// {"error", "message"} envelope, the server-side half of the mapping
// client.decodeHTTPError reverses.
func writeError(w http.ResponseWriter, err error) {
	status, env := rxerr.HTTPStatus(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
