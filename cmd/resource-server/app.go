package main

import (
	"encoding/json"
	"net/http"

	"github.com/ggoodman/realm-resource-server/authority"
	"github.com/ggoodman/realm-resource-server/resourceserver"
)

type whoamiResponse struct {
	Path        string   `json:"path"`
	Subject     string   `json:"sub"`
	Authorities []string `json:"authorities"`
	Admin       bool     `json:"admin"`
}

// newApp is the application behind the filter chain. Both routes echo the
// caller; access control has already happened by the time they run.
func newApp() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /admin/", writeWhoami)
	mux.HandleFunc("GET /", writeWhoami)
	return mux
}

func writeWhoami(w http.ResponseWriter, r *http.Request) {
	resp := whoamiResponse{Path: r.URL.Path, Authorities: []string{}}
	if ui, ok := resourceserver.PrincipalFrom(r.Context()); ok {
		granted := authority.Set(ui.Authorities())
		resp.Subject = ui.UserID()
		resp.Authorities = granted
		resp.Admin = granted.HasRole("admin")
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
