package gameserver

import (
	"encoding/json"
	"fmt"
)

// Admin is the operator surface behind the server console.
type Admin struct {
	srv *Server
}

// NewAdmin wraps a server for operator commands.
func NewAdmin(srv *Server) *Admin { return &Admin{srv: srv} }

// StartMatch launches a match if enough players are connected.
func (a *Admin) StartMatch() error {
	return a.srv.Engine().Start()
}

// StopMatch aborts the current match and returns the server to waiting.
func (a *Admin) StopMatch() {
	a.srv.Engine().Stop()
}

// Status renders the current match state as indented JSON.
func (a *Admin) Status() (string, error) {
	snap := a.srv.Engine().Status()
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("rendering status: %w", err)
	}
	return string(data), nil
}
