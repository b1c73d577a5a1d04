package server

import (
	"encoding/json"
	"log"
	"net/http"
)

// response is the envelope of every JSON reply.
type response struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	Details   any    `json:"details,omitempty"`
	ErrorKind string `json:"errorKind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Error writing response: %v", err)
	}
}

func writeSuccess(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusOK, response{Success: true, Message: message, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string, details any) {
	writeJSON(w, status, response{Success: false, Error: message, Details: details})
}
