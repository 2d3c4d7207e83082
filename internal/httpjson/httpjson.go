// Package httpjson centralizes the HTTPResponse envelope writers shared by
// every handler.
package httpjson

import (
	"encoding/json"
	"net/http"

	"github.com/ndidit/notifyhub/internal/dtos"
)

func Write(w http.ResponseWriter, status int, resp *dtos.HTTPResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

func Success(w http.ResponseWriter, status int, data any, message string, meta *dtos.PaginationMeta) {
	Write(w, status, &dtos.HTTPResponse{Success: true, Data: data, Message: message, Meta: meta})
}

func Failed(w http.ResponseWriter, status int, errMsg, message string) {
	Write(w, status, &dtos.HTTPResponse{Success: false, Error: errMsg, Message: message})
}

// FailureStatus maps a dtos.Failure to its envelope + status code in one
// call, since every handler needs both.
func FailureStatus(w http.ResponseWriter, f *dtos.Failure) {
	Write(w, f.StatusCode(), &dtos.HTTPResponse{Success: false, Error: f.Code, Message: f.Detail})
}
