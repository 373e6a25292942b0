package httpapi

import (
	"github.com/roach88/strata/internal/ir"
	"github.com/roach88/strata/internal/projection"
)

// Status is the envelope status of every response.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Response is the standard API response envelope.
type Response struct {
	Status Status     `json:"status"`
	Data   any        `json:"data,omitempty"`
	Error  *ErrorBody `json:"error,omitempty"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// EntityView is the wire form of a projected entity.
type EntityView struct {
	Domain  string    `json:"domain"`
	Key     string    `json:"key"`
	Owner   string    `json:"owner"`
	Tip     ir.Record `json:"tip"`
	Members int       `json:"members"`
}

func newEntityView(e projection.Entity) EntityView {
	return EntityView{
		Domain:  e.Domain,
		Key:     e.Key,
		Owner:   e.Owner(),
		Tip:     e.Tip,
		Members: len(e.Members),
	}
}

func newOKResponse(data any) Response {
	return Response{Status: StatusOK, Data: data}
}

func newErrorResponse(code, message string) Response {
	return Response{Status: StatusError, Error: &ErrorBody{Code: code, Message: message}}
}
