package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
)

// Handler takes context and request, returns a Response.
// A non-nil error aborts the request; the hosting layer decides how to report it.
type Handler interface {
	Handle(ctx context.Context, r *http.Request) (Response, error)
}

// HandlerFunc adapts an ordinary function to the Handler interface.
type HandlerFunc func(ctx context.Context, r *http.Request) (Response, error)

func (f HandlerFunc) Handle(ctx context.Context, r *http.Request) (Response, error) {
	return f(ctx, r)
}

// Response knows how to write itself to http.ResponseWriter
type Response interface {
	Write(ctx context.Context, w http.ResponseWriter) error
}

// StatusCoder is implemented by responses that know their status code
// before being written.
type StatusCoder interface {
	Status() int
}

// StatusOf returns resp's status code, or 200 when it does not say.
func StatusOf(resp Response) int {
	if sc, ok := resp.(StatusCoder); ok {
		return sc.Status()
	}
	return http.StatusOK
}

// Cloner is implemented by responses that can hand out an independent copy
// of themselves.
type Cloner interface {
	Clone() Response
}

// --- Request Helpers

func DecodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// --- Response implementations ---

type JSONResponse struct {
	StatusCode int
	Data       any
}

func (r JSONResponse) Write(ctx context.Context, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(r.StatusCode)
	return json.NewEncoder(w).Encode(r.Data)
}

// Status reports the status code the response will be written with.
func (r JSONResponse) Status() int {
	return r.StatusCode
}

func JSON(statusCode int, data any) Response {
	return JSONResponse{StatusCode: statusCode, Data: data}
}

func Error(data any) Response {
	return JSONResponse{StatusCode: 500, Data: data}
}

// BufferedResponse keeps status, headers and body in memory until it is
// written, so middleware can still change it on the way out of the chain.
type BufferedResponse struct {
	StatusCode int
	Header     http.Header
	Body       bytes.Buffer
}

// Text returns a BufferedResponse with a plain text body.
func Text(statusCode int, body string) *BufferedResponse {
	resp := &BufferedResponse{
		StatusCode: statusCode,
		Header:     http.Header{},
	}
	resp.Header.Set("Content-Type", "text/plain; charset=utf-8")
	resp.Body.WriteString(body)
	return resp
}

// WriteString appends s to the body.
func (r *BufferedResponse) WriteString(s string) {
	r.Body.WriteString(s)
}

// String returns the current body.
func (r *BufferedResponse) String() string {
	return r.Body.String()
}

// Status reports the status code the response will be written with.
func (r *BufferedResponse) Status() int {
	if r.StatusCode == 0 {
		return http.StatusOK
	}
	return r.StatusCode
}

func (r *BufferedResponse) Write(ctx context.Context, w http.ResponseWriter) error {
	for key, values := range r.Header {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	w.WriteHeader(r.Status())
	_, err := w.Write(r.Body.Bytes())
	return err
}

// Clone copies status, headers and body.
func (r *BufferedResponse) Clone() Response {
	c := &BufferedResponse{
		StatusCode: r.StatusCode,
		Header:     r.Header.Clone(),
	}
	if c.Header == nil {
		c.Header = http.Header{}
	}
	c.Body.Write(r.Body.Bytes())
	return c
}
