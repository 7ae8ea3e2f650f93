package web

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// CustomResponseWriter allows to store current status code of ResponseWriter.
type CustomResponseWriter struct {
	http.ResponseWriter
	Status int
}

func (w *CustomResponseWriter) WriteHeader(statusCode int) {
	// set w.Status then forward to inner ResponseWriter
	w.Status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// Hijack lets the websocket upgrader take over wrapped connections.
func (w *CustomResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer can't be hijacked")
	}
	w.Status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func NilHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func WrapCustomRW(wr http.ResponseWriter) *CustomResponseWriter {
	if cw, ok := wr.(*CustomResponseWriter); ok {
		return cw
	}
	return &CustomResponseWriter{
		ResponseWriter: wr,
		Status:         http.StatusOK, // defaults to ok, some handlers never call WriteHeader
	}
}

// Logger logs every request served by handler when verbose is set.
func Logger(handler http.Handler, name string, verbose bool, log logrus.FieldLogger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t0 := time.Now()
		cw := WrapCustomRW(w)
		handler.ServeHTTP(cw, r)
		if verbose {
			log.WithFields(logrus.Fields{
				"handler": name,
				"status":  cw.Status,
				"remote":  r.RemoteAddr,
				"agent":   r.UserAgent(),
				"took":    time.Since(t0),
			}).Infof("%s %s", r.Method, r.RequestURI)
		}
	})
}
