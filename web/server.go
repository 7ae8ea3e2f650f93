package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/solar3s/gomore/maqueen"
	"github.com/solar3s/gomore/microbit"
)

type ServerConfig struct {
	ListenAddr        string
	Verbose           bool
	WebsocketInterval microbit.Duration
}

var DefaultServerConfig = ServerConfig{
	ListenAddr:        "localhost:3636",
	WebsocketInterval: microbit.Duration(time.Second),
}

type Server struct {
	Config *Config
	Driver *microbit.Driver
	Robot  *maqueen.Robot

	version    string
	log        logrus.FieldLogger
	router     *mux.Router
	wsUpgrader *websocket.Upgrader
	httpServer *http.Server
}

// NewServer registers every endpoint on a new router, ListenAndServe
// starts serving them.
func NewServer(version string, d *microbit.Driver, cfg *Config, log logrus.FieldLogger) *Server {
	if cfg == nil {
		cfg = NewConfig()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	srv := &Server{
		Config:  cfg,
		Driver:  d,
		Robot:   maqueen.New(d),
		version: version,
		log:     log.WithField("component", "web"),
	}
	srv.wsUpgrader = &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}

	verbose := srv.Config.Web.Verbose
	srv.router = mux.NewRouter()

	// shh
	srv.router.Handle("/favicon.ico", http.HandlerFunc(NilHandler))

	for _, e := range []struct {
		path, name string
		h          http.HandlerFunc
		methods    []string
	}{
		{"/websocket", "ws-snapshot", srv.Websocket, []string{"GET"}},
		{"/snapshot", "snapshot", srv.Snapshot, []string{"GET", "HEAD"}},
		{"/state", "state", srv.State, []string{"GET", "HEAD"}},
		{"/config", "config", srv.ConfigHandler, []string{"GET", "HEAD"}},
		{"/connect", "connect", srv.Connect, []string{"POST"}},
		{"/disconnect", "disconnect", srv.Disconnect, []string{"POST"}},
		{"/display/text", "text", srv.DisplayText, []string{"POST"}},
		{"/display/matrix", "matrix", srv.DisplayMatrix, []string{"POST"}},
		{"/pin/pwm", "pwm", srv.PinPWM, []string{"POST"}},
		{"/slot", "slot", srv.Slot, []string{"POST"}},
		{"/maqueen", "maqueen", srv.MaqueenStatus, []string{"GET", "HEAD"}},
		{"/maqueen/motor", "motor", srv.MaqueenMotor, []string{"POST"}},
		{"/maqueen/led", "led", srv.MaqueenLED, []string{"POST"}},
	} {
		srv.router.Handle(e.path, Logger(e.h, e.name, verbose, srv.log)).Methods(e.methods...)
	}

	srv.httpServer = &http.Server{
		Handler:      srv.router,
		Addr:         srv.Config.Web.ListenAddr,
		WriteTimeout: 4 * time.Second,
		ReadTimeout:  4 * time.Second,
	}
	return srv
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks until Shutdown is called or the listener fails.
func (s *Server) ListenAndServe() error {
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Websocket streams snapshots to the client every interval, the poll query
// parameter overrides the configured interval.
func (s *Server) Websocket(w http.ResponseWriter, r *http.Request) {
	var interval = time.Duration(s.Config.Web.WebsocketInterval)
	if v := r.URL.Query().Get("poll"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			interval = d
		}
	}
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client
		s.log.WithError(err).Warn("error subscribing to websocket")
		return
	}

	log := s.log.WithField("remote", conn.RemoteAddr())
	if s.Config.Web.Verbose {
		log.Infof("websocket subscription (pollrate: %s)", interval)
	}

	// reader notices the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	go func() {
		defer conn.Close()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			if err := conn.WriteJSON(s.Driver.Snapshot()); err != nil {
				if s.Config.Web.Verbose {
					log.Info("websocket connection lost")
				}
				return
			}
			select {
			case <-ticker.C:
			case <-closed:
				return
			}
		}
	}()
}

// Snapshot encodes snapshot as json to w.
func (s *Server) Snapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Driver.Snapshot())
}

type stateResponse struct {
	State      microbit.State
	Busy       bool
	Peripheral string
	Version    string
}

func (s *Server) State(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, stateResponse{
		State:      s.Driver.State(),
		Busy:       s.Driver.Busy(),
		Peripheral: s.Driver.Config().Peripheral,
		Version:    s.version,
	})
}

// ConfigHandler encodes the running configuration.
func (s *Server) ConfigHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Config)
}

func (s *Server) Connect(w http.ResponseWriter, r *http.Request) {
	timeout := s.Config.Watcher.ConnectTimeout
	if timeout <= 0 {
		timeout = microbit.DefaultWatcherConfig.ConnectTimeout
	}
	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(timeout))
	defer cancel()
	if s.Driver.State() == microbit.Connected {
		http.Error(w, "already connected", http.StatusConflict)
		return
	}
	if err := s.Driver.Connect(ctx); err != nil {
		s.log.WithError(err).Warn("connect failed")
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	s.State(w, r)
}

func (s *Server) Disconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.Driver.Disconnect(); err != nil {
		s.log.WithError(err).Debug("in s.Driver.Disconnect")
	}
	s.State(w, r)
}

type textRequest struct {
	Text string `json:"text"`
}

func (s *Server) DisplayText(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !decode(w, r, &req) {
		return
	}
	writeTicket(w, s.Robot.DisplayText(req.Text))
}

type matrixRequest struct {
	Rows   *[microbit.MatrixRows]uint8 `json:"rows"`
	Symbol string                      `json:"symbol"`
}

// DisplayMatrix accepts either 5 row masks or a maqueen.Symbol picture.
func (s *Server) DisplayMatrix(w http.ResponseWriter, r *http.Request) {
	var req matrixRequest
	if !decode(w, r, &req) {
		return
	}
	switch {
	case req.Rows != nil && req.Symbol != "":
		http.Error(w, "rows and symbol are exclusive", http.StatusBadRequest)
	case req.Rows != nil:
		writeTicket(w, s.Driver.DisplayMatrix(*req.Rows))
	default:
		writeTicket(w, s.Robot.DisplaySymbol(req.Symbol))
	}
}

type pwmRequest struct {
	Pin   uint8  `json:"pin"`
	Value uint16 `json:"value"`
}

func (s *Server) PinPWM(w http.ResponseWriter, r *http.Request) {
	var req pwmRequest
	if !decode(w, r, &req) {
		return
	}
	writeTicket(w, s.Driver.SetPinPWM(req.Pin, req.Value))
}

type slotRequest struct {
	Slot  int   `json:"slot"`
	Value int16 `json:"value"`
}

func (s *Server) Slot(w http.ResponseWriter, r *http.Request) {
	var req slotRequest
	if !decode(w, r, &req) {
		return
	}
	writeTicket(w, s.Driver.SetSlot(req.Slot, req.Value))
}

func (s *Server) MaqueenStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Robot.Status())
}

type motorRequest struct {
	Side  maqueen.Side `json:"side"`
	Speed int          `json:"speed"`
}

func (s *Server) MaqueenMotor(w http.ResponseWriter, r *http.Request) {
	var req motorRequest
	if !decode(w, r, &req) {
		return
	}
	writeTicket(w, s.Robot.Motor(req.Side, req.Speed))
}

type ledRequest struct {
	Side maqueen.Side `json:"side"`
	On   bool         `json:"on"`
}

func (s *Server) MaqueenLED(w http.ResponseWriter, r *http.Request) {
	var req ledRequest
	if !decode(w, r, &req) {
		return
	}
	writeTicket(w, s.Robot.SetLED(req.Side, req.On))
}

// decode reads the json body into v, replying 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		http.Error(w, fmt.Sprintf("couldn't decode provided json: %s", err), http.StatusBadRequest)
		return false
	}
	return true
}

type ticketResponse struct {
	Status microbit.Status   `json:"status"`
	Pace   microbit.Duration `json:"pace,omitempty"`
	Error  string            `json:"error,omitempty"`
}

var ticketCodes = map[microbit.Status]int{
	microbit.Accepted:     http.StatusAccepted,
	microbit.Busy:         http.StatusConflict,
	microbit.NotConnected: http.StatusServiceUnavailable,
	microbit.Rejected:     http.StatusBadRequest,
}

func writeTicket(w http.ResponseWriter, t *microbit.Ticket) {
	resp := ticketResponse{Status: t.Status, Pace: microbit.Duration(t.Pace)}
	if t.Err != nil {
		resp.Error = t.Err.Error()
	}
	code, ok := ticketCodes[t.Status]
	if !ok {
		code = http.StatusInternalServerError
	}
	writeJSON(w, code, resp)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
