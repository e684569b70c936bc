// Package server exposes a FlightController over HTTP and websocket.
// Every request is serialized through one mutex so the controller sees the
// same single-caller discipline the firmware gives it.
package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"flightemu/core"
)

// ChannelState is one channel in a state report
type ChannelState struct {
	Channel    core.Channel `json:"channel"`
	Name       string       `json:"name"`
	Duty       float64      `json:"duty"`
	Output     float64      `json:"output"`
	SyncOffset *uint32      `json:"sync_offset,omitempty"`
}

// State is the body of GET /state and of every websocket reply
type State struct {
	State    string         `json:"state"`
	Protocol string         `json:"protocol"`
	Channels []ChannelState `json:"channels"`
}

// Result reports the outcome of one operation
type Result struct {
	OK    bool   `json:"ok"`
	Code  uint8  `json:"code"`
	Error string `json:"error,omitempty"`
	State *State `json:"state,omitempty"`
}

type valueRequest struct {
	Value *float64 `json:"value"`
}

type controlsRequest struct {
	Throttle float64 `json:"throttle"`
	Pitch    float64 `json:"pitch"`
	Roll     float64 `json:"roll"`
	Yaw      float64 `json:"yaw"`
}

type syncReporter interface {
	SyncOffsets() [core.NumChannels]uint32
}

// Server serves one flight controller
type Server struct {
	mu       sync.Mutex
	fc       *core.FlightController
	router   *mux.Router
	upgrader websocket.Upgrader
}

// New builds the routes for fc
func New(fc *core.FlightController) *Server {
	s := &Server{
		fc:     fc,
		router: mux.NewRouter(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	s.router.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	s.router.HandleFunc("/flight/{op:init|start|stop|idle|reset}", s.handleFlight).Methods(http.MethodPost)
	s.router.HandleFunc("/axis/{axis}", s.handleAxis).Methods(http.MethodPut)
	s.router.HandleFunc("/controls", s.handleControls).Methods(http.MethodPut)
	s.router.HandleFunc("/aux/{channel}", s.handleChannel(s.fc.SetAux)).Methods(http.MethodPut)
	s.router.HandleFunc("/channel/{channel}/output", s.handleChannel(s.fc.SetChannelOutput)).Methods(http.MethodPut)
	s.router.HandleFunc("/channel/{channel}/duty", s.handleChannel(s.fc.SetDuty)).Methods(http.MethodPut)
	s.router.HandleFunc("/ws", s.handleWebSocket)
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Shutdown stops the outputs if they are running
func (s *Server) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fc.State() != core.StateActive {
		return nil
	}
	return s.fc.Stop()
}

// do runs op under the lock and reports the result with the state after it
func (s *Server) do(op func() error) (Result, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := op()
	state := s.snapshot()
	res := Result{OK: err == nil, Code: core.ResultCode(err), State: &state}
	if err != nil {
		res.Error = err.Error()
		log.Printf("flightd: %v", err)
	}
	return res, httpStatus(err)
}

// snapshot must be called with mu held
func (s *Server) snapshot() State {
	out := s.fc.Output()
	duties := out.Duties()
	outputs := out.Outputs()
	st := State{
		State:    s.fc.State().String(),
		Protocol: s.fc.Protocol().String(),
		Channels: make([]ChannelState, 0, core.NumChannels),
	}

	var offsets *[core.NumChannels]uint32
	if sr, ok := out.(syncReporter); ok {
		o := sr.SyncOffsets()
		offsets = &o
	}
	for _, ch := range core.AllChannels {
		cs := ChannelState{
			Channel: ch,
			Name:    ch.String(),
			Duty:    duties[ch.Index()],
			Output:  outputs[ch.Index()],
		}
		if offsets != nil {
			cs.SyncOffset = &offsets[ch.Index()]
		}
		st.Channels = append(st.Channels, cs)
	}
	return st
}

func httpStatus(err error) int {
	switch core.ResultCode(err) {
	case core.ResultSuccess:
		return http.StatusOK
	case core.ResultModeSwapFailure:
		return http.StatusConflict
	case core.ResultUnsupported:
		return http.StatusNotImplemented
	case core.ResultProtocolFailure, core.ResultBackendFailure:
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("flightd: write response: %v", err)
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, Result{Code: core.ResultInvalidInput, Error: msg})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	st := s.snapshot()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) flightOp(name string) func() error {
	switch name {
	case "init":
		return s.fc.Init
	case "start":
		return s.fc.Start
	case "stop":
		return s.fc.Stop
	case "idle":
		return s.fc.Idle
	case "reset":
		return s.fc.ResetControl
	}
	return nil
}

func (s *Server) axisOp(axis core.Axis) func(float64) error {
	switch axis {
	case core.AxisThrottle:
		return s.fc.SetThrottle
	case core.AxisPitch:
		return s.fc.SetPitch
	case core.AxisRoll:
		return s.fc.SetRoll
	case core.AxisYaw:
		return s.fc.SetYaw
	}
	return nil
}

func (s *Server) handleFlight(w http.ResponseWriter, r *http.Request) {
	res, status := s.do(s.flightOp(mux.Vars(r)["op"]))
	writeJSON(w, status, res)
}

func (s *Server) handleAxis(w http.ResponseWriter, r *http.Request) {
	axis, ok := core.ParseAxis(mux.Vars(r)["axis"])
	if !ok {
		writeJSON(w, http.StatusNotFound, Result{Code: core.ResultInvalidInput, Error: "unknown axis"})
		return
	}
	v, ok := decodeValue(w, r)
	if !ok {
		return
	}
	set := s.axisOp(axis)
	res, status := s.do(func() error { return set(v) })
	writeJSON(w, status, res)
}

func (s *Server) handleControls(w http.ResponseWriter, r *http.Request) {
	var req controlsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, err.Error())
		return
	}
	res, status := s.do(func() error {
		return s.fc.SetControls(req.Throttle, req.Pitch, req.Roll, req.Yaw)
	})
	writeJSON(w, status, res)
}

func (s *Server) handleChannel(set func(core.Channel, float64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, ok := core.ParseChannel(mux.Vars(r)["channel"])
		if !ok {
			writeJSON(w, http.StatusNotFound, Result{Code: core.ResultInvalidChannel, Error: "unknown channel"})
			return
		}
		v, ok := decodeValue(w, r)
		if !ok {
			return
		}
		res, status := s.do(func() error { return set(ch, v) })
		writeJSON(w, status, res)
	}
}

func decodeValue(w http.ResponseWriter, r *http.Request) (float64, bool) {
	var req valueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, err.Error())
		return 0, false
	}
	if req.Value == nil {
		badRequest(w, "missing value")
		return 0, false
	}
	return *req.Value, true
}

// wsRequest is one websocket command. Op is a flight operation, an axis
// name, "controls", "aux", "output", "duty" or "state".
type wsRequest struct {
	Op       string  `json:"op"`
	Channel  string  `json:"channel,omitempty"`
	Value    float64 `json:"value"`
	Throttle float64 `json:"throttle"`
	Pitch    float64 `json:"pitch"`
	Roll     float64 `json:"roll"`
	Yaw      float64 `json:"yaw"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("flightd: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(4096)
	for {
		var req wsRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("flightd: websocket read: %v", err)
			}
			return
		}

		res := s.handleRequest(req)
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(res); err != nil {
			log.Printf("flightd: websocket write: %v", err)
			return
		}
	}
}

func (s *Server) handleRequest(req wsRequest) Result {
	if op := s.flightOp(req.Op); op != nil {
		res, _ := s.do(op)
		return res
	}
	if axis, ok := core.ParseAxis(req.Op); ok {
		set := s.axisOp(axis)
		res, _ := s.do(func() error { return set(req.Value) })
		return res
	}

	var set func(core.Channel, float64) error
	switch req.Op {
	case "state":
		res, _ := s.do(func() error { return nil })
		return res
	case "controls":
		res, _ := s.do(func() error {
			return s.fc.SetControls(req.Throttle, req.Pitch, req.Roll, req.Yaw)
		})
		return res
	case "aux":
		set = s.fc.SetAux
	case "output":
		set = s.fc.SetChannelOutput
	case "duty":
		set = s.fc.SetDuty
	default:
		return Result{Code: core.ResultInvalidInput, Error: "unknown op " + req.Op}
	}

	ch, ok := core.ParseChannel(req.Channel)
	if !ok {
		return Result{Code: core.ResultInvalidChannel, Error: "unknown channel " + req.Channel}
	}
	res, _ := s.do(func() error { return set(ch, req.Value) })
	return res
}
