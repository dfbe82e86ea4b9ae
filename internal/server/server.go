// Package server exposes the session and the persistence store over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"

	"github.com/cbegin/loopcode"
	"github.com/cbegin/loopcode/internal/store"
)

// MaxPortAttempts bounds how many consecutive ports Listen tries.
const MaxPortAttempts = 10

const maxBody = 1 << 20

// Session is the live-coding surface the API drives. *loopcode.App
// satisfies it.
type Session interface {
	EvaluateAll(code string) []loopcode.Result
	Hush()
	Start()
	Stop()
	SetBPM(bpm float64) float64
	State() loopcode.State
}

type Server struct {
	session Session
	store   *store.Store
	logger  *slog.Logger
	mux     *http.ServeMux
}

func New(session Session, st *store.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{session: session, store: st, logger: logger, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/code", s.getCode)
	s.mux.HandleFunc("POST /api/code", s.saveCode)
	s.mux.HandleFunc("GET /api/presets", s.listPresets)
	s.mux.HandleFunc("GET /api/presets/{name}", s.getPreset)
	s.mux.HandleFunc("POST /api/presets/{name}", s.savePreset)
	s.mux.HandleFunc("DELETE /api/presets/{name}", s.deletePreset)
	s.mux.HandleFunc("POST /api/eval", s.eval)
	s.mux.HandleFunc("POST /api/hush", s.hush)
	s.mux.HandleFunc("POST /api/transport", s.transport)
	s.mux.HandleFunc("GET /api/state", s.state)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type codeBody struct {
	Code string `json:"code"`
}

type successBody struct {
	Success bool   `json:"success"`
	Name    string `json:"name,omitempty"`
}

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type transportBody struct {
	Action string   `json:"action"`
	BPM    *float64 `json:"bpm,omitempty"`
}

type evalBody struct {
	Success bool              `json:"success"`
	Results []loopcode.Result `json:"results"`
}

func (s *Server) getCode(w http.ResponseWriter, r *http.Request) {
	code, err := s.store.LoadCode()
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, codeBody{Code: code})
}

func (s *Server) saveCode(w http.ResponseWriter, r *http.Request) {
	var body codeBody
	if err := decode(w, r, &body); err != nil {
		s.fail(w, err)
		return
	}
	if err := s.store.SaveCode(body.Code); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successBody{Success: true})
}

func (s *Server) listPresets(w http.ResponseWriter, r *http.Request) {
	names, err := s.store.Presets()
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"presets": names})
}

func (s *Server) getPreset(w http.ResponseWriter, r *http.Request) {
	code, err := s.store.LoadPreset(r.PathValue("name"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, codeBody{Code: code})
}

func (s *Server) savePreset(w http.ResponseWriter, r *http.Request) {
	var body codeBody
	if err := decode(w, r, &body); err != nil {
		s.fail(w, err)
		return
	}
	name, err := s.store.SavePreset(r.PathValue("name"), body.Code)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successBody{Success: true, Name: name})
}

func (s *Server) deletePreset(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeletePreset(r.PathValue("name")); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successBody{Success: true})
}

func (s *Server) eval(w http.ResponseWriter, r *http.Request) {
	var body codeBody
	if err := decode(w, r, &body); err != nil {
		s.fail(w, err)
		return
	}
	results := s.session.EvaluateAll(body.Code)
	ok := true
	for _, res := range results {
		if !res.Success {
			ok = false
			s.logger.Debug("evaluation failed", "line", res.Line, "message", res.Message)
		}
	}
	if results == nil {
		results = []loopcode.Result{}
	}
	writeJSON(w, http.StatusOK, evalBody{Success: ok, Results: results})
}

func (s *Server) hush(w http.ResponseWriter, r *http.Request) {
	s.session.Hush()
	writeJSON(w, http.StatusOK, successBody{Success: true})
}

func (s *Server) transport(w http.ResponseWriter, r *http.Request) {
	var body transportBody
	if err := decode(w, r, &body); err != nil {
		s.fail(w, err)
		return
	}
	if body.BPM != nil {
		s.session.SetBPM(*body.BPM)
	}
	switch body.Action {
	case "start":
		s.session.Start()
	case "stop":
		s.session.Stop()
	case "":
		if body.BPM == nil {
			s.fail(w, badRequest("missing action", "Expected an action (start, stop) or a bpm"))
			return
		}
	default:
		s.fail(w, badRequest("unknown action "+body.Action, fmt.Sprintf("Unknown transport action %q", body.Action)))
		return
	}
	writeJSON(w, http.StatusOK, s.session.State())
}

func (s *Server) state(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.State())
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch ftag.Get(err) {
	case ftag.InvalidArgument:
		status = http.StatusBadRequest
	case ftag.NotFound:
		status = http.StatusNotFound
	}
	msg := fmsg.GetIssue(err)
	if msg == "" {
		msg = http.StatusText(status)
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func badRequest(msg, issue string) error {
	return fault.New(msg, fmsg.WithDesc(msg, issue), ftag.With(ftag.InvalidArgument))
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		return fault.Wrap(err,
			fmsg.WithDesc("decode request", "Request body must be JSON"),
			ftag.With(ftag.InvalidArgument))
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Listen binds host:port, moving to the next port while the
// current one is in use.
func Listen(host string, port int) (net.Listener, error) {
	var lastErr error
	for i := 0; i < MaxPortAttempts; i++ {
		ln, err := net.Listen("tcp", net.JoinHostPort(host, fmt.Sprint(port+i)))
		if err == nil {
			return ln, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fault.Wrap(lastErr, fmsg.With(fmt.Sprintf("no free port in %d-%d", port, port+MaxPortAttempts-1)))
}

// Serve runs h on ln until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, ln net.Listener, h http.Handler, logger *slog.Logger) error {
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	logger.Info("http server listening", "addr", ln.Addr().String())
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
