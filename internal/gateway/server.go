// Package gateway implements the host-command execution server
// (component C) and its typed RPC client (component D): a
// process-isolated HTTP endpoint that lets the agent run a narrow,
// allowlisted set of commands on the host, and the client the agent's
// tools use to reach it.
package gateway

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	maxBodyBytes   = 1 << 20 // 1 MiB
	defaultTimeout = 60 * time.Second
	maxTimeout     = 600 * time.Second
)

// Bridge is one named policy scope: the commands and working
// directories a request naming this bridge is permitted to use.
type Bridge struct {
	AllowedCommands map[string]struct{}
	AllowedCwd      []string // absolute paths, symlinks not yet resolved
}

// NewBridge builds a Bridge from plain command/cwd lists.
func NewBridge(allowedCommands, allowedCwd []string) Bridge {
	cmds := make(map[string]struct{}, len(allowedCommands))
	for _, c := range allowedCommands {
		cmds[c] = struct{}{}
	}
	return Bridge{AllowedCommands: cmds, AllowedCwd: allowedCwd}
}

// ServerConfig configures Server.
type ServerConfig struct {
	Token          string
	DefaultTimeout time.Duration
	Bridges        map[string]Bridge
	// RatePerMinute is the per-bridge request quota; zero selects a
	// generous default (60/min) rather than disabling the limiter.
	RatePerMinute int
}

// Server is the allowlisted host-command execution HTTP server.
type Server struct {
	cfg      ServerConfig
	token    []byte
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
}

// NewServer validates cfg and builds a Server. A non-empty token is
// required: an absent token is a fatal configuration error, never a
// permissive fallback.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Token == "" {
		return nil, errors.New("gateway: a non-empty token is required at startup")
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = defaultTimeout
	}
	if cfg.RatePerMinute <= 0 {
		cfg.RatePerMinute = 60
	}
	return &Server{
		cfg:      cfg,
		token:    []byte(cfg.Token),
		limiters: make(map[string]*rate.Limiter),
	}, nil
}

func (s *Server) limiterFor(bridge string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[bridge]
	if !ok {
		l = rate.NewLimiter(rate.Limit(float64(s.cfg.RatePerMinute)/60.0), s.cfg.RatePerMinute)
		s.limiters[bridge] = l
	}
	return l
}

// Handler builds the server's http.Handler (health + execute).
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/execute", s.handleExecute)
	return mux
}

// Run starts an HTTP server on addr and blocks until ctx is cancelled,
// at which point it shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("gateway: error during shutdown", "error", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) checkAuth(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	want := "Bearer " + string(s.token)
	return subtle.ConstantTimeCompare([]byte(auth), []byte(want)) == 1
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	bridges := make([]string, 0, len(s.cfg.Bridges))
	for name := range s.cfg.Bridges {
		bridges = append(bridges, name)
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "bridges": bridges})
}

// executeRequest is the /execute wire request body.
type executeRequest struct {
	Bridge  string   `json:"bridge"`
	Cmd     []string `json:"cmd"`
	Cwd     string   `json:"cwd,omitempty"`
	Timeout int      `json:"timeout,omitempty"`
}

type executeResponse struct {
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	ReturnCode int    `json:"returncode"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.checkAuth(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if r.ContentLength > maxBodyBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if len(body) > maxBodyBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	var req executeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Bridge == "" {
		writeError(w, http.StatusBadRequest, "missing 'bridge' field")
		return
	}
	bridge, ok := s.cfg.Bridges[req.Bridge]
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown bridge: %s", req.Bridge))
		return
	}
	if !s.limiterFor(req.Bridge).Allow() {
		writeError(w, http.StatusTooManyRequests, fmt.Sprintf("rate limit exceeded for bridge %s", req.Bridge))
		return
	}
	if len(req.Cmd) == 0 {
		writeError(w, http.StatusBadRequest, "missing cmd")
		return
	}

	cmdBase := filepath.Base(req.Cmd[0])
	if _, ok := bridge.AllowedCommands[cmdBase]; !ok {
		writeError(w, http.StatusForbidden, fmt.Sprintf("command '%s' not allowed for bridge '%s'", cmdBase, req.Bridge))
		return
	}

	effectiveCwd := ""
	if req.Cwd != "" {
		resolved, err := filepath.EvalSymlinks(req.Cwd)
		if err != nil {
			writeError(w, http.StatusForbidden, fmt.Sprintf("cwd '%s' is not accessible", req.Cwd))
			return
		}
		allowed := false
		for _, root := range bridge.AllowedCwd {
			resolvedRoot, err := filepath.EvalSymlinks(root)
			if err != nil {
				continue
			}
			if resolved == resolvedRoot || strings.HasPrefix(resolved, resolvedRoot+string(os.PathSeparator)) {
				allowed = true
				break
			}
		}
		if !allowed {
			writeError(w, http.StatusForbidden, fmt.Sprintf("cwd '%s' is outside the bridge's allowed directories", req.Cwd))
			return
		}
		effectiveCwd = resolved
	}

	timeout := req.Timeout
	if timeout < 0 {
		timeout = 0
	}
	effectiveTimeout := s.cfg.DefaultTimeout
	if timeout > 0 {
		effectiveTimeout = time.Duration(timeout) * time.Second
		if effectiveTimeout > maxTimeout {
			effectiveTimeout = maxTimeout
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), effectiveTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, req.Cmd[0], req.Cmd[1:]...)
	if effectiveCwd != "" {
		cmd.Dir = effectiveCwd
	}
	cmd.Env = stripEnv(os.Environ())

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	switch {
	case errors.Is(runErr, exec.ErrNotFound) || isNotFoundErr(runErr):
		writeJSON(w, http.StatusOK, executeResponse{
			Stdout:     "",
			Stderr:     fmt.Sprintf("Command '%s' not found", req.Cmd[0]),
			ReturnCode: 127,
		})
	case ctx.Err() == context.DeadlineExceeded:
		writeJSON(w, http.StatusOK, executeResponse{
			Stdout:     stdout.String(),
			Stderr:     stderr.String(),
			ReturnCode: -1,
		})
	case runErr != nil:
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			writeJSON(w, http.StatusOK, executeResponse{
				Stdout:     stdout.String(),
				Stderr:     stderr.String(),
				ReturnCode: exitErr.ExitCode(),
			})
			return
		}
		writeError(w, http.StatusInternalServerError, runErr.Error())
	default:
		writeJSON(w, http.StatusOK, executeResponse{
			Stdout:     stdout.String(),
			Stderr:     stderr.String(),
			ReturnCode: 0,
		})
	}
}

// stripEnv removes CLAUDE_CODE/CLAUDECODE so the spawned process never
// believes it is itself running under the Claude Code CLI, which would
// otherwise recursively re-trigger bridge behavior.
func stripEnv(env []string) []string {
	out := make([]string, 0, len(env))
	for _, kv := range env {
		if strings.HasPrefix(kv, "CLAUDE_CODE=") || strings.HasPrefix(kv, "CLAUDECODE=") {
			continue
		}
		out = append(out, kv)
	}
	return out
}

func isNotFoundErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "executable file not found") || strings.Contains(err.Error(), "no such file or directory")
}
