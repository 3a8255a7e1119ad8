package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/caffeineduck/webfdw/fdw"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start an HTTP server exposing scans of the table",
	Long: `Start an HTTP server. Each scan owns one wrapper session and reads
pages lazily as rows are requested.

Endpoints:
  POST   /scans               Begin a scan, returns {"scan_id":"..."}
  GET    /scans/{id}/rows?n=  Read up to n rows (default 100)
  POST   /scans/{id}/rescan   Restart the scan from the first page
  DELETE /scans/{id}          End the scan
  GET    /health              Health check

POST /scans accepts {"options":{...}} to override table options for that
scan only. Scans idle for longer than --idle-ttl are ended.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

const defaultRowBatch = 100

func init() {
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	serveCmd.Flags().Duration("idle-ttl", 15*time.Minute, "End scans idle for this long")
	serveCmd.Flags().Int("max-rows", 1000, "Max rows per rows request")
	rootCmd.AddCommand(serveCmd)
}

type createScanRequest struct {
	Options map[string]string `json:"options,omitempty"`
}

type createScanResponse struct {
	ScanID string `json:"scan_id"`
}

type rowsResponse struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
	Done    bool             `json:"done"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// scanFactory opens a wrapper session for table and runs Init.
type scanFactory func(c *fdw.Context) (wrapperSession, error)

type scanManager struct {
	table   fdw.Table
	open    scanFactory
	ttl     time.Duration
	maxRows int
	logger  *slog.Logger

	mu    sync.Mutex
	scans map[string]*serverScan
}

type serverScan struct {
	mu       sync.Mutex
	session  wrapperSession
	ctx      *fdw.Context
	lastUsed time.Time
	done     bool
}

func newScanManager(table fdw.Table, open scanFactory, ttl time.Duration, logger *slog.Logger) *scanManager {
	return &scanManager{
		table:   table,
		open:    open,
		ttl:     ttl,
		maxRows: 1000,
		logger:  logger,
		scans:   make(map[string]*serverScan),
	}
}

func (sm *scanManager) create(ctx context.Context, overrides map[string]string) (string, error) {
	table := sm.table
	if len(overrides) > 0 {
		table.Options = maps.Clone(sm.table.Options)
		if table.Options == nil {
			table.Options = make(fdw.Options, len(overrides))
		}
		maps.Copy(table.Options, overrides)
	}

	c := fdw.NewContext(table)
	session, err := sm.open(c.WithContext(ctx))
	if err != nil {
		return "", err
	}
	if err := session.BeginScan(c.WithContext(ctx)); err != nil {
		if cerr := session.Close(); cerr != nil {
			sm.logger.Debug("close session failed", "error", cerr)
		}
		return "", err
	}

	id := uuid.NewString()
	sm.mu.Lock()
	sm.scans[id] = &serverScan{session: session, ctx: c, lastUsed: time.Now()}
	sm.mu.Unlock()

	sm.logger.Info("scan started", "scan", id, "table", table.Name)
	return id, nil
}

func (sm *scanManager) get(id string) (*serverScan, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sc, ok := sm.scans[id]
	if ok {
		sc.lastUsed = time.Now()
	}
	return sc, ok
}

func (sm *scanManager) end(id string) bool {
	sm.mu.Lock()
	sc, ok := sm.scans[id]
	delete(sm.scans, id)
	sm.mu.Unlock()

	if ok {
		sc.close(sm.logger.With("scan", id))
		sm.logger.Info("scan ended", "scan", id)
	}
	return ok
}

// cleanup ends idle scans until ctx is done.
func (sm *scanManager) cleanup(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sm.expire(time.Now())
		}
	}
}

func (sm *scanManager) expire(now time.Time) {
	sm.mu.Lock()
	idle := make(map[string]*serverScan)
	for id, sc := range sm.scans {
		if now.Sub(sc.lastUsed) > sm.ttl {
			idle[id] = sc
			delete(sm.scans, id)
			sm.logger.Info("scan expired", "scan", id)
		}
	}
	sm.mu.Unlock()

	for id, sc := range idle {
		sc.close(sm.logger.With("scan", id))
	}
}

func (sm *scanManager) closeAll() {
	sm.mu.Lock()
	scans := sm.scans
	sm.scans = make(map[string]*serverScan)
	sm.mu.Unlock()

	for id, sc := range scans {
		sc.close(sm.logger.With("scan", id))
	}
}

func (sc *serverScan) rows(ctx context.Context, n int) ([]fdw.Row, bool, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	c := sc.ctx.WithContext(ctx)
	var rows []fdw.Row
	for !sc.done && len(rows) < n {
		row, ok, err := sc.session.IterScan(c)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			sc.done = true
			break
		}
		rows = append(rows, row)
	}
	return rows, sc.done, nil
}

func (sc *serverScan) rescan(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if err := sc.session.ReScan(sc.ctx.WithContext(ctx)); err != nil {
		return err
	}
	sc.done = false
	return nil
}

func (sc *serverScan) close(logger *slog.Logger) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if err := sc.session.EndScan(sc.ctx); err != nil {
		logger.Debug("end scan failed", "error", err)
	}
	if err := sc.session.Close(); err != nil {
		logger.Debug("close session failed", "error", err)
	}
}

func (sm *scanManager) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /scans", func(w http.ResponseWriter, r *http.Request) {
		var req createScanRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, errors.New("invalid json"))
			return
		}

		id, err := sm.create(r.Context(), req.Options)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, createScanResponse{ScanID: id})
	})

	mux.HandleFunc("GET /scans/{id}/rows", func(w http.ResponseWriter, r *http.Request) {
		sc, ok := sm.get(r.PathValue("id"))
		if !ok {
			writeError(w, http.StatusNotFound, errors.New("scan not found"))
			return
		}

		n := defaultRowBatch
		if v := r.URL.Query().Get("n"); v != "" {
			parsed, err := strconv.Atoi(v)
			if err != nil || parsed < 1 {
				writeError(w, http.StatusBadRequest, fmt.Errorf("invalid row count %q", v))
				return
			}
			n = min(parsed, sm.maxRows)
		}

		rows, done, err := sc.rows(r.Context(), n)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}

		columns := sc.ctx.Table.ColumnNames()
		resp := rowsResponse{Columns: columns, Rows: make([]map[string]any, len(rows)), Done: done}
		for i, row := range rows {
			resp.Rows[i] = rowObject(columns, row)
		}
		writeJSON(w, http.StatusOK, resp)
	})

	mux.HandleFunc("POST /scans/{id}/rescan", func(w http.ResponseWriter, r *http.Request) {
		sc, ok := sm.get(r.PathValue("id"))
		if !ok {
			writeError(w, http.StatusNotFound, errors.New("scan not found"))
			return
		}
		if err := sc.rescan(r.Context()); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("DELETE /scans/{id}", func(w http.ResponseWriter, r *http.Request) {
		if !sm.end(r.PathValue("id")) {
			writeError(w, http.StatusNotFound, errors.New("scan not found"))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return mux
}

// statusFor maps wrapper errors to HTTP statuses.
func statusFor(err error) int {
	var (
		oe *fdw.OptionError
		fe *fdw.FetchError
		de *fdw.DecodeError
	)
	switch {
	case errors.As(err, &oe):
		return http.StatusBadRequest
	case errors.Is(err, fdw.ErrUnsupported):
		return http.StatusNotImplemented
	case errors.As(err, &fe), errors.As(err, &de):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func errorKind(err error) string {
	var (
		oe *fdw.OptionError
		fe *fdw.FetchError
		de *fdw.DecodeError
	)
	switch {
	case errors.As(err, &oe):
		return "option"
	case errors.As(err, &fe):
		return "fetch"
	case errors.As(err, &de):
		return "decode"
	case errors.Is(err, fdw.ErrUnsupported):
		return "unsupported"
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: errorKind(err)})
}

func runServe(cmd *cobra.Command, args []string) error {
	port, _ := cmd.Flags().GetInt("port")
	ttl, _ := cmd.Flags().GetDuration("idle-ttl")
	maxRows, _ := cmd.Flags().GetInt("max-rows")

	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	sessions := newScanManager(rt.table, rt.newSession, ttl, logger)
	sessions.maxRows = maxRows
	defer sessions.closeAll()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go sessions.cleanup(ctx, time.Minute)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           sessions.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("webfdw server listening", "addr", srv.Addr, "table", rt.table.Name)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
