package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/caffeineduck/webfdw/fdw"
	"github.com/caffeineduck/webfdw/guest"
	"github.com/caffeineduck/webfdw/hostfunc"
	"github.com/caffeineduck/webfdw/protocol"
	"github.com/caffeineduck/webfdw/version"
	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/sys"
)

var (
	ErrSessionClosed  = errors.New("session closed")
	ErrExecutorClosed = errors.New("executor closed")
	ErrGuestExited    = errors.New("guest exited")
)

var _ fdw.Wrapper = (*Session)(nil)

// Session is one running guest. It implements fdw.Wrapper by forwarding
// each contract call over the guest's stdio; calls are serialized.
type Session struct {
	id     string
	cfg    sessionConfig
	logger *slog.Logger

	stdin       *io.PipeWriter
	stdinReader *io.PipeReader
	conn        *hostConn

	cancel  context.CancelFunc
	exited  chan struct{}
	exitErr error

	requirement string

	mu     sync.Mutex
	execMu sync.Mutex
	closed bool
}

// guestRunner runs a guest over the given stdio until it exits.
type guestRunner func(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer) error

// NewSession instantiates mod in the sandbox. The guest's host version
// requirement is checked before NewSession returns, so a mismatched guest
// never sees Init.
func (e *Executor) NewSession(mod Module, opts ...SessionOption) (*Session, error) {
	cfg := defaultSessionConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = e.logger
	}

	compiled, err := e.getCompiled(context.Background(), mod)
	if err != nil {
		return nil, err
	}

	run := func(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer) error {
		moduleConfig := wazero.NewModuleConfig().
			WithStdout(stdout).
			WithStderr(stderr).
			WithStdin(stdin).
			WithArgs(mod.Name()).
			WithSysWalltime().
			WithSysNanotime().
			WithName("")

		for k, v := range cfg.env {
			moduleConfig = moduleConfig.WithEnv(k, v)
		}

		m, err := e.runtime.InstantiateModule(ctx, compiled, moduleConfig)
		if m != nil {
			m.Close(context.Background())
		}
		var exitErr *sys.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 0 {
			return nil
		}
		return err
	}

	return startSession(e.registry, cfg, run)
}

// NewInProcessSession serves the wrapper built by factory from a goroutine
// over the same protocol a sandboxed guest uses. The wrapper shares the
// host's memory but still reaches the network only through registry.
func NewInProcessSession(registry *hostfunc.Registry, factory guest.Factory, opts ...SessionOption) (*Session, error) {
	cfg := defaultSessionConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}

	run := func(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer) error {
		return guest.Serve(ctx, stdin, stderr, factory)
	}
	return startSession(registry, cfg, run)
}

func startSession(base *hostfunc.Registry, cfg sessionConfig, run guestRunner) (*Session, error) {
	registry := base.Clone()
	if len(cfg.allowedHosts) > 0 {
		httpHandler := hostfunc.NewHTTP(hostfunc.HTTPConfig{
			AllowedHosts:   cfg.allowedHosts,
			MaxURLLength:   cfg.httpMaxURLLength,
			MaxBodySize:    cfg.httpMaxBodySize,
			RequestTimeout: cfg.httpTimeout,
			Logger:         cfg.logger,
		})
		registry.Register(hostfunc.HTTPRequest, httpHandler.Request)
	}

	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	s := &Session{
		id:     id,
		cfg:    cfg,
		logger: cfg.logger.With("session", id),
		cancel: cancel,
		exited: make(chan struct{}),
	}
	s.stdinReader, s.stdin = io.Pipe()
	s.conn = newHostConn(registry, s.stdin)

	go func() {
		err := run(ctx, s.stdinReader, outputWriter{s.conn}, s.conn)
		s.mu.Lock()
		s.exitErr = err
		s.mu.Unlock()
		s.stdinReader.CloseWithError(ErrGuestExited)
		close(s.exited)
	}()

	select {
	case <-s.conn.Ready():
	case <-s.exited:
		err := s.exitError()
		s.Close()
		return nil, fmt.Errorf("start session: %w", err)
	case <-time.After(cfg.startTimeout):
		s.Close()
		return nil, errors.New("session start timeout")
	}

	res, err := s.call(nil, protocol.Command{Op: protocol.OpHostVersionRequirement})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("host version requirement: %w", err)
	}
	if err := version.Check(cfg.hostVersion, res.Value); err != nil {
		s.Close()
		return nil, err
	}
	s.requirement = res.Value

	s.logger.Debug("session started", "host_version", cfg.hostVersion, "requirement", res.Value)
	return s, nil
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

func (s *Session) HostVersionRequirement() string { return s.requirement }

func (s *Session) Init(c *fdw.Context) error {
	return s.do(c, protocol.Command{Op: protocol.OpInit, Context: c})
}

func (s *Session) BeginScan(c *fdw.Context) error {
	return s.do(c, protocol.Command{Op: protocol.OpBeginScan, Context: c})
}

func (s *Session) IterScan(c *fdw.Context) (fdw.Row, bool, error) {
	res, err := s.call(c, protocol.Command{Op: protocol.OpIterScan, Context: c})
	if err != nil {
		return nil, false, err
	}
	if err := res.Error.Err(); err != nil {
		return nil, false, err
	}
	return res.Row, res.OK, nil
}

func (s *Session) ReScan(c *fdw.Context) error {
	return s.do(c, protocol.Command{Op: protocol.OpReScan, Context: c})
}

func (s *Session) EndScan(c *fdw.Context) error {
	return s.do(c, protocol.Command{Op: protocol.OpEndScan, Context: c})
}

func (s *Session) BeginModify(c *fdw.Context) error {
	return s.do(c, protocol.Command{Op: protocol.OpBeginModify, Context: c})
}

func (s *Session) Insert(c *fdw.Context, row fdw.Row) error {
	return s.do(c, protocol.Command{Op: protocol.OpInsert, Context: c, Row: row})
}

func (s *Session) Update(c *fdw.Context, rowID fdw.Cell, row fdw.Row) error {
	return s.do(c, protocol.Command{Op: protocol.OpUpdate, Context: c, Row: row, RowID: &rowID})
}

func (s *Session) Delete(c *fdw.Context, rowID fdw.Cell) error {
	return s.do(c, protocol.Command{Op: protocol.OpDelete, Context: c, RowID: &rowID})
}

func (s *Session) EndModify(c *fdw.Context) error {
	return s.do(c, protocol.Command{Op: protocol.OpEndModify, Context: c})
}

func (s *Session) do(c *fdw.Context, cmd protocol.Command) error {
	res, err := s.call(c, cmd)
	if err != nil {
		return err
	}
	return res.Error.Err()
}

// call sends one command and waits for its result. A call that outlives
// its deadline leaves the guest in an unknown state, so the session is
// closed.
func (s *Session) call(c *fdw.Context, cmd protocol.Command) (protocol.Result, error) {
	s.execMu.Lock()
	defer s.execMu.Unlock()

	if s.isClosed() {
		return protocol.Result{}, ErrSessionClosed
	}

	ctx := context.Background()
	if c != nil {
		ctx = c.Context()
	}
	if s.cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.timeout)
		defer cancel()
	}

	start := time.Now()
	s.conn.ResetExec(ctx)
	results := s.conn.Results()

	if err := s.conn.send(cmd); err != nil {
		select {
		case <-s.exited:
			return protocol.Result{}, s.exitError()
		default:
		}
		return protocol.Result{}, fmt.Errorf("write command: %w", err)
	}

	select {
	case res := <-results:
		if out := s.conn.Output(); out != "" {
			s.logger.Debug("guest output", "op", cmd.Op, "output", out)
		}
		s.logger.Debug("contract call", "op", cmd.Op, "duration", time.Since(start), "error", res.Error != nil)
		return res, nil
	case <-s.exited:
		return protocol.Result{}, s.exitError()
	case <-ctx.Done():
		s.logger.Warn("contract call abandoned, closing session", "op", cmd.Op, "err", ctx.Err())
		s.Close()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && s.cfg.timeout > 0 {
			return protocol.Result{}, fmt.Errorf("%s: timeout after %v", cmd.Op, s.cfg.timeout)
		}
		return protocol.Result{}, fmt.Errorf("%s: %w", cmd.Op, ctx.Err())
	}
}

func (s *Session) exitError() error {
	s.mu.Lock()
	err := s.exitErr
	s.mu.Unlock()

	out := s.conn.Output()
	switch {
	case err != nil && out != "":
		return fmt.Errorf("%w: %v: %s", ErrGuestExited, err, out)
	case err != nil:
		return fmt.Errorf("%w: %v", ErrGuestExited, err)
	case out != "":
		return fmt.Errorf("%w: %s", ErrGuestExited, out)
	}
	return ErrGuestExited
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close stops the guest. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	// Closing stdin lets a waiting guest see EOF and exit; cancel stops
	// one that is stuck.
	if s.stdinReader != nil {
		s.stdinReader.Close()
	}
	if s.stdin != nil {
		s.stdin.Close()
	}
	s.cancel()

	return nil
}
