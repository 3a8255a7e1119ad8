package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/caffeineduck/webfdw/executor"
	"github.com/caffeineduck/webfdw/fdw"
	"github.com/caffeineduck/webfdw/hostfunc"
	"github.com/caffeineduck/webfdw/tabledef"
)

// wrapperSession is a running wrapper the commands drive.
type wrapperSession interface {
	fdw.Wrapper
	Close() error
}

// runtime holds what every command needs to open wrapper sessions for one
// table: the parsed definition, the executor and the session options.
type runtime struct {
	table    fdw.Table
	native   bool
	registry *hostfunc.Registry
	exec     *executor.Executor
	module   executor.Module
	opts     []executor.SessionOption
}

func newRuntime() (*runtime, error) {
	table, err := loadTable(conf.GetString("table"), conf.GetStringMapString("options"))
	if err != nil {
		return nil, err
	}

	hosts := conf.GetStringSlice("allow_host")
	if len(hosts) == 0 {
		host, err := apiHost(table)
		if err != nil {
			return nil, err
		}
		hosts = []string{host}
		logger.Debug("allowing api host", "host", host)
	}

	rt := &runtime{
		table:    table,
		native:   conf.GetBool("native"),
		registry: hostfunc.NewRegistry(),
	}
	rt.opts = []executor.SessionOption{
		executor.WithSessionTimeout(conf.GetDuration("timeout")),
		executor.WithSessionAllowedHosts(hosts),
		executor.WithSessionHTTPMaxURLLength(conf.GetInt("http_max_url")),
		executor.WithSessionHTTPMaxBodySize(conf.GetInt64("http_max_body")),
		executor.WithSessionHTTPTimeout(conf.GetDuration("http_timeout")),
		executor.WithSessionLogger(logger),
	}
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		rt.opts = append(rt.opts, executor.WithSessionEnv("WEBFDW_GUEST_LOG_LEVEL", "debug"))
	}

	if rt.native {
		return rt, nil
	}

	path := conf.GetString("module")
	if path == "" {
		return nil, errors.New("--module is required unless --native is set")
	}
	rt.module, err = executor.LoadModule(path)
	if err != nil {
		return nil, err
	}

	pages, err := parseMemoryLimit(conf.GetString("memory"))
	if err != nil {
		return nil, err
	}
	execOpts := []executor.ExecutorOption{
		executor.WithMemoryLimit(pages),
		executor.WithPrecompile(rt.module),
		executor.WithLogger(logger),
	}
	if !conf.GetBool("no_cache") {
		execOpts = append(execOpts, executor.WithDiskCache())
	}
	rt.exec, err = executor.New(rt.registry, execOpts...)
	if err != nil {
		return nil, err
	}
	return rt, nil
}

// newSession starts a wrapper and runs Init for c.
func (rt *runtime) newSession(c *fdw.Context) (wrapperSession, error) {
	var (
		sess *executor.Session
		err  error
	)
	if rt.native {
		sess, err = executor.NewInProcessSession(rt.registry, func(host fdw.Requester) fdw.Wrapper {
			return fdw.NewGuest(host, fdw.WithLogger(logger))
		}, rt.opts...)
	} else {
		sess, err = rt.exec.NewSession(rt.module, rt.opts...)
	}
	if err != nil {
		return nil, err
	}

	if err := sess.Init(c); err != nil {
		sess.Close()
		return nil, err
	}
	return sess, nil
}

func (rt *runtime) Close() error {
	if rt.exec != nil {
		return rt.exec.Close()
	}
	return nil
}

// loadTable parses def, which is either DDL or the path of a file holding
// it, and applies option overrides.
func loadTable(def string, overrides map[string]string) (fdw.Table, error) {
	if strings.TrimSpace(def) == "" {
		return fdw.Table{}, errors.New("--table is required")
	}
	if !strings.Contains(def, "(") {
		data, err := os.ReadFile(def)
		if err != nil {
			return fdw.Table{}, fmt.Errorf("read table definition: %w", err)
		}
		def = string(data)
	}

	parsed, err := tabledef.Parse(def)
	if err != nil {
		return fdw.Table{}, err
	}
	table := parsed.Table
	if len(overrides) > 0 && table.Options == nil {
		table.Options = make(fdw.Options, len(overrides))
	}
	for k, v := range overrides {
		table.Options[k] = v
	}
	return table, nil
}

func apiHost(table fdw.Table) (string, error) {
	raw, err := table.Options.Require("api_url")
	if err != nil {
		return "", err
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "", &fdw.OptionError{Option: "api_url", Reason: fmt.Sprintf("cannot derive host from %q", raw)}
	}
	return u.Hostname(), nil
}
