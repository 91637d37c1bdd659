package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"scrollguard/internal/app"
	"scrollguard/internal/config"
	"scrollguard/internal/infrastructure/logging"
	"scrollguard/internal/platform"
)

// session is an App opened for the duration of one command
type session struct {
	app *app.App
	cmd *cobra.Command
}

// openSession loads the configuration and starts the App. Commands are one
// shot, so the background retention scheduler stays off.
func openSession(cmd *cobra.Command, opts *RootOptions) (*session, error) {
	cfg, err := config.Load(opts.ConfigPath, opts.Env)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "loading configuration", err)
	}
	if opts.DBPath != "" {
		cfg.Path = opts.DBPath
		// Validate prepares the directory of the new path
		if err := cfg.Validate(); err != nil {
			return nil, WrapExitError(ExitCommandError, "loading configuration", err)
		}
	}
	cfg.EnableCleanup = false

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "loading configuration", err)
	}
	if opts.Verbose {
		level = logging.LevelDebug
	}
	logger := logging.NewLogger(cmd.ErrOrStderr(), level)

	a := app.NewApp(cfg, logger, app.Options{Probe: platform.NewDiskProbe()})
	if err := a.Startup(cmd.Context()); err != nil {
		return nil, WrapExitError(ExitCommandError, "opening store", err)
	}
	return &session{app: a, cmd: cmd}, nil
}

func (s *session) Close() {
	s.app.Shutdown(context.Background())
}

// call sends one message and returns its data, turning a failed response
// into an ExitError
func (s *session) call(typ app.MessageType, payload any) (json.RawMessage, error) {
	var raw json.RawMessage
	switch p := payload.(type) {
	case nil:
	case json.RawMessage:
		raw = p
	default:
		data, err := json.Marshal(p)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "encoding request", err)
		}
		raw = data
	}

	resp, err := s.app.Router().Call(s.cmd.Context(), app.Request{Type: typ, Payload: raw})
	if err != nil {
		return nil, WrapExitError(ExitFailure, string(typ), err)
	}
	if !resp.OK {
		return nil, WrapExitError(ExitFailure, string(typ), fmt.Errorf("%s: %s", resp.Code, resp.Error))
	}
	return resp.Data, nil
}

// withSession opens a session, runs fn and closes the session
func withSession(cmd *cobra.Command, opts *RootOptions, fn func(s *session) error) error {
	s, err := openSession(cmd, opts)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}
