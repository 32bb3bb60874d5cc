package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/kris-hansen/summaprompt/utils/config"
	"github.com/kris-hansen/summaprompt/utils/gateway"
	"github.com/kris-hansen/summaprompt/utils/session"
	"github.com/kris-hansen/summaprompt/utils/workflow"
)

// app is what a command needs to run a wizard operation
type app struct {
	env    *config.EnvConfig
	engine *workflow.Engine
	close  func() error
}

func (a *app) Close() error {
	if a.close == nil {
		return nil
	}
	return a.close()
}

// openApp loads the env file and wires the store, gateway and engine.
// Tests replace it to run commands against an in-memory store.
var openApp = func() (*app, error) {
	env, err := config.LoadOrDefault(config.GetEnvPath())
	if err != nil {
		return nil, err
	}
	store, err := session.NewStoreFromConfig(env.Store)
	if err != nil {
		return nil, err
	}
	engine := workflow.NewEngine(store, gateway.New(env), env.Workflow, env.Batch)
	return &app{env: env, engine: engine, close: store.Close}, nil
}

var errNoSession = errors.New("no session selected: pass --session or set SUMMAPROMPT_SESSION")

// currentSession returns the session the command operates on
func currentSession() (string, error) {
	if sessionID != "" {
		return sessionID, nil
	}
	if id := os.Getenv("SUMMAPROMPT_SESSION"); id != "" {
		return id, nil
	}
	return "", errNoSession
}

// withSession opens the app and resolves the session ID for fn
func withSession(fn func(a *app, id string) error) error {
	id, err := currentSession()
	if err != nil {
		return err
	}
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	if err := fn(a, id); err != nil {
		return fmt.Errorf("session %s: %w", shortID(id), err)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
