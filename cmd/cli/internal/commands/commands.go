package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/meallensai/meallens-go/internal/api"
	"github.com/meallensai/meallens-go/internal/cache"
	"github.com/meallensai/meallens-go/internal/config"
	"github.com/meallensai/meallens-go/internal/logger"
	"github.com/meallensai/meallens-go/internal/preload"
	"github.com/meallensai/meallens-go/internal/session"
	"github.com/meallensai/meallens-go/internal/storage"
	"github.com/meallensai/meallens-go/internal/telemetry"
)

type Globals struct {
	Debug      bool
	Version    string
	ConfigPath string
}

// App is the wired client stack for one command invocation.
type App struct {
	Config   config.Config
	Store    *session.Store
	Session  *session.Controller
	Client   *api.Client
	Caches   *cache.Caches
	Preload  *preload.Preloader
	shutdown func(context.Context) error
}

// setup builds the full stack: logging, telemetry, storage, session, client.
func setup(ctx context.Context, globals *Globals) (*App, error) {
	logger.Setup(globals.Debug)

	cfg, err := config.Load(globals.ConfigPath)
	if err != nil {
		return nil, err
	}
	if cfg.Debug && !globals.Debug {
		logger.Setup(true)
	}

	shutdown, err := telemetry.Init(ctx, "meallens-cli", globals.Version)
	if err != nil {
		log.Warn().Err(err).Msg("telemetry unavailable")
		shutdown = func(context.Context) error { return nil }
	}

	kv := storage.NewDisk(cfg.CacheDir)
	store := session.NewStore(kv)
	client := api.New(api.Config{
		BaseURL:   cfg.APIURL,
		AIBaseURL: cfg.AIURL,
		Timeout:   time.Duration(cfg.Timeout),
		ClientID:  store.ClientID(),
	}, store)
	caches := cache.New(kv)

	return &App{
		Config:   cfg,
		Store:    store,
		Session:  session.NewController(store, client, terminalTransition{}),
		Client:   client,
		Caches:   caches,
		Preload:  preload.New(client, caches),
		shutdown: shutdown,
	}, nil
}

// Close flushes telemetry.
func (a *App) Close(ctx context.Context) {
	if err := a.shutdown(ctx); err != nil {
		log.Debug().Err(err).Msg("telemetry shutdown failed")
	}
}

// requireUser restores the session and fails when nobody is signed in.
func (a *App) requireUser(ctx context.Context) (*api.User, error) {
	a.Session.Initialize(ctx, session.InitializeOptions{})
	user := a.Session.CurrentUser()
	if user == nil {
		return nil, errors.New("not signed in — run: meallens-cli login")
	}
	return user, nil
}

// terminalTransition is the CLI rendition of the sign-out overlay.
type terminalTransition struct{}

func (terminalTransition) ShowSignOut(reason string) {
	fmt.Fprintf(os.Stderr, "Signing out (%s)...\n", reason)
}

func (terminalTransition) RedirectHome() {
	fmt.Fprintln(os.Stderr, "Signed out. Run `meallens-cli login` to sign in again.")
}

// printJSON pretty-prints v on stdout.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// readBodyArg loads a JSON document from a file path, or returns inline
// JSON as-is when the argument starts with "{" or "[".
func readBodyArg(arg string) (json.RawMessage, error) {
	if len(arg) > 0 && (arg[0] == '{' || arg[0] == '[') {
		return json.RawMessage(arg), nil
	}
	data, err := os.ReadFile(arg)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", arg, err)
	}
	return json.RawMessage(data), nil
}
