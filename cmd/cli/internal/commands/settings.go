package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/meallensai/meallens-go/internal/api"
)

// SettingsCmd manages the user's health settings.
type SettingsCmd struct {
	Show    SettingsShowCmd    `cmd:"" default:"1" help:"Show current health settings"`
	Update  SettingsUpdateCmd  `cmd:"" help:"Replace health settings"`
	History SettingsHistoryCmd `cmd:"" help:"Show the settings change history"`
}

type SettingsShowCmd struct{}

func (s *SettingsShowCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := setup(ctx, globals)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	if _, err := app.requireUser(ctx); err != nil {
		return err
	}

	raw, err := app.Client.GetSettings(ctx)
	if err != nil {
		return err
	}
	fmt.Println(string(raw))
	return nil
}

type SettingsUpdateCmd struct {
	Request string `arg:"" help:"Settings JSON, inline or a file path"`
}

func (s *SettingsUpdateCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := setup(ctx, globals)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	user, err := app.requireUser(ctx)
	if err != nil {
		return err
	}

	body, err := readBodyArg(s.Request)
	if err != nil {
		return err
	}

	if err := app.Client.UpdateSettings(ctx, body); err != nil {
		return err
	}
	// The history just grew, the cached copy is out of date.
	app.Caches.SettingsHistory(user.ID).Clear()
	log.Info().Msg("health settings updated")
	return nil
}

type SettingsHistoryCmd struct {
	NoCache bool `help:"Bypass the local cache"`
}

func (s *SettingsHistoryCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := setup(ctx, globals)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	user, err := app.requireUser(ctx)
	if err != nil {
		return err
	}

	if !s.NoCache {
		if cached, fresh, ok := app.Preload.CachedSettingsHistory(user.ID); ok {
			if !fresh {
				app.Preload.Preload(ctx, user.ID)
			}
			fmt.Println(string(cached))
			return nil
		}
	}

	raw, err := app.Client.ListSettingsHistory(ctx)
	if err != nil {
		return err
	}
	payload := api.ExtractList(raw, "settings_history", "history", "data", "data.settings_history")
	app.Caches.SettingsHistory(user.ID).Put(payload)
	fmt.Println(string(payload))
	return nil
}
