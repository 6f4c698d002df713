package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/meallensai/meallens-go/cmd/cli/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Login      commands.LoginCmd      `cmd:"" help:"Sign in to MealLens"`
		Register   commands.RegisterCmd   `cmd:"" help:"Create a MealLens account"`
		Logout     commands.LogoutCmd     `cmd:"" help:"Sign out"`
		Whoami     commands.WhoamiCmd     `cmd:"" help:"Show the signed-in user"`
		Detect     commands.DetectCmd     `cmd:"" help:"Detect foods and ingredients"`
		History    commands.HistoryCmd    `cmd:"" help:"Browse detection history"`
		Mealplan   commands.MealPlanCmd   `cmd:"" help:"Manage meal plans"`
		Settings   commands.SettingsCmd   `cmd:"" help:"Manage health settings"`
		Feedback   commands.FeedbackCmd   `cmd:"" help:"Send feedback"`
		Enterprise commands.EnterpriseCmd `cmd:"" help:"Manage organizations"`
		Cache      commands.CacheCmd      `cmd:"" help:"Manage the local cache"`
		Config     string                 `help:"Config file path" env:"MEALLENS_CONFIG"`
		Debug      bool                   `help:"Enable debug mode."`
		Version    kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version, ConfigPath: cli.Config})
	cmd.FatalIfErrorf(err)
}
