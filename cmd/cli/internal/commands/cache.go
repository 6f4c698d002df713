package commands

import (
	"context"
	"fmt"
)

// CacheCmd manages the local response cache.
type CacheCmd struct {
	Clear CacheClearCmd `cmd:"" default:"1" help:"Clear cached responses for the signed-in user"`
}

type CacheClearCmd struct{}

func (c *CacheClearCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := setup(ctx, globals)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	user, err := app.requireUser(ctx)
	if err != nil {
		return err
	}

	app.Caches.History(user.ID).Clear()
	app.Caches.SettingsHistory(user.ID).Clear()
	app.Caches.EnterpriseList(user.ID).Clear()

	fmt.Println("Cache cleared.")
	return nil
}
