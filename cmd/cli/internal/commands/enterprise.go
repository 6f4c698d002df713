package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rs/zerolog/log"

	"github.com/meallensai/meallens-go/internal/api"
)

// EnterpriseCmd manages clinics/organizations and their members.
type EnterpriseCmd struct {
	Register     EnterpriseRegisterCmd     `cmd:"" help:"Register an organization"`
	List         EnterpriseListCmd         `cmd:"" default:"1" help:"List your organizations"`
	Show         EnterpriseShowCmd         `cmd:"" help:"Show one organization"`
	Users        EnterpriseUsersCmd        `cmd:"" help:"List organization members"`
	Stats        EnterpriseStatsCmd        `cmd:"" help:"Show usage statistics"`
	Invite       EnterpriseInviteCmd       `cmd:"" help:"Invite a member"`
	AcceptInvite EnterpriseAcceptCmd       `cmd:"" help:"Accept an invitation"`
	Restrictions EnterpriseRestrictionsCmd `cmd:"" help:"Manage meal time restrictions"`
}

type EnterpriseRegisterCmd struct {
	Request string `arg:"" help:"Organization JSON, inline or a file path"`
}

func (e *EnterpriseRegisterCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := setup(ctx, globals)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	user, err := app.requireUser(ctx)
	if err != nil {
		return err
	}

	body, err := readBodyArg(e.Request)
	if err != nil {
		return err
	}

	raw, err := app.Client.RegisterEnterprise(ctx, body)
	if err != nil {
		return err
	}
	app.Caches.EnterpriseList(user.ID).Clear()
	fmt.Println(string(raw))
	return nil
}

type EnterpriseListCmd struct {
	NoCache bool `help:"Bypass the local cache"`
	JSON    bool `help:"Print raw JSON"`
}

func (e *EnterpriseListCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := setup(ctx, globals)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	user, err := app.requireUser(ctx)
	if err != nil {
		return err
	}

	var list []api.Enterprise
	cached := false
	if !e.NoCache {
		// Hard TTL: the cache only answers while fresh.
		_, cached = app.Caches.EnterpriseList(user.ID).GetInto(&list)
	}
	if !cached {
		list, err = app.Client.ListEnterprises(ctx)
		if err != nil {
			return err
		}
		app.Caches.EnterpriseList(user.ID).Put(list)
	}

	if e.JSON {
		return printJSON(list)
	}
	if len(list) == 0 {
		fmt.Println("No organizations.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tROLE")
	for _, ent := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\n", ent.ID, ent.Name, ent.Role)
	}
	return w.Flush()
}

type EnterpriseShowCmd struct {
	ID      string `arg:"" help:"Organization ID"`
	NoCache bool   `help:"Bypass the local cache"`
}

func (e *EnterpriseShowCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := setup(ctx, globals)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	user, err := app.requireUser(ctx)
	if err != nil {
		return err
	}

	detail := app.Caches.EnterpriseDetail(user.ID, e.ID)
	if !e.NoCache {
		if payload, fresh, ok := detail.Get(); ok && fresh {
			fmt.Println(string(payload))
			return nil
		}
	}

	raw, err := app.Client.GetEnterprise(ctx, e.ID)
	if err != nil {
		return err
	}
	detail.Put(json.RawMessage(raw))
	fmt.Println(string(raw))
	return nil
}

type EnterpriseUsersCmd struct {
	ID string `arg:"" help:"Organization ID"`
}

func (e *EnterpriseUsersCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := setup(ctx, globals)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	if _, err := app.requireUser(ctx); err != nil {
		return err
	}

	raw, err := app.Client.ListEnterpriseUsers(ctx, e.ID)
	if err != nil {
		return err
	}
	fmt.Println(string(raw))
	return nil
}

type EnterpriseStatsCmd struct {
	ID string `arg:"" help:"Organization ID"`
}

func (e *EnterpriseStatsCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := setup(ctx, globals)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	if _, err := app.requireUser(ctx); err != nil {
		return err
	}

	raw, err := app.Client.EnterpriseStatistics(ctx, e.ID)
	if err != nil {
		return err
	}
	fmt.Println(string(raw))
	return nil
}

type EnterpriseInviteCmd struct {
	ID    string `arg:"" help:"Organization ID"`
	Email string `arg:"" help:"Invitee email"`
}

func (e *EnterpriseInviteCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := setup(ctx, globals)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	if _, err := app.requireUser(ctx); err != nil {
		return err
	}

	if err := app.Client.CreateInvitation(ctx, e.ID, e.Email); err != nil {
		return err
	}
	log.Info().Str("email", e.Email).Msg("invitation sent")
	return nil
}

type EnterpriseAcceptCmd struct {
	Token string `arg:"" help:"Invitation token"`
}

func (e *EnterpriseAcceptCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := setup(ctx, globals)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	user, err := app.requireUser(ctx)
	if err != nil {
		return err
	}

	if err := app.Client.AcceptInvitation(ctx, e.Token); err != nil {
		return err
	}
	// Membership changed, the cached listing is out of date.
	app.Caches.EnterpriseList(user.ID).Clear()
	fmt.Println("Invitation accepted.")
	return nil
}

// EnterpriseRestrictionsCmd shows or replaces meal time restrictions.
type EnterpriseRestrictionsCmd struct {
	ID  string `arg:"" help:"Organization ID"`
	Set string `help:"Restrictions JSON, inline or a file path (omit to show)"`
}

func (e *EnterpriseRestrictionsCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := setup(ctx, globals)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	user, err := app.requireUser(ctx)
	if err != nil {
		return err
	}

	if e.Set == "" {
		raw, err := app.Client.GetTimeRestrictions(ctx, e.ID)
		if err != nil {
			return err
		}
		fmt.Println(string(raw))
		return nil
	}

	body, err := readBodyArg(e.Set)
	if err != nil {
		return err
	}
	if err := app.Client.SetTimeRestrictions(ctx, e.ID, body); err != nil {
		return err
	}
	app.Caches.EnterpriseDetail(user.ID, e.ID).Clear()
	log.Info().Str("enterprise", e.ID).Msg("time restrictions updated")
	return nil
}
