package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/meallensai/meallens-go/internal/session"
)

// LoginCmd signs in and warms the history caches.
type LoginCmd struct {
	Email    string `arg:"" help:"Account email"`
	Password string `help:"Password (prompted when omitted)" env:"MEALLENS_PASSWORD"`
}

func (l *LoginCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := setup(ctx, globals)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	password := l.Password
	if password == "" {
		password, err = promptPassword()
		if err != nil {
			return err
		}
	}

	res, err := app.Client.Login(ctx, l.Email, password)
	if err != nil {
		return err
	}

	app.Store.Save(res.Token, res.User)
	// The token is known-good, skip the verification round trip.
	app.Session.Initialize(ctx, session.InitializeOptions{SkipVerify: true})

	// Warm the history caches so the first browse renders from cache.
	app.Preload.Run(ctx, res.User.ID)

	fmt.Printf("Signed in as %s\n", res.User.Email)
	return nil
}

// RegisterCmd creates an account and signs in.
type RegisterCmd struct {
	Email    string `arg:"" help:"Account email"`
	Name     string `help:"Display name"`
	Password string `help:"Password (prompted when omitted)" env:"MEALLENS_PASSWORD"`
}

func (r *RegisterCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := setup(ctx, globals)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	password := r.Password
	if password == "" {
		password, err = promptPassword()
		if err != nil {
			return err
		}
	}

	res, err := app.Client.Register(ctx, r.Email, password, r.Name)
	if err != nil {
		return err
	}

	app.Store.Save(res.Token, res.User)
	app.Session.Initialize(ctx, session.InitializeOptions{SkipVerify: true})

	fmt.Printf("Welcome to MealLens, %s\n", res.User.Email)
	return nil
}

// LogoutCmd signs out locally and best-effort server side.
type LogoutCmd struct{}

func (l *LogoutCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := setup(ctx, globals)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	app.Session.Initialize(ctx, session.InitializeOptions{SkipVerify: true})
	app.Session.SignOut(ctx)
	return nil
}

// WhoamiCmd shows the signed-in user, verified against the backend.
type WhoamiCmd struct{}

func (w *WhoamiCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := setup(ctx, globals)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	if _, err := app.requireUser(ctx); err != nil {
		return err
	}

	user, err := app.Client.Profile(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("%s", user.Email)
	if user.Name != "" {
		fmt.Printf(" (%s)", user.Name)
	}
	fmt.Println()
	return nil
}

func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", fmt.Errorf("password must not be empty")
	}
	return password, nil
}
