package commands

import (
	"context"
	"fmt"
)

// FeedbackCmd sends user feedback to the backend.
type FeedbackCmd struct {
	Message string `arg:"" help:"Feedback text"`
	Rating  int    `help:"Rating from 1 to 5" default:"0"`
}

func (f *FeedbackCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := setup(ctx, globals)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	if _, err := app.requireUser(ctx); err != nil {
		return err
	}

	if f.Rating < 0 || f.Rating > 5 {
		return fmt.Errorf("rating must be between 1 and 5")
	}

	if err := app.Client.SubmitFeedback(ctx, f.Message, f.Rating); err != nil {
		return err
	}
	fmt.Println("Thanks for the feedback!")
	return nil
}
