package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
)

// MealPlanCmd manages AI-generated meal plans.
type MealPlanCmd struct {
	List   MealPlanListCmd   `cmd:"" default:"1" help:"List meal plans"`
	Create MealPlanCreateCmd `cmd:"" help:"Generate a meal plan"`
	Update MealPlanUpdateCmd `cmd:"" help:"Replace a meal plan"`
	Delete MealPlanDeleteCmd `cmd:"" help:"Delete a meal plan"`
}

type MealPlanListCmd struct {
	JSON bool `help:"Print raw JSON"`
}

func (m *MealPlanListCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := setup(ctx, globals)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	if _, err := app.requireUser(ctx); err != nil {
		return err
	}

	plans, err := app.Client.ListMealPlans(ctx)
	if err != nil {
		return err
	}

	if m.JSON {
		return printJSON(plans)
	}
	if len(plans) == 0 {
		fmt.Println("No meal plans yet. Try: meallens-cli mealplan create <file.json>")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTART")
	for _, p := range plans {
		fmt.Fprintf(w, "%s\t%s\t%s\n", p.ID, p.Name, p.StartDate)
	}
	return w.Flush()
}

// MealPlanCreateCmd generates a plan from a preferences document.
type MealPlanCreateCmd struct {
	Request string `arg:"" help:"Preferences JSON, inline or a file path"`
}

func (m *MealPlanCreateCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := setup(ctx, globals)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	if _, err := app.requireUser(ctx); err != nil {
		return err
	}

	body, err := readBodyArg(m.Request)
	if err != nil {
		return err
	}

	raw, err := app.Client.CreateMealPlan(ctx, body)
	if err != nil {
		return err
	}
	fmt.Println(string(raw))
	return nil
}

type MealPlanUpdateCmd struct {
	ID      string `arg:"" help:"Plan ID"`
	Request string `arg:"" help:"Plan JSON, inline or a file path"`
}

func (m *MealPlanUpdateCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := setup(ctx, globals)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	if _, err := app.requireUser(ctx); err != nil {
		return err
	}

	body, err := readBodyArg(m.Request)
	if err != nil {
		return err
	}

	if err := app.Client.UpdateMealPlan(ctx, m.ID, body); err != nil {
		return err
	}
	log.Info().Str("id", m.ID).Msg("meal plan updated")
	return nil
}

type MealPlanDeleteCmd struct {
	ID string `arg:"" help:"Plan ID"`
}

func (m *MealPlanDeleteCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := setup(ctx, globals)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	if _, err := app.requireUser(ctx); err != nil {
		return err
	}

	if err := app.Client.DeleteMealPlan(ctx, m.ID); err != nil {
		return err
	}
	log.Info().Str("id", m.ID).Msg("meal plan deleted")
	return nil
}
