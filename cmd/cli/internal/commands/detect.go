package commands

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"github.com/meallensai/meallens-go/internal/api"
)

// DetectCmd runs food/ingredient detection against the inference service.
type DetectCmd struct {
	Image       string   `help:"Path to a meal photo" type:"existingfile" xor:"input"`
	Ingredients []string `help:"Ingredient list for text detection" xor:"input"`
	Save        bool     `help:"Save the result to detection history"`
	JSON        bool     `help:"Print raw JSON"`
}

func (d *DetectCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := setup(ctx, globals)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	user, err := app.requireUser(ctx)
	if err != nil {
		return err
	}

	input, err := d.buildInput()
	if err != nil {
		return err
	}

	raw, err := app.Client.Detect(ctx, input)
	if err != nil {
		return err
	}

	if d.Save {
		foods := extractFoods(raw)
		rec := api.DetectionRecord{DetectedFoods: foods, Extra: raw}
		if err := app.Client.SaveDetection(ctx, rec); err != nil {
			return err
		}
		// The server copy changed, the cached listing is out of date.
		app.Caches.History(user.ID).Clear()
	}

	if d.JSON {
		fmt.Println(string(raw))
		return nil
	}
	foods := extractFoods(raw)
	if len(foods) == 0 {
		fmt.Println("Nothing detected.")
		return nil
	}
	for _, f := range foods {
		fmt.Println(f)
	}
	return nil
}

func (d *DetectCmd) buildInput() (any, error) {
	switch {
	case d.Image != "":
		data, err := os.ReadFile(d.Image)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", d.Image, err)
		}
		return map[string]any{
			"detection_type": "image",
			"image":          base64.StdEncoding.EncodeToString(data),
		}, nil
	case len(d.Ingredients) > 0:
		return map[string]any{
			"detection_type": "ingredients",
			"ingredients":    d.Ingredients,
		}, nil
	default:
		return nil, fmt.Errorf("provide --image or --ingredients")
	}
}

// extractFoods pulls the detected food names out of the inference envelope.
func extractFoods(raw []byte) []string {
	list := api.ExtractList(raw, "detected_foods", "foods", "data.detected_foods", "data")
	var foods []string
	if err := json.Unmarshal(list, &foods); err != nil {
		return nil
	}
	return foods
}
