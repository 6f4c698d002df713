package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog/log"

	"github.com/meallensai/meallens-go/internal/api"
)

// HistoryCmd browses detection history.
type HistoryCmd struct {
	List   HistoryListCmd   `cmd:"" default:"1" help:"List detection history"`
	Delete HistoryDeleteCmd `cmd:"" help:"Delete a detection record"`
}

// HistoryListCmd lists detections, serving from cache when possible.
type HistoryListCmd struct {
	NoCache bool `help:"Bypass the local cache"`
	JSON    bool `help:"Print raw JSON"`
}

func (h *HistoryListCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := setup(ctx, globals)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	user, err := app.requireUser(ctx)
	if err != nil {
		return err
	}

	var payload json.RawMessage
	if !h.NoCache {
		cached, fresh, ok := app.Preload.CachedHistory(user.ID)
		if ok && fresh {
			payload = cached
		} else if ok {
			// Serve the stale copy rather than a blank screen, refreshing
			// behind the render.
			payload = cached
			app.Preload.Preload(ctx, user.ID)
		}
	}

	if payload == nil {
		raw, err := app.Client.ListDetectionHistory(ctx)
		if err != nil {
			return err
		}
		payload = api.ExtractList(raw, "history", "detection_history", "data", "data.history")
		app.Caches.History(user.ID).Put(payload)
	}

	if h.JSON {
		fmt.Println(string(payload))
		return nil
	}

	var records []api.DetectionRecord
	if err := json.Unmarshal(payload, &records); err != nil {
		return fmt.Errorf("failed to decode history: %w", err)
	}
	if len(records) == 0 {
		fmt.Println("No detections yet. Try: meallens-cli detect --image <path>")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDETECTED\tWHEN")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\n", rec.ID, strings.Join(rec.DetectedFoods, ", "), rec.CreatedAt)
	}
	return w.Flush()
}

// HistoryDeleteCmd removes one record and invalidates the cache.
type HistoryDeleteCmd struct {
	ID string `arg:"" help:"Record ID"`
}

func (h *HistoryDeleteCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := setup(ctx, globals)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	user, err := app.requireUser(ctx)
	if err != nil {
		return err
	}

	if err := app.Client.DeleteDetection(ctx, h.ID); err != nil {
		return err
	}
	app.Caches.History(user.ID).Clear()

	log.Info().Str("id", h.ID).Msg("detection deleted")
	return nil
}
