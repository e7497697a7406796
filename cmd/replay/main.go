package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/pkg/errors"

	"pixelplace/internal/canvas"
	"pixelplace/internal/config"
)

// Offline inspection tool for the append-only event log. Reconstructs
// the canvas the same way the server does at boot and reports what it
// finds, optionally rendering the final raster to a PNG.
func main() {
	logPath := flag.String("log", "canvas/current.hst", "event log file to replay")
	pngPath := flag.String("png", "", "write the reconstructed canvas to this PNG file")
	scale := flag.Int("scale", 1, "PNG pixel scale (1-8)")
	top := flag.Int("top", 10, "number of leaderboard rows to print")
	width := flag.Int("width", 0, "canvas width (default from CANVAS_WIDTH or 500)")
	height := flag.Int("height", 0, "canvas height (default from CANVAS_HEIGHT or 500)")
	flag.Parse()

	if err := run(*logPath, *pngPath, *scale, *top, *width, *height); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

func run(logPath, pngPath string, scale, top, width, height int) error {
	eventLog, err := canvas.OpenEventLog(logPath)
	if err != nil {
		return errors.Wrap(err, "opening event log")
	}
	defer eventLog.Close()

	events, err := eventLog.Replay()
	if err != nil {
		if !errors.Is(err, canvas.ErrCorruptLog) {
			return errors.Wrap(err, "replaying event log")
		}
		fmt.Fprintf(os.Stderr, "⚠️ Corrupt tail, using %d valid events: %v\n", len(events), err)
	}

	canvasCfg := config.CanvasFromEnv()
	if width > 0 {
		canvasCfg.Width = width
	}
	if height > 0 {
		canvasCfg.Height = height
	}

	c := canvas.New(canvas.Settings{
		Width:            canvasCfg.Width,
		Height:           canvasCfg.Height,
		MaxCooldownTicks: canvasCfg.MaxCooldownTicks,
		Palette:          canvasCfg.Palette,
	}, nil)
	c.Restore(events)

	fmt.Printf("Log:        %s\n", logPath)
	fmt.Printf("Events:     %d\n", len(events))
	if len(events) > 0 {
		first := time.UnixMilli(int64(events[0].TimestampMs))
		last := time.UnixMilli(int64(events[len(events)-1].TimestampMs))
		fmt.Printf("First:      %s\n", first.Format(time.RFC3339))
		fmt.Printf("Last:       %s\n", last.Format(time.RFC3339))
	}

	printLeaderboard(events, top)

	if pngPath != "" {
		if scale < 1 || scale > 8 {
			return errors.Errorf("scale %d out of range [1,8]", scale)
		}
		f, err := os.Create(pngPath)
		if err != nil {
			return errors.Wrap(err, "creating PNG file")
		}
		defer f.Close()
		if err := c.RenderPNG(f, scale); err != nil {
			return errors.Wrap(err, "rendering PNG")
		}
		fmt.Printf("PNG:        %s (%dx%d at %dx)\n", pngPath, canvasCfg.Width, canvasCfg.Height, scale)
	}

	return nil
}

func printLeaderboard(events []canvas.PixelEvent, top int) {
	counts := make(map[uint64]int)
	order := make([]uint64, 0)
	for _, ev := range events {
		if _, seen := counts[ev.UserID]; !seen {
			order = append(order, ev.UserID)
		}
		counts[ev.UserID]++
	}
	fmt.Printf("Users:      %d\n", len(counts))
	if top <= 0 || len(order) == 0 {
		return
	}

	// Selection by repeated max keeps ties in first-seen order.
	fmt.Println("Top placers:")
	printed := 0
	picked := make(map[uint64]bool)
	for printed < top && printed < len(order) {
		best := uint64(0)
		bestCount := -1
		for _, id := range order {
			if !picked[id] && counts[id] > bestCount {
				best = id
				bestCount = counts[id]
			}
		}
		picked[best] = true
		printed++
		fmt.Printf("  %2d. %-20d %d\n", printed, best, bestCount)
	}
}
