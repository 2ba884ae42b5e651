package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"

	"github.com/saintjustus/windowshell/internal/domain/placement"
	"github.com/saintjustus/windowshell/internal/domain/window"
	"github.com/saintjustus/windowshell/internal/infrastructure/monitoring"
	"github.com/saintjustus/windowshell/internal/shared/geometry"
)

type manifestWindow struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Kind  string `json:"kind"`
	Scene string `json:"scene,omitempty"`
	Embed string `json:"embed,omitempty"`
}

type manifestReport struct {
	Page    string           `json:"page"`
	Windows []manifestWindow `json:"windows"`
}

type placedWindow struct {
	ID     string  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Pinned bool    `json:"pinned,omitempty"`
}

type placeReport struct {
	Page      string          `json:"page"`
	Layout    geometry.Layout `json:"layout"`
	Signature string          `json:"signature"`
	Fallbacks int             `json:"fallbacks"`
	Windows   []placedWindow  `json:"windows"`
}

func manifestsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "manifests",
		Usage: "List the window manifests known to the shell",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "dir",
				Usage: "Directory of manifests overriding the built-in ones",
				Value: r.config.Shell.ManifestDir,
			},
			&cli.BoolFlag{Name: "json", Usage: "Print as JSON"},
		},
		Action: r.Manifests,
	}
}

// Manifests prints every page and its windows
func (r *Runner) Manifests(_ context.Context, cmd *cli.Command) error {
	cat, err := r.catalogue(cmd.String("dir"))
	if err != nil {
		return err
	}

	var reports []manifestReport
	for _, page := range cat.Pages() {
		configs, _ := cat.Windows(page)
		rep := manifestReport{Page: page}
		for _, c := range configs {
			rep.Windows = append(rep.Windows, manifestWindow{
				ID:    c.ID,
				Title: c.Title,
				Kind:  string(c.Kind()),
				Scene: c.SceneID,
				Embed: c.EmbedURL,
			})
		}
		reports = append(reports, rep)
	}

	if cmd.Bool("json") {
		return r.writeJSON(reports)
	}
	for _, rep := range reports {
		if err := r.writePlain("%s (%d windows)\n", rep.Page, len(rep.Windows)); err != nil {
			return err
		}
		for _, w := range rep.Windows {
			source := w.Scene
			if source == "" {
				source = w.Embed
			}
			if err := r.writePlain("  %-22s %-6s %s\n", w.ID, w.Kind, source); err != nil {
				return err
			}
		}
	}
	return nil
}

func placeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "place",
		Usage:     "Pack a page's windows into a viewport",
		ArgsUsage: "<page-id>",
		Flags: []cli.Flag{
			&cli.FloatFlag{Name: "width", Usage: "Viewport width", Value: 1280},
			&cli.FloatFlag{Name: "height", Usage: "Viewport height", Value: 800},
			&cli.FloatFlag{Name: "footer", Usage: "Audio player footer height"},
			&cli.StringFlag{
				Name:  "dir",
				Usage: "Directory of manifests overriding the built-in ones",
				Value: r.config.Shell.ManifestDir,
			},
			&cli.BoolFlag{Name: "json", Usage: "Print as JSON"},
		},
		Action: r.Place,
	}
}

// Place runs the placement engine over one page's manifest
func (r *Runner) Place(_ context.Context, cmd *cli.Command) error {
	page := cmd.Args().First()
	if page == "" {
		return fmt.Errorf("place: page id is required")
	}
	cat, err := r.catalogue(cmd.String("dir"))
	if err != nil {
		return err
	}
	configs, ok := cat.Windows(page)
	if !ok {
		return fmt.Errorf("place: no manifest for page %q", page)
	}

	layout := geometry.Layout{
		ViewportWidth:  cmd.Float("width"),
		ViewportHeight: cmd.Float("height"),
		FooterHeight:   cmd.Float("footer"),
	}
	sizes := window.NewFactory(nil, nil, nil, window.OptionsFromConfig(r.config.Window))
	engine := placement.New(
		placement.OptionsFromConfig(r.config.Placement, r.config.Window),
		monitoring.NewMetrics(prometheus.NewRegistry()),
		r.log,
	)

	items := make([]placement.Item, len(configs))
	for i, c := range configs {
		items[i] = placement.Item{ID: c.ID, Size: sizes.InitialSize(c), Preferred: c.InitialPosition}
	}
	res := engine.Place(layout, items)

	pinned := make(map[string]bool, len(res.Pinned))
	for _, id := range res.Pinned {
		pinned[id] = true
	}
	rep := placeReport{Page: page, Layout: layout, Signature: res.Signature, Fallbacks: res.Fallbacks}
	for _, it := range items {
		p := res.Positions[it.ID]
		rep.Windows = append(rep.Windows, placedWindow{
			ID: it.ID, X: p.X, Y: p.Y, Width: it.Size.Width, Height: it.Size.Height, Pinned: pinned[it.ID],
		})
	}
	sort.SliceStable(rep.Windows, func(i, j int) bool { return rep.Windows[i].Y < rep.Windows[j].Y })

	if cmd.Bool("json") {
		return r.writeJSON(rep)
	}
	if err := r.writePlain("%s %.0fx%.0f footer=%.0f fallbacks=%d\n",
		page, layout.ViewportWidth, layout.ViewportHeight, layout.FooterHeight, res.Fallbacks); err != nil {
		return err
	}
	for _, w := range rep.Windows {
		mark := ""
		if w.Pinned {
			mark = " pinned"
		}
		if err := r.writePlain("  %-22s %6.0f,%-6.0f %4.0fx%-4.0f%s\n", w.ID, w.X, w.Y, w.Width, w.Height, mark); err != nil {
			return err
		}
	}
	return nil
}
