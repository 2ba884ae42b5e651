package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/PuerkitoBio/goquery"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/saintjustus/windowshell/internal/dom"
	"github.com/saintjustus/windowshell/internal/domain/manifest"
	"github.com/saintjustus/windowshell/internal/domain/navigation"
	"github.com/saintjustus/windowshell/internal/domain/placement"
	"github.com/saintjustus/windowshell/internal/domain/scene"
	"github.com/saintjustus/windowshell/internal/domain/session"
	"github.com/saintjustus/windowshell/internal/domain/window"
	"github.com/saintjustus/windowshell/internal/infrastructure/httpclient"
	"github.com/saintjustus/windowshell/internal/infrastructure/logging"
	"github.com/saintjustus/windowshell/internal/infrastructure/monitoring"
	"github.com/saintjustus/windowshell/internal/infrastructure/scheduler"
	"github.com/saintjustus/windowshell/internal/shared/events"
	"github.com/saintjustus/windowshell/internal/shared/types"
)

type windowReport struct {
	ID     string  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Z      int     `json:"z"`
}

type stepReport struct {
	Path     string         `json:"path"`
	Outcome  string         `json:"outcome"`
	Error    string         `json:"error,omitempty"`
	Page     string         `json:"page"`
	Title    string         `json:"title"`
	Assigned string         `json:"assigned,omitempty"`
	Windows  []windowReport `json:"windows,omitempty"`
}

func navigateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "navigate",
		Usage:     "Boot a served page and follow in-place navigations",
		ArgsUsage: "[path...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "page",
				Aliases:  []string{"p"},
				Usage:    "HTML document the server returned for the start path",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "base",
				Usage: "Site origin fragment requests go to",
				Value: r.config.Fetch.BaseURL,
			},
			&cli.StringFlag{
				Name:  "path",
				Usage: "Path the document was served at",
				Value: "/",
			},
			&cli.FloatFlag{Name: "width", Usage: "Viewport width", Value: 1280},
			&cli.FloatFlag{Name: "height", Usage: "Viewport height", Value: 800},
			&cli.StringFlag{
				Name:  "manifests",
				Usage: "Directory of window manifests overriding the built-in ones",
				Value: r.config.Shell.ManifestDir,
			},
			&cli.BoolFlag{
				Name:  "stub-scenes",
				Usage: "Mount a placeholder for scenes no module registered",
				Value: true,
			},
			&cli.BoolFlag{Name: "json", Usage: "Print the report as JSON"},
			&cli.BoolFlag{Name: "render", Usage: "Print the final document"},
		},
		Action: r.Navigate,
	}
}

// demo is one headless page session
type demo struct {
	doc     *dom.Document
	history *dom.MemoryHistory
	shell   *navigation.Shell
	modules *navigation.ModuleLoader
	session *session.Manager
	scenes  *scene.Registry
	cat     *manifest.Catalogue
	log     *logging.Logger
}

// Navigate boots the document, then navigates to each argument in turn.
func (r *Runner) Navigate(ctx context.Context, cmd *cli.Command) error {
	d, err := r.boot(cmd)
	if err != nil {
		return err
	}
	defer d.session.Close()

	payload, err := d.shell.Bootstrap()
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	if err := d.modules.Load(ctx, d.history.Location(), payload.Modules); err != nil {
		return fmt.Errorf("bootstrap modules: %w", err)
	}
	if cmd.Bool("stub-scenes") {
		d.stubScenes(payload.ID)
	}
	if err := d.session.Start(payload.ID); err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	steps := []stepReport{d.report(d.history.Location().Path, "bootstrap", nil)}
	for _, p := range cmd.Args().Slice() {
		outcome, err := d.shell.Navigate(ctx, p, navigation.Options{})
		steps = append(steps, d.report(p, string(outcome), err))
		if ctx.Err() != nil {
			break
		}
	}

	if cmd.Bool("json") {
		if err := r.writeJSON(steps); err != nil {
			return err
		}
	} else {
		for _, s := range steps {
			r.printStep(s)
		}
	}
	if cmd.Bool("render") {
		return r.writePlain("%s\n", d.doc.Render())
	}
	return nil
}

func (r *Runner) boot(cmd *cli.Command) (*demo, error) {
	data, err := os.Open(cmd.String("page"))
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer data.Close()
	doc, err := dom.Parse(data)
	if err != nil {
		return nil, err
	}
	doc.SetViewport(cmd.Float("width"), cmd.Float("height"))
	doc.MeasureFooter()

	base, err := url.Parse(cmd.String("base"))
	if err != nil {
		return nil, fmt.Errorf("parse base: %w", err)
	}
	ref, err := url.Parse(cmd.String("path"))
	if err != nil {
		return nil, fmt.Errorf("parse path: %w", err)
	}
	history, err := dom.NewMemoryHistory(base.ResolveReference(ref).String())
	if err != nil {
		return nil, err
	}

	cat, err := r.catalogue(cmd.String("manifests"))
	if err != nil {
		return nil, err
	}

	cfg := r.config
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	scenes := scene.NewRegistry()
	client := httpclient.New(httpclient.OptionsFromConfig(cfg.Fetch, r.log))
	runtime, err := navigation.NewRuntime(cfg.Modules.EvalTimeout, scenes, r.log)
	if err != nil {
		return nil, err
	}
	modules := navigation.NewModuleLoader(client, runtime, metrics, r.log)
	bus := events.NewBus()
	sched := scheduler.NewRealtime()

	shell, err := navigation.New(navigation.Config{
		Header: cfg.Shell.Header,
		Bypass: cfg.Shell.Bypass,
	}, navigation.Deps{
		Doc:     doc,
		History: history,
		Fetcher: navigation.NewFetcher(client, cfg.Shell.Header, metrics, r.log),
		Modules: modules,
		Bus:     bus,
		Sched:   sched,
		Metrics: metrics,
		Logger:  r.log,
	})
	if err != nil {
		return nil, err
	}

	d := &demo{
		doc:     doc,
		history: history,
		shell:   shell,
		modules: modules,
		scenes:  scenes,
		cat:     cat,
		log:     r.log.Named("demo"),
	}
	if cmd.Bool("stub-scenes") {
		bus.Subscribe(events.NameNavigationCompleted, func(e events.Event) {
			if ev, ok := e.(events.NavigationCompleted); ok {
				d.stubScenes(ev.PageID)
			}
		})
	}

	d.session = session.NewManager(session.Deps{
		Doc:       doc,
		Bus:       bus,
		Sched:     sched,
		Scenes:    scenes,
		Catalogue: cat,
		Metrics:   metrics,
		Logger:    r.log,
	}, session.Options{
		Window:       window.OptionsFromConfig(cfg.Window),
		Placement:    placement.OptionsFromConfig(cfg.Placement, cfg.Window),
		EmbedTimeout: cfg.Window.EmbedTimeout,
		RevealStep:   cfg.Reveal.Step,
		ZSeed:        cfg.Window.ZSeed,
	})
	d.session.Attach()
	return d, nil
}

// stubScenes registers a placeholder for every scene of pageID that no
// module provided.
func (d *demo) stubScenes(pageID string) {
	configs, _ := d.cat.Windows(pageID)
	for _, cfg := range configs {
		if cfg.Kind() != types.ContentScene || d.scenes.Has(cfg.SceneID) {
			continue
		}
		sceneID := cfg.SceneID
		err := d.scenes.Register(sceneID, func() scene.Mounter {
			return scene.MountFunc(func(_ context.Context, mc scene.MountContext) error {
				if mc.Canvas != nil {
					mc.Write(func() { dom.SetAttr(mc.Canvas, "data-scene", sceneID) })
				}
				return nil
			})
		})
		if err == nil {
			d.log.Debug("stubbed scene", zap.String("scene", sceneID))
		}
	}
}

func (d *demo) report(path, outcome string, err error) stepReport {
	s := stepReport{Path: path, Outcome: outcome}
	if err != nil && !errors.Is(err, navigation.ErrNavigationInFlight) {
		s.Error = err.Error()
	}
	if assigned := d.history.Assigned(); outcome == string(navigation.OutcomeReload) && len(assigned) > 0 {
		s.Assigned = assigned[len(assigned)-1]
	}
	d.doc.Do(func(*goquery.Document) {
		s.Page = d.doc.CurrentPage()
		s.Title = d.doc.Title()
	})
	if ctrl, ok := d.session.Controller(s.Page); ok {
		for _, w := range ctrl.Windows() {
			r := w.Rect()
			s.Windows = append(s.Windows, windowReport{ID: w.ID(), X: r.X, Y: r.Y, Width: r.Width, Height: r.Height, Z: w.Z()})
		}
	}
	return s
}

func (r *Runner) printStep(s stepReport) {
	_ = r.writePlain("%-10s %-20s page=%s title=%q\n", s.Outcome, s.Path, s.Page, s.Title)
	if s.Error != "" {
		_ = r.writePlain("  error: %s\n", s.Error)
	}
	if s.Assigned != "" {
		_ = r.writePlain("  full load: %s\n", s.Assigned)
	}
	for _, w := range s.Windows {
		_ = r.writePlain("  %-22s %6.0f,%-6.0f %4.0fx%-4.0f z=%d\n", w.ID, w.X, w.Y, w.Width, w.Height, w.Z)
	}
}
