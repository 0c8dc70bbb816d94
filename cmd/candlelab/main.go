// Command candlelab is an interactive candlestick chart viewer and
// labeller. It loads OHLCV data from parquet or CSV files, renders with
// Gio, and persists bar-range labels to DuckDB.
package main

import (
	"flag"
	stdlog "log" // Standard log for initial bootstrap
	"os"
	"sync"
	"time"

	"candlelab/go_src/configuration"
	"candlelab/go_src/data_loader"
	"candlelab/go_src/geometry"
	"candlelab/go_src/label_store"
	"candlelab/go_src/logging_helper"
	"candlelab/go_src/schema"
	"candlelab/go_src/style_manager"

	"gioui.org/app"
	"gioui.org/font/gofont"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/text"
	"gioui.org/unit"
	"gioui.org/widget/material"
	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
)

const (
	appName           = "candlelab"
	configPathEnvVar  = "CANDLELAB_CONFIG_PATH"
	defaultConfigPath = "./config/config.json"
)

type chartApp struct {
	mu     sync.Mutex
	chart  *ChartWidget
	status string

	labels  *label_store.Store
	style   schema.StyleConfig
	geomCfg geometry.Config
}

func main() {
	stdlog.Printf("Starting %s application...", appName)

	var configPath, dataPath string
	flag.StringVar(&configPath, "config", "", "path to the JSON config file")
	flag.StringVar(&dataPath, "data", "", "OHLCV file to open (.parquet or .csv)")
	flag.Parse()
	if configPath == "" {
		configPath = os.Getenv(configPathEnvVar)
	}
	if configPath == "" {
		configPath = defaultConfigPath
	}
	if dataPath == "" && flag.NArg() > 0 {
		dataPath = flag.Arg(0)
	}

	cfg, err := configuration.LoadConfig(configPath)
	if err != nil {
		stdlog.Printf("Could not load configuration from %s (%v), using defaults", configPath, err)
		cfg = configuration.DefaultConfig()
	}
	if err := cfg.ValidateConfig(); err != nil {
		stdlog.Fatalf("Invalid configuration: %v", err)
	}

	if err := logging_helper.SetupLogging(cfg, appName); err != nil {
		stdlog.Fatalf("Failed to setup logging: %v", err)
	}
	logrus.Info("Logging has been initialized.")

	style, err := style_manager.Load(cfg.StylePath)
	if err != nil {
		logrus.Warnf("Style load problem: %v", err)
	}

	labels := label_store.NewStore()
	labelDB, err := label_store.OpenDB(cfg.Labels.DBPath, false)
	if err != nil {
		logrus.Fatalf("Failed to open label database: %v", err)
	}
	if err := labelDB.LoadInto(labels); err != nil {
		logrus.Warnf("Could not load existing labels: %v", err)
	} else {
		logrus.Infof("Loaded %d labels from %s", labels.Len(), cfg.Labels.DBPath)
	}

	var autosave gocron.Scheduler
	if !cfg.Labels.AutosaveDisabled {
		autosave, err = label_store.StartAutosave(labels, labelDB, time.Duration(cfg.Labels.AutosaveSeconds)*time.Second)
		if err != nil {
			logrus.Fatalf("Failed to start label autosave: %v", err)
		}
	}

	loader := data_loader.NewLoader()
	if dataPath == "" {
		dataPath = cfg.Data.DefaultPath
	}

	state := &chartApp{
		labels: labels,
		style:  style,
		geomCfg: geometry.Config{
			PrimitiveBudget: cfg.Render.PrimitiveBudget,
			BodyWidthFrac:   cfg.Render.BodyWidthFrac,
		},
		status: "No data loaded. Start with -data <file.parquet|file.csv>.",
	}

	title := appName
	if dataPath != "" {
		title = data_loader.WindowTitle(dataPath)
		state.status = "Loading " + dataPath + "..."
		loader.Load(dataPath)
	}

	w := app.NewWindow(
		app.Title(title),
		app.Size(unit.Dp(1200), unit.Dp(800)),
	)

	// Loader results arrive off the UI thread; stash them and wake the
	// window.
	go func() {
		for res := range loader.Results() {
			state.mu.Lock()
			if res.Err != nil {
				state.status = "Load failed: " + res.Err.Error()
				logrus.Errorf("Failed to load %s: %v", res.Path, res.Err)
			} else {
				state.chart = NewChartWidget(res.Series, labels, state.style, state.geomCfg)
				state.status = ""
				logrus.Infof("Displaying %d bars from %s", res.Series.Len(), res.Path)
			}
			state.mu.Unlock()
			w.Invalidate()
		}
	}()

	go func() {
		err := runWindow(w, state)

		loader.Close()
		if autosave != nil {
			if shutdownErr := autosave.Shutdown(); shutdownErr != nil {
				logrus.Warnf("Autosave shutdown: %v", shutdownErr)
			}
		}
		if labels.Dirty() {
			if saveErr := labelDB.Save(labels); saveErr != nil {
				logrus.Errorf("Final label save failed: %v", saveErr)
			} else {
				logrus.Infof("Saved %d labels on exit", labels.Len())
			}
		}
		// os.Exit below skips deferred calls, so close the database here.
		if closeErr := labelDB.Close(); closeErr != nil {
			logrus.Warnf("Label database close: %v", closeErr)
		}

		if err != nil {
			logrus.Fatalf("Window error: %v", err)
		}
		logrus.Infof("-------------------------------- Stopped %s application --------------------------------", appName)
		os.Exit(0)
	}()

	app.Main()
}

func runWindow(w *app.Window, state *chartApp) error {
	th := material.NewTheme()
	th.Shaper = text.NewShaper(text.WithCollection(gofont.Collection()))
	var ops op.Ops

	for {
		switch e := w.NextEvent().(type) {
		case app.DestroyEvent:
			return e.Err
		case app.FrameEvent:
			gtx := app.NewContext(&ops, e)
			state.layout(gtx, th)
			e.Frame(gtx.Ops)
		}
	}
}

func (a *chartApp) layout(gtx layout.Context, th *material.Theme) layout.Dimensions {
	a.mu.Lock()
	chart := a.chart
	status := a.status
	a.mu.Unlock()

	if chart == nil {
		return layout.Center.Layout(gtx, material.Body1(th, status).Layout)
	}
	return chart.Layout(gtx, th)
}
