package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
	"golang.org/x/sync/errgroup"

	"github.com/cbegin/loopcode"
	"github.com/cbegin/loopcode/internal/config"
	"github.com/cbegin/loopcode/internal/midiout"
	"github.com/cbegin/loopcode/internal/server"
	"github.com/cbegin/loopcode/internal/store"
	"github.com/cbegin/loopcode/internal/tui"
)

const audioBuffer = 50 * time.Millisecond

func main() {
	os.Exit(run(os.Args[1:]))
}

// run is the whole program. It returns the exit status so deferred
// cleanup runs before the process exits.
func run(args []string) int {
	fs := flag.NewFlagSet("loopcode", flag.ContinueOnError)
	var (
		configPath = fs.String("config", config.DefaultPath(), "path to the JSON config file")
		port       = fs.Int("port", 0, "HTTP port; the next free port is used when taken (overrides config)")
		host       = fs.String("host", "127.0.0.1", "HTTP listen address")
		useTUI     = fs.Bool("tui", false, "run the terminal front end")
		midiPort   = fs.String("midi", "", "send events to the MIDI output whose name contains this (overrides config)")
		listMIDI   = fs.Bool("list-midi", false, "list MIDI output ports and exit")
		codePath   = fs.String("code", "", "file evaluated at startup (defaults to the saved editor code)")
		renderPath = fs.String("render", "", "render the code to this WAV file and exit")
		cycles     = fs.Int("cycles", 4, "cycles to render with -render")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *listMIDI {
		ports, err := midiout.Ports()
		if err != nil {
			return fatal(err)
		}
		for i, name := range ports {
			fmt.Printf("%d: %s\n", i, name)
		}
		return 0
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fatal(err)
	}
	if *port > 0 {
		cfg.Port = *port
	}
	if *midiPort != "" {
		cfg.MIDIPort = *midiPort
	}

	logger, closeLog, err := newLogger(cfg, *useTUI)
	if err != nil {
		return fatal(err)
	}
	defer closeLog()
	slog.SetDefault(logger)

	st, err := store.New(cfg.DataDir)
	if err != nil {
		return fatal(err)
	}

	opts := []loopcode.Option{
		loopcode.WithBPM(cfg.BPM),
		loopcode.WithSampleRate(cfg.SampleRate),
		loopcode.WithSampleDir(cfg.SampleDir),
		loopcode.WithSampleOnly(cfg.SampleOnly),
		loopcode.WithPolyphony(cfg.Polyphony),
		loopcode.WithMasterVolume(cfg.MasterVolume),
		loopcode.WithLogger(logger),
	}
	var midiTrigger *midiout.Trigger
	if cfg.MIDIPort != "" && *renderPath == "" {
		midiTrigger, err = midiout.Open(cfg.MIDIPort, midiout.WithLogger(logger))
		if err != nil {
			return fatal(err)
		}
		defer midiTrigger.Close()
		opts = append(opts, loopcode.WithTrigger(midiTrigger))
	}

	app, err := loopcode.New(opts...)
	if err != nil {
		return fatal(err)
	}

	code, err := startupCode(*codePath, st)
	if err != nil {
		return fatal(err)
	}
	for _, res := range app.EvaluateAll(code) {
		if !res.Success {
			logger.Warn("startup code failed", "line", res.Line, "message", res.Message)
		}
	}

	if *renderPath != "" {
		if err := app.RenderWAV(*renderPath, *cycles); err != nil {
			return fatal(err)
		}
		logger.Info("rendered", "file", *renderPath, "cycles", *cycles, "bpm", app.BPM())
		return 0
	}

	if missing := app.MissingSamples(); len(missing) > 0 {
		logger.Info("sounds without samples", "sounds", strings.Join(missing, " "))
	}
	if midiTrigger == nil {
		if err := app.OpenAudio(audioBuffer); err != nil {
			return fatal(err)
		}
	}
	defer app.Close()

	ln, err := server.Listen(*host, cfg.Port)
	if err != nil {
		return fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Serve(ctx, ln, server.New(app, st, logger), logger)
	})
	if *useTUI {
		events := app.Watch()
		g.Go(func() error {
			defer stop()
			return tui.Run(ctx, app, events)
		})
	} else {
		fmt.Printf("loopcode listening on http://%s\n", ln.Addr())
	}
	if err := g.Wait(); err != nil {
		logger.Error("exiting", "err", err)
		return 1
	}
	return 0
}

// fatal logs err and returns the failure status. Once run has installed
// its logger, log output goes through it.
func fatal(err error) int {
	log.Print(err)
	return 1
}

func newLogger(cfg config.Config, quiet bool) (*slog.Logger, func(), error) {
	var w io.Writer = os.Stderr
	closeFn := func() {}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		w = f
		closeFn = func() { f.Close() }
	} else if quiet {
		w = io.Discard
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})), closeFn, nil
}

func startupCode(path string, st *store.Store) (string, error) {
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return st.LoadCode()
}
