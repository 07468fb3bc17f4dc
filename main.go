package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"vocalscript/audio"
	"vocalscript/beep"
	"vocalscript/config"
	"vocalscript/doctor"
	"vocalscript/log"
	"vocalscript/recorder"
	"vocalscript/shutdown"
	"vocalscript/transcriber"
	"vocalscript/ui"
	"vocalscript/web"
)

var version = "dev"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "serve" {
		os.Exit(serve(os.Args[2:]))
	}
	os.Exit(run(os.Args[1:]))
}

// initLogDir resolves the log directory and routes fatal crash output to
// crash_log.txt inside it.
func initLogDir(logPathFlag string) {
	logPath, err := log.ResolveDir(logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)

	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
		return
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}
}

func loadConfig(path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func newClient(cfg *config.Config) *transcriber.Client {
	client, err := transcriber.New(cfg.TranscriberConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return client
}

func run(args []string) int {
	fs := flag.NewFlagSet("vocalscript", flag.ExitOnError)
	configFlag := fs.String("config", "", "Config file (default: ./vocalscript.yml or the user config dir)")
	logPathFlag := fs.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	deviceFlag := fs.String("device", "", "Use named microphone device (substring match)")
	setupFlag := fs.Bool("setup", false, "Select microphone device interactively")
	testFlag := fs.String("test", "", "Test mode: replay an audio file, commands on stdin (headless)")
	doctorFlag := fs.Bool("doctor", false, "Run system diagnostics and exit")
	versionFlag := fs.Bool("version", false, "Print version and exit")
	profileFlag := fs.String("profile", "", "Enable pprof profiling server (e.g., localhost:6060)")
	beepFlag := fs.Bool("beep", true, "Play a tone when recording starts, stops or fails")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: vocalscript [flags]\n       vocalscript serve [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	if *versionFlag {
		fmt.Printf("vocalscript %s\n", version)
		return 0
	}

	initLogDir(*logPathFlag)
	cfg := loadConfig(*configFlag)

	if *profileFlag != "" {
		go func() {
			fmt.Fprintf(os.Stderr, "pprof server listening on http://%s/debug/pprof/\n", *profileFlag)
			if err := http.ListenAndServe(*profileFlag, nil); err != nil {
				fmt.Fprintf(os.Stderr, "pprof server error: %v\n", err)
			}
		}()
	}

	if *doctorFlag {
		return doctor.Run(cfg, *deviceFlag)
	}

	if err := log.Init(nil); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	client := newClient(cfg)
	ctx, stop := shutdown.Context(context.Background())
	defer stop()

	if !*beepFlag {
		beep.Disable()
	}

	if *testFlag != "" {
		beep.Disable()
		log.SessionStart("test", "app://localhost", client.Name())
		if err := runTestMode(ctx, *testFlag, client, cfg.RecorderConfig(), os.Stdin, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	native, err := audio.NewNativeContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing audio: %v\n", err)
		return 1
	}
	defer native.Close()

	switch {
	case *deviceFlag != "":
		dev, err := audio.FindDevice(native, *deviceFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		native.UseDevice(dev)
	case *setupFlag:
		dev, err := audio.SelectDevice(native)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Println("Falling back to default device")
		}
		native.UseDevice(dev)
	}

	return runTUI(ctx, native, client, cfg.RecorderConfig())
}

func runTUI(ctx context.Context, native *audio.NativeContext, client *transcriber.Client, recCfg recorder.Config) int {
	// events only flow once Run starts, after the program is attached
	sink := &programSink{}
	ctrl := recorder.New(native, client, cueSink{next: sink, play: beep.Play}, recCfg)
	p := ctrl.Probe()

	modeLine := fmt.Sprintf("[%s | %s]", p.Encoding, client.Name())
	deviceLine := "mic: " + native.DeviceName()
	prog := NewTUIProgram(newTUIModel(ui.New(p), ctrl, modeLine, deviceLine))
	sink.p = prog

	log.SessionStart("tui", native.Origin().String(), client.Name())
	client.Warm()

	ctx, cancel := context.WithCancel(ctx)
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		ctrl.Run(ctx)
	}()
	go func() {
		<-ctx.Done()
		prog.Quit()
	}()

	_, err := prog.Run()
	cancel()
	<-runDone
	log.SessionEnd(ctrl.Recordings())
	if err != nil {
		log.Errorf("TUI error: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func serve(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configFlag := fs.String("config", "", "Config file (default: ./vocalscript.yml or the user config dir)")
	logPathFlag := fs.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	addrFlag := fs.String("addr", "", "Listen address (overrides server.addr)")
	fs.Parse(args)

	initLogDir(*logPathFlag)
	cfg := loadConfig(*configFlag)
	if *addrFlag != "" {
		cfg.Server.Addr = *addrFlag
	}

	if err := log.Init(os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	client := newClient(cfg)
	ctx, stop := shutdown.Context(context.Background())
	defer stop()

	srv := web.NewServer(cfg.Server, cfg.RecorderConfig(), client, client.Name())
	if err := srv.ListenAndServe(ctx); err != nil {
		log.Errorf("server: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
