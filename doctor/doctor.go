package doctor

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"vocalscript/audio"
	"vocalscript/clipboard"
	"vocalscript/config"
	"vocalscript/probe"
	"vocalscript/recorder"
	"vocalscript/shutdown"
	"vocalscript/transcriber"
	"vocalscript/ui"
)

const recordFor = 3 * time.Second

// capture stands in for the transcriber during the recording check and
// keeps what it was given for the transcription check.
type capture struct {
	mimeType string
	data     string
}

func (c *capture) Transcribe(_ context.Context, mimeType, data string, publish func(string)) (string, error) {
	c.mimeType, c.data = mimeType, data
	msg := fmt.Sprintf("%s, %.1f KB", mimeType, float64(len(data))*3/4/1024)
	publish(msg)
	return msg, nil
}

// Run executes interactive diagnostic checks and returns an exit code (0=all pass, 1=any fail).
func Run(cfg *config.Config, device string) int {
	resetTerminal()
	ctx, stop := shutdown.Context(context.Background())
	defer stop()

	fmt.Println("vocalscript doctor - interactive system diagnostics")
	fmt.Println("===================================================")

	native, err := audio.NewNativeContext()
	if err != nil {
		fmt.Printf("  FAIL: cannot connect to audio: %v\n", err)
		return 1
	}
	defer native.Close()

	if device != "" {
		d, err := audio.FindDevice(native, device)
		if err != nil {
			fmt.Printf("  FAIL: %v\n", err)
			return 1
		}
		native.UseDevice(d)
	}

	rec := &capture{}
	allPass := checkProbe(native, cfg) &&
		checkRecording(ctx, native, cfg, rec) &&
		checkTranscription(ctx, cfg, rec)
	if !checkClipboard() {
		allPass = false
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
		return 0
	}
	fmt.Println("Some checks failed. See details above.")
	return 1
}

func checkProbe(native *audio.NativeContext, cfg *config.Config) bool {
	fmt.Println()
	fmt.Println("[1/4] Capability probe")

	p := probe.Probe(native, cfg.Recording.Candidates)
	if err := p.Err(); err != nil {
		fmt.Printf("  FAIL: %s\n", ui.Message(err))
		return false
	}
	fmt.Printf("  PASS: recording as %s from %s\n", p.Encoding, native.DeviceName())
	return true
}

func checkRecording(ctx context.Context, native *audio.NativeContext, cfg *config.Config, rec *capture) bool {
	fmt.Println()
	fmt.Println("[2/4] Microphone")

	var state ui.State
	done := make(chan struct{}, 1)
	sink := recorder.SinkFunc(func(e recorder.Event) {
		state.Apply(e)
		if e.Kind == recorder.ProcessingFinished {
			done <- struct{}{}
		}
	})
	c := recorder.New(native, rec, sink, cfg.RecorderConfig())
	state = ui.New(c.Probe())
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go c.Run(runCtx)

	fmt.Print("Press Enter and speak for 3 seconds...")
	bufio.NewReader(os.Stdin).ReadString('\n')

	if err := c.Start(); err != nil {
		fmt.Printf("  FAIL: %s\n", ui.Message(err))
		return false
	}
	fmt.Print("  Recording")
	for range int(recordFor / (500 * time.Millisecond)) {
		time.Sleep(500 * time.Millisecond)
		fmt.Print(".")
	}
	if err := c.Stop(); err != nil {
		fmt.Printf("\n  FAIL: %v\n", err)
		return false
	}
	fmt.Println(" done")

	select {
	case <-done:
	case <-ctx.Done():
		return false
	}
	if state.Error != "" {
		fmt.Printf("  FAIL: %s\n", state.Error)
		return false
	}
	fmt.Printf("  PASS: captured %s\n", state.Text)
	return true
}

func checkTranscription(ctx context.Context, cfg *config.Config, rec *capture) bool {
	fmt.Println()
	fmt.Printf("[3/4] Transcription (%s)\n", cfg.Transcription.Provider)

	client, err := transcriber.New(cfg.TranscriberConfig())
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}

	start := time.Now()
	text, err := client.Transcribe(ctx, rec.mimeType, rec.data, nil)
	if err != nil {
		fmt.Printf("  FAIL: %s\n", ui.Message(err))
		return false
	}
	fmt.Printf("\n  Transcribed text (%s): %s\n\n", time.Since(start).Round(time.Millisecond), strings.TrimSpace(text))

	fmt.Print("Is this correct? [y/n]: ")
	confirm, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	confirm = strings.TrimSpace(strings.ToLower(confirm))
	if confirm == "y" || confirm == "yes" {
		fmt.Println("  PASS: transcription verified by user")
		return true
	}
	fmt.Println("  FAIL: transcription not confirmed")
	return false
}

func checkClipboard() bool {
	fmt.Println()
	fmt.Println("[4/4] Clipboard copy")

	testStr := fmt.Sprintf("vocalscript-doctor-%d", time.Now().UnixNano())

	type cbResult struct {
		readback string
		err      error
		phase    string
	}
	ch := make(chan cbResult, 1)
	go func() {
		if err := clipboard.Copy(testStr); err != nil {
			ch <- cbResult{err: err, phase: "write"}
			return
		}
		got, err := clipboard.Read()
		if err != nil {
			ch <- cbResult{err: err, phase: "read"}
			return
		}
		ch <- cbResult{readback: got}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			fmt.Printf("  FAIL: clipboard %s failed: %v\n", res.phase, res.err)
			return false
		}
		if res.readback != testStr {
			fmt.Printf("  FAIL: clipboard mismatch: wrote %q, got %q\n", testStr, res.readback)
			return false
		}
		fmt.Println("  PASS: clipboard write/read verified")
		return true
	case <-time.After(3 * time.Second):
		fmt.Println("  FAIL: clipboard timed out (is xclip, xsel or wl-copy installed?)")
		return false
	}
}
