package workflow

import (
	"context"
	"os"
	"time"

	"github.com/adjust/mauidev/internal/project"
	"github.com/adjust/mauidev/internal/report"
	"github.com/adjust/mauidev/internal/runner"
	"github.com/buger/jsonparser"
	"github.com/schollz/progressbar/v3"
)

// LaunchOptions selects the app and device for RunAndroid and RunIOS.
type LaunchOptions struct {
	App           string // test or example
	Configuration project.Configuration
	Device        string // AVD or simulator name; "" uses the configured one
}

func (o LaunchOptions) configuration() project.Configuration {
	if o.Configuration == "" {
		return project.Debug
	}
	return o.Configuration
}

// launchToolchain is the framework prefix for device builds, which always
// need a concrete platform framework.
func (e *Engine) launchToolchain() project.Toolchain {
	if e.Toolchain != "" {
		return e.Toolchain
	}
	return project.Toolchain(e.Config.Toolchain())
}

// RunAndroid boots an emulator and deploys the app to it.
func (e *Engine) RunAndroid(ctx context.Context, opts LaunchOptions) (*report.RunResult, error) {
	app, err := project.AppProject(opts.App)
	if err != nil {
		return nil, UsageError{Msg: err.Error()}
	}
	cfg := opts.configuration()
	rec := e.begin(report.Launch, "android", []string{opts.App}, cfg)
	return rec.finish(e.runAndroid(ctx, rec, app, cfg, opts.Device))
}

func (e *Engine) runAndroid(ctx context.Context, rec *recorder, app project.Project, cfg project.Configuration, avd string) error {
	if _, err := e.requireFile(app.Path, app.Title+" project"); err != nil {
		return err
	}
	if avd == "" {
		avd = e.Config.AVD()
	}
	emulator, err := e.emulator()
	if err != nil {
		return err
	}

	e.say("Booting Android AVD: %s", avd)
	start := time.Now()
	err = e.Runner.Spawn(emulator, "-avd", avd, "-netdelay", "none", "-netspeed", "full", "-no-snapshot-load")
	if err := rec.note("Boot "+avd, start, err); err != nil {
		return err
	}
	if err := e.wait(ctx, e.Config.BootWait(), "waiting for "+avd); err != nil {
		return err
	}

	dotnet, err := e.ResolveTool("dotnet")
	if err != nil {
		return err
	}
	argv := []string{dotnet, "build", app.Path, "-c", string(cfg), "-f", e.launchToolchain().For(project.Android), "-t:Run"}
	return rec.exec(ctx, "Run "+app.Title+" on "+avd, runner.Invocation{Argv: argv})
}

// RunIOS boots a simulator and deploys the app to it.
func (e *Engine) RunIOS(ctx context.Context, opts LaunchOptions) (*report.RunResult, error) {
	app, err := project.AppProject(opts.App)
	if err != nil {
		return nil, UsageError{Msg: err.Error()}
	}
	cfg := opts.configuration()
	rec := e.begin(report.Launch, "ios", []string{opts.App}, cfg)
	return rec.finish(e.runIOS(ctx, rec, app, cfg, opts.Device))
}

func (e *Engine) runIOS(ctx context.Context, rec *recorder, app project.Project, cfg project.Configuration, sim string) error {
	if _, err := e.requireFile(app.Path, app.Title+" project"); err != nil {
		return err
	}
	if sim == "" {
		sim = e.Config.Simulator()
	}
	if err := e.bootSimulator(ctx, rec, sim); err != nil {
		return err
	}
	udid := e.simulatorUDID(ctx, sim)

	dotnet, err := e.ResolveTool("dotnet")
	if err != nil {
		return err
	}
	argv := []string{
		dotnet, "build", app.Path, "-c", string(cfg),
		"-f", e.launchToolchain().For(project.IOS),
		"-p:RuntimeIdentifier=" + e.Config.RuntimeIdentifier(),
	}
	if udid != "" {
		argv = append(argv, "-p:_DeviceName=:v2:udid="+udid)
	}
	argv = append(argv, "-t:Run")
	return rec.exec(ctx, "Run "+app.Title+" on "+sim, runner.Invocation{Argv: argv})
}

func (e *Engine) bootSimulator(ctx context.Context, rec *recorder, sim string) error {
	if !e.HasTool("xcrun") {
		return NewErrToolUnavailable("xcrun")
	}
	code, err := rec.try(ctx, "xcrun version", runner.Invocation{Argv: []string{"xcrun", "--version"}})
	if err != nil {
		return err
	}
	if code != 0 {
		return NewErrToolUnavailable("xcrun")
	}

	e.say("Booting iOS Simulator: %s", sim)
	// bootstatus -b boots and waits on newer Xcode; older ones only know boot.
	code, err = rec.try(ctx, "Boot "+sim, runner.Invocation{Argv: []string{"xcrun", "simctl", "bootstatus", sim, "-b"}})
	if err != nil {
		return err
	}
	if code != 0 {
		if _, err := rec.try(ctx, "Boot "+sim, runner.Invocation{Argv: []string{"xcrun", "simctl", "boot", sim}}); err != nil {
			return err
		}
	}
	_, err = rec.try(ctx, "Open Simulator", runner.Invocation{Argv: []string{"open", "-a", "Simulator"}})
	return err
}

// simulatorUDID looks sim up in simctl's device list. Failures only cost
// the explicit device selection, so they are logged and yield "".
func (e *Engine) simulatorUDID(ctx context.Context, sim string) string {
	out, err := e.Runner.Output(ctx, "xcrun", "simctl", "list", "devices", "available", "--json")
	if err != nil {
		e.Log.Debug().Err(err).Msg("listing simulators")
		return ""
	}
	return findSimulatorUDID(out, sim)
}

// findSimulatorUDID returns the UDID of the device named name in simctl's
// JSON listing, preferring a booted one.
func findSimulatorUDID(data []byte, name string) string {
	var booted, other string
	_ = jsonparser.ObjectEach(data, func(_ []byte, devices []byte, dt jsonparser.ValueType, _ int) error {
		if dt != jsonparser.Array {
			return nil
		}
		_, _ = jsonparser.ArrayEach(devices, func(dev []byte, _ jsonparser.ValueType, _ int, _ error) {
			if n, _ := jsonparser.GetString(dev, "name"); n != name {
				return
			}
			udid, _ := jsonparser.GetString(dev, "udid")
			if udid == "" {
				return
			}
			state, _ := jsonparser.GetString(dev, "state")
			switch {
			case state == "Booted" && booted == "":
				booted = udid
			case other == "":
				other = udid
			}
		})
		return nil
	}, "devices")
	if booted != "" {
		return booted
	}
	return other
}

// ListAVDs prints the Android virtual devices the emulator knows.
func (e *Engine) ListAVDs(ctx context.Context) error {
	emulator, err := e.emulator()
	if err != nil {
		e.say("Android emulator not found.")
		return nil
	}
	_, err = e.Runner.Try(ctx, runner.Invocation{Argv: []string{emulator, "-list-avds"}})
	return err
}

// ListSims prints the available iOS simulators.
func (e *Engine) ListSims(ctx context.Context) error {
	if !e.HasTool("xcrun") {
		return NewErrToolUnavailable("xcrun")
	}
	_, err := e.Runner.Try(ctx, runner.Invocation{Argv: []string{"xcrun", "simctl", "list", "devices", "available"}})
	return err
}

// emulator locates the Android emulator: configured path, PATH, then the
// SDK locations Android Studio uses.
func (e *Engine) emulator() (string, error) {
	if p := e.Config.Android.Emulator; p != "" {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return e.ResolveTool("emulator",
		joinIf(os.Getenv("ANDROID_HOME"), "emulator", "emulator"),
		joinIf(os.Getenv("ANDROID_SDK_ROOT"), "emulator", "emulator"),
		joinIf(homeDir(), "Library", "Android", "sdk", "emulator", "emulator"),
		joinIf(homeDir(), "Android", "Sdk", "emulator", "emulator"),
	)
}

// wait pauses for d while showing a spinner, returning early on
// cancellation.
func (e *Engine) wait(ctx context.Context, d time.Duration, desc string) error {
	if d <= 0 {
		return ctx.Err()
	}
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(e.out()),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	defer func() { _ = bar.Finish() }()

	done := time.NewTimer(d)
	defer done.Stop()
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done.C:
			return nil
		case <-tick.C:
			_ = bar.Add(1)
		}
	}
}
