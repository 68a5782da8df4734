package main

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/adjust/mauidev"
	"github.com/adjust/mauidev/internal/config"
	"github.com/adjust/mauidev/internal/project"
	"github.com/adjust/mauidev/internal/workflow"
	"github.com/spf13/cobra"
)

func newBuildCmd(a *app) *cobra.Command {
	var (
		release bool
		dry     bool
		dotnet  string
	)
	cmd := &cobra.Command{
		Use:   "build <command> [targets...]",
		Short: "Clean and build the MAUI projects",
		Long: `Commands:
  clean           remove bin/ and obj/ directories
  clean_bindings  clean, then build the bindings
  clean_sdk       clean, then build the SDK
  clean_apps      clean, then build the apps
  clean_all       clean, then build everything
  bindings        build the SDK and TestApp bindings
  sdk             build the SDK
  apps            build TestApp and ExampleApp
  all             build bindings, SDK and apps

Targets narrow what is built (default all):
  sdk, test, example, nuget, android, ios, bindings, all`,
		Args:      cobra.MinimumNArgs(1),
		ValidArgs: workflow.BuildCommands,
		RunE: func(cmd *cobra.Command, args []string) error {
			targets, err := project.ParseTargets(args[1:])
			if err != nil {
				return workflow.UsageError{Msg: err.Error()}
			}
			e, err := a.open(os.Stdout)
			if err != nil {
				return err
			}
			if dotnet != "" {
				e.Toolchain = project.Toolchain(dotnet)
			}
			_, err = e.Build(cmd.Context(), workflow.BuildOptions{
				Command:       args[0],
				Targets:       targets,
				Configuration: project.ConfigurationOf(release),
				Dry:           dry,
			})
			return err
		},
	}
	cmd.Flags().BoolVar(&release, "release", false, "build Release (default Debug)")
	cmd.Flags().BoolVar(&dry, "dry", false, "only list the bin/ and obj/ directories a clean would remove")
	cmd.Flags().StringVar(&dotnet, "dotnet", "", "target framework prefix to pin, e.g. net9.0 (default $"+config.EnvDotnet+" or dotnet in "+config.FileName+")")
	return cmd
}

func newPublishCmd(a *app) *cobra.Command {
	var debug bool
	cmd := &cobra.Command{
		Use:   "publish [pack|copy|clean] [core|oaid|meta_referrer|all]",
		Short: "Pack NuGet packages and install them into the local feed",
		Long: `Without a step, publish packs the packages, copies them to the local NuGet
source, and removes installed copies from the global packages folder so the
next restore picks up the fresh build. The target defaults to core.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := publishOptions(args)
			if err != nil {
				return err
			}
			if debug {
				opts.Configuration = project.Debug
			}
			e, err := a.open(os.Stdout)
			if err != nil {
				return err
			}
			_, err = e.Publish(cmd.Context(), opts)
			return err
		},
	}
	cmd.Flags().BoolVar(&debug, "debug", false, "pack Debug (default Release)")
	return cmd
}

// publishOptions reads the optional step and target. A lone argument that
// is not a step is taken as the target.
func publishOptions(args []string) (workflow.PublishOptions, error) {
	steps := []string{workflow.PublishPack, workflow.PublishCopy, workflow.PublishClean}
	var opts workflow.PublishOptions
	switch len(args) {
	case 1:
		if slices.Contains(steps, args[0]) {
			opts.Step = args[0]
		} else {
			opts.Target = args[0]
		}
	case 2:
		opts.Step, opts.Target = args[0], args[1]
	}
	if opts.Target != "" && !slices.Contains(project.PublishTargets, opts.Target) {
		return opts, workflow.UsageError{Msg: fmt.Sprintf("invalid target %q (choose from %s)", opts.Target, strings.Join(project.PublishTargets, ", "))}
	}
	return opts, nil
}

func newRunCmd(a *app) *cobra.Command {
	run := &cobra.Command{
		Use:   "run",
		Short: "Run TestApp or ExampleApp on an emulator or simulator",
	}

	var (
		androidCfg string
		avd        string
	)
	android := &cobra.Command{
		Use:       "android <test|example>",
		Short:     "Boot an Android emulator and run the app on it",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{project.AppTest, project.AppExample},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := project.ParseConfiguration(androidCfg)
			if err != nil {
				return workflow.UsageError{Msg: err.Error()}
			}
			e, err := a.open(os.Stdout)
			if err != nil {
				return err
			}
			_, err = e.RunAndroid(cmd.Context(), workflow.LaunchOptions{App: args[0], Configuration: cfg, Device: avd})
			return err
		},
	}
	android.Flags().StringVarP(&androidCfg, "config", "c", string(project.Debug), "build configuration: Debug or Release")
	android.Flags().StringVar(&avd, "avd", "", "Android virtual device (default $ANDROID_AVD or android.avd)")

	var (
		iosCfg string
		sim    string
	)
	ios := &cobra.Command{
		Use:       "ios <test|example>",
		Short:     "Boot an iOS simulator and run the app on it",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{project.AppTest, project.AppExample},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := project.ParseConfiguration(iosCfg)
			if err != nil {
				return workflow.UsageError{Msg: err.Error()}
			}
			e, err := a.open(os.Stdout)
			if err != nil {
				return err
			}
			_, err = e.RunIOS(cmd.Context(), workflow.LaunchOptions{App: args[0], Configuration: cfg, Device: sim})
			return err
		},
	}
	ios.Flags().StringVarP(&iosCfg, "config", "c", string(project.Debug), "build configuration: Debug or Release")
	ios.Flags().StringVar(&sim, "ios-sim", "", "simulator name (default $IOS_SIM or ios.simulator)")

	listAVDs := &cobra.Command{
		Use:   "list-avds",
		Short: "List Android virtual devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.open(os.Stdout)
			if err != nil {
				return err
			}
			return e.ListAVDs(cmd.Context())
		},
	}
	listSims := &cobra.Command{
		Use:   "list-sims",
		Short: "List available iOS simulators",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.open(os.Stdout)
			if err != nil {
				return err
			}
			return e.ListSims(cmd.Context())
		},
	}

	run.AddCommand(android, ios, listAVDs, listSims)
	return run
}

func newLibsCmd(a *app) *cobra.Command {
	libs := &cobra.Command{
		Use:   "libs",
		Short: "Build the native SDK libraries the bindings wrap",
	}
	var release bool
	android := &cobra.Command{
		Use:   "android",
		Short: "Build the Android AAR with Gradle and copy it into the binding",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.open(os.Stdout)
			if err != nil {
				return err
			}
			_, err = e.BuildAndroidAAR(cmd.Context(), project.ConfigurationOf(release))
			return err
		},
	}
	android.Flags().BoolVar(&release, "release", false, "build Release (default Debug)")
	libs.AddCommand(android)
	return libs
}

func newHistoryCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "history [run-id|latest]",
		Short: "List recorded runs, or show one of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.open(os.Stdout)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				runs, err := e.Store.List()
				if err != nil {
					return err
				}
				printRuns(cmd.OutOrStdout(), runs)
				return nil
			}
			rr, err := e.Store.Load(args[0])
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rr)
			}
			printRun(cmd.OutOrStdout(), rr)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the run report as JSON")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), mauidev.Version)
		},
	}
}
