package project

import (
	"slices"
	"strings"

	"github.com/rotisserie/eris"
)

// Build targets. Selection is by exclusion: naming "android" leaves out
// every iOS project, naming "sdk" leaves out the TestApp bindings.
const (
	TargetSDK      = "sdk"
	TargetTest     = "test"
	TargetExample  = "example"
	TargetNuget    = "nuget"
	TargetAndroid  = "android"
	TargetIOS      = "ios"
	TargetBindings = "bindings"
	TargetAll      = "all"
)

// BuildTargets lists every accepted build target.
var BuildTargets = []string{
	TargetSDK, TargetTest, TargetExample, TargetNuget,
	TargetAndroid, TargetIOS, TargetBindings, TargetAll,
}

// Targets is the set of build targets named on the command line.
type Targets []string

// ParseTargets validates names against BuildTargets. No names means all.
func ParseTargets(names []string) (Targets, error) {
	if len(names) == 0 {
		return Targets{TargetAll}, nil
	}
	out := make(Targets, 0, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if !slices.Contains(BuildTargets, n) {
			return nil, eris.Errorf("invalid target %q (choose from %s)", n, strings.Join(BuildTargets, ", "))
		}
		if !slices.Contains(out, n) {
			out = append(out, n)
		}
	}
	return out, nil
}

// Has reports whether name was selected.
func (t Targets) Has(name string) bool {
	return slices.Contains(t, name)
}

func (t Targets) String() string {
	quoted := make([]string, len(t))
	for i, n := range t {
		quoted[i] = "'" + n + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// Bindings returns the binding projects selected by t, SDK bindings first.
func (t Targets) Bindings() []Project {
	var out []Project
	if !t.Has(TargetTest) {
		out = append(out, t.platforms(AndroidSDKBinding, IOSSDKBinding)...)
	}
	if !t.Has(TargetSDK) {
		out = append(out, t.platforms(AndroidTestBinding, IOSTestBinding)...)
	}
	return out
}

// Apps returns the application projects selected by t.
func (t Targets) Apps() []Project {
	var out []Project
	if !t.Has(TargetExample) {
		out = append(out, TestApp)
	}
	if !t.Has(TargetTest) {
		if t.Has(TargetNuget) {
			out = append(out, ExampleAppNuget)
		} else {
			out = append(out, ExampleApp)
		}
	}
	return out
}

// CleanDirs returns the repository-relative directories whose build
// output t selects for removal. "." stands for the whole repository.
func (t Targets) CleanDirs() []string {
	var out []string
	if t.Has(TargetAll) {
		out = append(out, ".")
	}
	if t.Has(TargetBindings) {
		if !t.Has(TargetSDK) {
			out = append(out, dirs(t.platformsReversed(AndroidTestBinding, IOSTestBinding))...)
		}
		if !t.Has(TargetTest) {
			out = append(out, dirs(t.platformsReversed(AndroidSDKBinding, IOSSDKBinding))...)
		}
	}
	if t.Has(TargetSDK) {
		out = append(out, SDK.Dir())
	}
	if t.Has(TargetTest) {
		out = append(out, TestApp.Dir())
	}
	if t.Has(TargetExample) {
		out = append(out, ExampleApp.Dir())
	}
	return out
}

func (t Targets) platforms(android, ios Project) []Project {
	var out []Project
	if !t.Has(TargetIOS) {
		out = append(out, android)
	}
	if !t.Has(TargetAndroid) {
		out = append(out, ios)
	}
	return out
}

// platformsReversed keeps the cleaning order of the release scripts,
// which visit iOS before Android.
func (t Targets) platformsReversed(android, ios Project) []Project {
	p := t.platforms(android, ios)
	slices.Reverse(p)
	return p
}

func dirs(projects []Project) []string {
	out := make([]string, len(projects))
	for i, p := range projects {
		out[i] = p.Dir()
	}
	return out
}

// Apps accepted by the run command.
const (
	AppTest    = "test"
	AppExample = "example"
)

// AppProject maps an app name to its project.
func AppProject(app string) (Project, error) {
	switch app {
	case AppTest:
		return TestApp, nil
	case AppExample:
		return ExampleApp, nil
	}
	return Project{}, eris.Errorf("unknown app %q (expected %q or %q)", app, AppTest, AppExample)
}

// Configuration is the MSBuild configuration.
type Configuration string

const (
	Debug   Configuration = "Debug"
	Release Configuration = "Release"
)

// ParseConfiguration accepts Debug or Release in any case.
func ParseConfiguration(s string) (Configuration, error) {
	switch strings.ToLower(s) {
	case "debug":
		return Debug, nil
	case "release":
		return Release, nil
	}
	return "", eris.Errorf("invalid configuration %q (expected Debug or Release)", s)
}

// ConfigurationOf picks Release when release is set, Debug otherwise.
func ConfigurationOf(release bool) Configuration {
	if release {
		return Release
	}
	return Debug
}

// Toolchain is a target framework prefix such as net8.0.
type Toolchain string

// For returns the platform framework moniker, e.g. net8.0-android.
func (tc Toolchain) For(p Platform) string {
	return string(tc) + "-" + string(p)
}

// BuildArgs returns the flags pinning project p to this toolchain. Single
// platform projects get -f; multi-targeted ones get both frameworks, with
// the separator escaped for MSBuild.
func (tc Toolchain) BuildArgs(p Project) []string {
	if tc == "" {
		return nil
	}
	if p.Platform != Multi {
		return []string{"-f", tc.For(p.Platform)}
	}
	return []string{"-p:TargetFrameworks=" + tc.For(Android) + "%3B" + tc.For(IOS)}
}
