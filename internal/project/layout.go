// Package project describes the Adjust MAUI repository: where its projects
// live, which targets the tooling accepts, and how its NuGet packages are
// named.
package project

import (
	"path/filepath"
	"strings"
)

// Platform is the platform a project compiles for.
type Platform string

const (
	Android Platform = "android"
	IOS     Platform = "ios"
	Multi   Platform = "" // multi-targeted, both platforms
)

// Project is a buildable csproj inside the repository.
type Project struct {
	Title    string   // shown in progress lines
	Path     string   // csproj path relative to the repository root
	Platform Platform // drives the explicit framework flag
}

// Dir returns the project directory relative to the repository root.
func (p Project) Dir() string {
	return filepath.Dir(p.Path)
}

// Layout resolves repository paths against Root.
type Layout struct {
	Root string
}

// Projects of the repository, relative to its root.
var (
	AndroidSDKBinding = Project{
		Title:    "Android SDK binding",
		Path:     filepath.Join("android", "AdjustSdk.AndroidBinding", "AdjustSdk.AndroidBinding.csproj"),
		Platform: Android,
	}
	IOSSDKBinding = Project{
		Title:    "iOS SDK binding",
		Path:     filepath.Join("iOs", "AdjustSdk.iOSBinding", "AdjustSdk.iOSBinding.csproj"),
		Platform: IOS,
	}
	AndroidTestBinding = Project{
		Title:    "Android TestApp binding",
		Path:     filepath.Join("android", "TestLibrary.AndroidBinding", "TestLibrary.AndroidBinding.csproj"),
		Platform: Android,
	}
	IOSTestBinding = Project{
		Title:    "iOS TestApp binding",
		Path:     filepath.Join("iOs", "TestLibrary.iOSBinding", "TestLibrary.iOSBinding.csproj"),
		Platform: IOS,
	}
	SDK = Project{
		Title: "SDK",
		Path:  filepath.Join("AdjustSdk", "AdjustSdk.csproj"),
	}
	TestApp = Project{
		Title: "TestApp",
		Path:  filepath.Join("testApp", "TestApp.csproj"),
	}
	ExampleApp = Project{
		Title: "ExampleApp",
		Path:  filepath.Join("ExampleApp", "ExampleApp.csproj"),
	}
	ExampleAppNuget = Project{
		Title: "ExampleApp (NuGet)",
		Path:  filepath.Join("ExampleApp", "ExampleApp-Nuget.csproj"),
	}
)

// All lists every project in build order.
var All = []Project{
	AndroidSDKBinding, IOSSDKBinding, AndroidTestBinding, IOSTestBinding,
	SDK, TestApp, ExampleApp, ExampleAppNuget,
}

// Android library build inputs and outputs.
var (
	AndroidSubmodule   = filepath.Join("android_sdk", "Adjust")
	AndroidBindingLibs = filepath.Join("android", "AdjustSdk.AndroidBinding", "libs")
	AndroidAARName     = "adjust-android.aar"
)

// ArtifactsDir holds packed nupkgs and run reports.
const ArtifactsDir = ".artifacts"

// Abs resolves a repository-relative path.
func (l Layout) Abs(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(l.Root, rel)
}

// Rel returns path relative to the root, or path itself when it lies
// outside.
func (l Layout) Rel(path string) string {
	rel, err := filepath.Rel(l.Root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return rel
}

// Artifacts returns the absolute artifacts directory.
func (l Layout) Artifacts() string {
	return l.Abs(ArtifactsDir)
}

// RunsDir returns where run reports are written.
func (l Layout) RunsDir() string {
	return filepath.Join(l.Artifacts(), "runs")
}

// Gradlew returns the Gradle wrapper of the Android submodule.
func (l Layout) Gradlew() string {
	return filepath.Join(l.Abs(AndroidSubmodule), "gradlew")
}

// AARCandidates lists where the Gradle build may leave the core AAR, in
// order of preference.
func (l Layout) AARCandidates(cfg Configuration) []string {
	variant := strings.ToLower(string(cfg))
	core := filepath.Join(l.Abs(AndroidSubmodule), "sdk-core", "build")
	return []string{
		filepath.Join(core, "libs", "adjust-sdk-"+variant+".aar"),
		filepath.Join(core, "outputs", "aar", "sdk-core-"+variant+".aar"),
	}
}

// AARDestination is where the Android binding expects the core AAR.
func (l Layout) AARDestination() string {
	return filepath.Join(l.Abs(AndroidBindingLibs), AndroidAARName)
}
