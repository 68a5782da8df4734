package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func titles(ps []Project) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Title
	}
	return out
}

func mustTargets(t *testing.T, names ...string) Targets {
	t.Helper()
	tg, err := ParseTargets(names)
	require.NoError(t, err)
	return tg
}

func TestParseTargets(t *testing.T) {
	tg, err := ParseTargets(nil)
	require.NoError(t, err)
	assert.Equal(t, Targets{TargetAll}, tg)

	tg, err = ParseTargets([]string{"SDK", "android", "sdk"})
	require.NoError(t, err)
	assert.Equal(t, Targets{"sdk", "android"}, tg)
	assert.Equal(t, "['sdk', 'android']", tg.String())

	_, err = ParseTargets([]string{"windows"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "windows")
}

func TestTargets_Bindings(t *testing.T) {
	cases := []struct {
		targets []string
		want    []string
	}{
		{nil, []string{"Android SDK binding", "iOS SDK binding", "Android TestApp binding", "iOS TestApp binding"}},
		{[]string{"android"}, []string{"Android SDK binding", "Android TestApp binding"}},
		{[]string{"ios"}, []string{"iOS SDK binding", "iOS TestApp binding"}},
		{[]string{"sdk"}, []string{"Android SDK binding", "iOS SDK binding"}},
		{[]string{"test", "ios"}, []string{"iOS TestApp binding"}},
		{[]string{"sdk", "test"}, nil},
	}
	for _, c := range cases {
		got := titles(mustTargets(t, c.targets...).Bindings())
		if c.want == nil {
			assert.Empty(t, got, "%v", c.targets)
			continue
		}
		assert.Equal(t, c.want, got, "%v", c.targets)
	}
}

func TestTargets_Apps(t *testing.T) {
	assert.Equal(t, []string{"TestApp", "ExampleApp"}, titles(mustTargets(t).Apps()))
	assert.Equal(t, []string{"TestApp"}, titles(mustTargets(t, "test").Apps()))
	assert.Equal(t, []string{"ExampleApp"}, titles(mustTargets(t, "example").Apps()))
	assert.Equal(t, []string{"TestApp", "ExampleApp (NuGet)"}, titles(mustTargets(t, "nuget").Apps()))
	assert.Equal(t, []string{"ExampleApp (NuGet)"}, titles(mustTargets(t, "example", "nuget").Apps()))
}

func TestTargets_CleanDirs(t *testing.T) {
	assert.Equal(t, []string{"."}, mustTargets(t).CleanDirs())
	assert.Equal(t, []string{"AdjustSdk"}, mustTargets(t, "sdk").CleanDirs())
	assert.Equal(t, []string{"testApp", "ExampleApp"}, mustTargets(t, "test", "example").CleanDirs())

	assert.Equal(t, []string{
		filepath.Join("iOs", "TestLibrary.iOSBinding"),
		filepath.Join("android", "TestLibrary.AndroidBinding"),
		filepath.Join("iOs", "AdjustSdk.iOSBinding"),
		filepath.Join("android", "AdjustSdk.AndroidBinding"),
	}, mustTargets(t, "bindings").CleanDirs())

	assert.Equal(t, []string{
		filepath.Join("android", "AdjustSdk.AndroidBinding"),
		"AdjustSdk",
	}, mustTargets(t, "bindings", "sdk", "android").CleanDirs())

	assert.Empty(t, mustTargets(t, "android").CleanDirs())
}

func TestAppProject(t *testing.T) {
	p, err := AppProject("test")
	require.NoError(t, err)
	assert.Equal(t, TestApp, p)

	p, err = AppProject("example")
	require.NoError(t, err)
	assert.Equal(t, ExampleApp, p)

	_, err = AppProject("demo")
	assert.Error(t, err)
}

func TestConfiguration(t *testing.T) {
	c, err := ParseConfiguration("release")
	require.NoError(t, err)
	assert.Equal(t, Release, c)

	c, err = ParseConfiguration("Debug")
	require.NoError(t, err)
	assert.Equal(t, Debug, c)

	_, err = ParseConfiguration("Profile")
	assert.Error(t, err)

	assert.Equal(t, Release, ConfigurationOf(true))
	assert.Equal(t, Debug, ConfigurationOf(false))
}

func TestToolchain_BuildArgs(t *testing.T) {
	tc := Toolchain("net9.0")
	assert.Equal(t, "net9.0-ios", tc.For(IOS))
	assert.Equal(t, []string{"-f", "net9.0-android"}, tc.BuildArgs(AndroidSDKBinding))
	assert.Equal(t, []string{"-f", "net9.0-ios"}, tc.BuildArgs(IOSTestBinding))
	assert.Equal(t, []string{"-p:TargetFrameworks=net9.0-android%3Bnet9.0-ios"}, tc.BuildArgs(SDK))
	assert.Nil(t, Toolchain("").BuildArgs(SDK))
}

func TestLayout(t *testing.T) {
	l := Layout{Root: "/repo"}
	assert.Equal(t, "/repo/AdjustSdk/AdjustSdk.csproj", l.Abs(SDK.Path))
	assert.Equal(t, "/elsewhere", l.Abs("/elsewhere"))
	assert.Equal(t, "AdjustSdk", l.Rel("/repo/AdjustSdk"))
	assert.Equal(t, "/other/x", l.Rel("/other/x"))
	assert.Equal(t, "/repo/.artifacts/runs", l.RunsDir())
	assert.Equal(t, "/repo/android_sdk/Adjust/gradlew", l.Gradlew())
	assert.Equal(t, "/repo/android/AdjustSdk.AndroidBinding/libs/adjust-android.aar", l.AARDestination())
	assert.Equal(t, []string{
		"/repo/android_sdk/Adjust/sdk-core/build/libs/adjust-sdk-release.aar",
		"/repo/android_sdk/Adjust/sdk-core/build/outputs/aar/sdk-core-release.aar",
	}, l.AARCandidates(Release))
}

func TestSelectPackages(t *testing.T) {
	pkgs, err := SelectPackages("")
	require.NoError(t, err)
	require.Len(t, pkgs, 1)
	assert.Equal(t, "Adjust.Maui.Sdk", pkgs[0].ID)

	pkgs, err = SelectPackages("all")
	require.NoError(t, err)
	assert.Len(t, pkgs, 3)

	pkgs, err = SelectPackages("meta_referrer")
	require.NoError(t, err)
	assert.Equal(t, "AdjustMetaReferrer.nuspec", pkgs[0].Nuspec)
	assert.Equal(t, "Adjust.Maui.Sdk.MetaReferrer.5.0.1.nupkg", pkgs[0].FileName("5.0.1"))
	assert.Equal(t, "/home/u/.nuget/packages/adjust.maui.sdk.metareferrer", pkgs[0].InstalledDir("/home/u/.nuget/packages"))

	_, err = SelectPackages("firebase")
	assert.Error(t, err)
}

func TestNuspecVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "AdjustSdk.nuspec")
	require.NoError(t, os.WriteFile(path, []byte(`<?xml version="1.0" encoding="utf-8"?>
<package xmlns="http://schemas.microsoft.com/packaging/2012/06/nuspec.xsd">
  <metadata>
    <id>Adjust.Maui.Sdk</id>
    <version>
      5.1.0
    </version>
    <dependencies>
      <group targetFramework="net8.0-android"><dependency id="Xamarin.AndroidX.Core" version="1.13.1"/></group>
    </dependencies>
  </metadata>
</package>
`), 0o644))

	v, err := NuspecVersion(path)
	require.NoError(t, err)
	assert.Equal(t, "5.1.0", v)

	bad := filepath.Join(dir, "empty.nuspec")
	require.NoError(t, os.WriteFile(bad, []byte(`<package><metadata><id>x</id></metadata></package>`), 0o644))
	_, err = NuspecVersion(bad)
	assert.Error(t, err)

	_, err = NuspecVersion(filepath.Join(dir, "missing.nuspec"))
	assert.Error(t, err)
}

func TestArtifactDirs(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{
		"AdjustSdk/bin/Debug/net8.0-android",
		"AdjustSdk/obj/Debug",
		"AdjustSdk/Platforms/Android",
		"testApp/bin",
		"testApp/obj/bin",
		".git/objects/bin",
		".artifacts/runs",
	} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, d), 0o755))
	}

	got, err := ArtifactDirs(root)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(root, "AdjustSdk/bin"),
		filepath.Join(root, "AdjustSdk/obj"),
		filepath.Join(root, "testApp/bin"),
		filepath.Join(root, "testApp/obj"),
	}, got)

	got, err = ArtifactDirs(filepath.Join(root, "AdjustSdk"))
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = ArtifactDirs(filepath.Join(root, "missing"))
	require.NoError(t, err)
	assert.Empty(t, got)
}
