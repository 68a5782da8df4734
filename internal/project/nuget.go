package project

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/beevik/etree"
	"github.com/rotisserie/eris"
)

// Publish targets.
const (
	PackageCore         = "core"
	PackageOaid         = "oaid"
	PackageMetaReferrer = "meta_referrer"
	PackageAll          = "all"
)

// PublishTargets lists every accepted publish target.
var PublishTargets = []string{PackageCore, PackageOaid, PackageMetaReferrer, PackageAll}

// Package is a NuGet package produced from a nuspec at the repository root.
type Package struct {
	Name   string // publish target name
	Title  string
	Nuspec string // relative to the repository root
	ID     string // NuGet package id
}

// Packages is the package catalogue in publish order.
var Packages = []Package{
	{Name: PackageCore, Title: "Core SDK", Nuspec: "AdjustSdk.nuspec", ID: "Adjust.Maui.Sdk"},
	{Name: PackageOaid, Title: "OAID SDK plugin", Nuspec: "AdjustOaid.nuspec", ID: "Adjust.Maui.Sdk.Oaid"},
	{Name: PackageMetaReferrer, Title: "Meta Referrer SDK plugin", Nuspec: "AdjustMetaReferrer.nuspec", ID: "Adjust.Maui.Sdk.MetaReferrer"},
}

// SelectPackages resolves a publish target. An empty target means core.
func SelectPackages(target string) ([]Package, error) {
	target = strings.ToLower(strings.TrimSpace(target))
	if target == "" {
		target = PackageCore
	}
	if !slices.Contains(PublishTargets, target) {
		return nil, eris.Errorf("invalid target %q (choose from %s)", target, strings.Join(PublishTargets, ", "))
	}
	if target == PackageAll {
		return Packages, nil
	}
	for _, p := range Packages {
		if p.Name == target {
			return []Package{p}, nil
		}
	}
	return nil, eris.Errorf("no package for target %q", target)
}

// FileName returns the nupkg name nuget pack produces for version.
func (p Package) FileName(version string) string {
	return p.ID + "." + version + ".nupkg"
}

// InstalledDir returns where NuGet extracts the package inside the global
// packages folder. NuGet lowercases ids there.
func (p Package) InstalledDir(packagesDir string) string {
	return filepath.Join(packagesDir, strings.ToLower(p.ID))
}

// NuspecVersion reads /package/metadata/version from a nuspec file.
func NuspecVersion(path string) (string, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		return "", eris.Wrapf(err, "reading %s", path)
	}
	el := doc.FindElement("//metadata/version")
	if el == nil {
		return "", eris.Errorf("%s has no <version> in <metadata>", path)
	}
	v := strings.TrimSpace(el.Text())
	if v == "" {
		return "", eris.Errorf("%s has an empty <version>", path)
	}
	return v, nil
}
