/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package version reports the build version of the website binary.
package version

import (
	"runtime/debug"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Version may be set at link time:
//
//	go build -ldflags "-X github.com/ssiautomations/website/internal/version.Version=v1.4.0" ./cmd/website
var Version string

const develVersion = "(devel)"

// Info describes the running build.
type Info struct {
	Version   string `json:"version"`
	Revision  string `json:"revision,omitempty"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"goVersion,omitempty"`
}

var (
	info     Info
	infoOnce sync.Once
)

// Get returns the build info. It's computed once.
func Get() Info {
	infoOnce.Do(func() {
		buildInfo, _ := debug.ReadBuildInfo()
		info = extractInfo(buildInfo, Version)
	})
	return info
}

// extractInfo prefers the link-time version, then the main module version.
// VCS settings are only present for builds from a repository checkout.
func extractInfo(buildInfo *debug.BuildInfo, linkVersion string) Info {
	res := Info{Version: linkVersion}
	if buildInfo != nil {
		if res.Version == "" && buildInfo.Main.Version != "" && buildInfo.Main.Version != develVersion {
			res.Version = buildInfo.Main.Version
		}
		res.GoVersion = buildInfo.GoVersion
		for _, s := range buildInfo.Settings {
			switch s.Key {
			case "vcs.revision":
				res.Revision = s.Value
			case "vcs.modified":
				res.Modified = s.Value == "true"
			}
		}
	}
	if res.Version == "" {
		res.Version = "v0.0.0"
	}
	return res
}

// NewBuildInfoGauge returns a gauge always set to 1 and labeled with the version and revision.
func NewBuildInfoGauge(namespace string) prometheus.Gauge {
	i := Get()
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "build_info",
		Help:        "Build information of the running binary.",
		ConstLabels: prometheus.Labels{"version": i.Version, "revision": i.Revision},
	})
	g.Set(1)
	return g
}
