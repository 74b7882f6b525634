// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"github.com/nativeship/nativeship/internal/artifact"
	"github.com/nativeship/nativeship/internal/buildcfg"
	"github.com/nativeship/nativeship/internal/config"
	"github.com/nativeship/nativeship/internal/environ"
	"github.com/nativeship/nativeship/internal/introspect"
	"github.com/nativeship/nativeship/internal/manifest"
	"github.com/nativeship/nativeship/pkg/platform"
	"github.com/nativeship/nativeship/pkg/types"
)

// State is the per-run state the stages fill in as they go.
type State struct {
	// Root is the resolved invocation root; relative config paths hang off it.
	Root   string
	Config *config.Config
	Naming platform.Naming

	// BaseEnv is the inherited environment; it is never modified.
	BaseEnv environ.Env
	// Env is the environment later stages run with: the reset environment,
	// then the activated one.
	Env environ.Env

	ResetReport environ.ResetReport
	EnvContext  introspect.EnvironmentContext
	Manifest    *manifest.Manifest
	Build       buildcfg.BuildConfig
	Artifact    artifact.Artifact
	CleanReport artifact.CleanReport
	Deployment  *artifact.Deployment
	AppExitCode types.ExitCode
}

// NewState creates the state for one run.
func NewState(root string, cfg *config.Config, base environ.Env) *State {
	return &State{
		Root:    root,
		Config:  cfg,
		Naming:  platform.Current(),
		BaseEnv: base,
		Env:     base.Clone(),
	}
}
