package bridge

import (
	"fmt"
	"time"

	"github.com/google/go-containerregistry/pkg/name"
)

const (
	DefaultStepImage      = "ghcr.io/opst/bridge:latest"
	DefaultServiceAccount = "pipeline-runner"
	DefaultPollInterval   = 3 * time.Second
)

type Marshalled[S any] interface {
	trySeal(string) S
}

// seal marshalled object.
//
// this function CAN CAUSE PANIC if misconfiguration is found.
func TrySeal[S any](conf Marshalled[S]) S {
	return conf.trySeal("(root)")
}

// Configuration of bridge pipelines, as written in a file.
//
// This type is marshalling value and mutable.
// Consider to use immutable version, `BridgeConfig`.
type BridgeConfigMarshall struct {
	StepImage      string                `yaml:"stepImage,omitempty"`
	ServiceAccount string                `yaml:"serviceAccount,omitempty"`
	Runner         *RunnerConfigMarshall `yaml:"runner,omitempty"`
}

var _ Marshalled[*BridgeConfig] = &BridgeConfigMarshall{}

func (b *BridgeConfigMarshall) trySeal(path string) *BridgeConfig {
	if b == nil {
		b = &BridgeConfigMarshall{}
	}

	stepImage := orDefault(b.StepImage, DefaultStepImage)
	if _, err := name.ParseReference(stepImage); err != nil {
		panic(fmt.Errorf("%s.stepImage is not an image reference: %w", path, err))
	}

	return &BridgeConfig{
		stepImage:      stepImage,
		serviceAccount: orDefault(b.ServiceAccount, DefaultServiceAccount),
		runner:         b.Runner.trySeal(path + ".runner"),
	}
}

type RunnerConfigMarshall struct {
	PollInterval time.Duration `yaml:"pollInterval,omitempty"`
	StepTimeout  time.Duration `yaml:"stepTimeout,omitempty"`
}

func (r *RunnerConfigMarshall) trySeal(path string) *RunnerConfig {
	if r == nil {
		r = &RunnerConfigMarshall{}
	}
	if r.PollInterval < 0 {
		panic(path + ".pollInterval should be positive")
	}
	if r.StepTimeout < 0 {
		panic(path + ".stepTimeout should not be negative")
	}
	return &RunnerConfig{
		pollInterval: orDefault(r.PollInterval, DefaultPollInterval),
		stepTimeout:  r.StepTimeout,
	}
}

func orDefault[T comparable](v T, d T) T {
	if v == *new(T) {
		return d
	}
	return v
}
