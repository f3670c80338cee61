package bridge

import "time"

// Configuration for bridge pipelines.
//
// To get an instance, use `Unmarshal`, `Load` or `Default`.
type BridgeConfig struct {
	stepImage      string
	serviceAccount string
	runner         *RunnerConfig
}

// Image running `bridge configmap create|delete` in compiled workflows.
func (c *BridgeConfig) StepImage() string {
	return c.stepImage
}

// Service account of compiled workflows. default = "pipeline-runner"
func (c *BridgeConfig) ServiceAccount() string {
	return c.serviceAccount
}

// Configuration for local runs.
func (c *BridgeConfig) Runner() *RunnerConfig {
	return c.runner
}

type RunnerConfig struct {
	pollInterval time.Duration
	stepTimeout  time.Duration
}

// How often the status of the bridge container is checked.
func (r *RunnerConfig) PollInterval() time.Duration {
	return r.pollInterval
}

// Time limit of the bridge container. Zero means no limit.
func (r *RunnerConfig) StepTimeout() time.Duration {
	return r.stepTimeout
}
