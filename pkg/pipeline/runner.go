package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/opst/bridgepipeline/pkg/bridge"
	bconf "github.com/opst/bridgepipeline/pkg/configs/bridge"
	xe "github.com/opst/bridgepipeline/pkg/errors"
	"github.com/opst/bridgepipeline/pkg/utils/retry"
	wl "github.com/opst/bridgepipeline/pkg/workloads"
	k8s "github.com/opst/bridgepipeline/pkg/workloads/k8s"
	"go.uber.org/multierr"
	"k8s.io/klog/v2"
)

var (
	ErrMissingValue     = errors.New("required value is empty")
	ErrInvocationFailed = errors.New("bridge container failed")
)

// Runner runs steps of the bridge pipeline directly on a cluster, without workflow engine.
type Runner struct {
	writer  *bridge.Writer
	invoker *bridge.Invoker
	deleter *bridge.Deleter

	stepTimeout time.Duration
}

func NewRunner(cluster k8s.Cluster, conf *bconf.RunnerConfig) *Runner {
	interval := conf.PollInterval()
	return &Runner{
		writer: bridge.NewWriter(cluster),
		invoker: bridge.NewInvoker(cluster, func() retry.Backoff {
			return retry.StaticBackoff(interval)
		}),
		deleter:     bridge.NewDeleter(cluster),
		stepTimeout: conf.StepTimeout(),
	}
}

// Invoker returns the Invoker used in bridge-pod step, to tune it.
func (r *Runner) Invoker() *bridge.Invoker {
	return r.invoker
}

// Run runs create-config-map, bridge-pod and delete-config-map in order.
//
// Each step starts after the previous one has finished.
// When create-config-map fails, or bridge-pod can not be started or is interrupted,
// following steps are not run.
// Once bridge-pod finishes, delete-config-map runs whether bridge-pod has succeeded or not.
//
// # Returns
//
// - bridge.Outcome: how bridge-pod finished. It is zero value if it has not finished.
//
// - error: errors of steps. A failed bridge-pod is reported as ErrInvocationFailed.
// When both bridge-pod and delete-config-map fail, errors are combined (see go.uber.org/multierr).
func (r *Runner) Run(ctx context.Context, v Values) (bridge.Outcome, error) {
	for _, r := range []struct{ name, value string }{
		{name: ParamJobName, value: v.JobName},
		{name: ParamNamespace, value: v.Namespace},
		{name: ParamDocker, value: v.Docker},
	} {
		if r.value == "" {
			return bridge.Outcome{}, xe.Notef(ErrMissingValue, "%s", r.name)
		}
	}

	logger := klog.LoggerWithValues(klog.Background(), "job", v.JobName, "namespace", v.Namespace)

	logger.Info("step started", "step", StepCreateConfigMap)
	if _, err := r.writer.Create(ctx, v.Descriptor()); err != nil {
		logger.Error(err, "step failed", "step", StepCreateConfigMap)
		return bridge.Outcome{}, err
	}
	logger.Info("step done", "step", StepCreateConfigMap)

	logger.Info("step started", "step", StepBridgePod)
	outcome, err := r.invoke(ctx, v.Invocation())
	if err != nil {
		logger.Error(err, "step is not completed", "step", StepBridgePod)
		return outcome, err
	}
	var invokeErr error
	if outcome.Status != k8s.Succeeded {
		if outcome.Terminated {
			invokeErr = xe.Notef(
				ErrInvocationFailed, "job %s: exit code %d (%s)", outcome.Job, outcome.ExitCode, outcome.Reason,
			)
		} else {
			invokeErr = xe.Notef(ErrInvocationFailed, "job %s: not started (%s)", outcome.Job, outcome.Reason)
		}
		logger.Error(invokeErr, "step failed", "step", StepBridgePod)
	} else {
		logger.Info("step done", "step", StepBridgePod)
	}

	logger.Info("step started", "step", StepDeleteConfigMap)
	deleteErr := r.deleter.Delete(ctx, v.JobName, v.Namespace)
	if deleteErr != nil {
		logger.Error(deleteErr, "step failed", "step", StepDeleteConfigMap)
	} else {
		logger.Info("step done", "step", StepDeleteConfigMap)
	}

	return outcome, multierr.Append(invokeErr, deleteErr)
}

func (r *Runner) invoke(ctx context.Context, inv bridge.Invocation) (bridge.Outcome, error) {
	if r.stepTimeout <= 0 {
		return r.invoker.Invoke(ctx, inv)
	}

	sctx, cancel := context.WithTimeout(ctx, r.stepTimeout)
	defer cancel()
	outcome, err := r.invoker.Invoke(sctx, inv)
	if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return outcome, multierr.Append(
			xe.Notef(wl.ErrDeadlineExceeded, "step %s exceeds %s", StepBridgePod, r.stepTimeout),
			err,
		)
	}
	return outcome, err
}
