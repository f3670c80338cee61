package bridge

import (
	"context"
	"errors"
	"io"

	xe "github.com/opst/bridgepipeline/pkg/errors"
	"github.com/opst/bridgepipeline/pkg/utils/retry"
	k8s "github.com/opst/bridgepipeline/pkg/workloads/k8s"
	"k8s.io/klog/v2"
)

// Outcome is how the bridge container has been terminated.
type Outcome struct {
	// name of the k8s Job ran the container
	Job string

	// Succeeded or Failed
	Status k8s.JobStatus

	// exit code of the bridge container.
	//
	// It is meaningful only if Terminated is true.
	ExitCode uint8

	// reason of the termination, reported by k8s.
	Reason string

	// false if the container had not started (e.g. image pull error).
	Terminated bool
}

// Invoker runs the bridge container as a k8s Job, and waits for it.
type Invoker struct {
	cluster k8s.Cluster
	backoff func() retry.Backoff

	// If set, the log of the bridge container is copied to it after the Job finishes.
	Log io.Writer

	// If true, the Job is kept after finishing. Otherwise it is deleted.
	KeepJob bool
}

// NewInvoker returns an Invoker.
//
// newBackoff is called for each Invoke to get the polling policy of the Job status.
func NewInvoker(cluster k8s.Cluster, newBackoff func() retry.Backoff) *Invoker {
	return &Invoker{cluster: cluster, backoff: newBackoff}
}

// Invoke starts the Job for inv and blocks until the Job finishes.
//
// A failed Job is not an error. It is reported in Outcome.Status.
//
// # Returns
//
// - Outcome: result of the Job.
//
// - error:
// workloads.ErrConflict when the Job for the same job name exists,
// or, error from ctx when it is done before the Job finishes.
// In the latter case, the Job is deleted.
func (iv *Invoker) Invoke(ctx context.Context, inv Invocation) (Outcome, error) {
	spec := inv.Job()
	name := spec.Name
	if err := ctx.Err(); err != nil {
		return Outcome{Job: name}, err
	}

	klog.InfoS("starting bridge container", "namespace", inv.Namespace, "job", name, "image", inv.Image)
	result := <-iv.cluster.NewJob(ctx, iv.backoff(), inv.Namespace, spec, k8s.JobHasFinished)
	if err := result.Err; err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			iv.abort(inv.Namespace, name)
		}
		return Outcome{Job: name}, xe.Notef(err, "job %s/%s", inv.Namespace, name)
	}
	job := result.Value

	out := Outcome{Job: name, Status: job.Status()}
	out.ExitCode, out.Reason, out.Terminated = job.ExitCode(ContainerName)
	klog.InfoS(
		"bridge container has finished",
		"namespace", inv.Namespace, "job", name,
		"status", out.Status, "exitCode", out.ExitCode, "reason", out.Reason,
	)

	if iv.Log != nil {
		if err := copyLog(ctx, job, iv.Log); err != nil {
			klog.ErrorS(err, "cannot read log of bridge container", "namespace", inv.Namespace, "job", name)
		}
	}

	if !iv.KeepJob {
		if err := job.Close(); err != nil {
			klog.ErrorS(err, "cannot delete job", "namespace", inv.Namespace, "job", name)
		}
	}

	return out, nil
}

func (iv *Invoker) abort(namespace, name string) {
	// ctx is done here.
	if err := iv.cluster.DeleteJob(context.Background(), namespace, name); err != nil {
		klog.ErrorS(err, "cannot abort job", "namespace", namespace, "job", name)
		return
	}
	klog.InfoS("job is aborted", "namespace", namespace, "job", name)
}

func copyLog(ctx context.Context, job k8s.Job, w io.Writer) error {
	log, err := job.Log(ctx, ContainerName)
	if err != nil {
		return err
	}
	defer log.Close()
	_, err = io.Copy(w, log)
	return err
}
