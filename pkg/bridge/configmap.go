package bridge

import (
	"context"

	xe "github.com/opst/bridgepipeline/pkg/errors"
	k8s "github.com/opst/bridgepipeline/pkg/workloads/k8s"
	"k8s.io/klog/v2"
)

// Writer creates the bridge ConfigMap of a job.
type Writer struct {
	cluster k8s.Cluster
}

func NewWriter(cluster k8s.Cluster) *Writer {
	return &Writer{cluster: cluster}
}

// Create puts the ConfigMap for desc into desc.Namespace.
//
// # Returns
//
// - k8s.ConfigMap: created one.
//
// - error: workloads.ErrConflict if the ConfigMap exists already.
// The existing one is left as it is.
// Other errors from the cluster are passed through (wrapped).
func (w *Writer) Create(ctx context.Context, desc JobDescriptor) (k8s.ConfigMap, error) {
	name := ConfigMapName(desc.JobName)
	cm, err := w.cluster.NewConfigMap(ctx, desc.Namespace, desc.ConfigMap())
	if err != nil {
		return nil, xe.Notef(err, "configmap %s/%s", desc.Namespace, name)
	}
	klog.InfoS("bridge configmap is written", "namespace", desc.Namespace, "name", name)
	return cm, nil
}

// Deleter removes the bridge ConfigMap of a job.
type Deleter struct {
	cluster k8s.Cluster
}

func NewDeleter(cluster k8s.Cluster) *Deleter {
	return &Deleter{cluster: cluster}
}

// Delete removes the ConfigMap of the job from the namespace.
//
// It returns workloads.ErrMissing when there are no such ConfigMap.
func (d *Deleter) Delete(ctx context.Context, jobName string, namespace string) error {
	name := ConfigMapName(jobName)
	if err := d.cluster.DeleteConfigMap(ctx, namespace, name); err != nil {
		return xe.Notef(err, "configmap %s/%s", namespace, name)
	}
	klog.InfoS("bridge configmap is deleted", "namespace", namespace, "name", name)
	return nil
}

// Reader reads progress of a job which the bridge container writes back.
type Reader struct {
	cluster k8s.Cluster
}

func NewReader(cluster k8s.Cluster) *Reader {
	return &Reader{cluster: cluster}
}

// Status returns the current status view of the job.
func (r *Reader) Status(ctx context.Context, jobName string, namespace string) (Status, error) {
	name := ConfigMapName(jobName)
	cm, err := r.cluster.GetConfigMap(ctx, namespace, name)
	if err != nil {
		return Status{}, xe.Notef(err, "configmap %s/%s", namespace, name)
	}
	return StatusOf(cm.Data()), nil
}

// RequestKill asks the bridge container to cancel the job on the external resource.
//
// This does not wait for the cancellation. Watch Status to know the result.
//
// When the ConfigMap is modified concurrently, the conflict error is returned as it is.
func (r *Reader) RequestKill(ctx context.Context, jobName string, namespace string) error {
	name := ConfigMapName(jobName)
	cm, err := r.cluster.GetConfigMap(ctx, namespace, name)
	if err != nil {
		return xe.Notef(err, "configmap %s/%s", namespace, name)
	}

	res := cm.Resource()
	if res.Data == nil {
		res.Data = map[string]string{}
	}
	res.Data[KeyKill] = "true"

	if _, err := r.cluster.UpdateConfigMap(ctx, namespace, res); err != nil {
		return xe.Notef(err, "configmap %s/%s", namespace, name)
	}
	klog.InfoS("kill is requested", "namespace", namespace, "name", name)
	return nil
}
