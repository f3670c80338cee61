package k8s

import (
	"context"
	"errors"
	"io"

	kubebatch "k8s.io/api/batch/v1"
	kubecore "k8s.io/api/core/v1"
	kubeerr "k8s.io/apimachinery/pkg/api/errors"
	kubeapimeta "k8s.io/apimachinery/pkg/apis/meta/v1"
	k8s "k8s.io/client-go/kubernetes"
	"k8s.io/klog/v2"

	"github.com/opst/bridgepipeline/pkg/utils/retry"
	wl "github.com/opst/bridgepipeline/pkg/workloads"
)

// subset of k8s.Interface
type K8sClient interface {
	CreateConfigMap(ctx context.Context, namespace string, cm *kubecore.ConfigMap) (*kubecore.ConfigMap, error)
	GetConfigMap(ctx context.Context, namespace string, name string) (*kubecore.ConfigMap, error)
	UpdateConfigMap(ctx context.Context, namespace string, cm *kubecore.ConfigMap) (*kubecore.ConfigMap, error)
	DeleteConfigMap(ctx context.Context, namespace string, name string) error

	GetJob(ctx context.Context, namespace string, name string) (*kubebatch.Job, error)
	CreateJob(ctx context.Context, namespace string, spec *kubebatch.Job) (*kubebatch.Job, error)
	DeleteJob(ctx context.Context, namespace string, name string) error

	FindPods(ctx context.Context, namespace string, labelSelector LabelSelector) ([]kubecore.Pod, error)

	Log(ctx context.Context, namespace string, podname string, container string) (io.ReadCloser, error)
}

// A wrapper for k8s.Interface; because it does not prefer method chain-style invocations of that type.
type k8sClient struct {
	client k8s.Interface
}

// type check: k8sClient implements K8sClient
var _ K8sClient = &k8sClient{}

// WrapK8sClient adapts a clientset (or a fake of it) to K8sClient.
func WrapK8sClient(c k8s.Interface) K8sClient {
	return &k8sClient{client: c}
}

func (k *k8sClient) CreateConfigMap(ctx context.Context, namespace string, cm *kubecore.ConfigMap) (*kubecore.ConfigMap, error) {
	return k.client.CoreV1().ConfigMaps(namespace).Create(ctx, cm, kubeapimeta.CreateOptions{})
}

func (k *k8sClient) GetConfigMap(ctx context.Context, namespace string, name string) (*kubecore.ConfigMap, error) {
	return k.client.CoreV1().ConfigMaps(namespace).Get(ctx, name, kubeapimeta.GetOptions{})
}

func (k *k8sClient) UpdateConfigMap(ctx context.Context, namespace string, cm *kubecore.ConfigMap) (*kubecore.ConfigMap, error) {
	return k.client.CoreV1().ConfigMaps(namespace).Update(ctx, cm, kubeapimeta.UpdateOptions{})
}

func (k *k8sClient) DeleteConfigMap(ctx context.Context, namespace string, name string) error {
	return k.client.CoreV1().ConfigMaps(namespace).Delete(ctx, name, kubeapimeta.DeleteOptions{})
}

func (k *k8sClient) CreateJob(ctx context.Context, namespace string, job *kubebatch.Job) (*kubebatch.Job, error) {
	return k.client.BatchV1().Jobs(namespace).Create(ctx, job, kubeapimeta.CreateOptions{})
}

func (k *k8sClient) GetJob(ctx context.Context, namespace string, name string) (*kubebatch.Job, error) {
	return k.client.BatchV1().Jobs(namespace).Get(ctx, name, kubeapimeta.GetOptions{})
}

func (k *k8sClient) DeleteJob(ctx context.Context, namespace string, name string) error {
	background := kubeapimeta.DeletePropagationBackground
	return k.client.BatchV1().Jobs(namespace).Delete(ctx, name, kubeapimeta.DeleteOptions{
		PropagationPolicy: &background,
	})
}

func (k *k8sClient) FindPods(ctx context.Context, namespace string, labels LabelSelector) ([]kubecore.Pod, error) {
	resp, err := k.client.CoreV1().Pods(namespace).List(ctx, kubeapimeta.ListOptions{
		LabelSelector: labels.QueryString(),
	})
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (k *k8sClient) Log(ctx context.Context, namespace string, podname string, container string) (io.ReadCloser, error) {
	return k.client.
		CoreV1().
		Pods(namespace).
		GetLogs(podname, &kubecore.PodLogOptions{Container: container, Follow: true}).
		Stream(ctx)
}

// Abstraction of k8s ConfigMap
type ConfigMap interface {
	Name() string
	Namespace() string

	// snapshot of the data when this instance is got.
	Data() map[string]string

	// the raw object, for read-modify-write updates.
	Resource() *kubecore.ConfigMap
}

type configMap struct {
	resource *kubecore.ConfigMap
}

func (c *configMap) Name() string {
	return c.resource.GetName()
}

func (c *configMap) Namespace() string {
	return c.resource.GetNamespace()
}

func (c *configMap) Data() map[string]string {
	data := make(map[string]string, len(c.resource.Data))
	for k, v := range c.resource.Data {
		data[k] = v
	}
	return data
}

func (c *configMap) Resource() *kubecore.ConfigMap {
	return c.resource.DeepCopy()
}

type JobStatus string

const (
	// no pods have been started.
	Pending JobStatus = "Pending"

	// at least one pod has started, and the job has not completed.
	Running JobStatus = "Running"

	// the job is succeeded.
	Succeeded JobStatus = "Succeeded"

	// the job is failed.
	Failed JobStatus = "Failed"
)

// Finished tells the job will not change its status anymore.
func (s JobStatus) Finished() bool {
	return s == Succeeded || s == Failed
}

// abstraction of k8s job.
type Job interface {
	// the name of the job
	Name() string

	// the namespace where the job is placed in
	Namespace() string

	// how does the job progress, at least
	//
	// This value is just a SNAPSHOT of the job when you get the instance.
	// To refresh, get a new instance with `Cluster.GetJob`.
	//
	// A job whose pod cannot pull its image is Failed, even if k8s still keeps it active.
	Status() JobStatus

	//	ExitCode returns the exit code of the named container of job
	//
	// # Return
	//
	// - exitCode : the exit code of the container.
	//
	// - reason: the reason of the termination,
	// or the waiting reason when the container cannot pull its image.
	//
	// - ok : true if the container has been terminated, false otherwise.
	ExitCode(container string) (uint8, string, bool)

	// Log get log stream of the named container of the job's first pod.
	Log(ctx context.Context, containerName string) (io.ReadCloser, error)

	// destroy the job. If the job is running or pending, it is aborted.
	Close() error
}

type job struct {
	job    *kubebatch.Job
	pods   []kubecore.Pod
	client K8sClient
	close  func() error
}

var _ Job = &job{}

func (j *job) Name() string {
	return j.job.Name
}

func (j *job) Namespace() string {
	return j.job.Namespace
}

func (j *job) Status() JobStatus {
	for _, sc := range j.job.Status.Conditions {
		if sc.Status != kubecore.ConditionTrue {
			continue
		}
		switch sc.Type {
		case kubebatch.JobComplete:
			return Succeeded
		case kubebatch.JobFailed:
			return Failed
		}
	}

	if j.unpullable() {
		return Failed
	}

	if 0 < j.job.Status.Active+j.job.Status.Succeeded+j.job.Status.Failed {
		return Running
	}
	for _, p := range j.pods {
		switch p.Status.Phase {
		case kubecore.PodRunning, kubecore.PodSucceeded, kubecore.PodFailed:
			return Running
		}
	}

	return Pending
}

func (j *job) Log(ctx context.Context, containerName string) (io.ReadCloser, error) {
	if len(j.pods) == 0 {
		return nil, errors.New("no pods")
	}
	pod := j.pods[0]
	return j.client.Log(ctx, pod.Namespace, pod.Name, containerName)
}

func (j *job) ExitCode(container string) (uint8, string, bool) {
	for _, p := range j.pods {
		for _, c := range p.Status.ContainerStatuses {
			if c.Name != container {
				continue
			}
			if term := c.State.Terminated; term != nil {
				return uint8(term.ExitCode), term.Reason, true
			}
			if w := c.State.Waiting; w != nil && unpullableReasons[w.Reason] {
				return 0, w.Reason, false
			}
			break
		}
	}
	return 0, "", false
}

// waiting reasons which never resolve by themselves.
//
// Job's backoffLimit does not count them, so the Job stays active.
var unpullableReasons = map[string]bool{
	"ErrImagePull":      true,
	"ImagePullBackOff":  true,
	"InvalidImageName":  true,
	"ErrImageNeverPull": true,
}

// unpullable tells some container cannot start because of its image.
func (j *job) unpullable() bool {
	for _, p := range j.pods {
		for _, c := range p.Status.ContainerStatuses {
			if w := c.State.Waiting; w != nil && unpullableReasons[w.Reason] {
				return true
			}
		}
	}
	return false
}

func (j *job) Close() error {
	if j.close == nil {
		return nil
	}
	return j.close()
}

// Cluster is the set of operations the bridge performs against Kubernetes.
//
// API errors are translated as below, and others are returned as they are:
//
// - AlreadyExists: workloads.ErrConflict
//
// - NotFound: workloads.ErrMissing
//
// The original API error is kept as the cause, so `kubeerr.IsXxx` still works.
type Cluster interface {
	// Create a ConfigMap. It never overwrites an existing one.
	NewConfigMap(ctx context.Context, namespace string, cm *kubecore.ConfigMap) (ConfigMap, error)

	GetConfigMap(ctx context.Context, namespace string, name string) (ConfigMap, error)

	// Replace a ConfigMap. cm should carry the resourceVersion it is based on.
	UpdateConfigMap(ctx context.Context, namespace string, cm *kubecore.ConfigMap) (ConfigMap, error)

	DeleteConfigMap(ctx context.Context, namespace string, name string) error

	// Create new k8s job
	//
	// Args
	//
	// - context.Context
	//
	// - backoff retry.Backoff: backoff policy to wait for Job satisfy all requirements.
	//
	// - string: namespace
	//
	// - *Job: job specification
	//
	// - requirements ...Requirement[Job]: requirements for the Job.
	// They are checked with pods of the Job.
	// If not given, JobHaveBeenCreated is used as default.
	//
	// Return
	//
	// - retry.Promise[Job]
	//
	// Promise which is resolved when the Job is created & satisfied requirements.
	//
	// The Promise may have Error below:
	//
	// - workloads.ErrConflict: Job is already created.
	//
	// - workloads.ErrMissing: Job is missing after created until meets requirements.
	//
	// - other errors come from Requirements and context.Context
	//
	// Whether or not the Promise has Error, Job can be created.
	// So, you may need to Close() it.
	NewJob(context.Context, retry.Backoff, string, *kubebatch.Job, ...Requirement[Job]) retry.Promise[Job]

	// Get existing k8s job, waiting for requirements.
	//
	// The Promise may have workloads.ErrMissing when the Job is not found.
	GetJob(context.Context, retry.Backoff, string, string, ...Requirement[Job]) retry.Promise[Job]

	// Delete a Job and its pods.
	//
	// It returns workloads.ErrMissing when the Job is not found.
	DeleteJob(ctx context.Context, namespace string, name string) error
}

type k8sCluster struct {
	client K8sClient
}

// type check: k8sCluster implements Cluster
var _ Cluster = &k8sCluster{}

// Requirement is a function that checks if a k8s resource satisfies the requirement.
//
// # Return
//
// - error: When the value satisfies the requirement, return nil.
// If it is waiting to satisfy the requirement, return `retry.ErrRetry`.
// Otherwise, return error.
type Requirement[T any] func(value T) error

func satisfyAll[T any](value T, req []Requirement[T]) error {
	for _, r := range req {
		if err := r(value); err != nil {
			return err
		}
	}
	return nil
}

// Attach kubernetes cluster.
func AttachCluster(client K8sClient) Cluster {
	return &k8sCluster{client: client}
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case kubeerr.IsAlreadyExists(err):
		return wl.NewConflictCausedBy("", err)
	case kubeerr.IsNotFound(err):
		return wl.NewMissingCausedBy("", err)
	default:
		return err
	}
}

func (c *k8sCluster) NewConfigMap(ctx context.Context, namespace string, cm *kubecore.ConfigMap) (ConfigMap, error) {
	created, err := c.client.CreateConfigMap(ctx, namespace, cm)
	if err != nil {
		return nil, translate(err)
	}
	klog.V(2).InfoS("configmap created", "namespace", namespace, "name", created.Name)
	return &configMap{resource: created}, nil
}

func (c *k8sCluster) GetConfigMap(ctx context.Context, namespace string, name string) (ConfigMap, error) {
	got, err := c.client.GetConfigMap(ctx, namespace, name)
	if err != nil {
		return nil, translate(err)
	}
	return &configMap{resource: got}, nil
}

func (c *k8sCluster) UpdateConfigMap(ctx context.Context, namespace string, cm *kubecore.ConfigMap) (ConfigMap, error) {
	updated, err := c.client.UpdateConfigMap(ctx, namespace, cm)
	if err != nil {
		return nil, translate(err)
	}
	return &configMap{resource: updated}, nil
}

func (c *k8sCluster) DeleteConfigMap(ctx context.Context, namespace string, name string) error {
	if err := c.client.DeleteConfigMap(ctx, namespace, name); err != nil {
		return translate(err)
	}
	klog.V(2).InfoS("configmap deleted", "namespace", namespace, "name", name)
	return nil
}

var JobHaveBeenCreated Requirement[Job] = func(value Job) error {
	return nil
}

// JobHasFinished is satisfied when the Job completes or fails.
//
// A Job whose container cannot pull its image is regarded as failed.
var JobHasFinished Requirement[Job] = func(value Job) error {
	if value.Status().Finished() {
		return nil
	}
	return retry.ErrRetry
}

func podSelector(j *kubebatch.Job) LabelSelector {
	if j.Spec.Selector != nil && 0 < len(j.Spec.Selector.MatchLabels) {
		return LabelsToSelector(j.Spec.Selector.MatchLabels)
	}
	return LabelSelector{"job-name": Eq(j.Name)}
}

func (c *k8sCluster) findPods(ctx context.Context, namespace string, j *kubebatch.Job) []kubecore.Pod {
	pods, err := c.client.FindPods(ctx, namespace, podSelector(j))
	if err != nil {
		klog.V(2).InfoS("cannot list pods of job", "namespace", namespace, "job", j.Name, "err", err)
		return []kubecore.Pod{}
	}
	return pods
}

func (c *k8sCluster) DeleteJob(ctx context.Context, namespace string, name string) error {
	if err := c.client.DeleteJob(ctx, namespace, name); err != nil {
		return translate(err)
	}
	klog.V(2).InfoS("job deleted", "namespace", namespace, "name", name)
	return nil
}

func (c *k8sCluster) NewJob(
	ctx context.Context, b retry.Backoff, namespace string, j *kubebatch.Job,
	requirements ...Requirement[Job],
) retry.Promise[Job] {
	if len(requirements) == 0 {
		requirements = []Requirement[Job]{JobHaveBeenCreated}
	}

	select {
	case <-ctx.Done():
		return retry.Failed[Job](ctx.Err())
	default:
	}

	_job, err := c.client.CreateJob(ctx, namespace, j)
	if err != nil {
		return retry.Failed[Job](translate(err))
	}
	klog.V(2).InfoS("job created", "namespace", namespace, "name", _job.Name)

	_close := func() error {
		// close should run even if ctx has been done.
		return c.client.DeleteJob(context.Background(), namespace, _job.Name)
	}

	created := &job{job: _job, client: c.client, close: _close}
	if err := satisfyAll[Job](created, requirements); err == nil {
		created.pods = c.findPods(ctx, namespace, _job)
		return retry.Ok[Job](created)
	} else if !errors.Is(err, retry.ErrRetry) {
		return retry.Failed[Job](err)
	}

	return c.GetJob(ctx, b, namespace, _job.Name, requirements...)
}

func (c *k8sCluster) GetJob(
	ctx context.Context, b retry.Backoff, namespace string, name string,
	requirements ...Requirement[Job],
) retry.Promise[Job] {
	if len(requirements) == 0 {
		requirements = []Requirement[Job]{JobHaveBeenCreated}
	}
	_close := func() error {
		return c.client.DeleteJob(context.Background(), namespace, name)
	}

	return retry.Go(ctx, b, func() (Job, error) {
		_job, err := c.client.GetJob(ctx, namespace, name)
		if err != nil {
			return nil, translate(err)
		}
		ret := &job{
			job: _job, pods: c.findPods(ctx, namespace, _job), close: _close, client: c.client,
		}
		if err := satisfyAll[Job](ret, requirements); err != nil {
			return ret, err
		}
		return ret, nil
	})
}
