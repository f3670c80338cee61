package bridge

import (
	kubebatch "k8s.io/api/batch/v1"
	kubecore "k8s.io/api/core/v1"
	kubeapimeta "k8s.io/apimachinery/pkg/apis/meta/v1"

	ptr "github.com/opst/bridgepipeline/pkg/utils/pointer"
)

const (
	// name of the container running the bridge.
	ContainerName = "bridge-pod"

	// name of the volume carrying credentials for the external resource.
	CredentialsVolume = "credentials"

	// where credentials are mounted in the bridge container.
	CredentialsMountPath = "/credentials"

	// environment variables passed to the bridge container.
	EnvNamespace = "NAMESPACE"
	EnvJobName   = "JOBNAME"

	// suffix of Job names made by Invoker.
	JobSuffix = "-bridge-pod"
)

// command of the bridge container, when Invocation.Command is empty.
var DefaultCommand = []string{"sh", "-c"}

// pull policy of the bridge container, when Invocation.ImagePullPolicy is empty.
const DefaultImagePullPolicy = kubecore.PullIfNotPresent

// Invocation describes how the bridge container runs.
//
// Values may be concrete ones or placeholders of a workflow engine.
// Invocation does not interpret them.
type Invocation struct {
	JobName        string
	Namespace      string
	ResourceSecret string

	// image of the bridge container.
	Image string

	// command of the bridge container. Default is DefaultCommand.
	Command []string

	// passed as the single argument for Command.
	Arguments string

	// Default is DefaultImagePullPolicy.
	ImagePullPolicy string
}

// Container returns the spec of the bridge container.
func (i Invocation) Container() kubecore.Container {
	command := DefaultCommand
	if 0 < len(i.Command) {
		command = i.Command
	}
	policy := DefaultImagePullPolicy
	if i.ImagePullPolicy != "" {
		policy = kubecore.PullPolicy(i.ImagePullPolicy)
	}

	return kubecore.Container{
		Name:            ContainerName,
		Image:           i.Image,
		Command:         append([]string{}, command...),
		Args:            []string{i.Arguments},
		ImagePullPolicy: policy,
		Env: []kubecore.EnvVar{
			{Name: EnvNamespace, Value: i.Namespace},
			{Name: EnvJobName, Value: i.JobName},
		},
		VolumeMounts: []kubecore.VolumeMount{
			{Name: CredentialsVolume, MountPath: CredentialsMountPath},
		},
	}
}

// Volumes returns volumes which the bridge container mounts.
func (i Invocation) Volumes() []kubecore.Volume {
	return []kubecore.Volume{
		{
			Name: CredentialsVolume,
			VolumeSource: kubecore.VolumeSource{
				Secret: &kubecore.SecretVolumeSource{SecretName: i.ResourceSecret},
			},
		},
	}
}

// K8sJobName returns the name of the k8s Job running the invocation.
func (i Invocation) K8sJobName() string {
	return i.JobName + JobSuffix
}

// Job returns a k8s Job running the bridge container once.
//
// The Job does not retry. Retries are up to the bridge container and the external resource.
func (i Invocation) Job() *kubebatch.Job {
	return &kubebatch.Job{
		TypeMeta: kubeapimeta.TypeMeta{
			APIVersion: "batch/v1",
			Kind:       "Job",
		},
		ObjectMeta: kubeapimeta.ObjectMeta{
			Name:      i.K8sJobName(),
			Namespace: i.Namespace,
		},
		Spec: kubebatch.JobSpec{
			BackoffLimit: ptr.Ref[int32](0),
			Template: kubecore.PodTemplateSpec{
				Spec: kubecore.PodSpec{
					RestartPolicy: kubecore.RestartPolicyNever,
					Containers:    []kubecore.Container{i.Container()},
					Volumes:       i.Volumes(),
				},
			},
		},
	}
}
