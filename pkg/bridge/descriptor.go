package bridge

import (
	kubecore "k8s.io/api/core/v1"
	kubeapimeta "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// suffix of ConfigMap names
const ConfigMapSuffix = "-bridge-cm"

// keys of the bridge ConfigMap, written by Writer.
const (
	KeyUpdateInterval      = "updateInterval"
	KeyResourceURL         = "resourceURL"
	KeyResourceSecret      = "resourcesecret"
	KeyJobProperties       = "jobproperties"
	KeyAdditionalData      = "jobdata.additionalData"
	KeyScriptMetadata      = "jobdata.scriptMetadata"
	KeyJobParameters       = "jobdata.jobParameters"
	KeyScriptExtraLocation = "jobdata.scriptExtraLocation"
	KeyJobScript           = "jobdata.jobScript"
	KeyScriptLocation      = "jobdata.scriptLocation"
)

// DescriptorKeys lists all keys the bridge ConfigMap always has.
var DescriptorKeys = []string{
	KeyUpdateInterval,
	KeyResourceURL,
	KeyResourceSecret,
	KeyJobProperties,
	KeyAdditionalData,
	KeyScriptMetadata,
	KeyJobParameters,
	KeyScriptExtraLocation,
	KeyJobScript,
	KeyScriptLocation,
}

// JobDescriptor is the set of parameters handed to the bridge container.
//
// Values are opaque. They are stored as they are, without any parsing.
type JobDescriptor struct {
	// name of the job. It decides the name of the ConfigMap.
	JobName string

	// namespace where the ConfigMap and the bridge container are placed.
	Namespace string

	// address of the external resource.
	ResourceURL string

	// name of the Secret holding credentials for the external resource.
	ResourceSecret string

	// script name or script content.
	Script string

	// where the script is: inline, s3 or remote.
	ScriptLocation string

	// bucket:file
	ScriptMetadata string

	// s3 or inline
	ScriptExtraLocation string

	AdditionalData string
	JobProperties  string
	JobParameters  string

	// poll interval of the bridge container, in seconds.
	UpdateInterval string
}

// ConfigMapName returns the name of the ConfigMap for the job.
func ConfigMapName(jobName string) string {
	return jobName + ConfigMapSuffix
}

// ConfigMapData returns the content of the bridge ConfigMap.
//
// All keys in DescriptorKeys are present, even if the value is empty.
func (d JobDescriptor) ConfigMapData() map[string]string {
	return map[string]string{
		KeyUpdateInterval:      d.UpdateInterval,
		KeyResourceURL:         d.ResourceURL,
		KeyResourceSecret:      d.ResourceSecret,
		KeyJobProperties:       d.JobProperties,
		KeyAdditionalData:      d.AdditionalData,
		KeyScriptMetadata:      d.ScriptMetadata,
		KeyJobParameters:       d.JobParameters,
		KeyScriptExtraLocation: d.ScriptExtraLocation,
		KeyJobScript:           d.Script,
		KeyScriptLocation:      d.ScriptLocation,
	}
}

// ConfigMap builds the ConfigMap object to be created.
func (d JobDescriptor) ConfigMap() *kubecore.ConfigMap {
	return &kubecore.ConfigMap{
		TypeMeta: kubeapimeta.TypeMeta{
			APIVersion: "v1",
			Kind:       "ConfigMap",
		},
		ObjectMeta: kubeapimeta.ObjectMeta{
			Name:      ConfigMapName(d.JobName),
			Namespace: d.Namespace,
		},
		Data: d.ConfigMapData(),
	}
}
