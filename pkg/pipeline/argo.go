package pipeline

import (
	"encoding/json"
	"path/filepath"
	"strings"

	xe "github.com/opst/bridgepipeline/pkg/errors"
	kubecore "k8s.io/api/core/v1"
	"sigs.k8s.io/yaml"
)

// subset of Argo Workflow, as Kubeflow Pipelines v1 compiler emits.

const (
	WorkflowAPIVersion = "argoproj.io/v1alpha1"
	WorkflowKind       = "Workflow"

	AnnotationPipelineSpec = "pipelines.kubeflow.org/pipeline_spec"
)

type Workflow struct {
	APIVersion string       `json:"apiVersion"`
	Kind       string       `json:"kind"`
	Metadata   WorkflowMeta `json:"metadata"`
	Spec       WorkflowSpec `json:"spec"`
}

type WorkflowMeta struct {
	GenerateName string            `json:"generateName"`
	Annotations  map[string]string `json:"annotations,omitempty"`
	Labels       map[string]string `json:"labels,omitempty"`
}

type WorkflowSpec struct {
	Entrypoint         string     `json:"entrypoint"`
	Templates          []Template `json:"templates"`
	Arguments          Arguments  `json:"arguments"`
	ServiceAccountName string     `json:"serviceAccountName,omitempty"`
}

type Arguments struct {
	Parameters []Parameter `json:"parameters,omitempty"`
}

type Parameter struct {
	Name  string  `json:"name"`
	Value *string `json:"value,omitempty"`
}

type Inputs struct {
	Parameters []Parameter `json:"parameters,omitempty"`
}

type TemplateMeta struct {
	Annotations map[string]string `json:"annotations,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
}

type Template struct {
	Name      string              `json:"name"`
	Inputs    *Inputs             `json:"inputs,omitempty"`
	Metadata  *TemplateMeta       `json:"metadata,omitempty"`
	Container *kubecore.Container `json:"container,omitempty"`
	Volumes   []kubecore.Volume   `json:"volumes,omitempty"`
	DAG       *DAG                `json:"dag,omitempty"`
}

type DAG struct {
	Tasks []DAGTask `json:"tasks"`
}

type DAGTask struct {
	Name         string     `json:"name"`
	Template     string     `json:"template"`
	Dependencies []string   `json:"dependencies,omitempty"`
	Arguments    *Arguments `json:"arguments,omitempty"`
}

// pipelineSpec is the value of AnnotationPipelineSpec.
type pipelineSpec struct {
	Description string      `json:"description,omitempty"`
	Inputs      []inputSpec `json:"inputs,omitempty"`
	Name        string      `json:"name"`
}

type inputSpec struct {
	Default  *string `json:"default,omitempty"`
	Name     string  `json:"name"`
	Optional bool    `json:"optional,omitempty"`
	Type     string  `json:"type"`
}

// Workflow converts the pipeline into an Argo Workflow.
//
// It returns errors which Validate returns.
func (p *Pipeline) Workflow() (*Workflow, error) {
	steps, err := p.Validate()
	if err != nil {
		return nil, err
	}

	spec := pipelineSpec{Name: p.Name, Description: p.Description}
	entryInputs := []Parameter{}
	wfArgs := []Parameter{}
	for _, pa := range p.Params {
		spec.Inputs = append(spec.Inputs, inputSpec{
			Name: pa.Name, Default: pa.Default, Optional: pa.Optional(), Type: "String",
		})
		entryInputs = append(entryInputs, Parameter{Name: pa.Name})
		wfArgs = append(wfArgs, Parameter{Name: pa.Name, Value: pa.Default})
	}
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return nil, xe.Wrap(err)
	}

	tasks := make([]DAGTask, 0, len(steps))
	templates := make([]Template, 0, len(steps)+1)
	for _, s := range steps {
		args := make([]Parameter, 0, len(s.Inputs))
		ins := make([]Parameter, 0, len(s.Inputs))
		for _, in := range s.Inputs {
			v := Input(in)
			args = append(args, Parameter{Name: in, Value: &v})
			ins = append(ins, Parameter{Name: in})
		}
		task := DAGTask{
			Name:         s.Name,
			Template:     s.Name,
			Dependencies: s.DependsOn,
		}
		if 0 < len(args) {
			task.Arguments = &Arguments{Parameters: args}
		}
		tasks = append(tasks, task)

		c := s.Container.DeepCopy()
		c.Name = "main" // Argo names the step container "main".
		tmpl := Template{
			Name:      s.Name,
			Container: c,
			Volumes:   s.Volumes,
		}
		if 0 < len(ins) {
			tmpl.Inputs = &Inputs{Parameters: ins}
		}
		if s.MaxCacheStaleness != "" {
			tmpl.Metadata = &TemplateMeta{
				Annotations: map[string]string{AnnotationMaxCacheStaleness: s.MaxCacheStaleness},
			}
		}
		templates = append(templates, tmpl)
	}

	entry := Template{
		Name: p.Name,
		DAG:  &DAG{Tasks: tasks},
	}
	if 0 < len(entryInputs) {
		entry.Inputs = &Inputs{Parameters: entryInputs}
	}

	return &Workflow{
		APIVersion: WorkflowAPIVersion,
		Kind:       WorkflowKind,
		Metadata: WorkflowMeta{
			GenerateName: p.Name + "-",
			Annotations: map[string]string{
				AnnotationPipelineSpec: string(specJSON),
			},
		},
		Spec: WorkflowSpec{
			Entrypoint:         p.Name,
			Templates:          append([]Template{entry}, templates...),
			Arguments:          Arguments{Parameters: wfArgs},
			ServiceAccountName: p.ServiceAccount,
		},
	}, nil
}

// Compile serializes the pipeline as an Argo Workflow YAML document.
func Compile(p *Pipeline) ([]byte, error) {
	wf, err := p.Workflow()
	if err != nil {
		return nil, err
	}
	out, err := yaml.Marshal(wf)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	return out, nil
}

// OutputPath returns the default path of the compiled document for source: its extension replaced with ".yaml".
func OutputPath(source string) string {
	ext := filepath.Ext(source)
	return strings.TrimSuffix(source, ext) + ".yaml"
}
