package pipeline

import (
	"errors"
	"regexp"
	"slices"

	xe "github.com/opst/bridgepipeline/pkg/errors"
	kubecore "k8s.io/api/core/v1"
)

var (
	ErrDuplicatedName      = errors.New("duplicated name")
	ErrUnknownDependency   = errors.New("step depends on unknown step")
	ErrUndeclaredParameter = errors.New("parameter is not declared")
	ErrCyclicDependency    = errors.New("steps depend on each other cyclically")
)

// annotation to limit staleness of cached step results.
const AnnotationMaxCacheStaleness = "pipelines.kubeflow.org/max_cache_staleness"

// staleness which disables caching
const NoCache = "P0D"

// Param is an input of Pipeline.
type Param struct {
	Name string

	// nil for required parameters.
	Default *string
}

// Optional tells the param has default value.
func (p Param) Optional() bool {
	return p.Default != nil
}

// Step is a container which runs as a part of Pipeline.
type Step struct {
	Name string

	// Strings in Container and Volumes can refer inputs with `Input(name)`.
	Container kubecore.Container
	Volumes   []kubecore.Volume

	// parameters of the pipeline passed to the step.
	Inputs []string

	// names of steps which should be done before this.
	DependsOn []string

	// ISO 8601 duration. Empty means the platform default.
	MaxCacheStaleness string
}

// Pipeline is a DAG of steps with named string parameters.
type Pipeline struct {
	Name        string
	Description string
	Params      []Param
	Steps       []Step

	// service account running steps.
	ServiceAccount string
}

// Input returns the placeholder of a step input in the workflow.
func Input(name string) string {
	return "{{inputs.parameters." + name + "}}"
}

var inputRef = regexp.MustCompile(`\{\{inputs\.parameters\.([^}]+)\}\}`)

func references(s string) []string {
	refs := []string{}
	for _, m := range inputRef.FindAllStringSubmatch(s, -1) {
		refs = append(refs, m[1])
	}
	return refs
}

// strings of a step which may have placeholders.
func (s Step) templated() []string {
	c := s.Container
	ret := []string{c.Image, string(c.ImagePullPolicy), c.WorkingDir}
	ret = append(ret, c.Command...)
	ret = append(ret, c.Args...)
	for _, e := range c.Env {
		ret = append(ret, e.Value)
	}
	for _, v := range s.Volumes {
		if v.Secret != nil {
			ret = append(ret, v.Secret.SecretName)
		}
		if v.ConfigMap != nil {
			ret = append(ret, v.ConfigMap.Name)
		}
	}
	return ret
}

// Validate checks consistency of the pipeline.
//
// # Returns
//
// - []Step: steps in execution order. Steps without order each other keep declaration order.
//
// - error: wraps one of below:
//
//   - ErrDuplicatedName: params or steps have same name.
//
//   - ErrUnknownDependency: a step depends on a step not in the pipeline.
//
//   - ErrUndeclaredParameter: a step uses a parameter which is not declared in pipeline or the step.
//
//   - ErrCyclicDependency: dependencies of steps have a loop.
func (p *Pipeline) Validate() ([]Step, error) {
	params := map[string]struct{}{}
	for _, pa := range p.Params {
		if _, ok := params[pa.Name]; ok {
			return nil, xe.Notef(ErrDuplicatedName, "parameter %s", pa.Name)
		}
		params[pa.Name] = struct{}{}
	}

	steps := map[string]Step{}
	for _, s := range p.Steps {
		if _, ok := steps[s.Name]; ok {
			return nil, xe.Notef(ErrDuplicatedName, "step %s", s.Name)
		}
		steps[s.Name] = s
	}

	for _, s := range p.Steps {
		for _, d := range s.DependsOn {
			if _, ok := steps[d]; !ok {
				return nil, xe.Notef(ErrUnknownDependency, "step %s -> %s", s.Name, d)
			}
		}
		for _, in := range s.Inputs {
			if _, ok := params[in]; !ok {
				return nil, xe.Notef(ErrUndeclaredParameter, "step %s uses %s", s.Name, in)
			}
		}
		for _, t := range s.templated() {
			for _, ref := range references(t) {
				if !slices.Contains(s.Inputs, ref) {
					return nil, xe.Notef(ErrUndeclaredParameter, "step %s refers %s", s.Name, ref)
				}
			}
		}
	}

	return p.sort()
}

// topological sort, stable for declaration order.
func (p *Pipeline) sort() ([]Step, error) {
	const (
		unvisited = iota
		visiting
		visited
	)
	state := map[string]int{}
	index := map[string]Step{}
	for _, s := range p.Steps {
		index[s.Name] = s
	}

	sorted := make([]Step, 0, len(p.Steps))
	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case visited:
			return nil
		case visiting:
			return xe.Notef(ErrCyclicDependency, "at step %s", name)
		}
		state[name] = visiting
		for _, d := range index[name].DependsOn {
			if err := visit(d); err != nil {
				return err
			}
		}
		state[name] = visited
		sorted = append(sorted, index[name])
		return nil
	}

	for _, s := range p.Steps {
		if err := visit(s.Name); err != nil {
			return nil, err
		}
	}
	return sorted, nil
}
