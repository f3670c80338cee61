package configmap

import (
	"context"
	"fmt"
	"log"

	"github.com/opst/bridgepipeline/cmd/bridge/subcommands/common"
	"github.com/opst/bridgepipeline/pkg/bridge"
	bconf "github.com/opst/bridgepipeline/pkg/configs/bridge"
	wl "github.com/opst/bridgepipeline/pkg/workloads"
	k8s "github.com/opst/bridgepipeline/pkg/workloads/k8s"
	"github.com/youta-t/flarc"
)

func New() (flarc.Command, error) {
	create, err := flarc.NewCommand(
		"Create the ConfigMap holding parameters of a bridge job.",
		CreateFlag{UpdateInterval: "20"},
		flarc.Args{},
		common.NewTask(CreateTask()),
		flarc.WithDescription(`
Create the ConfigMap "<job-name>-bridge-cm" in the namespace.
It fails when the ConfigMap exists already, and leaves it as it is.

This is the first step of the bridge pipeline.
`),
	)
	if err != nil {
		return nil, err
	}

	del, err := flarc.NewCommand(
		"Delete the ConfigMap of a bridge job.",
		DeleteFlag{},
		flarc.Args{},
		common.NewTask(DeleteTask()),
		flarc.WithDescription(`
Delete the ConfigMap "<job-name>-bridge-cm" from the namespace.
It fails when the ConfigMap is not found.

This is the last step of the bridge pipeline.
`),
	)
	if err != nil {
		return nil, err
	}

	return flarc.NewCommandGroup(
		"Manipulate ConfigMaps of bridge jobs.",
		struct{}{},
		flarc.WithSubcommand("create", create),
		flarc.WithSubcommand("delete", del),
	)
}

type CreateFlag struct {
	JobName             string `flag:"job-name" help:"required. name of the job"`
	Namespace           string `flag:"namespace" alias:"n" help:"required. namespace where the ConfigMap is created"`
	ResourceURL         string `flag:"resource-url" help:"address of the external resource"`
	ResourceSecret      string `flag:"resource-secret" help:"name of the Secret with credentials for the external resource"`
	Script              string `flag:"script" help:"script name or content"`
	ScriptLocation      string `flag:"script-location" metavar:"inline|s3|remote" help:"where the script is"`
	ScriptMetadata      string `flag:"script-metadata" metavar:"bucket:file" help:"script metadata"`
	ScriptExtraLocation string `flag:"script-extra-location" help:"location for script extra components"`
	AdditionalData      string `flag:"additional-data" help:"extra files required"`
	JobProperties       string `flag:"job-properties" help:"job properties"`
	JobParameters       string `flag:"job-parameters" help:"job parameters"`
	UpdateInterval      string `flag:"update-interval" metavar:"SECONDS" help:"poll interval of the external resource"`
}

func (f CreateFlag) Descriptor() bridge.JobDescriptor {
	return bridge.JobDescriptor{
		JobName:             f.JobName,
		Namespace:           f.Namespace,
		ResourceURL:         f.ResourceURL,
		ResourceSecret:      f.ResourceSecret,
		Script:              f.Script,
		ScriptLocation:      f.ScriptLocation,
		ScriptMetadata:      f.ScriptMetadata,
		ScriptExtraLocation: f.ScriptExtraLocation,
		AdditionalData:      f.AdditionalData,
		JobProperties:       f.JobProperties,
		JobParameters:       f.JobParameters,
		UpdateInterval:      f.UpdateInterval,
	}
}

type DeleteFlag struct {
	JobName   string `flag:"job-name" help:"required. name of the job"`
	Namespace string `flag:"namespace" alias:"n" help:"required. namespace where the ConfigMap is"`
}

func requireJob(jobName, namespace string) error {
	if jobName == "" {
		return fmt.Errorf("%w: --job-name is required", flarc.ErrUsage)
	}
	if namespace == "" {
		return fmt.Errorf("%w: --namespace is required", flarc.ErrUsage)
	}
	return nil
}

func CreateTask() common.Task[CreateFlag] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		_ *bconf.BridgeConfig,
		cluster k8s.Cluster,
		cl flarc.Commandline[CreateFlag],
		params []any,
	) error {
		flags := cl.Flags()
		if err := requireJob(flags.JobName, flags.Namespace); err != nil {
			return err
		}

		cm, err := bridge.NewWriter(cluster).Create(ctx, flags.Descriptor())
		if err != nil {
			if wl.AsConflict(err) {
				return fmt.Errorf(
					"%w: ConfigMap %s exists. Another run with the same job name may be in progress",
					err, bridge.ConfigMapName(flags.JobName),
				)
			}
			return err
		}
		logger.Printf("ConfigMap %s/%s is created.", cm.Namespace(), cm.Name())
		return nil
	}
}

func DeleteTask() common.Task[DeleteFlag] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		_ *bconf.BridgeConfig,
		cluster k8s.Cluster,
		cl flarc.Commandline[DeleteFlag],
		params []any,
	) error {
		flags := cl.Flags()
		if err := requireJob(flags.JobName, flags.Namespace); err != nil {
			return err
		}

		err := bridge.NewDeleter(cluster).Delete(ctx, flags.JobName, flags.Namespace)
		if wl.AsMissing(err) {
			return fmt.Errorf("%w: ConfigMap %s is not found", err, bridge.ConfigMapName(flags.JobName))
		} else if err != nil {
			return err
		}
		logger.Printf("ConfigMap %s/%s is deleted.", flags.Namespace, bridge.ConfigMapName(flags.JobName))
		return nil
	}
}
