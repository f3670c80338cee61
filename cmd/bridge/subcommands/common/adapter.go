package common

import (
	"context"
	"errors"
	"fmt"
	"log"

	bconf "github.com/opst/bridgepipeline/pkg/configs/bridge"
	"github.com/opst/bridgepipeline/pkg/kubeutil"
	k8s "github.com/opst/bridgepipeline/pkg/workloads/k8s"
	"github.com/youta-t/flarc"
)

type BridgeTaskWithCommonFlag[T any] func(
	ctx context.Context,
	logger *log.Logger,
	commonFlag CommonFlags,
	cl flarc.Commandline[T],
	params []any,
) error

func NewTaskWithCommonFlag[T any](task BridgeTaskWithCommonFlag[T]) flarc.Task[T] {
	return func(ctx context.Context, cl flarc.Commandline[T], pos []any) error {
		var commonFlag CommonFlags
		found := false
		newpos := make([]any, 0, len(pos))
		for _, p := range pos {
			switch v := p.(type) {
			case CommonFlags:
				found = true
				commonFlag = v
			default:
				newpos = append(newpos, p)
			}
		}
		if !found {
			return errors.New("programming error: common flags not found")
		}

		logger := log.New(cl.Stderr(), "", log.LstdFlags)
		logger.SetPrefix(fmt.Sprintf("[%s] ", cl.Fullname()))

		return task(ctx, logger, commonFlag, cl, newpos)
	}
}

// ConfigTask is a task which needs bridge config, but not cluster.
type ConfigTask[T any] func(
	ctx context.Context,
	logger *log.Logger,
	conf *bconf.BridgeConfig,
	cl flarc.Commandline[T],
	params []any,
) error

func NewConfigTask[T any](task ConfigTask[T]) flarc.Task[T] {
	return NewTaskWithCommonFlag(func(
		ctx context.Context,
		logger *log.Logger,
		commonFlag CommonFlags,
		cl flarc.Commandline[T],
		params []any,
	) error {
		conf, err := bconf.Load(commonFlag.Config)
		if err != nil {
			return fmt.Errorf("%w: failed to load bridge config (%s)", err, commonFlag.Config)
		}
		return task(ctx, logger, conf, cl, params)
	})
}

// Task is a task working on a cluster.
type Task[T any] func(
	ctx context.Context,
	logger *log.Logger,
	conf *bconf.BridgeConfig,
	cluster k8s.Cluster,
	cl flarc.Commandline[T],
	params []any,
) error

func NewTask[T any](task Task[T]) flarc.Task[T] {
	return NewTaskWithCommonFlag(func(
		ctx context.Context,
		logger *log.Logger,
		commonFlag CommonFlags,
		cl flarc.Commandline[T],
		params []any,
	) error {
		conf, err := bconf.Load(commonFlag.Config)
		if err != nil {
			return fmt.Errorf("%w: failed to load bridge config (%s)", err, commonFlag.Config)
		}

		// a cluster passed as a parameter is used as it is.
		cluster, ok := flarc.FindParam[k8s.Cluster](params)
		if !ok {
			clientset, err := kubeutil.ConnectToK8s(commonFlag.Kubeconfig)
			if err != nil {
				return fmt.Errorf(
					"%w: cannot connect to kubernetes. Check --kubeconfig, KUBECONFIG or ~/.kube/config", err,
				)
			}
			cluster = k8s.AttachCluster(k8s.WrapK8sClient(clientset))
		}
		return task(ctx, logger, conf, cluster, cl, params)
	})
}
