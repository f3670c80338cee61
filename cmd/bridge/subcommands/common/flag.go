package common

import (
	"os"

	bconf "github.com/opst/bridgepipeline/pkg/configs/bridge"
)

type CommonFlags struct {
	Kubeconfig string `flag:"kubeconfig" metavar:"path/to/kubeconfig" help:"path to kubeconfig file. If not found, in-cluster config is used."`
	Config     string `flag:"config" metavar:"path/to/config.yaml" help:"path to bridge config file. Defaults are used if it does not exist."`
}

// Flags returns default values of CommonFlags, detected from environment variables.
func Flags() CommonFlags {
	return CommonFlags{
		Kubeconfig: "",
		Config:     os.Getenv(bconf.EnvConfig),
	}
}
