package kubeutil

import (
	"os"
	"path/filepath"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"

	xe "github.com/opst/bridgepipeline/pkg/errors"
)

// Kubeconfig decides which kubeconfig file should be used.
//
// It searches kubeconfig from
//
// - `~/.kube/config`
//
// - environmental variable `KUBECONFIG`
//
// - explicit (given by command line flag)
//
// Later has priority. Empty string is returned when no files are found,
// and it means in-cluster config should be used.
func Kubeconfig(explicit string) string {
	kubeconfig := ""

	// priority 1 (least): ~/.kube/config
	if home := homedir.HomeDir(); home != "" {
		kubeconfig = filepath.Join(home, ".kube", "config")
	}

	// priority 2: envvar KUBECONFIG
	if k := os.Getenv("KUBECONFIG"); k != "" {
		kubeconfig = k
	}

	// priority 3 (most): flag
	if explicit != "" {
		kubeconfig = explicit
	}

	if kubeconfig != "" {
		stat, err := os.Stat(kubeconfig)
		if err != nil || stat.IsDir() {
			kubeconfig = ""
		}
	}
	return kubeconfig
}

// ConnectToK8s creates a clientset with the kubeconfig which Kubeconfig(explicit) decides.
//
// When no kubeconfig files are found, it tries to use in-cluster config.
func ConnectToK8s(explicit string) (*kubernetes.Clientset, error) {
	kubeconfig := Kubeconfig(explicit)

	var config *rest.Config
	var err error
	if kubeconfig == "" {
		// fallback: try in-cluster
		config, err = rest.InClusterConfig()
	} else {
		config, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	}
	if err != nil {
		return nil, xe.Wrap(err)
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	return clientset, nil
}
