package bridge

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// environment variable to point a config file.
const EnvConfig = "BRIDGE_CONFIG"

var ErrInvalidConfig = errors.New("invalid config")

// Default returns configuration with all default values.
func Default() *BridgeConfig {
	return TrySeal[*BridgeConfig](&BridgeConfigMarshall{})
}

// load bridge config from a file.
//
// args:
//   - filepath: filepath refers a config file.
//     When it is empty or does not exist, default configuration is returned.
//
// returns *BridgeConfig, error:
//
//	When loading success, returns `(*BridgeConfig, nil)`.
//	Otherwise, returns `(nil, error)`.
func Load(filepath string) (*BridgeConfig, error) {
	if filepath == "" {
		return Default(), nil
	}
	content, err := os.ReadFile(filepath)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	} else if err != nil {
		return nil, err
	}
	return Unmarshal(content)
}

func Unmarshal(conf []byte) (out *BridgeConfig, err error) {
	var _out *BridgeConfigMarshall
	if err := yaml.Unmarshal(conf, &_out); err != nil {
		return nil, err
	}

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		out = nil
		if e, ok := r.(error); ok {
			err = fmt.Errorf("%w: %w", ErrInvalidConfig, e)
		} else {
			err = fmt.Errorf("%w: %v", ErrInvalidConfig, r)
		}
	}()
	out = TrySeal[*BridgeConfig](_out)
	return out, nil
}
