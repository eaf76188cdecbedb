package extract

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/taix/internal/common"
)

// LoadConfig reads a YAML (or JSON) question set and validates it.
// Any problem is a configuration error.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, common.NewAppError(common.CodeConfig, "read extraction config", fmt.Errorf("%w: %v", common.ErrConfiguration, err))
	}
	return ParseConfig(data)
}

// ParseConfig decodes and validates a question set.
func ParseConfig(data []byte) (Config, error) {
	var generic any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return Config{}, configError("decode extraction config", err)
	}
	// round-trip through JSON so the validator sees plain JSON types
	js, err := json.Marshal(generic)
	if err != nil {
		return Config{}, configError("normalize extraction config", err)
	}
	var doc any
	if err := json.Unmarshal(js, &doc); err != nil {
		return Config{}, configError("normalize extraction config", err)
	}
	if err := validateAgainstSchema(configSchema(), doc); err != nil {
		return Config{}, configError("validate extraction config", err)
	}

	var cfg Config
	if err := json.Unmarshal(js, &cfg); err != nil {
		return Config{}, configError("decode extraction config", err)
	}

	seen := make(map[string]struct{}, len(cfg.Questions))
	for _, q := range cfg.Questions {
		if _, dup := seen[q.TargetField]; dup {
			return Config{}, configError("validate extraction config", fmt.Errorf("duplicate target_field %q", q.TargetField))
		}
		seen[q.TargetField] = struct{}{}
	}
	return cfg, nil
}

func configError(msg string, err error) error {
	return common.NewAppError(common.CodeConfig, msg, fmt.Errorf("%w: %v", common.ErrConfiguration, err))
}
