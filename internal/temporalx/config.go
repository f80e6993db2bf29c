package temporalx

import (
	"github.com/yungbote/lumen-backend/internal/platform/envutil"
)

type Config struct {
	Address   string
	Namespace string
	TaskQueue string

	ClientCertPath string
	ClientKeyPath  string
	ClientCAPath   string
}

func LoadConfig() Config {
	return Config{
		Address:   envutil.String("TEMPORAL_ADDRESS", ""),
		Namespace: envutil.String("TEMPORAL_NAMESPACE", "lumen"),
		TaskQueue: envutil.String("TEMPORAL_TASK_QUEUE", "lumen"),

		ClientCertPath: envutil.String("TEMPORAL_CLIENT_CERT_PATH", ""),
		ClientKeyPath:  envutil.String("TEMPORAL_CLIENT_KEY_PATH", ""),
		ClientCAPath:   envutil.String("TEMPORAL_CLIENT_CA_PATH", ""),
	}
}

// Enabled reports whether generation runs should go through Temporal.
func (c Config) Enabled() bool { return c.Address != "" }

func (c Config) mTLS() bool {
	return c.ClientCertPath != "" || c.ClientKeyPath != "" || c.ClientCAPath != ""
}
