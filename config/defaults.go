package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mensylisir/xmbuild/common"
	"github.com/mensylisir/xmbuild/runtime"
)

const (
	DefaultLogLevel         = "info"
	DefaultMetricsNamespace = common.AppName
	DefaultSSHTimeout       = 30 * time.Second
)

// SetDefaults fills unset fields in place.
func SetDefaults(cfg *BuildConfig) {
	if cfg == nil {
		return
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = APIVersion
	}
	if cfg.Kind == "" {
		cfg.Kind = Kind
	}
	if cfg.Spec.WorkDir == "" {
		cfg.Spec.WorkDir = runtime.DefaultWorkDir
	}
	if cfg.Spec.Logging.Level == "" {
		cfg.Spec.Logging.Level = DefaultLogLevel
	}
	if cfg.Spec.Metrics.Namespace == "" {
		cfg.Spec.Metrics.Namespace = DefaultMetricsNamespace
	}

	if h := cfg.Spec.Host; h != nil {
		if h.Port == 0 {
			h.Port = common.DefaultSSHPort
		}
		if h.Timeout == 0 {
			h.Timeout = DefaultSSHTimeout
		}
		if h.Name == "" {
			h.Name = h.Address
		}
		h.PrivateKeyPath = expandHome(h.PrivateKeyPath)
	}
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
