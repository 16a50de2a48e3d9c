package bootstrap

import (
	"github.com/kbukum/streamkit/config"
)

// Config is satisfied by any pointer to a struct embedding
// config.ServiceConfig, through promoted methods. Binaries that add sections
// override ApplyDefaults and Validate and call the embedded ones.
type Config interface {
	GetServiceConfig() *config.ServiceConfig
	ApplyDefaults()
	Validate() error
}
