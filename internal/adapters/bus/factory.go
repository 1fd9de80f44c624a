package bus

import (
	"fmt"

	"github.com/okian/standings/internal/config"
	"github.com/okian/standings/pkg/logger"
)

// Open builds the bus selected by cfg.
func Open(cfg *config.Config, log logger.Logger) (Bus, error) {
	switch cfg.BusBackend {
	case config.BusMemory, "":
		return NewMemoryBus(log), nil
	case config.BusNATS:
		b, err := NewNATSBus(cfg.NATSURL, log)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown bus backend %q", cfg.BusBackend)
	}
}
