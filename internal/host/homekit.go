package host

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/brutella/hap"
	"github.com/brutella/hap/accessory"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/vueswitch/internal/config"
)

// Info describes the accessory to the host.
type Info struct {
	Name         string
	UniqueID     string
	Manufacturer string
	Model        string
	Firmware     string
}

// SerialNumber returns a stable identifier for the accessory. A configured
// unique id that is not a UUID is hashed into one.
func (i Info) SerialNumber() string {
	if id, err := uuid.Parse(i.UniqueID); err == nil {
		return id.String()
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(i.UniqueID+"/"+i.Name)).String()
}

// HomeKit exposes the switch as a HAP accessory.
type HomeKit struct {
	name   string
	acc    *accessory.Switch
	server *hap.Server
	logger *logrus.Logger
}

func NewHomeKit(cfg config.HomeKitConfig, info Info, logger *logrus.Logger) (*HomeKit, error) {
	acc := accessory.NewSwitch(accessory.Info{
		Name:         info.Name,
		SerialNumber: info.SerialNumber(),
		Manufacturer: info.Manufacturer,
		Model:        info.Model,
		Firmware:     info.Firmware,
	})

	store := hap.NewFsStore(cfg.StoragePath)
	server, err := hap.NewServer(store, acc.A)
	if err != nil {
		return nil, fmt.Errorf("creating HomeKit server: %w", err)
	}
	server.Pin = cfg.Pin
	if cfg.Addr != "" {
		server.Addr = cfg.Addr
	}

	return &HomeKit{
		name:   info.Name,
		acc:    acc,
		server: server,
		logger: logger,
	}, nil
}

func (h *HomeKit) OnGet(fn func() bool) {
	h.acc.Switch.On.ValueRequestFunc = func(*http.Request) (interface{}, int) {
		return fn(), 0
	}
}

func (h *HomeKit) OnSet(fn func(on bool)) {
	h.acc.Switch.On.OnValueRemoteUpdate(fn)
}

func (h *HomeKit) Publish(on bool) error {
	h.acc.Switch.On.SetValue(on)
	return nil
}

func (h *HomeKit) Run(ctx context.Context) error {
	h.logger.WithField("name", h.name).Info("Starting HomeKit accessory server")
	err := h.server.ListenAndServe(ctx)
	if err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		return fmt.Errorf("HomeKit server: %w", err)
	}
	return nil
}
