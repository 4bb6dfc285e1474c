// ABOUTME: Push-notification device registration for the current user
// ABOUTME: Registers this installation's device id with the org after login

package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bhariharan/SalesforceMobileSDK-Templates/internal/client"
)

var (
	// ErrNoDeviceID is returned when registration is attempted without a device id.
	ErrNoDeviceID = errors.New("no device id")
)

// DeviceRegistrar is the part of the REST client registration needs.
type DeviceRegistrar interface {
	RegisterPushDevice(ctx context.Context, device client.PushDevice) (string, error)
}

// Registrar registers devices for one push service type.
type Registrar struct {
	serviceType string
}

// NewRegistrar creates a Registrar for serviceType
func NewRegistrar(serviceType string) *Registrar {
	return &Registrar{serviceType: serviceType}
}

// Register records deviceID as a push target for the logged-in user and returns
// the id of the created device record.
func (r *Registrar) Register(ctx context.Context, api DeviceRegistrar, deviceID string) (string, error) {
	if deviceID == "" {
		return "", ErrNoDeviceID
	}

	id, err := api.RegisterPushDevice(ctx, client.PushDevice{
		ConnectionToken: deviceID,
		ServiceType:     r.serviceType,
	})
	if err != nil {
		return "", fmt.Errorf("register device %s: %w", deviceID, err)
	}

	slog.Info("Registered for push notifications", "device_id", deviceID, "record_id", id, "service_type", r.serviceType)
	return id, nil
}
