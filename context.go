package sessionkit

import "context"

type deviceIDContextKey struct{}

// WithDeviceID attaches the device identifier to ctx. The Manager stamps it
// onto audit events so records from different installs stay attributable.
func WithDeviceID(ctx context.Context, deviceID string) context.Context {
	return context.WithValue(ctx, deviceIDContextKey{}, deviceID)
}

func deviceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	deviceID, _ := ctx.Value(deviceIDContextKey{}).(string)
	return deviceID
}
