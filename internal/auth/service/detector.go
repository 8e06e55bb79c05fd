package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/tabernacle-io/congregate/internal/auth/cache"
	"github.com/tabernacle-io/congregate/internal/auth/domain"
	"github.com/tabernacle-io/congregate/pkg/slogx"
)

// DeviceDetector flags logins from unrecognized devices. A device is the
// hash of the source address and user agent; known devices live in a
// cache set per user with a sliding TTL, so a device unseen for the whole
// retention window reads as new again.
type DeviceDetector struct {
	Cache    cache.Cache
	Audit    AuditSink
	Notifier Notifier
	TTL      time.Duration
}

func deviceFingerprint(ip, userAgent string) string {
	sum := sha256.Sum256([]byte(ip + "|" + userAgent))
	return hex.EncodeToString(sum[:])
}

func knownDevicesKey(userID string) string {
	return "known_devices:" + userID
}

// Observe records the device of a successful authentication. On the first
// sighting it emits a new_device_detected event and notifies the user.
// Cache outages degrade to skipping detection for the request.
func (d *DeviceDetector) Observe(ctx context.Context, user domain.User, ip, userAgent string) {
	fp := deviceFingerprint(ip, userAgent)
	key := knownDevicesKey(user.ID)

	known, err := d.Cache.HasSetMember(ctx, key, fp)
	if err != nil {
		if errors.Is(err, cache.ErrUnavailable) {
			slogx.FromContext(ctx).Warn("device detection skipped", slog.Any("error", err))
			return
		}
		slogx.FromContext(ctx).Error("device lookup failed", slog.Any("error", err))
		return
	}

	if err := d.Cache.AddSetMember(ctx, key, fp, d.TTL); err != nil {
		slogx.FromContext(ctx).Warn("device not remembered", slog.Any("error", err))
	}

	if known {
		return
	}

	// The fingerprint lets admins correlate sightings of the same device
	// across addresses.
	d.Audit.Record(ctx, domain.EventNewDeviceDetected, user.ID, user.ID, map[string]string{
		"ip":          ip,
		"user_agent":  userAgent,
		"fingerprint": fp,
	})
	if d.Notifier != nil {
		d.Notifier.NewDeviceLogin(ctx, user, ip, userAgent)
	}
}
