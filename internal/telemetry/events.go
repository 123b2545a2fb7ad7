package telemetry

import (
	"runtime"

	"github.com/virtual-shiksha/shiksha/pkg/version"
)

// Event names - CLI
const (
	EventAppStarted         = "app_started"
	EventAppExited          = "app_exited"
	EventCLICommandExecuted = "cli_command_executed"
	EventCLIErrorOccurred   = "cli_error_occurred"
)

// Event names - offline layer
const (
	EventSyncDrained           = "sync_drained"
	EventSyncAbandoned         = "sync_abandoned"
	EventCacheInstalled        = "cache_installed"
	EventCacheActivated        = "cache_activated"
	EventCacheEvicted          = "cache_evicted"
	EventOfflineFallbackServed = "offline_fallback_served"
)

// baseProperties returns common properties for all events.
func baseProperties() map[string]interface{} {
	return map[string]interface{}{
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"version":    version.Short(),
		"prerelease": version.IsPrerelease(),
		"dev_build":  version.IsDevBuild(),
	}
}

// --- CLI Tracking Methods ---

// TrackAppStarted tracks application startup.
func (c *posthogClient) TrackAppStarted(mode string) {
	props := baseProperties()
	props["mode"] = mode
	c.Track(EventAppStarted, props)
}

// TrackAppExited tracks application exit.
func (c *posthogClient) TrackAppExited(mode string, sessionDurationMs int64) {
	props := baseProperties()
	props["mode"] = mode
	props["session_duration_ms"] = sessionDurationMs
	c.Track(EventAppExited, props)
}

// TrackCLICommandExecuted tracks CLI command execution.
func (c *posthogClient) TrackCLICommandExecuted(commandName string, hasFlags bool, durationMs int64) {
	props := baseProperties()
	props["command_name"] = commandName
	props["has_flags"] = hasFlags
	props["execution_duration_ms"] = durationMs
	c.Track(EventCLICommandExecuted, props)
}

// TrackCLIError tracks CLI errors by category, never the message itself.
func (c *posthogClient) TrackCLIError(commandName, errorType string) {
	props := baseProperties()
	props["command_name"] = commandName
	props["error_type"] = errorType
	c.Track(EventCLIErrorOccurred, props)
}

// --- Sync queue ---

// TrackSyncDrained tracks the outcome of one drain pass.
func (c *posthogClient) TrackSyncDrained(delivered, failed, abandoned, remaining int, durationMs int64) {
	props := baseProperties()
	props["delivered"] = delivered
	props["failed"] = failed
	props["abandoned"] = abandoned
	props["remaining"] = remaining
	props["duration_ms"] = durationMs
	c.Track(EventSyncDrained, props)
}

// TrackSyncAbandoned tracks an entry dropped after its last attempt.
func (c *posthogClient) TrackSyncAbandoned(syncType string, attempts int) {
	props := baseProperties()
	props["sync_type"] = syncType
	props["attempts"] = attempts
	c.Track(EventSyncAbandoned, props)
}

// --- Cache router ---

// TrackCacheInstalled tracks an app shell install.
func (c *posthogClient) TrackCacheInstalled(cacheVersion string, assetCount int) {
	props := baseProperties()
	props["cache_version"] = cacheVersion
	props["asset_count"] = assetCount
	c.Track(EventCacheInstalled, props)
}

// TrackCacheActivated tracks activation and old cache cleanup.
func (c *posthogClient) TrackCacheActivated(cacheVersion string, deletedCaches int) {
	props := baseProperties()
	props["cache_version"] = cacheVersion
	props["deleted_caches"] = deletedCaches
	c.Track(EventCacheActivated, props)
}

// TrackCacheEvicted tracks a trim of the dynamic cache.
func (c *posthogClient) TrackCacheEvicted(cacheName string, entries int, bytes int64) {
	props := baseProperties()
	props["cache_name"] = cacheName
	props["entries"] = entries
	props["bytes"] = bytes
	c.Track(EventCacheEvicted, props)
}

// TrackOfflineFallbackServed tracks when a fallback stood in for the network.
func (c *posthogClient) TrackOfflineFallbackServed(requestClass, fallback string) {
	props := baseProperties()
	props["request_class"] = requestClass
	props["fallback"] = fallback
	c.Track(EventOfflineFallbackServed, props)
}

// --- No-op implementations ---

func (c *noopClient) TrackAppStarted(mode string)                                           {}
func (c *noopClient) TrackAppExited(mode string, sessionDurationMs int64)                   {}
func (c *noopClient) TrackCLICommandExecuted(commandName string, hasFlags bool, d int64)    {}
func (c *noopClient) TrackCLIError(commandName, errorType string)                           {}
func (c *noopClient) TrackSyncDrained(delivered, failed, abandoned, remaining int, d int64) {}
func (c *noopClient) TrackSyncAbandoned(syncType string, attempts int)                      {}
func (c *noopClient) TrackCacheInstalled(cacheVersion string, assetCount int)               {}
func (c *noopClient) TrackCacheActivated(cacheVersion string, deletedCaches int)            {}
func (c *noopClient) TrackCacheEvicted(cacheName string, entries int, bytes int64)          {}
func (c *noopClient) TrackOfflineFallbackServed(requestClass, fallback string)              {}
