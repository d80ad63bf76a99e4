package domain

import "time"

// Platform is the detected runtime variant. Darwin and Windows are the
// native-capable desktops; everything else resolves to Linux and is
// browser-only.
type Platform string

const (
	PlatformDarwin  Platform = "darwin"
	PlatformWindows Platform = "windows"
	PlatformLinux   Platform = "linux"
)

// NativeCapable reports whether the platform can host the provider helper.
func (p Platform) NativeCapable() bool {
	return p == PlatformDarwin || p == PlatformWindows
}

// StorageKind is the recommended local session storage mechanism.
type StorageKind string

const (
	StorageSQLite StorageKind = "sqlite"
	StorageFile   StorageKind = "file"
	StorageMemory StorageKind = "memory"
)

func IsValidStorageKind(s string) bool {
	switch StorageKind(s) {
	case StorageSQLite, StorageFile, StorageMemory:
		return true
	default:
		return false
	}
}

// Capabilities reports what the current runtime can do for OAuth delivery
// and session persistence.
type Capabilities struct {
	NativeHelperAvailable    bool
	BrowserRedirectAvailable bool
	RecommendedStorage       StorageKind
}

// DeliveryPlan is the ordered choice of delivery methods for one provider on
// one platform.
type DeliveryPlan struct {
	Preferred Method
	Fallbacks []Method
}

// Methods returns the plan as one ordered slice, preferred first.
func (d DeliveryPlan) Methods() []Method {
	return append([]Method{d.Preferred}, d.Fallbacks...)
}

// ProviderAvailability is per-provider health with a probe timestamp.
// Refreshed before each attempt; never persisted across restarts.
type ProviderAvailability struct {
	Provider  Provider
	Healthy   bool
	CheckedAt time.Time
}
