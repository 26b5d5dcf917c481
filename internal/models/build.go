package models

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Platform is a build platform
type Platform string

const (
	PlatformIOS             Platform = "ios"
	PlatformMacOSSPM        Platform = "macos-spm"
	PlatformMacOSXcodebuild Platform = "macos-xcodebuild"
	PlatformLinux           Platform = "linux"
	PlatformTvOS            Platform = "tvos"
	PlatformWatchOS         Platform = "watchos"
	PlatformVisionOS        Platform = "visionos"
	PlatformAndroid         Platform = "android"
	PlatformWasm            Platform = "wasm"
)

// AllPlatforms lists every platform builds run on
var AllPlatforms = []Platform{
	PlatformIOS, PlatformMacOSSPM, PlatformMacOSXcodebuild, PlatformLinux,
	PlatformTvOS, PlatformWatchOS, PlatformVisionOS, PlatformAndroid, PlatformWasm,
}

// BuildStatus is the outcome of a build
type BuildStatus string

const (
	BuildOK                  BuildStatus = "ok"
	BuildFailed              BuildStatus = "failed"
	BuildTriggered           BuildStatus = "triggered"
	BuildInfrastructureError BuildStatus = "infrastructureError"
	BuildTimeout             BuildStatus = "timeout"
)

// SwiftVersion is a toolchain version
type SwiftVersion struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Patch int `json:"patch"`
}

// String drops a zero patch component: 5.8.0 renders as "5.8".
func (s SwiftVersion) String() string {
	if s.Patch == 0 {
		return fmt.Sprintf("%d.%d", s.Major, s.Minor)
	}
	return fmt.Sprintf("%d.%d.%d", s.Major, s.Minor, s.Patch)
}

// Build is one platform/toolchain build of a version.
type Build struct {
	ID           uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	VersionID    uuid.UUID    `gorm:"type:uuid;not null;index" json:"version_id"`
	Platform     Platform     `gorm:"size:32;not null" json:"platform"`
	SwiftVersion SwiftVersion `gorm:"embedded;embeddedPrefix:swift_" json:"swift_version"`
	Status       BuildStatus  `gorm:"size:32;not null" json:"status"`
}

func (b *Build) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
