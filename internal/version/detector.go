package version

import (
	"runtime/debug"
	"strings"
)

const (
	unknownVersionFallbackConstant = "unknown"
	buildInfoDevelVersionValue     = "(devel)"
	revisionSettingKeyConstant     = "vcs.revision"
	modifiedSettingKeyConstant     = "vcs.modified"
	modifiedSettingTrueConstant    = "true"
	revisionPrefixConstant         = "devel+"
	modifiedSuffixConstant         = "-dirty"
	shortRevisionLengthConstant    = 12
)

// BuildInfoProvider exposes runtime build metadata.
type BuildInfoProvider interface {
	Read() (*debug.BuildInfo, bool)
}

// Detector resolves application version strings.
type Detector struct {
	buildInfoProvider BuildInfoProvider
}

// NewDetector constructs a Detector. A nil provider reads the running binary's build information.
func NewDetector(buildInfoProvider BuildInfoProvider) *Detector {
	provider := buildInfoProvider
	if provider == nil {
		provider = runtimeBuildInfoProvider{}
	}
	return &Detector{buildInfoProvider: provider}
}

// Detect resolves the version of the running binary.
func Detect() string {
	return NewDetector(nil).Version()
}

// Version returns the module version, a devel+<revision> string for source builds, or "unknown".
func (detector *Detector) Version() string {
	if detector == nil || detector.buildInfoProvider == nil {
		return unknownVersionFallbackConstant
	}

	buildInfo, available := detector.buildInfoProvider.Read()
	if !available || buildInfo == nil {
		return unknownVersionFallbackConstant
	}

	trimmedVersion := strings.TrimSpace(buildInfo.Main.Version)
	if len(trimmedVersion) > 0 && !strings.EqualFold(trimmedVersion, buildInfoDevelVersionValue) {
		return trimmedVersion
	}

	if revisionVersion := versionFromRevision(buildInfo.Settings); len(revisionVersion) > 0 {
		return revisionVersion
	}

	return unknownVersionFallbackConstant
}

func versionFromRevision(settings []debug.BuildSetting) string {
	revision := ""
	modified := false
	for _, setting := range settings {
		switch setting.Key {
		case revisionSettingKeyConstant:
			revision = strings.TrimSpace(setting.Value)
		case modifiedSettingKeyConstant:
			modified = setting.Value == modifiedSettingTrueConstant
		}
	}

	if len(revision) == 0 {
		return ""
	}
	if len(revision) > shortRevisionLengthConstant {
		revision = revision[:shortRevisionLengthConstant]
	}

	versionString := revisionPrefixConstant + revision
	if modified {
		versionString += modifiedSuffixConstant
	}
	return versionString
}

type runtimeBuildInfoProvider struct{}

func (runtimeBuildInfoProvider) Read() (*debug.BuildInfo, bool) {
	return debug.ReadBuildInfo()
}
