// Package appid holds the application identity shared by the CLI, the HTTP
// server and telemetry.
package appid

import (
	"os"
	"strings"

	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/config"
)

// Identity names the application on every outward surface.
type Identity struct {
	BinaryName  string
	Vendor      string
	EnvPrefix   string
	ConfigName  string
	Description string
}

// TelemetryNamespace is the Prometheus namespace for this binary.
func (i Identity) TelemetryNamespace() string {
	return strings.ReplaceAll(strings.ToLower(i.BinaryName), "-", "_")
}

// EnvVar returns the prefixed environment variable name for suffix.
func (i Identity) EnvVar(suffix string) string {
	return i.EnvPrefix + "_" + strings.ToUpper(suffix)
}

// Get returns the identity. CRYPTOZAP_BINARY_NAME overrides the binary name
// shown in help and version output.
func Get() Identity {
	identity := Identity{
		BinaryName:  config.AppName,
		Vendor:      "CryptoZapCommunity",
		EnvPrefix:   config.EnvPrefix,
		ConfigName:  config.AppName,
		Description: "Crypto market data aggregator with rate-limited, cache-backed fallback feeds",
	}
	if name := strings.TrimSpace(os.Getenv(identity.EnvVar("BINARY_NAME"))); name != "" {
		identity.BinaryName = name
	}
	return identity
}
