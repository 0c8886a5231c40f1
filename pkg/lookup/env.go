package lookup

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ConfigFromEnv builds a Config from LOOKUP_* environment variables.
// Unset or unparsable variables leave the corresponding field zero so
// NewResolver applies its defaults.
//
//	LOOKUP_NETWORK_PRESET     mainnet | testnet | local
//	LOOKUP_SLAP_TRACKERS      comma-separated tracker host URLs
//	LOOKUP_HOSTS_TTL_MS       hosts cache TTL
//	LOOKUP_HOSTS_MAX_ENTRIES  hosts cache capacity
//	LOOKUP_TX_MEMO_TTL_MS     transaction-id memo TTL
func ConfigFromEnv() Config {
	var cfg Config
	switch strings.ToLower(strings.TrimSpace(os.Getenv("LOOKUP_NETWORK_PRESET"))) {
	case "mainnet":
		cfg.NetworkPreset = Mainnet
	case "testnet":
		cfg.NetworkPreset = Testnet
	case "local":
		cfg.NetworkPreset = Local
	}
	if raw := os.Getenv("LOOKUP_SLAP_TRACKERS"); raw != "" {
		for _, v := range strings.Split(raw, ",") {
			v = strings.TrimSpace(v)
			if v != "" {
				cfg.SLAPTrackers = append(cfg.SLAPTrackers, v)
			}
		}
	}
	if v, err := strconv.Atoi(os.Getenv("LOOKUP_HOSTS_TTL_MS")); err == nil && v > 0 {
		cfg.HostsCacheTTL = time.Duration(v) * time.Millisecond
	}
	if v, err := strconv.Atoi(os.Getenv("LOOKUP_HOSTS_MAX_ENTRIES")); err == nil && v > 0 {
		cfg.HostsCacheMaxEntries = v
	}
	if v, err := strconv.Atoi(os.Getenv("LOOKUP_TX_MEMO_TTL_MS")); err == nil && v > 0 {
		cfg.TxMemoTTL = time.Duration(v) * time.Millisecond
	}
	return cfg
}
