package wire

import (
	"os"
	"strconv"
	"strings"
)

const (
	// EnvCompressedSize tunes the payload size, in bytes, at which the
	// compressed binary variant starts compressing strings and byte blobs.
	EnvCompressedSize = "WIRE_COMPRESSED_SIZE"

	// EnvDebug bypasses the scratch cache so overlapping diagnostic traces
	// never share a buffer.
	EnvDebug = "WIRE_DEBUG"
)

const defaultCompressedSize = 128

var (
	compressedSize = envInt(EnvCompressedSize, defaultCompressedSize)
	debugMode      = envBool(EnvDebug)
)

func envBool(key string) bool {
	v, ok := parseBool(os.Getenv(key))
	return ok && v
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func parseBool(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return false, false
	case "1", "t", "true", "y", "yes", "on":
		return true, true
	case "0", "f", "false", "n", "no", "off":
		return false, true
	default:
		return false, false
	}
}
