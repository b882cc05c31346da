package discovery

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeHubTXT creates TXT records for a hub advertisement.
func EncodeHubTXT(info *HubInfo) TXTRecordMap {
	txt := make(TXTRecordMap)

	txt[TXTKeyVersion] = strconv.Itoa(ProtocolVersion)

	path := info.Path
	if path == "" {
		path = DefaultPath
	}
	txt[TXTKeyPath] = path

	// Flags are only present when set
	if info.Auth {
		txt[TXTKeyAuth] = "1"
	}
	if info.TLS {
		txt[TXTKeyTLS] = "1"
	}

	return txt
}

// DecodeHubTXT parses TXT records from a hub advertisement.
func DecodeHubTXT(txt TXTRecordMap) (*HubService, error) {
	svc := &HubService{}

	vStr, ok := txt[TXTKeyVersion]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyVersion)
	}
	v, err := strconv.Atoi(vStr)
	if err != nil || v < 1 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVersion, vStr)
	}
	svc.Version = v

	svc.Path, ok = txt[TXTKeyPath]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyPath)
	}
	if !strings.HasPrefix(svc.Path, "/") {
		svc.Path = "/" + svc.Path
	}

	svc.Auth = txt[TXTKeyAuth] == "1"
	svc.TLS = txt[TXTKeyTLS] == "1"

	return svc, nil
}

// TXTRecordsToStrings converts a TXTRecordMap to "key=value" strings in
// key order.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(result)
	return result
}

// StringsToTXTRecords parses a slice of "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		parts := strings.SplitN(s, "=", 2)
		if len(parts) == 2 {
			txt[parts[0]] = parts[1]
		} else if len(parts) == 1 && parts[0] != "" {
			// Key without value (boolean flag)
			txt[parts[0]] = ""
		}
	}
	return txt
}

// ValidateInstanceName checks if an instance name is valid for mDNS.
func ValidateInstanceName(name string) error {
	if name == "" {
		return ErrEmptyInstanceName
	}
	if len(name) > MaxInstanceNameLen {
		return ErrInstanceNameTooLong
	}
	return nil
}
