package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubTXTRoundTrip(t *testing.T) {
	info := &HubInfo{Name: "lab", Port: 7450, Path: "/v1/ws", Auth: true}

	strs := TXTRecordsToStrings(EncodeHubTXT(info))
	assert.Equal(t, []string{"auth=1", "path=/v1/ws", "v=1"}, strs)

	svc, err := DecodeHubTXT(StringsToTXTRecords(strs))
	require.NoError(t, err)
	assert.Equal(t, ProtocolVersion, svc.Version)
	assert.Equal(t, "/v1/ws", svc.Path)
	assert.True(t, svc.Auth)
	assert.False(t, svc.TLS)
}

func TestEncodeHubTXTDefaults(t *testing.T) {
	txt := EncodeHubTXT(&HubInfo{Name: "lab"})
	assert.Equal(t, DefaultPath, txt[TXTKeyPath])
	_, hasAuth := txt[TXTKeyAuth]
	assert.False(t, hasAuth)
}

func TestDecodeHubTXTErrors(t *testing.T) {
	tests := []struct {
		name string
		txt  TXTRecordMap
		want error
	}{
		{"missing version", TXTRecordMap{TXTKeyPath: "/v1/ws"}, ErrMissingRequired},
		{"bad version", TXTRecordMap{TXTKeyVersion: "x", TXTKeyPath: "/v1/ws"}, ErrInvalidVersion},
		{"zero version", TXTRecordMap{TXTKeyVersion: "0", TXTKeyPath: "/v1/ws"}, ErrInvalidVersion},
		{"missing path", TXTRecordMap{TXTKeyVersion: "1"}, ErrMissingRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeHubTXT(tt.txt)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecodeHubTXTNormalizesPath(t *testing.T) {
	svc, err := DecodeHubTXT(TXTRecordMap{TXTKeyVersion: "1", TXTKeyPath: "ws", TXTKeyTLS: "1"})
	require.NoError(t, err)
	assert.Equal(t, "/ws", svc.Path)
	assert.True(t, svc.TLS)
}

func TestStringsToTXTRecords(t *testing.T) {
	txt := StringsToTXTRecords([]string{"a=1", "flag", "", "b=x=y"})
	assert.Equal(t, TXTRecordMap{"a": "1", "flag": "", "b": "x=y"}, txt)
}

func TestValidateInstanceName(t *testing.T) {
	assert.NoError(t, ValidateInstanceName("hub-1"))
	assert.ErrorIs(t, ValidateInstanceName(""), ErrEmptyInstanceName)
	long := make([]byte, MaxInstanceNameLen+1)
	for i := range long {
		long[i] = 'a'
	}
	assert.ErrorIs(t, ValidateInstanceName(string(long)), ErrInstanceNameTooLong)
}
