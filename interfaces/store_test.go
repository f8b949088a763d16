package interfaces

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStoreLocation(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		scheme  string
		wantErr bool
	}{
		{name: "memory", uri: "memory://", scheme: "memory"},
		{name: "file", uri: "file:///var/lib/keymaster", scheme: "file"},
		{name: "keyring", uri: "keyring://com.example", scheme: "keyring"},
		{name: "vault", uri: "vault://vault.local:8200/secret/keymaster?tls=true", scheme: "vault"},
		{name: "s3 upper case scheme", uri: "S3://bucket/prefix?region=eu-west-1", scheme: "s3"},
		{name: "unsupported scheme", uri: "ipfs://127.0.0.1:5001", wantErr: true},
		{name: "malformed", uri: "://nope", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := NewStoreLocation(tt.uri)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidLocationURI)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.scheme, loc.Scheme)
		})
	}
}

func TestStoreLocation_Params(t *testing.T) {
	loc, err := NewStoreLocation("vault://vault.local:8200/secret/keys?tls=yes&token-env=MY_TOKEN")
	require.NoError(t, err)

	assert.Equal(t, "vault.local:8200", loc.Host)
	assert.Equal(t, "/secret/keys", loc.Path)
	assert.True(t, loc.GetParamBool("tls"))
	assert.False(t, loc.GetParamBool("missing"))
	assert.Equal(t, "MY_TOKEN", loc.GetParam("token-env"))
}

func TestStoreLocation_StringRedactsPassword(t *testing.T) {
	loc, err := NewStoreLocation("s3://AKIA:supersecret@bucket/prefix")
	require.NoError(t, err)
	assert.NotContains(t, loc.String(), "supersecret")
	assert.Contains(t, loc.String(), "AKIA")
}

func TestItemID(t *testing.T) {
	assert.Equal(t, "com.example.app/MasterKey", ItemID("com.example.app", MasterKeyType))
	assert.Equal(t, "com.example.app/SecretBox.SecretKey", ItemID("com.example.app", SecretBoxKeyType))
	assert.Equal(t, "com.example.app/GenericHash.Key", ItemID("com.example.app", GenericHashKeyType))
}

func TestParseKeyType(t *testing.T) {
	for _, kt := range AllKeyTypes {
		parsed, err := ParseKeyType(kt.String())
		require.NoError(t, err)
		assert.Equal(t, kt, parsed)
	}
	_, err := ParseKeyType("Sign.SecretKey")
	assert.Error(t, err)
}

func TestValidateApplicationIdentity(t *testing.T) {
	assert.NoError(t, ValidateApplicationIdentity("com.example.app"))
	assert.Error(t, ValidateApplicationIdentity(""))
	assert.Error(t, ValidateApplicationIdentity("com/example"))
}
