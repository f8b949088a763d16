package storage

import (
	"path/filepath"
	"testing"

	"github.com/ruteri/keymaster/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func mustLocation(t *testing.T, uri string) interfaces.StoreLocation {
	t.Helper()
	location, err := interfaces.NewStoreLocation(uri)
	require.NoError(t, err)
	return location
}

func TestStoreFactory_StoreFor(t *testing.T) {
	keyring.MockInit()
	dir := t.TempDir()
	identityPath, _ := writeAgeIdentity(t)
	factory := NewStoreFactory(quietLogger())

	tests := []struct {
		name     string
		uri      string
		wantType interface{}
		wantErr  bool
	}{
		{name: "memory", uri: "memory://", wantType: &MemoryStore{}},
		{name: "file", uri: "file://" + filepath.Join(dir, "plain"), wantType: &FileStore{}},
		{name: "sealed file", uri: "file://" + filepath.Join(dir, "sealed") + "?age-identity=" + identityPath, wantType: &FileStore{}},
		{name: "file with missing identity", uri: "file://" + dir + "?age-identity=" + filepath.Join(dir, "nope.txt"), wantErr: true},
		{name: "keyring", uri: "keyring://com.example.", wantType: &KeyringStore{}},
		{name: "vault", uri: "vault://127.0.0.1:8200/secret/keymaster?tls=false", wantType: &VaultStore{}},
		{name: "vault without mount", uri: "vault://127.0.0.1:8200", wantErr: true},
		{name: "s3", uri: "s3://AKIA:secret@bucket/prefix?region=eu-west-1&endpoint=http://127.0.0.1:9000", wantType: &S3Store{}},
		{name: "s3 without bucket", uri: "s3:///prefix", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := factory.StoreFor(mustLocation(t, tt.uri))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, store)
		})
	}
}

func TestStoreFactory_SealedFileRoundTrip(t *testing.T) {
	identityPath, _ := writeAgeIdentity(t)
	uri := "file://" + t.TempDir() + "?age-identity=" + identityPath

	store, err := NewStoreFactory(quietLogger()).StoreFor(mustLocation(t, uri))
	require.NoError(t, err)
	assert.Contains(t, store.LocationURI(), "sealed=true")
	exerciseStore(t, store)
}

func TestStoreFactory_MultiStoreFor(t *testing.T) {
	keyring.MockInit()
	factory := NewStoreFactory(quietLogger())

	single, err := factory.StoresFromURIs([]string{"memory://"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, single)

	multi, err := factory.StoresFromURIs([]string{"keyring://com.example.", "file://" + t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &MultiStore{}, multi)
	exerciseStore(t, multi)

	_, err = factory.StoresFromURIs([]string{"memory://", "ipfs://127.0.0.1:5001"})
	assert.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)

	_, err = factory.StoresFromURIs(nil)
	assert.Error(t, err)
}
