package interfaces

import (
	"errors"
	"strings"
)

// KeyType names a kind of persona key. The string is part of the persisted
// item id and must not change without a migration.
type KeyType string

const (
	MasterKeyType      KeyType = "MasterKey"
	SecretBoxKeyType   KeyType = "SecretBox.SecretKey"
	GenericHashKeyType KeyType = "GenericHash.Key"
)

// AllKeyTypes lists every key type a persona can own, in deletion order.
var AllKeyTypes = []KeyType{MasterKeyType, SecretBoxKeyType, GenericHashKeyType}

// ParseKeyType returns the key type with the given name.
func ParseKeyType(name string) (KeyType, error) {
	for _, kt := range AllKeyTypes {
		if string(kt) == name {
			return kt, nil
		}
	}
	return "", errors.New("unknown key type: " + name)
}

func (kt KeyType) String() string {
	return string(kt)
}

// ItemID returns the secret store item id of a key type for an application:
// "<applicationIdentity>/<KeyType>". The persona name is the account.
func ItemID(applicationIdentity string, kt KeyType) string {
	return applicationIdentity + "/" + string(kt)
}

// ValidateApplicationIdentity checks that an application identity can be
// used as an item id prefix.
func ValidateApplicationIdentity(applicationIdentity string) error {
	if applicationIdentity == "" {
		return errors.New("application identity cannot be empty")
	}
	if strings.Contains(applicationIdentity, "/") {
		return errors.New("application identity cannot contain '/'")
	}
	return nil
}
