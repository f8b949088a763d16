package kms

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/vault/shamir"

	"github.com/ruteri/keymaster/primitives"
	"github.com/ruteri/keymaster/secret"
)

// ShamirConfig contains parameters for splitting and recovering a master key.
type ShamirConfig struct {
	// Threshold is the minimum number of shares required to reconstruct the master key
	Threshold int
	// AdminPubKeys, when set, restricts recovery to shares signed by one of these keys
	AdminPubKeys []ed25519.PublicKey
}

func (c ShamirConfig) validate(shares int) error {
	if c.Threshold < 2 {
		return errors.New("threshold must be at least 2")
	}
	if shares < c.Threshold {
		return errors.New("total shares must be at least equal to threshold")
	}
	if shares > 255 {
		return errors.New("at most 255 shares are supported")
	}
	return nil
}

// SplitMasterKey splits a master key into shares, any threshold of which
// reconstruct it. Shares are secret material; hand each to a different
// custodian and zero the returned slices afterwards.
func SplitMasterKey(m *MasterKey, shares, threshold int) ([][]byte, error) {
	if err := (ShamirConfig{Threshold: threshold}).validate(shares); err != nil {
		return nil, err
	}

	var parts [][]byte
	err := m.buf.WithReadAccess(func(master []byte) error {
		var err error
		parts, err = shamir.Split(master, shares, threshold)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to split master key: %w", err)
	}
	return parts, nil
}

// SignShare signs a share with a custodian's key for submission to a
// ShamirRecovery configured with AdminPubKeys.
func SignShare(share []byte, privateKey ed25519.PrivateKey) []byte {
	return ed25519.Sign(privateKey, share)
}

// ShamirRecovery collects shares until the threshold is met and then
// reconstructs the master key. The reconstructed key lives only in secure
// memory.
type ShamirRecovery struct {
	mu             sync.Mutex
	suite          primitives.Suite
	config         ShamirConfig
	receivedShares map[byte][]byte // keyed by the share's x-coordinate
	masterKey      *MasterKey
}

// NewShamirRecovery creates a locked recovery session.
func NewShamirRecovery(suite primitives.Suite, config ShamirConfig) (*ShamirRecovery, error) {
	if config.Threshold < 2 {
		return nil, errors.New("threshold must be at least 2")
	}
	for _, pub := range config.AdminPubKeys {
		if len(pub) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("invalid admin public key length %d", len(pub))
		}
	}
	return &ShamirRecovery{
		suite:          suite,
		config:         config,
		receivedShares: make(map[byte][]byte),
	}, nil
}

// SubmitShare adds an unsigned share. It fails if the session requires
// signed shares. The returned flag reports whether the master key is now
// available. The share is copied; the caller should zero its slice.
func (r *ShamirRecovery) SubmitShare(share []byte) (bool, error) {
	if len(r.config.AdminPubKeys) > 0 {
		return false, fmt.Errorf("%w: share must be signed by an admin", ErrInvalidShare)
	}
	return r.submit(share)
}

// SubmitSignedShare adds a share signed by one of the configured admins.
func (r *ShamirRecovery) SubmitSignedShare(share, signature []byte, admin ed25519.PublicKey) (bool, error) {
	authorized := false
	for _, pub := range r.config.AdminPubKeys {
		if pub.Equal(admin) {
			authorized = true
			break
		}
	}
	if !authorized {
		return false, fmt.Errorf("%w: unregistered admin public key", ErrInvalidShare)
	}
	if !ed25519.Verify(admin, share, signature) {
		return false, fmt.Errorf("%w: invalid signature", ErrInvalidShare)
	}
	return r.submit(share)
}

func (r *ShamirRecovery) submit(share []byte) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.masterKey != nil {
		return true, errors.New("master key already recovered")
	}
	// A share is the split secret plus a trailing x-coordinate byte.
	if len(share) != r.suite.MasterKeyLen()+1 {
		return false, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidShare, r.suite.MasterKeyLen()+1, len(share))
	}
	x := share[len(share)-1]
	if _, ok := r.receivedShares[x]; ok {
		return false, fmt.Errorf("%w: duplicate share", ErrInvalidShare)
	}

	stored := make([]byte, len(share))
	copy(stored, share)
	r.receivedShares[x] = stored

	if err := r.tryReconstruct(); err != nil {
		return false, err
	}
	return r.masterKey != nil, nil
}

// tryReconstruct combines the received shares once the threshold is met.
// Shares are wiped afterwards, whether or not reconstruction succeeded.
func (r *ShamirRecovery) tryReconstruct() error {
	if len(r.receivedShares) < r.config.Threshold {
		return nil
	}

	shares := make([][]byte, 0, len(r.receivedShares))
	for _, share := range r.receivedShares {
		shares = append(shares, share)
	}
	defer func() {
		for _, share := range shares {
			secret.Zero(share)
		}
		r.receivedShares = make(map[byte][]byte)
	}()

	combined, err := shamir.Combine(shares)
	if err != nil {
		return fmt.Errorf("failed to reconstruct master key: %w", err)
	}

	masterKey, err := RestoreMasterKey(r.suite, combined)
	if err != nil {
		return err
	}
	r.masterKey = masterKey
	return nil
}

// IsUnlocked reports whether the master key has been reconstructed.
func (r *ShamirRecovery) IsUnlocked() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.masterKey != nil
}

// MasterKey returns the reconstructed master key. Ownership passes to the
// caller, who must Destroy it; subsequent calls fail with ErrLocked.
func (r *ShamirRecovery) MasterKey() (*MasterKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.masterKey == nil {
		return nil, ErrLocked
	}
	masterKey := r.masterKey
	r.masterKey = nil
	return masterKey, nil
}
