package main

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/ruteri/keymaster/cmd/flags"
	"github.com/ruteri/keymaster/config"
	"github.com/ruteri/keymaster/interfaces"
	"github.com/ruteri/keymaster/kms"
	"github.com/ruteri/keymaster/persona"
	"github.com/ruteri/keymaster/primitives"
	"github.com/ruteri/keymaster/secret"
	"github.com/ruteri/keymaster/storage"
	"github.com/urfave/cli/v2"
	"golang.org/x/crypto/blake2b"
)

var flagMasterFile = &cli.StringFlag{
	Name:     "master-file",
	Required: true,
	Usage:    "file holding a base64 master key",
}

var flagOut = &cli.StringFlag{
	Name:  "out",
	Usage: "write the key to this file (mode 0600) instead of stdout",
}

var flagSize = &cli.IntFlag{
	Name:  "size",
	Value: 32,
	Usage: "derived key size in bytes",
}

var flagSubKeyID = &cli.Uint64Flag{
	Name:  "id",
	Usage: "subkey id",
}

var flagContext = &cli.StringFlag{
	Name:     "context",
	Required: true,
	Usage:    "derivation context, exactly as long as the suite requires (8 bytes for blake2b)",
}

var flagPersonaName = &cli.StringFlag{
	Name:     "name",
	Required: true,
	Usage:    "persona unique name",
}

var flagKeyType = &cli.StringFlag{
	Name:  "type",
	Value: interfaces.MasterKeyType.String(),
	Usage: "key type: MasterKey, SecretBox.SecretKey or GenericHash.Key",
}

var flagShares = &cli.IntFlag{
	Name:  "shares",
	Value: 3,
	Usage: "number of shares to produce",
}

var flagThreshold = &cli.IntFlag{
	Name:  "threshold",
	Value: 2,
	Usage: "number of shares required to recover",
}

var flagShare = &cli.StringSliceFlag{
	Name:     "share",
	Required: true,
	Usage:    "base64 share; signed shares are \"<share> <signature> <admin-pubkey>\"",
}

var flagAdminKeyFile = &cli.StringFlag{
	Name:  "admin-key-file",
	Usage: "file holding a base64 ed25519 seed used to sign the shares",
}

var flagAdminPubkey = &cli.StringSliceFlag{
	Name:  "admin-pubkey",
	Usage: "base64 ed25519 public key allowed to sign shares; when set only signed shares are accepted",
}

func main() {
	app := &cli.App{
		Name:  "keytool",
		Usage: "Generate, derive and manage persona keys",
		Flags: flags.CommonFlags,
		Commands: []*cli.Command{
			{
				Name:  "suites",
				Usage: "List the available derivation suites",
				Action: func(cCtx *cli.Context) error {
					for _, name := range primitives.Names() {
						suite, _ := primitives.Lookup(name)
						fmt.Printf("%s\tmaster=%d context=%d subkey=%d-%d\n", name,
							suite.MasterKeyLen(), suite.ContextLen(), suite.MinSubkeyLen(), suite.MaxSubkeyLen())
					}
					return nil
				},
			},
			{
				Name:   "generate",
				Usage:  "Generate a random master key",
				Flags:  []cli.Flag{flagOut},
				Action: generateCmd,
			},
			{
				Name:   "derive",
				Usage:  "Derive a subkey from a master key",
				Flags:  []cli.Flag{flagMasterFile, flagSize, flagSubKeyID, flagContext},
				Action: deriveCmd,
			},
			{
				Name:  "persona",
				Usage: "Manage persona keys in the configured stores",
				Subcommands: []*cli.Command{
					{
						Name:   "get",
						Usage:  "Get or create a persona key and print its fingerprint",
						Flags:  []cli.Flag{flagPersonaName, flagKeyType},
						Action: personaGetCmd,
					},
					{
						Name:   "forget",
						Usage:  "Delete every key of a persona",
						Flags:  []cli.Flag{flagPersonaName},
						Action: personaForgetCmd,
					},
				},
			},
			{
				Name:  "shamir",
				Usage: "Split a master key among custodians and recover it",
				Subcommands: []*cli.Command{
					{
						Name:   "split",
						Usage:  "Split a master key into shares",
						Flags:  []cli.Flag{flagMasterFile, flagShares, flagThreshold, flagAdminKeyFile},
						Action: shamirSplitCmd,
					},
					{
						Name:   "combine",
						Usage:  "Recover a master key from shares",
						Flags:  []cli.Flag{flagShare, flagThreshold, flagAdminPubkey, flagOut},
						Action: shamirCombineCmd,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// setup loads configuration and the logger shared by every command.
func setup(cCtx *cli.Context) (*config.Config, primitives.Suite, *slog.Logger, error) {
	cfg, err := flags.LoadConfig(cCtx)
	if err != nil {
		return nil, nil, nil, err
	}
	logger := flags.SetupLogger(cCtx, cfg)

	suite, err := cfg.Suite()
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, suite, logger, nil
}

func generateCmd(cCtx *cli.Context) error {
	_, suite, logger, err := setup(cCtx)
	if err != nil {
		return err
	}

	masterKey := kms.GenerateMasterKey(suite)
	defer masterKey.Destroy()

	logger.Info("Generated master key", slog.String("kdf", suite.Name()))
	return emitKey(cCtx.String(flagOut.Name), masterKey)
}

func deriveCmd(cCtx *cli.Context) error {
	_, suite, logger, err := setup(cCtx)
	if err != nil {
		return err
	}

	masterKey, err := readMasterKey(suite, cCtx.String(flagMasterFile.Name))
	if err != nil {
		return err
	}
	defer masterKey.Destroy()

	derivationCtx, err := kms.NewContextFromString(suite, cCtx.String(flagContext.Name))
	if err != nil {
		return err
	}

	derived, err := masterKey.Derive(cCtx.Int(flagSize.Name), cCtx.Uint64(flagSubKeyID.Name), derivationCtx)
	if err != nil {
		return err
	}
	defer derived.Destroy()

	logger.Debug("Derived subkey",
		slog.Int("size", derived.Size()),
		slog.Uint64("id", cCtx.Uint64(flagSubKeyID.Name)),
		slog.String("context", derivationCtx.String()))
	return emitKey("", derived)
}

func openPersona(cCtx *cli.Context) (*persona.Persona, error) {
	cfg, suite, logger, err := setup(cCtx)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := storage.NewStoreFactory(logger).StoresFromURIs(cfg.Stores)
	if err != nil {
		return nil, err
	}

	ks, err := persona.NewKeyStore(persona.KeyStoreConfig{
		ApplicationIdentity: cfg.ApplicationIdentity,
		Store:               store,
		Suite:               suite,
		Log:                 logger,
	})
	if err != nil {
		return nil, err
	}
	return ks.Persona(cCtx.String(flagPersonaName.Name))
}

func personaGetCmd(cCtx *cli.Context) error {
	kt, err := interfaces.ParseKeyType(cCtx.String(flagKeyType.Name))
	if err != nil {
		return err
	}

	p, err := openPersona(cCtx)
	if err != nil {
		return err
	}

	key, err := personaKey(cCtx, p, kt)
	if err != nil {
		return err
	}
	defer key.Destroy()

	fingerprint, err := keyFingerprint(key)
	if err != nil {
		return err
	}
	fmt.Printf("%s\t%s\t%s\n", p.UniqueName(), kt, fingerprint)
	return nil
}

func personaKey(cCtx *cli.Context, p *persona.Persona, kt interfaces.KeyType) (kms.Key, error) {
	switch kt {
	case interfaces.MasterKeyType:
		return p.MasterKey(cCtx.Context)
	case interfaces.SecretBoxKeyType:
		return p.SecretBoxKey(cCtx.Context)
	case interfaces.GenericHashKeyType:
		return p.GenericHashKey(cCtx.Context)
	default:
		return nil, fmt.Errorf("unsupported key type %s", kt)
	}
}

func personaForgetCmd(cCtx *cli.Context) error {
	p, err := openPersona(cCtx)
	if err != nil {
		return err
	}
	return p.Forget(cCtx.Context)
}

func shamirSplitCmd(cCtx *cli.Context) error {
	_, suite, logger, err := setup(cCtx)
	if err != nil {
		return err
	}

	masterKey, err := readMasterKey(suite, cCtx.String(flagMasterFile.Name))
	if err != nil {
		return err
	}
	defer masterKey.Destroy()

	shares, err := kms.SplitMasterKey(masterKey, cCtx.Int(flagShares.Name), cCtx.Int(flagThreshold.Name))
	if err != nil {
		return err
	}
	defer func() {
		for _, share := range shares {
			secret.Zero(share)
		}
	}()

	var signer *adminSigner
	if path := cCtx.String(flagAdminKeyFile.Name); path != "" {
		signer, err = loadAdminSigner(path)
		if err != nil {
			return err
		}
	}

	for _, share := range shares {
		line := base64.StdEncoding.EncodeToString(share)
		if signer != nil {
			line += " " + signer.sign(share)
		}
		fmt.Println(line)
	}

	logger.Info("Split master key",
		slog.Int("shares", len(shares)),
		slog.Int("threshold", cCtx.Int(flagThreshold.Name)),
		slog.Bool("signed", signer != nil))
	return nil
}

func shamirCombineCmd(cCtx *cli.Context) error {
	_, suite, logger, err := setup(cCtx)
	if err != nil {
		return err
	}

	admins, err := parseAdminPubkeys(cCtx.StringSlice(flagAdminPubkey.Name))
	if err != nil {
		return err
	}

	recovery, err := kms.NewShamirRecovery(suite, kms.ShamirConfig{
		Threshold:    cCtx.Int(flagThreshold.Name),
		AdminPubKeys: admins,
	})
	if err != nil {
		return err
	}

	for i, encoded := range cCtx.StringSlice(flagShare.Name) {
		unlocked, err := submitShare(recovery, encoded, len(admins) > 0)
		if err != nil {
			return fmt.Errorf("share %d: %w", i+1, err)
		}
		if unlocked {
			break
		}
	}

	masterKey, err := recovery.MasterKey()
	if err != nil {
		return fmt.Errorf("not enough shares: %w", err)
	}
	defer masterKey.Destroy()

	logger.Info("Recovered master key", slog.String("kdf", suite.Name()))
	return emitKey(cCtx.String(flagOut.Name), masterKey)
}

// emitKey writes base64(key) to path, or to stdout when path is empty.
func emitKey(path string, key kms.Key) error {
	raw, err := key.CopyBytes()
	if err != nil {
		return err
	}
	defer secret.Zero(raw)

	encoded := make([]byte, base64.StdEncoding.EncodedLen(len(raw))+1)
	defer secret.Zero(encoded)
	base64.StdEncoding.Encode(encoded, raw)
	encoded[len(encoded)-1] = '\n'

	if path == "" {
		_, err = os.Stdout.Write(encoded)
		return err
	}
	return os.WriteFile(path, encoded, 0600)
}

func readMasterKey(suite primitives.Suite, path string) (*kms.MasterKey, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read master key: %w", err)
	}
	defer secret.Zero(contents)

	trimmed := bytes.TrimSpace(contents)
	raw := make([]byte, base64.StdEncoding.DecodedLen(len(trimmed)))
	defer secret.Zero(raw)

	n, err := base64.StdEncoding.Decode(raw, trimmed)
	if err != nil {
		return nil, fmt.Errorf("failed to decode master key: %w", err)
	}
	return kms.RestoreMasterKey(suite, raw[:n])
}

// keyFingerprint identifies a key without revealing it: the first 16 bytes
// of its BLAKE2b-256 digest.
func keyFingerprint(key kms.Key) (string, error) {
	raw, err := key.CopyBytes()
	if err != nil {
		return "", err
	}
	defer secret.Zero(raw)

	sum := blake2b.Sum256(raw)
	return hex.EncodeToString(sum[:16]), nil
}

func submitShare(recovery *kms.ShamirRecovery, encoded string, signed bool) (bool, error) {
	fields := strings.Fields(encoded)
	if len(fields) == 0 {
		return false, kms.ErrInvalidShare
	}

	share, err := base64.StdEncoding.DecodeString(fields[0])
	if err != nil {
		return false, fmt.Errorf("%w: %v", kms.ErrInvalidShare, err)
	}
	defer secret.Zero(share)

	if !signed {
		return recovery.SubmitShare(share)
	}
	if len(fields) != 3 {
		return false, fmt.Errorf("%w: expected \"<share> <signature> <admin-pubkey>\"", kms.ErrInvalidShare)
	}
	signature, err := base64.StdEncoding.DecodeString(fields[1])
	if err != nil {
		return false, fmt.Errorf("%w: %v", kms.ErrInvalidShare, err)
	}
	admin, err := base64.StdEncoding.DecodeString(fields[2])
	if err != nil {
		return false, fmt.Errorf("%w: %v", kms.ErrInvalidShare, err)
	}
	return recovery.SubmitSignedShare(share, signature, admin)
}
