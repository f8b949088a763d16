package flags

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/ruteri/keymaster/common"
	"github.com/ruteri/keymaster/config"
	"github.com/urfave/cli/v2"
)

// LoadConfig reads the config file and applies flag overrides on top.
func LoadConfig(cCtx *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(cCtx.String(ConfigFlag.Name))
	if err != nil {
		return nil, err
	}

	if cCtx.IsSet(AppIDFlag.Name) {
		cfg.ApplicationIdentity = cCtx.String(AppIDFlag.Name)
	}
	if cCtx.IsSet(KDFFlag.Name) {
		cfg.KDF = cCtx.String(KDFFlag.Name)
	}
	if cCtx.IsSet(StoreFlag.Name) {
		cfg.Stores = cCtx.StringSlice(StoreFlag.Name)
	}
	if cCtx.IsSet(LogJsonFlag.Name) {
		cfg.Log.JSON = cCtx.Bool(LogJsonFlag.Name)
	}
	if cCtx.IsSet(LogDebugFlag.Name) {
		cfg.Log.Debug = cCtx.Bool(LogDebugFlag.Name)
	}
	if cCtx.IsSet(LogServiceFlag.Name) {
		cfg.Log.Service = cCtx.String(LogServiceFlag.Name)
	}
	return cfg, nil
}

func SetupLogger(cCtx *cli.Context, cfg *config.Config) (log *slog.Logger) {
	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   cfg.Log.Debug,
		JSON:    cfg.Log.JSON,
		Service: cfg.Log.Service,
		Version: common.Version,
	})

	if cCtx.Bool(LogUidFlag.Name) {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

var ConfigFlag = &cli.StringFlag{
	Name:    "config",
	EnvVars: []string{"KEYMASTER_CONFIG"},
	Usage:   "path to the YAML config file (default ~/.keymaster/config.yaml)",
}

var AppIDFlag = &cli.StringFlag{
	Name:    "app-id",
	EnvVars: []string{"KEYMASTER_APP_ID"},
	Usage:   "application identity prefixing persona item ids, e.g. com.example.app",
}

var KDFFlag = &cli.StringFlag{
	Name:  "kdf",
	Usage: "derivation suite: blake2b, blake3 or hkdf-sha256",
}

var StoreFlag = &cli.StringSliceFlag{
	Name:  "store",
	Usage: "secret store URI, repeat for fallback (memory://, file://, keyring://, vault://, s3://)",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}
var LogServiceFlag = &cli.StringFlag{
	Name:  "log-service",
	Value: "keytool",
	Usage: "add 'service' tag to logs",
}

var CommonFlags = []cli.Flag{
	ConfigFlag,
	AppIDFlag,
	KDFFlag,
	StoreFlag,
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	LogServiceFlag,
}
