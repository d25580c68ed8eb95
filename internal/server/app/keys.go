package app

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/sessionkit/sessiond/pkg/idx"
	"github.com/sessionkit/sessiond/pkg/jwtx"
)

// InitSigningKey loads the Ed25519 signing key from the configured PEM
// file, or generates an ephemeral one when no file is configured.
//
// Ephemeral mode means every outstanding access token dies on restart;
// sessions survive regardless because refresh tokens live in the database.
func InitSigningKey(cfg Config, logger *slog.Logger) (*jwtx.EdDSAKeyPair, error) {
	kid := idx.New().String()

	if cfg.SigningKeyFile == "" {
		key, err := jwtx.GenerateEdDSA(kid, cfg.Issuer)
		if err != nil {
			return nil, fmt.Errorf("failed to generate signing key: %w", err)
		}
		logger.Warn("no signing key file configured, using ephemeral key",
			"kid", kid,
		)
		return key, nil
	}

	pemKey, err := os.ReadFile(cfg.SigningKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key file: %w", err)
	}

	key, err := jwtx.LoadEdDSA(kid, cfg.Issuer, pemKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load signing key: %w", err)
	}

	logger.Info("signing key loaded", "file", cfg.SigningKeyFile, "kid", kid)
	return key, nil
}
