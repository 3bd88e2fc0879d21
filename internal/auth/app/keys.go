package app

import (
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/taskdeck/pkg/cryptox"
	"github.com/aussiebroadwan/taskdeck/pkg/jwtx"
)

// InitTokenCodec builds the HS256 codec from the configured secret.
//
// In dev an empty JWT_SECRET is replaced by a random one held only in
// memory. Every token becomes invalid when the process restarts.
func InitTokenCodec(cfg Config, logger *slog.Logger) (*jwtx.HS256Codec, error) {
	secret := []byte(cfg.JWTSecret)
	if len(secret) == 0 {
		if !cfg.IsDev() {
			return nil, fmt.Errorf("JWT_SECRET is required outside dev")
		}
		generated, err := cryptox.GenerateToken(cryptox.TokenSize512)
		if err != nil {
			return nil, fmt.Errorf("generate ephemeral secret: %w", err)
		}
		secret = []byte(generated)
		logger.Warn("JWT_SECRET not set, using an ephemeral signing secret; tokens will not survive a restart")
	}

	codec, err := jwtx.NewHS256Codec(jwtx.HS256Options{
		Secret:   secret,
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
	})
	if err != nil {
		return nil, fmt.Errorf("token codec: %w", err)
	}

	logger.Info("token codec ready",
		"alg", codec.Alg(),
		"issuer", codec.Issuer(),
		"audience", codec.Audience(),
		"access_ttl", cfg.AccessTTL,
		"refresh_ttl", cfg.RefreshTTL,
	)
	return codec, nil
}
