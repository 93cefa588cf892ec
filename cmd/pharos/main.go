package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"os"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/pharos-rwa/pharos/adapters/chain"
	"github.com/pharos-rwa/pharos/adapters/events"
	"github.com/pharos-rwa/pharos/adapters/noncestore"
	"github.com/pharos-rwa/pharos/adapters/store"
	"github.com/pharos-rwa/pharos/adapters/tokenizer"
	"github.com/pharos-rwa/pharos/gateway"
	"github.com/pharos-rwa/pharos/internal/config"
	"github.com/pharos-rwa/pharos/internal/secret"
	"github.com/pharos-rwa/pharos/ports"
	"github.com/pharos-rwa/pharos/service"
	"github.com/pharos-rwa/pharos/transport/http"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	signerKey, err := secret.ParseSignerKey(cfg.SignerPrivateKey)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse signing key")
	}
	cfg.SignerPrivateKey = ""

	var sessionKey *ecdsa.PrivateKey
	if cfg.JWTPrivateKey != "" {
		sessionKey, err = secret.ParseSessionKey(cfg.JWTPrivateKey)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to parse session signing key")
		}
		cfg.JWTPrivateKey = ""
	} else {
		// Ephemeral key: sessions do not survive a restart.
		sessionKey, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to generate session signing key")
		}
	}

	var (
		nonces      ports.NonceStore
		tokenStore  ports.Store
		wmPublisher message.Publisher
	)

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal().Msg("failed to parse Redis URL")
		}
		redisClient := redis.NewClient(opts)

		wmPublisher, err = redisstream.NewPublisher(
			redisstream.PublisherConfig{Client: redisClient},
			watermill.NewStdLogger(false, false),
		)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create Redis publisher")
		}

		nonces = noncestore.NewRedisStore(redisClient)
		tokenStore = store.NewRedisStore(redisClient)
		log.Info().Msg("using Redis-backed stores")
	} else {
		memNonces := noncestore.NewMemoryStore(time.Minute)
		defer memNonces.Close()

		wmPublisher = gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
		nonces = memNonces
		tokenStore = store.NewMemoryStore()
		log.Info().Msg("REDIS_URL not set, using in-memory stores")
	}

	authService := service.NewAuthService(
		nonces,
		tokenizer.NewJWTTokenizer(sessionKey),
		tokenStore,
		events.NewWatermillPublisher(wmPublisher),
		nil,
		log,
	).WithTTLs(cfg.ChallengeTTL, cfg.AccessTTL, cfg.RefreshTTL)

	ctx := context.Background()

	node, err := chain.Dial(ctx, cfg.RPCURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to chain node")
	}
	defer node.Close()

	gw, err := gateway.New(ctx, node, gateway.Config{
		ContractAddress: common.HexToAddress(cfg.ContractAddress),
		SignerKey:       signerKey,
		MaxInFlight:     cfg.MaxInFlightSubmissions,
		SubmitRate:      rate.Limit(cfg.SubmitRatePerSecond),
		ConfirmInterval: cfg.ConfirmInterval,
		ConfirmTimeout:  cfg.ConfirmTimeout,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create contract gateway")
	}
	defer gw.Close()

	router := http.SetupRouter(authService, gw)

	log.Info().Str("addr", cfg.ListenAddr).Str("contract", cfg.ContractAddress).Msg("starting server")
	if err := router.Run(cfg.ListenAddr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
