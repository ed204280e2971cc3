package bootstrap

import (
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/certmint/certmint-api/config"
	"github.com/certmint/certmint-api/internal/adapters/chain"
	"github.com/certmint/certmint-api/internal/adapters/renderer"
	"github.com/certmint/certmint-api/internal/adapters/storage"
	"github.com/certmint/certmint-api/internal/core"
	"github.com/certmint/certmint-api/internal/domain/issuance"
	"github.com/certmint/certmint-api/internal/observability/notify/pagerduty"
	"github.com/certmint/certmint-api/internal/observability/notify/slack"
	"github.com/certmint/certmint-api/internal/service/failurenotifier"
)

// LedgerAdapters groups the chain-facing pieces built from one RPC client.
type LedgerAdapters struct {
	Client    *ethclient.Client
	Submitter *chain.Submitter
	// Nonces is the process-wide allocator for the signing identity's
	// sequence numbers.
	Nonces core.NonceFunc
}

// ConnectLedger dials the RPC endpoint and builds the submitter plus the
// nonce allocator seeded from the signing identity's pending count.
func ConnectLedger(cfg config.ChainConfig, logger *slog.Logger) (*LedgerAdapters, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("chain config: %w", err)
	}

	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial ledger rpc: %w", err)
	}

	submitter, err := chain.NewSubmitter(chain.SubmitterOptions{
		Backend:        client,
		PrivateKeyHex:  strings.TrimPrefix(cfg.PrivateKey, "0x"),
		Contract:       common.HexToAddress(cfg.ContractAddress),
		ChainID:        big.NewInt(cfg.ChainID),
		ConfirmTimeout: cfg.ConfirmTimeout,
		ReceiptPoll:    cfg.ReceiptPoll,
		Logger:         logger,
	})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("create submitter: %w", err)
	}

	allocator := issuance.NewNonceAllocator(chain.NonceSource(client, submitter.From()))

	if logger != nil {
		logger.Info("ledger connected",
			"rpc_url", cfg.RPCURL,
			"chain_id", cfg.ChainID,
			"contract", cfg.ContractAddress,
			"signer", submitter.From().Hex(),
		)
	}

	return &LedgerAdapters{
		Client:    client,
		Submitter: submitter,
		Nonces:    allocator.Next,
	}, nil
}

// BuildContentStore builds the pinning client, or nil when pinning is
// disabled. A nil store makes every publication degrade to a local
// placeholder reference.
func BuildContentStore(cfg config.PinningConfig, logger *slog.Logger) (core.ContentStore, error) {
	if !cfg.Enabled {
		if logger != nil {
			logger.Info("content pinning disabled; artifacts will use local placeholder references")
		}
		return nil, nil //nolint:nilnil // a nil store is the documented disabled state.
	}

	client, err := storage.NewPinningClient(storage.PinningOptions{
		BaseURL:     cfg.BaseURL,
		AuthToken:   cfg.AuthToken,
		CIDExpr:     cfg.CIDExpr,
		GatewayBase: cfg.GatewayBase,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create pinning client: %w", err)
	}
	return client, nil
}

// BuildArtifactGenerator builds the renderer client.
func BuildArtifactGenerator(cfg config.RendererConfig) (core.ArtifactGenerator, error) {
	client, err := renderer.NewClient(renderer.ClientOptions{
		BaseURL:    cfg.BaseURL,
		AuthToken:  cfg.AuthToken,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("create renderer client: %w", err)
	}
	return client, nil
}

// BuildFailureNotifier assembles the alerting fan-out from notification
// config. Sinks that fail to initialise are logged and skipped so one bad
// webhook never blocks startup.
func BuildFailureNotifier(logger *slog.Logger, cfg config.ObservabilityNotificationsConfig) *failurenotifier.Service {
	baseLogger := logger
	if baseLogger == nil {
		baseLogger = slog.Default()
	}

	if !cfg.Enabled {
		return failurenotifier.NewService(failurenotifier.Options{
			Logger: baseLogger.With("component", "failure_notifier"),
		})
	}

	sinks := make([]failurenotifier.SinkRegistration, 0, 2)

	if cfg.Slack.Enabled {
		client, err := slack.NewClient(slack.Config{
			WebhookURL:     cfg.Slack.WebhookURL,
			Channel:        cfg.Slack.Channel,
			Username:       cfg.Slack.Username,
			Timeout:        cfg.Timeout,
			RetryLimit:     cfg.RetryLimit,
			EventURLPrefix: cfg.Slack.EventURLPrefix,
		})
		if err != nil {
			baseLogger.Error("failed to initialise slack notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{
				Name: "slack",
				Sink: client,
			})
		}
	}

	if cfg.PagerDuty.Enabled {
		client, err := pagerduty.NewClient(pagerduty.Config{
			RoutingKey: cfg.PagerDuty.RoutingKey,
			Source:     cfg.PagerDuty.Source,
			Component:  cfg.PagerDuty.Component,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			baseLogger.Error("failed to initialise pagerduty notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{
				Name: "pagerduty",
				Sink: client,
			})
		}
	}

	return failurenotifier.NewService(failurenotifier.Options{
		Logger: baseLogger.With("component", "failure_notifier"),
		Sinks:  sinks,
	})
}
