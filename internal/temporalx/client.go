package temporalx

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/api/workflowservice/v1"
	temporalsdkclient "go.temporal.io/sdk/client"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/yungbote/carecall-backend/internal/platform/logger"
)

// NewClient dials Temporal, retrying until cfg.DialMaxWait passes. It returns
// nil, nil when no address is configured so the API can run without
// scheduled calls.
func NewClient(log *logger.Logger, cfg Config) (temporalsdkclient.Client, error) {
	if cfg.Address == "" {
		log.Warn("TEMPORAL_ADDRESS not set; deadline calls and sweep schedule disabled")
		return nil, nil
	}
	opts, err := clientOptions(log, cfg, true)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialMaxWait)
	defer cancel()

	var c temporalsdkclient.Client
	attempts, err := retryUntil(ctx, cfg.DialBackoff, cfg.DialBackoffMax, func(attempt int) (bool, error) {
		dctx, dcancel := context.WithTimeout(ctx, cfg.DialTimeout)
		defer dcancel()
		var derr error
		c, derr = temporalsdkclient.DialContext(dctx, opts)
		if derr != nil {
			log.Warn("Temporal not reachable; retrying", "address", cfg.Address, "attempt", attempt, "error", derr)
			return true, derr
		}
		return false, nil
	})
	if err != nil {
		return nil, fmt.Errorf("temporal dial failed (address=%s namespace=%s): %w", cfg.Address, cfg.Namespace, err)
	}
	log.Info("Connected to Temporal", "address", cfg.Address, "namespace", cfg.Namespace, "attempts", attempts)

	if cfg.AutoRegisterNamespace {
		if err := EnsureNamespace(context.Background(), log, cfg); err != nil {
			c.Close()
			return nil, err
		}
	}
	return c, nil
}

// EnsureNamespace registers cfg.Namespace when the cluster does not know it.
// Temporal Cloud namespaces cannot be created this way.
func EnsureNamespace(ctx context.Context, log *logger.Logger, cfg Config) error {
	if cfg.Address == "" || cfg.Namespace == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// No namespace on these options: the header would be rejected before the
	// namespace exists.
	opts, err := clientOptions(log, cfg, false)
	if err != nil {
		return err
	}
	nsClient, err := temporalsdkclient.NewNamespaceClient(opts)
	if err != nil {
		return fmt.Errorf("temporal namespace ensure: %w", err)
	}
	defer nsClient.Close()

	_, err = retryUntil(ctx, 250*time.Millisecond, 5*time.Second, func(attempt int) (bool, error) {
		_, derr := nsClient.Describe(ctx, cfg.Namespace)
		if derr == nil {
			return false, nil
		}
		var nfe *serviceerror.NamespaceNotFound
		if errors.As(derr, &nfe) {
			derr = nsClient.Register(ctx, &workflowservice.RegisterNamespaceRequest{
				Namespace:                        cfg.Namespace,
				Description:                      "carecall deadline calls and sweeps",
				WorkflowExecutionRetentionPeriod: durationpb.New(cfg.NamespaceRetention),
			})
			var exists *serviceerror.NamespaceAlreadyExists
			if derr == nil || errors.As(derr, &exists) {
				log.Info("Temporal namespace ready", "namespace", cfg.Namespace)
				return false, nil
			}
		}
		if !isRetryableRPC(derr) {
			return false, derr
		}
		log.Warn("Temporal namespace ensure retrying", "namespace", cfg.Namespace, "attempt", attempt, "error", derr)
		return true, derr
	})
	if err != nil {
		return fmt.Errorf("temporal namespace ensure (namespace=%s): %w", cfg.Namespace, err)
	}
	return nil
}

func clientOptions(log *logger.Logger, cfg Config, withNamespace bool) (temporalsdkclient.Options, error) {
	opts := temporalsdkclient.Options{HostPort: cfg.Address, Logger: log}
	if withNamespace {
		opts.Namespace = cfg.Namespace
	}
	if cfg.mTLS() {
		tlsCfg, err := loadTLSConfig(cfg)
		if err != nil {
			return opts, err
		}
		opts.ConnectionOptions.TLS = tlsCfg
	}
	return opts, nil
}

// retryUntil runs op until it reports done, fails permanently, or ctx ends.
// op returns retry=true to go again after a doubling backoff. The attempt
// count is returned alongside the last error.
func retryUntil(ctx context.Context, base, maxSleep time.Duration, op func(attempt int) (retry bool, err error)) (int, error) {
	for attempt := 1; ; attempt++ {
		retry, err := op(attempt)
		if !retry {
			return attempt, err
		}
		t := time.NewTimer(backoff(base, maxSleep, attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return attempt, errors.Join(ctx.Err(), err)
		case <-t.C:
		}
	}
}

func backoff(base, maxSleep time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 250 * time.Millisecond
	}
	sleep := base
	for i := 1; i < attempt; i++ {
		sleep *= 2
		if maxSleep > 0 && sleep >= maxSleep {
			return maxSleep
		}
	}
	return sleep
}

func loadTLSConfig(cfg Config) (*tls.Config, error) {
	if cfg.ClientCertPath == "" || cfg.ClientKeyPath == "" {
		return nil, fmt.Errorf("temporal tls: TEMPORAL_CLIENT_CERT_PATH and TEMPORAL_CLIENT_KEY_PATH are both required")
	}
	cert, err := tls.LoadX509KeyPair(cfg.ClientCertPath, cfg.ClientKeyPath)
	if err != nil {
		return nil, fmt.Errorf("temporal tls: load client cert/key: %w", err)
	}
	tlsCfg := &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}
	if cfg.ClientCAPath == "" {
		return tlsCfg, nil
	}
	pem, err := os.ReadFile(cfg.ClientCAPath)
	if err != nil {
		return nil, fmt.Errorf("temporal tls: read CA: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("temporal tls: invalid CA pem")
	}
	tlsCfg.RootCAs = pool
	return tlsCfg, nil
}

func isRetryableRPC(err error) bool {
	if err == nil {
		return false
	}
	s, ok := status.FromError(err)
	if !ok {
		return errors.Is(err, context.DeadlineExceeded)
	}
	switch s.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return true
	}
	return false
}
