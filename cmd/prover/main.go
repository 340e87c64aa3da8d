// Package main is the CLI entry point for the TLS oracle prover service:
// the MPC-TLS session engine, notary co-party, witness builder, and
// Groth16 prover described in SPEC_FULL.md.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tls-oracle/prover/internal/api"
	"github.com/tls-oracle/prover/internal/circuit"
	"github.com/tls-oracle/prover/internal/config"
	"github.com/tls-oracle/prover/internal/notary"
	"github.com/tls-oracle/prover/internal/sessionmanager"
)

const serverIdentity = "tls-oracle-prover"

var (
	cfgPath   string
	logLevel  string
	prettyLog bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "prover",
		Short: "TLS oracle prover: MPC-TLS session engine, notary signer, and Groth16 proof generator",
	}
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a config file or directory")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "log level")
	rootCmd.PersistentFlags().BoolVarP(&prettyLog, "pretty-log", "p", false, "enable unstructured prettified logging")

	rootCmd.AddCommand(serveCmd(), setupCmd(), notaryInfoCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initLog(level string, pretty bool) zerolog.Logger {
	l, err := zerolog.ParseLevel(level)
	if err != nil {
		l = zerolog.InfoLevel
	}
	var out io.Writer = os.Stdout
	if pretty {
		out = zerolog.ConsoleWriter{Out: os.Stdout}
	}
	zerolog.SetGlobalLevel(l)
	return zerolog.New(out).With().Timestamp().Str("service", serverIdentity).Logger()
}

func loadConfig() (*config.Config, error) {
	if cfgPath == "" {
		return config.Load()
	}
	return config.Load(cfgPath)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the prover HTTP server (/prove, /health, /notary-info)",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := initLog(logLevel, prettyLog)
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return run(cmd.Context(), log, cfg)
		},
	}
}

func run(ctx context.Context, log zerolog.Logger, cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	identity, err := notary.Load(cfg.NotaryKeyPath)
	if err != nil {
		return fmt.Errorf("loading notary identity: %w", err)
	}
	log.Info().Str("pubkeyHash", identity.PubkeyHash.String()).Msg("notary identity loaded")

	mode := circuit.SetupModeFile
	if cfg.DevInsecureSetup {
		mode = circuit.SetupModeDev
	}
	setupResult, err := circuit.Setup(circuit.SetupOptions{Mode: mode, ZkDir: cfg.ZkDir})
	if err != nil {
		return fmt.Errorf("circuit setup: %w", err)
	}
	prover := circuit.ProverFromSetup(setupResult)

	sessions := sessionmanager.New(log, cfg.MaxConcurrentSessions, cfg.PerIPRatePerSecond, cfg.PerIPBurst, cfg.SessionDeadline)
	defer sessions.Close()

	srv := api.New(log, cfg, identity, prover, sessions)

	addr := fmt.Sprintf("%s:%d", cfg.Bind, cfg.Port)
	httpServer := &http.Server{Addr: addr, Handler: srv.Router()}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("prover listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.SessionDeadline)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func setupCmd() *cobra.Command {
	var devMode bool
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Compile the circuit and produce (or load) the Groth16 proving/verifying keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := initLog(logLevel, prettyLog)
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			mode := circuit.SetupModeDev
			if !devMode {
				log.Warn().Msg("file-mode setup expects an existing proving/verifying key pair under zk_dir; pass --dev to generate local development keys instead")
				mode = circuit.SetupModeFile
			}
			result, err := circuit.Setup(circuit.SetupOptions{Mode: mode, ZkDir: cfg.ZkDir})
			if err != nil {
				return fmt.Errorf("setup: %w", err)
			}
			if mode == circuit.SetupModeDev {
				if err := circuit.SaveKeys(cfg.ZkDir, result.ConstraintSystem, result.ProvingKey, result.VerifyingKey); err != nil {
					return fmt.Errorf("saving keys: %w", err)
				}
				log.Info().Str("zkDir", cfg.ZkDir).Msg("development proving/verifying keys written")
			}
			log.Info().Int("constraints", result.ConstraintSystem.GetNbConstraints()).Msg("circuit compiled")
			return nil
		},
	}
	cmd.Flags().BoolVar(&devMode, "dev", false, "generate insecure local development keys instead of loading a ceremony-derived key pair")
	return cmd
}

func notaryInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "notary-info",
		Short: "Print the persisted notary public key and its commitment hash",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			identity, err := notary.Load(cfg.NotaryKeyPath)
			if err != nil {
				return fmt.Errorf("loading notary identity: %w", err)
			}
			fmt.Printf("pubkey (hex): %x\n", identity.PubkeySEC1)
			fmt.Printf("pubkeyHash: %s\n", identity.PubkeyHash.String())
			return nil
		},
	}
}
