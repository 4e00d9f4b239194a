package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"img-chaos/internal/config"
	"img-chaos/internal/imgcipher"
)

var (
	logger = zap.NewNop()
	appCfg appConfig
)

var rootCmd = &cobra.Command{
	Use:           "img-chaos",
	Short:         "Chaos-based image cipher with Hilbert and fractal scrambling",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper(), viper.GetString("config"))
		if err != nil {
			return err
		}
		l, err := newLogger(cfg.Log)
		if err != nil {
			return err
		}
		appCfg, logger = cfg, l
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP encryption service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (yaml, toml or json)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (console, json)")
	rootCmd.PersistentFlags().Int("workers", 1, "diffusion workers; more than 1 enables the parallel scan")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("workers", rootCmd.PersistentFlags().Lookup("workers"))

	// Cipher flags are global so every command resolves the same viper keys.
	pf := rootCmd.PersistentFlags()
	pf.Int("size", config.DefaultGridSize, "grid side images are resized to (power of two)")
	pf.Int("fractal-order", config.DefaultFractalOrder, "fractal matrix order for hilbert-fractal scrambling")
	pf.String("scramble", string(config.ScrambleHilbert), "scramble mode (hilbert, hilbert-fractal)")
	pf.String("keying", string(config.KeyingPassphrase), "keying mode (passphrase, image)")
	pf.String("keystream", string(config.KeystreamShared), "diffusion keystream (shared, reseeded)")
	pf.String("combine", string(config.CombineCompat), "chaos combine step (compat, corrected)")
	_ = viper.BindPFlag("cipher.gridSize", pf.Lookup("size"))
	_ = viper.BindPFlag("cipher.fractalOrder", pf.Lookup("fractal-order"))
	_ = viper.BindPFlag("cipher.scramble", pf.Lookup("scramble"))
	_ = viper.BindPFlag("cipher.keying", pf.Lookup("keying"))
	_ = viper.BindPFlag("cipher.keystream", pf.Lookup("keystream"))
	_ = viper.BindPFlag("cipher.chaos.combine", pf.Lookup("combine"))

	serveCmd.Flags().String("addr", ":4040", "listen address")
	serveCmd.Flags().String("store", "store.json", "ledger file")
	serveCmd.Flags().StringSlice("allowed-origins", []string{"*"}, "CORS allowed origins")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("server.storePath", serveCmd.Flags().Lookup("store"))
	_ = viper.BindPFlag("server.allowedOrigins", serveCmd.Flags().Lookup("allowed-origins"))

	rootCmd.AddCommand(serveCmd, encryptCmd, decryptCmd, analyzeCmd, keygenCmd)
}

func newCipher(cfg appConfig) (*imgcipher.Cipher, error) {
	return imgcipher.New(cfg.Cipher,
		imgcipher.WithLogger(logger.Named("pipeline")),
		imgcipher.WithWorkers(cfg.Workers))
}

func runServer(ctx context.Context) error {
	c, err := newCipher(appCfg)
	if err != nil {
		return err
	}
	l := newLedger(appCfg.Server.StorePath, logger.Named("ledger"))
	if err := l.open(); err != nil {
		return err
	}
	s := newServer(appCfg, c, l, logger.Named("http"))

	srv := &http.Server{
		Addr:              appCfg.Server.Addr,
		Handler:           s.routes(),
		ReadTimeout:       appCfg.Server.ReadTimeout,
		ReadHeaderTimeout: appCfg.Server.ReadHeaderTimeout,
		WriteTimeout:      appCfg.Server.WriteTimeout,
		IdleTimeout:       appCfg.Server.IdleTimeout,
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("img-chaos server up and running",
			zap.String("addr", srv.Addr),
			zap.String("store", appCfg.Server.StorePath),
			zap.String("scramble", string(appCfg.Cipher.Scramble)))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func main() {
	err := rootCmd.Execute()
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
