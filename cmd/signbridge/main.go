// Command signbridge is the native-messaging host: it reads length-
// prefixed request envelopes from stdin, drives each through validation,
// resolution, PKCS#11 signing, upload, and callback delivery, and writes
// one framed response envelope per request to stdout.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ASE-Bucure-ti/signbridge/internal/config"
	"github.com/ASE-Bucure-ti/signbridge/internal/logging"
	"github.com/ASE-Bucure-ti/signbridge/internal/version"
	"github.com/ASE-Bucure-ti/signbridge/pkg/callback"
	"github.com/ASE-Bucure-ti/signbridge/pkg/host"
	"github.com/ASE-Bucure-ti/signbridge/pkg/pipeline"
	"github.com/ASE-Bucure-ti/signbridge/pkg/pkcs11mgr"
	"github.com/ASE-Bucure-ti/signbridge/pkg/store"
	"github.com/ASE-Bucure-ti/signbridge/pkg/telemetry"
	"github.com/ASE-Bucure-ti/signbridge/pkg/validate"
	"github.com/ASE-Bucure-ti/signbridge/pkg/wire"
)

func main() {
	os.Exit(Run(os.Args, os.Stdin, os.Stdout, os.Stderr))
}

// Run is the testable entrypoint: args is the program's argv, stdin is the
// framed request stream, stdout is the framed response stream, and stderr
// carries diagnostics that must never collide with the wire protocol.
func Run(args []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) int {
	if len(args) > 1 {
		switch args[1] {
		case "--version", "-version", "version":
			fmt.Fprintln(stdout, version.Version)
			return 0
		case "--help", "-h", "help":
			printUsage(stdout)
			return 0
		default:
			fmt.Fprintf(stderr, "signbridge: unknown argument %q\n", args[1])
			printUsage(stderr)
			return 2
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "signbridge: load config: %v\n", err)
		return 1
	}

	logHandler, err := logging.NewRollingHandler(cfg.LogDir, parseLevel(cfg.LogLevel))
	if err != nil {
		fmt.Fprintf(stderr, "signbridge: init logging: %v\n", err)
		return 1
	}
	defer logHandler.Close()
	log := slog.New(logHandler).With("component", "main")

	h, cleanup, err := buildHost(cfg, log)
	if err != nil {
		log.Error("failed to build host", "error", err)
		fmt.Fprintf(stderr, "signbridge: %v\n", err)
		return 1
	}
	defer cleanup()

	return serve(h, stdin, stdout, log)
}

// buildHost wires every subsystem together per cfg and returns a shutdown
// function releasing the telemetry provider and PKCS#11 contexts.
func buildHost(cfg config.Config, log *slog.Logger) (*host.Host, func(), error) {
	ctx := context.Background()

	tp, err := telemetry.New(ctx, telemetry.DefaultConfig(), log)
	if err != nil {
		return nil, nil, fmt.Errorf("init telemetry: %w", err)
	}

	mgr, err := pkcs11mgr.NewManager(log, cfg.PKCS11Libraries)
	if err != nil {
		tp.Shutdown(ctx)
		return nil, nil, fmt.Errorf("init pkcs11: %w", err)
	}

	var s3Backend, gsBackend store.Backend
	if b, err := store.NewS3Backend(ctx); err != nil {
		log.Warn("s3 backend unavailable, s3:// references will fail", "error", err)
	} else {
		s3Backend = b
	}
	if b, err := store.NewGCSBackend(ctx); err != nil {
		log.Warn("gcs backend unavailable, gs:// references will fail", "error", err)
	} else {
		gsBackend = b
	}
	router := store.NewRouter(s3Backend, gsBackend, cfg.DownloadTimeout, cfg.UploadTimeout)

	callbacks := callback.NewClient(cfg.CallbackTimeout)
	engine := pipeline.NewEngine(router, callbacks, tp, log)
	validator := validate.NewValidator(cfg.ProtocolVersion)
	creds := newEnvCredentials()

	h := host.NewHost(validator, mgr, creds, engine, log)

	cleanup := func() {
		if err := mgr.Close(); err != nil {
			log.Warn("pkcs11 shutdown", "error", err)
		}
		if err := tp.Shutdown(ctx); err != nil {
			log.Warn("telemetry shutdown", "error", err)
		}
	}
	return h, cleanup, nil
}

// serve drains framed requests from stdin until the peer disconnects,
// writing one framed response per request. A SIGINT/SIGTERM interrupts a
// blocked read and exits promptly, matching a locally-installed host's
// lifecycle (it lives only as long as the extension's pipe does).
func serve(h *host.Host, stdin io.Reader, stdout io.Writer, log *slog.Logger) int {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		os.Exit(0)
	}()

	reader := wire.NewFrameReader(stdin)
	writer := wire.NewFrameWriter(stdout)
	ctx := context.Background()

	for {
		reqFrame, err := reader.ReadFrame()
		if err != nil {
			if errors.Is(err, wire.ErrStreamClosed) {
				log.Info("peer closed the connection")
				return 0
			}
			log.Error("frame read failed", "error", err)
			return 1
		}

		respFrame := h.HandleRequest(ctx, reqFrame)
		if err := writer.WriteFrame(respFrame); err != nil {
			log.Error("frame write failed", "error", err)
			return 1
		}
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "signbridge: PKCS#11 signing host for the browser extension's native-messaging channel")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "usage: signbridge")
	fmt.Fprintln(w, "  runs the host, reading framed requests from stdin and writing framed responses to stdout")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  signbridge --version   print the build version and exit")
	fmt.Fprintln(w, "  signbridge --help      show this message")
}
