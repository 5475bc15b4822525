package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/facegate/internal/config"
	"github.com/kozaktomas/facegate/internal/enroll"
	"github.com/kozaktomas/facegate/internal/vision"
	"github.com/kozaktomas/facegate/internal/web"
	"github.com/kozaktomas/facegate/internal/web/handlers"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Facegate web server.
The REST API exposes subject management, one-shot identification and
verification over uploaded images, and asynchronous enrollment jobs with
server-sent progress events.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().String("frames", "", "Directory of recorded frames used for enrollment captures")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	fmt.Printf("Connecting to PostgreSQL database...\n")
	pool, repo, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	detector := vision.NewHTTPDetector(cfg.Extractor.URL)
	extractor := vision.NewHTTPExtractor(cfg.Extractor.URL)
	descriptorCache := buildCache(cfg, repo)
	matcher := buildMatcher(cfg, 0)

	framesDir := mustGetString(cmd, "frames")
	deps := web.Deps{
		Store:   repo,
		Cache:   descriptorCache,
		Matcher: matcher,
		Enroll: handlers.EnrollDeps{
			NewSource: func() (vision.FrameSource, error) {
				return openFrames(framesDir, cfg, true)
			},
			Detector:  detector,
			Landmarks: detector,
			Extractor: extractor,
			Gate:      buildGate(cfg),
			Enroller:  enroll.NewEnroller(repo, descriptorCache, matcher, cfg.Enrollment.PhotosDir),
			Options:   enrollOptions(cfg),
		},
	}

	port, host := resolveServeHostPort(cmd)
	server := web.NewServer(cfg, host, port, deps)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Facegate API on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
