package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/attendance-kiosk/internal/camera"
	"github.com/kozaktomas/attendance-kiosk/internal/config"
	"github.com/kozaktomas/attendance-kiosk/internal/geofence"
	"github.com/kozaktomas/attendance-kiosk/internal/kiosk"
	"github.com/kozaktomas/attendance-kiosk/internal/web"
	"github.com/kozaktomas/attendance-kiosk/internal/web/handlers"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the kiosk web server",
	Long: `Start the Attendance Kiosk web server.

The server hosts the browser kiosk page and the session API. Browsers push
camera frames over HTTP unless KIOSK_CAMERA_DIR or KIOSK_CAMERA_URL names a
camera the server reads itself. The kiosk position comes from
KIOSK_LATITUDE/KIOSK_LONGITUDE when set, otherwise from the browser.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
}

// serveFactory builds sessions for the HTTP API.
type serveFactory struct {
	svc *services
}

// NewSession picks the camera and locator for a browser or device session.
// A configured kiosk position wins over the one reported by the client.
func (f serveFactory) NewSession(req handlers.SessionRequest) (kiosk.Options, error) {
	kcfg := &f.svc.cfg.Kiosk

	locator := fixedLocator(kcfg)
	if locator == nil && req.HasLocation() {
		locator = geofence.StaticLocator{Position: geofence.Coordinate{Latitude: *req.Latitude, Longitude: *req.Longitude}}
	}

	cam := configuredCamera(kcfg.CameraDir, kcfg.CameraURL)
	if cam == nil {
		cam = camera.NewPushed()
	}

	return f.svc.sessionOptions(req.DeviceID, cam, locator), nil
}

// resolveServeHostPort applies flag overrides on top of the environment.
func resolveServeHostPort(cmd *cobra.Command, cfg *config.Config) {
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	resolveServeHostPort(cmd, cfg)

	ctx := context.Background()
	svc, err := loadServices(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer svc.Close()

	sessions := handlers.NewSessionsHandler(kiosk.NewRegistry(), serveFactory{svc: svc})
	server := web.NewServer(cfg, sessions)

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

	fmt.Printf("Site %q: %.6f, %.6f (radius %.0f m)\n", svc.site.Name, svc.site.Center.Latitude, svc.site.Center.Longitude, svc.site.RadiusMeters)
	fmt.Printf("Starting Attendance Kiosk on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
