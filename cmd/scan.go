package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/attendance-kiosk/internal/config"
	"github.com/kozaktomas/attendance-kiosk/internal/constants"
	"github.com/kozaktomas/attendance-kiosk/internal/kiosk"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a scan session from the command line",
	Long: `Run one kiosk session against a local camera source and record attendance
for every recognized face until interrupted.

The camera is a directory of images (replayed in name order) or an IP camera
snapshot URL. The kiosk position is taken from --lat/--lng, falling back to
KIOSK_LATITUDE/KIOSK_LONGITUDE.

Examples:
  # Check in employees from a folder of frames
  attendance-kiosk scan --action check-in --camera-dir ./frames

  # Check out from an IP camera, stop after the first recorded event
  attendance-kiosk scan --action check-out --camera-url http://cam.local/snapshot.jpg --once`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().String("action", string(kiosk.ActionCheckIn), "Attendance action: check-in or check-out")
	scanCmd.Flags().String("device", "", "Device ID (overrides KIOSK_DEVICE_ID)")
	scanCmd.Flags().String("camera-dir", "", "Directory of frames (overrides KIOSK_CAMERA_DIR)")
	scanCmd.Flags().String("camera-url", "", "Snapshot URL (overrides KIOSK_CAMERA_URL)")
	scanCmd.Flags().Float64("lat", 0, "Kiosk latitude")
	scanCmd.Flags().Float64("lng", 0, "Kiosk longitude")
	scanCmd.Flags().Bool("once", false, "Exit after the first recorded attendance event")
}

func runScan(cmd *cobra.Command, args []string) error {
	action, err := kiosk.ParseAction(mustGetString(cmd, "action"))
	if err != nil {
		return err
	}
	once := mustGetBool(cmd, "once")

	cfg := config.Load()
	if device := mustGetString(cmd, "device"); device != "" {
		cfg.Kiosk.DeviceID = device
	}
	if dir := mustGetString(cmd, "camera-dir"); dir != "" {
		cfg.Kiosk.CameraDir = dir
	}
	if url := mustGetString(cmd, "camera-url"); url != "" {
		cfg.Kiosk.CameraURL = url
	}
	if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lng") {
		lat, lng := mustGetFloat64(cmd, "lat"), mustGetFloat64(cmd, "lng")
		cfg.Kiosk.Latitude, cfg.Kiosk.Longitude = &lat, &lng
	}

	cam := configuredCamera(cfg.Kiosk.CameraDir, cfg.Kiosk.CameraURL)
	if cam == nil {
		return errors.New("a camera is required: set --camera-dir or --camera-url")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := loadServices(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer svc.Close()

	events := make(chan kiosk.Event, constants.EventChannelBuffer)
	opts := svc.sessionOptions(cfg.Kiosk.DeviceID, cam, fixedLocator(&cfg.Kiosk))
	opts.OnEvent = func(e kiosk.Event) {
		select {
		case events <- e:
		default:
		}
	}
	session := kiosk.NewSession(opts)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := session.Close(closeCtx); err != nil {
			fmt.Printf("Warning: session did not stop cleanly: %v\n", err)
		}
	}()

	fmt.Printf("Starting %s session on %s (site %q)\n", action, cfg.Kiosk.DeviceID, svc.site.Name)
	if err := session.Start(ctx, action); err != nil {
		if msg := session.Status().Message; msg != "" {
			fmt.Println(msg)
		}
		return err
	}

	status := session.Status()
	fmt.Printf("Enrolled employees with descriptors: %d\n", status.Enrolled)
	fmt.Println(status.LocationMessage)
	if status.State == kiosk.StateLocationDenied {
		return fmt.Errorf("%w: %s", kiosk.ErrLocationDenied, kiosk.MessageNotAtLocation)
	}
	fmt.Println("Scanning... press Ctrl+C to stop")

	return watchScan(ctx, session, events, action, once)
}

// rearmPollInterval bounds how long the CLI stays idle when the Armed
// transition was dropped from a full event channel.
const rearmPollInterval = 250 * time.Millisecond

// watchScan prints session events and re-arms after every cooldown.
func watchScan(ctx context.Context, session *kiosk.Session, events <-chan kiosk.Event, action kiosk.Action, once bool) error {
	poll := time.NewTicker(rearmPollInterval)
	defer poll.Stop()

	var lastFeedback string
	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nStopping...")
			return nil
		case <-poll.C:
			if err := rearm(session, action); err != nil {
				return err
			}
		case e := <-events:
			switch e.Type {
			case kiosk.EventMatch:
				lastFeedback = ""
				fmt.Printf("Recognized %s (%s), distance %.3f\n", e.Name, e.EmployeeID, e.Distance)
			case kiosk.EventSubmitted:
				st := session.Status()
				fmt.Printf("[%s] %s\n", time.Now().Format(time.TimeOnly), st.Message)
				if once {
					return nil
				}
			case kiosk.EventFeedback:
				if e.Message != "" && e.Message != lastFeedback {
					fmt.Println(e.Message)
				}
				lastFeedback = e.Message
			case kiosk.EventState:
				if e.State == kiosk.StateError || e.State == kiosk.StateArmed {
					if err := rearm(session, action); err != nil {
						return err
					}
				}
			}
		}
	}
}

// rearm starts the next scan once the session is back in Armed.
func rearm(session *kiosk.Session, action kiosk.Action) error {
	st := session.Status()
	switch st.State {
	case kiosk.StateError:
		return fmt.Errorf("session failed: %s", st.Message)
	case kiosk.StateArmed:
		if st.Message != "" {
			fmt.Println(st.Message)
		}
		if err := session.Arm(action); err != nil && !errors.Is(err, kiosk.ErrBusy) {
			return err
		}
	}
	return nil
}
