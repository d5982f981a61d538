package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kozaktomas/attendance-kiosk/internal/config"
	"github.com/kozaktomas/attendance-kiosk/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "attendance-kiosk",
	Short: "Face recognition attendance kiosk",
	Long: `Attendance Kiosk captures camera frames, verifies that the kiosk stands
inside the authorized site, recognizes enrolled employees by their face
descriptor and records one check-in or check-out per recognized face.

Run "serve" for the browser kiosk and HTTP API, or "scan" to drive a camera
from the command line.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()

	cfg := config.Load()
	logging.Setup(cfg.Log.Level, cfg.Log.Format)
}
