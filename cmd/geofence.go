package cmd

import (
	"fmt"

	"github.com/kozaktomas/attendance-kiosk/internal/config"
	"github.com/kozaktomas/attendance-kiosk/internal/geofence"
	"github.com/spf13/cobra"
)

var geofenceCmd = &cobra.Command{
	Use:   "geofence",
	Short: "Inspect the reference sites",
}

var geofenceSitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "List the configured reference sites",
	Args:  cobra.NoArgs,
	RunE:  runGeofenceSites,
}

var geofenceCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check whether a position is inside the reference site",
	Long: `Evaluate the geofence for a position against the site selected by
KIOSK_SITE (or --site) and print the message a kiosk would show.

Example:
  attendance-kiosk geofence check --lat 13.374875 --lng 103.842436`,
	Args: cobra.NoArgs,
	RunE: runGeofenceCheck,
}

func init() {
	rootCmd.AddCommand(geofenceCmd)
	geofenceCmd.AddCommand(geofenceSitesCmd)
	geofenceCmd.AddCommand(geofenceCheckCmd)

	geofenceCheckCmd.Flags().Float64("lat", 0, "Latitude in degrees")
	geofenceCheckCmd.Flags().Float64("lng", 0, "Longitude in degrees")
	geofenceCheckCmd.Flags().String("site", "", "Site name (overrides KIOSK_SITE)")
	_ = geofenceCheckCmd.MarkFlagRequired("lat")
	_ = geofenceCheckCmd.MarkFlagRequired("lng")
}

func runGeofenceSites(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	for _, name := range cfg.SiteNames() {
		cfg.Kiosk.SiteName = name
		site, err := siteFromConfig(cfg)
		if err != nil {
			return err
		}
		fmt.Printf("%-16s %11.6f %11.6f  radius %.0f m\n", site.Name, site.Center.Latitude, site.Center.Longitude, site.RadiusMeters)
	}
	return nil
}

func runGeofenceCheck(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if name := mustGetString(cmd, "site"); name != "" {
		cfg.Kiosk.SiteName = name
	}
	site, err := siteFromConfig(cfg)
	if err != nil {
		return err
	}

	position := geofence.Coordinate{Latitude: mustGetFloat64(cmd, "lat"), Longitude: mustGetFloat64(cmd, "lng")}
	result := geofence.Verify(position, site)

	fmt.Printf("Site:     %s (radius %.0f m)\n", site.Name, site.RadiusMeters)
	fmt.Printf("Distance: %.1f m\n", result.DistanceMeters)
	fmt.Printf("Verified: %t\n", result.Verified)
	fmt.Println(result.Reason)
	return nil
}
