package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/kozaktomas/attendance-kiosk/internal/config"
	"github.com/kozaktomas/attendance-kiosk/internal/constants"
	"github.com/kozaktomas/attendance-kiosk/internal/database"
	"github.com/kozaktomas/attendance-kiosk/internal/facematch"
	"github.com/kozaktomas/attendance-kiosk/internal/kiosk"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var errNoFace = errors.New("no face detected")

var enrollCmd = &cobra.Command{
	Use:   "enroll [photo]",
	Short: "Enroll employee face descriptors",
	Long: `Detect the face in a photo and store its descriptor for an employee.

A single photo needs --id and --name. With --dir every image in the directory
is enrolled; file names follow <id>_<Name>.jpg, underscores in the name become
spaces. The largest-confidence face is used when a photo has several.

Requires DATABASE_URL (PostgreSQL with pgvector).

Examples:
  attendance-kiosk enroll --id 7 --name "Sok Dara" dara.jpg
  attendance-kiosk enroll --dir ./staff --workers 8`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("id", "", "Employee ID")
	enrollCmd.Flags().String("name", "", "Employee display name")
	enrollCmd.Flags().String("dir", "", "Enroll every <id>_<Name> image in this directory")
	enrollCmd.Flags().Int("workers", constants.WorkerPoolSize, "Parallel workers for --dir")
}

// enrollment is one photo to enroll.
type enrollment struct {
	ID   string
	Name string
	Path string
}

// parseEnrollmentName splits "<id>_<Name_With_Underscores>.jpg".
func parseEnrollmentName(path string) (enrollment, error) {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	id, name, ok := strings.Cut(stem, "_")
	name = strings.Join(strings.Fields(strings.ReplaceAll(name, "_", " ")), " ")
	if !ok || id == "" || name == "" {
		return enrollment{}, fmt.Errorf("file name %q does not match <id>_<Name>", filepath.Base(path))
	}
	return enrollment{ID: id, Name: name, Path: path}, nil
}

// listEnrollments collects the enrollable images of dir in name order.
func listEnrollments(dir string) ([]enrollment, []error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, []error{err}
	}

	var out []enrollment
	var errs []error
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !slices.Contains([]string{".jpg", ".jpeg", ".png"}, ext) {
			continue
		}
		item, err := parseEnrollmentName(filepath.Join(dir, e.Name()))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, item)
	}
	return out, errs
}

// bestDetection returns the descriptor of the most confident face.
func bestDetection(detections []facematch.Detection, dim int) (facematch.Descriptor, error) {
	var best *facematch.Detection
	for i := range detections {
		if !detections[i].Descriptor.Valid(dim) {
			continue
		}
		if best == nil || detections[i].Score > best.Score {
			best = &detections[i]
		}
	}
	if best == nil {
		return nil, errNoFace
	}
	return best.Descriptor, nil
}

// enrollOne detects the face in item's photo and stores it.
func enrollOne(ctx context.Context, extractor kiosk.Extractor, writer database.EmployeeWriter, item enrollment, dim int) error {
	data, err := os.ReadFile(item.Path)
	if err != nil {
		return err
	}
	detections, err := extractor.Detect(ctx, data)
	if err != nil {
		return fmt.Errorf("detecting face: %w", err)
	}
	descriptor, err := bestDetection(detections, dim)
	if err != nil {
		return err
	}
	return writer.Enroll(ctx, database.StoredEmployee{ID: item.ID, Name: item.Name, Descriptor: descriptor})
}

func runEnroll(cmd *cobra.Command, args []string) error {
	dir := mustGetString(cmd, "dir")
	workers := max(mustGetInt(cmd, "workers"), 1)

	var items []enrollment
	var skipped []error
	switch {
	case dir != "":
		items, skipped = listEnrollments(dir)
	case len(args) == 1:
		id, name := strings.TrimSpace(mustGetString(cmd, "id")), strings.TrimSpace(mustGetString(cmd, "name"))
		if id == "" || name == "" {
			return errors.New("--id and --name are required when enrolling a single photo")
		}
		items = []enrollment{{ID: id, Name: name, Path: args[0]}}
	default:
		return errors.New("pass a photo or --dir")
	}
	for _, err := range skipped {
		fmt.Printf("Skipping: %v\n", err)
	}
	if len(items) == 0 {
		return errors.New("nothing to enroll")
	}

	cfg := config.Load()
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	ctx := context.Background()
	svc, err := loadServices(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer svc.Close()

	writer, err := database.GetEmployeeWriter(ctx)
	if err != nil {
		return err
	}
	if err := svc.extractor.Ready(ctx); err != nil {
		return fmt.Errorf("embedding server not ready: %w", err)
	}

	if len(items) == 1 {
		if err := enrollOne(ctx, svc.extractor, writer, items[0], cfg.Matching.Dim); err != nil {
			return fmt.Errorf("enrolling %s: %w", items[0].ID, err)
		}
		svc.invalidateSnapshots(ctx)
		fmt.Printf("Enrolled %s (%s)\n", items[0].Name, items[0].ID)
		return nil
	}

	bar := progressbar.NewOptions(len(items),
		progressbar.OptionSetDescription("Enrolling"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	var mu sync.Mutex
	var successCount int
	var failures []string

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for _, item := range items {
		wg.Add(1)
		go func(item enrollment) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			err := enrollOne(ctx, svc.extractor, writer, item, cfg.Matching.Dim)

			mu.Lock()
			if err != nil {
				failures = append(failures, fmt.Sprintf("%s: %v", filepath.Base(item.Path), err))
			} else {
				successCount++
			}
			mu.Unlock()
			bar.Add(1)
		}(item)
	}
	wg.Wait()
	fmt.Println()

	if successCount > 0 {
		svc.invalidateSnapshots(ctx)
	}

	slices.Sort(failures)
	for _, f := range failures {
		fmt.Printf("Failed: %s\n", f)
	}
	total, _ := writer.Count(ctx)
	fmt.Printf("\nCompleted: %d enrolled, %d errors\n", successCount, len(failures))
	fmt.Printf("Total employees in database: %d\n", total)
	return nil
}
