package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/kozaktomas/attendance-kiosk/internal/config"
	"github.com/kozaktomas/attendance-kiosk/internal/database"
	"github.com/kozaktomas/attendance-kiosk/internal/facematch"
	"github.com/spf13/cobra"
)

var employeesCmd = &cobra.Command{
	Use:   "employees",
	Short: "Inspect and manage enrolled employees",
}

var employeesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled employees",
	Long: `List the employees of the active enrollment backend (PostgreSQL, or the
legacy MariaDB table when PostgreSQL is not configured).

--search matches names ignoring case and diacritics.`,
	Args: cobra.NoArgs,
	RunE: runEmployeesList,
}

var employeesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an enrolled employee",
	Args:  cobra.ExactArgs(1),
	RunE:  runEmployeesDelete,
}

func init() {
	rootCmd.AddCommand(employeesCmd)
	employeesCmd.AddCommand(employeesListCmd)
	employeesCmd.AddCommand(employeesDeleteCmd)

	employeesListCmd.Flags().String("search", "", "Filter by name")
	employeesListCmd.Flags().Bool("json", false, "Output as JSON")
}

// employeeRow is one line of the list output.
type employeeRow struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Descriptor bool      `json:"has_descriptor"`
	EnrolledAt time.Time `json:"enrolled_at,omitzero"`
}

// filterEmployees keeps the employees whose name matches search.
func filterEmployees(employees []database.StoredEmployee, search string, dim int) []database.StoredEmployee {
	if search == "" {
		return employees
	}
	matched := make(map[string]bool)
	for _, rec := range facematch.FindByName(database.ToSnapshot(employees, dim), search) {
		matched[rec.EmployeeID] = true
	}
	var out []database.StoredEmployee
	for _, e := range employees {
		if matched[e.ID] {
			out = append(out, e)
		}
	}
	return out
}

func openEmployeeBackends(ctx context.Context) (*services, error) {
	cfg := config.Load()
	if cfg.Database.URL == "" && cfg.MariaDB.DSN == "" {
		return nil, errors.New("DATABASE_URL or MARIADB_DSN environment variable is required")
	}
	return loadServices(ctx, cfg, false)
}

func runEmployeesList(cmd *cobra.Command, args []string) error {
	search := mustGetString(cmd, "search")
	jsonOutput := mustGetBool(cmd, "json")

	ctx := context.Background()
	svc, err := openEmployeeBackends(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	reader, err := database.GetEmployeeReader(ctx)
	if err != nil {
		return err
	}
	employees, err := reader.List(ctx)
	if err != nil {
		return fmt.Errorf("listing employees: %w", err)
	}
	dim := svc.cfg.Matching.Dim
	employees = filterEmployees(employees, search, dim)

	rows := make([]employeeRow, 0, len(employees))
	for _, e := range employees {
		rows = append(rows, employeeRow{
			ID:         e.ID,
			Name:       e.Name,
			Descriptor: facematch.Descriptor(e.Descriptor).Valid(dim),
			EnrolledAt: e.EnrolledAt,
		})
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDESCRIPTOR\tENROLLED")
	for _, r := range rows {
		enrolled := "-"
		if !r.EnrolledAt.IsZero() {
			enrolled = r.EnrolledAt.Local().Format(time.DateTime)
		}
		descriptor := "missing"
		if r.Descriptor {
			descriptor = "ok"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.Name, descriptor, enrolled)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d employees (%s)\n", len(rows), database.Backends()[0])
	return nil
}

func runEmployeesDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	svc, err := openEmployeeBackends(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	writer, err := database.GetEmployeeWriter(ctx)
	if err != nil {
		return fmt.Errorf("deleting requires PostgreSQL: %w", err)
	}
	deleted, err := writer.Delete(ctx, args[0])
	if err != nil {
		return fmt.Errorf("deleting employee: %w", err)
	}
	if !deleted {
		return fmt.Errorf("employee %s not found", args[0])
	}
	svc.invalidateSnapshots(ctx)
	fmt.Printf("Deleted employee %s\n", args[0])
	return nil
}
