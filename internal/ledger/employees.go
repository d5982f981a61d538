package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kozaktomas/attendance-kiosk/internal/facematch"
)

// employee is one entry of GET /employees. FaceDescriptor is usually an
// index-keyed object but arrays are accepted as well.
type employee struct {
	ID             any    `json:"id"`
	Name           string `json:"name"`
	FaceDescriptor any    `json:"faceDescriptor"`
}

type employeesResponse struct {
	Success   bool       `json:"success"`
	Employees []employee `json:"employees"`
	Error     string     `json:"error"`
}

// FetchAll returns every employee in backend order. Employees without a
// usable descriptor are kept with a nil descriptor.
func (c *Client) FetchAll(ctx context.Context) (facematch.Snapshot, error) {
	resp, err := doGetJSON[employeesResponse](ctx, c, "employees")
	if err != nil {
		return nil, fmt.Errorf("could not fetch employees: %w", err)
	}
	if !resp.Success {
		reason := resp.Error
		if reason == "" {
			reason = "backend reported failure"
		}
		return nil, fmt.Errorf("could not fetch employees: %s", reason)
	}

	snapshot := make(facematch.Snapshot, 0, len(resp.Employees))
	for _, e := range resp.Employees {
		rec := facematch.Record{EmployeeID: formatID(e.ID), DisplayName: e.Name}

		desc, err := facematch.ParseDescriptor(e.FaceDescriptor, c.dim)
		switch {
		case err == nil:
			rec.Descriptor = desc
		case errors.Is(err, facematch.ErrAbsentDescriptor):
		default:
			slog.Debug("ignoring malformed face descriptor", "employee", rec.EmployeeID, "error", err)
		}
		snapshot = append(snapshot, rec)
	}
	return snapshot, nil
}

// formatID renders numeric or string IDs the same way the backend expects
// them back.
func formatID(id any) string {
	switch v := id.(type) {
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
