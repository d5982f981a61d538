package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/attendance-kiosk/internal/kiosk"
)

type markRequest struct {
	EmployeeID string `json:"employeeId"`
	Type       string `json:"type"`
}

type markResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Record posts the event to /attendance/mark. A rejection carrying a
// reason becomes *kiosk.BusinessRuleError.
func (c *Client) Record(ctx context.Context, event kiosk.AttendanceEvent) (kiosk.Receipt, error) {
	req := markRequest{EmployeeID: event.EmployeeID, Type: string(event.Action)}

	resp, err := doPostJSON[markResponse](ctx, c, req, "attendance", "mark")
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Reason != "" {
			return kiosk.Receipt{}, &kiosk.BusinessRuleError{Reason: se.Reason}
		}
		return kiosk.Receipt{}, fmt.Errorf("could not mark attendance: %w", err)
	}

	if !resp.Success {
		if resp.Error != "" {
			return kiosk.Receipt{}, &kiosk.BusinessRuleError{Reason: resp.Error}
		}
		if resp.Message != "" {
			return kiosk.Receipt{}, &kiosk.BusinessRuleError{Reason: resp.Message}
		}
	}
	return kiosk.Receipt{Success: resp.Success, Message: resp.Message}, nil
}
