package exec

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/nolus-protocol/nodes-manager-sub001/internal/apperrors"
)

// ServiceStatus returns the systemctl is-active value for service, e.g.
// "active", "inactive", "failed".
func (r *Runner) ServiceStatus(ctx context.Context, service string) (string, error) {
	cmd := exec.CommandContext(ctx, "systemctl", "is-active", service)
	out, _ := cmd.Output() // is-active exits non-zero for non-active states; the value itself is still meaningful
	return strings.TrimSpace(string(out)), nil
}

// StartService starts service via sudo systemctl start.
func (r *Runner) StartService(ctx context.Context, service string) error {
	return r.systemctlAction(ctx, "start", service)
}

// StopService stops service via sudo systemctl stop.
func (r *Runner) StopService(ctx context.Context, service string) error {
	return r.systemctlAction(ctx, "stop", service)
}

func (r *Runner) systemctlAction(ctx context.Context, action, service string) error {
	cmd := exec.CommandContext(ctx, "sudo", "systemctl", action, service)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return apperrors.Upstream(fmt.Sprintf("systemctl %s %s", action, service), strings.TrimSpace(string(out)))
	}
	return nil
}

// ServiceUptime returns how long service has been active, derived from
// systemctl's ActiveEnterTimestamp property.
func (r *Runner) ServiceUptime(ctx context.Context, service string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, "systemctl", "show", service, "--property=ActiveEnterTimestamp", "--value")
	out, err := cmd.Output()
	if err != nil {
		return 0, apperrors.Upstream("systemctl show", err.Error())
	}
	ts := strings.TrimSpace(string(out))
	if ts == "" || ts == "n/a" {
		return 0, nil
	}

	dateCmd := exec.CommandContext(ctx, "date", "-d", ts, "+%s")
	dateOut, err := dateCmd.Output()
	if err != nil {
		return 0, apperrors.Upstream("date -d", err.Error())
	}
	epoch, perr := strconv.ParseInt(strings.TrimSpace(string(dateOut)), 10, 64)
	if perr != nil {
		return 0, &apperrors.Error{Kind: apperrors.NotFound, Message: "could not parse service start timestamp", Wrapped: perr}
	}
	start := time.Unix(epoch, 0)
	if start.After(time.Now()) {
		return 0, nil
	}
	return time.Since(start), nil
}

// VerifyActive fails with a Postcondition error unless the service's
// current status is exactly "active".
func (r *Runner) VerifyActive(ctx context.Context, service string) error {
	status, err := r.ServiceStatus(ctx, service)
	if err != nil {
		return err
	}
	if status != "active" {
		return apperrors.FailedPostcondition("service "+service, status)
	}
	return nil
}
