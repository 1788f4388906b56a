package observability

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-xr/kestrel/internal/tracing"
)

func TestAuditLoggerRecordsToFile(t *testing.T) {
	tmpDir := t.TempDir()
	auditFile := filepath.Join(tmpDir, "audit.log")

	require.NoError(t, InitAuditLogger(auditFile))

	ctx := tracing.WithTraceID(context.Background(), "trace-audit-1")
	ctx = tracing.WithSessionID(ctx, 4)

	GetAuditLogger().Record(ctx, AuditEvent{
		Type:   "session",
		Actor:  "client-9",
		Action: "session_granted",
		Status: "success",
	})

	require.NoError(t, GetAuditLogger().Close())

	content, err := os.ReadFile(auditFile)
	require.NoError(t, err)

	out := string(content)
	assert.Contains(t, out, "session_granted")
	assert.Contains(t, out, "trace-audit-1")
	assert.Contains(t, out, `"session_id":4`)
	assert.Contains(t, out, "client-9")
}

func TestAuditHelpers(t *testing.T) {
	tmpDir := t.TempDir()
	auditFile := filepath.Join(tmpDir, "audit.log")

	require.NoError(t, InitAuditLogger(auditFile))

	ctx := context.Background()
	RecordSessionAudit(ctx, "session_requested", "client-1", "pending", map[string]interface{}{"mode": "immersive-vr"})
	RecordDeviceAudit(ctx, "sim-hmd", "device_connected", "success", nil)
	RecordGatewayAudit(ctx, "auth_challenge", "client-1", "failure", nil)

	require.NoError(t, GetAuditLogger().Close())

	content, err := os.ReadFile(auditFile)
	require.NoError(t, err)

	out := string(content)
	assert.Contains(t, out, "session_requested")
	assert.Contains(t, out, "immersive-vr")
	assert.Contains(t, out, "device_connected")
	assert.Contains(t, out, "sim-hmd")
	assert.Contains(t, out, "auth_challenge")
}
