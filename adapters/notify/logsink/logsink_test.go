package logsink

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clustermaster/clustermaster/domain/model"
	"github.com/clustermaster/clustermaster/internal/logging"
)

func TestNotify_Levels(t *testing.T) {
	tests := []struct {
		level string
		want  string
	}{
		{model.NotificationError, "ERROR"},
		{model.NotificationWarning, "WARN"},
		{model.NotificationSuccess, "INFO"},
		{model.NotificationInfo, "INFO"},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			log, err := logging.NewWithWriter("json", slog.LevelDebug, &buf)
			require.NoError(t, err)
			ctx := logging.WithLogger(context.Background(), log)

			err = New().Notify(ctx, &model.Notification{ID: "ntf-1", Level: tt.level, Title: "Cluster created", ClusterName: "demo"})
			require.NoError(t, err)

			var rec map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
			assert.Equal(t, tt.want, rec["level"])
			assert.Equal(t, "NOTIFY:Cluster created", rec["msg"])
			assert.Equal(t, "demo", rec["cluster"])
		})
	}
}
