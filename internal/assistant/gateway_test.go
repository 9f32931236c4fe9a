package assistant

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/heinrichuk/pmoai/internal/models"
)

type fakeCompleter struct {
	reply  string
	err    error
	block  bool
	calls  atomic.Int32
	system string
}

func (f *fakeCompleter) Name() string { return "fake" }

func (f *fakeCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	f.calls.Add(1)
	f.system = system
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.reply, f.err
}

type staticWorkstreams []models.Workstream

func (s staticWorkstreams) Workstreams() []models.Workstream { return s }

var portfolio = staticWorkstreams{
	{ID: "ws-1", Name: "Data Migration", Status: models.StatusAmber},
	{ID: "ws-3", Name: "API Development", Status: models.StatusRed},
}

const migrationAnswer = "The Data Migration workstream is currently in AMBER status. There's a risk of data corruption that's being mitigated with a backup strategy."

func TestAnswerUnconfiguredUsesFallback(t *testing.T) {
	g := NewGateway(nil, portfolio, time.Second, zaptest.NewLogger(t))
	assert.False(t, g.Configured())

	msg := g.Answer(context.Background(), "what is the status of data migration")
	assert.Equal(t, migrationAnswer, msg.Content)
	assert.Equal(t, models.RoleAssistant, msg.Role)
	assert.True(t, strings.HasPrefix(msg.ID, "msg-"), msg.ID)
	assert.False(t, msg.Timestamp.IsZero())
}

func TestAnswerUsesCompleter(t *testing.T) {
	fc := &fakeCompleter{reply: "All good."}
	g := NewGateway(fc, portfolio, time.Second, zaptest.NewLogger(t))

	msg := g.Answer(context.Background(), "status?")
	assert.Equal(t, "All good.", msg.Content)
	assert.EqualValues(t, 1, fc.calls.Load())
	assert.Contains(t, fc.system, "- Data Migration workstream (status: AMBER)")
	assert.Contains(t, fc.system, "- API Development workstream (status: RED)")
}

func TestAnswerFallsBackWithoutRetry(t *testing.T) {
	tests := []struct {
		name string
		fc   *fakeCompleter
	}{
		{"error", &fakeCompleter{err: errors.New("503 service unavailable")}},
		{"empty", &fakeCompleter{reply: "  "}},
		{"timeout", &fakeCompleter{block: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGateway(tt.fc, portfolio, 20*time.Millisecond, zaptest.NewLogger(t))

			msg := g.Answer(context.Background(), "what is the status of data migration")
			assert.Equal(t, migrationAnswer, msg.Content)
			assert.EqualValues(t, 1, tt.fc.calls.Load())
		})
	}
}

func TestSystemPrompt(t *testing.T) {
	got := SystemPrompt(portfolio)
	require.True(t, strings.HasPrefix(got, "You are a Project Management Assistant for UBS."))
	assert.True(t, strings.HasSuffix(got, "Project context:\n- Data Migration workstream (status: AMBER)\n- API Development workstream (status: RED)\n"))
}
