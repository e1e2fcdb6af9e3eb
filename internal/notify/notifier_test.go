package notify

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilco/market-creation/internal/domain"
)

type recordingSender struct {
	name     string
	err      error
	titles   []string
	messages []string
}

func (s *recordingSender) Send(_ context.Context, title, message string) error {
	s.titles = append(s.titles, title)
	s.messages = append(s.messages, message)
	return s.err
}

func (s *recordingSender) Name() string { return s.name }

func TestNotifyFiltersEvents(t *testing.T) {
	sender := &recordingSender{name: "test"}
	n := NewNotifier([]Sender{sender}, []string{domain.EventMarketActivated}, slog.New(slog.DiscardHandler))
	ctx := context.Background()

	require.NoError(t, n.Notify(ctx, domain.EventMarketActivated, "t1", "m1"))
	require.NoError(t, n.Notify(ctx, domain.EventMarketUpdated, "t2", "m2"))

	assert.Equal(t, []string{"t1"}, sender.titles)
}

func TestNotifyEmptyFilterAllowsAll(t *testing.T) {
	sender := &recordingSender{name: "test"}
	n := NewNotifier([]Sender{sender}, nil, slog.New(slog.DiscardHandler))

	require.NoError(t, n.Notify(context.Background(), "anything", "t", "m"))
	assert.Len(t, sender.titles, 1)
}

func TestNotifyIsolatesSenderFailures(t *testing.T) {
	broken := &recordingSender{name: "broken", err: errors.New("webhook 500")}
	healthy := &recordingSender{name: "healthy"}
	n := NewNotifier([]Sender{broken, healthy}, nil, slog.New(slog.DiscardHandler))

	err := n.Notify(context.Background(), "ev", "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	// The healthy sender still delivered.
	assert.Equal(t, []string{"t"}, healthy.titles)
}

func TestRenderEvent(t *testing.T) {
	title, msg := renderEvent(domain.LifecycleEvent{
		Event:           domain.EventMarketActivated,
		UID:             "m1",
		Address:         "0xdeadbeef",
		TransactionHash: "0xabc",
	})
	assert.Equal(t, "Market activated", title)
	assert.Contains(t, msg, "m1")
	assert.Contains(t, msg, "0xdeadbeef")

	title, msg = renderEvent(domain.LifecycleEvent{
		Event:        domain.EventMarketReverted,
		UID:          "m2",
		RevertReason: "activation timed out",
	})
	assert.Equal(t, "Market activation reverted", title)
	assert.Contains(t, msg, "activation timed out")
}

func TestDiscordSenderPostsWebhook(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := make([]byte, r.ContentLength)
		r.Body.Read(body)
		got = string(body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewDiscordSender(srv.URL)
	require.NoError(t, s.Send(context.Background(), "Market activated", "Market m1 is live."))
	assert.Contains(t, got, "**Market activated**")
	assert.Contains(t, got, "Market m1 is live.")
}

func TestDiscordSenderRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), "t", "m")
	assert.Error(t, err)
}
