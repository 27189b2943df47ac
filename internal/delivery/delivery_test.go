package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"agrikonek/internal/domain"
)

type fakePublisher struct {
	topic   string
	payload []byte
	err     error
}

func (f *fakePublisher) Publish(topic string, payload []byte, _ time.Duration) error {
	f.topic, f.payload = topic, payload
	return f.err
}

func sample() *domain.Notification {
	link := "/budgets/requests/r-1"
	return &domain.Notification{
		ID: "n-1", UserID: "u-1", Title: "Budget approved", Message: "PHP 50,000 added",
		Category: domain.CategoryBudget, Priority: domain.NotifyHigh, Link: &link,
		CreatedAt: time.Unix(1700000000, 0),
	}
}

func TestMQTTPusher(t *testing.T) {
	pub := &fakePublisher{}
	p := NewMQTTPusher(pub, "agrikonek", zap.NewNop())

	require.NoError(t, p.Push(context.Background(), sample()))
	assert.Equal(t, "agrikonek/users/u-1/notifications", pub.topic)

	var got map[string]any
	require.NoError(t, json.Unmarshal(pub.payload, &got))
	assert.Equal(t, "n-1", got["id"])
	assert.Equal(t, "budget", got["category"])
	assert.EqualValues(t, 1700000000, got["created_at"])

	pub.err = errors.New("broker down")
	assert.Error(t, p.Push(context.Background(), sample()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Push(ctx, sample()), context.Canceled)
}

func TestMailClient_Send(t *testing.T) {
	var got MailRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/send", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"m-1","message":"queued"}`))
	}))
	defer srv.Close()

	c := NewMailClient(srv.URL, "secret", "no-reply@agrikonek.local", zap.NewNop())
	require.NoError(t, c.Send(context.Background(), "maria@example.ph", sample()))
	assert.Equal(t, "maria@example.ph", got.To)
	assert.Equal(t, "Budget approved", got.Subject)
	assert.Contains(t, got.Text, "/budgets/requests/r-1")
	assert.Equal(t, "n-1", got.Metadata["notification_id"])

	assert.ErrorIs(t, c.Send(context.Background(), "", sample()), domain.ErrInvalidArgument)
}

func TestMailClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"id":"m-2"}`))
	}))
	defer srv.Close()

	c := NewMailClient(srv.URL, "secret", "from@x", zap.NewNop())
	c.httpClient.SetRetryWaitTime(time.Millisecond).SetRetryMaxWaitTime(5 * time.Millisecond)
	require.NoError(t, c.Send(context.Background(), "a@b.c", sample()))
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestMailClient_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewMailClient(srv.URL, "secret", "from@x", zap.NewNop())
	assert.Error(t, c.Send(context.Background(), "a@b.c", sample()))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}
