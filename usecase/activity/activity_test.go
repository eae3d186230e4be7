package activity

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/clustermaster/clustermaster/adapters/store/inmem"
	"github.com/clustermaster/clustermaster/domain/model"
)

type mockNotifier struct {
	notifyFunc func(ctx context.Context, n *model.Notification) error
}

func (m *mockNotifier) Notify(ctx context.Context, n *model.Notification) error {
	if m.notifyFunc != nil {
		return m.notifyFunc(ctx, n)
	}
	return nil
}

func newUseCase(now *time.Time) *UseCase {
	s := inmem.NewStore()
	return &UseCase{
		Repos: &Repos{Activity: s.ActivityRepo, Notification: s.NotificationRepo},
		Now:   func() time.Time { return *now },
	}
}

func TestLog_CapsEntries(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	u := newUseCase(&now)
	for i := 0; i < MaxEntries+5; i++ {
		now = now.Add(time.Second)
		if _, err := u.Log(ctx, &LogInput{Type: "cluster", Action: fmt.Sprintf("op-%d", i)}); err != nil {
			t.Fatal(err)
		}
	}
	out, err := u.List(ctx, &ListInput{Limit: 1000})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Activities) != MaxEntries {
		t.Fatalf("List() = %d entries, want %d", len(out.Activities), MaxEntries)
	}
	if got := out.Activities[0].Action; got != fmt.Sprintf("op-%d", MaxEntries+4) {
		t.Errorf("newest entry = %s", got)
	}
	if out.Activities[0].Status != model.ActivityStarted {
		t.Errorf("default status = %s", out.Activities[0].Status)
	}
}

func TestUpdateStatusAndFilter(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	u := newUseCase(&now)
	a, _ := u.Log(ctx, &LogInput{Action: "create", ClusterName: "demo"})
	_, _ = u.Log(ctx, &LogInput{Action: "create", ClusterName: "other"})
	if err := u.UpdateStatus(ctx, &UpdateStatusInput{ID: a.Activity.ID, Status: model.ActivitySuccess, Message: "done"}); err != nil {
		t.Fatal(err)
	}
	out, _ := u.List(ctx, &ListInput{ClusterName: "demo"})
	if len(out.Activities) != 1 || out.Activities[0].Status != model.ActivitySuccess || out.Activities[0].Message != "done" {
		t.Errorf("List(demo) = %+v", out.Activities)
	}
	if _, err := u.Log(ctx, &LogInput{}); err == nil {
		t.Error("Log() without action accepted")
	}
}

func TestClearOld(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	u := newUseCase(&now)
	_, _ = u.Log(ctx, &LogInput{Action: "old"})
	now = now.AddDate(0, 0, 40)
	_, _ = u.Log(ctx, &LogInput{Action: "new"})
	out, err := u.ClearOld(ctx, &ClearOldInput{Days: 30})
	if err != nil || out.Removed != 1 {
		t.Fatalf("ClearOld() = %+v, %v", out, err)
	}
}

func TestNotify(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("delivered", func(t *testing.T) {
		u := newUseCase(&now)
		var got *model.Notification
		u.Notifier = &mockNotifier{notifyFunc: func(_ context.Context, n *model.Notification) error { got = n; return nil }}
		n, err := u.Notify(ctx, &NotifyInput{Title: "Cluster created", ClusterName: "demo"})
		if err != nil {
			t.Fatal(err)
		}
		if got == nil || got.ID != n.ID || n.Level != model.NotificationInfo {
			t.Errorf("notifier got %+v", got)
		}
		out, _ := u.Notifications(ctx, &NotificationsInput{UnreadOnly: true})
		if out.Unread != 1 {
			t.Errorf("Unread = %d", out.Unread)
		}
		_ = u.MarkRead(ctx, n.ID)
		out, _ = u.Notifications(ctx, nil)
		if out.Unread != 0 || len(out.Notifications) != 1 {
			t.Errorf("after MarkRead = %+v", out)
		}
	})

	t.Run("delivery failure keeps stored copy", func(t *testing.T) {
		u := newUseCase(&now)
		boom := errors.New("sns down")
		u.Notifier = &mockNotifier{notifyFunc: func(context.Context, *model.Notification) error { return boom }}
		if _, err := u.Notify(ctx, &NotifyInput{Title: "x"}); !errors.Is(err, boom) {
			t.Errorf("Notify() error = %v", err)
		}
		out, _ := u.Notifications(ctx, nil)
		if len(out.Notifications) != 1 {
			t.Errorf("stored %d notifications", len(out.Notifications))
		}
	})
}
