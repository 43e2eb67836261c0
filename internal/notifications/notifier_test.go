package notifications_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/campuspass/backend/internal/models"
	"github.com/campuspass/backend/internal/notifications"
	"github.com/campuspass/backend/internal/notifications/mocks"
	"github.com/campuspass/backend/pkg/queue"
)

func TestNoticeFor(t *testing.T) {
	reg := &models.Registration{ID: uuid.New(), EventID: uuid.New(), UserID: uuid.New()}

	for status, want := range map[models.RegistrationStatus]string{
		models.RegistrationPending:  models.EmailTypeRegistrationReceived,
		models.RegistrationApproved: models.EmailTypeRegistrationApproved,
		models.RegistrationRejected: models.EmailTypeRegistrationRejected,
	} {
		reg.Status = status
		n := notifications.NoticeFor(reg)
		assert.Equal(t, want, n.Type)
		assert.Equal(t, reg.ID, n.RegistrationID)
	}
}

func TestQueueNotifierEnqueuesEmailJob(t *testing.T) {
	ctrl := gomock.NewController(t)
	q := mocks.NewMockEnqueuer(ctrl)
	notice := notifications.Notice{Type: models.EmailTypeRegistrationReceived, RegistrationID: uuid.New()}

	q.EXPECT().
		Enqueue(gomock.Any(), queue.JobTypeEmail, notice).
		Return(&queue.Job{ID: "job-1"}, nil)

	n := notifications.NewQueueNotifier(q, 0, nil, nil)
	assert.NoError(t, n.Notify(context.Background(), notice))
}

func TestQueueNotifierIgnoresCallerCancellation(t *testing.T) {
	ctrl := gomock.NewController(t)
	q := mocks.NewMockEnqueuer(ctrl)

	q.EXPECT().
		Enqueue(gomock.Any(), queue.JobTypeEmail, gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ queue.JobType, _ any) (*queue.Job, error) {
			assert.NoError(t, ctx.Err())
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
			return &queue.Job{ID: "job-2"}, nil
		})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n := notifications.NewQueueNotifier(q, 0, nil, nil)
	assert.NoError(t, n.Notify(ctx, notifications.Notice{}))
}

func TestDispatchSwallowsErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	notifier := mocks.NewMockNotifier(ctrl)
	notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(errors.New("redis down"))

	d := notifications.NewDispatch(notifier, nil).WithRunner(func(f func()) { f() })
	assert.NotPanics(t, func() {
		d.Send(context.Background(), notifications.Notice{Type: models.EmailTypeRegistrationApproved})
	})
}

func TestNilDispatchIsNoop(t *testing.T) {
	var d *notifications.Dispatch
	assert.NotPanics(t, func() { d.Send(context.Background(), notifications.Notice{}) })
}
