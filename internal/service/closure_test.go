package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

func validResolution() service.Resolution {
	return service.Resolution{
		ResolvedAt:  time.Now().Add(-time.Minute),
		CategoryID:  1,
		Description: "replaced the faulty cable",
	}
}

func closableTicket(f *fixture) *domain.Ticket {
	f.addCategory(1, true)
	return f.addTicket(&domain.Ticket{
		Title:             "printer down",
		Description:       "third floor printer",
		RequestingGroupID: 10,
		CreatorUserID:     1,
		Status:            domain.TicketStatusInProgress,
	})
}

func TestCloseHappyPath(t *testing.T) {
	f := newFixture()
	ticket := closableTicket(f)
	resolution := validResolution()

	closed, err := f.closure.Close(context.Background(), adminCaller(9), ticket.ID, resolution)
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusClosed, closed.Status)
	require.Equal(t, domain.ClosureStatusClosed, closed.ClosureStatus)
	require.NotNil(t, closed.ClosedAt)
	require.True(t, closed.ClosedAt.Equal(resolution.ResolvedAt))

	stored, err := f.store.Closures().GetByTicket(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.Equal(t, 9, stored.ClosedByUserID)
	require.Equal(t, resolution.Description, stored.ResolutionDescription)

	published := f.dispatcher.byType(events.EventTicketClosed)
	require.Len(t, published, 1)
	require.Equal(t, ticket.ID, published[0].TicketID)
}

func TestCloseRejectsAlreadyClosed(t *testing.T) {
	f := newFixture()
	ticket := closableTicket(f)

	_, err := f.closure.Close(context.Background(), adminCaller(9), ticket.ID, validResolution())
	require.NoError(t, err)

	_, err = f.closure.Close(context.Background(), adminCaller(9), ticket.ID, validResolution())
	require.True(t, apperrors.IsCode(err, "INVALID_STATE"))
}

func TestCloseRejectsCancelledTicket(t *testing.T) {
	f := newFixture()
	f.addCategory(1, true)
	ticket := f.addTicket(&domain.Ticket{
		Title:             "t",
		RequestingGroupID: 10,
		CreatorUserID:     1,
		Status:            domain.TicketStatusCancelled,
	})

	_, err := f.closure.Close(context.Background(), adminCaller(9), ticket.ID, validResolution())
	require.True(t, apperrors.IsCode(err, "INVALID_STATE"))
}

func TestCloseRejectsUnknownCategory(t *testing.T) {
	f := newFixture()
	ticket := f.addTicket(&domain.Ticket{Title: "t", RequestingGroupID: 10, CreatorUserID: 1})

	_, err := f.closure.Close(context.Background(), adminCaller(9), ticket.ID, validResolution())
	require.True(t, apperrors.IsCode(err, "NOT_FOUND"))
}

func TestCloseRejectsInactiveCategory(t *testing.T) {
	f := newFixture()
	f.addCategory(1, false)
	ticket := f.addTicket(&domain.Ticket{Title: "t", RequestingGroupID: 10, CreatorUserID: 1})

	_, err := f.closure.Close(context.Background(), adminCaller(9), ticket.ID, validResolution())
	require.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
}

func TestCloseRejectsShortResolutionDescription(t *testing.T) {
	f := newFixture()
	ticket := closableTicket(f)
	resolution := validResolution()
	resolution.Description = "  short  "

	_, err := f.closure.Close(context.Background(), adminCaller(9), ticket.ID, resolution)
	require.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
}

func TestCloseRejectsFutureResolvedAt(t *testing.T) {
	f := newFixture()
	ticket := closableTicket(f)
	resolution := validResolution()
	resolution.ResolvedAt = time.Now().Add(time.Hour)

	_, err := f.closure.Close(context.Background(), adminCaller(9), ticket.ID, resolution)
	require.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
}

func TestCloseRejectsResolvedAtBeforeOpenedAt(t *testing.T) {
	f := newFixture()
	ticket := closableTicket(f)
	resolution := validResolution()
	resolution.ResolvedAt = ticket.OpenedAt.Add(-time.Hour)

	_, err := f.closure.Close(context.Background(), adminCaller(9), ticket.ID, resolution)
	require.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
}

func TestCloseBlockedByActiveChildren(t *testing.T) {
	f := newFixture()
	parent := closableTicket(f)
	child := f.addTicket(&domain.Ticket{
		Title:             "child",
		RequestingGroupID: 10,
		CreatorUserID:     1,
		ParentTicketID:    &parent.ID,
		Status:            domain.TicketStatusNew,
	})

	_, err := f.closure.Close(context.Background(), adminCaller(9), parent.ID, validResolution())
	require.True(t, apperrors.IsCode(err, "INVALID_STATE"))
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	require.Equal(t, []int64{child.ID}, domainErr.Details["blocking_children"])

	// parent remains untouched
	require.Equal(t, domain.ClosureStatusOpen, f.storedTicket(parent.ID).ClosureStatus)
}

func TestCloseScopedVisibility(t *testing.T) {
	f := newFixture()
	ticket := closableTicket(f)

	_, err := f.closure.Close(context.Background(), agentCaller(42), ticket.ID, validResolution())
	require.True(t, apperrors.IsCode(err, "FORBIDDEN"))
}

func TestCloseAgentMustBeCreatorOrAssignee(t *testing.T) {
	f := newFixture()
	f.addCategory(1, true)
	assignee := 7
	ticket := f.addTicket(&domain.Ticket{
		Title:             "t",
		RequestingGroupID: 10,
		CreatorUserID:     1,
		AssigneeUserID:    &assignee,
		Status:            domain.TicketStatusInProgress,
	})

	closed, err := f.closure.Close(context.Background(), agentCaller(7), ticket.ID, validResolution())
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusClosed, closed.Status)
}

func TestReopenRestoresTicket(t *testing.T) {
	f := newFixture()
	ticket := closableTicket(f)
	_, err := f.closure.Close(context.Background(), adminCaller(9), ticket.ID, validResolution())
	require.NoError(t, err)

	reopened, err := f.closure.Reopen(context.Background(), adminCaller(9), ticket.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusInProgress, reopened.Status)
	require.Equal(t, domain.ClosureStatusOpen, reopened.ClosureStatus)
	require.Nil(t, reopened.ClosedAt)

	_, err = f.store.Closures().GetByTicket(context.Background(), ticket.ID)
	require.Error(t, err, "closure record destroyed")

	published := f.dispatcher.byType(events.EventTicketReopened)
	require.Len(t, published, 1)
	payload, ok := published[0].Payload.(events.TicketReopenedPayload)
	require.True(t, ok)
	require.NotNil(t, payload.PriorClosure)

	// the cycle may repeat: close works again after reopen
	_, err = f.closure.Close(context.Background(), adminCaller(9), ticket.ID, validResolution())
	require.NoError(t, err)
}

func TestReopenAdminOnly(t *testing.T) {
	f := newFixture()
	ticket := closableTicket(f)
	_, err := f.closure.Close(context.Background(), adminCaller(9), ticket.ID, validResolution())
	require.NoError(t, err)

	_, err = f.closure.Reopen(context.Background(), managerCaller(2, 10), ticket.ID)
	require.True(t, apperrors.IsCode(err, "FORBIDDEN"))
}

func TestReopenRequiresClosedTicket(t *testing.T) {
	f := newFixture()
	ticket := f.addTicket(&domain.Ticket{Title: "t", RequestingGroupID: 10, CreatorUserID: 1})

	_, err := f.closure.Reopen(context.Background(), adminCaller(9), ticket.ID)
	require.True(t, apperrors.IsCode(err, "INVALID_STATE"))
}

func TestCanClosePreflightReasons(t *testing.T) {
	f := newFixture()
	parent := closableTicket(f)
	f.addTicket(&domain.Ticket{
		Title:             "child",
		RequestingGroupID: 10,
		CreatorUserID:     1,
		ParentTicketID:    &parent.ID,
		Status:            domain.TicketStatusWaiting,
	})

	result, err := f.closure.CanClose(context.Background(), parent.ID)
	require.NoError(t, err)
	require.False(t, result.Allowed)
	require.NotEmpty(t, result.Reason)
	require.Len(t, result.BlockingChildren, 1)

	cancelled := f.addTicket(&domain.Ticket{
		Title:             "c",
		RequestingGroupID: 10,
		CreatorUserID:     1,
		Status:            domain.TicketStatusCancelled,
	})
	result, err = f.closure.CanClose(context.Background(), cancelled.ID)
	require.NoError(t, err)
	require.False(t, result.Allowed)

	clean := f.addTicket(&domain.Ticket{Title: "clean", RequestingGroupID: 10, CreatorUserID: 1})
	result, err = f.closure.CanClose(context.Background(), clean.ID)
	require.NoError(t, err)
	require.True(t, result.Allowed)
	require.Empty(t, result.BlockingChildren)
}

func TestCanCloseDoesNotMutate(t *testing.T) {
	f := newFixture()
	ticket := closableTicket(f)

	_, err := f.closure.CanClose(context.Background(), ticket.ID)
	require.NoError(t, err)

	stored := f.storedTicket(ticket.ID)
	require.Equal(t, domain.ClosureStatusOpen, stored.ClosureStatus)
	exists, err := f.store.Closures().ExistsByTicket(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.False(t, exists)
}
