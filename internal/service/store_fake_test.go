package service_test

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

// fakeStore is an in-memory repository.Store used by the service tests.
// Reads and writes go through clones so service-side mutation of a loaded
// ticket never leaks into the stored state before Update is called.
type fakeStore struct {
	mu sync.Mutex

	tickets    map[int64]*domain.Ticket
	closures   map[int64]*domain.Closure
	groups     map[int]*domain.Group
	categories map[int]*domain.ResolutionCategory
	comments   map[int64][]domain.TicketComment
	history    map[int64][]domain.TicketHistory
	users      map[int]*domain.User
	members    []domain.GroupMembership

	nextTicketID  int64
	nextClosureID int64
	nextCommentID int64
	nextHistoryID int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tickets:    make(map[int64]*domain.Ticket),
		closures:   make(map[int64]*domain.Closure),
		groups:     make(map[int]*domain.Group),
		categories: make(map[int]*domain.ResolutionCategory),
		comments:   make(map[int64][]domain.TicketComment),
		history:    make(map[int64][]domain.TicketHistory),
		users:      make(map[int]*domain.User),
	}
}

func (s *fakeStore) Tickets() repository.TicketRepository      { return &fakeTicketRepo{s: s} }
func (s *fakeStore) Closures() repository.ClosureRepository    { return &fakeClosureRepo{s: s} }
func (s *fakeStore) Groups() repository.GroupRepository        { return &fakeGroupRepo{s: s} }
func (s *fakeStore) Categories() repository.CategoryRepository { return &fakeCategoryRepo{s: s} }
func (s *fakeStore) Comments() repository.CommentRepository    { return &fakeCommentRepo{s: s} }
func (s *fakeStore) History() repository.HistoryRepository     { return &fakeHistoryRepo{s: s} }
func (s *fakeStore) Users() repository.UserRepository          { return &fakeUserRepo{s: s} }

func (s *fakeStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	return fn(ctx, s)
}

type fakeTicketRepo struct{ s *fakeStore }

func (r *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextTicketID++
	ticket.ID = r.s.nextTicketID
	now := time.Now()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	r.s.tickets[ticket.ID] = ticket.Clone()
	return nil
}

func (r *fakeTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	ticket.UpdatedAt = time.Now()
	r.s.tickets[ticket.ID] = ticket.Clone()
	return nil
}

func (r *fakeTicketRepo) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tickets[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.s.tickets, id)
	for _, t := range r.s.tickets {
		if t.ParentTicketID != nil && *t.ParentTicketID == id {
			t.ParentTicketID = nil
		}
	}
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ticket, ok := r.s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return ticket.Clone(), nil
}

func (r *fakeTicketRepo) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Ticket, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range r.s.tickets {
		if ticketMatches(ticket, filter) {
			result = append(result, *ticket.Clone())
		}
	}
	return result, nil
}

func ticketMatches(ticket *domain.Ticket, filter repository.TicketFilter) bool {
	if filter.MatchNone {
		return false
	}
	if filter.ScopeGroupIDs != nil {
		found := false
		for _, groupID := range filter.ScopeGroupIDs {
			if groupID == ticket.RequestingGroupID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.CreatorOrAssigneeID != nil {
		userID := *filter.CreatorOrAssigneeID
		if ticket.CreatorUserID != userID &&
			(ticket.AssigneeUserID == nil || *ticket.AssigneeUserID != userID) {
			return false
		}
	}
	if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, ticket.Status) {
		return false
	}
	if len(filter.Priorities) > 0 && !containsPriority(filter.Priorities, ticket.Priority) {
		return false
	}
	if len(filter.Types) > 0 && !containsType(filter.Types, ticket.Type) {
		return false
	}
	if len(filter.GroupIDs) > 0 {
		found := false
		for _, groupID := range filter.GroupIDs {
			if groupID == ticket.RequestingGroupID ||
				(ticket.ExecutingGroupID != nil && *ticket.ExecutingGroupID == groupID) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.Search != nil {
		term := strings.TrimSpace(*filter.Search)
		if id, err := strconv.ParseInt(term, 10, 64); err == nil {
			return ticket.ID == id
		}
		term = strings.ToLower(term)
		if !strings.Contains(strings.ToLower(ticket.Title), term) &&
			!strings.Contains(strings.ToLower(ticket.Description), term) {
			return false
		}
	}
	return true
}

func containsStatus(list []domain.TicketStatus, v domain.TicketStatus) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func containsPriority(list []domain.TicketPriority, v domain.TicketPriority) bool {
	for _, p := range list {
		if p == v {
			return true
		}
	}
	return false
}

func containsType(list []domain.TicketType, v domain.TicketType) bool {
	for _, t := range list {
		if t == v {
			return true
		}
	}
	return false
}

func (r *fakeTicketRepo) ListChildren(_ context.Context, parentID int64) ([]domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range r.s.tickets {
		if ticket.ParentTicketID != nil && *ticket.ParentTicketID == parentID {
			result = append(result, *ticket.Clone())
		}
	}
	return result, nil
}

func (r *fakeTicketRepo) HasChildren(ctx context.Context, id int64) (bool, error) {
	children, err := r.ListChildren(ctx, id)
	if err != nil {
		return false, err
	}
	return len(children) > 0, nil
}

func (r *fakeTicketRepo) CountByStatus(_ context.Context, filter repository.TicketFilter) (map[domain.TicketStatus]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	counts := make(map[domain.TicketStatus]int64)
	for _, ticket := range r.s.tickets {
		if ticketMatches(ticket, filter) {
			counts[ticket.Status]++
		}
	}
	return counts, nil
}

type fakeClosureRepo struct{ s *fakeStore }

func (r *fakeClosureRepo) Create(_ context.Context, closure *domain.Closure) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextClosureID++
	closure.ID = r.s.nextClosureID
	closure.CreatedAt = time.Now()
	dup := *closure
	r.s.closures[closure.TicketID] = &dup
	return nil
}

func (r *fakeClosureRepo) GetByTicket(_ context.Context, ticketID int64) (*domain.Closure, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	closure, ok := r.s.closures[ticketID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	dup := *closure
	return &dup, nil
}

func (r *fakeClosureRepo) ExistsByTicket(_ context.Context, ticketID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.closures[ticketID]
	return ok, nil
}

func (r *fakeClosureRepo) DeleteByTicket(_ context.Context, ticketID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.closures[ticketID]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.s.closures, ticketID)
	return nil
}

type fakeGroupRepo struct{ s *fakeStore }

func (r *fakeGroupRepo) GetByID(_ context.Context, id int) (*domain.Group, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	group, ok := r.s.groups[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	dup := *group
	return &dup, nil
}

func (r *fakeGroupRepo) IsActive(ctx context.Context, id int) (bool, error) {
	group, err := r.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return group.IsActive, nil
}

func (r *fakeGroupRepo) IsMember(_ context.Context, userID, groupID int) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.members {
		if m.Active && m.UserID == userID && m.GroupID == groupID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeGroupRepo) ListMembershipsByUser(_ context.Context, userID int) ([]domain.GroupMembership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []domain.GroupMembership
	for _, m := range r.s.members {
		if m.UserID == userID {
			result = append(result, m)
		}
	}
	return result, nil
}

type fakeCategoryRepo struct{ s *fakeStore }

func (r *fakeCategoryRepo) GetByID(_ context.Context, id int) (*domain.ResolutionCategory, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	category, ok := r.s.categories[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	dup := *category
	return &dup, nil
}

func (r *fakeCategoryRepo) ListActive(_ context.Context) ([]domain.ResolutionCategory, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []domain.ResolutionCategory
	for _, category := range r.s.categories {
		if category.Active {
			result = append(result, *category)
		}
	}
	return result, nil
}

type fakeCommentRepo struct{ s *fakeStore }

func (r *fakeCommentRepo) Create(_ context.Context, comment *domain.TicketComment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextCommentID++
	comment.ID = r.s.nextCommentID
	comment.CreatedAt = time.Now()
	r.s.comments[comment.TicketID] = append(r.s.comments[comment.TicketID], *comment)
	return nil
}

func (r *fakeCommentRepo) ListByTicket(_ context.Context, ticketID int64) ([]domain.TicketComment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]domain.TicketComment(nil), r.s.comments[ticketID]...), nil
}

func (r *fakeCommentRepo) DeleteByTicket(_ context.Context, ticketID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.comments, ticketID)
	return nil
}

type fakeHistoryRepo struct{ s *fakeStore }

func (r *fakeHistoryRepo) Append(_ context.Context, entry *domain.TicketHistory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextHistoryID++
	entry.ID = r.s.nextHistoryID
	entry.CreatedAt = time.Now()
	r.s.history[entry.TicketID] = append(r.s.history[entry.TicketID], *entry)
	return nil
}

func (r *fakeHistoryRepo) ListByTicket(_ context.Context, ticketID int64, limit, offset int) ([]domain.TicketHistory, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	entries := r.s.history[ticketID]
	if offset >= len(entries) {
		return nil, nil
	}
	entries = entries[offset:]
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return append([]domain.TicketHistory(nil), entries...), nil
}

func (r *fakeHistoryRepo) DeleteByTicket(_ context.Context, ticketID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.history, ticketID)
	return nil
}

type fakeUserRepo struct{ s *fakeStore }

func (r *fakeUserRepo) GetByID(_ context.Context, id int) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	dup := *user
	return &dup, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, user := range r.s.users {
		if user.Email == email {
			dup := *user
			return &dup, nil
		}
	}
	return nil, pgx.ErrNoRows
}

// captureDispatcher records published events for assertions.
type captureDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *captureDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *captureDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *captureDispatcher) byType(eventType events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var result []events.Event
	for _, event := range d.events {
		if event.Type == eventType {
			result = append(result, event)
		}
	}
	return result
}

// fixture wires the services over the fake store.
type fixture struct {
	store      *fakeStore
	dispatcher *captureDispatcher
	tickets    *service.TicketService
	closure    *service.ClosureWorkflow
	hierarchy  *service.HierarchyGuard
	perms      *service.PermissionScope
}

func newFixture() *fixture {
	store := newFakeStore()
	dispatcher := &captureDispatcher{}
	logger := zap.NewNop()
	perms := service.NewPermissionScope()
	hierarchy := service.NewHierarchyGuard(store)
	history := service.NewHistoryRecorder(store.History(), logger)
	closure := service.NewClosureWorkflow(service.ClosureDependencies{
		Store:      store,
		Perms:      perms,
		Hierarchy:  hierarchy,
		Dispatcher: dispatcher,
		History:    history,
		Logger:     logger,
	})
	tickets := service.NewTicketService(service.TicketDependencies{
		Store:      store,
		Perms:      perms,
		Hierarchy:  hierarchy,
		Closure:    closure,
		Dispatcher: dispatcher,
		History:    history,
		Logger:     logger,
	})
	return &fixture{
		store:      store,
		dispatcher: dispatcher,
		tickets:    tickets,
		closure:    closure,
		hierarchy:  hierarchy,
		perms:      perms,
	}
}

func (f *fixture) addGroup(id int, active bool) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	f.store.groups[id] = &domain.Group{ID: id, Name: "group", IsActive: active}
}

func (f *fixture) addUser(id int, role domain.Role, status domain.UserStatus) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	f.store.users[id] = &domain.User{ID: id, Role: role, Status: status, Email: "user" + strconv.Itoa(id) + "@example.com"}
}

func (f *fixture) addCategory(id int, active bool) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	f.store.categories[id] = &domain.ResolutionCategory{ID: id, Name: "category", Active: active}
}

func (f *fixture) addMembership(userID, groupID int, role domain.GroupRole, active bool) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	f.store.members = append(f.store.members, domain.GroupMembership{
		UserID:  userID,
		GroupID: groupID,
		Role:    role,
		Active:  active,
	})
}

func (f *fixture) addTicket(ticket *domain.Ticket) *domain.Ticket {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	f.store.nextTicketID++
	ticket.ID = f.store.nextTicketID
	if ticket.Status == "" {
		ticket.Status = domain.TicketStatusNew
	}
	if ticket.ClosureStatus == "" {
		ticket.ClosureStatus = domain.ClosureStatusOpen
	}
	if ticket.OpenedAt.IsZero() {
		ticket.OpenedAt = time.Now().Add(-time.Hour)
	}
	now := time.Now()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	f.store.tickets[ticket.ID] = ticket.Clone()
	return ticket
}

func (f *fixture) storedTicket(id int64) *domain.Ticket {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	ticket, ok := f.store.tickets[id]
	if !ok {
		return nil
	}
	return ticket.Clone()
}

func adminCaller(userID int) domain.CallerIdentity {
	return domain.CallerIdentity{UserID: userID, Role: domain.RoleAdmin}
}

func managerCaller(userID int, groupIDs ...int) domain.CallerIdentity {
	caller := domain.CallerIdentity{UserID: userID, Role: domain.RoleManager}
	for _, groupID := range groupIDs {
		caller.Memberships = append(caller.Memberships, domain.GroupMembership{
			UserID:  userID,
			GroupID: groupID,
			Role:    domain.GroupRoleManager,
			Active:  true,
		})
	}
	return caller
}

func agentCaller(userID int, groupIDs ...int) domain.CallerIdentity {
	caller := domain.CallerIdentity{UserID: userID, Role: domain.RoleAgent}
	for _, groupID := range groupIDs {
		caller.Memberships = append(caller.Memberships, domain.GroupMembership{
			UserID:  userID,
			GroupID: groupID,
			Role:    domain.GroupRoleAgent,
			Active:  true,
		})
	}
	return caller
}
