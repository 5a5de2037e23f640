package businessflow

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/leadflow/app/dto"
	"github.com/amirphl/leadflow/models"
	"github.com/amirphl/leadflow/repository"
	"github.com/amirphl/leadflow/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type fakeTxKey struct{}

// fakeTx collects undo steps so a failed transaction can be rolled back in memory
type fakeTx struct {
	mu   sync.Mutex
	undo []func()
}

func onRollback(ctx context.Context, fn func()) {
	if tx, ok := ctx.Value(fakeTxKey{}).(*fakeTx); ok {
		tx.mu.Lock()
		tx.undo = append(tx.undo, fn)
		tx.mu.Unlock()
	}
}

type fakeTxManager struct{}

func (fakeTxManager) WithTransaction(ctx context.Context, fn func(context.Context) error) error {
	if _, ok := ctx.Value(fakeTxKey{}).(*fakeTx); ok {
		return fn(ctx)
	}
	tx := &fakeTx{}
	if err := fn(context.WithValue(ctx, fakeTxKey{}, tx)); err != nil {
		tx.mu.Lock()
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		tx.mu.Unlock()
		return err
	}
	return nil
}

func duplicateKey() error {
	return fmt.Errorf("failed to save entity: %w", repository.ErrDuplicateKey)
}

func page[T any](rows []*T, limit, offset int) []*T {
	if offset >= len(rows) {
		return []*T{}
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

// fakeCustomerRepo keeps leads in memory and applies the guarded mutations under one lock
type fakeCustomerRepo struct {
	mu     sync.Mutex
	rows   map[uint]*models.Customer
	nextID uint
}

var _ repository.CustomerRepository = (*fakeCustomerRepo)(nil)

func newFakeCustomerRepo() *fakeCustomerRepo {
	return &fakeCustomerRepo{rows: map[uint]*models.Customer{}}
}

func cloneCustomer(c *models.Customer) *models.Customer {
	cp := *c
	cp.DeclinedBy = append(pq.StringArray{}, c.DeclinedBy...)
	cp.BroadcastedTo = append(pq.StringArray{}, c.BroadcastedTo...)
	return &cp
}

func matchCustomer(c *models.Customer, f models.CustomerFilter) bool {
	switch {
	case f.ID != nil && c.ID != *f.ID,
		f.UUID != nil && c.UUID != *f.UUID,
		f.Email != nil && c.Email != *f.Email,
		f.PhoneNumber != nil && c.PhoneNumber != *f.PhoneNumber,
		f.CompanyID != nil && c.CompanyID != *f.CompanyID,
		f.ProjectID != nil && c.ProjectID != *f.ProjectID,
		f.Status != nil && c.Status != *f.Status,
		f.CreatedByID != nil && c.CreatedByID != *f.CreatedByID,
		f.AcceptedBy != nil && !c.IsAcceptedBy(*f.AcceptedBy),
		f.AssignedTo != nil && !c.IsAcceptedBy(*f.AssignedTo) && !c.IsBroadcastedTo(*f.AssignedTo),
		f.BroadcastedTo != nil && !c.IsBroadcastedTo(*f.BroadcastedTo),
		f.IsAccepted != nil && c.IsAccepted != *f.IsAccepted,
		f.CreatedAfter != nil && !c.CreatedAt.After(*f.CreatedAfter),
		f.CreatedBefore != nil && !c.CreatedAt.Before(*f.CreatedBefore):
		return false
	}
	return true
}

func (r *fakeCustomerRepo) ByID(ctx context.Context, id uint) (*models.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	return cloneCustomer(c), nil
}

func (r *fakeCustomerRepo) ByFilter(ctx context.Context, filter models.CustomerFilter, orderBy string, limit, offset int) ([]*models.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Customer
	for _, c := range r.rows {
		if matchCustomer(c, filter) {
			out = append(out, cloneCustomer(c))
		}
	}
	slices.SortFunc(out, func(a, b *models.Customer) int { return int(a.ID) - int(b.ID) })
	return page(out, limit, offset), nil
}

func (r *fakeCustomerRepo) Save(ctx context.Context, c *models.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rows {
		if existing.Email == c.Email || existing.PhoneNumber == c.PhoneNumber {
			return duplicateKey()
		}
	}
	r.nextID++
	c.ID = r.nextID
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = utils.UTCNow()
	}
	c.UpdatedAt = c.CreatedAt
	r.rows[c.ID] = cloneCustomer(c)
	id := c.ID
	onRollback(ctx, func() {
		r.mu.Lock()
		delete(r.rows, id)
		r.mu.Unlock()
	})
	return nil
}

func (r *fakeCustomerRepo) SaveBatch(ctx context.Context, entities []*models.Customer) error {
	for _, e := range entities {
		if err := r.Save(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeCustomerRepo) Count(ctx context.Context, filter models.CustomerFilter) (int64, error) {
	rows, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(rows)), nil
}

func (r *fakeCustomerRepo) Exists(ctx context.Context, filter models.CustomerFilter) (bool, error) {
	n, _ := r.Count(ctx, filter)
	return n > 0, nil
}

func (r *fakeCustomerRepo) ByEmailOrPhone(ctx context.Context, email, phone string) (*models.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.rows {
		if c.Email == email || c.PhoneNumber == phone {
			return cloneCustomer(c), nil
		}
	}
	return nil, nil
}

func (r *fakeCustomerRepo) AcceptIfUnaccepted(ctx context.Context, id, companyID uint, agentID uuid.UUID, agentName string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok || c.IsAccepted || c.CompanyID != companyID {
		return false, nil
	}
	c.IsAccepted = true
	c.AcceptedBy = &agentID
	c.AcceptedByName = &agentName
	c.AcceptedAt = &at
	c.UpdatedAt = at
	return true, nil
}

func (r *fakeCustomerRepo) AddDecline(ctx context.Context, id uint, agentID uuid.UUID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok || c.IsAccepted || c.HasDeclined(agentID) {
		return false, nil
	}
	c.DeclinedBy = append(c.DeclinedBy, agentID.String())
	c.DeclinedAt = &at
	return true, nil
}

func (r *fakeCustomerRepo) UnionBroadcast(ctx context.Context, id uint, agentIDs []uuid.UUID) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok {
		return nil, fmt.Errorf("customer %d not found", id)
	}
	var added []uuid.UUID
	for _, a := range agentIDs {
		if !c.IsBroadcastedTo(a) {
			c.BroadcastedTo = append(c.BroadcastedTo, a.String())
			added = append(added, a)
		}
	}
	c.IsBroadcasted = true
	return added, nil
}

func (r *fakeCustomerRepo) UpdateStatus(ctx context.Context, id uint, status string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok {
		return false, nil
	}
	previous, previousAt := c.Status, c.UpdatedAt
	c.Status = status
	c.UpdatedAt = at
	onRollback(ctx, func() {
		r.mu.Lock()
		c.Status, c.UpdatedAt = previous, previousAt
		r.mu.Unlock()
	})
	return true, nil
}

func (r *fakeCustomerRepo) CountByStatus(ctx context.Context, filter models.CustomerFilter) ([]models.StatusCount, error) {
	rows, _ := r.ByFilter(ctx, filter, "", 0, 0)
	counts := map[string]int64{}
	for _, c := range rows {
		counts[c.Status]++
	}
	out := make([]models.StatusCount, 0, len(counts))
	for s, n := range counts {
		out = append(out, models.StatusCount{Status: s, Count: n})
	}
	return out, nil
}

func (r *fakeCustomerRepo) CountByCreators(ctx context.Context, creatorIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[uuid.UUID]int64{}
	for _, c := range r.rows {
		if slices.Contains(creatorIDs, c.CreatedByID) {
			out[c.CreatedByID]++
		}
	}
	return out, nil
}

func (r *fakeCustomerRepo) CountByAcceptors(ctx context.Context, agentIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[uuid.UUID]int64{}
	for _, c := range r.rows {
		if c.AcceptedBy != nil && slices.Contains(agentIDs, *c.AcceptedBy) {
			out[*c.AcceptedBy]++
		}
	}
	return out, nil
}

// fakeUserRepo stores primary users
type fakeUserRepo struct {
	mu   sync.Mutex
	rows []*models.User
}

var _ repository.UserRepository = (*fakeUserRepo)(nil)

func matchUser(u *models.User, f models.UserFilter) bool {
	switch {
	case f.ID != nil && u.ID != *f.ID,
		f.UUID != nil && u.UUID != *f.UUID,
		f.Email != nil && u.Email != *f.Email,
		f.PhoneNumber != nil && u.PhoneNumber != *f.PhoneNumber,
		f.CompanyID != nil && u.CompanyID != *f.CompanyID,
		f.Role != nil && u.Role != *f.Role,
		f.Status != nil && u.Status != *f.Status,
		f.Query != nil && !strings.Contains(strings.ToLower(u.FullName+" "+u.Email), strings.ToLower(*f.Query)):
		return false
	}
	return true
}

func (r *fakeUserRepo) find(pred func(*models.User) bool) *models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.rows {
		if pred(u) {
			cp := *u
			return &cp
		}
	}
	return nil
}

func (r *fakeUserRepo) ByID(ctx context.Context, id uint) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.ID == id }), nil
}

func (r *fakeUserRepo) ByFilter(ctx context.Context, filter models.UserFilter, orderBy string, limit, offset int) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.User
	for _, u := range r.rows {
		if matchUser(u, filter) {
			cp := *u
			out = append(out, &cp)
		}
	}
	return page(out, limit, offset), nil
}

func (r *fakeUserRepo) Save(ctx context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rows {
		if existing.Email == u.Email || existing.PhoneNumber == u.PhoneNumber {
			return duplicateKey()
		}
	}
	u.ID = uint(len(r.rows) + 1)
	if u.UUID == uuid.Nil {
		u.UUID = uuid.New()
	}
	u.CreatedAt = utils.UTCNow()
	cp := *u
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *fakeUserRepo) SaveBatch(ctx context.Context, entities []*models.User) error {
	for _, e := range entities {
		if err := r.Save(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeUserRepo) Count(ctx context.Context, filter models.UserFilter) (int64, error) {
	rows, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(rows)), nil
}

func (r *fakeUserRepo) Exists(ctx context.Context, filter models.UserFilter) (bool, error) {
	n, _ := r.Count(ctx, filter)
	return n > 0, nil
}

func (r *fakeUserRepo) ByUUID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.UUID == id }), nil
}

func (r *fakeUserRepo) ByEmail(ctx context.Context, email string) (*models.User, error) {
	email = utils.NormalizeEmail(email)
	return r.find(func(u *models.User) bool { return u.Email == email }), nil
}

func (r *fakeUserRepo) ByEmailOrPhone(ctx context.Context, email, phone string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Email == email || u.PhoneNumber == phone }), nil
}

func (r *fakeUserRepo) ListActiveAgents(ctx context.Context, companyID uint) ([]*models.User, error) {
	role, status := models.RoleAgent, models.UserStatusActive
	return r.ByFilter(ctx, models.UserFilter{CompanyID: &companyID, Role: &role, Status: &status}, "", 0, 0)
}

func (r *fakeUserRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.rows {
		if u.UUID == id {
			u.Status = status
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

// fakeAssociateRepo stores associate users
type fakeAssociateRepo struct {
	mu   sync.Mutex
	rows []*models.AssociateUser
}

var _ repository.AssociateUserRepository = (*fakeAssociateRepo)(nil)

func matchAssociate(a *models.AssociateUser, f models.AssociateUserFilter) bool {
	switch {
	case f.ID != nil && a.ID != *f.ID,
		f.UUID != nil && a.UUID != *f.UUID,
		f.Email != nil && a.Email != *f.Email,
		f.PhoneNumber != nil && a.PhoneNumber != *f.PhoneNumber,
		f.CompanyID != nil && a.CompanyID != *f.CompanyID,
		f.Role != nil && a.Role != *f.Role,
		f.Status != nil && a.Status != *f.Status,
		f.CreatedByID != nil && a.CreatedByID != *f.CreatedByID:
		return false
	}
	return true
}

func (r *fakeAssociateRepo) find(pred func(*models.AssociateUser) bool) *models.AssociateUser {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.rows {
		if pred(a) {
			cp := *a
			return &cp
		}
	}
	return nil
}

func (r *fakeAssociateRepo) ByID(ctx context.Context, id uint) (*models.AssociateUser, error) {
	return r.find(func(a *models.AssociateUser) bool { return a.ID == id }), nil
}

func (r *fakeAssociateRepo) ByFilter(ctx context.Context, filter models.AssociateUserFilter, orderBy string, limit, offset int) ([]*models.AssociateUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.AssociateUser
	for _, a := range r.rows {
		if matchAssociate(a, filter) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return page(out, limit, offset), nil
}

func (r *fakeAssociateRepo) Save(ctx context.Context, a *models.AssociateUser) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rows {
		if existing.Email == a.Email || existing.PhoneNumber == a.PhoneNumber {
			return duplicateKey()
		}
	}
	a.ID = uint(len(r.rows) + 1)
	if a.UUID == uuid.Nil {
		a.UUID = uuid.New()
	}
	a.CreatedAt = utils.UTCNow()
	cp := *a
	r.rows = append(r.rows, &cp)
	id := a.UUID
	onRollback(ctx, func() {
		r.mu.Lock()
		r.rows = slices.DeleteFunc(r.rows, func(x *models.AssociateUser) bool { return x.UUID == id })
		r.mu.Unlock()
	})
	return nil
}

func (r *fakeAssociateRepo) SaveBatch(ctx context.Context, entities []*models.AssociateUser) error {
	for _, e := range entities {
		if err := r.Save(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeAssociateRepo) Count(ctx context.Context, filter models.AssociateUserFilter) (int64, error) {
	rows, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(rows)), nil
}

func (r *fakeAssociateRepo) Exists(ctx context.Context, filter models.AssociateUserFilter) (bool, error) {
	n, _ := r.Count(ctx, filter)
	return n > 0, nil
}

func (r *fakeAssociateRepo) ByUUID(ctx context.Context, id uuid.UUID) (*models.AssociateUser, error) {
	return r.find(func(a *models.AssociateUser) bool { return a.UUID == id }), nil
}

func (r *fakeAssociateRepo) ByEmail(ctx context.Context, email string) (*models.AssociateUser, error) {
	email = utils.NormalizeEmail(email)
	return r.find(func(a *models.AssociateUser) bool { return a.Email == email }), nil
}

func (r *fakeAssociateRepo) ByEmailOrPhone(ctx context.Context, email, phone string) (*models.AssociateUser, error) {
	return r.find(func(a *models.AssociateUser) bool { return a.Email == email || a.PhoneNumber == phone }), nil
}

func (r *fakeAssociateRepo) ListActiveAgents(ctx context.Context, companyID uint) ([]*models.AssociateUser, error) {
	role, status := models.RoleAgent, models.UserStatusActive
	return r.ByFilter(ctx, models.AssociateUserFilter{CompanyID: &companyID, Role: &role, Status: &status}, "", 0, 0)
}

func (r *fakeAssociateRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.AssociateUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.rows {
		if a.UUID == id {
			a.Status = status
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

// fakeAdminRepo stores admins
type fakeAdminRepo struct {
	mu   sync.Mutex
	rows []*models.Admin
}

var _ repository.AdminRepository = (*fakeAdminRepo)(nil)

func (r *fakeAdminRepo) find(pred func(*models.Admin) bool) *models.Admin {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.rows {
		if pred(a) {
			cp := *a
			return &cp
		}
	}
	return nil
}

func (r *fakeAdminRepo) ByID(ctx context.Context, id uint) (*models.Admin, error) {
	return r.find(func(a *models.Admin) bool { return a.ID == id }), nil
}

func (r *fakeAdminRepo) ByFilter(ctx context.Context, filter models.AdminFilter, orderBy string, limit, offset int) ([]*models.Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Admin
	for _, a := range r.rows {
		if (filter.ID == nil || a.ID == *filter.ID) && (filter.UUID == nil || a.UUID == *filter.UUID) && (filter.Email == nil || a.Email == *filter.Email) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return page(out, limit, offset), nil
}

func (r *fakeAdminRepo) Save(ctx context.Context, a *models.Admin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a.ID = uint(len(r.rows) + 1)
	if a.UUID == uuid.Nil {
		a.UUID = uuid.New()
	}
	a.CreatedAt = utils.UTCNow()
	cp := *a
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *fakeAdminRepo) SaveBatch(ctx context.Context, entities []*models.Admin) error {
	for _, e := range entities {
		if err := r.Save(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeAdminRepo) Count(ctx context.Context, filter models.AdminFilter) (int64, error) {
	rows, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(rows)), nil
}

func (r *fakeAdminRepo) Exists(ctx context.Context, filter models.AdminFilter) (bool, error) {
	n, _ := r.Count(ctx, filter)
	return n > 0, nil
}

func (r *fakeAdminRepo) ByUUID(ctx context.Context, id uuid.UUID) (*models.Admin, error) {
	return r.find(func(a *models.Admin) bool { return a.UUID == id }), nil
}

func (r *fakeAdminRepo) ByEmail(ctx context.Context, email string) (*models.Admin, error) {
	email = utils.NormalizeEmail(email)
	return r.find(func(a *models.Admin) bool { return a.Email == email }), nil
}

func (r *fakeAdminRepo) TouchLastLogin(ctx context.Context, id uint, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.rows {
		if a.ID == id {
			a.LastLoginAt = &at
		}
	}
	return nil
}

// fakeCompanyRepo stores companies
type fakeCompanyRepo struct {
	mu   sync.Mutex
	rows []*models.Company
}

var _ repository.CompanyRepository = (*fakeCompanyRepo)(nil)

func (r *fakeCompanyRepo) ByID(ctx context.Context, id uint) (*models.Company, error) {
	rows, _ := r.ByFilter(ctx, models.CompanyFilter{ID: &id}, "", 1, 0)
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *fakeCompanyRepo) ByFilter(ctx context.Context, f models.CompanyFilter, orderBy string, limit, offset int) ([]*models.Company, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Company
	for _, c := range r.rows {
		switch {
		case f.ID != nil && c.ID != *f.ID,
			f.Name != nil && c.Name != *f.Name,
			f.NameLike != nil && !strings.Contains(strings.ToLower(c.Name), strings.ToLower(*f.NameLike)),
			f.CompanyCode != nil && c.CompanyCode != *f.CompanyCode,
			f.IsDeleted != nil && c.IsDeleted != *f.IsDeleted:
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	return page(out, limit, offset), nil
}

func (r *fakeCompanyRepo) Save(ctx context.Context, c *models.Company) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rows {
		if !existing.IsDeleted && existing.Name == c.Name {
			return duplicateKey()
		}
	}
	c.ID = uint(len(r.rows) + 1)
	c.CreatedAt = utils.UTCNow()
	cp := *c
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *fakeCompanyRepo) SaveBatch(ctx context.Context, entities []*models.Company) error {
	for _, e := range entities {
		if err := r.Save(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeCompanyRepo) Count(ctx context.Context, filter models.CompanyFilter) (int64, error) {
	rows, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(rows)), nil
}

func (r *fakeCompanyRepo) Exists(ctx context.Context, filter models.CompanyFilter) (bool, error) {
	n, _ := r.Count(ctx, filter)
	return n > 0, nil
}

func (r *fakeCompanyRepo) LiveByID(ctx context.Context, id uint) (*models.Company, error) {
	live := false
	rows, _ := r.ByFilter(ctx, models.CompanyFilter{ID: &id, IsDeleted: &live}, "", 1, 0)
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *fakeCompanyRepo) LiveByName(ctx context.Context, name string) (*models.Company, error) {
	live := false
	rows, _ := r.ByFilter(ctx, models.CompanyFilter{Name: &name, IsDeleted: &live}, "", 1, 0)
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *fakeCompanyRepo) SoftDelete(ctx context.Context, id uint, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.rows {
		if c.ID == id && !c.IsDeleted {
			c.IsDeleted = true
			c.DeletedAt = &at
			return true, nil
		}
	}
	return false, nil
}

// fakeProjectRepo stores projects
type fakeProjectRepo struct {
	mu   sync.Mutex
	rows []*models.Project
}

var _ repository.ProjectRepository = (*fakeProjectRepo)(nil)

func (r *fakeProjectRepo) ByID(ctx context.Context, id uint) (*models.Project, error) {
	rows, _ := r.ByFilter(ctx, models.ProjectFilter{ID: &id}, "", 1, 0)
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *fakeProjectRepo) ByFilter(ctx context.Context, f models.ProjectFilter, orderBy string, limit, offset int) ([]*models.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Project
	for _, p := range r.rows {
		switch {
		case f.ID != nil && p.ID != *f.ID,
			f.ProjectCode != nil && p.ProjectCode != *f.ProjectCode,
			f.TitleLike != nil && !strings.Contains(strings.ToLower(p.Title), strings.ToLower(*f.TitleLike)):
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return page(out, limit, offset), nil
}

func (r *fakeProjectRepo) Save(ctx context.Context, p *models.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = uint(len(r.rows) + 1)
	p.CreatedAt = utils.UTCNow()
	cp := *p
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *fakeProjectRepo) SaveBatch(ctx context.Context, entities []*models.Project) error {
	for _, e := range entities {
		if err := r.Save(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeProjectRepo) Count(ctx context.Context, filter models.ProjectFilter) (int64, error) {
	rows, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(rows)), nil
}

func (r *fakeProjectRepo) Exists(ctx context.Context, filter models.ProjectFilter) (bool, error) {
	n, _ := r.Count(ctx, filter)
	return n > 0, nil
}

// fakeStatusRepo stores master statuses
type fakeStatusRepo struct {
	mu   sync.Mutex
	rows []*models.MasterStatus
}

var _ repository.MasterStatusRepository = (*fakeStatusRepo)(nil)

func (r *fakeStatusRepo) ByID(ctx context.Context, id uint) (*models.MasterStatus, error) {
	rows, _ := r.ByFilter(ctx, models.MasterStatusFilter{ID: &id}, "", 1, 0)
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *fakeStatusRepo) ByFilter(ctx context.Context, f models.MasterStatusFilter, orderBy string, limit, offset int) ([]*models.MasterStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.MasterStatus
	for _, s := range r.rows {
		switch {
		case f.ID != nil && s.ID != *f.ID,
			f.Name != nil && s.Name != *f.Name,
			f.IsDeleted != nil && s.IsDeleted != *f.IsDeleted:
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	return page(out, limit, offset), nil
}

func (r *fakeStatusRepo) Save(ctx context.Context, s *models.MasterStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rows {
		if !existing.IsDeleted && existing.Name == s.Name {
			return duplicateKey()
		}
	}
	s.ID = uint(len(r.rows) + 1)
	cp := *s
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *fakeStatusRepo) SaveBatch(ctx context.Context, entities []*models.MasterStatus) error {
	for _, e := range entities {
		if err := r.Save(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeStatusRepo) Count(ctx context.Context, filter models.MasterStatusFilter) (int64, error) {
	rows, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(rows)), nil
}

func (r *fakeStatusRepo) Exists(ctx context.Context, filter models.MasterStatusFilter) (bool, error) {
	n, _ := r.Count(ctx, filter)
	return n > 0, nil
}

func (r *fakeStatusRepo) LiveByID(ctx context.Context, id uint) (*models.MasterStatus, error) {
	live := false
	rows, _ := r.ByFilter(ctx, models.MasterStatusFilter{ID: &id, IsDeleted: &live}, "", 1, 0)
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *fakeStatusRepo) LiveByName(ctx context.Context, name string) (*models.MasterStatus, error) {
	live := false
	rows, _ := r.ByFilter(ctx, models.MasterStatusFilter{Name: &name, IsDeleted: &live}, "", 1, 0)
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *fakeStatusRepo) ListLive(ctx context.Context) ([]*models.MasterStatus, error) {
	live := false
	return r.ByFilter(ctx, models.MasterStatusFilter{IsDeleted: &live}, "", 0, 0)
}

func (r *fakeStatusRepo) Rename(ctx context.Context, id uint, name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.rows {
		if !s.IsDeleted && s.Name == name && s.ID != id {
			return false, repository.ErrDuplicateKey
		}
	}
	for _, s := range r.rows {
		if s.ID == id && !s.IsDeleted {
			s.Name = name
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeStatusRepo) SoftDelete(ctx context.Context, id uint, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.rows {
		if s.ID == id && !s.IsDeleted {
			s.IsDeleted = true
			s.DeletedAt = &at
			return true, nil
		}
	}
	return false, nil
}

// fakeHistoryRepo stores status history rows
type fakeHistoryRepo struct {
	mu   sync.Mutex
	rows []*models.CustomerStatusHistory
	fail error
}

var _ repository.CustomerStatusHistoryRepository = (*fakeHistoryRepo)(nil)

func (r *fakeHistoryRepo) ByID(ctx context.Context, id uint) (*models.CustomerStatusHistory, error) {
	rows, _ := r.ByFilter(ctx, models.CustomerStatusHistoryFilter{ID: &id}, "", 1, 0)
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *fakeHistoryRepo) ByFilter(ctx context.Context, f models.CustomerStatusHistoryFilter, orderBy string, limit, offset int) ([]*models.CustomerStatusHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.CustomerStatusHistory
	for _, h := range r.rows {
		switch {
		case f.ID != nil && h.ID != *f.ID,
			f.CustomerID != nil && h.CustomerID != *f.CustomerID,
			f.ActorID != nil && h.ActorID != *f.ActorID,
			f.Status != nil && h.Status != *f.Status:
			continue
		}
		cp := *h
		out = append(out, &cp)
	}
	return page(out, limit, offset), nil
}

func (r *fakeHistoryRepo) Save(ctx context.Context, h *models.CustomerStatusHistory) error {
	if r.fail != nil {
		return r.fail
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	h.ID = uint(len(r.rows) + 1)
	if h.CreatedAt.IsZero() {
		h.CreatedAt = utils.UTCNow()
	}
	cp := *h
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *fakeHistoryRepo) SaveBatch(ctx context.Context, entities []*models.CustomerStatusHistory) error {
	for _, e := range entities {
		if err := r.Save(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeHistoryRepo) Count(ctx context.Context, filter models.CustomerStatusHistoryFilter) (int64, error) {
	rows, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(rows)), nil
}

func (r *fakeHistoryRepo) Exists(ctx context.Context, filter models.CustomerStatusHistoryFilter) (bool, error) {
	n, _ := r.Count(ctx, filter)
	return n > 0, nil
}

func (r *fakeHistoryRepo) ListByCustomer(ctx context.Context, customerID uint) ([]*models.CustomerStatusHistory, error) {
	return r.ByFilter(ctx, models.CustomerStatusHistoryFilter{CustomerID: &customerID}, "", 0, 0)
}

// fakeLinkStore backs both link repositories
type fakeLinkStore[T any] struct {
	mu      sync.Mutex
	rows    map[string]*T
	expires func(*T) time.Time
	setCode func(*T) string
}

func newFakeLinkStore[T any](code func(*T) string, expires func(*T) time.Time) *fakeLinkStore[T] {
	return &fakeLinkStore[T]{rows: map[string]*T{}, setCode: code, expires: expires}
}

func (s *fakeLinkStore[T]) Save(ctx context.Context, link *T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	code := s.setCode(link)
	if _, ok := s.rows[code]; ok {
		return duplicateKey()
	}
	cp := *link
	s.rows[code] = &cp
	return nil
}

func (s *fakeLinkStore[T]) ByCode(ctx context.Context, code string) (*T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.rows[code]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (s *fakeLinkStore[T]) ClaimByCode(ctx context.Context, code string, now time.Time) (*T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.rows[code]
	if !ok || !s.expires(l).After(now) {
		return nil, nil
	}
	delete(s.rows, code)
	onRollback(ctx, func() {
		s.mu.Lock()
		s.rows[code] = l
		s.mu.Unlock()
	})
	cp := *l
	return &cp, nil
}

func (s *fakeLinkStore[T]) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for code, l := range s.rows {
		if !s.expires(l).After(now) {
			delete(s.rows, code)
			n++
		}
	}
	return n, nil
}

func newFakeCustomerLinkRepo() *fakeLinkStore[models.CustomerLink] {
	return newFakeLinkStore(
		func(l *models.CustomerLink) string { return l.Code },
		func(l *models.CustomerLink) time.Time { return l.ExpiresAt },
	)
}

func newFakeAssociateLinkRepo() *fakeLinkStore[models.AssociateLink] {
	return newFakeLinkStore(
		func(l *models.AssociateLink) string { return l.Code },
		func(l *models.AssociateLink) time.Time { return l.ExpiresAt },
	)
}

var (
	_ repository.CustomerLinkRepository  = (*fakeLinkStore[models.CustomerLink])(nil)
	_ repository.AssociateLinkRepository = (*fakeLinkStore[models.AssociateLink])(nil)
)

// fakeSequenceRepo hands out increasing numbers per name
type fakeSequenceRepo struct {
	mu     sync.Mutex
	values map[string]int64
}

func (r *fakeSequenceRepo) Next(ctx context.Context, name string, start int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.values == nil {
		r.values = map[string]int64{}
	}
	v, ok := r.values[name]
	if !ok {
		v = start
	} else {
		v++
	}
	r.values[name] = v
	return v, nil
}

// fakeActivityRepo stores follow-up and note entries
type fakeActivityRepo struct {
	mu        sync.Mutex
	followUps map[uint][]*models.FollowUpEntry
	notes     map[uint][]*models.NoteEntry
}

type fakeFollowUpRepo struct{ *fakeActivityRepo }

type fakeNoteRepo struct{ *fakeActivityRepo }

func (r fakeFollowUpRepo) AppendEntry(ctx context.Context, customerID uint, entry *models.FollowUpEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.ID = uint(len(r.followUps[customerID]) + 1)
	entry.CreatedAt = utils.UTCNow()
	r.followUps[customerID] = append(r.followUps[customerID], entry)
	return nil
}

func (r fakeFollowUpRepo) ListEntries(ctx context.Context, customerID uint) ([]*models.FollowUpEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.followUps[customerID]), nil
}

func (r fakeNoteRepo) AppendEntry(ctx context.Context, customerID uint, entry *models.NoteEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.ID = uint(len(r.notes[customerID]) + 1)
	entry.CreatedAt = utils.UTCNow()
	r.notes[customerID] = append(r.notes[customerID], entry)
	return nil
}

func (r fakeNoteRepo) ListEntries(ctx context.Context, customerID uint) ([]*models.NoteEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.notes[customerID]), nil
}

// sentNotification is one call made on fakeNotifier
type sentNotification struct {
	Scope   string
	Target  string
	Except  uuid.UUID
	Event   string
	Payload any
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *fakeNotifier) add(s sentNotification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, s)
}

func (n *fakeNotifier) NotifyIdentities(ctx context.Context, ids []uuid.UUID, event string, payload any) {
	seen := map[uuid.UUID]bool{}
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		n.add(sentNotification{Scope: "identity", Target: id.String(), Event: event, Payload: payload})
	}
}

func (n *fakeNotifier) NotifyCompany(ctx context.Context, companyID uint, event string, payload any) {
	n.add(sentNotification{Scope: "company", Target: fmt.Sprint(companyID), Event: event, Payload: payload})
}

func (n *fakeNotifier) NotifyCompanyExcept(ctx context.Context, companyID uint, except uuid.UUID, event string, payload any) {
	n.add(sentNotification{Scope: "company", Target: fmt.Sprint(companyID), Except: except, Event: event, Payload: payload})
}

func (n *fakeNotifier) NotifyAdmins(ctx context.Context, event string, payload any) {
	n.add(sentNotification{Scope: "admins", Target: "admins", Event: event, Payload: payload})
}

func (n *fakeNotifier) ForceLogout(ctx context.Context, id uuid.UUID, payload dto.ForceLogoutEvent) {
	n.add(sentNotification{Scope: "identity", Target: id.String(), Event: dto.EventForceLogout, Payload: payload})
}

// find returns notifications of event, optionally narrowed to one target
func (n *fakeNotifier) find(event string, target string) []sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentNotification
	for _, s := range n.sent {
		if s.Event == event && (target == "" || s.Target == target) {
			out = append(out, s)
		}
	}
	return out
}

func (n *fakeNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = nil
}

// testEnv wires every flow on top of the fakes
type testEnv struct {
	customers      *fakeCustomerRepo
	users          *fakeUserRepo
	associates     *fakeAssociateRepo
	admins         *fakeAdminRepo
	companies      *fakeCompanyRepo
	projects       *fakeProjectRepo
	statuses       *fakeStatusRepo
	history        *fakeHistoryRepo
	customerLinks  *fakeLinkStore[models.CustomerLink]
	associateLinks *fakeLinkStore[models.AssociateLink]
	sequences      *fakeSequenceRepo
	activity       *fakeActivityRepo
	notifier       *fakeNotifier
	logger         *logrus.Logger
	resolver       PrincipalResolver
	tx             fakeTxManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	env := &testEnv{
		customers:      newFakeCustomerRepo(),
		users:          &fakeUserRepo{},
		associates:     &fakeAssociateRepo{},
		admins:         &fakeAdminRepo{},
		companies:      &fakeCompanyRepo{},
		projects:       &fakeProjectRepo{},
		statuses:       &fakeStatusRepo{},
		history:        &fakeHistoryRepo{},
		customerLinks:  newFakeCustomerLinkRepo(),
		associateLinks: newFakeAssociateLinkRepo(),
		sequences:      &fakeSequenceRepo{},
		activity:       &fakeActivityRepo{followUps: map[uint][]*models.FollowUpEntry{}, notes: map[uint][]*models.NoteEntry{}},
		notifier:       &fakeNotifier{},
		logger:         logger,
	}
	env.resolver = NewPrincipalResolver(env.users, env.associates, env.admins)
	return env
}

func (e *testEnv) leadFlow() LeadFlow {
	return NewLeadFlow(e.customers, e.projects, e.companies, e.users, e.associates, e.tx, e.notifier, e.logger)
}

func (e *testEnv) assignmentFlow() LeadAssignmentFlow {
	return NewLeadAssignmentFlow(e.customers, e.companies, e.users, e.associates, e.tx, e.notifier, e.logger)
}

func (e *testEnv) masterStatusFlow() MasterStatusFlow {
	return NewMasterStatusFlow(e.statuses, nil, "test:", time.Minute, e.logger)
}

func (e *testEnv) statusFlow() LeadStatusFlow {
	return NewLeadStatusFlow(e.customers, e.history, e.statuses, e.masterStatusFlow(), e.resolver, e.tx, e.notifier, e.logger)
}

func (e *testEnv) linkFlow() LinkOnboardingFlow {
	return NewLinkOnboardingFlow(e.customerLinks, e.associateLinks, e.customers, e.projects, e.companies, e.users, e.associates, e.resolver, e.tx, e.notifier, e.logger, 0, 0)
}

func (e *testEnv) activityFlow() ActivityFlow {
	return NewActivityFlow(e.customers, fakeFollowUpRepo{e.activity}, fakeNoteRepo{e.activity})
}

func (e *testEnv) userAdminFlow() UserAdminFlow {
	return NewUserAdminFlow(e.users, e.associates, e.companies, e.customers, e.tx, e.notifier, e.logger)
}

func (e *testEnv) company(t *testing.T, name string) *models.Company {
	t.Helper()
	c := &models.Company{Name: name, CompanyCode: "C-" + name}
	require.NoError(t, e.companies.Save(context.Background(), c))
	return c
}

func (e *testEnv) project(t *testing.T) *models.Project {
	t.Helper()
	p := &models.Project{Title: "Sunrise Towers", ProjectCode: fmt.Sprintf("P-%d", len(e.projects.rows)+101)}
	require.NoError(t, e.projects.Save(context.Background(), p))
	return p
}

func (e *testEnv) status(t *testing.T, name string) *models.MasterStatus {
	t.Helper()
	s := &models.MasterStatus{Name: name}
	require.NoError(t, e.statuses.Save(context.Background(), s))
	return s
}

var phoneSeq = struct {
	sync.Mutex
	n int
}{n: 1000}

func nextPhone(first string) string {
	phoneSeq.Lock()
	defer phoneSeq.Unlock()
	phoneSeq.n++
	return fmt.Sprintf("%s%09d", first, phoneSeq.n)
}

// user registers a primary user and returns its principal
func (e *testEnv) user(t *testing.T, company *models.Company, role, name string) *Principal {
	t.Helper()
	u := &models.User{
		FullName:     name,
		Email:        strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
		PhoneNumber:  nextPhone("1"),
		CompanyID:    company.ID,
		CompanyName:  company.Name,
		Role:         role,
		Status:       models.UserStatusActive,
		PasswordHash: "x",
	}
	require.NoError(t, e.users.Save(context.Background(), u))
	return principalFromUser(u)
}

func (e *testEnv) associate(t *testing.T, creator *Principal, role, name string) *Principal {
	t.Helper()
	a := &models.AssociateUser{
		FullName:      name,
		Email:         strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
		PhoneNumber:   nextPhone("2"),
		CompanyID:     creator.CompanyID,
		CompanyName:   creator.CompanyName,
		Role:          role,
		Status:        models.UserStatusActive,
		PasswordHash:  "x",
		CreatedByID:   creator.ID,
		CreatedByName: creator.Name,
	}
	require.NoError(t, e.associates.Save(context.Background(), a))
	return principalFromAssociate(a)
}

func (e *testEnv) admin(t *testing.T) *Principal {
	t.Helper()
	a := &models.Admin{Name: "Root Admin", Email: "admin@example.com", Status: models.UserStatusActive, PasswordHash: "x"}
	require.NoError(t, e.admins.Save(context.Background(), a))
	return principalFromAdmin(a)
}

// lead creates a lead through the real create path
func (e *testEnv) lead(t *testing.T, creator *Principal, company *models.Company, project *models.Project) *dto.LeadDTO {
	t.Helper()
	companyID := company.ID
	out, err := e.leadFlow().CreateLead(context.Background(), creator, &dto.CreateLeadRequest{
		FullName:    "Ravi Kumar",
		PhoneNumber: nextPhone("9"),
		Email:       uuid.NewString()[:8] + "@lead.example.com",
		ProjectID:   project.ID,
		CompanyID:   &companyID,
	})
	require.NoError(t, err)
	return out
}
