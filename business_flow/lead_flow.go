package businessflow

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/amirphl/leadflow/app/dto"
	"github.com/amirphl/leadflow/app/services"
	"github.com/amirphl/leadflow/models"
	"github.com/amirphl/leadflow/repository"
	"github.com/amirphl/leadflow/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// Lead creation sources
const (
	leadSourceDirect = "direct"
	leadSourceLink   = "link"
)

// LeadFlow handles lead creation and reads
type LeadFlow interface {
	CreateLead(ctx context.Context, actor *Principal, req *dto.CreateLeadRequest) (*dto.LeadDTO, error)
	ListLeads(ctx context.Context, actor *Principal, req *dto.ListLeadsRequest) (*dto.ListLeadsResponse, error)
	GetLead(ctx context.Context, actor *Principal, id uint) (*dto.LeadDTO, error)
	ExportLeads(ctx context.Context, actor *Principal) (string, []byte, error)
}

// LeadFlowImpl implements LeadFlow
type LeadFlowImpl struct {
	customerRepo repository.CustomerRepository
	companyRepo  repository.CompanyRepository
	txManager    repository.TxManager
	writer       *leadWriter
	notifier     services.NotificationService
	logger       *logrus.Logger
}

func NewLeadFlow(
	customerRepo repository.CustomerRepository,
	projectRepo repository.ProjectRepository,
	companyRepo repository.CompanyRepository,
	userRepo repository.UserRepository,
	associateRepo repository.AssociateUserRepository,
	txManager repository.TxManager,
	notifier services.NotificationService,
	logger *logrus.Logger,
) LeadFlow {
	return &LeadFlowImpl{
		customerRepo: customerRepo,
		companyRepo:  companyRepo,
		txManager:    txManager,
		writer:       newLeadWriter(customerRepo, projectRepo, companyRepo, userRepo, associateRepo),
		notifier:     notifier,
		logger:       logger,
	}
}

func (lf *LeadFlowImpl) CreateLead(ctx context.Context, actor *Principal, req *dto.CreateLeadRequest) (*dto.LeadDTO, error) {
	if req == nil {
		return nil, NewBusinessError("LEAD_VALIDATION_FAILED", "Request is required", ErrValidation)
	}
	if actor == nil || !(actor.IsAgent() || actor.IsChannelPartner() || actor.IsAdmin()) {
		return nil, NewBusinessError("ACCESS_DENIED", "Only agents, channel partners or admins can create customers", ErrRoleNotAllowed)
	}

	companyID := actor.CompanyID
	if !actor.IsAgent() {
		if req.CompanyID == nil || *req.CompanyID == 0 {
			return nil, NewBusinessError("COMPANY_REQUIRED", "Company is required", ErrCompanyRequired)
		}
		companyID = *req.CompanyID
	}

	fields := leadFields{
		FullName:            req.FullName,
		PhoneNumber:         req.PhoneNumber,
		Email:               req.Email,
		PersonalPhoneNumber: req.PersonalPhoneNumber,
		ProjectID:           req.ProjectID,
	}

	var lead *models.Customer
	err := lf.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		lead, err = lf.writer.create(txCtx, actor, companyID, fields)
		return err
	})
	if err != nil {
		return nil, err
	}

	leadsCreatedTotal.WithLabelValues(actor.Role, leadSourceDirect).Inc()
	notifyLeadCreated(ctx, lf.notifier, lead, actor)

	lf.logger.WithFields(logrus.Fields{
		"lead_id":    lead.ID,
		"company_id": lead.CompanyID,
		"created_by": actor.ID.String(),
		"agents":     len(lead.BroadcastedTo),
	}).Info("lead created")

	out := ToLeadDTO(*lead)
	return &out, nil
}

func (lf *LeadFlowImpl) ListLeads(ctx context.Context, actor *Principal, req *dto.ListLeadsRequest) (*dto.ListLeadsResponse, error) {
	filter, err := visibilityFilter(actor)
	if err != nil {
		return nil, err
	}
	if req == nil {
		req = &dto.ListLeadsRequest{}
	}
	if s := strings.TrimSpace(req.Status); s != "" {
		filter.Status = &s
	}

	page, perPage, offset := req.Normalize(utils.DefaultPerPage)
	total, err := lf.customerRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("LIST_LEADS_FAILED", "Failed to count customers", err)
	}
	rows, err := lf.customerRepo.ByFilter(ctx, filter, "created_at DESC, id DESC", perPage, offset)
	if err != nil {
		return nil, NewBusinessError("LIST_LEADS_FAILED", "Failed to list customers", err)
	}

	results := make([]dto.LeadDTO, 0, len(rows))
	for _, r := range rows {
		results = append(results, ToLeadDTO(*r))
	}
	return &dto.ListLeadsResponse{
		Results:  results,
		PageInfo: dto.NewPageInfo(total, page, perPage, len(results)),
	}, nil
}

func (lf *LeadFlowImpl) GetLead(ctx context.Context, actor *Principal, id uint) (*dto.LeadDTO, error) {
	lead, err := loadVisibleLead(ctx, lf.customerRepo, actor, id)
	if err != nil {
		return nil, err
	}
	out := ToLeadDTO(*lead)
	return &out, nil
}

// ExportLeads renders every lead into a workbook with one sheet per company
func (lf *LeadFlowImpl) ExportLeads(ctx context.Context, actor *Principal) (string, []byte, error) {
	if !actor.IsAdmin() {
		return "", nil, NewBusinessError("ACCESS_DENIED", "Only admins can export customers", ErrRoleNotAllowed)
	}

	leads, err := lf.customerRepo.ByFilter(ctx, models.CustomerFilter{}, "company_id ASC, id ASC", 0, 0)
	if err != nil {
		return "", nil, NewBusinessError("EXPORT_FAILED", "Failed to load customers", err)
	}
	companies, err := lf.companyRepo.ByFilter(ctx, models.CompanyFilter{}, "id ASC", 0, 0)
	if err != nil {
		return "", nil, NewBusinessError("EXPORT_FAILED", "Failed to load companies", err)
	}
	companyNames := make(map[uint]string, len(companies))
	for _, c := range companies {
		companyNames[c.ID] = c.Name
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	byCompany := make(map[uint][]*models.Customer)
	order := make([]uint, 0)
	for _, l := range leads {
		if _, ok := byCompany[l.CompanyID]; !ok {
			order = append(order, l.CompanyID)
		}
		byCompany[l.CompanyID] = append(byCompany[l.CompanyID], l)
	}

	header := []string{"id", "full_name", "phone_number", "email", "personal_phone_number", "project_id", "status", "is_accepted", "accepted_by_name", "accepted_at", "broadcast_agents", "declined_count", "created_by", "created_by_role", "created_at"}
	if len(order) == 0 {
		_ = xl.SetSheetRow(xl.GetSheetName(0), "A1", &header)
	}

	usedNames := map[string]bool{}
	for i, companyID := range order {
		base := companyNames[companyID]
		if base == "" {
			base = fmt.Sprintf("company_%d", companyID)
		}
		baseName := sanitizeSheetName(base)
		name := baseName
		idx := 1
		for usedNames[name] {
			idx++
			name = truncateSheetName(fmt.Sprintf("%s_%d", baseName, idx))
		}
		usedNames[name] = true
		if i == 0 {
			xl.SetSheetName(xl.GetSheetName(0), name)
		} else {
			_, _ = xl.NewSheet(name)
		}

		_ = xl.SetSheetRow(name, "A1", &header)
		for ri, l := range byCompany[companyID] {
			personal := ""
			if l.PersonalPhoneNumber != nil {
				personal = *l.PersonalPhoneNumber
			}
			acceptedBy := ""
			if l.AcceptedByName != nil {
				acceptedBy = *l.AcceptedByName
			}
			acceptedAt := ""
			if l.AcceptedAt != nil {
				acceptedAt = formatTime(*l.AcceptedAt)
			}
			record := []string{
				strconv.FormatUint(uint64(l.ID), 10),
				l.FullName,
				l.PhoneNumber,
				l.Email,
				personal,
				strconv.FormatUint(uint64(l.ProjectID), 10),
				l.Status,
				strconv.FormatBool(l.IsAccepted),
				acceptedBy,
				acceptedAt,
				strconv.Itoa(len(l.BroadcastedTo)),
				strconv.Itoa(len(l.DeclinedBy)),
				l.CreatedByName,
				l.CreatedByRole,
				formatTime(l.CreatedAt),
			}
			cellRef, _ := excelize.CoordinatesToCellName(1, ri+2)
			_ = xl.SetSheetRow(name, cellRef, &record)
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	filename := fmt.Sprintf("customers_%s.xlsx", utils.UTCNow().Format("20060102_150405"))
	return filename, buf.Bytes(), nil
}

// leadFields are the caller supplied attributes of a new lead
type leadFields struct {
	FullName            string
	PhoneNumber         string
	Email               string
	PersonalPhoneNumber *string
	ProjectID           uint
}

// leadWriter is the single create path shared by direct creation and link redemption.
// It must run inside a transaction.
type leadWriter struct {
	customerRepo  repository.CustomerRepository
	projectRepo   repository.ProjectRepository
	companyRepo   repository.CompanyRepository
	userRepo      repository.UserRepository
	associateRepo repository.AssociateUserRepository
}

func newLeadWriter(
	customerRepo repository.CustomerRepository,
	projectRepo repository.ProjectRepository,
	companyRepo repository.CompanyRepository,
	userRepo repository.UserRepository,
	associateRepo repository.AssociateUserRepository,
) *leadWriter {
	return &leadWriter{
		customerRepo:  customerRepo,
		projectRepo:   projectRepo,
		companyRepo:   companyRepo,
		userRepo:      userRepo,
		associateRepo: associateRepo,
	}
}

func (w *leadWriter) validate(f *leadFields) error {
	f.FullName = strings.TrimSpace(f.FullName)
	f.Email = utils.NormalizeEmail(f.Email)
	f.PhoneNumber = strings.TrimSpace(f.PhoneNumber)

	if len(f.FullName) < 2 {
		return NewBusinessError("LEAD_VALIDATION_FAILED", "Full name must be at least 2 characters", ErrValidation)
	}
	if !utils.IsValidLeadPhone(f.PhoneNumber) {
		return NewBusinessError("LEAD_VALIDATION_FAILED", "Phone number must be 10 digits starting with 6-9", ErrValidation)
	}
	if f.PersonalPhoneNumber != nil {
		p := strings.TrimSpace(*f.PersonalPhoneNumber)
		if p == "" {
			f.PersonalPhoneNumber = nil
		} else if !utils.IsValidLeadPhone(p) {
			return NewBusinessError("LEAD_VALIDATION_FAILED", "Personal phone number must be 10 digits starting with 6-9", ErrValidation)
		} else {
			f.PersonalPhoneNumber = &p
		}
	}
	if f.Email == "" || !strings.Contains(f.Email, "@") {
		return NewBusinessError("LEAD_VALIDATION_FAILED", "A valid email is required", ErrValidation)
	}
	if f.ProjectID == 0 {
		return NewBusinessError("LEAD_VALIDATION_FAILED", "Project is required", ErrValidation)
	}
	return nil
}

func (w *leadWriter) create(ctx context.Context, creator *Principal, companyID uint, f leadFields) (*models.Customer, error) {
	if err := w.validate(&f); err != nil {
		return nil, err
	}

	existing, err := w.customerRepo.ByEmailOrPhone(ctx, f.Email, f.PhoneNumber)
	if err != nil {
		return nil, NewBusinessError("LEAD_LOOKUP_FAILED", "Failed to check existing customers", err)
	}
	if existing != nil {
		return nil, NewBusinessError("DUPLICATE_CUSTOMER", "Customer with this phone number or email already exists", ErrDuplicateLead)
	}

	project, err := w.projectRepo.ByID(ctx, f.ProjectID)
	if err != nil {
		return nil, NewBusinessError("PROJECT_LOOKUP_FAILED", "Failed to lookup project", err)
	}
	if project == nil {
		return nil, NewBusinessError("PROJECT_NOT_FOUND", "Project not found", ErrProjectNotFound)
	}

	company, err := w.companyRepo.LiveByID(ctx, companyID)
	if err != nil {
		return nil, NewBusinessError("COMPANY_LOOKUP_FAILED", "Failed to lookup company", err)
	}
	if company == nil {
		return nil, NewBusinessError("COMPANY_NOT_FOUND", "Company not found", ErrCompanyNotFound)
	}

	agents, err := activeAgentIDs(ctx, w.userRepo, w.associateRepo, company.ID)
	if err != nil {
		return nil, NewBusinessError("AGENT_LOOKUP_FAILED", "Failed to list company agents", err)
	}
	broadcastTo := make([]string, 0, len(agents))
	for _, a := range agents {
		broadcastTo = append(broadcastTo, a.String())
	}

	lead := &models.Customer{
		FullName:            f.FullName,
		PhoneNumber:         f.PhoneNumber,
		Email:               f.Email,
		PersonalPhoneNumber: f.PersonalPhoneNumber,
		ProjectID:           project.ID,
		CompanyID:           company.ID,
		Status:              utils.LeadStatusNew,
		IsAccepted:          false,
		IsBroadcasted:       true,
		BroadcastedTo:       broadcastTo,
		DeclinedBy:          []string{},
		CreatedByID:         creator.ID,
		CreatedByName:       creator.Name,
		CreatedByRole:       creator.Role,
	}
	if err := w.customerRepo.Save(ctx, lead); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, NewBusinessError("DUPLICATE_CUSTOMER", "Customer with this phone number or email already exists", ErrDuplicateLead)
		}
		return nil, NewBusinessError("LEAD_CREATE_FAILED", "Failed to create customer", err)
	}
	return lead, nil
}

// activeAgentIDs lists active agents of a company across primary and associate users
func activeAgentIDs(ctx context.Context, userRepo repository.UserRepository, associateRepo repository.AssociateUserRepository, companyID uint) ([]uuid.UUID, error) {
	users, err := userRepo.ListActiveAgents(ctx, companyID)
	if err != nil {
		return nil, err
	}
	associates, err := associateRepo.ListActiveAgents(ctx, companyID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(users)+len(associates))
	for _, u := range users {
		ids = append(ids, u.UUID)
	}
	for _, a := range associates {
		ids = append(ids, a.UUID)
	}
	return ids, nil
}

func notifyLeadCreated(ctx context.Context, notifier services.NotificationService, lead *models.Customer, creator *Principal) {
	if notifier == nil {
		return
	}
	notifier.NotifyCompany(ctx, lead.CompanyID, dto.EventLeadCreated, dto.LeadCreatedEvent{
		LeadID:    lead.ID,
		CompanyID: lead.CompanyID,
		CreatedBy: toActorDTO(creator),
	})
}

// visibilityFilter restricts lead queries to what the actor may see
func visibilityFilter(actor *Principal) (models.CustomerFilter, error) {
	var filter models.CustomerFilter
	switch {
	case actor.IsAdmin():
	case actor.IsChannelPartner():
		id := actor.ID
		filter.CreatedByID = &id
	case actor.IsAgent():
		id := actor.ID
		filter.AssignedTo = &id
	default:
		return filter, NewBusinessError("ACCESS_DENIED", "Access denied. Unauthorized role", ErrRoleNotAllowed)
	}
	return filter, nil
}

// canViewLead mirrors visibilityFilter for a single loaded lead
func canViewLead(actor *Principal, lead *models.Customer) bool {
	switch {
	case actor.IsAdmin():
		return true
	case actor.IsChannelPartner():
		return lead.CreatedByID == actor.ID
	case actor.IsAgent():
		return lead.IsAcceptedBy(actor.ID) || lead.IsBroadcastedTo(actor.ID)
	}
	return false
}

func loadLead(ctx context.Context, repo repository.CustomerRepository, id uint) (*models.Customer, error) {
	if id == 0 {
		return nil, NewBusinessError("INVALID_CUSTOMER_ID", "Invalid customer ID", ErrInvalidLeadID)
	}
	lead, err := repo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("LEAD_LOOKUP_FAILED", "Failed to lookup customer", err)
	}
	if lead == nil {
		return nil, NewBusinessError("CUSTOMER_NOT_FOUND", "Customer not found", ErrLeadNotFound)
	}
	return lead, nil
}

func loadVisibleLead(ctx context.Context, repo repository.CustomerRepository, actor *Principal, id uint) (*models.Customer, error) {
	if actor == nil {
		return nil, NewBusinessError("ACCESS_DENIED", "Access denied", ErrRoleNotAllowed)
	}
	lead, err := loadLead(ctx, repo, id)
	if err != nil {
		return nil, err
	}
	if !canViewLead(actor, lead) {
		return nil, NewBusinessError("ACCESS_DENIED", "Access denied to this customer", ErrLeadAccessDenied)
	}
	return lead, nil
}

func sanitizeSheetName(name string) string {
	// Excel sheet names cannot contain: : \\ / ? * [ ] and must be <= 31 chars
	replacer := strings.NewReplacer(":", "_", "\\", "_", "/", "_", "?", "_", "*", "_", "[", "_", "]", "_")
	safe := replacer.Replace(name)
	return truncateSheetName(strings.TrimSpace(safe))
}

func truncateSheetName(name string) string {
	if len(name) > 31 {
		return name[:31]
	}
	if name == "" {
		return "Sheet"
	}
	return name
}
