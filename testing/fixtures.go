package testing

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/amirphl/leadflow/models"
	"github.com/amirphl/leadflow/utils"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// TestPassword is the plaintext behind every fixture password hash
const TestPassword = "TestPass123!"

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

func hashTestPassword() (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// randomMobile returns a ten digit number starting with 9
func randomMobile() string {
	return fmt.Sprintf("9%09d", rand.Intn(1000000000))
}

// CreateTestCompany creates a live company with a unique name and code
func (tf *TestFixtures) CreateTestCompany() (*models.Company, error) {
	n := rand.Intn(100000000)
	company := &models.Company{
		Name:        fmt.Sprintf("Test Realty %d", n),
		CompanyCode: utils.SequentialCode("CMP", int64(n)),
	}
	if err := tf.DB.DB.Create(company).Error; err != nil {
		return nil, fmt.Errorf("failed to create test company: %w", err)
	}
	return company, nil
}

// CreateTestUser creates an active primary user in the company
func (tf *TestFixtures) CreateTestUser(company *models.Company, role string) (*models.User, error) {
	hash, err := hashTestPassword()
	if err != nil {
		return nil, err
	}
	mobile := randomMobile()
	user := &models.User{
		FullName:     "Test " + role,
		Email:        fmt.Sprintf("%s.%s@example.com", role, mobile),
		PhoneNumber:  mobile,
		Location:     "Pune",
		CompanyID:    company.ID,
		CompanyName:  company.Name,
		Role:         role,
		Status:       models.UserStatusActive,
		PasswordHash: hash,
	}
	if err := tf.DB.DB.Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create test user: %w", err)
	}
	return user, nil
}

// CreateTestAssociate creates an active associate bound to the creator's company
func (tf *TestFixtures) CreateTestAssociate(creator *models.User, role string) (*models.AssociateUser, error) {
	hash, err := hashTestPassword()
	if err != nil {
		return nil, err
	}
	mobile := randomMobile()
	associate := &models.AssociateUser{
		FullName:      "Associate " + role,
		Email:         fmt.Sprintf("associate.%s@example.com", mobile),
		PhoneNumber:   mobile,
		CompanyID:     creator.CompanyID,
		CompanyName:   creator.CompanyName,
		Role:          role,
		Status:        models.UserStatusActive,
		PasswordHash:  hash,
		CreatedByID:   creator.UUID,
		CreatedByName: creator.FullName,
	}
	if err := tf.DB.DB.Create(associate).Error; err != nil {
		return nil, fmt.Errorf("failed to create test associate: %w", err)
	}
	return associate, nil
}

// CreateTestProject creates a project owned by the given principal
func (tf *TestFixtures) CreateTestProject(createdBy uuid.UUID) (*models.Project, error) {
	n := rand.Intn(100000000)
	project := &models.Project{
		Title:         fmt.Sprintf("Skyline Towers %d", n),
		Location:      "Mumbai",
		MinPrice:      5000000,
		MaxPrice:      9000000,
		ProjectCode:   utils.SequentialCode("PRJ", int64(n)),
		CreatedByID:   createdBy,
		CreatedByRole: models.RoleAdmin,
	}
	if err := tf.DB.DB.Create(project).Error; err != nil {
		return nil, fmt.Errorf("failed to create test project: %w", err)
	}
	return project, nil
}

// CreateTestStatus creates a live master status
func (tf *TestFixtures) CreateTestStatus(name string) (*models.MasterStatus, error) {
	status := &models.MasterStatus{Name: name}
	if err := tf.DB.DB.Create(status).Error; err != nil {
		return nil, fmt.Errorf("failed to create test status %s: %w", name, err)
	}
	return status, nil
}

// CreateTestLead creates an unaccepted lead raised by creator against project
func (tf *TestFixtures) CreateTestLead(creator *models.User, project *models.Project) (*models.Customer, error) {
	mobile := fmt.Sprintf("8%09d", rand.Intn(1000000000))
	lead := &models.Customer{
		FullName:      "Lead " + mobile,
		PhoneNumber:   mobile,
		Email:         fmt.Sprintf("lead.%s@example.com", mobile),
		ProjectID:     project.ID,
		CompanyID:     creator.CompanyID,
		CreatedByID:   creator.UUID,
		CreatedByName: creator.FullName,
		CreatedByRole: creator.Role,
	}
	if err := tf.DB.DB.Create(lead).Error; err != nil {
		return nil, fmt.Errorf("failed to create test lead: %w", err)
	}
	return lead, nil
}

// CreateTestCustomerLink creates a customer registration link that expires after ttl.
// A negative ttl yields an already expired link.
func (tf *TestFixtures) CreateTestCustomerLink(creator *models.User, ttl time.Duration) (*models.CustomerLink, error) {
	code, err := utils.RandomCode(10)
	if err != nil {
		return nil, err
	}
	link := &models.CustomerLink{
		Code:          code,
		CreatedByID:   creator.UUID,
		CreatedByName: creator.FullName,
		CreatedByRole: creator.Role,
		ExpiresAt:     utils.UTCNowAdd(ttl),
	}
	if err := tf.DB.DB.Create(link).Error; err != nil {
		return nil, fmt.Errorf("failed to create test customer link: %w", err)
	}
	return link, nil
}
