package httptransport

import (
	"strings"
	"time"

	contracts "attest/contracts/ledger"
	"attest/internal/workflow"
	"attest/pkg/validation"
)

// HTTP request DTOs. These carry JSON and validation tags only; they are
// converted to workflow inputs before any business logic runs.

type registerIdentityRequest struct {
	Address string `json:"address" validate:"required,notblank"`
	Role    string `json:"role" validate:"required,oneof=student institution employer"`
}

func (r *registerIdentityRequest) Normalize() {
	r.Address = strings.TrimSpace(r.Address)
	r.Role = strings.ToLower(strings.TrimSpace(r.Role))
}

func (r *registerIdentityRequest) Validate() error {
	r.Normalize()
	return validation.Validate(r)
}

type updateRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=none student institution employer admin"`
}

func (r *updateRoleRequest) Validate() error {
	r.Role = strings.ToLower(strings.TrimSpace(r.Role))
	return validation.Validate(r)
}

type updateProfileRequest struct {
	Name        string `json:"name" validate:"required,notblank"`
	Ministry    string `json:"ministry,omitempty"`
	University  string `json:"university,omitempty"`
	College     string `json:"college,omitempty"`
	Description string `json:"description,omitempty"`
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
	Phone       string `json:"phone,omitempty"`
	LogoRef     string `json:"logo_ref,omitempty"`
}

func (r *updateProfileRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	return validation.Validate(r)
}

func (r *updateProfileRequest) toProfile() workflow.InstitutionProfile {
	return workflow.InstitutionProfile{
		Name:        r.Name,
		Ministry:    r.Ministry,
		University:  r.University,
		College:     r.College,
		Description: r.Description,
		Email:       r.Email,
		Phone:       r.Phone,
		LogoRef:     r.LogoRef,
	}
}

type createExamRequest struct {
	Title       string `json:"title" validate:"required,notblank"`
	Description string `json:"description,omitempty"`
	Date        int64  `json:"date" validate:"required"` // unix seconds
	DurationMin int    `json:"duration_min" validate:"required,gte=1"`
	Material    []byte `json:"material,omitempty"` // base64 in JSON
}

func (r *createExamRequest) Validate() error {
	r.Title = strings.TrimSpace(r.Title)
	return validation.Validate(r)
}

func (r *createExamRequest) toInput() workflow.CreateExamInput {
	return workflow.CreateExamInput{
		Title:       r.Title,
		Description: r.Description,
		Date:        time.Unix(r.Date, 0),
		DurationMin: r.DurationMin,
		Material:    r.Material,
	}
}

type transitionExamRequest struct {
	Status string `json:"status" validate:"required,oneof=upcoming in_progress completed"`
}

func (r *transitionExamRequest) Validate() error {
	r.Status = strings.ToLower(strings.TrimSpace(r.Status))
	return validation.Validate(r)
}

type enrollStudentsRequest struct {
	Students []string `json:"students" validate:"required,min=1,dive,required"`
}

func (r *enrollStudentsRequest) Validate() error {
	for i, s := range r.Students {
		r.Students[i] = strings.TrimSpace(s)
	}
	return validation.Validate(r)
}

type submitResultRequest struct {
	Student string `json:"student" validate:"required,notblank"`
	Score   int    `json:"score" validate:"gte=0,lte=100"`
	Grade   string `json:"grade" validate:"required,oneof=A B C D F"`
	Notes   string `json:"notes,omitempty"`
}

func (r *submitResultRequest) Validate() error {
	r.Student = strings.TrimSpace(r.Student)
	r.Grade = strings.ToUpper(strings.TrimSpace(r.Grade))
	return validation.Validate(r)
}

func (r *submitResultRequest) toInput() workflow.ResultInput {
	return workflow.ResultInput{
		Student: r.Student,
		Score:   r.Score,
		Grade:   contracts.Grade(r.Grade),
		Notes:   r.Notes,
	}
}

type issueCertificateRequest struct {
	Student     string         `json:"student" validate:"required,notblank"`
	StudentName string         `json:"student_name" validate:"required,notblank"`
	Degree      string         `json:"degree" validate:"required,notblank"`
	Grade       string         `json:"grade,omitempty"`
	Scores      map[string]int `json:"scores,omitempty"`
}

func (r *issueCertificateRequest) Validate() error {
	r.Student = strings.TrimSpace(r.Student)
	r.StudentName = strings.TrimSpace(r.StudentName)
	r.Degree = strings.TrimSpace(r.Degree)
	return validation.Validate(r)
}

func (r *issueCertificateRequest) toMetadata() workflow.CertificateMetadata {
	return workflow.CertificateMetadata{
		Student:     r.Student,
		StudentName: r.StudentName,
		Degree:      r.Degree,
		Grade:       r.Grade,
		Scores:      r.Scores,
	}
}
