package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/reportvault/internal/common"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// CreateReportRequest is the input of ReportService.CreateReport.
type CreateReportRequest struct {
	OwnerID    string `validate:"required"`
	Content    string `validate:"required,max=1048576"`
	Passphrase string `validate:"required"`
}

// UpdateReportRequest is the input of ReportService.UpdateReport.
type UpdateReportRequest struct {
	ReportID   string `validate:"required,uuid"`
	OwnerID    string `validate:"required"`
	Content    string `validate:"required,max=1048576"`
	Passphrase string `validate:"required"`
}

// SubmitMatchRequest is the input of ReportService.SubmitMatch.
type SubmitMatchRequest struct {
	ReportID   string `validate:"required,uuid"`
	OwnerID    string `validate:"required"`
	Contact    string `validate:"required,email"`
	Identifier string `validate:"required,max=512"`
	Content    string `validate:"max=65536"`
}

func validateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	fields := make([]string, len(errs))
	for i, e := range errs {
		fields[i] = fmt.Sprintf("%s failed %q", e.Field(), e.Tag())
	}
	return fmt.Errorf("%w: %s", common.ErrValidation, strings.Join(fields, ", "))
}

// validateReportID rejects IDs that cannot name a stored report before they
// reach the uuid column.
func validateReportID(id string) error {
	err := validate.Var(id, "required,uuid")
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if errors.As(err, &errs) && len(errs) > 0 {
		return fmt.Errorf("%w: ReportID failed %q", common.ErrValidation, errs[0].Tag())
	}
	return fmt.Errorf("%w: %v", common.ErrValidation, err)
}

// NormalizeIdentifier canonicalizes a perpetrator identifier so that
// cosmetic differences in case or surrounding space still match.
func NormalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}
