package doctor

import (
	"strings"
	"time"

	"github.com/medbook/medbook/internal/platform/apperr"
)

// Specialization is the closed set of doctor specialities.
type Specialization string

const (
	SpecCovidDuty             Specialization = "covid_duty"
	SpecDistrict              Specialization = "district"
	SpecTherapist             Specialization = "therapist"
	SpecCertificates          Specialization = "certificates"
	SpecSurgeon               Specialization = "surgeon"
	SpecOphthalmologist       Specialization = "ophthalmologist"
	SpecOtorhinolaryngologist Specialization = "otorhinolaryngologist"
	SpecUrologist             Specialization = "urologist"
	SpecDispensary            Specialization = "dispensary"
	SpecVaccination           Specialization = "vaccination"
)

var specializationLabels = map[Specialization]string{
	SpecCovidDuty:             "Respiratory infection duty doctor",
	SpecDistrict:              "District doctor",
	SpecTherapist:             "Therapist",
	SpecCertificates:          "Certificates and referrals office",
	SpecSurgeon:               "Surgeon",
	SpecOphthalmologist:       "Ophthalmologist",
	SpecOtorhinolaryngologist: "Otorhinolaryngologist",
	SpecUrologist:             "Urologist",
	SpecDispensary:            "Preventive check-up",
	SpecVaccination:           "Vaccination office",
}

// specializationOrder fixes the listing order.
var specializationOrder = []Specialization{
	SpecCovidDuty, SpecDistrict, SpecTherapist, SpecCertificates, SpecSurgeon,
	SpecOphthalmologist, SpecOtorhinolaryngologist, SpecUrologist, SpecDispensary, SpecVaccination,
}

func (s Specialization) Valid() bool {
	_, ok := specializationLabels[s]
	return ok
}

func (s Specialization) Label() string {
	return specializationLabels[s]
}

// SpecializationInfo is one entry of the specialization listing.
type SpecializationInfo struct {
	Code  Specialization `json:"code"`
	Label string         `json:"label"`
}

// Specializations lists every specialization with its display label.
func Specializations() []SpecializationInfo {
	out := make([]SpecializationInfo, 0, len(specializationOrder))
	for _, s := range specializationOrder {
		out = append(out, SpecializationInfo{Code: s, Label: s.Label()})
	}
	return out
}

type Doctor struct {
	ID             int64          `json:"id"`
	FirstName      string         `json:"first_name"`
	Surname        string         `json:"surname"`
	MiddleName     string         `json:"middle_name"`
	Specialization Specialization `json:"specialization"`
	Description    string         `json:"description"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

type CreateInput struct {
	FirstName      string         `json:"first_name"`
	Surname        string         `json:"surname"`
	MiddleName     string         `json:"middle_name"`
	Specialization Specialization `json:"specialization"`
	Description    string         `json:"description"`
}

func (in *CreateInput) normalize() {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.Surname = strings.TrimSpace(in.Surname)
	in.MiddleName = strings.TrimSpace(in.MiddleName)
	in.Description = strings.TrimSpace(in.Description)
}

func (in CreateInput) Validate() error {
	switch {
	case in.FirstName == "":
		return apperr.BadRequest("first_name is required")
	case in.Surname == "":
		return apperr.BadRequest("surname is required")
	case in.MiddleName == "":
		return apperr.BadRequest("middle_name is required")
	case !in.Specialization.Valid():
		return apperr.BadRequest("invalid specialization: %q", in.Specialization)
	}
	return nil
}

// UpdateInput carries the mutable doctor fields; nil means unchanged.
type UpdateInput struct {
	Specialization *Specialization `json:"specialization"`
	Description    *string         `json:"description"`
}

func (in UpdateInput) Validate() error {
	if in.Specialization != nil && !in.Specialization.Valid() {
		return apperr.BadRequest("invalid specialization: %q", *in.Specialization)
	}
	return nil
}

// Filter selects doctors by exact field match; nil fields are ignored.
type Filter struct {
	FirstName      *string
	Surname        *string
	MiddleName     *string
	Specialization *Specialization
}
