package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/cascade-backflow/leadroute/internal/model"
)

// batchRequest is the score-batch body. Leads stays raw so a non-array
// value can be reported as a client error of its own.
type batchRequest struct {
	Leads   json.RawMessage `json:"leads"`
	Options batchOptionsDTO `json:"options"`
	Save    bool            `json:"save"`
}

type batchOptionsDTO struct {
	MinScore          *int   `json:"minScore" validate:"omitempty,min=0,max=100"`
	MaxResults        int    `json:"maxResults" validate:"min=0"`
	TemperatureFilter string `json:"temperatureFilter" validate:"omitempty,oneof=HOT WARM COLD hot warm cold"`
	SortBy            string `json:"sortBy" validate:"omitempty,oneof=score distance value urgency"`
	Concurrency       int    `json:"concurrency" validate:"min=0,max=64"`
}

func (o batchOptionsDTO) toModel() model.BatchOptions {
	return model.BatchOptions{
		MinScore:          o.MinScore,
		MaxResults:        o.MaxResults,
		TemperatureFilter: model.Temperature(strings.ToUpper(o.TemperatureFilter)),
		SortBy:            model.SortBy(o.SortBy),
		Concurrency:       o.Concurrency,
	}
}

type batchResponse struct {
	Stats model.BatchStats   `json:"stats"`
	Leads []model.ScoredLead `json:"leads"`
	RunID string             `json:"runId,omitempty"`
}

// scoreRequest carries the minimal fields of a single lead. Coordinates
// are accepted as lat/lng or latitude/longitude.
type scoreRequest struct {
	BusinessName  string             `json:"businessName" validate:"required"`
	Address       string             `json:"address" validate:"required"`
	Lat           *float64           `json:"lat" validate:"required,latitude"`
	Lng           *float64           `json:"lng" validate:"required,longitude"`
	Latitude      *float64           `json:"latitude"`
	Longitude     *float64           `json:"longitude"`
	FacilityType  string             `json:"facilityType"`
	DaysPastDue   *int               `json:"daysPastDue"`
	DeviceCount   *int               `json:"deviceCount" validate:"omitempty,min=0"`
	BusinessSize  model.BusinessSize `json:"businessSize" validate:"omitempty,oneof=small medium large enterprise"`
	Phone         string             `json:"phone"`
	Email         string             `json:"email"`
	Website       string             `json:"website"`
	ContactPerson string             `json:"contactPerson"`
	Source        string             `json:"source"`
	ID            string             `json:"id"`
}

func (r *scoreRequest) coalesce() {
	if r.Lat == nil {
		r.Lat = r.Latitude
	}
	if r.Lng == nil {
		r.Lng = r.Longitude
	}
	r.BusinessName = strings.TrimSpace(r.BusinessName)
	r.Address = strings.TrimSpace(r.Address)
}

func (r *scoreRequest) toModel() model.RawLead {
	return model.RawLead{
		ID:            r.ID,
		BusinessName:  r.BusinessName,
		Address:       r.Address,
		Phone:         r.Phone,
		Email:         r.Email,
		Website:       r.Website,
		FacilityType:  r.FacilityType,
		DeviceCount:   r.DeviceCount,
		DaysPastDue:   r.DaysPastDue,
		Latitude:      r.Lat,
		Longitude:     r.Lng,
		ContactPerson: r.ContactPerson,
		BusinessSize:  r.BusinessSize,
		Source:        r.Source,
	}
}

type scoreResponse struct {
	Lead     *model.ScoredLead `json:"lead"`
	Analysis *model.Analysis   `json:"analysis"`
}

// leadQuery holds the query parameters of the run leads listing.
type leadQuery struct {
	Temperature string `validate:"omitempty,oneof=HOT WARM COLD"`
	Cluster     string `validate:"omitempty,oneof=North South East West Central"`
	MinScore    int    `validate:"min=0,max=100"`
	Limit       int    `validate:"min=0,max=10000"`
	Offset      int    `validate:"min=0"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return strings.ToLower(f.Name[:1]) + f.Name[1:]
		}
		return name
	})
	return v
}

// validationDetails renders validator errors as one message per field.
func validationDetails(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	details := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, fieldMessage(fe))
	}
	return details
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "latitude", "longitude":
		return fmt.Sprintf("%s must be a valid %s", fe.Field(), fe.Tag())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
