package ingest

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/nyaruka/phonenumbers"
	"github.com/rotisserie/eris"

	"github.com/cascade-backflow/leadroute/internal/model"
)

// DefaultRegion is used to parse phone numbers without a country code.
const DefaultRegion = "US"

// Canonical lead fields addressable from tabular input.
const (
	fieldID               = "id"
	fieldBusinessName     = "businessname"
	fieldAddress          = "address"
	fieldPhone            = "phone"
	fieldEmail            = "email"
	fieldWebsite          = "website"
	fieldFacilityType     = "facilitytype"
	fieldDeviceCount      = "devicecount"
	fieldLastTestDate     = "lasttestdate"
	fieldTestDueDate      = "testduedate"
	fieldComplianceStatus = "compliancestatus"
	fieldDaysPastDue      = "dayspastdue"
	fieldLatitude         = "latitude"
	fieldLongitude        = "longitude"
	fieldContactPerson    = "contactperson"
	fieldBusinessSize     = "businesssize"
	fieldSource           = "source"
	fieldFoundAt          = "foundat"
)

// headerAliases maps squashed header names to canonical fields.
var headerAliases = map[string]string{
	"id":               fieldID,
	"leadid":           fieldID,
	"businessname":     fieldBusinessName,
	"name":             fieldBusinessName,
	"business":         fieldBusinessName,
	"address":          fieldAddress,
	"phone":            fieldPhone,
	"phonenumber":      fieldPhone,
	"email":            fieldEmail,
	"website":          fieldWebsite,
	"url":              fieldWebsite,
	"facilitytype":     fieldFacilityType,
	"facility":         fieldFacilityType,
	"devicecount":      fieldDeviceCount,
	"devices":          fieldDeviceCount,
	"lasttestdate":     fieldLastTestDate,
	"testduedate":      fieldTestDueDate,
	"compliancestatus": fieldComplianceStatus,
	"dayspastdue":      fieldDaysPastDue,
	"latitude":         fieldLatitude,
	"lat":              fieldLatitude,
	"longitude":        fieldLongitude,
	"lng":              fieldLongitude,
	"lon":              fieldLongitude,
	"contactperson":    fieldContactPerson,
	"contact":          fieldContactPerson,
	"businesssize":     fieldBusinessSize,
	"size":             fieldBusinessSize,
	"source":           fieldSource,
	"foundat":          fieldFoundAt,
}

// columnMap maps canonical field names to column indexes.
type columnMap map[string]int

// squashHeader lower-cases a header and strips separators so that
// "Business Name", "business_name" and "businessName" compare equal.
func squashHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(h)) {
		switch r {
		case ' ', '_', '-', '.', '\uFEFF':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func mapColumns(header []string) columnMap {
	cols := make(columnMap, len(header))
	for i, h := range header {
		field, ok := headerAliases[squashHeader(h)]
		if !ok {
			continue
		}
		if _, dup := cols[field]; !dup {
			cols[field] = i
		}
	}
	return cols
}

func (c columnMap) requireCoordinates() error {
	var missing []string
	if _, ok := c[fieldLatitude]; !ok {
		missing = append(missing, "latitude")
	}
	if _, ok := c[fieldLongitude]; !ok {
		missing = append(missing, "longitude")
	}
	if len(missing) > 0 {
		return eris.Errorf("header is missing required columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c columnMap) get(row []string, field string) string {
	i, ok := c[field]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// lead builds a RawLead from one data row. Unparseable numeric cells are
// treated as absent.
func (c columnMap) lead(row []string, line int) model.RawLead {
	l := model.RawLead{
		ID:               c.get(row, fieldID),
		BusinessName:     c.get(row, fieldBusinessName),
		Address:          c.get(row, fieldAddress),
		Phone:            c.get(row, fieldPhone),
		Email:            c.get(row, fieldEmail),
		Website:          c.get(row, fieldWebsite),
		FacilityType:     c.get(row, fieldFacilityType),
		DeviceCount:      parseOptionalInt(c.get(row, fieldDeviceCount)),
		LastTestDate:     c.get(row, fieldLastTestDate),
		TestDueDate:      c.get(row, fieldTestDueDate),
		ComplianceStatus: c.get(row, fieldComplianceStatus),
		DaysPastDue:      parseOptionalInt(c.get(row, fieldDaysPastDue)),
		Latitude:         parseOptionalFloat(c.get(row, fieldLatitude)),
		Longitude:        parseOptionalFloat(c.get(row, fieldLongitude)),
		ContactPerson:    c.get(row, fieldContactPerson),
		BusinessSize:     model.BusinessSize(c.get(row, fieldBusinessSize)),
		Source:           c.get(row, fieldSource),
		FoundAt:          c.get(row, fieldFoundAt),
	}
	normalizeLead(&l, line)
	return l
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func parseOptionalInt(s string) *int {
	if s == "" {
		return nil
	}
	if v, err := strconv.Atoi(s); err == nil {
		return &v
	}
	// Spreadsheets often store whole numbers as "12.0".
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return nil
	}
	v := int(f)
	return &v
}

func parseOptionalFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// normalizeLead trims display strings, formats the phone number and fills
// a positional ID when the source supplied none.
func normalizeLead(l *model.RawLead, line int) {
	l.ID = strings.TrimSpace(l.ID)
	if l.ID == "" {
		l.ID = fmt.Sprintf("row-%d", line)
	}
	l.BusinessName = strings.TrimSpace(l.BusinessName)
	l.Address = strings.TrimSpace(l.Address)
	l.Email = strings.ToLower(strings.TrimSpace(l.Email))
	l.Website = strings.TrimSpace(l.Website)
	l.Phone = NormalizePhone(l.Phone)
	l.BusinessSize = model.BusinessSize(strings.ToLower(strings.TrimSpace(string(l.BusinessSize))))
	l.Source = strings.TrimSpace(l.Source)
}

// NormalizePhone formats a phone number to E.164. If parsing fails, it
// returns the trimmed input.
func NormalizePhone(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}

	number, err := phonenumbers.Parse(trimmed, DefaultRegion)
	if err != nil {
		return trimmed
	}
	if !phonenumbers.IsValidNumber(number) {
		return trimmed
	}
	return phonenumbers.Format(number, phonenumbers.E164)
}
