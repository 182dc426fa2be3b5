package scorer

import (
	"fmt"
	"strings"

	"github.com/cascade-backflow/leadroute/internal/model"
)

// Outreach timeframes.
const (
	Timeframe24h    = "24h"
	Timeframe48h    = "48h"
	Timeframe1Week  = "1week"
	Timeframe2Weeks = "2weeks"
)

// PlanAction picks the contact channel, timeframe, message and follow-up
// cadence for a lead. Temperature alone selects the branch.
func PlanAction(temperature model.Temperature, priority model.Priority, lead *model.RawLead) (model.ActionPlan, error) {
	name := strings.TrimSpace(lead.BusinessName)
	if name == "" {
		name = "this facility"
	}

	switch temperature {
	case model.TemperatureHot:
		method := model.ContactVisit
		if present(lead.Phone) {
			method = model.ContactPhone
		}
		timeframe := Timeframe48h
		if priority == model.PriorityUrgent {
			timeframe = Timeframe24h
		}
		return model.ActionPlan{
			ContactMethod: method,
			Timeframe:     timeframe,
			Message:       hotMessage(name, lead.DaysPastDue),
			FollowUpSchedule: []model.FollowUp{
				{AfterDays: 1, Action: "Call to schedule an expedited backflow test"},
				{AfterDays: 3, Action: "Site visit with compliance paperwork"},
				{AfterDays: 7, Action: "Follow-up email confirming the service date"},
			},
		}, nil

	case model.TemperatureWarm:
		method := model.ContactPhone
		if present(lead.Email) {
			method = model.ContactEmail
		}
		timeframe := Timeframe1Week
		if priority == model.PriorityHigh {
			timeframe = Timeframe48h
		}
		return model.ActionPlan{
			ContactMethod: method,
			Timeframe:     timeframe,
			Message: fmt.Sprintf("Hi %s, annual backflow testing keeps your facility in compliance "+
				"with state and water district requirements. We can schedule your test at a time that works for you.", name),
			FollowUpSchedule: []model.FollowUp{
				{AfterDays: 7, Action: "Follow-up email with testing options"},
				{AfterDays: 14, Action: "Phone call to answer compliance questions"},
				{AfterDays: 28, Action: "Reminder email with seasonal availability"},
			},
		}, nil

	case model.TemperatureCold:
		return model.ActionPlan{
			ContactMethod: model.ContactEmail,
			Timeframe:     Timeframe2Weeks,
			Message: fmt.Sprintf("Share backflow prevention basics and annual testing requirements "+
				"with %s, and offer a free compliance check.", name),
			FollowUpSchedule: []model.FollowUp{
				{AfterDays: 30, Action: "Educational email on cross-connection control"},
				{AfterDays: 90, Action: "Testing season reminder"},
				{AfterDays: 180, Action: "Compliance check-in"},
			},
		}, nil
	}

	return model.ActionPlan{}, invalidInput("scorer: unknown temperature %q", temperature)
}

func hotMessage(name string, daysPastDue *int) string {
	if daysPastDue != nil && *daysPastDue > 0 {
		return fmt.Sprintf("%s is %d days past due on backflow testing. "+
			"Call today to schedule an expedited test before the water purveyor escalates.", name, *daysPastDue)
	}
	return fmt.Sprintf("%s has backflow assemblies that need priority testing. "+
		"Reach out today to get service on the calendar.", name)
}
