package mcp

func prop(typ, description string) map[string]interface{} {
	return map[string]interface{}{"type": typ, "description": description}
}

func objectSchema(properties map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func toolDefinitions() []Tool {
	return []Tool{
		{
			Name:        "list_medications",
			Description: "List medications, optionally filtered by a name/purpose search or to those with an active schedule",
			InputSchema: objectSchema(map[string]interface{}{
				"search":      prop("string", "Case-insensitive substring matched against name or purpose"),
				"active_only": prop("boolean", "Only medications that have at least one active schedule"),
			}),
		},
		{
			Name:        "get_medication",
			Description: "Get a medication with its schedules and the 10 most recent intake logs",
			InputSchema: objectSchema(map[string]interface{}{
				"medication_id": prop("integer", "Medication ID"),
			}, "medication_id"),
		},
		{
			Name:        "add_medication",
			Description: "Add a medication. Remaining quantity defaults to the total quantity",
			InputSchema: objectSchema(map[string]interface{}{
				"name":               prop("string", "Medication name"),
				"dosage":             prop("string", "Dosage, e.g. 10mg"),
				"form":               prop("string", "Form, e.g. tablet, capsule"),
				"purpose":            prop("string", "What the medication is for"),
				"prescribing_doctor": prop("string", "Prescribing doctor"),
				"prescription_date":  prop("string", "Prescription date (YYYY-MM-DD)"),
				"side_effects":       prop("string", "Known side effects"),
				"notes":              prop("string", "Free-form notes (markdown)"),
				"total_quantity":     prop("number", "Total quantity prescribed"),
				"remaining_quantity": prop("number", "Remaining quantity"),
			}, "name", "dosage", "form"),
		},
		{
			Name:        "add_schedule",
			Description: "Add a dosing schedule for a medication",
			InputSchema: objectSchema(map[string]interface{}{
				"medication_id":        prop("integer", "Medication ID"),
				"time":                 prop("string", "Time of day (HH:MM)"),
				"frequency":            prop("string", "daily, weekly or as_needed"),
				"days_of_week":         prop("string", "Comma-separated days for weekly schedules, e.g. Mon,Wed,Fri"),
				"start_date":           prop("string", "Start date (YYYY-MM-DD)"),
				"end_date":             prop("string", "Optional end date (YYYY-MM-DD)"),
				"food_timing":          prop("string", "before_food, after_food or none"),
				"special_instructions": prop("string", "Special instructions"),
			}, "medication_id", "time", "frequency", "start_date"),
		},
		{
			Name:        "log_intake",
			Description: "Record a dose as taken, missed or skipped. A taken dose decrements the remaining quantity",
			InputSchema: objectSchema(map[string]interface{}{
				"medication_id": prop("integer", "Medication ID"),
				"status":        prop("string", "taken, missed or skipped"),
				"schedule_id":   prop("integer", "Schedule the dose belongs to"),
				"notes":         prop("string", "Notes"),
				"taken_at":      prop("string", "When the dose was taken (RFC3339), defaults to now"),
			}, "medication_id", "status"),
		},
		{
			Name:        "get_today_schedule",
			Description: "Get today's doses with their status (taken, missed, skipped or pending)",
			InputSchema: objectSchema(map[string]interface{}{}),
		},
		{
			Name:        "get_refill_alerts",
			Description: "List medications whose remaining quantity is at or below the threshold",
			InputSchema: objectSchema(map[string]interface{}{
				"threshold": prop("number", "Refill threshold (default 7)"),
			}),
		},
		{
			Name:        "get_adherence_stats",
			Description: "Adherence per medication over a trailing window",
			InputSchema: objectSchema(map[string]interface{}{
				"days":          prop("integer", "Window length in days (default 30)"),
				"medication_id": prop("integer", "Restrict to one medication"),
			}),
		},
		{
			Name:        "update_quantity",
			Description: "Adjust the remaining quantity. Set is_refill to count a refill",
			InputSchema: objectSchema(map[string]interface{}{
				"medication_id":   prop("integer", "Medication ID"),
				"quantity_change": prop("number", "Signed change applied to the remaining quantity"),
				"is_refill":       prop("boolean", "Whether this change is a refill"),
			}, "medication_id", "quantity_change"),
		},
		{
			Name:        "list_interactions",
			Description: "List known drug interactions, optionally for one medication",
			InputSchema: objectSchema(map[string]interface{}{
				"medication_id": prop("integer", "Medication ID"),
			}),
		},
	}
}
