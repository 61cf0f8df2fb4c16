package core

// ExpenseSchema returns the JSON schema descriptor handed to the completion
// service for schema-constrained generation. The response object nests the
// record under an "expense" key so partial snapshots stay addressable while
// streaming.
func ExpenseSchema() map[string]any {
	categories := make([]string, 0, len(Categories()))
	for _, c := range Categories() {
		categories = append(categories, string(c))
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"expense"},
		"properties": map[string]any{
			"expense": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []string{"category", "amount", "date", "details", "participants"},
				"properties": map[string]any{
					"category": map[string]any{
						"type":        "string",
						"enum":        categories,
						"description": "Category of the expense.",
					},
					"amount": map[string]any{
						"type":        "number",
						"description": "Amount of the expense in USD.",
					},
					"date": map[string]any{
						"type":        "string",
						"description": "Date of the expense, in dd-MMM format.",
					},
					"details": map[string]any{
						"type":        "string",
						"description": "Name of the product or service.",
					},
					"participants": map[string]any{
						"type":        "string",
						"description": "Participants in the expense, as comma-separated text.",
					},
				},
			},
		},
	}
}
