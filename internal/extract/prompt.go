// Copyright (c) 2026 Resumora. All rights reserved.
// Author: engineering@resumora.app

package extract

import (
	"fmt"
	"strings"
)

// schemaOutline enumerates the full output shape inside the prompt, so the
// model sees every key it must emit.
const schemaOutline = `{
  "personalInfo": {
    "name": "",
    "email": "",
    "phone": "",
    "location": "",
    "summary": "",
    "aboutMe": ""
  },
  "experience": [
    {
      "title": "",
      "company": "",
      "location": "",
      "startDate": "",
      "endDate": "",
      "description": "",
      "achievements": []
    }
  ],
  "skills": {
    "technical": [],
    "soft": [],
    "languages": []
  },
  "education": [
    {
      "degree": "",
      "institution": "",
      "location": "",
      "graduationDate": "",
      "gpa": "",
      "achievements": []
    }
  ],
  "projects": [
    {
      "name": "",
      "description": "",
      "technologies": [],
      "url": ""
    }
  ],
  "certifications": [
    {
      "name": "",
      "issuer": "",
      "date": "",
      "url": ""
    }
  ]
}`

/*
BuildPrompt assembles the single-pass extraction prompt.

Description:
  The prompt demands exhaustive coverage of the whole document, enumerates
  the complete output schema, carries profession-agnostic guidance so
  non-software resumes extract as richly as software ones, and closes with
  the JSON-only reminder.
*/
func BuildPrompt(cleanedText string) string {
	var prompt strings.Builder

	prompt.WriteString("You are an expert resume analyst. Extract ALL information from the resume below into structured JSON.\n\n")

	prompt.WriteString("Extraction rules:\n")
	prompt.WriteString("- Read the ENTIRE document and extract EVERY work experience, skill, education entry, project, and certification. Do not skip, merge, or summarize entries.\n")
	prompt.WriteString("- \"technical\" skills mean the core expertise of the person's profession, whatever that profession is: knife techniques for a chef, contract drafting for a lawyer, TIG welding for a fabricator, pedagogy for a teacher. Never restrict extraction to software skills.\n")
	prompt.WriteString("- Copy dates as written in the document (\"2020\", \"Mar 2021\", \"2019-2023\").\n")
	prompt.WriteString("- Use \"\" for scalar values the document does not state and [] for lists with no entries. Never output null.\n")
	prompt.WriteString("- Put self-descriptions or objective statements into personalInfo.summary and personal interests or personality notes into personalInfo.aboutMe.\n\n")

	prompt.WriteString("Return a single JSON object with exactly this structure:\n")
	prompt.WriteString(schemaOutline)
	prompt.WriteString("\n\nResume text:\n---\n")
	prompt.WriteString(cleanedText)
	prompt.WriteString("\n---\n\n")

	prompt.WriteString("Respond with valid JSON only. No markdown fences, no explanations, nothing before or after the JSON object.")

	return prompt.String()
}

// estimateTokens approximates usage when a provider reports none. Four
// characters per token tracks English prose closely enough for a budget.
func estimateTokens(prompt, response string) int {
	return (len(prompt) + len(response)) / 4
}

// truncateForLog shortens provider text for diagnostics without flooding
// the log stream.
func truncateForLog(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return fmt.Sprintf("%s... (%d bytes total)", text[:limit], len(text))
}
