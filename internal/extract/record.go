// Copyright (c) 2026 Resumora. All rights reserved.
// Author: engineering@resumora.app

/*
Package extract converts cleaned resume text into a structured record via a
single LLM pass.

The package owns the output shape, the prompt, the provider abstraction with
its failure taxonomy, and the normalization that guarantees a fully
populated record: every key present, arrays never null, strings possibly
empty but never missing.

# Architecture

  - Providers: One [Provider] interface with an OpenAI-compatible variant
    and a Gemini variant, selected at startup.
  - Resilience: A circuit breaker wraps the provider transport so a dead
    upstream fails fast instead of burning the job deadline per call.
  - Quota: The daily ledger is consulted before the call and charged only
    after a successful extraction.
*/
package extract

// # Output Shape

// PersonalInfo holds the identity block of the record.
type PersonalInfo struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
	Summary  string `json:"summary"`
	AboutMe  string `json:"aboutMe"`
}

// Experience is one work history entry.
type Experience struct {
	Title        string   `json:"title"`
	Company      string   `json:"company"`
	Location     string   `json:"location"`
	StartDate    string   `json:"startDate"`
	EndDate      string   `json:"endDate"`
	Description  string   `json:"description"`
	Achievements []string `json:"achievements"`
}

// Skills groups abilities by flavor. Technical means the domain expertise
// of the person's profession, whatever that profession is.
type Skills struct {
	Technical []string `json:"technical"`
	Soft      []string `json:"soft"`
	Languages []string `json:"languages"`
}

// Education is one degree or program entry.
type Education struct {
	Degree         string   `json:"degree"`
	Institution    string   `json:"institution"`
	Location       string   `json:"location"`
	GraduationDate string   `json:"graduationDate"`
	GPA            string   `json:"gpa"`
	Achievements   []string `json:"achievements"`
}

// Project is one portfolio entry.
type Project struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Technologies []string `json:"technologies"`
	URL          string   `json:"url"`
}

// Certification is one credential entry.
type Certification struct {
	Name   string `json:"name"`
	Issuer string `json:"issuer"`
	Date   string `json:"date"`
	URL    string `json:"url"`
}

// Record is the complete extraction output. After [Normalize] no field is
// ever null: scalars default to "" and arrays to [].
type Record struct {
	PersonalInfo   PersonalInfo    `json:"personalInfo"`
	Experience     []Experience    `json:"experience"`
	Skills         Skills          `json:"skills"`
	Education      []Education     `json:"education"`
	Projects       []Project       `json:"projects"`
	Certifications []Certification `json:"certifications"`
}

// recordKeys are the six top-level keys the schema gate accepts as
// structural anchors.
var recordKeys = []string{
	"personalInfo",
	"experience",
	"skills",
	"education",
	"projects",
	"certifications",
}
