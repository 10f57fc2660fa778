// Copyright (c) 2026 Resumora. All rights reserved.
// Author: engineering@resumora.app

package extract

import (
	"strconv"
	"strings"
)

// # Normalization

/*
BuildRecord shapes loosely parsed JSON into a complete [Record].

Description:
  Total function: whatever the model emitted, the result has every key
  populated. Missing keys get their empty form, scalars placed where arrays
  belong are wrapped into one-element arrays, and stray value types are
  coerced or dropped.
*/
func BuildRecord(source map[string]any) *Record {
	record := &Record{
		PersonalInfo:   personalInfoFrom(asObject(source["personalInfo"])),
		Experience:     experiencesFrom(source["experience"]),
		Skills:         skillsFrom(asObject(source["skills"])),
		Education:      educationFrom(source["education"]),
		Projects:       projectsFrom(source["projects"]),
		Certifications: certificationsFrom(source["certifications"]),
	}
	return Normalize(record)
}

/*
Normalize enforces the no-null contract on a record in place and returns it.

Description:
  Nil arrays become empty ones and scalar strings are cleaned (surrounding
  quotes stripped, whitespace runs collapsed). Idempotent: normalizing a
  normalized record changes nothing.
*/
func Normalize(record *Record) *Record {
	record.PersonalInfo.Name = cleanString(record.PersonalInfo.Name)
	record.PersonalInfo.Email = cleanString(record.PersonalInfo.Email)
	record.PersonalInfo.Phone = cleanString(record.PersonalInfo.Phone)
	record.PersonalInfo.Location = cleanString(record.PersonalInfo.Location)
	record.PersonalInfo.Summary = cleanString(record.PersonalInfo.Summary)
	record.PersonalInfo.AboutMe = cleanString(record.PersonalInfo.AboutMe)

	if record.Experience == nil {
		record.Experience = []Experience{}
	}
	for index := range record.Experience {
		entry := &record.Experience[index]
		entry.Title = cleanString(entry.Title)
		entry.Company = cleanString(entry.Company)
		entry.Location = cleanString(entry.Location)
		entry.StartDate = cleanString(entry.StartDate)
		entry.EndDate = cleanString(entry.EndDate)
		entry.Description = cleanString(entry.Description)
		entry.Achievements = cleanStrings(entry.Achievements)
	}

	record.Skills.Technical = cleanStrings(record.Skills.Technical)
	record.Skills.Soft = cleanStrings(record.Skills.Soft)
	record.Skills.Languages = cleanStrings(record.Skills.Languages)

	if record.Education == nil {
		record.Education = []Education{}
	}
	for index := range record.Education {
		entry := &record.Education[index]
		entry.Degree = cleanString(entry.Degree)
		entry.Institution = cleanString(entry.Institution)
		entry.Location = cleanString(entry.Location)
		entry.GraduationDate = cleanString(entry.GraduationDate)
		entry.GPA = cleanString(entry.GPA)
		entry.Achievements = cleanStrings(entry.Achievements)
	}

	if record.Projects == nil {
		record.Projects = []Project{}
	}
	for index := range record.Projects {
		entry := &record.Projects[index]
		entry.Name = cleanString(entry.Name)
		entry.Description = cleanString(entry.Description)
		entry.Technologies = cleanStrings(entry.Technologies)
		entry.URL = cleanString(entry.URL)
	}

	if record.Certifications == nil {
		record.Certifications = []Certification{}
	}
	for index := range record.Certifications {
		entry := &record.Certifications[index]
		entry.Name = cleanString(entry.Name)
		entry.Issuer = cleanString(entry.Issuer)
		entry.Date = cleanString(entry.Date)
		entry.URL = cleanString(entry.URL)
	}

	return record
}

// # Section Builders

func personalInfoFrom(source map[string]any) PersonalInfo {
	return PersonalInfo{
		Name:     asString(source["name"]),
		Email:    asString(source["email"]),
		Phone:    asString(source["phone"]),
		Location: asString(source["location"]),
		Summary:  asString(source["summary"]),
		AboutMe:  asString(source["aboutMe"]),
	}
}

func skillsFrom(source map[string]any) Skills {
	return Skills{
		Technical: asStringSlice(source["technical"]),
		Soft:      asStringSlice(source["soft"]),
		Languages: asStringSlice(source["languages"]),
	}
}

func experiencesFrom(value any) []Experience {
	entries := asObjectSlice(value)
	experiences := make([]Experience, 0, len(entries))
	for _, entry := range entries {
		experiences = append(experiences, Experience{
			Title:        asString(entry["title"]),
			Company:      asString(entry["company"]),
			Location:     asString(entry["location"]),
			StartDate:    asString(entry["startDate"]),
			EndDate:      asString(entry["endDate"]),
			Description:  asString(entry["description"]),
			Achievements: asStringSlice(entry["achievements"]),
		})
	}
	return experiences
}

func educationFrom(value any) []Education {
	entries := asObjectSlice(value)
	education := make([]Education, 0, len(entries))
	for _, entry := range entries {
		education = append(education, Education{
			Degree:         asString(entry["degree"]),
			Institution:    asString(entry["institution"]),
			Location:       asString(entry["location"]),
			GraduationDate: asString(entry["graduationDate"]),
			GPA:            asString(entry["gpa"]),
			Achievements:   asStringSlice(entry["achievements"]),
		})
	}
	return education
}

func projectsFrom(value any) []Project {
	entries := asObjectSlice(value)
	projects := make([]Project, 0, len(entries))
	for _, entry := range entries {
		projects = append(projects, Project{
			Name:         asString(entry["name"]),
			Description:  asString(entry["description"]),
			Technologies: asStringSlice(entry["technologies"]),
			URL:          asString(entry["url"]),
		})
	}
	return projects
}

func certificationsFrom(value any) []Certification {
	entries := asObjectSlice(value)
	certifications := make([]Certification, 0, len(entries))
	for _, entry := range entries {
		certifications = append(certifications, Certification{
			Name:   asString(entry["name"]),
			Issuer: asString(entry["issuer"]),
			Date:   asString(entry["date"]),
			URL:    asString(entry["url"]),
		})
	}
	return certifications
}

// # Coercions

// asString renders a loose JSON value as a cleaned scalar string. Objects
// and arrays do not belong in scalar slots and collapse to "".
func asString(value any) string {
	switch typed := value.(type) {
	case string:
		return cleanString(typed)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(typed)
	default:
		return ""
	}
}

// asStringSlice renders a loose JSON value as a string array, wrapping a
// lone scalar into a one-element array.
func asStringSlice(value any) []string {
	switch typed := value.(type) {
	case nil:
		return []string{}
	case []any:
		collected := make([]string, 0, len(typed))
		for _, element := range typed {
			if entry := asString(element); entry != "" {
				collected = append(collected, entry)
			}
		}
		return collected
	default:
		if entry := asString(value); entry != "" {
			return []string{entry}
		}
		return []string{}
	}
}

// asObject renders a loose JSON value as an object, or an empty one.
func asObject(value any) map[string]any {
	if typed, ok := value.(map[string]any); ok {
		return typed
	}
	return map[string]any{}
}

// asObjectSlice renders a loose JSON value as a list of objects, wrapping
// a lone object into a one-element list.
func asObjectSlice(value any) []map[string]any {
	switch typed := value.(type) {
	case []any:
		collected := make([]map[string]any, 0, len(typed))
		for _, element := range typed {
			if entry, ok := element.(map[string]any); ok {
				collected = append(collected, entry)
			}
		}
		return collected
	case map[string]any:
		return []map[string]any{typed}
	default:
		return []map[string]any{}
	}
}

// cleanStrings cleans each element and drops the ones that clean to empty.
func cleanStrings(values []string) []string {
	cleaned := make([]string, 0, len(values))
	for _, value := range values {
		if entry := cleanString(value); entry != "" {
			cleaned = append(cleaned, entry)
		}
	}
	return cleaned
}

// cleanString trims the value, strips layered surrounding quote pairs, and
// collapses whitespace runs to single spaces.
func cleanString(value string) string {
	trimmed := strings.TrimSpace(value)
	for len(trimmed) >= 2 {
		first, last := trimmed[0], trimmed[len(trimmed)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			trimmed = strings.TrimSpace(trimmed[1 : len(trimmed)-1])
			continue
		}
		break
	}
	return strings.Join(strings.Fields(trimmed), " ")
}
